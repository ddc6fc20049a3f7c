package util_test

import (
	"errors"
	"testing"

	"github.com/glizzus/clipster/internal/util"
)

func TestGetOne(t *testing.T) {
	tc := []struct {
		name     string
		input    map[string]string
		expected string
		err      error
	}{
		{
			name:     "single element",
			input:    map[string]string{"key1": "value1"},
			expected: "value1",
		},
		{
			name:  "multiple elements",
			input: map[string]string{"key1": "value1", "key2": "value2"},
			err:   util.ErrMultipleElements,
		},
		{
			name:  "no elements",
			input: map[string]string{},
			err:   util.ErrNoElements,
		},
	}

	for _, test := range tc {
		t.Run(test.name, func(t *testing.T) {
			result, err := util.GetOne(test.input)
			if !errors.Is(err, test.err) {
				t.Fatalf("expected error %v, got %v", test.err, err)
			}
			if result != test.expected {
				t.Errorf("expected %q, got %q", test.expected, result)
			}
		})
	}
}
