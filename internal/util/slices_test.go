package util_test

import (
	"testing"

	"github.com/glizzus/clipster/internal/util"
)

func TestFindFirst(t *testing.T) {
	tc := []struct {
		name      string
		slice     []int
		predicate func(int) bool
		expected  int
		found     bool
	}{
		{
			name:      "element found",
			slice:     []int{1, 2, 3, 4, 5},
			predicate: func(x int) bool { return x%2 == 0 },
			expected:  2,
			found:     true,
		},
		{
			name:      "element not found",
			slice:     []int{1, 3, 5, 7},
			predicate: func(x int) bool { return x%2 == 0 },
			expected:  0,
			found:     false,
		},
		{
			name:      "empty slice",
			slice:     nil,
			predicate: func(x int) bool { return true },
			expected:  0,
			found:     false,
		},
	}

	for _, test := range tc {
		t.Run(test.name, func(t *testing.T) {
			result, found := util.FindFirst(test.slice, test.predicate)
			if result != test.expected || found != test.found {
				t.Errorf("FindFirst() = (%v, %v), want (%v, %v)", result, found, test.expected, test.found)
			}
		})
	}
}
