package opus_test

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/glizzus/clipster/internal/opus"
	"github.com/google/go-cmp/cmp"
)

func TestFrameReader(t *testing.T) {
	frames := [][]byte{
		{0xF8, 0xFF, 0xFE},
		bytes.Repeat([]byte{0x01}, 300),
		{0x42},
	}

	var buf bytes.Buffer
	for _, frame := range frames {
		if err := opus.WriteFrame(&buf, frame); err != nil {
			t.Fatalf("WriteFrame() error = %v", err)
		}
	}

	reader := opus.NewFrameReader(&buf)
	var got [][]byte
	for {
		frame, err := reader.ReadFrame()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("ReadFrame() error = %v", err)
		}
		got = append(got, frame)
	}

	if diff := cmp.Diff(frames, got); diff != "" {
		t.Errorf("frames mismatch (-want +got):\n%s", diff)
	}
}

func TestFrameReader_Malformed(t *testing.T) {
	tc := []struct {
		name  string
		input []byte
		want  error
	}{
		{
			name:  "empty clip",
			input: nil,
			want:  io.EOF,
		},
		{
			name:  "half a length prefix",
			input: []byte{0x05},
			want:  io.ErrUnexpectedEOF,
		},
		{
			name:  "frame shorter than its prefix",
			input: []byte{0x05, 0x00, 0x01, 0x02},
			want:  io.ErrUnexpectedEOF,
		},
		{
			name:  "prefix with no frame",
			input: []byte{0x05, 0x00},
			want:  io.ErrUnexpectedEOF,
		},
		{
			name:  "zero length frame",
			input: []byte{0x00, 0x00},
			want:  opus.ErrEmptyFrame,
		},
	}

	for _, test := range tc {
		t.Run(test.name, func(t *testing.T) {
			_, err := opus.NewFrameReader(bytes.NewReader(test.input)).ReadFrame()
			if !errors.Is(err, test.want) {
				t.Errorf("ReadFrame() error = %v, want %v", err, test.want)
			}
		})
	}
}

func TestWriteFrame_Rejects(t *testing.T) {
	if err := opus.WriteFrame(io.Discard, nil); !errors.Is(err, opus.ErrEmptyFrame) {
		t.Errorf("WriteFrame(nil) error = %v, want %v", err, opus.ErrEmptyFrame)
	}
	if err := opus.WriteFrame(io.Discard, make([]byte, 0x10000)); err == nil {
		t.Error("WriteFrame() of an oversized frame succeeded")
	}
}

type trackedCloser struct {
	io.Reader
	closed bool
}

func (c *trackedCloser) Close() error {
	c.closed = true
	return nil
}

func TestSource_Close(t *testing.T) {
	rc := &trackedCloser{Reader: bytes.NewReader([]byte{0x01, 0x00, 0x07})}
	source := opus.NewSource(rc)

	frame, err := source.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	if diff := cmp.Diff([]byte{0x07}, frame); diff != "" {
		t.Errorf("frame mismatch (-want +got):\n%s", diff)
	}
	if err := source.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !rc.closed {
		t.Error("underlying reader was not closed")
	}
}
