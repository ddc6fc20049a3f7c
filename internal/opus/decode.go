package opus

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrEmptyFrame is returned for a zero length frame, which only shows up
// in truncated or corrupt clips.
var ErrEmptyFrame = errors.New("opus: empty frame")

// FrameReader reads length-prefixed Opus frames from an io.Reader.
type FrameReader struct {
	r io.Reader
}

func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: r}
}

// ReadFrame returns the next raw Opus frame, or io.EOF once the clip is
// exhausted. A clip cut off mid-frame reports io.ErrUnexpectedEOF.
func (f *FrameReader) ReadFrame() ([]byte, error) {
	var size uint16
	if err := binary.Read(f.r, binary.LittleEndian, &size); err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, ErrEmptyFrame
	}

	frame := make([]byte, size)
	if _, err := io.ReadFull(f.r, frame); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return frame, nil
}

// WriteFrame writes one length-prefixed frame to w.
func WriteFrame(w io.Writer, frame []byte) error {
	if len(frame) == 0 {
		return ErrEmptyFrame
	}
	if len(frame) > 0xFFFF {
		return fmt.Errorf("opus: frame of %d bytes does not fit a uint16 length", len(frame))
	}

	var lenBuf [2]byte
	binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(frame)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(frame)
	return err
}

// Source is a FrameReader that owns its underlying stream.
type Source struct {
	*FrameReader
	closer io.Closer
}

func NewSource(rc io.ReadCloser) *Source {
	return &Source{FrameReader: NewFrameReader(rc), closer: rc}
}

func (s *Source) Close() error {
	return s.closer.Close()
}
