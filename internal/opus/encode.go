package opus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"

	"github.com/jonas747/ogg"
)

// EncodeOptions tune the FFmpeg transcode. Zero values use the defaults
// Discord expects.
type EncodeOptions struct {
	// Bitrate in bits per second.
	Bitrate int
	// Volume is an FFmpeg volume filter factor, 1 leaves audio untouched.
	Volume float64
}

func (o EncodeOptions) args() []string {
	bitrate := o.Bitrate
	if bitrate <= 0 {
		bitrate = 64000
	}

	args := []string{
		"-i", "pipe:0",
		"-vn",
		"-map", "0:a",
	}
	if o.Volume > 0 && o.Volume != 1 {
		args = append(args, "-filter:a", "volume="+strconv.FormatFloat(o.Volume, 'f', -1, 64))
	}
	return append(args,
		"-acodec", "libopus",
		"-f", "ogg",
		"-vbr", "on",
		"-compression_level", "10",
		"-ar", "48000",
		"-ac", "2",
		"-b:a", strconv.Itoa(bitrate),
		"-application", "audio",
		"-frame_duration", "20",
		"-packet_loss", "1",
		"-threads", "0",
		"pipe:1",
	)
}

// Encode runs FFmpeg over r and returns a stream of length-prefixed Opus
// frames. Closing the returned reader, or cancelling ctx, stops FFmpeg.
func Encode(ctx context.Context, r io.Reader, opts EncodeOptions) (io.ReadCloser, error) {
	ffmpeg := exec.CommandContext(ctx, "ffmpeg", opts.args()...)
	ffmpeg.Stdin = r

	stdout, err := ffmpeg.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := ffmpeg.Start(); err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()
	go func() {
		err := repackage(stdout, pw)
		if werr := ffmpeg.Wait(); err == nil && werr != nil {
			err = fmt.Errorf("ffmpeg: %w", werr)
		}
		pw.CloseWithError(err)
	}()

	return &encodeCloser{ReadCloser: pr, cmd: ffmpeg}, nil
}

// repackage converts an Ogg Opus stream into length-prefixed frames. The
// two header packets (OpusHead and OpusTags) are dropped.
func repackage(r io.Reader, w io.Writer) error {
	decoder := ogg.NewPacketDecoder(ogg.NewDecoder(r))

	skip := 2
	for {
		packet, _, err := decoder.Decode()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return err
		}
		if skip > 0 {
			skip--
			continue
		}
		if len(packet) == 0 {
			continue
		}
		if err := WriteFrame(w, packet); err != nil {
			return err
		}
	}
}

type encodeCloser struct {
	io.ReadCloser
	cmd *exec.Cmd
}

func (e *encodeCloser) Close() error {
	err := e.ReadCloser.Close()
	if e.cmd.Process != nil {
		_ = e.cmd.Process.Kill()
	}
	return err
}
