package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrConversionFailed indicates the external converter exited non-zero or
// could not be launched.
var ErrConversionFailed = errors.New("audio conversion failed")

// Converter wraps an external ffmpeg binary for the two format hops the
// pipeline needs: raw capture PCM into a compressed container for
// transcription, and a compressed reply artifact back out as PCM for
// playback.
type Converter struct {
	FFmpegPath string
	SampleRate int
	Channels   int
}

// NewConverter uses the given ffmpeg path, defaulting to "ffmpeg" on PATH,
// at the capture format of 48 kHz stereo.
func NewConverter(ffmpegPath string) *Converter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Converter{FFmpegPath: ffmpegPath, SampleRate: 48000, Channels: 2}
}

// Convert transforms the raw s16le PCM file into an Ogg container next to
// it, returning the new path. The input must be fully flushed before the
// call; the caller deletes the raw file once the attempt has concluded,
// success or failure.
func (c *Converter) Convert(ctx context.Context, rawPath string) (string, error) {
	outPath := strings.TrimSuffix(rawPath, filepath.Ext(rawPath)) + ".ogg"
	cmd := exec.CommandContext(ctx, c.FFmpegPath, c.convertArgs(rawPath, outPath)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%w: %v: %s", ErrConversionFailed, err, lastLine(stderr.String()))
	}
	return outPath, nil
}

func (c *Converter) convertArgs(in, out string) []string {
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "s16le",
		"-ar", strconv.Itoa(c.SampleRate),
		"-ac", strconv.Itoa(c.Channels),
		"-i", in,
		"-y", out,
	}
}

// DecodePCM streams the given compressed audio file as 48 kHz stereo s16le
// PCM. Closing the reader stops the decoder and reaps the process.
func (c *Converter) DecodePCM(ctx context.Context, path string) (io.ReadCloser, error) {
	cmd := exec.CommandContext(ctx, c.FFmpegPath, c.decodeArgs(path)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdout pipe: %v", ErrConversionFailed, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConversionFailed, err)
	}
	return &processReader{r: stdout, cmd: cmd, stderr: &stderr}, nil
}

func (c *Converter) decodeArgs(in string) []string {
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-i", in,
		"-f", "s16le",
		"-ar", strconv.Itoa(c.SampleRate),
		"-ac", strconv.Itoa(c.Channels),
		"pipe:1",
	}
}

// processReader ties the decoder's stdout to its process lifetime.
type processReader struct {
	r      io.ReadCloser
	cmd    *exec.Cmd
	stderr *bytes.Buffer
	waited bool
}

func (p *processReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if err == io.EOF && !p.waited {
		p.waited = true
		if werr := p.cmd.Wait(); werr != nil {
			return n, fmt.Errorf("%w: %v: %s", ErrConversionFailed, werr, lastLine(p.stderr.String()))
		}
	}
	return n, err
}

func (p *processReader) Close() error {
	_ = p.r.Close()
	if !p.waited {
		p.waited = true
		_ = p.cmd.Wait()
	}
	return nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
