package audio

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func TestConvertArgs_FixedTemplate(t *testing.T) {
	c := NewConverter("")
	got := c.convertArgs("/tmp/1-u1.pcm", "/tmp/1-u1.ogg")
	want := []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "s16le", "-ar", "48000", "-ac", "2",
		"-i", "/tmp/1-u1.pcm", "-y", "/tmp/1-u1.ogg",
	}
	if len(got) != len(want) {
		t.Fatalf("arg count mismatch: got %d want %d", len(got), len(want))
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("arg %d mismatch: got %q want %q", i, got[i], want[i])
		}
	}
}

func TestConvert_OutputPathSwapsExtension(t *testing.T) {
	c := NewConverter("/definitely/not/ffmpeg")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := c.Convert(ctx, filepath.Join(t.TempDir(), "123-u1.pcm"))
	if err == nil {
		t.Fatalf("expected launch failure with bogus ffmpeg path")
	}
	if !errors.Is(err, ErrConversionFailed) {
		t.Fatalf("expected ErrConversionFailed, got %v", err)
	}
}

func TestDecodePCM_LaunchFailure(t *testing.T) {
	c := NewConverter("/definitely/not/ffmpeg")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := c.DecodePCM(ctx, "/tmp/reply.mp3")
	if err == nil {
		t.Fatalf("expected launch failure with bogus ffmpeg path")
	}
	if !errors.Is(err, ErrConversionFailed) {
		t.Fatalf("expected ErrConversionFailed, got %v", err)
	}
}

func TestLastLine(t *testing.T) {
	cases := []struct{ in, want string }{
		{"", ""},
		{"one\ntwo\n", "two"},
		{"  spaced  ", "spaced"},
	}
	for _, tc := range cases {
		if got := lastLine(tc.in); got != tc.want {
			t.Fatalf("lastLine(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
