package stt

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestTranscribe_NoKey(t *testing.T) {
	c := NewClient("")
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := c.Transcribe(ctx, "nope.ogg"); err == nil {
		t.Fatalf("expected error with missing key")
	}
}

func TestTranscribe_MissingFile(t *testing.T) {
	c := NewClient("key")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := c.Transcribe(ctx, filepath.Join(t.TempDir(), "gone.ogg")); err == nil {
		t.Fatalf("expected error for missing artifact")
	}
}

func TestTranscribe_Success(t *testing.T) {
	audio := writeTempAudio(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if got := r.FormValue("model"); got != "whisper-1" {
			t.Errorf("expected model whisper-1, got %q", got)
		}
		if _, _, err := r.FormFile("file"); err != nil {
			t.Errorf("expected file part: %v", err)
		}
		_, _ = w.Write([]byte(`{"text":"  hello "}`))
	}))
	defer srv.Close()
	c := newRedirectedClient(srv)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	text, err := c.Transcribe(ctx, audio)
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if text != "hello" {
		t.Fatalf("expected trimmed transcript, got %q", text)
	}
}

func TestTranscribe_EmptyTextIsNotAnError(t *testing.T) {
	audio := writeTempAudio(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"text":""}`))
	}))
	defer srv.Close()
	c := newRedirectedClient(srv)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	text, err := c.Transcribe(ctx, audio)
	if err != nil {
		t.Fatalf("expected empty transcript without error, got %v", err)
	}
	if text != "" {
		t.Fatalf("expected empty transcript, got %q", text)
	}
}

func TestTranscribe_HTTPError(t *testing.T) {
	audio := writeTempAudio(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500)
		_, _ = w.Write([]byte("oops"))
	}))
	defer srv.Close()
	c := newRedirectedClient(srv)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := c.Transcribe(ctx, audio); err == nil {
		t.Fatalf("expected error; got nil")
	}
}

func writeTempAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "1-u1.ogg")
	if err := os.WriteFile(path, []byte("fake-ogg"), 0o644); err != nil {
		t.Fatalf("write temp audio: %v", err)
	}
	return path
}

func newRedirectedClient(srv *httptest.Server) *Client {
	c := NewClient("key")
	c.HTTPClient = &http.Client{Timeout: time.Second, Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		req.URL.Scheme = "http"
		req.URL.Host = srv.Listener.Addr().String()
		return http.DefaultTransport.RoundTrip(req)
	})}
	return c
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }
