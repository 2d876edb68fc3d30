package voice

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hraban/opus"
)

const (
	// Discord voice audio parameters: 48 kHz interleaved stereo PCM.
	SampleRate = 48000
	Channels   = 2

	// Largest Opus frame is 120ms.
	maxFrameSamples = 5760
)

// Stream yields one speaker's Opus frames. The frames channel closes when
// the end-of-speech condition is met; Err reports a transport failure after
// the channel closes.
type Stream interface {
	Frames() <-chan []byte
	Err() error
}

// Events are advisory lifecycle callbacks for observability. Nil callbacks
// are skipped; they are not part of the correctness contract.
type Events struct {
	Started  func(rawPath string)
	Chunk    func(byteCount int)
	Finished func(rawPath string)
	Error    func(err error)
}

type frameDecoder interface {
	Decode(data []byte, pcm []int16) (int, error)
}

// Session owns one speaker's capture and the turn derived from it. It is
// created when an eligible speaker starts speaking and is discarded once it
// reaches a terminal state.
type Session struct {
	SpeakerID string
	StartedAt time.Time

	rawPath string
	dec     frameDecoder
	events  Events

	mu    sync.Mutex
	state State
}

// NewSession constructs a session for the speaker. The raw artifact path is
// derived from the start timestamp and speaker ID so concurrent sessions
// never collide.
func NewSession(speakerID, recordingsDir string, events Events) (*Session, error) {
	dec, err := opus.NewDecoder(SampleRate, Channels)
	if err != nil {
		return nil, fmt.Errorf("opus decoder: %w", err)
	}
	started := time.Now()
	return &Session{
		SpeakerID: speakerID,
		StartedAt: started,
		rawPath:   filepath.Join(recordingsDir, fmt.Sprintf("%d-%s.pcm", started.UnixMilli(), speakerID)),
		dec:       dec,
		events:    events,
		state:     StateCapturing,
	}, nil
}

// RawPath returns the location of the raw PCM artifact.
func (s *Session) RawPath() string { return s.rawPath }

func (s *Session) SetState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Info is a snapshot of a session for diagnostics.
type Info struct {
	SpeakerID string    `json:"speaker_id"`
	State     string    `json:"state"`
	StartedAt time.Time `json:"started_at"`
	Age       string    `json:"age"`
}

func (s *Session) Info() Info {
	return Info{
		SpeakerID: s.SpeakerID,
		State:     s.State().String(),
		StartedAt: s.StartedAt,
		Age:       time.Since(s.StartedAt).Round(time.Millisecond).String(),
	}
}

// Capture drains the stream, decoding each Opus frame to 16-bit LE PCM and
// writing it to the raw artifact as it arrives. On any stream or decode
// error the partial artifact is removed and the session fails; decode errors
// are not retried. On success the fully flushed artifact path is returned
// and the session stays in Capturing for the caller to advance.
func (s *Session) Capture(stream Stream) (string, error) {
	if err := os.MkdirAll(filepath.Dir(s.rawPath), 0o755); err != nil {
		s.SetState(StateFailed)
		return "", fmt.Errorf("create recordings dir: %w", err)
	}
	f, err := os.Create(s.rawPath)
	if err != nil {
		s.SetState(StateFailed)
		return "", fmt.Errorf("create raw artifact: %w", err)
	}

	if s.events.Started != nil {
		s.events.Started(s.rawPath)
	}

	fail := func(err error) (string, error) {
		_ = f.Close()
		_ = os.Remove(s.rawPath)
		s.SetState(StateFailed)
		if s.events.Error != nil {
			s.events.Error(err)
		}
		return "", err
	}

	w := bufio.NewWriter(f)
	pcm := make([]int16, maxFrameSamples*Channels)
	frameBytes := make([]byte, 0, maxFrameSamples*Channels*2)
	for frame := range stream.Frames() {
		if len(frame) == 0 {
			continue
		}
		n, derr := s.dec.Decode(frame, pcm)
		if derr != nil {
			return fail(fmt.Errorf("opus decode: %w", derr))
		}
		samples := n * Channels
		frameBytes = frameBytes[:samples*2]
		for i := 0; i < samples; i++ {
			binary.LittleEndian.PutUint16(frameBytes[2*i:], uint16(pcm[i]))
		}
		if _, werr := w.Write(frameBytes); werr != nil {
			return fail(fmt.Errorf("write raw artifact: %w", werr))
		}
		if s.events.Chunk != nil {
			s.events.Chunk(len(frame))
		}
	}
	if serr := stream.Err(); serr != nil {
		return fail(fmt.Errorf("voice stream: %w", serr))
	}
	if err := w.Flush(); err != nil {
		return fail(fmt.Errorf("flush raw artifact: %w", err))
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(s.rawPath)
		s.SetState(StateFailed)
		return "", fmt.Errorf("close raw artifact: %w", err)
	}
	if s.events.Finished != nil {
		s.events.Finished(s.rawPath)
	}
	return s.rawPath, nil
}
