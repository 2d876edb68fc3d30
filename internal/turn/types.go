package turn

import (
	"context"

	"github.com/Kalasky/alina-bot/internal/voice"
)

// Converter turns a raw PCM artifact into a compressed container for
// transcription.
type Converter interface {
	Convert(ctx context.Context, rawPath string) (string, error)
}

// Transcriber submits an audio artifact and returns its transcript. An
// empty transcript is a valid outcome.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// Generator produces the assistant's reply to the transcript text.
type Generator interface {
	Generate(ctx context.Context, userText string) (string, error)
}

// Synthesizer converts reply text to speech and returns the artifact path.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (string, error)
}

// Player delivers a synthesized artifact into the live voice session.
type Player interface {
	Play(ctx context.Context, audioPath string, conn voice.Conn) error
}

// Result classifies a finished turn.
type Result int

const (
	ResultPlayed Result = iota
	ResultEmpty
	ResultFailed
)

func (r Result) String() string {
	switch r {
	case ResultPlayed:
		return "played"
	case ResultEmpty:
		return "empty"
	case ResultFailed:
		return "failed"
	default:
		return "unknown"
	}
}
