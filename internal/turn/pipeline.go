package turn

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/Kalasky/alina-bot/internal/metrics"
	"github.com/Kalasky/alina-bot/internal/playback"
	"github.com/Kalasky/alina-bot/internal/voice"
)

// Pipeline runs one conversation turn: convert, transcribe, generate,
// synthesize, play. It holds no per-turn state, so any number of turns may
// be in flight concurrently; each owns disjoint artifacts.
type Pipeline struct {
	Converter Converter
	STT       Transcriber
	LLM       Generator
	TTS       Synthesizer
	Player    Player
	Metrics   *metrics.Metrics
}

// Run executes the stages strictly in order for one completed capture.
// Every stage deletes the artifact it consumed before surfacing an error;
// the reply artifact is deleted after playback, success or failure.
func (p *Pipeline) Run(ctx context.Context, sess *voice.Session, conn voice.Conn, rawPath string) (Result, error) {
	turnID := uuid.NewString()[:8]
	start := time.Now()
	res, err := p.run(ctx, turnID, sess, conn, rawPath)
	if p.Metrics != nil {
		p.Metrics.Turns.WithLabelValues(res.String()).Inc()
		p.Metrics.TurnDuration.Observe(time.Since(start).Seconds())
	}
	return res, err
}

func (p *Pipeline) run(ctx context.Context, turnID string, sess *voice.Session, conn voice.Conn, rawPath string) (Result, error) {
	sess.SetState(voice.StateConverting)
	oggPath, convErr := p.Converter.Convert(ctx, rawPath)
	// raw artifact is deleted once the attempt has concluded, success or failure
	removeArtifact(turnID, rawPath)
	if convErr != nil {
		if p.Metrics != nil {
			p.Metrics.ConversionFailures.Inc()
		}
		return p.fail(turnID, sess, fmt.Errorf("convert: %w", convErr))
	}

	sess.SetState(voice.StateTranscribing)
	text, terr := p.STT.Transcribe(ctx, oggPath)
	// never needed again after the call returns
	removeArtifact(turnID, oggPath)
	if terr != nil {
		p.remoteFailure("transcribe")
		return p.fail(turnID, sess, fmt.Errorf("transcribe: %w", terr))
	}
	if text == "" {
		// silence or noise: a valid outcome that ends the turn early
		log.Printf("[%s] empty transcript, ending turn", turnID)
		sess.SetState(voice.StateCompleted)
		return ResultEmpty, nil
	}
	log.Printf("[%s] heard: %s", turnID, text)

	sess.SetState(voice.StateResponding)
	reply, gerr := p.LLM.Generate(ctx, text)
	if gerr != nil {
		p.remoteFailure("generate")
		return p.fail(turnID, sess, fmt.Errorf("generate: %w", gerr))
	}
	log.Printf("[%s] reply: %s", turnID, reply)

	sess.SetState(voice.StateSynthesizing)
	replyPath, serr := p.TTS.Synthesize(ctx, reply)
	if serr != nil {
		p.remoteFailure("synthesize")
		return p.fail(turnID, sess, fmt.Errorf("synthesize: %w", serr))
	}
	// retention policy: the reply artifact does not outlive the turn
	defer removeArtifact(turnID, replyPath)

	sess.SetState(voice.StatePlaying)
	if perr := p.Player.Play(ctx, replyPath, conn); perr != nil {
		if errors.Is(perr, playback.ErrPlaybackRejected) && p.Metrics != nil {
			p.Metrics.PlaybackRejected.Inc()
		}
		return p.fail(turnID, sess, fmt.Errorf("play: %w", perr))
	}

	sess.SetState(voice.StateCompleted)
	log.Printf("[%s] turn completed in %s", turnID, time.Since(sess.StartedAt).Round(time.Millisecond))
	return ResultPlayed, nil
}

func (p *Pipeline) fail(turnID string, sess *voice.Session, err error) (Result, error) {
	sess.SetState(voice.StateFailed)
	log.Printf("[%s] turn failed: %v", turnID, err)
	return ResultFailed, err
}

func (p *Pipeline) remoteFailure(stage string) {
	if p.Metrics != nil {
		p.Metrics.RemoteCallFailures.WithLabelValues(stage).Inc()
	}
}

func removeArtifact(turnID, path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Printf("[%s] remove artifact %s: %v", turnID, path, err)
	}
}
