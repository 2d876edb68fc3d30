package bot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Kalasky/alina-bot/internal/metrics"
	"github.com/Kalasky/alina-bot/internal/turn"
	"github.com/Kalasky/alina-bot/internal/voice"
)

type fakeStream struct {
	frames chan []byte
	err    error
}

func newEmptyStream() *fakeStream {
	ch := make(chan []byte)
	close(ch)
	return &fakeStream{frames: ch}
}

func (f *fakeStream) Frames() <-chan []byte { return f.frames }
func (f *fakeStream) Err() error            { return f.err }

// blockingRunner parks inside Run until released.
type blockingRunner struct {
	entered chan struct{}
	release chan struct{}
	called  bool
}

func (r *blockingRunner) Run(ctx context.Context, sess *voice.Session, conn voice.Conn, rawPath string) (turn.Result, error) {
	r.called = true
	close(r.entered)
	<-r.release
	return turn.ResultPlayed, nil
}

type nopConn struct{}

func (nopConn) Ready() bool             { return true }
func (nopConn) Speaking(bool) error     { return nil }
func (nopConn) OpusSend() chan<- []byte { return nil }

func newTestBot(gate *voice.Gate, runner turnRunner) *Bot {
	return &Bot{
		registry: voice.NewRegistry(),
		gate:     gate,
		pipeline: runner,
		m:        metrics.New(prometheus.NewRegistry()),
		sessions: make(map[string]*voice.Session),
	}
}

func TestCaptureTurn_FreesSlotBeforeTurnRuns(t *testing.T) {
	gate := voice.NewGate(1)
	runner := &blockingRunner{entered: make(chan struct{}), release: make(chan struct{})}
	b := newTestBot(gate, runner)
	b.registry.Enable("u1")
	if err := voice.Admit(b.registry, gate, "u1"); err != nil {
		t.Fatalf("admit: %v", err)
	}
	sess, err := voice.NewSession("u1", t.TempDir(), voice.Events{})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	b.trackSession(sess)

	done := make(chan struct{})
	go func() {
		b.captureTurn(sess, newEmptyStream(), nopConn{}, "u1")
		close(done)
	}()

	select {
	case <-runner.entered:
	case <-time.After(time.Second):
		t.Fatalf("turn never started")
	}
	// the slot is free while the turn is still in flight
	if gate.Active() != 0 {
		t.Fatalf("expected admission slot released at capture end, got %d active", gate.Active())
	}
	if !gate.TryAcquire("u2") {
		t.Fatalf("expected the next capture to be admittable mid-turn")
	}

	close(runner.release)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("captureTurn never returned")
	}
	if len(b.Snapshot()) != 0 {
		t.Fatalf("expected session untracked after the turn")
	}
}

func TestCaptureTurn_StreamFailureSkipsTurn(t *testing.T) {
	gate := voice.NewGate(1)
	runner := &blockingRunner{entered: make(chan struct{}), release: make(chan struct{})}
	b := newTestBot(gate, runner)
	b.registry.Enable("u1")
	if err := voice.Admit(b.registry, gate, "u1"); err != nil {
		t.Fatalf("admit: %v", err)
	}
	sess, err := voice.NewSession("u1", t.TempDir(), voice.Events{})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	b.trackSession(sess)

	stream := newEmptyStream()
	stream.err = errors.New("udp reset")
	b.captureTurn(sess, stream, nopConn{}, "u1")

	if runner.called {
		t.Fatalf("expected no turn after a failed capture")
	}
	if gate.Active() != 0 {
		t.Fatalf("expected admission slot released on capture failure")
	}
	if len(b.Snapshot()) != 0 {
		t.Fatalf("expected failed session untracked")
	}
}

func TestAttachVoice_RefusesSecondConnection(t *testing.T) {
	b := newTestBot(voice.NewGate(1), &blockingRunner{entered: make(chan struct{}), release: make(chan struct{})})
	vc := &discordgo.VoiceConnection{}
	recv := voice.NewReceiver(vc, time.Second, nil)

	if err := b.attachVoice(vc, recv, &voice.DiscordConn{VC: vc}); err != nil {
		t.Fatalf("first attach: %v", err)
	}
	second := voice.NewReceiver(vc, time.Second, nil)
	if err := b.attachVoice(vc, second, &voice.DiscordConn{VC: vc}); err == nil {
		t.Fatalf("expected second attach to be refused")
	}
	b.mu.Lock()
	installed := b.receiver
	b.mu.Unlock()
	if installed != recv {
		t.Fatalf("expected the first receiver to stay installed")
	}
}
