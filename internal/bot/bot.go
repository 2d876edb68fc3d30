package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/Kalasky/alina-bot/internal/config"
	"github.com/Kalasky/alina-bot/internal/metrics"
	"github.com/Kalasky/alina-bot/internal/turn"
	"github.com/Kalasky/alina-bot/internal/voice"
)

// turnRunner runs one conversation turn for a completed capture.
type turnRunner interface {
	Run(ctx context.Context, sess *voice.Session, conn voice.Conn, rawPath string) (turn.Result, error)
}

// Bot wires the Discord gateway to the capture and turn pipeline. It owns
// at most one voice connection at a time and threads that handle explicitly
// into every turn it starts.
type Bot struct {
	cfg      config.Config
	session  *discordgo.Session
	registry *voice.Registry
	gate     *voice.Gate
	pipeline turnRunner
	m        *metrics.Metrics

	mu       sync.Mutex
	vc       *discordgo.VoiceConnection
	receiver *voice.Receiver
	conn     voice.Conn
	sessions map[string]*voice.Session
}

func New(cfg config.Config, registry *voice.Registry, gate *voice.Gate, pipeline *turn.Pipeline, m *metrics.Metrics) (*Bot, error) {
	s, err := discordgo.New("Bot " + cfg.DiscordBotToken)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildVoiceStates

	b := &Bot{
		cfg:      cfg,
		session:  s,
		registry: registry,
		gate:     gate,
		pipeline: pipeline,
		m:        m,
		sessions: make(map[string]*voice.Session),
	}
	s.AddHandler(b.onReady)
	s.AddHandler(b.onInteraction)
	return b, nil
}

// Start opens the gateway connection.
func (b *Bot) Start() error {
	return b.session.Open()
}

// Stop leaves any joined voice channel and closes the gateway.
func (b *Bot) Stop() {
	b.leaveVoice()
	if err := b.session.Close(); err != nil {
		log.Printf("discord close: %v", err)
	}
}

// Snapshot returns diagnostics for every session currently in flight.
func (b *Bot) Snapshot() []voice.Info {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]voice.Info, 0, len(b.sessions))
	for _, s := range b.sessions {
		out = append(out, s.Info())
	}
	return out
}

// onSpeakingStart triggers a capture when an eligible speaker starts
// speaking. Non-enabled speakers never get a session.
func (b *Bot) onSpeakingStart(speakerID string) {
	b.beginCapture(speakerID)
}

// beginCapture claims an admission slot and runs the capture plus its turn
// asynchronously. A rejection is dropped silently; nothing is queued.
func (b *Bot) beginCapture(speakerID string) {
	b.mu.Lock()
	recv, conn := b.receiver, b.conn
	b.mu.Unlock()
	if recv == nil {
		return
	}
	if err := voice.Admit(b.registry, b.gate, speakerID); err != nil {
		if errors.Is(err, voice.ErrAdmissionRejected) {
			log.Printf("[%s] capture admission rejected", speakerID)
			b.m.CapturesRejected.Inc()
		}
		return
	}
	sess, err := voice.NewSession(speakerID, b.cfg.RecordingsDir, b.captureEvents(speakerID))
	if err != nil {
		b.gate.Release(speakerID)
		log.Printf("[%s] session create failed: %v", speakerID, err)
		return
	}
	stream, err := recv.Subscribe(speakerID)
	if err != nil {
		b.gate.Release(speakerID)
		log.Printf("[%s] subscribe failed: %v", speakerID, err)
		return
	}

	b.m.CapturesStarted.Inc()
	b.m.ActiveCaptures.Inc()
	b.trackSession(sess)

	go b.captureTurn(sess, stream, conn, speakerID)
}

// captureTurn drains the capture and runs the derived turn. The admission
// slot frees as soon as the stream ends; the turn keeps running while the
// next capture may begin.
func (b *Bot) captureTurn(sess *voice.Session, stream voice.Stream, conn voice.Conn, speakerID string) {
	rawPath, cerr := sess.Capture(stream)
	b.gate.Release(speakerID)
	b.m.ActiveCaptures.Dec()
	if cerr != nil {
		b.m.CapturesFailed.Inc()
		b.untrackSession(sess)
		return
	}
	res, terr := b.pipeline.Run(context.Background(), sess, conn, rawPath)
	b.untrackSession(sess)
	if terr != nil {
		return
	}
	log.Printf("[%s] turn result: %s", speakerID, res)
}

// attachVoice installs the live voice connection. Only one is held at a
// time; a second join is refused rather than double-wiring the packet
// stream.
func (b *Bot) attachVoice(vc *discordgo.VoiceConnection, recv *voice.Receiver, conn voice.Conn) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.vc != nil {
		return errors.New("already in a voice channel")
	}
	b.vc, b.receiver, b.conn = vc, recv, conn
	return nil
}

func (b *Bot) captureEvents(speakerID string) voice.Events {
	return voice.Events{
		Started: func(rawPath string) {
			log.Printf("[%s] started recording %s", speakerID, rawPath)
		},
		Chunk: func(byteCount int) {
			b.m.CaptureBytes.Add(float64(byteCount))
		},
		Finished: func(rawPath string) {
			log.Printf("[%s] finished recording %s", speakerID, rawPath)
		},
		Error: func(err error) {
			log.Printf("[%s] recording error: %v", speakerID, err)
		},
	}
}

func (b *Bot) trackSession(sess *voice.Session) {
	b.mu.Lock()
	b.sessions[sess.SpeakerID] = sess
	b.mu.Unlock()
}

func (b *Bot) untrackSession(sess *voice.Session) {
	b.mu.Lock()
	if b.sessions[sess.SpeakerID] == sess {
		delete(b.sessions, sess.SpeakerID)
	}
	b.mu.Unlock()
}

func (b *Bot) leaveVoice() {
	b.mu.Lock()
	vc, recv := b.vc, b.receiver
	b.vc, b.receiver, b.conn = nil, nil, nil
	b.mu.Unlock()
	if recv != nil {
		recv.Stop()
	}
	if vc != nil {
		if err := vc.Disconnect(); err != nil {
			log.Printf("voice disconnect: %v", err)
		}
	}
	// eligibility does not survive the voice session; in-flight captures
	// are left to finish on their own
	b.registry.ClearAll()
}
