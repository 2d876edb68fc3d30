package voice

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
)

// Receiver demultiplexes a Discord voice connection's inbound Opus packets
// into per-speaker streams. Discord tags packets with an SSRC, not a user
// ID; the mapping arrives on speaking updates and is tracked here.
type Receiver struct {
	vc         *discordgo.VoiceConnection
	silence    time.Duration
	onSpeaking func(speakerID string)

	mu       sync.Mutex
	users    map[uint32]string
	speaking map[string]bool
	subs     map[string]*speakerStream

	done     chan struct{}
	stopOnce sync.Once
}

// NewReceiver wraps the voice connection. onSpeaking fires whenever a mapped
// speaker starts speaking; the bot layer uses it to trigger captures.
func NewReceiver(vc *discordgo.VoiceConnection, silence time.Duration, onSpeaking func(speakerID string)) *Receiver {
	return &Receiver{
		vc:         vc,
		silence:    silence,
		onSpeaking: onSpeaking,
		users:      make(map[uint32]string),
		speaking:   make(map[string]bool),
		subs:       make(map[string]*speakerStream),
		done:       make(chan struct{}),
	}
}

// Start installs the speaking-update handler and begins demultiplexing.
func (r *Receiver) Start() {
	r.vc.AddHandler(func(_ *discordgo.VoiceConnection, vs *discordgo.VoiceSpeakingUpdate) {
		r.mu.Lock()
		r.users[uint32(vs.SSRC)] = vs.UserID
		r.speaking[vs.UserID] = vs.Speaking
		r.mu.Unlock()
		if vs.Speaking && r.onSpeaking != nil {
			r.onSpeaking(vs.UserID)
		}
	})
	go r.run()
}

// Stop ends demultiplexing and closes all subscriber streams cleanly.
func (r *Receiver) Stop() {
	r.stopOnce.Do(func() {
		close(r.done)
		r.closeAll(nil)
	})
}

// IsSpeaking reports whether the speaker's last speaking update was active.
func (r *Receiver) IsSpeaking(speakerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.speaking[speakerID]
}

// Subscribe opens a per-speaker frame stream that ends after the silence
// window elapses with no packets from that speaker. A speaker can have only
// one open stream at a time.
func (r *Receiver) Subscribe(speakerID string) (Stream, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.subs[speakerID]; ok {
		return nil, fmt.Errorf("speaker %s already subscribed", speakerID)
	}
	st := newSpeakerStream(speakerID, r.silence, func() {
		r.mu.Lock()
		delete(r.subs, speakerID)
		r.mu.Unlock()
	})
	r.subs[speakerID] = st
	return st, nil
}

func (r *Receiver) run() {
	for {
		select {
		case <-r.done:
			return
		case pkt, ok := <-r.vc.OpusRecv:
			if !ok {
				r.closeAll(errors.New("voice transport closed"))
				return
			}
			if pkt == nil || len(pkt.Opus) == 0 {
				continue
			}
			r.mu.Lock()
			user := r.users[pkt.SSRC]
			st := r.subs[user]
			r.mu.Unlock()
			if st != nil {
				st.push(pkt.Opus)
			}
		}
	}
}

func (r *Receiver) closeAll(err error) {
	r.mu.Lock()
	subs := make([]*speakerStream, 0, len(r.subs))
	for _, st := range r.subs {
		subs = append(subs, st)
	}
	r.mu.Unlock()
	for _, st := range subs {
		st.close(err)
	}
}

// speakerStream buffers one speaker's Opus frames and closes itself after
// the inactivity window. Frames are dropped, not queued, when the consumer
// lags far enough to fill the buffer.
type speakerStream struct {
	speakerID string
	silence   time.Duration
	frames    chan []byte
	onClose   func()

	mu     sync.Mutex
	timer  *time.Timer
	closed bool
	err    error
}

func newSpeakerStream(speakerID string, silence time.Duration, onClose func()) *speakerStream {
	st := &speakerStream{
		speakerID: speakerID,
		silence:   silence,
		frames:    make(chan []byte, 256),
		onClose:   onClose,
	}
	st.timer = time.AfterFunc(silence, func() { st.close(nil) })
	return st
}

func (st *speakerStream) Frames() <-chan []byte { return st.frames }

func (st *speakerStream) Err() error {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.err
}

func (st *speakerStream) push(frame []byte) {
	buf := make([]byte, len(frame))
	copy(buf, frame)
	st.mu.Lock()
	defer st.mu.Unlock()
	// the send must stay under the mutex; close() sets the flag under it
	// before closing the channel
	if st.closed {
		return
	}
	st.timer.Reset(st.silence)
	select {
	case st.frames <- buf:
	default:
		log.Printf("[%s] frame buffer full, dropping packet", st.speakerID)
	}
}

func (st *speakerStream) close(err error) {
	st.mu.Lock()
	if st.closed {
		st.mu.Unlock()
		return
	}
	st.closed = true
	st.err = err
	st.timer.Stop()
	st.mu.Unlock()
	close(st.frames)
	if st.onClose != nil {
		st.onClose()
	}
}
