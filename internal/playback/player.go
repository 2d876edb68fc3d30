package playback

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/hraban/opus"

	"github.com/Kalasky/alina-bot/internal/voice"
)

// ErrPlaybackRejected is returned when the target session is not ready to
// receive audio. Rejected playback is not queued or retried.
var ErrPlaybackRejected = errors.New("playback rejected: voice session not ready")

const (
	frameSamples = 960 // per channel, 20ms at 48kHz
	frameBytes   = frameSamples * voice.Channels * 2
)

// PCMDecoder turns a compressed audio artifact into a 48kHz stereo s16le
// PCM stream.
type PCMDecoder interface {
	DecodePCM(ctx context.Context, path string) (io.ReadCloser, error)
}

type frameEncoder interface {
	Encode(pcm []int16, data []byte) (int, error)
}

// Player streams a synthesized reply artifact into a voice connection as
// 20ms Opus frames. Playback on a player is serialized: back-to-back
// syntheses wait for each other instead of overlapping on the shared
// outbound path.
type Player struct {
	Decoder PCMDecoder

	mu         sync.Mutex
	newEncoder func() (frameEncoder, error)
}

func NewPlayer(dec PCMDecoder) *Player {
	return &Player{
		Decoder: dec,
		newEncoder: func() (frameEncoder, error) {
			return opus.NewEncoder(voice.SampleRate, voice.Channels, opus.AppVoIP)
		},
	}
}

// Play decodes the artifact and streams it into the connection. It returns
// ErrPlaybackRejected without queueing when the connection is not ready.
// A mid-stream failure ends playback without restarting it.
func (p *Player) Play(ctx context.Context, audioPath string, conn voice.Conn) error {
	if !conn.Ready() {
		return ErrPlaybackRejected
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	// the connection may have dropped while this playback waited its turn
	if !conn.Ready() {
		return ErrPlaybackRejected
	}

	rc, err := p.Decoder.DecodePCM(ctx, audioPath)
	if err != nil {
		return fmt.Errorf("decode reply artifact: %w", err)
	}
	defer rc.Close()

	enc, err := p.newEncoder()
	if err != nil {
		return fmt.Errorf("opus encoder: %w", err)
	}

	if err := conn.Speaking(true); err != nil {
		return fmt.Errorf("set speaking: %w", err)
	}
	defer func() {
		if err := conn.Speaking(false); err != nil {
			log.Printf("playback: clear speaking: %v", err)
		}
	}()

	r := bufio.NewReaderSize(rc, frameBytes*4)
	raw := make([]byte, frameBytes)
	pcm := make([]int16, frameSamples*voice.Channels)
	opusBuf := make([]byte, 4000)
	for {
		n, rerr := io.ReadFull(r, raw)
		if rerr == io.EOF {
			return nil
		}
		if rerr != nil && rerr != io.ErrUnexpectedEOF {
			return fmt.Errorf("read reply audio: %w", rerr)
		}
		// zero-pad a short final frame
		for i := n; i < frameBytes; i++ {
			raw[i] = 0
		}
		for i := 0; i < len(pcm); i++ {
			pcm[i] = int16(binary.LittleEndian.Uint16(raw[2*i:]))
		}
		en, eerr := enc.Encode(pcm, opusBuf)
		if eerr != nil {
			return fmt.Errorf("opus encode: %w", eerr)
		}
		pkt := make([]byte, en)
		copy(pkt, opusBuf[:en])
		select {
		case conn.OpusSend() <- pkt:
		case <-ctx.Done():
			return ctx.Err()
		}
		if rerr == io.ErrUnexpectedEOF {
			return nil
		}
	}
}
