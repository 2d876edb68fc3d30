package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Kalasky/alina-bot/internal/audio"
	"github.com/Kalasky/alina-bot/internal/bot"
	"github.com/Kalasky/alina-bot/internal/config"
	"github.com/Kalasky/alina-bot/internal/llm"
	"github.com/Kalasky/alina-bot/internal/metrics"
	"github.com/Kalasky/alina-bot/internal/ops"
	"github.com/Kalasky/alina-bot/internal/playback"
	"github.com/Kalasky/alina-bot/internal/stt"
	"github.com/Kalasky/alina-bot/internal/tts"
	"github.com/Kalasky/alina-bot/internal/turn"
	"github.com/Kalasky/alina-bot/internal/voice"
)

func main() {
	// Include sub-second precision in all log timestamps
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	cfg := config.Load()

	m := metrics.New(prometheus.DefaultRegisterer)
	converter := audio.NewConverter(cfg.FFmpegPath)

	var synth turn.Synthesizer
	if cfg.TTSProvider == "elevenlabs" {
		synth = tts.NewElevenLabsClient(cfg.ElevenKey, cfg.ElevenVoice, cfg.SpeechDir)
	} else {
		synth = tts.NewOpenAIClient(cfg.OpenAIKey, cfg.TTSVoice, cfg.SpeechDir)
	}

	pipeline := &turn.Pipeline{
		Converter: converter,
		STT:       stt.NewClient(cfg.OpenAIKey),
		LLM:       llm.NewOpenAIClient(cfg.OpenAIKey, cfg.LLMModel),
		TTS:       synth,
		Player:    playback.NewPlayer(converter),
		Metrics:   m,
	}

	b, err := bot.New(cfg, voice.NewRegistry(), voice.NewGate(cfg.MaxCaptures), pipeline, m)
	if err != nil {
		log.Fatalf("bot init: %v", err)
	}

	e := ops.New(b)
	serverErrors := make(chan error, 1)
	go func() {
		log.Printf("ops server listening on %s", cfg.HTTPAddress)
		serverErrors <- e.Start(cfg.HTTPAddress)
	}()

	if err := b.Start(); err != nil {
		log.Fatalf("discord connect: %v", err)
	}
	log.Println("bot connected")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("ops server error: %v", err)
		}
	case sig := <-sigChan:
		log.Printf("shutdown signal received: %v", sig)
	}

	b.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = e.Close()
	}
}
