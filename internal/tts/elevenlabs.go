package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// ElevenLabsClient is an alternative synthesizer using the ElevenLabs HTTP
// API, selectable via TTS_PROVIDER=elevenlabs.
type ElevenLabsClient struct {
	HTTPClient *http.Client
	APIKey     string
	VoiceID    string
	OutDir     string
}

func NewElevenLabsClient(apiKey, voiceID, outDir string) *ElevenLabsClient {
	return &ElevenLabsClient{
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
		APIKey:     apiKey,
		VoiceID:    voiceID,
		OutDir:     outDir,
	}
}

// Synthesize converts text to speech and returns the written artifact path.
func (e *ElevenLabsClient) Synthesize(ctx context.Context, text string) (string, error) {
	if e.APIKey == "" || e.VoiceID == "" {
		return "", fmt.Errorf("elevenlabs: api key or voice id missing")
	}
	u := url.URL{
		Scheme: "https",
		Host:   "api.elevenlabs.io",
		Path:   "/v1/text-to-speech/" + e.VoiceID,
	}
	q := u.Query()
	q.Set("output_format", "mp3_44100_128")
	u.RawQuery = q.Encode()

	body := map[string]any{
		"model_id": "eleven_flash_v2_5",
		"text":     text,
		"voice_settings": map[string]any{
			"stability":         0.4,
			"similarity_boost":  0.7,
			"style":             0.0,
			"use_speaker_boost": true,
		},
	}
	buf, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(buf))
	if err != nil {
		return "", err
	}
	req.Header.Set("xi-api-key", e.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("elevenlabs http error: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("elevenlabs http status=%d body=%s", resp.StatusCode, string(b))
	}

	return writeArtifact(e.OutDir, "mp3", resp.Body)
}
