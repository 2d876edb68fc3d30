package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// OpenAIClient synthesizes speech through the OpenAI audio endpoint and
// persists the result as a timestamp-keyed artifact.
type OpenAIClient struct {
	HTTPClient *http.Client
	APIKey     string
	Model      string
	Voice      string
	Format     string
	OutDir     string
}

type speechRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format"`
}

func NewOpenAIClient(apiKey, voice, outDir string) *OpenAIClient {
	if voice == "" {
		voice = "fable"
	}
	return &OpenAIClient{
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
		APIKey:     apiKey,
		Model:      "tts-1",
		Voice:      voice,
		Format:     "mp3",
		OutDir:     outDir,
	}
}

// Synthesize converts text to speech and returns the written artifact path.
func (c *OpenAIClient) Synthesize(ctx context.Context, text string) (string, error) {
	if c.APIKey == "" {
		return "", fmt.Errorf("openai api key missing")
	}
	endpoint := "https://api.openai.com/v1/audio/speech"

	reqBody, _ := json.Marshal(speechRequest{
		Model:          c.Model,
		Input:          text,
		Voice:          c.Voice,
		ResponseFormat: c.Format,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("openai speech error: status=%d body=%s", resp.StatusCode, string(b))
	}

	return writeArtifact(c.OutDir, c.Format, resp.Body)
}

// writeArtifact persists the synthesized audio under a timestamp-keyed name.
// The partial file is removed if the body copy fails midway.
func writeArtifact(outDir, format string, body io.Reader) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create speech dir: %w", err)
	}
	path := filepath.Join(outDir, fmt.Sprintf("%d.%s", time.Now().UnixMilli(), format))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create reply artifact: %w", err)
	}
	if _, err := io.Copy(f, body); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write reply artifact: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close reply artifact: %w", err)
	}
	return path, nil
}
