package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"RoverRelay/internal/model"
)

type speechRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format"`
}

// HTTPSynthesizer calls an OpenAI-compatible /v1/audio/speech endpoint
// (for example an edge-tts bridge). Audio is spooled through a temporary
// file that is removed before returning.
type HTTPSynthesizer struct {
	endpoint string
	model    string
	voice    string
	format   string
	tempDir  string
	http     *http.Client
}

// NewHTTPSynthesizer builds a synthesizer from config.
func NewHTTPSynthesizer(cfg model.SpeechConfig) *HTTPSynthesizer {
	return &HTTPSynthesizer{
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		voice:    cfg.Voice,
		format:   cfg.Format,
		tempDir:  cfg.TempDir,
		http:     &http.Client{},
	}
}

// Synthesize requests audio for text with the configured voice.
func (s *HTTPSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	body, err := json.Marshal(speechRequest{Model: s.model, Input: text, Voice: s.voice, ResponseFormat: s.format})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("tts http %d", resp.StatusCode)
	}
	return s.spool(resp.Body)
}

// spool writes r to a transient file and reads it back.
func (s *HTTPSynthesizer) spool(r io.Reader) ([]byte, error) {
	f, err := os.CreateTemp(s.tempDir, "tts-*."+s.format)
	if err != nil {
		return nil, fmt.Errorf("create temp audio: %w", err)
	}
	name := f.Name()
	defer func() { _ = os.Remove(name) }()

	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write temp audio: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close temp audio: %w", err)
	}
	audio, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read temp audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, errors.New("tts returned empty audio")
	}
	return audio, nil
}
