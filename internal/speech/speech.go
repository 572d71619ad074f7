// Package speech turns feedback text into encoded audio for clients.
package speech

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"RoverRelay/internal/metrics"
)

const (
	placeholderText = "Processing..."
	fallbackText    = "TTS failed."
)

// ErrSpeechFailure is returned when synthesis failed for the text and for the fallback phrase.
var ErrSpeechFailure = errors.New("speech synthesis failed")

// Synthesizer renders text to encoded audio bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Gateway applies the placeholder and bounded retry policy around a Synthesizer.
type Gateway struct {
	synth  Synthesizer
	format string
	log    *slog.Logger
}

// NewGateway wraps synth. format is the audio container used in data URIs.
func NewGateway(synth Synthesizer, format string, log *slog.Logger) *Gateway {
	if log == nil {
		log = slog.Default()
	}
	if format == "" {
		format = "mp3"
	}
	return &Gateway{synth: synth, format: format, log: log.With("component", "speech")}
}

// Synthesize returns audio for text. Blank text is replaced by a placeholder.
// A failed attempt is retried exactly once with a fixed fallback phrase;
// if that fails too the result wraps ErrSpeechFailure.
func (g *Gateway) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		text = placeholderText
	}
	audio, err := g.synth.Synthesize(ctx, text)
	if err == nil {
		metrics.SpeechRequests.WithLabelValues("ok").Inc()
		return audio, nil
	}
	g.log.Error("TTS generation failed", "error", err)
	if ctxErr := ctx.Err(); ctxErr != nil {
		metrics.SpeechRequests.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("%w: %w", ErrSpeechFailure, ctxErr)
	}

	metrics.SpeechRequests.WithLabelValues("retry").Inc()
	audio, rerr := g.synth.Synthesize(ctx, fallbackText)
	if rerr != nil {
		metrics.SpeechRequests.WithLabelValues("failed").Inc()
		g.log.Error("TTS fallback failed", "error", rerr)
		return nil, fmt.Errorf("%w: %v; fallback: %v", ErrSpeechFailure, err, rerr)
	}
	return audio, nil
}

// DataURI encodes audio as a data URI for the client protocol.
func (g *Gateway) DataURI(audio []byte) string {
	return "data:audio/" + g.format + ";base64," + base64.StdEncoding.EncodeToString(audio)
}

// SynthesizeURI is Synthesize followed by DataURI. It returns "" when no
// audio could be produced, so the reply is sent without audio.
func (g *Gateway) SynthesizeURI(ctx context.Context, text string) string {
	audio, err := g.Synthesize(ctx, text)
	if err != nil {
		return ""
	}
	return g.DataURI(audio)
}
