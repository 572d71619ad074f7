// Package inference asks an external vision-language service for a motion
// plan. Every failure is converted into the safe Stop fallback plan.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"RoverRelay/internal/frame"
	"RoverRelay/internal/metrics"
	"RoverRelay/internal/model"
	"RoverRelay/internal/motion"
)

// ErrInference marks any failure to obtain a usable plan.
var ErrInference = errors.New("inference failed")

// Gateway produces a motion plan for a prompt and a frame. It never fails.
type Gateway interface {
	Infer(ctx context.Context, prompt string, f *frame.Frame) motion.Plan
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Images  []string        `json:"images"`
	Stream  bool            `json:"stream"`
	Format  string          `json:"format"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	NumPredict  int     `json:"num_predict"`
}

type generateResponse struct {
	Response string `json:"response"`
}

type planPayload struct {
	Commands    []motion.RawCommand `json:"commands"`
	Description *string             `json:"description"`
}

// OllamaClient calls Ollama's /api/generate endpoint.
type OllamaClient struct {
	endpoint string
	model    string
	opts     generateOptions
	limit    float64
	http     *http.Client
	breaker  *gobreaker.CircuitBreaker
	log      *slog.Logger
}

// NewOllamaClient builds a client from config. maxSpeed bounds every parsed command.
func NewOllamaClient(cfg model.InferenceConfig, maxSpeed float64, log *slog.Logger) *OllamaClient {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "inference")
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	return &OllamaClient{
		endpoint: strings.TrimRight(strings.TrimSpace(cfg.Host), "/") + "/api/generate",
		model:    cfg.Model,
		opts: generateOptions{
			Temperature: cfg.Temperature,
			TopP:        cfg.TopP,
			NumPredict:  cfg.NumPredict,
		},
		limit: maxSpeed,
		http:  &http.Client{Timeout: cfg.Timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "inference",
			Timeout: cfg.BreakerOpenDelay,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= failures
			},
			// a cancelled caller says nothing about the service
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn("circuit breaker state change", "from", from.String(), "to", to.String())
			},
		}),
		log: log,
	}
}

// Infer requests a plan. On transport failure, malformed output, an empty
// command list or an open breaker it returns motion.FallbackPlan.
func (c *OllamaClient) Infer(ctx context.Context, prompt string, f *frame.Frame) motion.Plan {
	start := time.Now()
	res, err := c.breaker.Execute(func() (interface{}, error) {
		return c.generate(ctx, prompt, f)
	})
	metrics.InferenceDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		result := "fallback"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			result = "breaker_open"
		}
		metrics.InferenceRequests.WithLabelValues(result).Inc()
		c.log.Error("inference error, using fallback plan", "error", err)
		return motion.FallbackPlan(err)
	}
	metrics.InferenceRequests.WithLabelValues("ok").Inc()
	return res.(motion.Plan)
}

func (c *OllamaClient) generate(ctx context.Context, prompt string, f *frame.Frame) (motion.Plan, error) {
	images := []string{}
	if f != nil {
		images = append(images, f.Payload)
	}
	body, err := json.Marshal(generateRequest{
		Model:   c.model,
		Prompt:  BuildPrompt(prompt),
		Images:  images,
		Stream:  false,
		Format:  "json",
		Options: c.opts,
	})
	if err != nil {
		return motion.Plan{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return motion.Plan{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return motion.Plan{}, fmt.Errorf("%w: request: %w", ErrInference, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.log.Debug("close inference response", "error", cerr)
		}
	}()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return motion.Plan{}, fmt.Errorf("%w: read body: %w", ErrInference, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return motion.Plan{}, fmt.Errorf("%w: http %d: %s", ErrInference, resp.StatusCode, compact(string(payload), 200))
	}
	return ParsePlan(payload, c.limit)
}

// ParsePlan decodes an /api/generate response body into a normalized plan.
func ParsePlan(body []byte, limit float64) (motion.Plan, error) {
	var outer generateResponse
	if err := json.Unmarshal(body, &outer); err != nil {
		return motion.Plan{}, fmt.Errorf("%w: non-json payload: %w", ErrInference, err)
	}
	inner := strings.TrimSpace(outer.Response)
	if inner == "" {
		inner = "{}"
	}
	var p planPayload
	if err := json.Unmarshal([]byte(inner), &p); err != nil {
		return motion.Plan{}, fmt.Errorf("%w: malformed plan: %w", ErrInference, err)
	}
	if len(p.Commands) == 0 {
		return motion.Plan{}, fmt.Errorf("%w: no valid commands returned", ErrInference)
	}
	desc := "No description provided."
	if p.Description != nil {
		desc = *p.Description
	}
	return motion.Plan{Commands: motion.NormalizeAll(p.Commands, limit), Description: desc}, nil
}

func compact(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
