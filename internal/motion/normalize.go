package motion

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	// MaxSpeed is the hard ceiling for any speed sent to the driver.
	MaxSpeed = 0.4
	// DefaultSpeed applies when a command carries no usable speed.
	DefaultSpeed = 0.2
	// DefaultSteering applies when a command carries no usable steering.
	DefaultSteering = 0.0
)

// RawCommand is a motion command as proposed by a client or the inference
// service. Parameter values are untyped because model output is not trusted.
type RawCommand struct {
	Command    string         `json:"command"`
	Parameters map[string]any `json:"parameters"`
	TTS        string         `json:"tts"`
}

// Normalize clamps raw against MaxSpeed. It never fails.
func Normalize(raw RawCommand) Command {
	return NormalizeWithLimit(raw, MaxSpeed)
}

// NormalizeWithLimit clamps raw against limit, which itself never exceeds MaxSpeed.
func NormalizeWithLimit(raw RawCommand, limit float64) Command {
	limit = clamp(limit, 0, MaxSpeed)
	kind := ParseKind(raw.Command)

	speed, ok := number(raw.Parameters["speed"])
	if !ok {
		speed = DefaultSpeed
	}
	steering, ok := number(raw.Parameters["steering"])
	if !ok {
		steering = DefaultSteering
	}

	text := strings.TrimSpace(raw.TTS)
	if text == "" {
		text = fmt.Sprintf("Executing %s.", kind)
	}

	return Command{
		Kind:       kind,
		Speed:      clamp(speed, 0, limit),
		Steering:   clamp(steering, -1, 1),
		SpokenText: text,
	}
}

// NormalizeAll normalizes a raw command list in order.
func NormalizeAll(raws []RawCommand, limit float64) []Command {
	out := make([]Command, 0, len(raws))
	for _, r := range raws {
		out = append(out, NormalizeWithLimit(r, limit))
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

// number coerces the loosely typed JSON values models tend to emit.
func number(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		x, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = x
	case string:
		x, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = x
	default:
		return 0, false
	}
	if math.IsNaN(f) {
		return 0, false
	}
	return f, true
}
