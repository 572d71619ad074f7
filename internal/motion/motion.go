// Package motion defines motion commands and plans, and the normalizer that
// clamps every proposed command to the platform's safety bounds before it can
// reach the driver.
package motion

import (
	"fmt"
	"strings"

	"RoverRelay/internal/model"
)

// Kind names a motion primitive understood by the driver.
type Kind string

const (
	Forward  Kind = "forward"
	Backward Kind = "backward"
	Left     Kind = "left"
	Right    Kind = "right"
	Stop     Kind = "stop"
	Cruise   Kind = "cruise"
	None     Kind = "none"
)

// ParseKind maps a free-form command name to a Kind. Unknown names map to None.
func ParseKind(s string) Kind {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case Forward, Backward, Left, Right, Stop, Cruise:
		return k
	}
	return None
}

// IsDirect reports whether name is one of the direct relay commands.
func IsDirect(name string) bool {
	k := ParseKind(name)
	return k != None && string(k) == name
}

// Command is a normalized motion command. Speed and Steering are always within bounds.
type Command struct {
	Kind       Kind
	Speed      float64
	Steering   float64
	SpokenText string
}

// Dispatchable reports whether the command may be sent to the driver.
func (c Command) Dispatchable() bool { return c.Kind != None }

// ToDriver renders the command in the driver wire shape.
func (c Command) ToDriver() model.DriverCommand {
	return model.DriverCommand{
		Command:    string(c.Kind),
		Parameters: model.CommandParams{Speed: c.Speed, Steering: c.Steering},
	}
}

// StopCommand is the safety command sent when autonomy ends.
func StopCommand() Command {
	return Command{Kind: Stop, SpokenText: "Stopping."}
}

// Plan is an ordered command sequence with a scene description.
type Plan struct {
	Commands    []Command
	Description string
}

// FallbackPlan is the single safe Stop returned when inference fails.
func FallbackPlan(cause error) Plan {
	return Plan{
		Commands:    []Command{{Kind: Stop, Speed: 0, Steering: 0, SpokenText: "An error occurred."}},
		Description: fmt.Sprintf("Error: %v", cause),
	}
}

// IsFallback reports whether the plan is a fallback produced by FallbackPlan.
func (p Plan) IsFallback() bool {
	return len(p.Commands) == 1 && p.Commands[0].Kind == Stop && strings.HasPrefix(p.Description, "Error: ")
}

// Kinds lists every command kind in plan order, None included.
func (p Plan) Kinds() []string {
	out := make([]string, 0, len(p.Commands))
	for _, c := range p.Commands {
		out = append(out, string(c.Kind))
	}
	return out
}

// Utterance joins the spoken text of all dispatchable commands.
func (p Plan) Utterance() string {
	var parts []string
	for _, c := range p.Commands {
		if !c.Dispatchable() {
			continue
		}
		if t := strings.TrimSpace(c.SpokenText); t != "" {
			parts = append(parts, t)
		}
	}
	if len(parts) == 0 {
		return "No valid actions to perform."
	}
	return strings.Join(parts, " ")
}
