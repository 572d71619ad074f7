package core

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/jonboulle/clockwork"

	"RoverRelay/internal/frame"
	"RoverRelay/internal/hub"
	"RoverRelay/internal/inference"
	"RoverRelay/internal/model"
	"RoverRelay/internal/motion"
)

const noImageMsg = "No image available!"

// ClientHub is the client side of the relay: broadcast plus point-to-point replies.
type ClientHub interface {
	Broadcaster
	SendTo(c hub.Conn, v any) error
}

// Link is the driver side of the relay.
type Link interface {
	CommandSender
	State() LinkState
}

// Relay interprets client commands: direct motion, describe, custom plans
// and the autopilot toggle.
type Relay struct {
	link      Link
	frames    *frame.Cache
	infer     inference.Gateway
	disp      *Dispatcher
	autopilot *Autopilot
	speech    Speaker
	hub       ClientHub
	ctl       model.ControlConfig
	clock     clockwork.Clock
	log       *slog.Logger
}

// RelayOptions wires a Relay.
type RelayOptions struct {
	Link       Link
	Frames     *frame.Cache
	Inference  inference.Gateway
	Dispatcher *Dispatcher
	Autopilot  *Autopilot
	Speech     Speaker
	Hub        ClientHub
	Control    model.ControlConfig
	Clock      clockwork.Clock
	Logger     *slog.Logger
}

// NewRelay builds a Relay.
func NewRelay(o RelayOptions) *Relay {
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return &Relay{
		link:      o.Link,
		frames:    o.Frames,
		infer:     o.Inference,
		disp:      o.Dispatcher,
		autopilot: o.Autopilot,
		speech:    o.Speech,
		hub:       o.Hub,
		ctl:       o.Control,
		clock:     o.Clock,
		log:       o.Logger.With("component", "relay"),
	}
}

// Handle processes one client request. Errors that concern only the sender
// are replied to the sender; everything else is broadcast.
func (r *Relay) Handle(ctx context.Context, from hub.Conn, req model.ClientRequest) {
	r.log.Debug("client command", "client", from.ID(), "command", req.Command)
	switch {
	case motion.IsDirect(req.Command):
		r.direct(ctx, motion.Kind(req.Command))
	case req.Command == "describe":
		r.describe(ctx, r.prompt(req))
	case req.Command == "custom":
		r.custom(ctx, r.prompt(req))
	case req.Command == "autonomous":
		r.autonomous(ctx, req.Mode(), r.prompt(req))
	default:
		if err := r.hub.SendTo(from, model.ClientReply{Error: "Unknown command: " + req.Command}); err != nil {
			r.log.Warn("reply to client failed", "client", from.ID(), "error", err)
		}
	}
}

func (r *Relay) prompt(req model.ClientRequest) string {
	if text, ok := req.Text(); ok {
		return text
	}
	return "Execute " + req.Command
}

func (r *Relay) direct(ctx context.Context, kind motion.Kind) {
	if r.link.State() != Connected {
		r.hub.Broadcast(notice(notConnectedMsg))
		return
	}
	text := capitalize(string(kind)) + " executed."
	cmd := motion.NormalizeWithLimit(motion.RawCommand{
		Command:    string(kind),
		Parameters: map[string]any{"speed": r.ctl.DirectSpeed, "steering": 0.0},
		TTS:        text,
	}, r.ctl.MaxSpeed)
	if err := r.link.SendCommand(ctx, cmd); err != nil {
		if errors.Is(err, ErrLinkUnavailable) {
			r.hub.Broadcast(notice(notConnectedMsg))
		} else {
			r.log.Error("direct command failed", "command", kind, "error", err)
		}
		return
	}

	r.hub.Broadcast(model.ClientReply{
		Response:      text,
		DriverCommand: string(kind),
		Audio:         r.speech.SynthesizeURI(ctx, text),
	})
	// let the motion play out before the next client message is read
	_ = sleepCtx(ctx, r.clock, r.ctl.DirectHold)
}

func (r *Relay) describe(ctx context.Context, prompt string) {
	f := r.frames.Current()
	if f == nil {
		r.hub.Broadcast(notice(noImageMsg))
		return
	}
	plan := r.infer.Infer(ctx, prompt, f)
	r.hub.Broadcast(model.ClientReply{
		Response:      plan.Description,
		DriverCommand: string(motion.None),
		Audio:         r.speech.SynthesizeURI(ctx, plan.Description),
		Description:   plan.Description,
	})
}

func (r *Relay) custom(ctx context.Context, prompt string) {
	f := r.frames.Current()
	if f == nil {
		r.hub.Broadcast(notice(noImageMsg))
		return
	}
	plan := r.infer.Infer(ctx, prompt, f)
	err := r.disp.Dispatch(ctx, plan, DispatchOptions{
		Feedback:    true,
		Description: plan.Description,
		Delay:       r.ctl.CommandDelay,
	})
	if err != nil && !errors.Is(err, ErrLinkUnavailable) {
		r.log.Error("custom plan aborted", "error", err)
	}
}

func (r *Relay) autonomous(ctx context.Context, mode, prompt string) {
	switch mode {
	case "on":
		if r.autopilot.Start(prompt) {
			r.hub.Broadcast(notice("Autonomous mode started."))
		}
	case "off":
		if r.autopilot.Stop(ctx) {
			r.hub.Broadcast(model.ClientReply{
				Response:      "Autonomous mode stopped.",
				DriverCommand: string(motion.Stop),
			})
		}
	default:
		r.log.Warn("unknown autonomous mode", "mode", mode)
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
