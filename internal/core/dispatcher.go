package core

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"RoverRelay/internal/model"
	"RoverRelay/internal/motion"
)

const notConnectedMsg = "Driver not connected!"

// notice is a status message that carries no motion.
func notice(text string) model.ClientReply {
	return model.ClientReply{Response: text, DriverCommand: string(motion.None)}
}

// Speaker turns text into an audio data URI, or "" when synthesis fails.
type Speaker interface {
	SynthesizeURI(ctx context.Context, text string) string
}

// DispatchOptions tunes one Dispatch call.
type DispatchOptions struct {
	// Feedback broadcasts a response with audio after every command.
	Feedback    bool
	Description string
	// Delay is an extra gap between consecutive commands.
	Delay time.Duration
}

// Dispatcher sends a plan's commands to the driver in order with pacing.
// With serialization on, plans from different sources never interleave.
type Dispatcher struct {
	link   CommandSender
	speech Speaker
	hub    Broadcaster
	clock  clockwork.Clock
	pacing time.Duration
	slot   chan struct{}
	log    *slog.Logger
}

// NewDispatcher builds a Dispatcher. A nil clock means the real clock.
func NewDispatcher(link CommandSender, sp Speaker, hub Broadcaster, pacing time.Duration, serialize bool, clock clockwork.Clock, log *slog.Logger) *Dispatcher {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = slog.Default()
	}
	d := &Dispatcher{
		link:   link,
		speech: sp,
		hub:    hub,
		clock:  clock,
		pacing: pacing,
		log:    log.With("component", "dispatcher"),
	}
	if serialize {
		d.slot = make(chan struct{}, 1)
	}
	return d
}

// Dispatch sends every dispatchable command of plan. A None command is
// skipped. If the link is unavailable a notice is broadcast and the rest of
// the plan is dropped; the error is returned.
func (d *Dispatcher) Dispatch(ctx context.Context, plan motion.Plan, opts DispatchOptions) error {
	if d.slot != nil {
		select {
		case d.slot <- struct{}{}:
			defer func() { <-d.slot }()
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for i, c := range plan.Commands {
		if !c.Dispatchable() {
			continue
		}
		if err := d.link.SendCommand(ctx, c); err != nil {
			if errors.Is(err, ErrLinkUnavailable) {
				d.log.Warn("driver unavailable, dropping rest of plan", "remaining", len(plan.Commands)-i)
				d.hub.Broadcast(notice(notConnectedMsg))
			}
			return err
		}

		if opts.Feedback {
			audio := make(chan string, 1)
			go func(text string) { audio <- d.speech.SynthesizeURI(ctx, text) }(c.SpokenText)
			err := sleepCtx(ctx, d.clock, d.pacing)
			reply := model.ClientReply{
				Response:      c.SpokenText,
				DriverCommand: string(c.Kind),
				Audio:         <-audio,
				Description:   opts.Description,
			}
			if err != nil {
				return err
			}
			d.hub.Broadcast(reply)
		} else if err := sleepCtx(ctx, d.clock, d.pacing); err != nil {
			return err
		}

		if opts.Delay > 0 && i < len(plan.Commands)-1 {
			if err := sleepCtx(ctx, d.clock, opts.Delay); err != nil {
				return err
			}
		}
	}
	return nil
}

// sleepCtx waits d on clock or until ctx is done.
func sleepCtx(ctx context.Context, clock clockwork.Clock, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := clock.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.Chan():
		return nil
	}
}
