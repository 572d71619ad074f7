package core

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"RoverRelay/internal/frame"
	"RoverRelay/internal/inference"
	"RoverRelay/internal/metrics"
	"RoverRelay/internal/model"
	"RoverRelay/internal/motion"
)

// Autopilot repeatedly turns the latest camera frame into a motion plan and
// dispatches it. It is either stopped or running; a running loop owns a
// cancel func and a done channel. The run stays registered until its loop
// has exited, so a new loop never overlaps one that is still unwinding.
type Autopilot struct {
	frames  *frame.Cache
	infer   inference.Gateway
	disp    *Dispatcher
	speech  Speaker
	hub     Broadcaster
	link    CommandSender
	clock   clockwork.Clock
	cadence time.Duration
	log     *slog.Logger

	mu  sync.Mutex
	run *autopilotRun
}

type autopilotRun struct {
	cancel   context.CancelFunc
	done     chan struct{}
	stopping bool
}

// AutopilotOptions wires an Autopilot.
type AutopilotOptions struct {
	Frames     *frame.Cache
	Inference  inference.Gateway
	Dispatcher *Dispatcher
	Speech     Speaker
	Hub        Broadcaster
	Link       CommandSender
	Cadence    time.Duration
	Clock      clockwork.Clock
	Logger     *slog.Logger
}

// NewAutopilot returns a stopped Autopilot.
func NewAutopilot(o AutopilotOptions) *Autopilot {
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return &Autopilot{
		frames:  o.Frames,
		infer:   o.Inference,
		disp:    o.Dispatcher,
		speech:  o.Speech,
		hub:     o.Hub,
		link:    o.Link,
		clock:   o.Clock,
		cadence: o.Cadence,
		log:     o.Logger.With("component", "autopilot"),
	}
}

// Running reports whether a loop is alive, including one being stopped.
func (a *Autopilot) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.run != nil
}

// Start launches the loop with prompt. It returns false if a loop is
// running or still shutting down.
func (a *Autopilot) Start(prompt string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.run != nil {
		return false
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &autopilotRun{cancel: cancel, done: make(chan struct{})}
	a.run = r
	metrics.AutopilotRunning.Set(1)
	a.log.Info("autopilot started", "prompt", prompt)
	go a.loop(ctx, r, prompt)
	return true
}

// Stop cancels the loop, waits for it to exit and then sends an explicit
// stop to the driver. It returns false if no loop was running or another
// Stop is already in progress. If ctx ends first, the stop command is still
// sent and the loop deregisters itself once it exits.
func (a *Autopilot) Stop(ctx context.Context) bool {
	a.mu.Lock()
	r := a.run
	if r == nil || r.stopping {
		a.mu.Unlock()
		return false
	}
	r.stopping = true
	r.cancel()
	a.mu.Unlock()

	select {
	case <-r.done:
	case <-ctx.Done():
		a.log.Warn("autopilot loop did not exit before deadline")
	}

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := a.link.SendCommand(sendCtx, motion.StopCommand()); err != nil && !errors.Is(err, ErrLinkUnavailable) {
		a.log.Error("stop command failed", "error", err)
	}
	a.log.Info("autopilot stopped")
	return true
}

func (a *Autopilot) loop(ctx context.Context, r *autopilotRun, prompt string) {
	defer func() {
		a.mu.Lock()
		if a.run == r {
			a.run = nil
		}
		a.mu.Unlock()
		metrics.AutopilotRunning.Set(0)
		close(r.done)
	}()
	var last *frame.Fingerprint
	for ctx.Err() == nil {
		outcome := a.iterate(ctx, prompt, &last)
		metrics.AutopilotIterations.WithLabelValues(outcome).Inc()
		if sleepCtx(ctx, a.clock, a.cadence) != nil {
			return
		}
	}
}

// iterate runs one observe/decide/act step and names its outcome.
func (a *Autopilot) iterate(ctx context.Context, prompt string, last **frame.Fingerprint) string {
	f := a.frames.Current()
	if f == nil {
		a.hub.Broadcast(model.ClientReply{DriverCommand: string(motion.None)})
		return "no_frame"
	}
	if *last != nil && **last == f.Fingerprint {
		return "unchanged"
	}
	fp := f.Fingerprint
	*last = &fp

	plan := a.infer.Infer(ctx, prompt, f)
	if ctx.Err() != nil {
		return "cancelled"
	}

	audio := make(chan string, 1)
	go func() { audio <- a.speech.SynthesizeURI(ctx, plan.Utterance()) }()
	err := a.disp.Dispatch(ctx, plan, DispatchOptions{})
	uri := <-audio
	if ctx.Err() != nil {
		return "cancelled"
	}
	if err != nil {
		a.log.Warn("plan dispatch incomplete", "error", err)
	}

	a.hub.Broadcast(model.ClientReply{DriverCommand: plan.Kinds(), Audio: uri})
	if plan.IsFallback() {
		return "fallback"
	}
	return "dispatched"
}
