package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"

	"RoverRelay/internal/device"
	"RoverRelay/internal/frame"
	"RoverRelay/internal/metrics"
	"RoverRelay/internal/model"
	"RoverRelay/internal/motion"
	"RoverRelay/internal/parser"
)

// ErrLinkUnavailable is returned when no driver connection is up.
var ErrLinkUnavailable = errors.New("driver link unavailable")

// LinkState is the driver connection state.
type LinkState int32

const (
	Disconnected LinkState = iota
	Connecting
	Connected
)

func (s LinkState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	}
	return "disconnected"
}

// Broadcaster fans a message out to every client.
type Broadcaster interface {
	Broadcast(v any)
}

// CommandSender accepts normalized commands for the driver.
type CommandSender interface {
	SendCommand(ctx context.Context, c motion.Command) error
}

// DriverLink owns the single upstream driver connection. A supervisory loop
// dials, reads frames until the connection fails, then waits the backoff and
// dials again, until Stop.
type DriverLink struct {
	dialer  device.Dialer
	parser  parser.Parser
	frames  *frame.Cache
	hub     Broadcaster
	backoff time.Duration
	clock   clockwork.Clock
	limiter *rate.Limiter
	log     *slog.Logger

	state atomic.Int32
	mu    sync.Mutex
	dev   device.Device

	cancel context.CancelFunc
	stop   chan struct{}
	wg     sync.WaitGroup
}

// DriverLinkOptions configures a DriverLink.
type DriverLinkOptions struct {
	Dialer  device.Dialer
	Parser  parser.Parser
	Frames  *frame.Cache
	Hub     Broadcaster
	Backoff time.Duration
	Rate    float64 // commands per second, 0 disables limiting
	Burst   int
	Clock   clockwork.Clock
	Logger  *slog.Logger
}

// NewDriverLink constructs a DriverLink. Start launches its loop.
func NewDriverLink(o DriverLinkOptions) *DriverLink {
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Backoff <= 0 {
		o.Backoff = 5 * time.Second
	}
	limit := rate.Inf
	if o.Rate > 0 {
		limit = rate.Limit(o.Rate)
	}
	if o.Burst < 1 {
		o.Burst = 1
	}
	return &DriverLink{
		dialer:  o.Dialer,
		parser:  o.Parser,
		frames:  o.Frames,
		hub:     o.Hub,
		backoff: o.Backoff,
		clock:   o.Clock,
		limiter: rate.NewLimiter(limit, o.Burst),
		log:     o.Logger.With("component", "driver"),
		stop:    make(chan struct{}),
	}
}

// State returns the current connection state.
func (l *DriverLink) State() LinkState { return LinkState(l.state.Load()) }

func (l *DriverLink) setState(s LinkState) {
	l.state.Store(int32(s))
	metrics.DriverLinkState.Set(float64(s))
}

// Start begins the connect/read loop in a background goroutine.
func (l *DriverLink) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.wg.Add(1)
	go l.loop(ctx)
}

// Stop ends the loop, closes the current connection and waits for the loop to exit.
func (l *DriverLink) Stop() {
	// close stop channel (idempotent)
	select {
	case <-l.stop:
	default:
		close(l.stop)
	}
	if l.cancel != nil {
		l.cancel()
	}
	l.mu.Lock()
	if l.dev != nil {
		_ = l.dev.Close()
	}
	l.mu.Unlock()
	l.wg.Wait()
}

func (l *DriverLink) stopped() bool {
	select {
	case <-l.stop:
		return true
	default:
		return false
	}
}

func (l *DriverLink) loop(ctx context.Context) {
	defer l.wg.Done()
	for !l.stopped() {
		l.setState(Connecting)
		dev, err := l.dialer.Dial(ctx)
		if err != nil {
			l.setState(Disconnected)
			if l.stopped() {
				return
			}
			metrics.DriverReconnects.Inc()
			l.log.Error("driver connection failed", "error", err, "retry_in", l.backoff)
			if !l.wait() {
				return
			}
			continue
		}

		l.mu.Lock()
		l.dev = dev
		l.mu.Unlock()
		l.setState(Connected)
		l.log.Info("connected to driver")

		err = l.readLoop(dev)

		l.mu.Lock()
		if l.dev == dev {
			l.dev = nil
		}
		l.mu.Unlock()
		l.setState(Disconnected)
		if cerr := dev.Close(); cerr != nil {
			l.log.Debug("close driver device", "error", cerr)
		}
		if l.stopped() {
			return
		}
		metrics.DriverReconnects.Inc()
		l.log.Error("driver connection lost", "error", err, "retry_in", l.backoff)
		if !l.wait() {
			return
		}
	}
}

// wait sleeps the backoff; false means Stop was called.
func (l *DriverLink) wait() bool {
	t := l.clock.NewTimer(l.backoff)
	defer t.Stop()
	select {
	case <-l.stop:
		return false
	case <-t.Chan():
		return true
	}
}

// readLoop pushes every inbound frame to the cache and the clients. It
// returns the first read error.
func (l *DriverLink) readLoop(dev device.Device) error {
	for {
		line, err := dev.ReadLine(0)
		if err != nil {
			return err
		}
		msg, err := l.parser.DecodeFrame(line)
		if err != nil {
			l.log.Warn("undecodable driver message", "error", err)
			continue
		}
		if msg.Image == "" {
			l.log.Debug("driver message without image")
			continue
		}
		l.frames.Update(frame.New(msg.Image))
		metrics.FramesReceived.Inc()
		l.hub.Broadcast(model.ClientReply{Image: msg.Image})
	}
}

// SendCommand writes c to the driver. It fails with ErrLinkUnavailable when
// not connected; a write error tears the connection down so the loop reconnects.
func (l *DriverLink) SendCommand(ctx context.Context, c motion.Command) error {
	kind := string(c.Kind)
	if !c.Dispatchable() {
		return fmt.Errorf("command %q is not dispatchable", kind)
	}
	l.mu.Lock()
	dev := l.dev
	l.mu.Unlock()
	if dev == nil || l.State() != Connected {
		metrics.CommandsSent.WithLabelValues(kind, "unavailable").Inc()
		return ErrLinkUnavailable
	}

	if err := l.limiter.Wait(ctx); err != nil {
		return err
	}
	line, err := l.parser.EncodeCommand(c.ToDriver())
	if err != nil {
		metrics.CommandsSent.WithLabelValues(kind, "error").Inc()
		return err
	}
	if err := dev.WriteLine(line); err != nil {
		metrics.CommandsSent.WithLabelValues(kind, "error").Inc()
		l.log.Error("driver send failed, dropping connection", "error", err)
		_ = dev.Close()
		return fmt.Errorf("%w: %v", ErrLinkUnavailable, err)
	}
	metrics.CommandsSent.WithLabelValues(kind, "sent").Inc()
	l.log.Debug("command sent", "command", kind, "speed", c.Speed, "steering", c.Steering)
	return nil
}
