// Package core contains the runtime of the relay: the driver link, the
// dispatcher, the autopilot, the command relay and the client server, plus
// the System that loads configuration and manages their lifecycle.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"RoverRelay/internal/device"
	"RoverRelay/internal/frame"
	"RoverRelay/internal/hub"
	"RoverRelay/internal/inference"
	"RoverRelay/internal/model"
	"RoverRelay/internal/parser"
	"RoverRelay/internal/speech"
	"RoverRelay/internal/util"
)

// System manages the lifecycle of the relay components.
// It loads configuration from a YAML file and constructs objects accordingly.
type System struct {
	cfgPath string
	cfg     *model.Config
	log     *slog.Logger

	Frames    *frame.Cache
	Hub       *hub.Registry
	Link      *DriverLink
	Autopilot *Autopilot
	Relay     *Relay
	Server    *Server

	started   bool
	stopped   bool
	startLock sync.Mutex
	serveErr  chan error
}

// NewSystem reads the configuration at cfgPath, reconfigures logging from it
// and builds every component.
func NewSystem(cfgPath string) (*System, error) {
	cfg, err := LoadConfig(cfgPath)
	if err != nil {
		return nil, err
	}
	log := util.SetupLogger(cfg.Log.Level, cfg.Log.Format)

	var dialer device.Dialer
	switch cfg.Driver.Transport {
	case "serial":
		dialer = device.NewSerialDialer(cfg.Driver.SerialDev, cfg.Driver.SerialBaud)
	default:
		dialer = device.NewWSDialer(cfg.Driver.URL)
	}
	sp := speech.NewGateway(speech.NewHTTPSynthesizer(cfg.Speech), cfg.Speech.Format, log)
	inf := inference.NewOllamaClient(cfg.Inference, cfg.Control.MaxSpeed, log)

	s, err := Assemble(cfg, dialer, inf, sp, log)
	if err != nil {
		return nil, err
	}
	s.cfgPath = cfgPath
	return s, nil
}

// Assemble wires a System from an already loaded configuration and the
// external collaborators.
func Assemble(cfg *model.Config, dialer device.Dialer, inf inference.Gateway, sp Speaker, log *slog.Logger) (*System, error) {
	if log == nil {
		log = slog.Default()
	}
	p, ok := parser.ForFormat(cfg.Driver.WireFormat)
	if !ok {
		return nil, fmt.Errorf("no parser for wire format %q", cfg.Driver.WireFormat)
	}

	s := &System{cfg: cfg, log: log}
	s.Frames = frame.NewCache()
	s.Hub = hub.NewRegistry(log)
	s.Link = NewDriverLink(DriverLinkOptions{
		Dialer:  dialer,
		Parser:  p,
		Frames:  s.Frames,
		Hub:     s.Hub,
		Backoff: cfg.Driver.ReconnectDelay,
		Rate:    cfg.Driver.CommandRate,
		Burst:   cfg.Driver.CommandBurst,
		Logger:  log,
	})
	serialize := cfg.Control.SerializePlans == nil || *cfg.Control.SerializePlans
	disp := NewDispatcher(s.Link, sp, s.Hub, cfg.Control.Pacing, serialize, nil, log)
	s.Autopilot = NewAutopilot(AutopilotOptions{
		Frames:     s.Frames,
		Inference:  inf,
		Dispatcher: disp,
		Speech:     sp,
		Hub:        s.Hub,
		Link:       s.Link,
		Cadence:    cfg.Control.LoopCadence,
		Logger:     log,
	})
	s.Relay = NewRelay(RelayOptions{
		Link:       s.Link,
		Frames:     s.Frames,
		Inference:  inf,
		Dispatcher: disp,
		Autopilot:  s.Autopilot,
		Speech:     sp,
		Hub:        s.Hub,
		Control:    cfg.Control,
		Logger:     log,
	})
	s.Server = NewServer(cfg.Global.ListenAddr, cfg.Global.StaticDir, s.Hub, s.Relay, s.Health, log)
	return s, nil
}

// Config returns the effective configuration.
func (s *System) Config() *model.Config { return s.cfg }

// Health summarizes the relay state.
func (s *System) Health() model.Health {
	h := model.Health{
		Driver:    s.Link.State().String(),
		Clients:   s.Hub.Len(),
		Autopilot: s.Autopilot.Running(),
	}
	if f := s.Frames.Current(); f != nil {
		h.HasFrame = true
		h.FrameBytes = len(f.Payload)
	}
	return h
}

// StartAll starts the driver link and the client server.
func (s *System) StartAll() error {
	s.startLock.Lock()
	defer s.startLock.Unlock()
	if s.stopped {
		return fmt.Errorf("system already stopped")
	}
	if s.started {
		return nil
	}
	s.Link.Start()

	s.serveErr = make(chan error, 1)
	go func() {
		if err := s.Server.Start(); err != nil {
			s.log.Error("server stopped", "error", err)
			s.serveErr <- err
		}
		close(s.serveErr)
	}()
	s.started = true
	return nil
}

// Errors reports a fatal server error. It is nil before StartAll.
func (s *System) Errors() <-chan error { return s.serveErr }

// StopAll stops the autopilot, the server and the driver link gracefully.
// A stopped System cannot be started again.
func (s *System) StopAll() {
	s.startLock.Lock()
	defer s.startLock.Unlock()
	if !s.started || s.stopped {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.Autopilot.Stop(ctx)
	if err := s.Server.Stop(ctx); err != nil {
		s.log.Warn("server shutdown", "error", err)
	}
	s.Link.Stop()
	s.stopped = true
}
