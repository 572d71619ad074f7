package device

import (
	"log/slog"
	"time"

	"RoverRelay/internal/model"
	"RoverRelay/internal/parser"
)

// RoverSimulator plays the driver end of the link for local testing: it
// streams camera frames over a Device and logs the commands it receives.
type RoverSimulator struct {
	ID       string
	Dev      Device
	Parser   parser.Parser
	Frames   *FrameSource
	Interval time.Duration
	// OnCommand, if set, is called for every decoded command.
	OnCommand func(model.DriverCommand)

	log *slog.Logger
}

// NewRoverSimulator creates a simulator writing to dev.
func NewRoverSimulator(id string, dev Device, p parser.Parser, frames *FrameSource, interval time.Duration, log *slog.Logger) *RoverSimulator {
	if log == nil {
		log = slog.Default()
	}
	return &RoverSimulator{
		ID:       id,
		Dev:      dev,
		Parser:   p,
		Frames:   frames,
		Interval: interval,
		log:      log.With("component", "rover-sim", "id", id),
	}
}

// StartSimulation streams frames until stop is closed or the device fails.
// The device is closed on return.
func (r *RoverSimulator) StartSimulation(stop <-chan struct{}) error {
	defer func() {
		if err := r.Dev.Close(); err != nil {
			r.log.Warn("failed to close device", "error", err)
		}
	}()
	r.log.Info("simulator started", "interval", r.Interval, "frames", r.Frames.Len())

	readDone := make(chan error, 1)
	go func() { readDone <- r.readCommands() }()

	tick := time.NewTicker(r.Interval)
	defer tick.Stop()
	for {
		line, err := r.Parser.EncodeFrame(model.DriverMessage{Image: r.Frames.Next()})
		if err != nil {
			return err
		}
		if err := r.Dev.WriteLine(line); err != nil {
			r.log.Warn("frame write failed", "error", err)
			return err
		}

		select {
		case <-stop:
			r.log.Info("simulation stopped")
			return nil
		case err := <-readDone:
			r.log.Info("relay disconnected", "error", err)
			return err
		case <-tick.C:
		}
	}
}

func (r *RoverSimulator) readCommands() error {
	for {
		line, err := r.Dev.ReadLine(0)
		if err != nil {
			return err
		}
		c, err := r.Parser.DecodeCommand(line)
		if err != nil {
			r.log.Warn("bad command line", "line", line, "error", err)
			continue
		}
		r.log.Info("command received", "command", c.Command, "speed", c.Parameters.Speed, "steering", c.Parameters.Steering)
		if r.OnCommand != nil {
			r.OnCommand(c)
		}
	}
}
