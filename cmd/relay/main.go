// Package main is the entry point of the rover relay.
// It initializes the logger, loads the configuration, constructs the driver
// link, the inference and speech gateways and the client server, and runs
// them until interrupted.
package main

import (
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"RoverRelay/internal/core"
	"RoverRelay/internal/util"
)

func main() {
	util.SetupLogger("info", "text")

	cfgPath := flag.String("c", "configs/config.yml", "path to configuration file")
	flag.Parse()

	util.Info("using config %s", *cfgPath)

	sys, err := core.NewSystem(*cfgPath)
	if err != nil {
		util.Error("failed to create system: %v", err)
		os.Exit(1)
	}
	cfg := sys.Config()
	slog.Info("relay configured",
		"listen", cfg.Global.ListenAddr,
		"driver_transport", cfg.Driver.Transport,
		"driver_url", cfg.Driver.URL,
		"model", cfg.Inference.Model,
		"max_speed", cfg.Control.MaxSpeed,
	)

	if err := sys.StartAll(); err != nil {
		util.Error("failed to start system: %v", err)
		os.Exit(1)
	}

	// wait for Ctrl+C, SIGTERM or a fatal server error
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	exit := 0
	select {
	case <-stop:
	case err := <-sys.Errors():
		if err != nil {
			exit = 1
		}
	}

	slog.Info("shutting down relay")
	sys.StopAll()
	slog.Info("relay stopped cleanly")
	os.Exit(exit)
}
