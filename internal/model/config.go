// Package model defines shared configuration structures used to initialize the relay.
// It includes global settings, the driver link, the external inference and speech
// services, and the motion control tunables.
package model

import (
	"fmt"
	"time"
)

// Config represents the root structure loaded from configs/config.yml.
type Config struct {
	Global    GlobalConfig    `yaml:"global"`
	Driver    DriverConfig    `yaml:"driver"`
	Inference InferenceConfig `yaml:"inference"`
	Speech    SpeechConfig    `yaml:"speech"`
	Control   ControlConfig   `yaml:"control"`
	Log       LogConfig       `yaml:"log"`
}

// GlobalConfig defines the client-facing HTTP surface.
type GlobalConfig struct {
	ListenAddr string `yaml:"listen_addr"` // address for the client server (e.g. ":8000")
	StaticDir  string `yaml:"static_dir"`  // optional front-end directory served at / and /static/
}

// DriverConfig defines how the relay reaches the single upstream driver.
type DriverConfig struct {
	Transport      string        `yaml:"transport"` // websocket or serial
	URL            string        `yaml:"url"`       // websocket URL of the driver
	SerialDev      string        `yaml:"serial_device"`
	SerialBaud     int           `yaml:"serial_baud"`
	WireFormat     string        `yaml:"wire_format"` // json or csv
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	CommandRate    float64       `yaml:"command_rate"` // outbound commands per second
	CommandBurst   int           `yaml:"command_burst"`
}

// InferenceConfig defines the vision-language service (Ollama /api/generate).
type InferenceConfig struct {
	Host             string        `yaml:"host"`
	Model            string        `yaml:"model"`
	Timeout          time.Duration `yaml:"timeout"`
	Temperature      float64       `yaml:"temperature"`
	TopP             float64       `yaml:"top_p"`
	NumPredict       int           `yaml:"num_predict"`
	BreakerFailures  uint32        `yaml:"breaker_failures"` // consecutive failures before the breaker opens
	BreakerOpenDelay time.Duration `yaml:"breaker_open_delay"`
}

// SpeechConfig defines the text-to-speech service.
type SpeechConfig struct {
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`
	Voice    string `yaml:"voice"`
	Format   string `yaml:"format"`   // audio container, also used in the data URI
	TempDir  string `yaml:"temp_dir"` // transient files; empty means os.TempDir()
}

// ControlConfig holds motion safety bounds and pacing.
type ControlConfig struct {
	MaxSpeed       float64       `yaml:"max_speed"`
	DirectSpeed    float64       `yaml:"direct_speed"`
	Pacing         time.Duration `yaml:"pacing"`        // wait after each driver send
	CommandDelay   time.Duration `yaml:"command_delay"` // extra gap between commands of a manual plan
	DirectHold     time.Duration `yaml:"direct_hold"`   // hold after a direct command
	LoopCadence    time.Duration `yaml:"loop_cadence"`
	SerializePlans *bool         `yaml:"serialize_plans"`
}

// LogConfig selects slog level and handler format.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ApplyDefaults fills every zero field with its default.
func (c *Config) ApplyDefaults() {
	if c.Global.ListenAddr == "" {
		c.Global.ListenAddr = ":8000"
	}

	d := &c.Driver
	if d.Transport == "" {
		d.Transport = "websocket"
	}
	if d.URL == "" {
		d.URL = "ws://127.0.0.1:8766"
	}
	if d.SerialBaud == 0 {
		d.SerialBaud = 115200
	}
	if d.WireFormat == "" {
		if d.Transport == "serial" {
			d.WireFormat = "csv"
		} else {
			d.WireFormat = "json"
		}
	}
	if d.ReconnectDelay == 0 {
		d.ReconnectDelay = 5 * time.Second
	}
	if d.CommandRate == 0 {
		d.CommandRate = 50
	}
	if d.CommandBurst == 0 {
		d.CommandBurst = 5
	}

	inf := &c.Inference
	if inf.Host == "" {
		inf.Host = "http://localhost:11434"
	}
	if inf.Model == "" {
		inf.Model = "granite3.2-vision"
	}
	if inf.Timeout == 0 {
		inf.Timeout = 300 * time.Second
	}
	if inf.Temperature == 0 {
		inf.Temperature = 0.5
	}
	if inf.TopP == 0 {
		inf.TopP = 0.95
	}
	if inf.NumPredict == 0 {
		inf.NumPredict = 512
	}
	if inf.BreakerFailures == 0 {
		inf.BreakerFailures = 5
	}
	if inf.BreakerOpenDelay == 0 {
		inf.BreakerOpenDelay = 30 * time.Second
	}

	sp := &c.Speech
	if sp.Endpoint == "" {
		sp.Endpoint = "http://localhost:5050/v1/audio/speech"
	}
	if sp.Model == "" {
		sp.Model = "tts-1"
	}
	if sp.Voice == "" {
		sp.Voice = "en-US-JennyNeural"
	}
	if sp.Format == "" {
		sp.Format = "mp3"
	}

	ctl := &c.Control
	if ctl.MaxSpeed == 0 {
		ctl.MaxSpeed = 0.4
	}
	if ctl.DirectSpeed == 0 {
		ctl.DirectSpeed = 0.2
	}
	if ctl.Pacing == 0 {
		ctl.Pacing = 50 * time.Millisecond
	}
	if ctl.CommandDelay == 0 {
		ctl.CommandDelay = 100 * time.Millisecond
	}
	if ctl.DirectHold == 0 {
		ctl.DirectHold = 1100 * time.Millisecond
	}
	if ctl.LoopCadence == 0 {
		ctl.LoopCadence = 100 * time.Millisecond
	}
	if ctl.SerializePlans == nil {
		on := true
		ctl.SerializePlans = &on
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate rejects settings the relay cannot run with.
func (c *Config) Validate() error {
	switch c.Driver.Transport {
	case "websocket":
		if c.Driver.URL == "" {
			return fmt.Errorf("driver.url is required for websocket transport")
		}
	case "serial":
		if c.Driver.SerialDev == "" {
			return fmt.Errorf("driver.serial_device is required for serial transport")
		}
	default:
		return fmt.Errorf("driver.transport must be websocket or serial, got %q", c.Driver.Transport)
	}
	if c.Driver.WireFormat != "json" && c.Driver.WireFormat != "csv" {
		return fmt.Errorf("driver.wire_format must be json or csv, got %q", c.Driver.WireFormat)
	}
	if c.Control.MaxSpeed < 0 {
		return fmt.Errorf("control.max_speed must not be negative")
	}
	if c.Control.DirectSpeed < 0 {
		return fmt.Errorf("control.direct_speed must not be negative")
	}
	if c.Driver.CommandRate < 0 {
		return fmt.Errorf("driver.command_rate must not be negative")
	}
	return nil
}
