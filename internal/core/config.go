package core

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
	"gopkg.in/yaml.v3"

	"RoverRelay/internal/model"
)

// envOverrides are deployment settings that may come from the environment
// (or a .env file) instead of the YAML file.
type envOverrides struct {
	ListenAddr      string `env:"RELAY_LISTEN_ADDR"`
	StaticDir       string `env:"RELAY_STATIC_DIR"`
	DriverTransport string `env:"RELAY_DRIVER_TRANSPORT"`
	DriverURL       string `env:"RELAY_DRIVER_URL"`
	SerialDevice    string `env:"RELAY_DRIVER_SERIAL_DEVICE"`
	OllamaHost      string `env:"RELAY_OLLAMA_HOST"`
	OllamaModel     string `env:"RELAY_OLLAMA_MODEL"`
	SpeechEndpoint  string `env:"RELAY_SPEECH_ENDPOINT"`
	SpeechVoice     string `env:"RELAY_SPEECH_VOICE"`
	LogLevel        string `env:"RELAY_LOG_LEVEL"`
	LogFormat       string `env:"RELAY_LOG_FORMAT"`
}

// LoadConfig reads the YAML file at path, applies RELAY_* environment
// overrides, fills defaults and validates the result. An empty path means
// defaults plus environment only.
func LoadConfig(path string) (*model.Config, error) {
	var cfg model.Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}
	var ov envOverrides
	if err := env.Load(&ov, nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}
	ov.apply(&cfg)

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (o envOverrides) apply(cfg *model.Config) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.Global.ListenAddr, o.ListenAddr)
	set(&cfg.Global.StaticDir, o.StaticDir)
	set(&cfg.Driver.Transport, o.DriverTransport)
	set(&cfg.Driver.URL, o.DriverURL)
	set(&cfg.Driver.SerialDev, o.SerialDevice)
	set(&cfg.Inference.Host, o.OllamaHost)
	set(&cfg.Inference.Model, o.OllamaModel)
	set(&cfg.Speech.Endpoint, o.SpeechEndpoint)
	set(&cfg.Speech.Voice, o.SpeechVoice)
	set(&cfg.Log.Level, o.LogLevel)
	set(&cfg.Log.Format, o.LogFormat)
}
