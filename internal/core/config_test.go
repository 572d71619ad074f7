package core

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoadConfig_YAMLAndDefaults(t *testing.T) {
	p := writeConfig(t, `
global:
  listen_addr: ":9000"
driver:
  transport: serial
  serial_device: /tmp/ttyRELAY
control:
  max_speed: 0.3
  serialize_plans: false
`)
	cfg, err := LoadConfig(p)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Global.ListenAddr)
	assert.Equal(t, "serial", cfg.Driver.Transport)
	assert.Equal(t, "csv", cfg.Driver.WireFormat)
	assert.Equal(t, 115200, cfg.Driver.SerialBaud)
	assert.Equal(t, 0.3, cfg.Control.MaxSpeed)
	require.NotNil(t, cfg.Control.SerializePlans)
	assert.False(t, *cfg.Control.SerializePlans)
	assert.Equal(t, 300*time.Second, cfg.Inference.Timeout)
	assert.Equal(t, "en-US-JennyNeural", cfg.Speech.Voice)
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	p := writeConfig(t, `
inference:
  host: http://ollama.internal:11434
`)
	t.Setenv("RELAY_OLLAMA_HOST", "http://gpu-box:11434")
	t.Setenv("RELAY_DRIVER_URL", "ws://rover.local:8766")
	t.Setenv("RELAY_LOG_LEVEL", "debug")

	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	assert.Equal(t, "http://gpu-box:11434", cfg.Inference.Host)
	assert.Equal(t, "ws://rover.local:8766", cfg.Driver.URL)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfig_Invalid(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "driver:\n  transport: carrier-pigeon\n"))
	assert.ErrorContains(t, err, "driver.transport")

	_, err = LoadConfig(writeConfig(t, "driver: [unclosed"))
	assert.Error(t, err)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSystem_StartStop(t *testing.T) {
	cfg := testConfig()
	cfg.Global.ListenAddr = "127.0.0.1:0"
	sys, err := Assemble(cfg, refusingDialer(), &stubInference{}, stubSpeaker{}, nil)
	require.NoError(t, err)

	require.NoError(t, sys.StartAll())
	require.NoError(t, sys.StartAll())
	sys.StopAll()
	sys.StopAll()

	assert.Error(t, sys.StartAll())
	assert.Equal(t, Disconnected, sys.Link.State())
	assert.False(t, sys.Autopilot.Running())
}
