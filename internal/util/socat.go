package util

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"
)

// SocatManager owns socat processes that link pairs of pseudo terminals, so
// the relay and the driver simulator can talk over a virtual serial line.
type SocatManager struct {
	mu     sync.Mutex
	cmds   []*exec.Cmd
	links  []string
	closed bool
	log    *slog.Logger
}

// NewSocatManager initializes an empty manager.
func NewSocatManager(log *slog.Logger) *SocatManager {
	if log == nil {
		log = slog.Default()
	}
	return &SocatManager{log: log.With("component", "virt-serial")}
}

// CreatePair starts socat linking two PTYs at the given paths and waits
// until both links exist.
func (m *SocatManager) CreatePair(left, right string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("socat manager closed")
	}

	cmd := exec.Command(
		"socat",
		fmt.Sprintf("pty,raw,echo=0,link=%s", left),
		fmt.Sprintf("pty,raw,echo=0,link=%s", right),
	)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start socat: %w", err)
	}
	m.cmds = append(m.cmds, cmd)
	m.links = append(m.links, left, right)
	m.log.Info("started socat", "pid", cmd.Process.Pid, "left", left, "right", right)

	deadline := time.Now().Add(3 * time.Second)
	for !exists(left) || !exists(right) {
		if time.Now().After(deadline) {
			return fmt.Errorf("socat links %s and %s did not appear", left, right)
		}
		time.Sleep(50 * time.Millisecond)
	}
	return nil
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// Cleanup stops every socat process and removes the links. Safe to call twice.
func (m *SocatManager) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true

	for _, cmd := range m.cmds {
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
			_, _ = cmd.Process.Wait()
		}
	}
	for _, path := range m.links {
		if exists(path) {
			_ = os.Remove(path)
		}
	}
	m.log.Info("virtual serial cleanup complete", "pairs", len(m.links)/2)
}
