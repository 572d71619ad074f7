// Package hub tracks the live set of downstream client connections and fans
// messages out to them on a best-effort basis.
package hub

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"RoverRelay/internal/metrics"
)

// ErrClientClosed is returned when sending on a closed connection.
var ErrClientClosed = errors.New("client connection closed")

// Conn is one downstream connection.
type Conn interface {
	ID() string
	Send(msg []byte) error
	Close() error
}

// Registry is the set of registered connections.
// Broadcast never holds the lock while sending, so Register and Unregister
// may run concurrently with an in-flight broadcast.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]Conn
	log   *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{conns: make(map[string]Conn), log: log.With("component", "hub")}
}

// Register adds a connection.
func (r *Registry) Register(c Conn) {
	r.mu.Lock()
	r.conns[c.ID()] = c
	n := len(r.conns)
	r.mu.Unlock()
	metrics.ClientsConnected.Set(float64(n))
	r.log.Info("client registered", "client", c.ID(), "clients", n)
}

// Unregister removes a connection. Removing an unknown connection is a no-op.
func (r *Registry) Unregister(c Conn) {
	r.mu.Lock()
	_, ok := r.conns[c.ID()]
	delete(r.conns, c.ID())
	n := len(r.conns)
	r.mu.Unlock()
	if ok {
		metrics.ClientsConnected.Set(float64(n))
		r.log.Info("client unregistered", "client", c.ID(), "clients", n)
	}
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

func (r *Registry) snapshot() []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Conn, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c)
	}
	return out
}

// Broadcast encodes v as JSON and delivers it to every registered connection.
// Each delivery is independent; a connection whose send fails is removed and
// closed without affecting the others. Broadcast returns once every attempt
// has finished.
func (r *Registry) Broadcast(v any) {
	msg, err := json.Marshal(v)
	if err != nil {
		r.log.Error("broadcast encode failed", "error", err)
		return
	}
	conns := r.snapshot()
	if len(conns) == 0 {
		return
	}

	var wg sync.WaitGroup
	wg.Add(len(conns))
	for _, c := range conns {
		go func(c Conn) {
			defer wg.Done()
			if err := c.Send(msg); err != nil {
				metrics.BroadcastFailures.Inc()
				r.log.Warn("client send failed, dropping client", "client", c.ID(), "error", err)
				r.Unregister(c)
				if cerr := c.Close(); cerr != nil && !errors.Is(cerr, ErrClientClosed) {
					r.log.Debug("client close after failed send", "client", c.ID(), "error", cerr)
				}
			}
		}(c)
	}
	wg.Wait()
}

// SendTo encodes v and delivers it to a single connection only.
func (r *Registry) SendTo(c Conn, v any) error {
	msg, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Send(msg)
}

// CloseAll closes and removes every connection.
func (r *Registry) CloseAll() {
	for _, c := range r.snapshot() {
		r.Unregister(c)
		_ = c.Close()
	}
}
