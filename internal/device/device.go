// Package device defines the line transport used to reach the driver.
// The driver is reached over a websocket or a serial link; both carry one
// record per line (message).
package device

import (
	"context"
	"time"
)

// Device defines an abstract interface for driver transports (websocket, serial).
// Implementations provide ReadLine/WriteLine operations with optional timeout.
// WriteLine must be safe to call concurrently with ReadLine.
type Device interface {
	// ReadLine reads a single record.
	// If timeout > 0, it must return after timeout even if no data available.
	ReadLine(timeout time.Duration) (string, error)

	// WriteLine writes a single record to the device.
	WriteLine(s string) error

	// Close closes the device and releases underlying resources.
	// A blocked ReadLine must return once Close is called.
	Close() error
}

// Dialer opens a fresh Device. The driver link calls it on every reconnect.
type Dialer interface {
	Dial(ctx context.Context) (Device, error)
}

// DialFunc adapts a function to Dialer.
type DialFunc func(ctx context.Context) (Device, error)

// Dial calls f.
func (f DialFunc) Dial(ctx context.Context) (Device, error) { return f(ctx) }
