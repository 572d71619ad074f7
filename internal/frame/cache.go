// Package frame holds the most recent camera frame received from the driver.
package frame

import (
	"hash/fnv"
	"sync/atomic"
	"time"
)

// Fingerprint is a byte-level digest of an encoded frame.
type Fingerprint uint64

// Frame is an immutable telemetry frame. Replace it, never mutate it.
type Frame struct {
	Payload     string // base64 encoded image as received
	Fingerprint Fingerprint
	Received    time.Time
}

// New builds a Frame and computes its fingerprint.
func New(payload string) *Frame {
	return &Frame{Payload: payload, Fingerprint: FingerprintOf(payload), Received: time.Now()}
}

// FingerprintOf hashes the encoded payload with FNV-1a.
func FingerprintOf(payload string) Fingerprint {
	h := fnv.New64a()
	_, _ = h.Write([]byte(payload))
	return Fingerprint(h.Sum64())
}

// Cache keeps only the latest frame. Last write wins.
type Cache struct {
	cur atomic.Pointer[Frame]
}

// NewCache returns an empty cache.
func NewCache() *Cache { return &Cache{} }

// Update replaces the current frame.
func (c *Cache) Update(f *Frame) { c.cur.Store(f) }

// Current returns the latest frame or nil.
func (c *Cache) Current() *Frame { return c.cur.Load() }
