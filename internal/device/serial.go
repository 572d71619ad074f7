// Package device implements SerialDevice using go.bug.st/serial,
// which provides real serial communication support for drivers wired over UART.
package device

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	serial "go.bug.st/serial"
)

// SerialDevice implements Device using go.bug.st/serial.
type SerialDevice struct {
	port serial.Port
	r    *bufio.Reader
	dev  string
	baud int
	wmu  sync.Mutex
}

// NewSerialDialer returns a Dialer that opens dev at baud on every call.
func NewSerialDialer(dev string, baud int) Dialer {
	return DialFunc(func(ctx context.Context) (Device, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return NewSerialDevice(dev, baud)
	})
}

// NewSerialDevice creates and opens a serial device with the given path and baudrate.
func NewSerialDevice(dev string, baud int) (*SerialDevice, error) {
	p, err := serial.Open(dev, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial %s: %w", dev, err)
	}
	return newSerialDevice(p, dev, baud), nil
}

func newSerialDevice(p serial.Port, dev string, baud int) *SerialDevice {
	return &SerialDevice{port: p, r: bufio.NewReader(p), dev: dev, baud: baud}
}

// Close closes the underlying serial connection.
func (s *SerialDevice) Close() error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	return err
}

// ReadLine reads a single line from the serial port, blocking until newline or timeout.
func (s *SerialDevice) ReadLine(timeout time.Duration) (string, error) {
	s.wmu.Lock()
	open := s.port != nil
	s.wmu.Unlock()
	if !open {
		return "", errors.New("serial port not open")
	}

	ch := make(chan struct {
		line string
		err  error
	}, 1)

	go func() {
		line, err := s.r.ReadString('\n')
		ch <- struct {
			line string
			err  error
		}{line, err}
	}()

	if timeout <= 0 {
		res := <-ch
		return res.line, res.err
	}

	select {
	case res := <-ch:
		return res.line, res.err
	case <-time.After(timeout):
		return "", errors.New("read timeout")
	}
}

// WriteLine writes a single line followed by '\n' to the serial port.
func (s *SerialDevice) WriteLine(line string) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if s.port == nil {
		return errors.New("serial port not open")
	}
	_, err := s.port.Write(append([]byte(line), '\n'))
	return err
}
