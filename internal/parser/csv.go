// Package parser implements the CSVParser which handles encoding and decoding
// of frames and commands for line-oriented serial drivers.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"RoverRelay/internal/model"
)

// CSVParser implements Parser interface using comma-separated values.
// Example frame: IMG,/9j/4AAQSkZJRg==   Example command: CMD,left,0.20,-0.50
type CSVParser struct{}

// NewCSVParser creates a new CSV parser instance.
func NewCSVParser() *CSVParser { return &CSVParser{} }

// DecodeFrame parses an IMG line. Other record types decode to an empty message.
func (p *CSVParser) DecodeFrame(line string) (model.DriverMessage, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return model.DriverMessage{}, fmt.Errorf("%w: empty line", ErrMalformed)
	}
	tag, rest, found := strings.Cut(line, ",")
	if tag != "IMG" {
		return model.DriverMessage{}, nil
	}
	if !found || rest == "" {
		return model.DriverMessage{}, fmt.Errorf("%w: IMG without payload", ErrMalformed)
	}
	// base64 never contains commas; anything after one is junk from the link
	if strings.Contains(rest, ",") {
		return model.DriverMessage{}, fmt.Errorf("%w: expected 2 fields", ErrMalformed)
	}
	return model.DriverMessage{Image: rest}, nil
}

// EncodeCommand converts a DriverCommand into a CMD line.
func (p *CSVParser) EncodeCommand(c model.DriverCommand) (string, error) {
	if c.Command == "" || strings.Contains(c.Command, ",") {
		return "", fmt.Errorf("invalid command name %q", c.Command)
	}
	return fmt.Sprintf("CMD,%s,%.2f,%.2f", c.Command, c.Parameters.Speed, c.Parameters.Steering), nil
}

// EncodeFrame renders an IMG line.
func (p *CSVParser) EncodeFrame(m model.DriverMessage) (string, error) {
	if m.Image == "" {
		return "", fmt.Errorf("%w: empty image", ErrMalformed)
	}
	return "IMG," + m.Image, nil
}

// DecodeCommand parses a CMD line.
func (p *CSVParser) DecodeCommand(line string) (model.DriverCommand, error) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) != 4 || fields[0] != "CMD" || fields[1] == "" {
		return model.DriverCommand{}, fmt.Errorf("%w: expected CMD,<command>,<speed>,<steering>", ErrMalformed)
	}
	speed, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return model.DriverCommand{}, fmt.Errorf("%w: speed: %v", ErrMalformed, err)
	}
	steering, err := strconv.ParseFloat(fields[3], 64)
	if err != nil {
		return model.DriverCommand{}, fmt.Errorf("%w: steering: %v", ErrMalformed, err)
	}
	return model.DriverCommand{
		Command:    fields[1],
		Parameters: model.CommandParams{Speed: speed, Steering: steering},
	}, nil
}
