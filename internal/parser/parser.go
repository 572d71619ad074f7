// Package parser converts driver wire lines to structured types and vice-versa.
//
// JSON wire format (websocket driver):
//
//	{"image": "<base64>"}                                            driver -> relay
//	{"command": "forward", "parameters": {"speed": 0.2, "steering": 0}}  relay -> driver
//
// CSV wire format (serial driver):
//
//	IMG,<base64>                  driver -> relay
//	CMD,<command>,<speed>,<steering>  relay -> driver
package parser

import (
	"errors"

	"RoverRelay/internal/model"
)

// ErrMalformed is returned for lines that cannot be decoded.
var ErrMalformed = errors.New("malformed message")

// Parser encodes and decodes the driver wire format.
type Parser interface {
	// DecodeFrame parses one inbound line. A line without an image yields an
	// empty DriverMessage and no error.
	DecodeFrame(line string) (model.DriverMessage, error)
	// EncodeCommand renders an outbound command as a single line.
	EncodeCommand(c model.DriverCommand) (string, error)

	// EncodeFrame and DecodeCommand are the driver's side of the same wire.
	EncodeFrame(m model.DriverMessage) (string, error)
	DecodeCommand(line string) (model.DriverCommand, error)
}

// ForFormat returns the parser registered for a wire format name.
func ForFormat(format string) (Parser, bool) {
	switch format {
	case "json":
		return NewJSONParser(), true
	case "csv":
		return NewCSVParser(), true
	}
	return nil, false
}
