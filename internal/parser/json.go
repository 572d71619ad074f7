// Package parser implements the JSONParser which encodes and decodes driver
// and client records in JSON format.
package parser

import (
	"encoding/json"
	"fmt"

	"RoverRelay/internal/model"
)

// JSONParser implements Parser interface using JSON serialization.
type JSONParser struct{}

// NewJSONParser creates a new JSON parser.
func NewJSONParser() *JSONParser { return &JSONParser{} }

// DecodeFrame decodes a JSON driver record.
func (p *JSONParser) DecodeFrame(s string) (model.DriverMessage, error) {
	var m model.DriverMessage
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return model.DriverMessage{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return m, nil
}

// EncodeCommand encodes a DriverCommand into a JSON string.
func (p *JSONParser) EncodeCommand(c model.DriverCommand) (string, error) {
	b, err := json.Marshal(c)
	return string(b), err
}

// EncodeFrame encodes a driver frame record.
func (p *JSONParser) EncodeFrame(m model.DriverMessage) (string, error) {
	b, err := json.Marshal(m)
	return string(b), err
}

// DecodeCommand decodes a command record as received by the driver.
func (p *JSONParser) DecodeCommand(s string) (model.DriverCommand, error) {
	var c model.DriverCommand
	if err := json.Unmarshal([]byte(s), &c); err != nil {
		return model.DriverCommand{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if c.Command == "" {
		return model.DriverCommand{}, fmt.Errorf("%w: missing command", ErrMalformed)
	}
	return c, nil
}

// DecodeRequest decodes a client record. A missing command is reported as "none".
func DecodeRequest(b []byte) (model.ClientRequest, error) {
	var r model.ClientRequest
	if err := json.Unmarshal(b, &r); err != nil {
		return model.ClientRequest{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if r.Command == "" {
		r.Command = "none"
	}
	if r.Parameters == nil {
		r.Parameters = map[string]any{}
	}
	return r, nil
}
