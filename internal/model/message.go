// Package model defines shared message structures for the driver and client protocols.
package model

// DriverMessage is an inbound telemetry record (driver -> relay).
type DriverMessage struct {
	Image string `json:"image,omitempty"` // base64 encoded camera frame
}

// CommandParams carries the motion parameters of a driver command.
type CommandParams struct {
	Speed    float64 `json:"speed"`
	Steering float64 `json:"steering"`
}

// DriverCommand is an outbound actuation record (relay -> driver).
type DriverCommand struct {
	Command    string        `json:"command"`
	Parameters CommandParams `json:"parameters"`
}

// ClientRequest is an inbound record from an observer/controller.
// Parameters stays loosely typed: "text" and "mode" are the known keys.
type ClientRequest struct {
	Command    string         `json:"command"`
	Parameters map[string]any `json:"parameters"`
}

// Text returns parameters.text when it is a non-empty string.
func (r ClientRequest) Text() (string, bool) {
	s, ok := r.Parameters["text"].(string)
	return s, ok && s != ""
}

// Mode returns parameters.mode, defaulting to "off".
func (r ClientRequest) Mode() string {
	if s, ok := r.Parameters["mode"].(string); ok && s != "" {
		return s
	}
	return "off"
}

// ClientReply is broadcast (or sent point-to-point for errors) to clients.
// DriverCommand holds either a single command name or a list of names.
type ClientReply struct {
	Image         string `json:"image,omitempty"`
	Response      string `json:"response,omitempty"`
	DriverCommand any    `json:"driver_command,omitempty"`
	Audio         string `json:"audio,omitempty"`
	Description   string `json:"description,omitempty"`
	Error         string `json:"error,omitempty"`
}

// Health is served on /healthz.
type Health struct {
	Driver     string `json:"driver"`
	Clients    int    `json:"clients"`
	Autopilot  bool   `json:"autopilot"`
	HasFrame   bool   `json:"has_frame"`
	FrameBytes int    `json:"frame_bytes"`
}
