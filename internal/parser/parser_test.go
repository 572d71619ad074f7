package parser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RoverRelay/internal/model"
)

func TestJSONParser_DecodeFrame(t *testing.T) {
	p := NewJSONParser()

	m, err := p.DecodeFrame(`{"image":"AAAA"}`)
	require.NoError(t, err)
	assert.Equal(t, "AAAA", m.Image)

	m, err = p.DecodeFrame(`{"status":"ok"}`)
	require.NoError(t, err)
	assert.Empty(t, m.Image)

	_, err = p.DecodeFrame(`not json`)
	assert.True(t, errors.Is(err, ErrMalformed))
}

func TestJSONParser_EncodeCommand(t *testing.T) {
	line, err := NewJSONParser().EncodeCommand(model.DriverCommand{
		Command:    "left",
		Parameters: model.CommandParams{Speed: 0.2, Steering: -0.5},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"command":"left","parameters":{"speed":0.2,"steering":-0.5}}`, line)
}

func TestCSVParser_DecodeFrame(t *testing.T) {
	p := NewCSVParser()

	m, err := p.DecodeFrame("IMG,AAAA\n")
	require.NoError(t, err)
	assert.Equal(t, "AAAA", m.Image)

	m, err = p.DecodeFrame("ACK,CMD")
	require.NoError(t, err)
	assert.Empty(t, m.Image)

	for _, line := range []string{"", "IMG", "IMG,", "IMG,AA,BB"} {
		_, err := p.DecodeFrame(line)
		assert.Truef(t, errors.Is(err, ErrMalformed), "line %q", line)
	}
}

func TestCSVParser_EncodeCommand(t *testing.T) {
	p := NewCSVParser()
	line, err := p.EncodeCommand(model.DriverCommand{
		Command:    "right",
		Parameters: model.CommandParams{Speed: 0.4, Steering: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, "CMD,right,0.40,1.00", line)

	_, err = p.EncodeCommand(model.DriverCommand{Command: "a,b"})
	assert.Error(t, err)
}

func TestDecodeRequest(t *testing.T) {
	r, err := DecodeRequest([]byte(`{"command":"custom","parameters":{"text":"go around the box"}}`))
	require.NoError(t, err)
	assert.Equal(t, "custom", r.Command)
	text, ok := r.Text()
	assert.True(t, ok)
	assert.Equal(t, "go around the box", text)

	r, err = DecodeRequest([]byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, "none", r.Command)
	assert.Equal(t, "off", r.Mode())

	_, err = DecodeRequest([]byte(`{"command":`))
	assert.True(t, errors.Is(err, ErrMalformed))
}

func TestForFormat(t *testing.T) {
	_, ok := ForFormat("json")
	assert.True(t, ok)
	_, ok = ForFormat("csv")
	assert.True(t, ok)
	_, ok = ForFormat("xml")
	assert.False(t, ok)
}

func TestDriverSide_RoundTripThroughBothFormats(t *testing.T) {
	cmd := model.DriverCommand{Command: "left", Parameters: model.CommandParams{Speed: 0.2, Steering: -0.5}}
	for _, format := range []string{"json", "csv"} {
		p, ok := ForFormat(format)
		require.True(t, ok)

		line, err := p.EncodeCommand(cmd)
		require.NoError(t, err, format)
		got, err := p.DecodeCommand(line)
		require.NoError(t, err, format)
		assert.Equal(t, cmd, got, format)

		line, err = p.EncodeFrame(model.DriverMessage{Image: "QUJD"})
		require.NoError(t, err, format)
		msg, err := p.DecodeFrame(line)
		require.NoError(t, err, format)
		assert.Equal(t, "QUJD", msg.Image, format)
	}
}

func TestCSVParser_DecodeCommandRejectsMalformed(t *testing.T) {
	p := NewCSVParser()
	for _, line := range []string{"", "CMD,left", "IMG,abc", "CMD,,0.1,0", "CMD,left,fast,0", "CMD,left,0.1,x"} {
		_, err := p.DecodeCommand(line)
		assert.True(t, errors.Is(err, ErrMalformed), line)
	}
	_, err := p.EncodeFrame(model.DriverMessage{})
	assert.ErrorIs(t, err, ErrMalformed)
}
