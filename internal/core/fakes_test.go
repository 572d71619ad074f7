package core

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"RoverRelay/internal/frame"
	"RoverRelay/internal/hub"
	"RoverRelay/internal/model"
	"RoverRelay/internal/motion"
)

// pipeDevice is an in-memory device. Tests push inbound lines and observe
// written lines.
type pipeDevice struct {
	in       chan string
	out      chan string
	closed   chan struct{}
	once     sync.Once
	writeErr error
}

func newPipeDevice() *pipeDevice {
	return &pipeDevice{
		in:     make(chan string, 16),
		out:    make(chan string, 16),
		closed: make(chan struct{}),
	}
}

func (d *pipeDevice) ReadLine(time.Duration) (string, error) {
	select {
	case l := <-d.in:
		return l, nil
	case <-d.closed:
		return "", io.EOF
	}
}

func (d *pipeDevice) WriteLine(s string) error {
	if d.writeErr != nil {
		return d.writeErr
	}
	select {
	case <-d.closed:
		return io.ErrClosedPipe
	case d.out <- s:
		return nil
	}
}

func (d *pipeDevice) Close() error {
	d.once.Do(func() { close(d.closed) })
	return nil
}

// recordingHub captures every broadcast and point-to-point reply.
type recordingHub struct {
	mu     sync.Mutex
	all    []model.ClientReply
	direct map[string][]model.ClientReply
}

func newRecordingHub() *recordingHub {
	return &recordingHub{direct: map[string][]model.ClientReply{}}
}

func (h *recordingHub) Broadcast(v any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.all = append(h.all, v.(model.ClientReply))
}

func (h *recordingHub) SendTo(c hub.Conn, v any) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.direct[c.ID()] = append(h.direct[c.ID()], v.(model.ClientReply))
	return nil
}

func (h *recordingHub) replies() []model.ClientReply {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]model.ClientReply(nil), h.all...)
}

func (h *recordingHub) responses() []string {
	var out []string
	for _, r := range h.replies() {
		if r.Response != "" {
			out = append(out, r.Response)
		}
	}
	return out
}

func (h *recordingHub) sentTo(id string) []model.ClientReply {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]model.ClientReply(nil), h.direct[id]...)
}

// fakeLink records commands. failAt >= 0 makes the send with that index
// (and every later one) fail with ErrLinkUnavailable.
type fakeLink struct {
	mu     sync.Mutex
	sent   []motion.Command
	state  LinkState
	failAt int
	delay  time.Duration
}

func newFakeLink(state LinkState) *fakeLink {
	return &fakeLink{state: state, failAt: -1}
}

func (l *fakeLink) SendCommand(ctx context.Context, c motion.Command) error {
	if l.delay > 0 {
		time.Sleep(l.delay)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != Connected || (l.failAt >= 0 && len(l.sent) >= l.failAt) {
		return ErrLinkUnavailable
	}
	l.sent = append(l.sent, c)
	return nil
}

func (l *fakeLink) State() LinkState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *fakeLink) commands() []motion.Command {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]motion.Command(nil), l.sent...)
}

func (l *fakeLink) kinds() []motion.Kind {
	var out []motion.Kind
	for _, c := range l.commands() {
		out = append(out, c.Kind)
	}
	return out
}

// stubInference returns a fixed plan and counts calls. With block set it
// waits for the context to end and returns a fallback plan. With hold set it
// ignores the context and waits for hold to close.
type stubInference struct {
	mu      sync.Mutex
	plan    motion.Plan
	calls   int
	prompts []string
	block   bool
	hold    chan struct{}
	entered chan struct{}
}

func (s *stubInference) Infer(ctx context.Context, prompt string, _ *frame.Frame) motion.Plan {
	s.mu.Lock()
	s.calls++
	s.prompts = append(s.prompts, prompt)
	block, hold := s.block, s.hold
	s.mu.Unlock()
	if hold != nil {
		if s.entered != nil {
			select {
			case s.entered <- struct{}{}:
			default:
			}
		}
		<-hold
		return s.plan
	}
	if block {
		if s.entered != nil {
			select {
			case s.entered <- struct{}{}:
			default:
			}
		}
		<-ctx.Done()
		return motion.FallbackPlan(ctx.Err())
	}
	return s.plan
}

func (s *stubInference) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *stubInference) lastPrompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.prompts) == 0 {
		return ""
	}
	return s.prompts[len(s.prompts)-1]
}

// stubSpeaker returns a fixed data URI, or "" when failing.
type stubSpeaker struct {
	fail bool
}

const testAudio = "data:audio/mp3;base64,AAAA"

func (s stubSpeaker) SynthesizeURI(context.Context, string) string {
	if s.fail {
		return ""
	}
	return testAudio
}

type fakeConn struct{ id string }

func (c fakeConn) ID() string        { return c.id }
func (c fakeConn) Send([]byte) error { return nil }
func (c fakeConn) Close() error      { return nil }

var errDialRefused = errors.New("connection refused")

func twoStepPlan() motion.Plan {
	return motion.Plan{
		Commands: []motion.Command{
			{Kind: motion.Forward, Speed: 0.3, SpokenText: "Moving forward."},
			{Kind: motion.None, SpokenText: "Thinking."},
			{Kind: motion.Left, Speed: 0.2, Steering: -0.5, SpokenText: "Turning left."},
		},
		Description: "A clear hallway.",
	}
}
