package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RoverRelay/internal/frame"
	"RoverRelay/internal/motion"
)

type autopilotFixture struct {
	frames *frame.Cache
	link   *fakeLink
	hub    *recordingHub
	infer  *stubInference
	ap     *Autopilot
}

func newAutopilotFixture(infer *stubInference) *autopilotFixture {
	f := &autopilotFixture{
		frames: frame.NewCache(),
		link:   newFakeLink(Connected),
		hub:    newRecordingHub(),
		infer:  infer,
	}
	disp := NewDispatcher(f.link, stubSpeaker{}, f.hub, time.Millisecond, true, nil, nil)
	f.ap = NewAutopilot(AutopilotOptions{
		Frames:     f.frames,
		Inference:  infer,
		Dispatcher: disp,
		Speech:     stubSpeaker{},
		Hub:        f.hub,
		Link:       f.link,
		Cadence:    2 * time.Millisecond,
	})
	return f
}

func (f *autopilotFixture) stop(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	f.ap.Stop(ctx)
}

func TestAutopilot_NoFrameBroadcastsNone(t *testing.T) {
	f := newAutopilotFixture(&stubInference{plan: twoStepPlan()})
	require.True(t, f.ap.Start("drive"))
	defer f.stop(t)

	require.Eventually(t, func() bool {
		for _, r := range f.hub.replies() {
			if r.DriverCommand == "none" {
				return true
			}
		}
		return false
	}, time.Second, 2*time.Millisecond)
	assert.Zero(t, f.infer.count())
}

func TestAutopilot_SkipsUnchangedFrame(t *testing.T) {
	f := newAutopilotFixture(&stubInference{plan: twoStepPlan()})
	f.frames.Update(frame.New("AAAA"))
	require.True(t, f.ap.Start("drive"))
	defer f.stop(t)

	require.Eventually(t, func() bool { return f.infer.count() == 1 }, time.Second, 2*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, f.infer.count(), "same frame must not be inferred twice")

	f.frames.Update(frame.New("BBBB"))
	require.Eventually(t, func() bool { return f.infer.count() == 2 }, time.Second, 2*time.Millisecond)
}

func TestAutopilot_DispatchesPlanAndBroadcastsSummary(t *testing.T) {
	f := newAutopilotFixture(&stubInference{plan: twoStepPlan()})
	f.frames.Update(frame.New("AAAA"))
	require.True(t, f.ap.Start("drive"))

	require.Eventually(t, func() bool { return len(f.hub.replies()) > 0 }, time.Second, 2*time.Millisecond)
	f.stop(t)

	r := f.hub.replies()[0]
	assert.Equal(t, []string{"forward", "none", "left"}, r.DriverCommand)
	assert.Equal(t, testAudio, r.Audio)
	assert.Empty(t, r.Response)

	// the plan, then the explicit stop
	assert.Equal(t, []motion.Kind{motion.Forward, motion.Left, motion.Stop}, f.link.kinds())
}

func TestAutopilot_StartStopIdempotent(t *testing.T) {
	f := newAutopilotFixture(&stubInference{plan: twoStepPlan()})

	assert.True(t, f.ap.Start("drive"))
	assert.False(t, f.ap.Start("drive"))
	assert.True(t, f.ap.Running())

	ctx := context.Background()
	assert.True(t, f.ap.Stop(ctx))
	assert.False(t, f.ap.Stop(ctx))
	assert.False(t, f.ap.Running())

	assert.Equal(t, []motion.Kind{motion.Stop}, f.link.kinds())
	stop := f.link.commands()[0]
	assert.Zero(t, stop.Speed)
	assert.Zero(t, stop.Steering)
}

func TestAutopilot_StopCancelsInFlightInference(t *testing.T) {
	infer := &stubInference{block: true, entered: make(chan struct{}, 1)}
	f := newAutopilotFixture(infer)
	f.frames.Update(frame.New("AAAA"))
	require.True(t, f.ap.Start("drive"))

	select {
	case <-infer.entered:
	case <-time.After(time.Second):
		t.Fatal("inference not called")
	}

	start := time.Now()
	assert.True(t, f.ap.Stop(context.Background()))
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	// nothing from the cancelled plan reaches the driver, only the stop
	assert.Equal(t, []motion.Kind{motion.Stop}, f.link.kinds())
	assert.Empty(t, f.hub.replies())
}

func TestAutopilot_RestartAfterStop(t *testing.T) {
	f := newAutopilotFixture(&stubInference{plan: twoStepPlan()})
	f.frames.Update(frame.New("AAAA"))

	require.True(t, f.ap.Start("drive"))
	require.Eventually(t, func() bool { return f.infer.count() == 1 }, time.Second, 2*time.Millisecond)
	f.stop(t)

	require.True(t, f.ap.Start("drive"))
	defer f.stop(t)
	// a new run starts without a remembered fingerprint
	require.Eventually(t, func() bool { return f.infer.count() == 2 }, time.Second, 2*time.Millisecond)
}

func TestAutopilot_NoOverlappingLoopAfterTimedOutStop(t *testing.T) {
	infer := &stubInference{plan: twoStepPlan(), hold: make(chan struct{}), entered: make(chan struct{}, 1)}
	f := newAutopilotFixture(infer)
	f.frames.Update(frame.New("AAAA"))
	require.True(t, f.ap.Start("drive"))

	select {
	case <-infer.entered:
	case <-time.After(time.Second):
		t.Fatal("inference not called")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.True(t, f.ap.Stop(ctx))

	// the first loop is still inside inference
	assert.True(t, f.ap.Running())
	assert.False(t, f.ap.Start("drive again"), "a second loop must not start while the first unwinds")
	assert.False(t, f.ap.Stop(context.Background()), "stop already in progress")
	assert.Equal(t, []motion.Kind{motion.Stop}, f.link.kinds())

	close(infer.hold)
	require.Eventually(t, func() bool { return !f.ap.Running() }, time.Second, 2*time.Millisecond)
	assert.Equal(t, 1, infer.count())
	// the cancelled plan never reached the driver
	assert.Equal(t, []motion.Kind{motion.Stop}, f.link.kinds())

	require.True(t, f.ap.Start("drive again"))
	f.stop(t)
}

func TestAutopilot_RunningDoesNotBlockDuringStop(t *testing.T) {
	infer := &stubInference{plan: twoStepPlan(), hold: make(chan struct{}), entered: make(chan struct{}, 1)}
	f := newAutopilotFixture(infer)
	f.frames.Update(frame.New("AAAA"))
	require.True(t, f.ap.Start("drive"))
	<-infer.entered

	stopped := make(chan bool, 1)
	go func() { stopped <- f.ap.Stop(context.Background()) }()

	running := make(chan bool, 1)
	go func() { running <- f.ap.Running() }()
	select {
	case r := <-running:
		assert.True(t, r)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("Running blocked behind Stop")
	}

	close(infer.hold)
	select {
	case ok := <-stopped:
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
	assert.False(t, f.ap.Running())
}
