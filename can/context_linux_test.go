//go:build linux

package can_test

import (
	"errors"
	"testing"
	"time"

	"github.com/momentics/socev/api"
	"github.com/momentics/socev/can"
	"github.com/momentics/socev/control"
	"github.com/momentics/socev/fake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newContext(t *testing.T, cfg can.Config, bus *fake.Bus, rec *fake.Recorder) *can.Context {
	t.Helper()
	cfg.Callback = rec.Callback()
	c, err := can.New(cfg, can.WithBusOpener(bus))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = c.Close()
		_ = bus.Close()
	})
	return c
}

func pump(t *testing.T, c *can.Context, done func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !done() {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for reactor")
		}
		if _, err := c.Service(10); err != nil && !errors.Is(err, api.ErrInterrupted) {
			require.NoError(t, err)
		}
	}
}

func settle(t *testing.T, c *can.Context, d time.Duration) {
	t.Helper()
	end := time.Now().Add(d)
	for time.Now().Before(end) {
		if _, err := c.Service(5); err != nil && !errors.Is(err, api.ErrInterrupted) {
			require.NoError(t, err)
		}
	}
}

func encode(t *testing.T, id uint32, data ...byte) []byte {
	t.Helper()
	f, err := can.NewFrame(id, data)
	require.NoError(t, err)
	b, err := f.MarshalBinary()
	require.NoError(t, err)
	return b
}

func TestReceiveThenTimeout(t *testing.T) {
	bus := fake.NewBus()
	rec := fake.NewRecorder()
	c := newContext(t, can.Config{
		Buses: []can.BusConfig{{Name: "vcan0"}},
		Filters: []can.FilterConfig{
			{BusName: "vcan0", ID: 5, Mask: can.EFFMask, RecvTimeoutMS: 50, SendTimeoutMS: can.Disabled},
		},
	}, bus, rec)
	f := c.Filters()[0]

	require.NoError(t, bus.Inject("vcan0", encode(t, 5, 0xDE, 0xAD)))
	start := time.Now()
	pump(t, c, func() bool { return rec.Count(api.EventDataReceived) == 1 })

	ev := rec.Events()[0]
	assert.Equal(t, f.ID(), ev.ID)
	require.Len(t, ev.Payload, can.FrameSize)
	frame, err := can.DecodeFrame(ev.Payload)
	require.NoError(t, err)
	assert.EqualValues(t, 5, frame.ID)
	assert.Equal(t, []byte{0xDE, 0xAD}, frame.Payload())

	pump(t, c, func() bool { return rec.Count(api.EventTimerExpired) == 1 })
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
	assert.Equal(t, can.TimerRecv, f.LastExpired())

	settle(t, c, 100*time.Millisecond)
	assert.Equal(t, 1, rec.Count(api.EventTimerExpired))
	assert.Equal(t, []api.Event{api.EventDataReceived, api.EventTimerExpired}, rec.Kinds())
}

func TestFramesKeepTimerQuiet(t *testing.T) {
	bus := fake.NewBus()
	rec := fake.NewRecorder()
	c := newContext(t, can.Config{
		Buses:   []can.BusConfig{{Name: "vcan0"}},
		Filters: []can.FilterConfig{{BusName: "vcan0", ID: 5, Mask: can.EFFMask, RecvTimeoutMS: 80}},
	}, bus, rec)

	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Inject("vcan0", encode(t, 5, byte(i))))
		settle(t, c, 20*time.Millisecond)
	}
	assert.Equal(t, 5, rec.Count(api.EventDataReceived))
	assert.Zero(t, rec.Count(api.EventTimerExpired))
	assert.EqualValues(t, 5, c.Metrics().Get(control.MetricFramesReceived))
}

func TestFiltersInstalledOncePerBus(t *testing.T) {
	bus := fake.NewBus()
	rec := fake.NewRecorder()
	c := newContext(t, can.Config{
		Buses: []can.BusConfig{{Name: "vcan0"}, {Name: "vcan1"}, {Name: "vcan2"}},
		Filters: []can.FilterConfig{
			{BusName: "vcan0", ID: 5, Mask: can.EFFMask, RecvTimeoutMS: 50, SendTimeoutMS: can.Disabled},
			{BusName: "vcan1", ID: 7, Mask: 0x7FF, RecvTimeoutMS: can.Disabled, SendTimeoutMS: 20},
			{BusName: "vcan0", ID: 2, Mask: can.EFFMask, RecvTimeoutMS: can.Disabled, SendTimeoutMS: can.Disabled},
		},
	}, bus, rec)

	assert.Equal(t, 1, bus.SetFilterCalls("vcan0"))
	assert.Equal(t, 1, bus.SetFilterCalls("vcan1"))
	assert.Equal(t, 1, bus.SetFilterCalls("vcan2"))
	assert.Equal(t, []can.RawFilter{{ID: 5, Mask: can.EFFMask}, {ID: 2, Mask: can.EFFMask}}, bus.Filters("vcan0"))
	assert.Equal(t, []can.RawFilter{{ID: 7, Mask: 0x7FF}}, bus.Filters("vcan1"))
	assert.Empty(t, bus.Filters("vcan2"))

	// 3 buses + 2 enabled timers
	assert.Equal(t, 5, c.DumpState()["can.handles"])
	filters := c.Filters()
	require.Len(t, filters, 3)
	assert.Equal(t, "vcan1", filters[1].Bus())
	assert.Equal(t, 20*time.Millisecond, filters[1].SendTimeout())
	assert.Zero(t, filters[1].RecvTimeout())
}

func TestFirstMatchingFilterWins(t *testing.T) {
	bus := fake.NewBus()
	rec := fake.NewRecorder()
	c := newContext(t, can.Config{
		Buses: []can.BusConfig{{Name: "vcan0"}},
		Filters: []can.FilterConfig{
			{BusName: "vcan0", ID: 0x100, Mask: 0x700},
			{BusName: "vcan0", ID: 0x123, Mask: can.EFFMask},
			{BusName: "vcan0", ID: 0x200, Mask: 0x700},
		},
	}, bus, rec)
	filters := c.Filters()

	require.NoError(t, bus.Inject("vcan0", encode(t, 0x123)))
	require.NoError(t, bus.Inject("vcan0", encode(t, 0x2AA)))
	require.NoError(t, bus.Inject("vcan0", encode(t, 0x300)))
	pump(t, c, func() bool { return c.Metrics().Get(control.MetricFramesDropped) == 1 })

	events := rec.Events()
	require.Len(t, events, 2)
	assert.Equal(t, filters[0].ID(), events[0].ID)
	assert.Equal(t, filters[2].ID(), events[1].ID)
}

func TestSendTimer(t *testing.T) {
	bus := fake.NewBus()
	rec := fake.NewRecorder()
	c := newContext(t, can.Config{
		Buses:   []can.BusConfig{{Name: "vcan0"}},
		Filters: []can.FilterConfig{{BusName: "vcan0", ID: 0x42, Mask: can.EFFMask, RecvTimeoutMS: can.Disabled, SendTimeoutMS: 30}},
	}, bus, rec)
	f := c.Filters()[0]

	// a send before the deadline cancels it
	require.NoError(t, f.StartSendTimer())
	frame, err := can.NewFrame(0x42, []byte{1, 2, 3})
	require.NoError(t, err)
	require.NoError(t, f.Send(frame))
	settle(t, c, 60*time.Millisecond)
	assert.Zero(t, rec.Count(api.EventTimerExpired))

	sent, err := bus.Sent("vcan0")
	require.NoError(t, err)
	require.Len(t, sent, 1)
	got, err := can.DecodeFrame(sent[0])
	require.NoError(t, err)
	assert.Equal(t, frame, got)
	assert.EqualValues(t, 1, c.Metrics().Get(control.MetricFramesSent))

	// no send: the deadline fires once
	require.NoError(t, f.StartSendTimer())
	pump(t, c, func() bool { return rec.Count(api.EventTimerExpired) == 1 })
	assert.Equal(t, can.TimerSend, f.LastExpired())

	// stopped explicitly
	require.NoError(t, f.StartSendTimer())
	require.NoError(t, f.StopSendTimer())
	settle(t, c, 60*time.Millisecond)
	assert.Equal(t, 1, rec.Count(api.EventTimerExpired))
	// a frame for another identifier leaves the deadline running
	require.NoError(t, f.StartSendTimer())
	other, err := can.NewFrame(0x43, []byte{9})
	require.NoError(t, err)
	require.NoError(t, f.Send(other))
	pump(t, c, func() bool { return rec.Count(api.EventTimerExpired) == 2 })
	assert.EqualValues(t, 2, c.Metrics().Get(control.MetricFramesSent))
}

func TestSendRejectsInvalidFrame(t *testing.T) {
	bus := fake.NewBus()
	c := newContext(t, can.Config{
		Buses:   []can.BusConfig{{Name: "vcan0"}},
		Filters: []can.FilterConfig{{BusName: "vcan0", ID: 1, Mask: can.EFFMask}},
	}, bus, fake.NewRecorder())
	err := c.Filters()[0].Send(can.Frame{ID: 0x800})
	assert.ErrorIs(t, err, api.ErrConfigInvalid)
}

func TestDisabledTimersAreNoOps(t *testing.T) {
	bus := fake.NewBus()
	rec := fake.NewRecorder()
	c := newContext(t, can.Config{
		Buses:   []can.BusConfig{{Name: "vcan0"}},
		Filters: []can.FilterConfig{{BusName: "vcan0", ID: 1, Mask: can.EFFMask, RecvTimeoutMS: 0, SendTimeoutMS: can.Disabled}},
	}, bus, rec)
	f := c.Filters()[0]
	require.NoError(t, f.StartRecvTimer())
	require.NoError(t, f.StartSendTimer())
	settle(t, c, 30*time.Millisecond)
	assert.Zero(t, rec.Count(api.EventTimerExpired))
	assert.Equal(t, 1, c.DumpState()["can.handles"])
}

func TestStopRecvTimerFromCallback(t *testing.T) {
	bus := fake.NewBus()
	rec := fake.NewRecorder()
	rec.Hook = func(ev api.Event, ep api.Endpoint, _ []byte) {
		if ev == api.EventDataReceived {
			require.NoError(t, ep.(*can.Filter).StopRecvTimer())
		}
	}
	c := newContext(t, can.Config{
		Buses:   []can.BusConfig{{Name: "vcan0"}},
		Filters: []can.FilterConfig{{BusName: "vcan0", ID: 9, Mask: can.EFFMask, RecvTimeoutMS: 20}},
	}, bus, rec)

	require.NoError(t, bus.Inject("vcan0", encode(t, 9)))
	pump(t, c, func() bool { return rec.Count(api.EventDataReceived) == 1 })
	settle(t, c, 60*time.Millisecond)
	assert.Zero(t, rec.Count(api.EventTimerExpired))
}

func TestNewUnwindsOnOpenFailure(t *testing.T) {
	bus := fake.NewBus()
	defer bus.Close()
	bus.FailOpen["vcan1"] = errors.New("no such device")

	_, err := can.New(can.Config{
		Buses:   []can.BusConfig{{Name: "vcan0"}, {Name: "vcan1"}},
		Filters: []can.FilterConfig{{BusName: "vcan0", ID: 1, Mask: can.EFFMask, RecvTimeoutMS: 10}},
	}, can.WithBusOpener(bus))
	require.Error(t, err)

	// the first bus was opened and has been closed again
	assert.Error(t, bus.Inject("vcan0", encode(t, 1)))
}

func TestCloseRules(t *testing.T) {
	bus := fake.NewBus()
	rec := fake.NewRecorder()
	var c *can.Context
	var inCallback error
	rec.Hook = func(ev api.Event, _ api.Endpoint, _ []byte) {
		inCallback = c.Close()
	}
	c = newContext(t, can.Config{
		Buses:   []can.BusConfig{{Name: "vcan0"}},
		Filters: []can.FilterConfig{{BusName: "vcan0", ID: 1, Mask: can.EFFMask, RecvTimeoutMS: 10}},
	}, bus, rec)
	f := c.Filters()[0]

	require.NoError(t, bus.Inject("vcan0", encode(t, 1)))
	pump(t, c, func() bool { return rec.Count(api.EventDataReceived) == 1 })
	assert.ErrorIs(t, inCallback, api.ErrInCallback)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	_, err := c.Service(0)
	assert.ErrorIs(t, err, api.ErrClosed)
	assert.ErrorIs(t, f.StartRecvTimer(), api.ErrStaleEndpoint)
	assert.Nil(t, c.Filters())
	assert.Error(t, bus.Inject("vcan0", encode(t, 1)))
}
