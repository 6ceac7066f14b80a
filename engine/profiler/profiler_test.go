package profiler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time {
	return c.t
}

func TestTickLogsOncePerInterval(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	core, logs := observer.New(zap.InfoLevel)
	p := NewProfiler(WithLogger(zap.New(core)), WithInterval(time.Second), withClock(clock.now))

	for range 59 {
		clock.t = clock.t.Add(10 * time.Millisecond)
		assert.False(t, p.Tick())
	}
	_, ok := p.Last()
	assert.False(t, ok)

	clock.t = clock.t.Add(410 * time.Millisecond)
	require.True(t, p.Tick(zap.Int("draws", 7)))

	s, ok := p.Last()
	require.True(t, ok)
	assert.InDelta(t, 60, s.FPS, 1e-9)
	assert.Equal(t, time.Second/60, s.FrameTime)

	entries := logs.FilterMessage("frame stats").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.InDelta(t, 60, fields["fps"], 1e-9)
	assert.EqualValues(t, 7, fields["draws"])
	assert.Equal(t, "profiler", entries[0].LoggerName)

	clock.t = clock.t.Add(10 * time.Millisecond)
	assert.False(t, p.Tick())
}

func TestNonPositiveIntervalKeepsDefault(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	p := NewProfiler(WithInterval(0), withClock(clock.now))

	clock.t = clock.t.Add(500 * time.Millisecond)
	assert.False(t, p.Tick())
	clock.t = clock.t.Add(500 * time.Millisecond)
	assert.True(t, p.Tick())
}
