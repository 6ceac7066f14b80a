// Package profiler reports frame rate, memory and renderer statistics at a fixed interval.
package profiler

import (
	"runtime"
	"time"

	"go.uber.org/zap"
)

// Sample is one reporting interval.
type Sample struct {
	// FPS is the frame rate over the interval.
	FPS float64
	// FrameTime is the mean frame duration.
	FrameTime time.Duration
	// HeapMB is the live heap in MiB.
	HeapMB float64
	// AllocRateMB is the allocation rate in MiB per second.
	AllocRateMB float64
	// SysMB is the memory obtained from the OS in MiB.
	SysMB float64
	// GCCount is the total number of completed collections.
	GCCount uint32
	// MaxPause is the longest GC pause during the interval.
	MaxPause time.Duration
}

// Profiler counts frames and logs a Sample once per interval.
type Profiler interface {
	// Tick records one frame.
	//
	// Parameters:
	//   - fields: extra fields logged with the next sample, such as draw counts
	//
	// Returns:
	//   - bool: true if a sample was logged by this tick
	Tick(fields ...zap.Field) bool

	// Last returns the most recent sample and whether one exists.
	Last() (Sample, bool)
}

type profiler struct {
	logger   *zap.Logger
	interval time.Duration
	now      func() time.Time

	frames         int
	lastTime       time.Time
	lastGCCount    uint32
	lastTotalAlloc uint64
	memStats       runtime.MemStats

	last    Sample
	hasLast bool
}

var _ Profiler = &profiler{}

// NewProfiler creates a Profiler. The interval defaults to one second.
//
// Parameters:
//   - options: functional options, see WithLogger and WithInterval
//
// Returns:
//   - Profiler: the profiler
func NewProfiler(options ...ProfilerBuilderOption) Profiler {
	p := &profiler{
		logger:   zap.NewNop(),
		interval: time.Second,
		now:      time.Now,
	}
	for _, opt := range options {
		opt(p)
	}
	p.lastTime = p.now()
	return p
}

func (p *profiler) Tick(fields ...zap.Field) bool {
	p.frames++
	now := p.now()
	elapsed := now.Sub(p.lastTime)
	if elapsed < p.interval || elapsed <= 0 {
		return false
	}

	runtime.ReadMemStats(&p.memStats)
	const mb = 1024 * 1024
	s := Sample{
		FPS:         float64(p.frames) / elapsed.Seconds(),
		FrameTime:   elapsed / time.Duration(p.frames),
		HeapMB:      float64(p.memStats.Alloc) / mb,
		SysMB:       float64(p.memStats.Sys) / mb,
		AllocRateMB: float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / mb / elapsed.Seconds(),
		GCCount:     p.memStats.NumGC,
	}

	// PauseNs is a ring of the last 256 pauses
	start := p.lastGCCount
	if s.GCCount-start > 256 {
		start = s.GCCount - 256
	}
	for i := start; i < s.GCCount; i++ {
		s.MaxPause = max(s.MaxPause, time.Duration(p.memStats.PauseNs[i%256]))
	}

	p.logger.Info("frame stats", append([]zap.Field{
		zap.Float64("fps", s.FPS),
		zap.Duration("frame_time", s.FrameTime),
		zap.Float64("heap_mb", s.HeapMB),
		zap.Float64("alloc_rate_mb", s.AllocRateMB),
		zap.Uint32("gc", s.GCCount),
		zap.Duration("gc_max_pause", s.MaxPause),
		zap.Float64("sys_mb", s.SysMB),
	}, fields...)...)

	p.frames = 0
	p.lastTime = now
	p.lastGCCount = s.GCCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	p.last = s
	p.hasLast = true
	return true
}

func (p *profiler) Last() (Sample, bool) {
	return p.last, p.hasLast
}
