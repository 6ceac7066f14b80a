// Package screenshot saves presented frames to disk. A capture requested on frame N is read back
// once the frame counter reaches N+2, when the presented image is guaranteed to have left the
// swap chain, and is encoded on a worker pool so the render loop never waits on file IO.
package screenshot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/gpu"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReadbackLatency is the number of frames between a request and its read-back.
const ReadbackLatency = 2

// Capturer is the part of a backend that reads presented frames back.
type Capturer interface {
	// CaptureSurface arms a copy of the next presented frame.
	CaptureSurface()
	// ReadSurface returns the captured frame, sRGB encoded.
	ReadSurface() (*gpu.HostImage, error)
}

// Screenshotter schedules captures and writes them to disk.
type Screenshotter interface {
	// Request arms a capture of frame. A request made while another is pending is ignored.
	//
	// Parameters:
	//   - frame: the number of the frame about to be rendered
	//
	// Returns:
	//   - bool: true if a new capture was armed
	Request(frame uint64) bool

	// Pending reports whether a capture waits for read-back.
	Pending() bool

	// Poll reads the pending capture back once frame reaches its token and hands it to the encoder.
	// Call it after every presented frame.
	//
	// Parameters:
	//   - frame: the number of the frame just presented
	//
	// Returns:
	//   - error: a read-back error; encode errors are logged and reported by Close
	Poll(frame uint64) error

	// Wait blocks until every submitted image has been written.
	Wait()

	// Saved returns the paths written so far, in completion order.
	Saved() []string

	// SessionID returns the identifier embedded in every file name of this session.
	SessionID() uuid.UUID

	// Close waits for outstanding writes and stops the worker pool.
	//
	// Returns:
	//   - error: the joined encode and write errors of the session
	Close() error
}

type screenshotter struct {
	mu  *sync.Mutex
	src Capturer

	logger    *zap.Logger
	dir       string
	format    Format
	scale     float64
	prefix    string
	sessionID uuid.UUID
	workers   int

	pool     worker.DynamicWorkerPool
	inflight sync.WaitGroup

	pending bool
	token   uint64
	seq     int
	saved   []string
	errs    []error
	closed  bool
}

var _ Screenshotter = &screenshotter{}

// NewScreenshotter creates a Screenshotter reading frames from src.
//
// Parameters:
//   - src: the backend capturing presented frames
//   - options: functional options, see WithDirectory and WithFormat
//
// Returns:
//   - Screenshotter: the screenshotter
func NewScreenshotter(src Capturer, options ...ScreenshotterBuilderOption) Screenshotter {
	s := &screenshotter{
		mu:        &sync.Mutex{},
		src:       src,
		logger:    zap.NewNop(),
		dir:       ".",
		format:    FormatPNG,
		scale:     1,
		prefix:    "cluster",
		sessionID: uuid.New(),
		workers:   2,
	}
	for _, opt := range options {
		opt(s)
	}
	s.logger = s.logger.With(zap.Stringer("session", s.sessionID))
	s.pool = worker.NewDynamicWorkerPool(s.workers, 16, time.Second)
	return s
}

func (s *screenshotter) Request(frame uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if s.pending {
		s.logger.Debug("screenshot already pending", zap.Uint64("token", s.token))
		return false
	}
	s.src.CaptureSurface()
	s.pending = true
	s.token = frame + ReadbackLatency
	s.logger.Debug("screenshot requested", zap.Uint64("frame", frame), zap.Uint64("token", s.token))
	return true
}

func (s *screenshotter) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

func (s *screenshotter) Poll(frame uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.pending || frame < s.token {
		return nil
	}
	s.pending = false

	img, err := s.src.ReadSurface()
	if err != nil {
		return fmt.Errorf("screenshot: %w", err)
	}
	s.seq++
	path := filepath.Join(s.dir, fmt.Sprintf("%s-%s-%03d%s", s.prefix, s.sessionID.String()[:8], s.seq, s.format.Extension()))

	s.inflight.Add(1)
	s.pool.SubmitTask(worker.Task{
		ID:      s.seq,
		Payload: path,
		Do: func() (any, error) {
			defer s.inflight.Done()
			err := s.write(path, img)
			s.finish(path, err)
			return path, err
		},
	})
	return nil
}

// write encodes img into a temporary file next to path and renames it into place, so readers never
// observe a partially written screenshot.
func (s *screenshotter) write(path string, img *gpu.HostImage) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(path), ".screenshot-*")
	if err != nil {
		return err
	}
	err = s.format.encode(f, scaled(img.ToNRGBA(), s.scale))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(f.Name())
		return err
	}
	return os.Rename(f.Name(), path)
}

func (s *screenshotter) finish(path string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.errs = append(s.errs, fmt.Errorf("write %s: %w", path, err))
		s.logger.Error("failed to write screenshot", zap.String("path", path), zap.Error(err))
		return
	}
	s.saved = append(s.saved, path)
	s.logger.Info("screenshot saved", zap.String("path", path))
}

func (s *screenshotter) Wait() {
	s.inflight.Wait()
}

func (s *screenshotter) Saved() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.saved...)
}

func (s *screenshotter) SessionID() uuid.UUID {
	return s.sessionID
}

func (s *screenshotter) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.pending = false
	s.mu.Unlock()

	s.inflight.Wait()
	s.pool.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	return errors.Join(s.errs...)
}
