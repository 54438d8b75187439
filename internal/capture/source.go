// Package capture provides camera capture and streaming using GoCV (OpenCV).
package capture

import (
	"errors"
	"fmt"
	"strconv"
	"sync"

	"gocv.io/x/gocv"
)

// Default capture settings.
const (
	DefaultFPS    = 30
	DefaultWidth  = 640
	DefaultHeight = 480
)

var (
	// ErrOpenFailed is returned when a source cannot be opened at all.
	ErrOpenFailed = errors.New("cannot open camera source")
	// ErrReadFailed is returned when an open source yields no valid frame.
	ErrReadFailed = errors.New("cannot read frame from camera source")
	// ErrSourceClosed is returned when reading from a source that is not open.
	ErrSourceClosed = errors.New("camera source is not open")
)

// Source is a single openable video source: a local capture device or a
// network stream.
type Source interface {
	Open() error
	// ReadFrame reads one frame. The caller is responsible for closing the
	// returned Mat.
	ReadFrame() (*gocv.Mat, error)
	Close() error
	ID() string
}

// gocvSource wraps a gocv.VideoCapture opened from either a device index or
// a stream URL.
type gocvSource struct {
	target any // int device index or string URL
	id     string
	width  int
	height int
	fps    int

	mu      sync.Mutex
	capture *gocv.VideoCapture
}

// NewDeviceSource creates a Source for the local capture device at index.
func NewDeviceSource(index int) Source {
	return newGocvSource(index, strconv.Itoa(index), DefaultWidth, DefaultHeight, DefaultFPS)
}

// NewStreamSource creates a Source for a network (IP/RTSP) stream URL.
func NewStreamSource(url string) Source {
	return newGocvSource(url, url, DefaultWidth, DefaultHeight, DefaultFPS)
}

func newGocvSource(target any, id string, width, height, fps int) Source {
	return &gocvSource{
		target: target,
		id:     id,
		width:  width,
		height: height,
		fps:    fps,
	}
}

// Open opens the underlying capture handle. Opening an already open source
// is a no-op.
func (s *gocvSource) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.capture != nil {
		return nil
	}

	capture, err := gocv.OpenVideoCapture(s.target)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrOpenFailed, s.id)
	}
	if !capture.IsOpened() {
		capture.Close()
		return fmt.Errorf("%w: %s", ErrOpenFailed, s.id)
	}

	// Set resolution for performance
	capture.Set(gocv.VideoCaptureFrameWidth, float64(s.width))
	capture.Set(gocv.VideoCaptureFrameHeight, float64(s.height))
	capture.Set(gocv.VideoCaptureFPS, float64(s.fps))

	s.capture = capture
	return nil
}

// ReadFrame reads a single frame from the source.
func (s *gocvSource) ReadFrame() (*gocv.Mat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.capture == nil {
		return nil, ErrSourceClosed
	}

	mat := gocv.NewMat()
	if ok := s.capture.Read(&mat); !ok {
		mat.Close()
		return nil, fmt.Errorf("%w: %s", ErrReadFailed, s.id)
	}
	if mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("%w: empty frame from %s", ErrReadFailed, s.id)
	}

	return &mat, nil
}

// Close releases the capture handle. Safe to call on a source that was never
// opened.
func (s *gocvSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.capture == nil {
		return nil
	}

	err := s.capture.Close()
	s.capture = nil
	return err
}

// ID returns the human-readable identity of the source (device index or URL).
func (s *gocvSource) ID() string {
	return s.id
}
