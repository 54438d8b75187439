package capture

import (
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"
)

// Session manages the lifecycle of a single camera connection. It owns at
// most one Source and one capture goroutine at a time; connecting while
// already connected tears down the previous source first.
type Session struct {
	log      zerolog.Logger
	interval time.Duration
	fps      int

	newDevice func(index int) Source
	newStream func(url string) Source

	mu       sync.Mutex
	width    int
	height   int
	source   Source
	identity any // int device index or string URL, nil when disconnected
	stopCh   chan struct{}
	doneCh   chan struct{}
	buf      FrameBuffer
}

// NewSession creates a Session capturing at the given frame rate.
// Values less than or equal to 0 fall back to DefaultFPS.
func NewSession(log zerolog.Logger, fps int) *Session {
	if fps <= 0 {
		fps = DefaultFPS
	}
	s := &Session{
		log:      log,
		interval: time.Second / time.Duration(fps),
		fps:      fps,
		width:    DefaultWidth,
		height:   DefaultHeight,
	}
	s.newDevice = func(index int) Source {
		return newGocvSource(index, strconv.Itoa(index), s.width, s.height, s.fps)
	}
	s.newStream = func(url string) Source {
		return newGocvSource(url, url, s.width, s.height, s.fps)
	}
	return s
}

// SetResolution overrides the capture resolution requested from new sources.
// Values less than or equal to 0 are ignored. Has no effect on an already
// connected source.
func (s *Session) SetResolution(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.width = width
	s.height = height
}

// SetSourceFactory overrides how sources are constructed. Used by tests to
// inject mock sources.
func (s *Session) SetSourceFactory(device func(int) Source, stream func(string) Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if device != nil {
		s.newDevice = device
	}
	if stream != nil {
		s.newStream = stream
	}
}

// ConnectDevice connects to the local capture device at the given index.
func (s *Session) ConnectDevice(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectLocked(s.newDevice(index), index)
}

// ConnectURL connects to a network (IP/RTSP) stream.
func (s *Session) ConnectURL(url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectLocked(s.newStream(url), url)
}

// connectLocked tears down any existing connection, opens the new source,
// verifies it with a test read, and starts the capture goroutine.
func (s *Session) connectLocked(src Source, identity any) error {
	s.teardownLocked()

	if err := src.Open(); err != nil {
		return err
	}

	// Test read distinguishes "device exists but gives no data" from
	// "device missing".
	mat, err := src.ReadFrame()
	if err != nil {
		src.Close()
		return err
	}
	mat.Close()

	s.source = src
	s.identity = identity
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	go s.captureLoop(src, s.stopCh, s.doneCh)

	s.log.Info().Str("source", src.ID()).Msg("camera connected")
	return nil
}

// Disconnect stops the capture goroutine, releases the source, and clears
// the buffered frame. Idempotent.
func (s *Session) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teardownLocked()
}

// teardownLocked releases the current source, if any. The capture goroutine
// is stopped and joined before the source handle is closed, so the loop
// never reads from a released handle.
func (s *Session) teardownLocked() {
	if s.source == nil {
		return
	}

	close(s.stopCh)
	<-s.doneCh

	if err := s.source.Close(); err != nil {
		s.log.Warn().Err(err).Str("source", s.source.ID()).Msg("error closing camera source")
	}

	s.log.Info().Str("source", s.source.ID()).Msg("camera disconnected")
	s.source = nil
	s.identity = nil
	s.stopCh = nil
	s.doneCh = nil
	s.buf.Clear()
}

// captureLoop reads frames at the session cadence and stores JPEG-encoded
// frames in the buffer. Failed reads are skipped so that transient stream
// hiccups do not kill the connection; the loop exits only when stop closes.
func (s *Session) captureLoop(src Source, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			mat, err := src.ReadFrame()
			if err != nil {
				s.log.Debug().Err(err).Msg("frame read failed")
				continue
			}

			buf, err := gocv.IMEncode(".jpg", *mat)
			mat.Close()
			if err != nil {
				s.log.Debug().Err(err).Msg("frame encode failed")
				continue
			}

			data := make([]byte, buf.Len())
			copy(data, buf.GetBytes())
			buf.Close()

			s.buf.Set(data)
		}
	}
}

// FrameJPEG returns the most recently captured frame as JPEG bytes, or nil
// if no frame has been captured yet. Never blocks on the capture cadence.
func (s *Session) FrameJPEG() []byte {
	return s.buf.Get()
}

// Status returns whether a source is connected and its identity (device
// index or URL; nil when disconnected).
func (s *Session) Status() (connected bool, identity any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source != nil, s.identity
}
