package capture

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockSource generates synthetic frames for testing.
type MockSource struct {
	id       string
	FailOpen bool
	FailRead bool

	mu         sync.Mutex
	open       bool
	reads      int
	closeCalls int
}

// NewMockSource creates a mock source with the given identity.
func NewMockSource(id string) *MockSource {
	return &MockSource{id: id}
}

func (m *MockSource) Open() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailOpen {
		return ErrOpenFailed
	}
	m.open = true
	return nil
}

// ReadFrame returns a blank frame of the default dimensions. The caller is
// responsible for closing the returned Mat.
func (m *MockSource) ReadFrame() (*gocv.Mat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.open {
		return nil, ErrSourceClosed
	}
	if m.FailRead {
		return nil, ErrReadFailed
	}
	m.reads++
	mat := gocv.NewMatWithSize(DefaultHeight, DefaultWidth, gocv.MatTypeCV8UC3)
	return &mat, nil
}

func (m *MockSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = false
	m.closeCalls++
	return nil
}

func (m *MockSource) ID() string {
	return m.id
}

// Reads returns the number of successful frame reads.
func (m *MockSource) Reads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}

// CloseCalls returns how many times Close has been called.
func (m *MockSource) CloseCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeCalls
}

// IsOpen reports whether the source is currently open.
func (m *MockSource) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}
