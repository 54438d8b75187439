package capture

import (
	"errors"
	"testing"
)

func TestMockSource_ReadBeforeOpen(t *testing.T) {
	src := NewMockSource("0")

	if _, err := src.ReadFrame(); !errors.Is(err, ErrSourceClosed) {
		t.Errorf("ReadFrame() error = %v, want ErrSourceClosed", err)
	}
}

func TestMockSource_OpenReadClose(t *testing.T) {
	src := NewMockSource("0")

	if err := src.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	mat, err := src.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	defer mat.Close()

	if mat.Empty() {
		t.Error("ReadFrame() returned an empty frame")
	}
	if src.Reads() != 1 {
		t.Errorf("Reads() = %d, want 1", src.Reads())
	}

	if err := src.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if src.CloseCalls() != 1 {
		t.Errorf("CloseCalls() = %d, want 1", src.CloseCalls())
	}
	if src.IsOpen() {
		t.Error("IsOpen() = true after Close()")
	}
}

func TestMockSource_Failures(t *testing.T) {
	t.Run("open failure", func(t *testing.T) {
		src := NewMockSource("0")
		src.FailOpen = true

		if err := src.Open(); !errors.Is(err, ErrOpenFailed) {
			t.Errorf("Open() error = %v, want ErrOpenFailed", err)
		}
	})

	t.Run("read failure", func(t *testing.T) {
		src := NewMockSource("0")
		src.FailRead = true

		if err := src.Open(); err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		if _, err := src.ReadFrame(); !errors.Is(err, ErrReadFailed) {
			t.Errorf("ReadFrame() error = %v, want ErrReadFailed", err)
		}
	})
}
