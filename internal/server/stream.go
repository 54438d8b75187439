package server

import (
	"fmt"
	"net/http"
	"time"
)

// Streaming cadence and idle backoff.
const (
	streamInterval = 66 * time.Millisecond // ~15 FPS to the browser
	streamIdleWait = 100 * time.Millisecond
)

// handleCameraStream serves multipart MJPEG from the frame buffer. Each
// client gets its own pacing loop; the capture goroutine is never blocked
// by a slow consumer, which simply sees dropped frames.
func (s *Server) handleCameraStream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	for {
		select {
		case <-r.Context().Done():
			return
		default:
		}

		data := s.config.Camera.FrameJPEG()
		if data == nil {
			time.Sleep(streamIdleWait)
			continue
		}

		fmt.Fprintf(w, "--frame\r\n")
		fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
		fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(data))
		if _, err := w.Write(data); err != nil {
			return
		}
		fmt.Fprintf(w, "\r\n")

		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}

		time.Sleep(streamInterval)
	}
}
