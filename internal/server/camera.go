package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tugdual/shopsight/internal/capture"
)

type connectRequest struct {
	Type     string `json:"type"`
	CameraID *int   `json:"camera_id"`
	URL      string `json:"url"`
}

type frameResponse struct {
	Success bool   `json:"success"`
	Frame   string `json:"frame,omitempty"`
	Message string `json:"message,omitempty"`
}

// handleCameraConnect handles POST /api/camera/connect. Note the underlying
// open call has no timeout; a hung device holds the request until it
// resolves.
func (s *Server) handleCameraConnect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeResult(w, http.StatusBadRequest, false, "Invalid request body")
		return
	}

	var err error
	switch req.Type {
	case "", "usb":
		index := 0
		if req.CameraID != nil {
			index = *req.CameraID
		}
		err = s.config.Camera.ConnectDevice(index)
	case "ip":
		if req.URL == "" {
			writeResult(w, http.StatusBadRequest, false, "Missing stream URL")
			return
		}
		err = s.config.Camera.ConnectURL(req.URL)
	default:
		writeResult(w, http.StatusBadRequest, false, "Unknown camera type: "+req.Type)
		return
	}

	if err != nil {
		writeResult(w, http.StatusOK, false, connectErrorMessage(err, req.Type))
		return
	}

	writeResult(w, http.StatusOK, true, "Camera connected")
}

// connectErrorMessage maps connect failures to the user-facing message.
func connectErrorMessage(err error, camType string) string {
	remote := camType == "ip"
	switch {
	case errors.Is(err, capture.ErrOpenFailed):
		if remote {
			return "Cannot connect to IP camera"
		}
		return "Cannot open camera"
	case errors.Is(err, capture.ErrReadFailed):
		if remote {
			return "Cannot read from IP camera"
		}
		return "Cannot read from camera"
	default:
		return err.Error()
	}
}

// handleCameraDisconnect handles POST /api/camera/disconnect.
func (s *Server) handleCameraDisconnect(w http.ResponseWriter, r *http.Request) {
	s.config.Camera.Disconnect()
	writeResult(w, http.StatusOK, true, "Camera disconnected")
}

// handleCameraFrame handles GET /api/camera/frame. Returns the latest
// buffered frame as base64 JPEG without waiting on the capture cadence.
func (s *Server) handleCameraFrame(w http.ResponseWriter, r *http.Request) {
	data := s.config.Camera.FrameJPEG()
	if data == nil {
		writeJSON(w, http.StatusOK, frameResponse{Success: false, Message: "No frame available"})
		return
	}

	writeJSON(w, http.StatusOK, frameResponse{
		Success: true,
		Frame:   base64.StdEncoding.EncodeToString(data),
	})
}

// handleCameraStatus handles GET /api/camera/status.
func (s *Server) handleCameraStatus(w http.ResponseWriter, r *http.Request) {
	connected, identity := s.config.Camera.Status()

	writeJSON(w, http.StatusOK, map[string]any{
		"connected": connected,
		"camera_id": identity,
	})
}
