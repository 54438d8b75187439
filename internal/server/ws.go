package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/tugdual/shopsight/internal/capture"
	"github.com/tugdual/shopsight/internal/training"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // panel and API share an origin behind the session check
	},
}

// FramesHandler pushes binary JPEG frames to WebSocket clients.
type FramesHandler struct {
	camera  *capture.Session
	log     zerolog.Logger
	clients map[*websocket.Conn]bool
	mu      sync.RWMutex
}

// NewFramesHandler creates a FramesHandler and starts its broadcast loop.
func NewFramesHandler(camera *capture.Session, log zerolog.Logger) *FramesHandler {
	h := &FramesHandler{
		camera:  camera,
		log:     log,
		clients: make(map[*websocket.Conn]bool),
	}
	go h.broadcast()
	return h
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *FramesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade error")
		return
	}
	defer conn.Close()

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// broadcast sends the latest frame to all connected clients.
func (h *FramesHandler) broadcast() {
	ticker := time.NewTicker(streamInterval)
	defer ticker.Stop()

	for range ticker.C {
		h.mu.RLock()
		idle := len(h.clients) == 0
		h.mu.RUnlock()
		if idle {
			continue
		}

		data := h.camera.FrameJPEG()
		if data == nil {
			continue
		}

		h.mu.RLock()
		for conn := range h.clients {
			conn.WriteMessage(websocket.BinaryMessage, data)
		}
		h.mu.RUnlock()
	}
}

// TrainingProgressHandler pushes training status snapshots to WebSocket
// clients while a job advances.
type TrainingProgressHandler struct {
	simulator *training.Simulator
	log       zerolog.Logger
	clients   map[*websocket.Conn]bool
	mu        sync.RWMutex
}

// NewTrainingProgressHandler creates a TrainingProgressHandler and starts
// its broadcast loop.
func NewTrainingProgressHandler(sim *training.Simulator, log zerolog.Logger) *TrainingProgressHandler {
	h := &TrainingProgressHandler{
		simulator: sim,
		log:       log,
		clients:   make(map[*websocket.Conn]bool),
	}
	go h.broadcast()
	return h
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *TrainingProgressHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade error")
		return
	}
	defer conn.Close()

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// broadcast sends status snapshots to all connected clients. Snapshots are
// only sent while they change, so an idle simulator costs nothing.
func (h *TrainingProgressHandler) broadcast() {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	var last training.Status
	for range ticker.C {
		h.mu.RLock()
		idle := len(h.clients) == 0
		h.mu.RUnlock()
		if idle {
			continue
		}

		status := h.simulator.Status()
		if status == last {
			continue
		}
		last = status

		h.mu.RLock()
		for conn := range h.clients {
			conn.WriteJSON(status)
		}
		h.mu.RUnlock()
	}
}
