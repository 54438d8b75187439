package server

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tugdual/shopsight/internal/auth"
	"github.com/tugdual/shopsight/internal/capture"
	"github.com/tugdual/shopsight/internal/store"
	"github.com/tugdual/shopsight/internal/training"
	"github.com/tugdual/shopsight/internal/zones"
)

type testEnv struct {
	server    *Server
	camera    *capture.Session
	simulator *training.Simulator
	sessions  *auth.Manager
}

// newTestEnv builds a full server wired to temp storage and mock camera
// sources.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	tmpDir := t.TempDir()

	st, err := store.New(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	camera := capture.NewSession(zerolog.Nop(), 100)
	camera.SetSourceFactory(
		func(index int) capture.Source { return capture.NewMockSource("mock") },
		func(url string) capture.Source { return capture.NewMockSource("mock") },
	)
	t.Cleanup(camera.Disconnect)

	simulator := training.New(zerolog.Nop())
	simulator.SetEpochDelay(5 * time.Millisecond)
	simulator.SetHistory(st.Runs())

	sessions := auth.NewManager(time.Hour)

	srv := New(Config{
		Log:       zerolog.Nop(),
		Camera:    camera,
		Zones:     zones.NewStore(filepath.Join(tmpDir, "zones_config.json"), zerolog.Nop()),
		Training:  simulator,
		Store:     st,
		Sessions:  sessions,
		Credentials: auth.StaticCredentials{
			Username: "admin",
			Password: "s3cret",
		},
	})

	return &testEnv{
		server:    srv,
		camera:    camera,
		simulator: simulator,
		sessions:  sessions,
	}
}

// do performs a request against the in-memory server.
func (e *testEnv) do(t *testing.T, method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}

	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

// login authenticates as the configured admin and returns the session cookie.
func (e *testEnv) login(t *testing.T) *http.Cookie {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/api/auth/login",
		map[string]string{"username": "admin", "password": "s3cret"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d: %s", rec.Code, rec.Body.String())
	}

	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.SessionCookie {
			return c
		}
	}
	t.Fatal("login response carried no session cookie")
	return nil
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) resultResponse {
	t.Helper()
	var res resultResponse
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return res
}

func TestServer_Health(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodGet, "/api/health", nil, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %v, want ok", body["status"])
	}
	if _, exists := body["uptime"]; !exists {
		t.Error("expected 'uptime' field in response")
	}
}

func TestServer_RoutesRequireSession(t *testing.T) {
	e := newTestEnv(t)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/camera/connect"},
		{http.MethodPost, "/api/camera/disconnect"},
		{http.MethodGet, "/api/camera/frame"},
		{http.MethodGet, "/api/camera/status"},
		{http.MethodPost, "/api/zones/save"},
		{http.MethodGet, "/api/zones/load"},
		{http.MethodPost, "/api/training/start"},
		{http.MethodGet, "/api/training/status"},
		{http.MethodPost, "/api/training/stop"},
		{http.MethodGet, "/api/training/history"},
		{http.MethodPost, "/api/auth/logout"},
		{http.MethodGet, "/api/auth/me"},
	}

	for _, p := range paths {
		rec := e.do(t, p.method, p.path, nil, nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s without session: status = %d, want %d",
				p.method, p.path, rec.Code, http.StatusUnauthorized)
		}
	}
}

func TestServer_LoginRejectsBadCredentials(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodPost, "/api/auth/login",
		map[string]string{"username": "admin", "password": "wrong"}, nil)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if res := decodeResult(t, rec); res.Success {
		t.Error("success = true for bad credentials")
	}
}

func TestServer_Me(t *testing.T) {
	e := newTestEnv(t)
	cookie := e.login(t)

	rec := e.do(t, http.MethodGet, "/api/auth/me", nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["username"] != "admin" || body["is_admin"] != true {
		t.Errorf("me = %v, want admin identity", body)
	}
}

func TestServer_LogoutRevokesSession(t *testing.T) {
	e := newTestEnv(t)
	cookie := e.login(t)

	rec := e.do(t, http.MethodPost, "/api/auth/logout", nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("logout status = %d", rec.Code)
	}

	rec = e.do(t, http.MethodGet, "/api/auth/me", nil, cookie)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status after logout = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestServer_CameraLifecycle(t *testing.T) {
	e := newTestEnv(t)
	cookie := e.login(t)

	// Connect a USB camera.
	rec := e.do(t, http.MethodPost, "/api/camera/connect",
		map[string]any{"type": "usb", "camera_id": 0}, cookie)
	if res := decodeResult(t, rec); !res.Success {
		t.Fatalf("connect failed: %s", res.Message)
	}

	// Status reflects the connection.
	rec = e.do(t, http.MethodGet, "/api/camera/status", nil, cookie)
	var status map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("failed to decode status: %v", err)
	}
	if status["connected"] != true {
		t.Errorf("connected = %v, want true", status["connected"])
	}
	if status["camera_id"] != float64(0) {
		t.Errorf("camera_id = %v, want 0", status["camera_id"])
	}

	// Poll until a frame is available; it must decode from base64.
	deadline := time.Now().Add(2 * time.Second)
	var frame frameResponse
	for time.Now().Before(deadline) {
		rec = e.do(t, http.MethodGet, "/api/camera/frame", nil, cookie)
		if err := json.NewDecoder(rec.Body).Decode(&frame); err != nil {
			t.Fatalf("failed to decode frame response: %v", err)
		}
		if frame.Success {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !frame.Success {
		t.Fatal("no frame became available before deadline")
	}
	if _, err := base64.StdEncoding.DecodeString(frame.Frame); err != nil {
		t.Errorf("frame is not valid base64: %v", err)
	}

	// Disconnect; the next frame poll reports no frame.
	rec = e.do(t, http.MethodPost, "/api/camera/disconnect", nil, cookie)
	if res := decodeResult(t, rec); !res.Success {
		t.Fatalf("disconnect failed: %s", res.Message)
	}

	rec = e.do(t, http.MethodGet, "/api/camera/frame", nil, cookie)
	if err := json.NewDecoder(rec.Body).Decode(&frame); err != nil {
		t.Fatalf("failed to decode frame response: %v", err)
	}
	if frame.Success {
		t.Error("frame still available after disconnect")
	}
}

func TestServer_CameraConnectFailure(t *testing.T) {
	e := newTestEnv(t)
	cookie := e.login(t)

	e.camera.SetSourceFactory(
		func(index int) capture.Source {
			src := capture.NewMockSource("dead")
			src.FailOpen = true
			return src
		},
		nil,
	)

	rec := e.do(t, http.MethodPost, "/api/camera/connect",
		map[string]any{"type": "usb", "camera_id": 3}, cookie)
	res := decodeResult(t, rec)
	if res.Success {
		t.Error("connect reported success for a dead device")
	}
	if res.Message != "Cannot open camera" {
		t.Errorf("message = %q, want open failure message", res.Message)
	}
}

func TestServer_CameraConnectValidation(t *testing.T) {
	e := newTestEnv(t)
	cookie := e.login(t)

	t.Run("ip without url", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/api/camera/connect",
			map[string]any{"type": "ip"}, cookie)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/api/camera/connect",
			map[string]any{"type": "carrier-pigeon"}, cookie)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
		}
	})
}

func TestServer_ZonesSaveLoad(t *testing.T) {
	e := newTestEnv(t)
	cookie := e.login(t)

	saved := map[string]any{
		"zones": [][][2]float64{
			{{0, 0}, {1, 0}, {1, 1}},
		},
	}
	rec := e.do(t, http.MethodPost, "/api/zones/save", saved, cookie)
	if res := decodeResult(t, rec); !res.Success {
		t.Fatalf("save failed: %s", res.Message)
	}

	rec = e.do(t, http.MethodGet, "/api/zones/load", nil, cookie)
	var doc zones.Document
	if err := json.NewDecoder(rec.Body).Decode(&doc); err != nil {
		t.Fatalf("failed to decode zone document: %v", err)
	}
	if len(doc.Zones) != 1 || len(doc.Zones[0]) != 3 {
		t.Fatalf("loaded zones = %v, want one triangle", doc.Zones)
	}
	if doc.Zones[0][2] != (zones.Point{1, 1}) {
		t.Errorf("third vertex = %v, want [1 1]", doc.Zones[0][2])
	}
}

func TestServer_TrainingRequiresAdmin(t *testing.T) {
	e := newTestEnv(t)

	// A valid but non-admin session must be rejected with 403.
	token := e.sessions.Create(auth.Identity{Username: "viewer"})
	cookie := &http.Cookie{Name: auth.SessionCookie, Value: token}

	rec := e.do(t, http.MethodPost, "/api/training/start",
		map[string]any{"type": "detection", "epochs": 3}, cookie)
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d for non-admin, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestServer_TrainingLifecycle(t *testing.T) {
	e := newTestEnv(t)
	cookie := e.login(t)

	rec := e.do(t, http.MethodPost, "/api/training/start",
		map[string]any{"type": "detection", "epochs": 3}, cookie)
	if res := decodeResult(t, rec); !res.Success {
		t.Fatalf("start failed: %s", res.Message)
	}

	// A second start while running is rejected without resetting progress.
	rec = e.do(t, http.MethodPost, "/api/training/start",
		map[string]any{"type": "counting", "epochs": 50}, cookie)
	if res := decodeResult(t, rec); res.Success {
		t.Error("second start succeeded while a job was running")
	}

	// Poll status until the job completes.
	deadline := time.Now().Add(5 * time.Second)
	var status training.Status
	for time.Now().Before(deadline) {
		rec = e.do(t, http.MethodGet, "/api/training/status", nil, cookie)
		if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
			t.Fatalf("failed to decode status: %v", err)
		}
		if !status.Running && status.Epoch > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	if status.Running {
		t.Fatal("job still running at deadline")
	}
	if status.Progress != 100 || status.TotalEpochs != 3 {
		t.Errorf("final status = %+v, want 3 epochs at 100%%", status)
	}

	// The run shows up in history.
	rec = e.do(t, http.MethodGet, "/api/training/history", nil, cookie)
	var history trainingHistoryResponse
	if err := json.NewDecoder(rec.Body).Decode(&history); err != nil {
		t.Fatalf("failed to decode history: %v", err)
	}
	if len(history.Runs) != 1 {
		t.Fatalf("history has %d runs, want 1", len(history.Runs))
	}
	if history.Runs[0].Outcome != store.OutcomeCompleted {
		t.Errorf("run outcome = %q, want completed", history.Runs[0].Outcome)
	}
}

func TestServer_TrainingStop(t *testing.T) {
	e := newTestEnv(t)
	cookie := e.login(t)

	e.simulator.SetEpochDelay(20 * time.Millisecond)
	rec := e.do(t, http.MethodPost, "/api/training/start",
		map[string]any{"type": "detection", "epochs": 1000}, cookie)
	if res := decodeResult(t, rec); !res.Success {
		t.Fatalf("start failed: %s", res.Message)
	}

	rec = e.do(t, http.MethodPost, "/api/training/stop", nil, cookie)
	if res := decodeResult(t, rec); !res.Success {
		t.Fatalf("stop failed: %s", res.Message)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if status := e.simulator.Status(); !status.Running {
			if status.Message != "Training stopped by user" {
				t.Errorf("message = %q, want stop message", status.Message)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("job did not stop before deadline")
}
