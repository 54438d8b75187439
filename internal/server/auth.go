package server

import (
	"encoding/json"
	"net/http"

	"github.com/tugdual/shopsight/internal/auth"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// handleLogin handles POST /api/auth/login. On success a session cookie is
// issued; failures always come back as a flag plus message, never a stack.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeResult(w, http.StatusBadRequest, false, "Invalid request body")
		return
	}

	identity, ok := s.config.Credentials.Authenticate(req.Username, req.Password)
	if !ok {
		s.config.Log.Warn().Str("username", req.Username).Msg("login rejected")
		writeResult(w, http.StatusUnauthorized, false, "Invalid credentials")
		return
	}

	token := s.config.Sessions.Create(identity)
	s.config.Sessions.SetCookie(w, token)

	s.config.Log.Info().Str("username", identity.Username).Msg("login")
	writeResult(w, http.StatusOK, true, "Login successful")
}

// handleLogout handles POST /api/auth/logout.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(auth.SessionCookie); err == nil {
		s.config.Sessions.Revoke(cookie.Value)
	}
	s.config.Sessions.ClearCookie(w)

	writeResult(w, http.StatusOK, true, "Logged out")
}

// handleMe handles GET /api/auth/me.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	writeJSON(w, http.StatusOK, map[string]any{
		"username": identity.Username,
		"is_admin": identity.Admin,
	})
}
