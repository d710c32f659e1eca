package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/samber/lo"

	"chatrelay/internal/auth"
	"chatrelay/internal/store"
)

// credentialFrom extracts the session credential from a request: the token
// query parameter (WebSocket clients), a bearer Authorization header, or the
// session cookie set by login.
func credentialFrom(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	if cookie, err := r.Cookie("session"); err == nil {
		return cookie.Value
	}
	return ""
}

// identify verifies the request's credential, writing a 401 on failure.
func (s *Server) identify(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := s.auth.VerifyIdentity(credentialFrom(r))
	if err != nil {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return "", false
	}
	return userID, true
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// handleWebSocket admits an authenticated user to the relay. Identity is
// verified before the upgrade; a connection that cannot be verified is
// rejected as a failed handshake and never reaches the registry.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID, err := s.auth.VerifyIdentity(credentialFrom(r))
	if err != nil {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := NewClient(conn, userID, s.relay, s.registry, s.cfg, s.log)
	s.registry.Register(userID, client)
	s.track(client)
	s.log.Info("connection admitted", "user", userID, "online", s.registry.Len())
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	err := s.auth.Register(req)
	switch {
	case errors.Is(err, auth.ErrUserExists):
		http.Error(w, "user already exists", http.StatusConflict)
	case err != nil:
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		respondJSON(w, http.StatusCreated, map[string]string{"id": req.ID})
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID       string `json:"id"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	token, err := s.auth.Login(req.ID, req.Password)
	if err != nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "session",
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		MaxAge:   int(s.cfg.SessionTTL.Seconds()),
	})
	respondJSON(w, http.StatusOK, map[string]string{"token": token})
}

// handleHistory returns the caller's conversations, oldest first. The relay
// itself never reads the log; this is the history-viewing side of the store.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.identify(w, r)
	if !ok {
		return
	}

	messages, err := s.messages.Messages()
	if err != nil {
		s.log.Error("read history", "error", err)
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}

	mine := lo.Filter(messages, func(m store.Message, _ int) bool {
		return m.From == userID || m.To == userID
	})
	if mine == nil {
		mine = []store.Message{}
	}
	respondJSON(w, http.StatusOK, mine)
}

// handleUpload stores an authenticated multipart upload and returns the URL
// it will be served under.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.identify(w, r); !ok {
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if name == "" || name == "." || name == string(filepath.Separator) {
		http.Error(w, "invalid file name", http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "read upload", http.StatusInternalServerError)
		return
	}

	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		s.log.Error("create upload dir", "error", err)
		http.Error(w, "storage unavailable", http.StatusInternalServerError)
		return
	}
	if err := os.WriteFile(filepath.Join(s.cfg.UploadDir, name), data, 0o644); err != nil {
		s.log.Error("store upload", "file", name, "error", err)
		http.Error(w, "storage unavailable", http.StatusInternalServerError)
		return
	}

	kind := mimetype.Detect(data)
	respondJSON(w, http.StatusOK, map[string]string{
		"url":         "/uploads/" + name,
		"contentType": kind.String(),
	})
}

// handleHealth provides a simple health check endpoint that returns server status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "chatrelay is running, %d users online", s.registry.Len())
}
