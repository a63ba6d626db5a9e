package webchat

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/banao-ai/jarvisctl/pkg/chat"
	"github.com/banao-ai/jarvisctl/pkg/config"
	"github.com/banao-ai/jarvisctl/pkg/logger"
)

const sessionCookie = "jarvisctl_session"

// Server hosts the web console: the embedded widget page plus the JSON
// bridge into the controller's action table.
type Server struct {
	config   config.WebChatConfig
	ctrl     *chat.Controller
	server   *http.Server
	sessions map[string]time.Time
	mu       sync.RWMutex
}

func NewServer(cfg config.WebChatConfig, ctrl *chat.Controller) *Server {
	return &Server{
		config:   cfg,
		ctrl:     ctrl,
		sessions: make(map[string]time.Time),
	}
}

// authEnabled returns true when both username and password are configured.
func (s *Server) authEnabled() bool {
	return s.config.Username != "" && s.config.Password != ""
}

// createSession generates a random session token and stores it.
func (s *Server) createSession() string {
	b := make([]byte, 32)
	rand.Read(b)
	token := hex.EncodeToString(b)
	s.mu.Lock()
	s.sessions[token] = time.Now().Add(24 * time.Hour)
	s.mu.Unlock()
	return token
}

// validSession checks if the request carries a valid session cookie.
func (s *Server) validSession(r *http.Request) bool {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		return false
	}
	s.mu.RLock()
	expiry, ok := s.sessions[cookie.Value]
	s.mu.RUnlock()
	return ok && time.Now().Before(expiry)
}

// requireAuth wraps a handler with authentication. If auth is not configured, it passes through.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authEnabled() {
			next(w, r)
			return
		}
		if s.validSession(r) {
			next(w, r)
			return
		}
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	}
}

// requireAuthAPI is like requireAuth but returns 401 JSON for API endpoints.
func (s *Server) requireAuthAPI(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authEnabled() {
			next(w, r)
			return
		}
		if s.validSession(r) {
			next(w, r)
			return
		}
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}
}

// Handler builds the console mux. Exposed so tests can drive it without
// binding a port.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.requireAuth(s.handleUI))
	mux.HandleFunc("/login", s.handleLogin)
	mux.HandleFunc("/logout", s.handleLogout)
	mux.HandleFunc("/console/poll", s.requireAuthAPI(s.handlePoll))
	mux.HandleFunc("/console/send", s.requireAuthAPI(s.handleSend))
	mux.HandleFunc("/console/upload", s.requireAuthAPI(s.handleUpload))
	mux.HandleFunc("/console/ingest", s.requireAuthAPI(s.handleIngest))
	mux.HandleFunc("/console/clear", s.requireAuthAPI(s.handleClear))
	mux.HandleFunc("/console/dismiss", s.requireAuthAPI(s.handleDismiss))
	mux.HandleFunc("/console/status", s.requireAuthAPI(s.handleStatus))
	return mux
}

func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{Addr: addr, Handler: s.Handler()}

	if s.authEnabled() {
		logger.InfoCF("webchat", "Console started (auth enabled)", map[string]interface{}{"addr": addr})
	} else {
		logger.InfoCF("webchat", "Console started (no auth)", map[string]interface{}{"addr": addr})
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.ErrorCF("webchat", "Console server error", map[string]interface{}{"error": err.Error()})
		}
	}()

	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	// If auth not configured, redirect to the console
	if !s.authEnabled() {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	// Already logged in
	if s.validSession(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	if r.Method == http.MethodGet {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, loginHTML)
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	contentType := r.Header.Get("Content-Type")
	if contentType == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad request"})
			return
		}
	} else {
		r.ParseForm()
		body.Username = r.FormValue("username")
		body.Password = r.FormValue("password")
	}

	usernameMatch := subtle.ConstantTimeCompare([]byte(body.Username), []byte(s.config.Username)) == 1
	passwordMatch := subtle.ConstantTimeCompare([]byte(body.Password), []byte(s.config.Password)) == 1

	if !usernameMatch || !passwordMatch {
		logger.WarnCF("webchat", "Console login failed", map[string]interface{}{
			"remote": r.RemoteAddr,
		})
		if contentType == "application/json" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, loginErrorHTML)
		return
	}

	token := s.createSession()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   86400,
	})

	if contentType == "application/json" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		s.mu.Lock()
		delete(s.sessions, cookie.Value)
		s.mu.Unlock()
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Server) handleUI(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, consoleHTML)
}

func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Snapshot())
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad request"})
		return
	}

	res, err := s.ctrl.Do("send", chat.ActionRequest{Message: req.Message})
	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "message is empty"})
	case errors.Is(err, chat.ErrBusy):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "a request is already in flight"})
	case errors.Is(err, chat.ErrStale):
		writeJSON(w, http.StatusOK, map[string]string{"status": "discarded"})
	case err != nil:
		// the failure already lives in the transcript and modal
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "error", "entry": res.Entry})
	default:
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "success", "entry": res.Entry})
	}
}

// handleUpload relays browser-selected files: parts land in a scratch
// directory, the controller streams them to the backend, and the
// scratch copies are removed.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad multipart form"})
		return
	}
	files := r.MultipartForm.File["file"]
	if len(files) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no files"})
		return
	}

	dir, err := os.MkdirTemp("", "jarvisctl-upload-")
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "scratch dir failed"})
		return
	}
	defer os.RemoveAll(dir)

	var paths []string
	for _, fh := range files {
		src, err := fh.Open()
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable file part"})
			return
		}
		dstPath := filepath.Join(dir, filepath.Base(fh.Filename))
		dst, err := os.Create(dstPath)
		if err != nil {
			src.Close()
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "scratch write failed"})
			return
		}
		_, err = io.Copy(dst, src)
		src.Close()
		dst.Close()
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "scratch write failed"})
			return
		}
		paths = append(paths, dstPath)
	}

	req := chat.ActionRequest{
		Paths:        paths,
		ChunkSize:    formInt(r, "chunk_size"),
		ChunkOverlap: formInt(r, "chunk_overlap"),
	}
	res, err := s.ctrl.Do("upload", req)
	if errors.Is(err, chat.ErrBusy) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "an upload is already running"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "error", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": res.Message})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Paths         string `json:"paths"`
		ChunkSize     *int   `json:"chunk_size"`
		ChunkOverlap  *int   `json:"chunk_overlap"`
		ClearExisting bool   `json:"clear_existing"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad request"})
		return
	}
	if req.Paths == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "paths is empty"})
		return
	}

	res, err := s.ctrl.Do("ingest", chat.ActionRequest{
		Paths:         []string{req.Paths},
		ChunkSize:     req.ChunkSize,
		ChunkOverlap:  req.ChunkOverlap,
		ClearExisting: req.ClearExisting,
	})
	if errors.Is(err, chat.ErrBusy) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "an ingestion is already running"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "error", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": res.Message})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	res, _ := s.ctrl.Do("clear", chat.ActionRequest{})
	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": res.Message})
}

func (s *Server) handleDismiss(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.ctrl.Do("dismiss", chat.ActionRequest{})
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	res, err := s.ctrl.Do("status", chat.ActionRequest{})
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "error", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": res.Message})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// formInt returns nil when the field is absent or malformed, letting the
// controller fall back to its configured default.
func formInt(r *http.Request, field string) *int {
	n, err := strconv.Atoi(r.FormValue(field))
	if err != nil {
		return nil
	}
	return &n
}
