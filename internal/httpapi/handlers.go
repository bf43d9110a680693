package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ansari-project/qiyas/internal/models"
	"github.com/ansari-project/qiyas/internal/sessions"
)

// sessionCookie lets browser clients keep their session without carrying
// the id in every request body.
const sessionCookie = "qiyas_session"

type queryRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

type queryResponse struct {
	SessionID string `json:"session_id"`
}

// handleQuery stages a prompt on a session, creating one when the request
// names none. The prompt lands in every model history; the client then
// opens the stream to run it.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.draining.Load() {
		s.jsonError(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, int64(s.cfg.MaxMessageBytes)+4096)
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		s.jsonError(w, "message required", http.StatusBadRequest)
		return
	}
	if len(message) > s.cfg.MaxMessageBytes {
		s.jsonError(w, "message too large", http.StatusBadRequest)
		return
	}

	var sess *sessions.Session
	if req.SessionID != "" {
		var err error
		sess, err = s.store.Get(req.SessionID)
		if err != nil {
			s.jsonError(w, "session not found", http.StatusNotFound)
			return
		}
	} else {
		// A cookie is advisory: a stale one falls through to a fresh
		// session instead of locking the client out.
		if c, err := r.Cookie(sessionCookie); err == nil {
			sess, _ = s.store.Get(c.Value)
		}
	}
	if sess == nil {
		var err error
		sess, err = s.store.Create()
		if errors.Is(err, sessions.ErrOverloaded) {
			w.Header().Set("Retry-After", "30")
			s.jsonError(w, "session store full", http.StatusServiceUnavailable)
			return
		}
		if err != nil {
			s.jsonError(w, "internal error", http.StatusInternalServerError)
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookie,
			Value:    sess.ID,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}

	if err := sess.StagePrompt(message); err != nil {
		if errors.Is(err, sessions.ErrBusy) {
			s.jsonError(w, "generation in progress", http.StatusConflict)
			return
		}
		s.jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.jsonResponse(w, queryResponse{SessionID: sess.ID})
}

// handleStream runs the staged prompt and streams the merged events. The
// response commits the session to one consumer; a parallel stream attempt
// conflicts until this generation finishes.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.draining.Load() {
		s.jsonError(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/stream/")
	if id == "" || strings.Contains(id, "/") {
		s.jsonError(w, "session not found", http.StatusNotFound)
		return
	}
	sess, err := s.store.Get(id)
	if err != nil {
		s.jsonError(w, "session not found", http.StatusNotFound)
		return
	}

	gen, err := s.orch.Begin(r.Context(), sess)
	switch {
	case errors.Is(err, sessions.ErrBusy):
		s.jsonError(w, "generation in progress", http.StatusConflict)
		return
	case errors.Is(err, sessions.ErrNoPrompt):
		s.jsonError(w, "no prompt staged", http.StatusConflict)
		return
	case err != nil:
		s.jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	if err := s.emitter.Stream(r.Context(), w, gen); err != nil {
		// The generation was already cancelled and drained; nothing has
		// been written yet on this path.
		s.logger.Error("stream setup failed", "session_id", sess.ID, "error", err)
		s.jsonError(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	s.store.Touch(sess.ID)
}

// handleCancel stops the session's active generation. The stream consumer
// observes the terminal events and closes as usual.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/cancel/")
	if id == "" || strings.Contains(id, "/") {
		s.jsonError(w, "session not found", http.StatusNotFound)
		return
	}
	sess, err := s.store.Get(id)
	if err != nil {
		s.jsonError(w, "session not found", http.StatusNotFound)
		return
	}
	gen, ok := sess.Generation()
	if !ok {
		s.jsonError(w, "no active generation", http.StatusNotFound)
		return
	}
	gen.Cancel()
	w.WriteHeader(http.StatusNoContent)
}

type modelInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// handleModels returns the comparison roster for clients that render the
// columns dynamically.
func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	roster := models.Roster()
	out := make([]modelInfo, 0, len(roster))
	for _, m := range roster {
		out = append(out, modelInfo{ID: m.ID, Name: m.Name})
	}
	s.jsonResponse(w, out)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// jsonResponse writes a JSON response.
func (s *Server) jsonResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("json encode error", "error", err)
	}
}

// jsonError writes a JSON error response.
func (s *Server) jsonError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
