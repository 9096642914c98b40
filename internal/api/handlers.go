// Package api is the HTTP front door of the assistant.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/hlog"

	"github.com/finn-shopping-assistant/server/internal/agent/model"
	"github.com/finn-shopping-assistant/server/internal/core"
	errx "github.com/finn-shopping-assistant/server/internal/core/error"
	"github.com/finn-shopping-assistant/server/internal/images"
)

// SessionHeader carries the thread id when the body has none.
const SessionHeader = "X-Session-ID"

const maxBodyBytes = 1 << 20

// Chatter runs one chat turn.
type Chatter interface {
	ProcessMessage(ctx context.Context, in model.TurnInput) (*model.TurnOutput, error)
}

type APIHandler struct {
	chat   Chatter
	images images.Store
	env    core.Environment
}

func NewAPIHandler(chat Chatter, imgs images.Store, env core.Environment) *APIHandler {
	return &APIHandler{chat: chat, images: imgs, env: env}
}

type ChatRequest struct {
	Message   string          `json:"message"`
	History   []model.Message `json:"history,omitempty"`
	SessionID string          `json:"session_id,omitempty"`
}

type ChatResponse struct {
	Response  string `json:"response"`
	SessionID string `json:"session_id"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	Traceback string `json:"traceback,omitempty"`
}

var (
	errNoBody    = errors.New("no JSON data received")
	errNoMessage = errors.New("no message field in request")
)

func (h *APIHandler) TestHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": "Backend is running"})
}

func (h *APIHandler) ChatHandler(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			err = errNoBody
		}
		h.writeError(w, r, errx.BadRequest(err))
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		h.writeError(w, r, errx.BadRequest(errNoMessage))
		return
	}

	sessionID := sessionID(req, r)
	hlog.FromRequest(r).Debug().
		Str("thread_id", sessionID).
		Int("history", len(req.History)).
		Msg("Processing chat message")

	out, err := h.chat.ProcessMessage(r.Context(), model.TurnInput{
		ThreadID: sessionID,
		Message:  req.Message,
		History:  req.History,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set(SessionHeader, out.ThreadID)
	writeJSON(w, http.StatusOK, ChatResponse{Response: out.Response, SessionID: out.ThreadID})
}

func (h *APIHandler) ImageHandler(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	if err := images.ValidName(name); err != nil || h.images == nil {
		http.Error(w, "Image not found", http.StatusNotFound)
		return
	}

	rc, err := h.images.Open(r.Context(), name)
	if err != nil {
		if !errors.Is(err, images.ErrNotFound) {
			hlog.FromRequest(r).Error().Err(err).Str("filename", name).Msg("Error serving image")
		}
		http.Error(w, "Image not found", http.StatusNotFound)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Str("filename", name).Msg("Image stream interrupted")
	}
}

func sessionID(req ChatRequest, r *http.Request) string {
	if id := strings.TrimSpace(req.SessionID); id != "" {
		return id
	}
	if id := strings.TrimSpace(r.Header.Get(SessionHeader)); id != "" {
		return id
	}
	return uuid.NewString()
}

func (h *APIHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errx.StatusOf(err)
	body := ErrorResponse{Error: errx.MessageOf(err)}

	var appErr *errx.AppError
	if status == http.StatusBadRequest && errors.As(err, &appErr) && appErr.Err != nil {
		body.Error = appErr.Err.Error()
	}
	if h.env.ExposeDiagnostics() {
		body.Traceback = err.Error()
	}

	log := hlog.FromRequest(r)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Int("status", status).Msg("Error in chat endpoint")
	} else {
		log.Warn().Err(err).Int("status", status).Msg("Rejected chat request")
	}

	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
