package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"docchat/internal/models"
	"docchat/internal/services"
)

type SessionHandler struct {
	conversations *services.ConversationService
}

func NewSessionHandler(conv *services.ConversationService) *SessionHandler {
	return &SessionHandler{conversations: conv}
}

type createSessionRequest struct {
	APIKey string `json:"api_key"`
	Mode   string `json:"mode"`
}

type sessionResponse struct {
	SessionID  string                  `json:"session_id"`
	Mode       string                  `json:"mode"`
	Transcript []models.Message        `json:"transcript"`
	Document   *models.DocumentContext `json:"document,omitempty"`
	LastError  string                  `json:"last_error,omitempty"`
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	sess, err := h.conversations.Create(req.APIKey, req.Mode)
	if err != nil {
		if errors.Is(err, services.ErrMissingAPIKey) {
			// The flow halts here; no external call is ever made without a key.
			http.Error(w, "Please add your API key to continue.", http.StatusUnprocessableEntity)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusCreated, h.render(sess))
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess, err := h.conversations.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, h.render(sess))
}

func (h *SessionHandler) Dispose(w http.ResponseWriter, r *http.Request) {
	if err := h.conversations.Dispose(chi.URLParam(r, "sessionID")); err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) render(sess *models.Session) sessionResponse {
	transcript, doc, lastError := h.conversations.Snapshot(sess)
	return sessionResponse{
		SessionID:  sess.ID,
		Mode:       sess.Mode,
		Transcript: transcript,
		Document:   doc,
		LastError:  lastError,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
