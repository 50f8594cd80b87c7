package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"docchat/internal/models"
	"docchat/internal/services"
)

type ChatHandler struct {
	conversations *services.ConversationService
}

func NewChatHandler(conv *services.ConversationService) *ChatHandler {
	return &ChatHandler{conversations: conv}
}

type turnRequest struct {
	Message  string `json:"message,omitempty"`
	Question string `json:"question,omitempty"`
}

// sseEvent is the JSON payload of every server-sent event: unnamed events
// carry a text fragment, the terminal event is either "done" or "error".
type sseEvent struct {
	Text  string `json:"text,omitempty"`
	Reply string `json:"reply,omitempty"`
	Error string `json:"error,omitempty"`
}

// Chat runs one chatbot-mode turn and streams the assistant reply as SSE.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	sess, req, ok := h.acceptTurn(w, r)
	if !ok {
		return
	}
	if req.Message == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}
	h.streamTurn(w, r, sess, func(onFragment func(string)) (string, error) {
		return h.conversations.SubmitTurn(r.Context(), sess, req.Message, onFragment)
	})
}

// Ask runs one stateless document question and streams the answer as SSE.
func (h *ChatHandler) Ask(w http.ResponseWriter, r *http.Request) {
	sess, req, ok := h.acceptTurn(w, r)
	if !ok {
		return
	}
	if req.Question == "" {
		http.Error(w, "question is required", http.StatusBadRequest)
		return
	}
	h.streamTurn(w, r, sess, func(onFragment func(string)) (string, error) {
		return h.conversations.AskDocument(r.Context(), sess, req.Question, onFragment)
	})
}

func (h *ChatHandler) acceptTurn(w http.ResponseWriter, r *http.Request) (*models.Session, turnRequest, bool) {
	sess, err := h.conversations.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return nil, turnRequest{}, false
	}
	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return nil, turnRequest{}, false
	}
	return sess, req, true
}

// streamTurn renders one turn as an SSE stream: one unnamed event per
// fragment, then a terminal done or error event. Precondition failures
// (busy session, wrong mode, missing document) happen before any fragment
// is produced and are rendered as plain HTTP errors instead.
func (h *ChatHandler) streamTurn(w http.ResponseWriter, r *http.Request, sess *models.Session, run func(onFragment func(string)) (string, error)) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	var start sync.Once
	startSSE := func() {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
	}

	reply, err := run(func(fragment string) {
		start.Do(startSSE)
		writeEvent(w, "", sseEvent{Text: fragment})
		flusher.Flush()
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrTurnInFlight):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, services.ErrWrongMode), errors.Is(err, services.ErrNoDocument):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	// The stream may legally produce zero fragments.
	start.Do(startSSE)
	_, _, lastError := h.conversations.Snapshot(sess)
	if lastError != "" {
		writeEvent(w, "error", sseEvent{Error: lastError})
	} else {
		writeEvent(w, "done", sseEvent{Reply: reply})
	}
	flusher.Flush()
}

func writeEvent(w io.Writer, name string, ev sseEvent) {
	payload, _ := json.Marshal(ev)
	if name != "" {
		fmt.Fprintf(w, "event: %s\n", name)
	}
	fmt.Fprintf(w, "data: %s\n\n", payload)
}
