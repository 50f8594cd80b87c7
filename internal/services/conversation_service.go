package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"docchat/internal/core"
	"docchat/internal/core/ingest"
	"docchat/internal/models"
)

// Persona messages seeded into transcripts per mode.
const (
	documentPersona = "You are a helpful assistant that answers questions about an uploaded document."
	chatbotPersona  = "You are a helpful medical awareness assistant. " +
		"Provide reliable health information in simple language. " +
		"Always remind users to consult a doctor for actual medical advice."
)

var (
	ErrMissingAPIKey   = errors.New("an API key is required to start a session")
	ErrSessionNotFound = errors.New("session not found")
	ErrTurnInFlight    = errors.New("a turn is already in flight for this session")
	ErrWrongMode       = errors.New("operation not supported in this session mode")
	ErrNoDocument      = errors.New("no document has been uploaded for this session")
)

// ConversationService owns every live session and drives one request/response
// cycle per user turn against the chat collaborator. Sessions are in-memory
// only and disappear on dispose or shutdown.
type ConversationService struct {
	llm         core.ChatCompleter
	maxDocChars int
	dataset     *models.DocumentContext // optional static context loaded at startup
	log         *logrus.Logger

	mu       sync.RWMutex
	sessions map[string]*models.Session
}

func NewConversationService(completer core.ChatCompleter, maxDocChars int, dataset *models.DocumentContext, log *logrus.Logger) *ConversationService {
	if maxDocChars <= 0 {
		maxDocChars = ingest.DefaultMaxChars
	}
	return &ConversationService{
		llm:         completer,
		maxDocChars: maxDocChars,
		dataset:     dataset,
		log:         log,
		sessions:    make(map[string]*models.Session),
	}
}

// Create initializes a session for the given mode. The transcript is seeded
// with exactly one system message carrying the mode's persona. Document-mode
// sessions inherit the static dataset context when one was loaded at startup.
func (s *ConversationService) Create(apiKey, mode string) (*models.Session, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingAPIKey
	}

	var persona string
	switch mode {
	case models.ModeDocument:
		persona = documentPersona
	case models.ModeChat:
		persona = chatbotPersona
	default:
		return nil, fmt.Errorf("unsupported mode %q", mode)
	}

	now := time.Now()
	sess := &models.Session{
		ID:         uuid.NewString(),
		Mode:       mode,
		APIKey:     apiKey,
		Transcript: []models.Message{{Role: models.RoleSystem, Content: persona}},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if mode == models.ModeDocument && s.dataset != nil {
		sess.Document = s.dataset
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{"session_id": sess.ID, "mode": mode}).Info("session created")
	return sess, nil
}

func (s *ConversationService) Get(id string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

func (s *ConversationService) Dispose(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, id)
	s.log.WithField("session_id", id).Info("session disposed")
	return nil
}

// AttachDocument stores the ingested context on the session, replacing any
// previous upload.
func (s *ConversationService) AttachDocument(sess *models.Session, doc *models.DocumentContext) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess.Document = doc
	sess.UpdatedAt = time.Now()
}

// SubmitTurn drives one chat-mode cycle: the user text is appended to the
// transcript, the whole transcript is replayed to the collaborator, and the
// streamed reply is folded into a single assistant message. Fragments are
// forwarded to onFragment as they arrive.
//
// A collaborator failure is not returned as an error: the failure text is
// appended as the assistant turn (and so replayed as context on later turns)
// and recorded in LastError. The returned error covers preconditions only.
func (s *ConversationService) SubmitTurn(ctx context.Context, sess *models.Session, userText string, onFragment func(string)) (string, error) {
	if sess.Mode != models.ModeChat {
		return "", ErrWrongMode
	}
	if err := s.beginTurn(sess); err != nil {
		return "", err
	}
	defer s.endTurn(sess)

	outbound := s.appendMessage(sess, models.Message{Role: models.RoleUser, Content: userText})

	reply, err := s.collect(ctx, sess.APIKey, outbound, onFragment)
	if err != nil {
		reply = fmt.Sprintf("Error while generating response: %v", err)
		s.setLastError(sess, reply)
		s.log.WithFields(logrus.Fields{"session_id": sess.ID, "error": err}).Warn("chat turn failed")
	}
	s.appendMessage(sess, models.Message{Role: models.RoleAssistant, Content: reply})
	return reply, nil
}

// AskDocument answers one stateless question against the session's document
// context. The outbound list is built fresh for every question and is never
// appended to the transcript; each question re-sends the full (truncated)
// document. A collaborator failure surfaces only through LastError.
func (s *ConversationService) AskDocument(ctx context.Context, sess *models.Session, question string, onFragment func(string)) (string, error) {
	if sess.Mode != models.ModeDocument {
		return "", ErrWrongMode
	}
	s.mu.RLock()
	doc := sess.Document
	s.mu.RUnlock()
	if doc == nil {
		return "", ErrNoDocument
	}
	if err := s.beginTurn(sess); err != nil {
		return "", err
	}
	defer s.endTurn(sess)

	docText := ingest.Truncate(doc.Text, s.maxDocChars)
	messages := []models.Message{
		{Role: models.RoleSystem, Content: documentPersona},
		{Role: models.RoleUser, Content: fmt.Sprintf("Here's a document:\n\n%s\n\n---\n\n%s", docText, question)},
	}

	reply, err := s.collect(ctx, sess.APIKey, messages, onFragment)
	if err != nil {
		s.setLastError(sess, fmt.Sprintf("Error while generating answer: %v", err))
		s.log.WithFields(logrus.Fields{"session_id": sess.ID, "error": err}).Warn("document question failed")
		return "", nil
	}
	return reply, nil
}

// Snapshot returns a consistent copy of the session's visible state for
// rendering while a turn may be in flight.
func (s *ConversationService) Snapshot(sess *models.Session) (transcript []models.Message, doc *models.DocumentContext, lastError string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	transcript = make([]models.Message, len(sess.Transcript))
	copy(transcript, sess.Transcript)
	return transcript, sess.Document, sess.LastError
}

// appendMessage grows the transcript by one message and returns the new
// outbound list. The transcript is append-only; nothing is ever edited or
// removed.
func (s *ConversationService) appendMessage(sess *models.Session, msg models.Message) []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess.Transcript = append(sess.Transcript, msg)
	return sess.Transcript
}

func (s *ConversationService) setLastError(sess *models.Session, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess.LastError = text
}

// collect consumes the collaborator's fragment stream, forwarding every
// fragment and accumulating the final reply text.
func (s *ConversationService) collect(ctx context.Context, apiKey string, messages []models.Message, onFragment func(string)) (string, error) {
	textChan, errChan := s.llm.StreamChat(ctx, apiKey, messages)

	var b strings.Builder
	for fragment := range textChan {
		b.WriteString(fragment)
		if onFragment != nil {
			onFragment(fragment)
		}
	}
	if err := <-errChan; err != nil {
		return b.String(), err
	}
	return b.String(), nil
}

// beginTurn marks the session busy for one turn. Processing within a session
// is strictly sequential; a second concurrent turn is rejected.
func (s *ConversationService) beginTurn(sess *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess.Busy {
		return ErrTurnInFlight
	}
	sess.Busy = true
	sess.LastError = ""
	return nil
}

func (s *ConversationService) endTurn(sess *models.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess.Busy = false
	sess.UpdatedAt = time.Now()
}
