package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat/internal/core/ingest"
	"docchat/internal/models"
)

// fakeCompleter replays canned fragments (or a terminal error) and records
// every outbound message list.
type fakeCompleter struct {
	fragments []string
	err       error

	mu    sync.Mutex
	calls [][]models.Message
}

func (f *fakeCompleter) StreamChat(ctx context.Context, apiKey string, messages []models.Message) (<-chan string, <-chan error) {
	f.mu.Lock()
	recorded := make([]models.Message, len(messages))
	copy(recorded, messages)
	f.calls = append(f.calls, recorded)
	f.mu.Unlock()

	textChan := make(chan string)
	errChan := make(chan error, 1)
	go func() {
		defer close(textChan)
		defer close(errChan)
		for _, fr := range f.fragments {
			textChan <- fr
		}
		if f.err != nil {
			errChan <- f.err
		}
	}()
	return textChan, errChan
}

func (f *fakeCompleter) lastCall() []models.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestService(completer *fakeCompleter) *ConversationService {
	return NewConversationService(completer, ingest.DefaultMaxChars, nil, testLogger())
}

func TestCreateRequiresAPIKey(t *testing.T) {
	svc := newTestService(&fakeCompleter{})

	_, err := svc.Create("", models.ModeChat)
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	_, err = svc.Create("   ", models.ModeChat)
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestCreateRejectsUnknownMode(t *testing.T) {
	svc := newTestService(&fakeCompleter{})
	_, err := svc.Create("sk-test", "voice")
	assert.Error(t, err)
}

func TestCreateSeedsSystemMessage(t *testing.T) {
	svc := newTestService(&fakeCompleter{})

	for _, mode := range []string{models.ModeChat, models.ModeDocument} {
		sess, err := svc.Create("sk-test", mode)
		require.NoError(t, err)
		require.Len(t, sess.Transcript, 1)
		assert.Equal(t, models.RoleSystem, sess.Transcript[0].Role)
	}
}

func TestSubmitTurnAppendsUserAndAssistant(t *testing.T) {
	completer := &fakeCompleter{fragments: []string{"Hel", "lo ", "world"}}
	svc := newTestService(completer)

	sess, err := svc.Create("sk-test", models.ModeChat)
	require.NoError(t, err)
	before := len(sess.Transcript)

	var streamed []string
	reply, err := svc.SubmitTurn(context.Background(), sess, "Summarize", func(fr string) {
		streamed = append(streamed, fr)
	})
	require.NoError(t, err)

	assert.Equal(t, "Hello world", reply)
	assert.Equal(t, []string{"Hel", "lo ", "world"}, streamed)

	// Outbound list was transcript plus the new user turn.
	outbound := completer.lastCall()
	assert.Len(t, outbound, before+1)
	assert.Equal(t, models.RoleUser, outbound[len(outbound)-1].Role)
	assert.Equal(t, "Summarize", outbound[len(outbound)-1].Content)

	// After success the transcript gained exactly the user and assistant turns.
	require.Len(t, sess.Transcript, before+2)
	last := sess.Transcript[len(sess.Transcript)-1]
	assert.Equal(t, models.RoleAssistant, last.Role)
	assert.Equal(t, "Hello world", last.Content)
	assert.Empty(t, sess.LastError)
}

func TestSubmitTurnFailureBecomesAssistantTurn(t *testing.T) {
	completer := &fakeCompleter{err: errors.New("auth error")}
	svc := newTestService(completer)

	sess, err := svc.Create("sk-test", models.ModeChat)
	require.NoError(t, err)
	before := len(sess.Transcript)

	_, err = svc.SubmitTurn(context.Background(), sess, "hi", nil)
	require.NoError(t, err, "collaborator failures must not escape")

	require.Len(t, sess.Transcript, before+2)
	last := sess.Transcript[len(sess.Transcript)-1]
	assert.Equal(t, models.RoleAssistant, last.Role)
	assert.Contains(t, last.Content, "auth error")
	assert.Contains(t, sess.LastError, "auth error")

	// The failure text is replayed as context on the next turn.
	completer.err = nil
	completer.fragments = []string{"ok"}
	_, err = svc.SubmitTurn(context.Background(), sess, "again", nil)
	require.NoError(t, err)
	assert.Empty(t, sess.LastError, "a successful turn clears the last error")

	outbound := completer.lastCall()
	var sawFailureTurn bool
	for _, msg := range outbound {
		if msg.Role == models.RoleAssistant && strings.Contains(msg.Content, "auth error") {
			sawFailureTurn = true
		}
	}
	assert.True(t, sawFailureTurn)
}

func TestSubmitTurnRejectsWrongMode(t *testing.T) {
	svc := newTestService(&fakeCompleter{})
	sess, err := svc.Create("sk-test", models.ModeDocument)
	require.NoError(t, err)

	_, err = svc.SubmitTurn(context.Background(), sess, "hi", nil)
	assert.ErrorIs(t, err, ErrWrongMode)
}

func TestSubmitTurnRejectsConcurrentTurn(t *testing.T) {
	svc := newTestService(&fakeCompleter{})
	sess, err := svc.Create("sk-test", models.ModeChat)
	require.NoError(t, err)

	require.NoError(t, svc.beginTurn(sess))
	_, err = svc.SubmitTurn(context.Background(), sess, "hi", nil)
	assert.ErrorIs(t, err, ErrTurnInFlight)
	svc.endTurn(sess)
}

func TestAskDocumentBuildsOneShotPrompt(t *testing.T) {
	completer := &fakeCompleter{fragments: []string{"42"}}
	svc := newTestService(completer)

	sess, err := svc.Create("sk-test", models.ModeDocument)
	require.NoError(t, err)
	svc.AttachDocument(sess, &models.DocumentContext{FileName: "data.csv", Text: "a,b\r\n1,2\r\n"})
	before := len(sess.Transcript)

	reply, err := svc.AskDocument(context.Background(), sess, "What is in column b?", nil)
	require.NoError(t, err)
	assert.Equal(t, "42", reply)

	outbound := completer.lastCall()
	require.Len(t, outbound, 2)
	assert.Equal(t, models.RoleSystem, outbound[0].Role)
	assert.Equal(t, models.RoleUser, outbound[1].Role)
	assert.Contains(t, outbound[1].Content, "a,b\r\n1,2\r\n")
	assert.Contains(t, outbound[1].Content, "---")
	assert.Contains(t, outbound[1].Content, "What is in column b?")

	// Document mode is stateless: nothing was appended, and the next
	// question re-sends the full document.
	assert.Len(t, sess.Transcript, before)

	_, err = svc.AskDocument(context.Background(), sess, "And column a?", nil)
	require.NoError(t, err)
	assert.Contains(t, completer.lastCall()[1].Content, "a,b\r\n1,2\r\n")
}

func TestAskDocumentTruncatesLargeDocuments(t *testing.T) {
	completer := &fakeCompleter{fragments: []string{"ok"}}
	svc := NewConversationService(completer, 50, nil, testLogger())

	sess, err := svc.Create("sk-test", models.ModeDocument)
	require.NoError(t, err)
	svc.AttachDocument(sess, &models.DocumentContext{FileName: "big.txt", Text: strings.Repeat("z", 200)})

	_, err = svc.AskDocument(context.Background(), sess, "q", nil)
	require.NoError(t, err)

	prompt := completer.lastCall()[1].Content
	assert.Contains(t, prompt, ingest.TruncationMarker)
	assert.NotContains(t, prompt, strings.Repeat("z", 51))
}

func TestAskDocumentFailureSetsLastErrorOnly(t *testing.T) {
	completer := &fakeCompleter{err: fmt.Errorf("network down")}
	svc := newTestService(completer)

	sess, err := svc.Create("sk-test", models.ModeDocument)
	require.NoError(t, err)
	svc.AttachDocument(sess, &models.DocumentContext{FileName: "a.txt", Text: "content"})
	before := len(sess.Transcript)

	reply, err := svc.AskDocument(context.Background(), sess, "q", nil)
	require.NoError(t, err)
	assert.Empty(t, reply)
	assert.Contains(t, sess.LastError, "network down")
	assert.Len(t, sess.Transcript, before, "document-mode failures never touch the transcript")
}

func TestAskDocumentRequiresDocument(t *testing.T) {
	svc := newTestService(&fakeCompleter{})
	sess, err := svc.Create("sk-test", models.ModeDocument)
	require.NoError(t, err)

	_, err = svc.AskDocument(context.Background(), sess, "q", nil)
	assert.ErrorIs(t, err, ErrNoDocument)
}

func TestDatasetContextIsInherited(t *testing.T) {
	dataset := &models.DocumentContext{FileName: "dataset.csv", Text: "x,y\r\n1,2\r\n"}
	completer := &fakeCompleter{fragments: []string{"ok"}}
	svc := NewConversationService(completer, ingest.DefaultMaxChars, dataset, testLogger())

	sess, err := svc.Create("sk-test", models.ModeDocument)
	require.NoError(t, err)
	require.NotNil(t, sess.Document)

	_, err = svc.AskDocument(context.Background(), sess, "q", nil)
	require.NoError(t, err)
	assert.Contains(t, completer.lastCall()[1].Content, "x,y")
}

func TestSessionLifecycle(t *testing.T) {
	svc := newTestService(&fakeCompleter{})

	sess, err := svc.Create("sk-test", models.ModeChat)
	require.NoError(t, err)

	got, err := svc.Get(sess.ID)
	require.NoError(t, err)
	assert.Same(t, sess, got)

	require.NoError(t, svc.Dispose(sess.ID))
	_, err = svc.Get(sess.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, svc.Dispose(sess.ID), ErrSessionNotFound)
}
