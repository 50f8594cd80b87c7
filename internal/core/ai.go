package core

import (
	"context"

	"docchat/internal/models"
)

// ChatCompleter is the external streaming chat-completion collaborator.
//
// StreamChat sends the ordered message list and returns a finite,
// non-restartable stream of text fragments. The text channel is closed when
// the stream is exhausted; the error channel carries at most one terminal
// error. Both channels are closed by the implementation when the call
// finishes either way. The API key belongs to the calling session, not the
// process, so it is passed per call.
type ChatCompleter interface {
	StreamChat(ctx context.Context, apiKey string, messages []models.Message) (<-chan string, <-chan error)
}
