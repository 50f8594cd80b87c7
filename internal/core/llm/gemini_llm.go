package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"docchat/internal/core"
	"docchat/internal/models"
)

const DefaultGeminiModel = "gemini-1.5-flash"

// GeminiChat implements core.ChatCompleter on the Gemini API. The client is
// built per call because the API key belongs to the session, not the process.
type GeminiChat struct {
	modelName string
}

func NewGeminiChat(modelName string) *GeminiChat {
	if modelName == "" {
		modelName = DefaultGeminiModel
	}
	return &GeminiChat{modelName: modelName}
}

// StreamChat implements core.ChatCompleter. System messages become the model
// system instruction; assistant turns map to Gemini's "model" role.
func (g *GeminiChat) StreamChat(ctx context.Context, apiKey string, messages []models.Message) (<-chan string, <-chan error) {
	textChan := make(chan string)
	errChan := make(chan error, 1)

	go func() {
		defer close(textChan)
		defer close(errChan)

		cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
		if err != nil {
			errChan <- fmt.Errorf("gemini client: %w", err)
			return
		}
		defer cl.Close()

		m := cl.GenerativeModel(g.modelName)

		var system []genai.Part
		var contents []*genai.Content
		for _, msg := range messages {
			if msg.Role == models.RoleSystem {
				system = append(system, genai.Text(msg.Content))
				continue
			}
			role := "user"
			if msg.Role == models.RoleAssistant {
				role = "model"
			}
			contents = append(contents, &genai.Content{
				Role:  role,
				Parts: []genai.Part{genai.Text(msg.Content)},
			})
		}
		if len(system) > 0 {
			m.SystemInstruction = &genai.Content{Parts: system}
		}
		if len(contents) == 0 {
			errChan <- errors.New("gemini: no user content to send")
			return
		}

		cs := m.StartChat()
		cs.History = contents[:len(contents)-1]
		last := contents[len(contents)-1]

		iter := cs.SendMessageStream(ctx, last.Parts...)
		for {
			resp, err := iter.Next()
			if err == iterator.Done {
				return
			}
			if err != nil {
				errChan <- fmt.Errorf("gemini stream: %w", err)
				return
			}
			for _, cand := range resp.Candidates {
				if cand.Content == nil {
					continue
				}
				for _, part := range cand.Content.Parts {
					text, ok := part.(genai.Text)
					if !ok || text == "" {
						continue
					}
					select {
					case textChan <- string(text):
					case <-ctx.Done():
						errChan <- ctx.Err()
						return
					}
				}
			}
		}
	}()

	return textChan, errChan
}

var _ core.ChatCompleter = (*GeminiChat)(nil)
