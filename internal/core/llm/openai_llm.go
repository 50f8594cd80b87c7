package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"docchat/internal/core"
	"docchat/internal/models"
)

const (
	// DefaultChatURL is the OpenAI chat-completions endpoint. Any
	// OpenAI-compatible gateway can be substituted via CHAT_API_URL.
	DefaultChatURL = "https://api.openai.com/v1/chat/completions"
	DefaultModel   = "gpt-4o-mini"
)

// OpenAIChat speaks the OpenAI chat-completions protocol with streaming
// enabled. The request shape is {model, messages, stream} and the response
// is consumed as SSE "data:" frames carrying content deltas.
type OpenAIChat struct {
	BaseURL string
	Model   string
	client  *http.Client
}

func NewOpenAIChat(baseURL, model string) *OpenAIChat {
	if baseURL == "" {
		baseURL = DefaultChatURL
	}
	if model == "" {
		model = DefaultModel
	}
	return &OpenAIChat{
		BaseURL: baseURL,
		Model:   model,
		client:  &http.Client{Timeout: 5 * time.Minute},
	}
}

type chatRequest struct {
	Model    string           `json:"model"`
	Messages []models.Message `json:"messages"`
	Stream   bool             `json:"stream"`
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

type apiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// StreamChat implements core.ChatCompleter.
func (o *OpenAIChat) StreamChat(ctx context.Context, apiKey string, messages []models.Message) (<-chan string, <-chan error) {
	textChan := make(chan string)
	errChan := make(chan error, 1)

	go func() {
		defer close(textChan)
		defer close(errChan)

		body, err := json.Marshal(chatRequest{Model: o.Model, Messages: messages, Stream: true})
		if err != nil {
			errChan <- fmt.Errorf("marshal request: %w", err)
			return
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.BaseURL, bytes.NewReader(body))
		if err != nil {
			errChan <- fmt.Errorf("create request: %w", err)
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+apiKey)

		resp, err := o.client.Do(req)
		if err != nil {
			errChan <- fmt.Errorf("chat request failed: %w", err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			raw, _ := io.ReadAll(resp.Body)
			var apiErr apiErrorResponse
			if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Message != "" {
				errChan <- fmt.Errorf("chat API error: %s", apiErr.Error.Message)
				return
			}
			errChan <- fmt.Errorf("chat API error: status %d: %s", resp.StatusCode, string(raw))
			return
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			data := strings.TrimPrefix(line, "data: ")
			if data == "[DONE]" {
				return
			}

			var chunk streamChunk
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				// Tolerate keepalive or vendor-specific frames.
				continue
			}
			for _, choice := range chunk.Choices {
				if choice.Delta.Content == "" {
					continue
				}
				select {
				case textChan <- choice.Delta.Content:
				case <-ctx.Done():
					errChan <- ctx.Err()
					return
				}
			}
		}
		if err := scanner.Err(); err != nil {
			errChan <- fmt.Errorf("read stream: %w", err)
		}
	}()

	return textChan, errChan
}

var _ core.ChatCompleter = (*OpenAIChat)(nil)
