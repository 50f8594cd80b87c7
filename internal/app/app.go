package app

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"docchat/internal/config"
	"docchat/internal/core"
	"docchat/internal/core/llm"
	"docchat/internal/models"
	"docchat/internal/services"
)

type App struct {
	Config        *config.Config
	Log           *logrus.Logger
	Conversations *services.ConversationService
	Documents     *services.DocumentService
	Server        *Server
}

func NewApp(cfg *config.Config, log *logrus.Logger) (*App, error) {
	var completer core.ChatCompleter
	switch cfg.Provider {
	case "openai":
		completer = llm.NewOpenAIChat(cfg.ChatAPIURL, cfg.ModelName)
	case "gemini":
		completer = llm.NewGeminiChat(cfg.GeminiModel)
	default:
		return nil, fmt.Errorf("unsupported LLM_PROVIDER %q", cfg.Provider)
	}

	docs := services.NewDocumentService(cfg.MaxDocChars, cfg.PreviewChars)

	// Dataset mode: the static context is loaded once at startup and a
	// missing file is fatal, unlike per-request uploads which degrade.
	var dataset *models.DocumentContext
	if cfg.DatasetPath != "" {
		var err error
		dataset, err = docs.LoadDataset(cfg.DatasetPath)
		if err != nil {
			return nil, fmt.Errorf("dataset %s: %w", cfg.DatasetPath, err)
		}
		log.WithFields(logrus.Fields{
			"path":  cfg.DatasetPath,
			"chars": dataset.Chars,
		}).Info("dataset context loaded")
	}

	conv := services.NewConversationService(completer, cfg.MaxDocChars, dataset, log)
	server := NewServer(cfg, log, conv, docs)

	return &App{
		Config:        cfg,
		Log:           log,
		Conversations: conv,
		Documents:     docs,
		Server:        server,
	}, nil
}
