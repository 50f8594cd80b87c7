package services

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"docchat/internal/core/ingest"
	"docchat/internal/models"
)

// DocumentService turns raw uploads into session document contexts and
// bounded previews. Nothing is written to disk or any store; the normalized
// text lives on the session for as long as the session does.
type DocumentService struct {
	maxDocChars  int
	previewChars int
}

func NewDocumentService(maxDocChars, previewChars int) *DocumentService {
	if maxDocChars <= 0 {
		maxDocChars = ingest.DefaultMaxChars
	}
	if previewChars <= 0 {
		previewChars = ingest.DefaultPreviewChars
	}
	return &DocumentService{maxDocChars: maxDocChars, previewChars: previewChars}
}

// Ingest normalizes an upload into a DocumentContext. Extraction is total:
// a corrupt file yields a context whose text is the parser's diagnostic
// string rather than a failure.
func (s *DocumentService) Ingest(filename string, data []byte) *models.DocumentContext {
	text := ingest.Extract(filename, data)
	return &models.DocumentContext{
		FileName:  filepath.Base(filename),
		Text:      text,
		Chars:     len(text),
		Truncated: len(text) > s.maxDocChars,
		CreatedAt: time.Now(),
	}
}

// Preview returns the bounded prefix of the normalized text shown to the
// user before sending.
func (s *DocumentService) Preview(doc *models.DocumentContext) string {
	if len(doc.Text) <= s.previewChars {
		return doc.Text
	}
	return doc.Text[:s.previewChars]
}

// LoadDataset reads a fixed-path local file as a static document context.
// Unlike uploads, a missing or unreadable file is an error: callers treat it
// as fatal at startup.
func (s *DocumentService) LoadDataset(path string) (*models.DocumentContext, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	return s.Ingest(path, data), nil
}
