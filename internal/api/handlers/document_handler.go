package handlers

import (
	"io"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"docchat/internal/core/ingest"
	"docchat/internal/services"
)

const maxUploadBytes = 32 << 20

type DocumentHandler struct {
	conversations *services.ConversationService
	documents     *services.DocumentService
}

func NewDocumentHandler(conv *services.ConversationService, docs *services.DocumentService) *DocumentHandler {
	return &DocumentHandler{conversations: conv, documents: docs}
}

type uploadResponse struct {
	FileName  string `json:"file_name"`
	Chars     int    `json:"chars"`
	Truncated bool   `json:"truncated"`
	Preview   string `json:"preview"`
}

// Upload ingests a multipart file upload and attaches the normalized text to
// the session as its document context. The response carries a bounded
// preview of what will be sent to the model.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	sess, err := h.conversations.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "invalid file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	// Strip any path components the client sent along.
	cleanName := filepath.Base(header.Filename)
	if ingest.DetectKind(cleanName) == ingest.KindUnknown {
		http.Error(w, "unsupported file type: expected .txt, .md, .csv, .xlsx or .xls", http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "could not read upload", http.StatusInternalServerError)
		return
	}

	doc := h.documents.Ingest(cleanName, data)
	h.conversations.AttachDocument(sess, doc)

	writeJSON(w, http.StatusOK, uploadResponse{
		FileName:  doc.FileName,
		Chars:     doc.Chars,
		Truncated: doc.Truncated,
		Preview:   h.documents.Preview(doc),
	})
}
