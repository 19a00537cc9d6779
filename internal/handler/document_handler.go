package handler

import (
	"io"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/zlynx/assistkb/internal/pkg/errcode"
	"github.com/zlynx/assistkb/internal/pkg/response"
	"github.com/zlynx/assistkb/internal/service"
)

const maxUploadBytes = 20 << 20

type DocumentHandler struct {
	assistants *service.AssistantService
	ingest     *service.IngestService
	documents  *service.DocumentService
}

func NewDocumentHandler(assistants *service.AssistantService, ingest *service.IngestService, documents *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{assistants: assistants, ingest: ingest, documents: documents}
}

// Upload ingests one PDF into the assistant's knowledge base and reports how
// many chunks were stored.
func (h *DocumentHandler) Upload(c *gin.Context) {
	assistantID := c.Param("id")
	if _, err := h.assistants.Get(c.Request.Context(), getUserID(c), assistantID); err != nil {
		handleError(c, err)
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "file is required")
		return
	}
	if file.Size > maxUploadBytes {
		response.Error(c, errcode.ErrUploadFailed, "file too large")
		return
	}
	name := file.Filename
	if name == "" || !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		response.Error(c, errcode.ErrInvalidFile, "only pdf files are supported")
		return
	}
	opened, err := file.Open()
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "failed to open file")
		return
	}
	defer opened.Close()
	data, err := io.ReadAll(io.LimitReader(opened, maxUploadBytes+1))
	if err != nil {
		response.Error(c, errcode.ErrUploadFailed, "failed to read file")
		return
	}
	result, err := h.ingest.Ingest(c.Request.Context(), assistantID, name, data)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *DocumentHandler) List(c *gin.Context) {
	assistantID := c.Param("id")
	if _, err := h.assistants.Get(c.Request.Context(), getUserID(c), assistantID); err != nil {
		handleError(c, err)
		return
	}
	docs, err := h.documents.List(c.Request.Context(), assistantID)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"documents": docs})
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	assistantID := c.Param("id")
	if _, err := h.assistants.Get(c.Request.Context(), getUserID(c), assistantID); err != nil {
		handleError(c, err)
		return
	}
	result, err := h.ingest.DeleteDocument(c.Request.Context(), assistantID, c.Param("doc_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}

type purgeRequest struct {
	DocumentID string `json:"document_id"`
}

func (h *DocumentHandler) Purge(c *gin.Context) {
	assistantID := c.Param("id")
	if _, err := h.assistants.Get(c.Request.Context(), getUserID(c), assistantID); err != nil {
		handleError(c, err)
		return
	}
	var req purgeRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	result, err := h.ingest.Purge(c.Request.Context(), assistantID, req.DocumentID)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}
