package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/zlynx/assistkb/internal/pkg/errcode"
	"github.com/zlynx/assistkb/internal/pkg/response"
	"github.com/zlynx/assistkb/internal/service"
)

type QueryHandler struct {
	assistants *service.AssistantService
	retrieval  *service.RetrievalService
}

func NewQueryHandler(assistants *service.AssistantService, retrieval *service.RetrievalService) *QueryHandler {
	return &QueryHandler{assistants: assistants, retrieval: retrieval}
}

type queryRequest struct {
	Question string `json:"question"`
}

// Query answers a question against the assistant's knowledge base.
func (h *QueryHandler) Query(c *gin.Context) {
	assistant, err := h.assistants.Get(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		response.Error(c, errcode.ErrInvalid, "question is required")
		return
	}
	result, err := h.retrieval.Answer(c.Request.Context(), assistant, question)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}

// Search returns raw chunk matches without asking the generator; useful for
// debugging retrieval quality.
func (h *QueryHandler) Search(c *gin.Context) {
	assistant, err := h.assistants.Get(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		response.Error(c, errcode.ErrInvalid, "question is required")
		return
	}
	result, err := h.retrieval.Retrieve(c.Request.Context(), assistant.ID, question)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}
