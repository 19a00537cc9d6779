package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/zlynx/assistkb/internal/pkg/errcode"
	"github.com/zlynx/assistkb/internal/pkg/response"
	"github.com/zlynx/assistkb/internal/service"
)

type AssistantHandler struct {
	assistants *service.AssistantService
}

func NewAssistantHandler(assistants *service.AssistantService) *AssistantHandler {
	return &AssistantHandler{assistants: assistants}
}

type assistantRequest struct {
	Name         string `json:"name"`
	Instructions string `json:"instructions"`
}

func (h *AssistantHandler) Create(c *gin.Context) {
	var req assistantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	item, err := h.assistants.Create(c.Request.Context(), getUserID(c), req.Name, req.Instructions)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, item)
}

func (h *AssistantHandler) Get(c *gin.Context) {
	item, err := h.assistants.Get(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, item)
}

func (h *AssistantHandler) List(c *gin.Context) {
	items, err := h.assistants.List(c.Request.Context(), getUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"assistants": items})
}

func (h *AssistantHandler) Update(c *gin.Context) {
	var req assistantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	item, err := h.assistants.Update(c.Request.Context(), getUserID(c), c.Param("id"), req.Name, req.Instructions)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, item)
}

func (h *AssistantHandler) Delete(c *gin.Context) {
	result, err := h.assistants.Delete(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}
