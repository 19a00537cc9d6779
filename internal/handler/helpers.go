package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/zlynx/assistkb/internal/ai"
	"github.com/zlynx/assistkb/internal/extract"
	"github.com/zlynx/assistkb/internal/middleware"
	"github.com/zlynx/assistkb/internal/pkg/errcode"
	appErr "github.com/zlynx/assistkb/internal/pkg/errors"
	"github.com/zlynx/assistkb/internal/pkg/response"
)

func getUserID(c *gin.Context) string {
	value, _ := c.Get(middleware.ContextUserIDKey)
	userID, _ := value.(string)
	return userID
}

// handleError maps pipeline and repo errors onto stable client-facing codes.
// Provider internals and stack detail stay in the log, never in the reply.
func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	logutil.GetLogger(c.Request.Context()).Error("request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	switch {
	case errors.Is(err, appErr.ErrUnauthorized):
		response.Error(c, errcode.ErrUnauthorized, "unauthorized")
	case errors.Is(err, appErr.ErrForbidden):
		response.Error(c, errcode.ErrForbidden, "forbidden")
	case errors.Is(err, appErr.ErrNotFound):
		response.Error(c, errcode.ErrNotFound, "not found")
	case errors.Is(err, appErr.ErrInvalid):
		response.Error(c, errcode.ErrInvalid, "invalid request")
	case errors.Is(err, appErr.ErrConflict):
		response.Error(c, errcode.ErrConflict, "conflict")
	case errors.Is(err, appErr.ErrUnextractable):
		response.Error(c, errcode.ErrExtractFailed, "could not extract text from this file, try a different format")
	case errors.Is(err, appErr.ErrUnreadableText), errors.Is(err, extract.ErrNoChunks):
		response.Error(c, errcode.ErrUnreadableText, "file contains no readable text")
	case errors.Is(err, appErr.ErrDimMismatch):
		response.Error(c, errcode.ErrIngestFailed, "ingestion failed")
	case errors.Is(err, ai.ErrUnavailable):
		response.Error(c, errcode.ErrAIUnavailable, "ai not configured")
	default:
		response.Error(c, errcode.ErrInternal, "internal error")
	}
}
