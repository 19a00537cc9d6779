package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zlynx/assistkb/internal/middleware"
	"github.com/zlynx/assistkb/internal/pkg/response"
)

type RouterDeps struct {
	Assistants *AssistantHandler
	Documents  *DocumentHandler
	Query      *QueryHandler
	JWTSecret  []byte
	RateWindow time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.GET("/healthz", func(c *gin.Context) {
		response.Success(c, gin.H{"status": "ok"})
	})

	authGroup := api.Group("")
	authGroup.Use(middleware.JWTAuth(deps.JWTSecret))
	authGroup.POST("/assistants", deps.Assistants.Create)
	authGroup.GET("/assistants", deps.Assistants.List)
	authGroup.GET("/assistants/:id", deps.Assistants.Get)
	authGroup.PUT("/assistants/:id", deps.Assistants.Update)
	authGroup.DELETE("/assistants/:id", deps.Assistants.Delete)

	authGroup.GET("/assistants/:id/documents", deps.Documents.List)
	authGroup.DELETE("/assistants/:id/documents/:doc_id", deps.Documents.Delete)
	authGroup.POST("/assistants/:id/purge", deps.Documents.Purge)

	limitedGroup := authGroup.Group("")
	limitedGroup.Use(middleware.RateLimit(deps.RateWindow))
	limitedGroup.POST("/assistants/:id/documents", deps.Documents.Upload)
	limitedGroup.POST("/assistants/:id/query", deps.Query.Query)
	limitedGroup.POST("/assistants/:id/search", deps.Query.Search)
}
