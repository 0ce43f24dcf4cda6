package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/crucible/pkg/database"
	"github.com/codeready-toolchain/crucible/pkg/version"
)

// Health handles GET /api/v1/health.
func (s *Server) Health(c *gin.Context) {
	body := gin.H{
		"status":  "healthy",
		"version": version.Full(),
	}
	if s.db == nil {
		c.JSON(http.StatusOK, body)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	dbHealth, err := database.Health(ctx, s.db.DB())
	body["database"] = dbHealth
	if err != nil {
		body["status"] = "unhealthy"
		body["error"] = err.Error()
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	c.JSON(http.StatusOK, body)
}
