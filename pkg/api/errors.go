package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/crucible/pkg/blob"
	"github.com/codeready-toolchain/crucible/pkg/models"
	"github.com/codeready-toolchain/crucible/pkg/orchestrator"
	"github.com/codeready-toolchain/crucible/pkg/store"
)

// abortWithServiceError maps service-layer errors to HTTP error responses.
func abortWithServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidScorecard):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
	case errors.Is(err, orchestrator.ErrUnknownArtifact):
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown artifact"})
	case errors.Is(err, blob.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "blob not found"})
	case errors.Is(err, orchestrator.ErrNotAwaitingApproval):
		c.JSON(http.StatusConflict, gin.H{"error": "project is not awaiting approval"})
	case errors.Is(err, orchestrator.ErrActorStopped):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "shutting down"})
	default:
		slog.Error("Unexpected service error", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
