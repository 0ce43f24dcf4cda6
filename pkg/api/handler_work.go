package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/crucible/pkg/generator"
	"github.com/codeready-toolchain/crucible/pkg/models"
)

// workTimeout bounds one accepted background job. Generous on purpose: the
// orchestrator's own job deadline is the real timeout.
const workTimeout = 10 * time.Minute

// Generate handles POST /api/v1/generate: validate, accept with 202, run in
// the background. The outcome travels via the orchestrator callback.
func (s *Server) Generate(c *gin.Context) {
	var req models.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := generator.Validate(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), workTimeout)
		defer cancel()
		s.generator.Process(ctx, req)
	}()
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// Analyze handles POST /api/v1/analyze: accept with 202, run the evaluation
// pipeline in the background.
func (s *Server) Analyze(c *gin.Context) {
	var req models.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.OrchestratorID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "orchestrator_id is required"})
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), workTimeout)
		defer cancel()
		s.analyzer.Run(ctx, req)
	}()
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// Evaluate handles POST /api/v1/evaluate synchronously: the weighted score
// comes back in the response body. A missing artifact blob is 404.
func (s *Server) Evaluate(c *gin.Context) {
	var req models.EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := req.Scorecard.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := s.evaluator.EvaluatePath(c.Request.Context(), req.ArtifactPath, req.Scorecard)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
