package api

import (
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/crucible/pkg/models"
)

// StartProject handles POST /api/v1/projects/start. The project id is
// derived from the submitted documents, so re-submitting the same pair
// returns the existing project instead of starting a second run.
func (s *Server) StartProject(c *gin.Context) {
	var req models.StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	spec, err := base64.StdEncoding.DecodeString(req.SpecContentB64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "spec_content_b64 is not valid base64"})
		return
	}
	scorecard, err := base64.StdEncoding.DecodeString(req.ScorecardContentB64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "scorecard_content_b64 is not valid base64"})
		return
	}
	if len(spec) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "spec must not be empty"})
		return
	}

	state, err := s.manager.StartProject(c.Request.Context(), spec, scorecard, req.Termination)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.StartResponse{
		ProjectID:      state.ProjectID,
		StatusEndpoint: fmt.Sprintf("/api/v1/projects/%s/status", state.ProjectID),
	})
}

// ProjectStatus handles GET /api/v1/projects/:projectID/status.
func (s *Server) ProjectStatus(c *gin.Context) {
	state, err := s.manager.Get(c.Param("projectID")).Status(c.Request.Context())
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// ApproveProject handles POST /api/v1/projects/:projectID/approve. Returns
// 409 when the project has no pending review.
func (s *Server) ApproveProject(c *gin.Context) {
	var req models.ApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.manager.Get(c.Param("projectID")).Approve(c.Request.Context(), req); err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "approved"})
}

// ReportGeneration handles the generator callback. The 200 response is sent
// only after the outcome is durably recorded.
func (s *Server) ReportGeneration(c *gin.Context) {
	var req models.ReportGenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.manager.Get(c.Param("projectID")).ReportGeneration(c.Request.Context(), req); err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "recorded"})
}

// ReportAnalysis handles the analyzer callback for a wave.
func (s *Server) ReportAnalysis(c *gin.Context) {
	var req models.ReportAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.manager.Get(c.Param("projectID")).ReportAnalysis(c.Request.Context(), req); err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "recorded"})
}
