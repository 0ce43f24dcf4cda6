// Package api exposes every crucible component over one gin router: the
// gateway and orchestrator endpoints plus the generator, analyzer and
// evaluator work endpoints. Components find each other through configured
// base URLs, so the same routes work single-binary or split out.
package api

import (
	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/crucible/pkg/analyzer"
	"github.com/codeready-toolchain/crucible/pkg/database"
	"github.com/codeready-toolchain/crucible/pkg/evaluator"
	"github.com/codeready-toolchain/crucible/pkg/generator"
	"github.com/codeready-toolchain/crucible/pkg/orchestrator"
)

// Server wires the component services into HTTP handlers.
type Server struct {
	manager   *orchestrator.Manager
	generator *generator.Generator
	analyzer  *analyzer.Analyzer
	evaluator *evaluator.Evaluator
	db        *database.Client
}

// NewServer creates an API server. db may be nil (health then skips the
// database probe; useful in tests).
func NewServer(manager *orchestrator.Manager, gen *generator.Generator, ana *analyzer.Analyzer, eval *evaluator.Evaluator, db *database.Client) *Server {
	return &Server{
		manager:   manager,
		generator: gen,
		analyzer:  ana,
		evaluator: eval,
		db:        db,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(), securityHeaders())
	router.HandleMethodNotAllowed = true

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", s.Health)

		v1.POST("/projects/start", s.StartProject)
		v1.GET("/projects/:projectID/status", s.ProjectStatus)
		v1.POST("/projects/:projectID/approve", s.ApproveProject)
		v1.POST("/projects/:projectID/report/generation", s.ReportGeneration)
		v1.POST("/projects/:projectID/report/analysis", s.ReportAnalysis)

		v1.POST("/generate", s.Generate)
		v1.POST("/analyze", s.Analyze)
		v1.POST("/evaluate", s.Evaluate)
	}

	return router
}
