package server

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	glog "github.com/gin-contrib/slog"
	"github.com/gin-gonic/gin"

	"github.com/replaykit/replay/internal/artifact"
	"github.com/replaykit/replay/internal/flow"
	"github.com/replaykit/replay/internal/ingest"
	"github.com/replaykit/replay/internal/repo"
	"github.com/replaykit/replay/internal/scenario"
	"github.com/replaykit/replay/pkg/api"
)

type (
	// Server implements the HTTP API of the control plane
	Server struct {
		store       repo.Store
		ingest      *ingest.Service
		exec        *scenario.Service
		flows       *flow.Service
		artifacts   *artifact.Store
		maxFlowTime time.Duration
		sockets     map[*Client]struct{}
		mu          sync.Mutex
	}

	// Dependencies wires the services the server fronts. Artifacts may
	// be nil when no bucket is configured. MaxFlowTime is the flow
	// deadline applied when an execute request does not carry its own
	Dependencies struct {
		Store       repo.Store
		Ingest      *ingest.Service
		Executor    *scenario.Service
		Flows       *flow.Service
		Artifacts   *artifact.Store
		MaxFlowTime time.Duration
	}
)

var ErrInvalidJSON = errors.New("invalid JSON request")

// NewServer creates a new HTTP API server
func NewServer(deps Dependencies) *Server {
	return &Server{
		store:       deps.Store,
		ingest:      deps.Ingest,
		exec:        deps.Executor,
		flows:       deps.Flows,
		artifacts:   deps.Artifacts,
		maxFlowTime: deps.MaxFlowTime,
		sockets:     map[*Client]struct{}{},
	}
}

// SetupRoutes configures and returns the HTTP router with all API
// endpoints
func (s *Server) SetupRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(glog.SetLogger(
		glog.WithLogger(func(c *gin.Context, l *slog.Logger) *slog.Logger {
			return slog.Default()
		}),
	))

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set(
			"Access-Control-Allow-Methods",
			"GET, POST, PUT, DELETE, OPTIONS",
		)
		c.Writer.Header().Set(
			"Access-Control-Allow-Headers",
			"Content-Type, Authorization",
		)

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	})

	router.GET("/health", s.handleHealth)

	a := router.Group("/api")
	{
		// Scenario endpoints
		a.GET("/scenarios", s.listScenarios)
		a.POST("/scenarios", s.createScenario)
		a.GET("/scenarios/:scenarioID", s.getScenario)
		a.PUT("/scenarios/:scenarioID", s.updateScenario)
		a.DELETE("/scenarios/:scenarioID", s.deleteScenario)
		a.GET("/scenarios/:scenarioID/results", s.listScenarioResults)
		a.POST("/scenarios/:scenarioID/execute", s.executeScenario)
		a.GET("/executions/:executionID", s.executionStatus)

		// Recording session endpoints
		a.GET("/sessions", s.listSessions)
		a.POST("/sessions", s.startSession)
		a.GET("/sessions/:sessionID", s.getSession)
		a.PUT("/sessions/:sessionID", s.updateSession)
		a.DELETE("/sessions/:sessionID", s.deleteSession)
		a.POST("/sessions/:sessionID/stop", s.stopSession)
		a.POST("/sessions/:sessionID/finish", s.finishSession)
		a.GET("/sessions/:sessionID/events", s.listSessionEvents)
		a.POST("/sessions/:sessionID/events", s.appendSessionEvents)
		a.DELETE("/sessions/:sessionID/events", s.clearSessionEvents)

		// User flow endpoints
		a.GET("/flows", s.listFlows)
		a.POST("/flows", s.createFlow)
		a.GET("/flows/:flowID", s.getFlow)
		a.PUT("/flows/:flowID", s.updateFlow)
		a.DELETE("/flows/:flowID", s.deleteFlow)
		a.GET("/flows/:flowID/results", s.listFlowResults)
		a.POST("/flows/:flowID/execute", s.executeFlow)
		a.GET("/flows/:flowID/flatten", s.flattenFlow)

		// Artifact retrieval
		a.GET("/artifacts/*ref", s.getArtifact)
	}

	// WebSocket
	router.GET("/ws", s.handleWebSocket)

	return router
}

func (s *Server) handleHealth(c *gin.Context) {
	if err := s.store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "degraded",
			"error":  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) registerWebSocket(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sockets[c] = struct{}{}
}

func (s *Server) unregisterWebSocket(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sockets, c)
}

// CloseWebSockets closes all active WebSocket connections
func (s *Server) CloseWebSockets() {
	s.mu.Lock()
	conns := make([]*Client, 0, len(s.sockets))
	for c := range s.sockets {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}

// notFound reports whether the error is any of the repository's
// not-found sentinels
func notFound(err error) bool {
	return errors.Is(err, repo.ErrScenarioNotFound) ||
		errors.Is(err, repo.ErrSessionNotFound) ||
		errors.Is(err, repo.ErrFlowNotFound)
}

func respondError(c *gin.Context, status int, err error) {
	c.JSON(status, api.ErrorResponse{
		Error:  err.Error(),
		Status: status,
	})
}

// respondRepoError maps repository errors onto HTTP statuses
func respondRepoError(c *gin.Context, err error) {
	switch {
	case notFound(err):
		respondError(c, http.StatusNotFound, err)
	case errors.Is(err, repo.ErrAlreadyExists):
		respondError(c, http.StatusConflict, err)
	default:
		respondError(c, http.StatusInternalServerError, err)
	}
}
