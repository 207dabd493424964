package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/replaykit/replay/internal/runner"
	"github.com/replaykit/replay/pkg/api"
)

// executeScenarioRequest carries optional driver overrides and runtime
// variables for one execution
type executeScenarioRequest struct {
	Options   *runner.Overrides `json:"options,omitempty"`
	Variables api.Vars          `json:"variables,omitempty"`
}

// listScenarios returns the scenarios ordered by creation time;
// ?page and ?limit select one page of the listing
func (s *Server) listScenarios(c *gin.Context) {
	page := intQuery(c, "page")
	limit := intQuery(c, "limit")

	scenarios, err := s.store.Scenarios().List(
		c.Request.Context(), page, limit,
	)
	if err != nil {
		respondRepoError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.ScenarioListResponse{
		Scenarios: scenarios,
		Count:     len(scenarios),
	})
}

func intQuery(c *gin.Context, name string) int {
	n, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return 0
	}
	return n
}

func (s *Server) createScenario(c *gin.Context) {
	var sc api.Scenario
	if err := c.ShouldBindJSON(&sc); err != nil {
		respondError(c, http.StatusBadRequest,
			fmt.Errorf("%w: %w", ErrInvalidJSON, err))
		return
	}
	if sc.ID == "" {
		sc.ID = api.NewScenarioID()
	}
	if sc.CreatedAt == 0 {
		sc.CreatedAt = api.Now()
	}
	if sc.ASTVersion == 0 {
		sc.ASTVersion = api.CurrentASTVersion
	}

	if err := sc.Validate(); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	if err := s.store.Scenarios().Create(c.Request.Context(), &sc); err != nil {
		respondRepoError(c, err)
		return
	}
	c.JSON(http.StatusCreated, &sc)
}

func (s *Server) getScenario(c *gin.Context) {
	id := api.ScenarioID(c.Param("scenarioID"))
	sc, err := s.store.Scenarios().Get(c.Request.Context(), id)
	if err != nil {
		respondRepoError(c, err)
		return
	}
	c.JSON(http.StatusOK, sc)
}

func (s *Server) updateScenario(c *gin.Context) {
	id := api.ScenarioID(c.Param("scenarioID"))

	var patch api.ScenarioPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondError(c, http.StatusBadRequest,
			fmt.Errorf("%w: %w", ErrInvalidJSON, err))
		return
	}

	sc, err := s.store.Scenarios().Update(c.Request.Context(), id, &patch)
	if err != nil {
		respondRepoError(c, err)
		return
	}
	c.JSON(http.StatusOK, sc)
}

func (s *Server) deleteScenario(c *gin.Context) {
	id := api.ScenarioID(c.Param("scenarioID"))
	if err := s.store.Scenarios().Delete(c.Request.Context(), id); err != nil {
		respondRepoError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) listScenarioResults(c *gin.Context) {
	id := api.ScenarioID(c.Param("scenarioID"))
	results, err := s.store.Scenarios().ListResults(c.Request.Context(), id)
	if err != nil {
		respondRepoError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.ResultListResponse{
		Results: results,
		Count:   len(results),
	})
}

// executeScenario runs the scenario to completion and returns its
// result. Live progress is available on the WebSocket channel keyed by
// the execution ID
func (s *Server) executeScenario(c *gin.Context) {
	id := api.ScenarioID(c.Param("scenarioID"))

	var req executeScenarioRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest,
				fmt.Errorf("%w: %w", ErrInvalidJSON, err))
			return
		}
	}

	res, err := s.exec.Execute(
		c.Request.Context(), id, req.Options, nil, req.Variables,
	)
	if err != nil {
		respondRepoError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) executionStatus(c *gin.Context) {
	id := api.ExecutionID(c.Param("executionID"))
	c.JSON(http.StatusOK, s.exec.Status(id))
}
