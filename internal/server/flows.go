package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/replaykit/replay/internal/flow"
	"github.com/replaykit/replay/internal/runner"
	"github.com/replaykit/replay/pkg/api"
)

// executeFlowRequest carries the runtime options for one flow
// execution
type executeFlowRequest struct {
	InitialVariables   api.Vars          `json:"initialVariables,omitempty"`
	RunnerOptions      *runner.Overrides `json:"runnerOptions,omitempty"`
	MaxExecutionTimeMs int64             `json:"maxExecutionTimeMs,omitempty"`
	ContinueOnFailure  bool              `json:"continueOnFailure,omitempty"`
}

func (s *Server) listFlows(c *gin.Context) {
	flows, err := s.store.Flows().List(c.Request.Context())
	if err != nil {
		respondRepoError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.FlowListResponse{
		Flows: flows,
		Count: len(flows),
	})
}

func (s *Server) createFlow(c *gin.Context) {
	var f api.UserFlow
	if err := c.ShouldBindJSON(&f); err != nil {
		respondError(c, http.StatusBadRequest,
			fmt.Errorf("%w: %w", ErrInvalidJSON, err))
		return
	}
	if f.ID == "" {
		f.ID = api.NewFlowID()
	}
	if f.CreatedAt == 0 {
		f.CreatedAt = api.Now()
	}

	if err := f.Validate(); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	if err := s.store.Flows().Create(c.Request.Context(), &f); err != nil {
		respondRepoError(c, err)
		return
	}
	c.JSON(http.StatusCreated, &f)
}

func (s *Server) getFlow(c *gin.Context) {
	id := api.FlowID(c.Param("flowID"))
	f, err := s.store.Flows().Get(c.Request.Context(), id)
	if err != nil {
		respondRepoError(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

func (s *Server) updateFlow(c *gin.Context) {
	id := api.FlowID(c.Param("flowID"))

	var patch api.FlowPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondError(c, http.StatusBadRequest,
			fmt.Errorf("%w: %w", ErrInvalidJSON, err))
		return
	}

	f, err := s.store.Flows().Update(c.Request.Context(), id, &patch)
	if err != nil {
		respondRepoError(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

func (s *Server) deleteFlow(c *gin.Context) {
	id := api.FlowID(c.Param("flowID"))
	if err := s.store.Flows().Delete(c.Request.Context(), id); err != nil {
		respondRepoError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) listFlowResults(c *gin.Context) {
	id := api.FlowID(c.Param("flowID"))
	results, err := s.flows.Results(c.Request.Context(), id)
	if err != nil {
		respondRepoError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.FlowResultListResponse{
		Results: results,
		Count:   len(results),
	})
}

// executeFlow walks the flow to completion and returns the aggregated
// result. Node failures are reflected in the result rather than the
// HTTP status
func (s *Server) executeFlow(c *gin.Context) {
	id := api.FlowID(c.Param("flowID"))

	var req executeFlowRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest,
				fmt.Errorf("%w: %w", ErrInvalidJSON, err))
			return
		}
	}

	opts := &flow.Options{
		InitialVariables:  req.InitialVariables,
		Runner:            req.RunnerOptions,
		MaxExecutionTime:  s.maxFlowTime,
		ContinueOnFailure: req.ContinueOnFailure,
	}
	if req.MaxExecutionTimeMs > 0 {
		opts.MaxExecutionTime =
			time.Duration(req.MaxExecutionTimeMs) * time.Millisecond
	}

	res, err := s.flows.Execute(c.Request.Context(), id, opts)
	if err != nil && res == nil {
		respondRepoError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) flattenFlow(c *gin.Context) {
	id := api.FlowID(c.Param("flowID"))
	ids, err := s.flows.Flatten(c.Request.Context(), id)
	if err != nil {
		respondRepoError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.FlattenResponse{ScenarioIDs: ids})
}
