package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/replaykit/replay/internal/ingest"
	"github.com/replaykit/replay/pkg/api"
)

// finishSessionRequest optionally names the scenario created from the
// recording
type finishSessionRequest struct {
	Name string `json:"name,omitempty"`
}

func (s *Server) listSessions(c *gin.Context) {
	sessions, err := s.ingest.Sessions(c.Request.Context())
	if err != nil {
		respondRepoError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.SessionListResponse{
		Sessions: sessions,
		Count:    len(sessions),
	})
}

func (s *Server) startSession(c *gin.Context) {
	var req ingest.StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest,
			fmt.Errorf("%w: %w", ErrInvalidJSON, err))
		return
	}

	session, err := s.ingest.Start(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, ingest.ErrSessionURLNeeded) {
			respondError(c, http.StatusBadRequest, err)
			return
		}
		respondRepoError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

// getSession returns one session; ?include=events folds the recorded
// events into the response
func (s *Server) getSession(c *gin.Context) {
	id := api.SessionID(c.Param("sessionID"))

	if c.Query("include") == "events" {
		session, err := s.ingest.SessionWithEvents(c.Request.Context(), id)
		if err != nil {
			respondRepoError(c, err)
			return
		}
		c.JSON(http.StatusOK, session)
		return
	}

	session, err := s.ingest.Session(c.Request.Context(), id)
	if err != nil {
		respondRepoError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (s *Server) updateSession(c *gin.Context) {
	id := api.SessionID(c.Param("sessionID"))

	var patch api.SessionPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondError(c, http.StatusBadRequest,
			fmt.Errorf("%w: %w", ErrInvalidJSON, err))
		return
	}

	session, err := s.ingest.Update(c.Request.Context(), id, &patch)
	if err != nil {
		respondRepoError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (s *Server) deleteSession(c *gin.Context) {
	id := api.SessionID(c.Param("sessionID"))
	if err := s.ingest.Delete(c.Request.Context(), id); err != nil {
		respondRepoError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) stopSession(c *gin.Context) {
	id := api.SessionID(c.Param("sessionID"))
	session, err := s.ingest.Stop(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, api.ErrSessionStopped) {
			respondError(c, http.StatusConflict, err)
			return
		}
		respondRepoError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// finishSession stops the recording, reduces its events to steps, and
// returns the created scenario
func (s *Server) finishSession(c *gin.Context) {
	id := api.SessionID(c.Param("sessionID"))

	var req finishSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest,
				fmt.Errorf("%w: %w", ErrInvalidJSON, err))
			return
		}
	}

	scenario, err := s.ingest.Finish(c.Request.Context(), id, req.Name)
	if err != nil {
		if errors.Is(err, ingest.ErrNothingRecorded) {
			respondError(c, http.StatusUnprocessableEntity, err)
			return
		}
		respondRepoError(c, err)
		return
	}
	c.JSON(http.StatusCreated, scenario)
}

func (s *Server) listSessionEvents(c *gin.Context) {
	id := api.SessionID(c.Param("sessionID"))
	events, err := s.ingest.Events(c.Request.Context(), id)
	if err != nil {
		respondRepoError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"events": events,
		"count":  len(events),
	})
}

// appendSessionEvents accepts a raw recorder batch. The body is
// validated against the event schema before any event is stored
func (s *Server) appendSessionEvents(c *gin.Context) {
	id := api.SessionID(c.Param("sessionID"))

	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	accepted, err := s.ingest.AppendEvents(c.Request.Context(), id, raw)
	if err != nil {
		if errors.Is(err, ingest.ErrInvalidEvents) {
			respondError(c, http.StatusBadRequest, err)
			return
		}
		respondRepoError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.EventsAcceptedResponse{Accepted: accepted})
}

func (s *Server) clearSessionEvents(c *gin.Context) {
	id := api.SessionID(c.Param("sessionID"))
	if err := s.ingest.ClearEvents(c.Request.Context(), id); err != nil {
		respondRepoError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
