package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/replaykit/replay/internal/artifact"
)

var ErrNoArtifactStore = errors.New("no artifact store configured")

// artifactContentTypes maps stored artifact extensions to media types
var artifactContentTypes = map[string]string{
	".png":  "image/png",
	".html": "text/html; charset=utf-8",
}

// getArtifact serves a stored screenshot or DOM snapshot by the ref
// recorded on a step result
func (s *Server) getArtifact(c *gin.Context) {
	if s.artifacts == nil {
		respondError(c, http.StatusNotFound, ErrNoArtifactStore)
		return
	}

	ref := strings.TrimPrefix(c.Param("ref"), "/")
	data, err := s.artifacts.Get(c.Request.Context(), ref)
	if err != nil {
		if errors.Is(err, artifact.ErrArtifactNotFound) {
			respondError(c, http.StatusNotFound, err)
			return
		}
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	contentType := "application/octet-stream"
	if i := strings.LastIndex(ref, "."); i >= 0 {
		if ct, ok := artifactContentTypes[ref[i:]]; ok {
			contentType = ct
		}
	}
	c.Data(http.StatusOK, contentType, data)
}
