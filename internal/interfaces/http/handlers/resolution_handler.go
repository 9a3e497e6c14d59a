package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/substance-resolver/internal/application/resolution"
)

// ResolutionHandler serves /match and /synonyms_lookup.
type ResolutionHandler struct {
	svc resolution.Service
}

// NewResolutionHandler creates a handler over svc.
func NewResolutionHandler(svc resolution.Service) *ResolutionHandler {
	return &ResolutionHandler{svc: svc}
}

// Match handles GET /match?query=. The body is a JSON array of match records;
// a query without matches returns the single no-match record.
func (h *ResolutionHandler) Match(c *gin.Context) {
	query, ok := requiredQuery(c, "query")
	if !ok {
		return
	}
	res, err := h.svc.Resolve(c.Request.Context(), query)
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, res.Records())
}

// SynonymsLookup handles GET /synonyms_lookup?term=.
func (h *ResolutionHandler) SynonymsLookup(c *gin.Context) {
	term, ok := requiredQuery(c, "term")
	if !ok {
		return
	}
	groups, err := h.svc.GroupSynonyms(c.Request.Context(), term)
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, groups.Response())
}
