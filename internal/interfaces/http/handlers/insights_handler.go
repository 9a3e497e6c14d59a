package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/substance-resolver/internal/application/reporting"
)

// InsightsHandler serves the synonym insights report.
type InsightsHandler struct {
	svc reporting.Service
}

// NewInsightsHandler creates a handler over svc.
func NewInsightsHandler(svc reporting.Service) *InsightsHandler {
	return &InsightsHandler{svc: svc}
}

// Synonyms handles GET /synonyms.
func (h *InsightsHandler) Synonyms(c *gin.Context) {
	report, err := h.svc.SynonymInsights(c.Request.Context())
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
