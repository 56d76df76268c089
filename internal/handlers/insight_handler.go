package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/brightclass/insight-service/internal/services"
	"github.com/brightclass/insight-service/internal/utils"
)

// InsightHandler serves the teacher dashboard's insight endpoints. Every
// endpoint computes fresh from telemetry; none of them mutate anything.
type InsightHandler struct {
	BaseHandler
	alerts      services.AlertService
	suggestions services.SuggestionService
	srsPlan     services.SRSPlanService
	mastery     services.MasteryService
	performance services.PerformanceService
	timeout     time.Duration
}

func NewInsightHandler(
	alerts services.AlertService,
	suggestions services.SuggestionService,
	srsPlan services.SRSPlanService,
	mastery services.MasteryService,
	performance services.PerformanceService,
	logger utils.Logger,
	validator *utils.Validator,
	timeout time.Duration,
) *InsightHandler {
	return &InsightHandler{
		BaseHandler: NewBaseHandler(logger, validator),
		alerts:      alerts,
		suggestions: suggestions,
		srsPlan:     srsPlan,
		mastery:     mastery,
		performance: performance,
		timeout:     timeout,
	}
}

// requestContext bounds one insight computation. When the deadline fires,
// the degraded store loads produce empty metrics instead of an error, so
// the dashboard always renders.
func (h *InsightHandler) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return c.Request.Context(), func() {}
	}
	return context.WithTimeout(c.Request.Context(), h.timeout)
}

// GetAlerts returns the severity-bucketed alert feed.
// GET /api/v1/insights/alerts?institution_id=...
func (h *InsightHandler) GetAlerts(c *gin.Context) {
	var query insightQuery
	if !h.bindQuery(c, &query) {
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	response, err := h.alerts.GetAlerts(ctx, query.InstitutionID, resolveNow(query.AsOf))
	if err != nil {
		h.LogError(c, err, "Failed to compute alerts", "institution_id", query.InstitutionID)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "Failed to compute alerts"})
		return
	}

	c.JSON(http.StatusOK, response)
}

// GetSuggestions returns the ranked recommendation list.
// GET /api/v1/insights/suggestions?institution_id=...&limit=3
func (h *InsightHandler) GetSuggestions(c *gin.Context) {
	var query insightQuery
	if !h.bindQuery(c, &query) {
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	suggestions, err := h.suggestions.GetSuggestions(ctx, query.InstitutionID, resolveNow(query.AsOf), query.Limit)
	if err != nil {
		h.LogError(c, err, "Failed to compute suggestions", "institution_id", query.InstitutionID)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "Failed to compute suggestions"})
		return
	}

	c.JSON(http.StatusOK, suggestions)
}

// GetTeachingPlan returns the SRS group/personal teaching plan.
// GET /api/v1/insights/srs/plan?institution_id=...&class_id=12
func (h *InsightHandler) GetTeachingPlan(c *gin.Context) {
	var query insightQuery
	if !h.bindQuery(c, &query) {
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	plan, err := h.srsPlan.GetTeachingPlan(ctx, query.InstitutionID, query.ClassID, resolveNow(query.AsOf))
	if err != nil {
		h.LogError(c, err, "Failed to build teaching plan", "institution_id", query.InstitutionID)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "Failed to build teaching plan"})
		return
	}

	c.JSON(http.StatusOK, plan)
}

// GetSRSAnalytics returns the mastery health panel.
// GET /api/v1/insights/srs/analytics?institution_id=...
func (h *InsightHandler) GetSRSAnalytics(c *gin.Context) {
	var query insightQuery
	if !h.bindQuery(c, &query) {
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	analytics, err := h.mastery.GetSRSAnalytics(ctx, query.InstitutionID, resolveNow(query.AsOf))
	if err != nil {
		h.LogError(c, err, "Failed to compute SRS analytics", "institution_id", query.InstitutionID)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "Failed to compute SRS analytics"})
		return
	}

	c.JSON(http.StatusOK, analytics)
}

// GetStudentPerformance returns one student's drill-down snapshot.
// GET /api/v1/insights/students/:id/performance
func (h *InsightHandler) GetStudentPerformance(c *gin.Context) {
	studentID := strings.TrimSpace(c.Param("id"))
	if studentID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid student id",
			Details: "student id cannot be empty",
		})
		return
	}

	var query studentQuery
	if !h.bindQuery(c, &query) {
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	snapshot, err := h.performance.GetStudentSnapshot(ctx, studentID, resolveNow(query.AsOf))
	if err != nil {
		if services.IsNotFound(err) {
			c.JSON(http.StatusNotFound, ErrorResponse{Message: "Student not found"})
			return
		}
		h.LogError(c, err, "Failed to compute student snapshot", "student_id", studentID)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "Failed to compute student performance"})
		return
	}

	c.JSON(http.StatusOK, snapshot)
}
