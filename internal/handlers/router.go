package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/brightclass/insight-service/internal/utils"
)

type HandlerManager struct {
	insightHandler *InsightHandler
}

func NewHandlerManager(insightHandler *InsightHandler) *HandlerManager {
	return &HandlerManager{
		insightHandler: insightHandler,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine, logger utils.Logger) {
	router.Use(utils.LoggerMiddleware(logger))

	router.GET("/health", HealthCheck)

	v1 := router.Group("/api/v1")
	{
		insights := v1.Group("/insights")
		{
			insights.GET("/alerts", hm.insightHandler.GetAlerts)
			insights.GET("/suggestions", hm.insightHandler.GetSuggestions)
			insights.GET("/srs/plan", hm.insightHandler.GetTeachingPlan)
			insights.GET("/srs/analytics", hm.insightHandler.GetSRSAnalytics)
			insights.GET("/students/:id/performance", hm.insightHandler.GetStudentPerformance)
		}
	}
}

// HealthCheck reports process liveness
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
