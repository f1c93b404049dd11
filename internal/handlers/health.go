package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/teamspace/internal/monitoring"
	"github.com/charlesng35/teamspace/pkg/response"
)

// Health reports readiness. Only a failing critical dependency turns it into a 503.
func Health(manager *monitoring.HealthManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		report := manager.Evaluate(requestContext(c))
		if !report.Healthy() {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"success": false,
				"data":    report,
			})
			return
		}
		response.Success(c, http.StatusOK, report)
	}
}
