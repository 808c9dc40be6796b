package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// HealthHandler serves GET /healthz. It reports process liveness and, when a
// database handle is configured, verifies connectivity with a ping.
type HealthHandler struct {
	DB      *gorm.DB
	Started time.Time
}

// Handle implements the endpoint.
func (h *HealthHandler) Handle(c *gin.Context) {
	status := "ok"
	code := http.StatusOK

	if h.DB != nil {
		sqlDB, err := h.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}

	c.JSON(code, gin.H{
		"status": status,
		"uptime": time.Since(h.Started).Round(time.Second).String(),
	})
}
