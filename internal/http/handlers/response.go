// Package handlers contains the agentd HTTP handlers.
package handlers

import (
	"github.com/gin-gonic/gin"
)

// ErrorResponse is the JSON error envelope returned by all failing endpoints.
type ErrorResponse struct {
	RequestID string `json:"request_id,omitempty"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// Error code constants shared across handlers.
const (
	codeBadRequest       = "bad_request"
	codeInvalidSignature = "invalid_signature"
	codeUnauthorized     = "unauthorized"
)

// fail writes the standard error envelope with the request's correlation ID.
func fail(c *gin.Context, status int, code, message string) {
	rid := requestID(c)
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: rid,
		Code:      code,
		Message:   message,
	})
}

// ok writes a JSON 200 with the given body.
func ok(c *gin.Context, body interface{}) {
	c.JSON(200, body)
}

// requestID extracts the correlation ID set by the RequestID middleware.
func requestID(c *gin.Context) string {
	if v, exists := c.Get("requestID"); exists {
		if s, isStr := v.(string); isStr {
			return s
		}
	}
	return ""
}
