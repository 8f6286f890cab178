package rest

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	apiKeyHeader    = "X-API-Key"
	requestIDHeader = "X-Request-ID"
)

// requestIDMiddleware tags every request with a correlation id so that
// log lines from the orchestration layer can be tied back to the caller.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)
		c.Writer.Header().Set(requestIDHeader, requestID)
		c.Next()
	}
}

func apiKeyMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		provided := c.GetHeader(apiKeyHeader)
		if subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response{Error: "invalid or missing API key"})
			return
		}
		c.Next()
	}
}
