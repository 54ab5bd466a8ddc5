package server

import (
	"net/http"

	"market-agent/src/helpers"

	"github.com/gin-gonic/gin"
)

// -----------------------------------------------------------------------------

// statusFor maps an error to the HTTP status of its kind
func statusFor(err error) int {
	switch helpers.ErrorKind(err) {
	case helpers.KindValidation:
		return http.StatusBadRequest
	case helpers.KindUpstreamData:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// -----------------------------------------------------------------------------

func abortWithError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(statusFor(err), gin.H{
		"error": err.Error(),
		"kind":  helpers.ErrorKind(err),
	})
}

// -----------------------------------------------------------------------------

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Origin, X-Request-Id")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-Id")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
