package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/customeros/mailchannel/internal/utils"
)

const (
	RequestIDHeader = "X-Request-ID"
	AccountHeader   = "X-MAILCHANNEL-ACCOUNT"
)

// CustomContextMiddleware adds custom context to all requests
func CustomContextMiddleware(appSource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = utils.GenerateNanoIDWithPrefix("req", 16)
		}
		c.Set("RequestID", requestID)
		c.Set("AccountID", c.GetHeader(AccountHeader))
		c.Header(RequestIDHeader, requestID)

		ctx := utils.WithCustomContextFromGinRequest(c, appSource)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
