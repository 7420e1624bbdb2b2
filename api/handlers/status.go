package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/customeros/mailchannel/internal/tracing"
	"github.com/customeros/mailchannel/services/accounts"
)

type StatusHandler struct {
	reporter StatusReporter
}

func NewStatusHandler(reporter StatusReporter) *StatusHandler {
	return &StatusHandler{reporter: reporter}
}

type ProbeRequest struct {
	AccountID string `json:"accountId"`
}

// HealthCheck provides a simple health check endpoint
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Status returns account snapshots with issues and warnings, probing when ?probe=true
func (h *StatusHandler) Status() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "StatusHandler.Status")
		defer span.Finish()
		tracing.TagComponentRest(span)

		report, err := h.reporter.Report(ctx, c.Query("probe") == "true")
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

func (h *StatusHandler) Accounts() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "StatusHandler.Accounts")
		defer span.Finish()
		tracing.TagComponentRest(span)

		report, err := h.reporter.Report(ctx, false)
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"accounts": report.Accounts})
	}
}

func (h *StatusHandler) Probe() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "StatusHandler.Probe")
		defer span.Finish()
		tracing.TagComponentRest(span)

		var request ProbeRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&request); err != nil {
				tracing.TraceErr(span, err)
				c.JSON(http.StatusBadRequest, gin.H{"error": "please provide a valid request payload"})
				return
			}
		}

		accountID := accounts.NormalizeAccountID(request.AccountID)
		tracing.TagAccount(span, accountID)
		c.JSON(http.StatusOK, h.reporter.ProbeAccount(ctx, accountID))
	}
}
