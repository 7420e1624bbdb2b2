package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	api_errors "github.com/customeros/mailchannel/api/errors"
	"github.com/customeros/mailchannel/dto"
	"github.com/customeros/mailchannel/interfaces"
	mcerrors "github.com/customeros/mailchannel/internal/errors"
	"github.com/customeros/mailchannel/internal/tracing"
	"github.com/customeros/mailchannel/internal/utils"
)

type MessagesHandler struct {
	outbound interfaces.OutboundService
}

func NewMessagesHandler(outbound interfaces.OutboundService) *MessagesHandler {
	return &MessagesHandler{outbound: outbound}
}

type ReplyRequest struct {
	Text      string `json:"text"`
	HTML      string `json:"html"`
	MediaURL  string `json:"mediaUrl"`
	AccountID string `json:"accountId"`
}

// Reply reply-alls to the inbound message in the path; new conversations are not possible
func (h *MessagesHandler) Reply() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "MessagesHandler.Reply")
		defer span.Finish()
		tracing.TagComponentRest(span)

		request, err := h.validateReplyRequest(c)
		if err != nil {
			tracing.TraceErr(span, err)
			response := gin.H{"error": err.Error()}
			var validation *api_errors.MultiErrors
			if errors.As(err, &validation) {
				response["fields"] = validation.Fields()
			}
			c.JSON(http.StatusBadRequest, response)
			return
		}
		tracing.TagEntity(span, request.ReplyToID)

		var result *dto.OutboundResult
		if request.MediaURL != "" {
			result, err = h.outbound.SendMedia(ctx, request)
		} else {
			result, err = h.outbound.SendText(ctx, request)
		}
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(replyErrorStatus(err), gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

func (h *MessagesHandler) validateReplyRequest(c *gin.Context) (dto.OutboundRequest, error) {
	errs := api_errors.NewMultiErrors()

	var body ReplyRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		errs.Add("request", "please provide a valid request payload", errors.New("cannot parse request"))
		return dto.OutboundRequest{}, errs
	}

	messageID := strings.TrimSpace(c.Param("id"))
	if messageID == "" {
		errs.Add("id", "message id is required", mcerrors.ErrRepliesOnly)
	}
	if strings.TrimSpace(body.Text) == "" && body.MediaURL == "" {
		errs.Add("text", "provide text or mediaUrl", errors.New("empty reply"))
	}
	if errs.HasErrors() {
		return dto.OutboundRequest{}, errs
	}

	return dto.OutboundRequest{
		Text:      body.Text,
		HTML:      body.HTML,
		MediaURL:  body.MediaURL,
		ReplyToID: messageID,
		AccountID: utils.FirstNonEmpty(body.AccountID, utils.GetAccountIDFromContext(c.Request.Context())),
	}, nil
}

func replyErrorStatus(err error) int {
	switch {
	case errors.Is(err, mcerrors.ErrRepliesOnly):
		return http.StatusBadRequest
	case errors.Is(err, mcerrors.ErrNotConfigured):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}
