package utils

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

type CustomContext struct {
	AppSource string
	AccountID string
	InboxID   string
	RequestID string
}

type customContextKeyType string

const customContextKey customContextKeyType = "CUSTOM_CONTEXT"

func WithCustomContext(ctx context.Context, customContext *CustomContext) context.Context {
	return context.WithValue(ctx, customContextKey, customContext)
}

func WithCustomContextFromGinRequest(c *gin.Context, appSource string) context.Context {
	customContext := &CustomContext{
		AppSource: appSource,
		AccountID: c.GetString("AccountID"),
		RequestID: c.GetString("RequestID"),
	}
	return WithCustomContext(c.Request.Context(), customContext)
}

func GetContext(ctx context.Context) *CustomContext {
	customContext, ok := ctx.Value(customContextKey).(*CustomContext)
	if !ok {
		return new(CustomContext)
	}
	return customContext
}

func GetAppSourceFromContext(ctx context.Context) string {
	return GetContext(ctx).AppSource
}

func GetAccountIDFromContext(ctx context.Context) string {
	return GetContext(ctx).AccountID
}

func GetInboxIDFromContext(ctx context.Context) string {
	return GetContext(ctx).InboxID
}

func GetRequestIDFromContext(ctx context.Context) string {
	return GetContext(ctx).RequestID
}

// WithAccount returns a copy of ctx scoped to one monitored account
func WithAccount(ctx context.Context, accountID, inboxID string) context.Context {
	current := GetContext(ctx)
	next := *current
	next.AccountID = accountID
	next.InboxID = inboxID
	return WithCustomContext(ctx, &next)
}

func SetAppSourceInContext(ctx context.Context, appSource string) context.Context {
	current := GetContext(ctx)
	next := *current
	next.AppSource = appSource
	return WithCustomContext(ctx, &next)
}

func ValidateAccount(ctx context.Context) error {
	if GetAccountIDFromContext(ctx) == "" {
		return errors.New("account is missing")
	}
	return nil
}
