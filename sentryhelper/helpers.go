// Package sentryhelper provides utilities for Sentry span and scope management.
// Request handlers run under the hub that the sentrygin middleware clones per
// request; these helpers find that hub through the context so breadcrumbs and
// captured errors stay attached to the request that produced them.
package sentryhelper

import (
	"context"

	sentry "github.com/getsentry/sentry-go"
)

// HubFromContext retrieves the request hub from context.
// Falls back to CurrentHub when the context carries none (background work, tests).
func HubFromContext(ctx context.Context) *sentry.Hub {
	if ctx == nil {
		return sentry.CurrentHub()
	}
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		return hub
	}
	return sentry.CurrentHub()
}

// StartSpan starts a child span attached to the transaction in context.
// Tags are applied in key/value order; an odd trailing key is ignored.
func StartSpan(ctx context.Context, operation, description string, tags ...string) *sentry.Span {
	span := sentry.StartSpan(ctx, operation)
	span.Description = description
	for i := 0; i+1 < len(tags); i += 2 {
		span.SetTag(tags[i], tags[i+1])
	}
	return span
}

// AddBreadcrumb adds a breadcrumb to the hub in context.
func AddBreadcrumb(ctx context.Context, category, message string) {
	HubFromContext(ctx).AddBreadcrumb(&sentry.Breadcrumb{
		Category: category,
		Message:  message,
		Level:    sentry.LevelInfo,
	}, nil)
}

// CaptureException captures an exception on the hub in context.
func CaptureException(ctx context.Context, err error) *sentry.EventID {
	return HubFromContext(ctx).CaptureException(err)
}

// CaptureMessage captures a message on the hub in context.
// Use this for warnings or informational events that aren't errors.
func CaptureMessage(ctx context.Context, message string) *sentry.EventID {
	return HubFromContext(ctx).CaptureMessage(message)
}
