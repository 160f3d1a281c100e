package request_id

import (
	"context"

	"github.com/google/uuid"
)

// Header carries a caller supplied request ID, such as the one a cron
// service sends with each pulse, and echoes the ID in effect back.
const Header = "X-Request-Id"

type contextKey struct{}

func With(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKey{}, requestID)
}

// FromContext returns the request ID of ctx, or "" when none is set.
func FromContext(ctx context.Context) string {
	if requestID, ok := ctx.Value(contextKey{}).(string); ok {
		return requestID
	}
	return ""
}

// Generate sets a new time ordered request ID in ctx.
func Generate(ctx context.Context) (context.Context, string) {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	requestID := id.String()
	return With(ctx, requestID), requestID
}

// Accept reuses candidate when it is a UUID and generates a new ID
// otherwise. Anything else from the wire is dropped so it never reaches
// the logs verbatim.
func Accept(ctx context.Context, candidate string) (context.Context, string) {
	if id, err := uuid.Parse(candidate); err == nil {
		requestID := id.String()
		return With(ctx, requestID), requestID
	}
	return Generate(ctx)
}
