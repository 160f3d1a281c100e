package interfaces

import (
	"context"

	"github.com/kazanshin/website/pkg/domain/model/logentry"
)

// ChatUsecases serves the conversation endpoints.
type ChatUsecases interface {
	// Chat answers message and records both turns.
	Chat(ctx context.Context, message string) (string, error)
	// Logs returns the newest limit entries of the log.
	Logs(ctx context.Context, limit int) ([]logentry.Entry, error)
}

// OperatorUsecases serves the scheduled and administrative endpoints.
type OperatorUsecases interface {
	// Pulse produces one reflective turn without a user message.
	Pulse(ctx context.Context) (string, error)
	// Seed appends the foundational markers missing from the log.
	Seed(ctx context.Context) (int, error)
	Export(ctx context.Context) ([]logentry.Entry, error)
	Reset(ctx context.Context) error
}
