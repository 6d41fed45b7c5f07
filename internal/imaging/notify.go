package imaging

import (
	"context"

	"github.com/rs/zerolog"
)

// Notifier surfaces user-facing status messages from the image stages.
type Notifier interface {
	Notify(ctx context.Context, msg string)
}

// LogNotifier writes notifications to a zerolog logger.
type LogNotifier struct {
	Log zerolog.Logger
}

func (n LogNotifier) Notify(_ context.Context, msg string) {
	n.Log.Info().Str("notification", msg).Msg("status")
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, msg string)

func (f NotifierFunc) Notify(ctx context.Context, msg string) { f(ctx, msg) }
