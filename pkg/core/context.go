package core

import "context"

type contextKey string

// ChangeReasonKey carries a human-readable reason for a write, used as the
// commit message by versioned storage.
const ChangeReasonKey contextKey = "change_reason"

// WithChangeReason attaches reason to ctx.
func WithChangeReason(ctx context.Context, reason string) context.Context {
	return context.WithValue(ctx, ChangeReasonKey, reason)
}

// ChangeReason returns the reason attached to ctx, if any.
func ChangeReason(ctx context.Context) string {
	reason, _ := ctx.Value(ChangeReasonKey).(string)
	return reason
}
