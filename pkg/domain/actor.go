package domain

import (
	"context"
	"strings"
)

// SystemActor is recorded when no actor is attached to the context.
const SystemActor = "System"

type actorKey struct{}

// WithActor attaches the name of the user performing an operation.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, strings.TrimSpace(actor))
}

// ActorFromContext returns the attached actor or SystemActor.
func ActorFromContext(ctx context.Context) string {
	if ctx != nil {
		if actor, ok := ctx.Value(actorKey{}).(string); ok && actor != "" {
			return actor
		}
	}
	return SystemActor
}
