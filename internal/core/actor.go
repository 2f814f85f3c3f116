package core

import (
	"context"

	"clinicdesk/pkg/domain"
)

// WithActor attributes the operations run with ctx to the named user.
func WithActor(ctx context.Context, actor string) context.Context {
	return domain.WithActor(ctx, actor)
}

// ActorFromContext returns the attributed user, or domain.SystemActor.
func ActorFromContext(ctx context.Context) string {
	return domain.ActorFromContext(ctx)
}
