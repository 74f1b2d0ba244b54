// Package actorcontext carries the authenticated actor through the
// request context. Authentication itself happens upstream; the core only
// needs the actor id for event logs and settlement records.
package actorcontext

import (
	"context"
	"strings"
)

type actorKey struct{}

// SystemActor is recorded when a transition is driven internally, e.g.
// lazy quote expiry or coordinator cascades.
const SystemActor = "system"

// WithActor stores the actor id in the context.
func WithActor(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, actorKey{}, strings.TrimSpace(actorID))
}

// ActorFromContext returns the actor id from context, if set.
func ActorFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	value, ok := ctx.Value(actorKey{}).(string)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

// ActorOrSystem returns the actor id, defaulting to SystemActor.
func ActorOrSystem(ctx context.Context) string {
	if actor, ok := ActorFromContext(ctx); ok {
		return actor
	}
	return SystemActor
}
