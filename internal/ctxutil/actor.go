// Package ctxutil carries the acting user or agent through a context.
// This package has no internal dependencies to avoid import cycles.
package ctxutil

import (
	"context"
	"strings"
)

type actorKey struct{}

// WithActorID returns a context recording actorID as the actor of any
// workflow event emitted beneath it. A blank actorID leaves ctx unchanged.
func WithActorID(ctx context.Context, actorID string) context.Context {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return ctx
	}
	return context.WithValue(ctx, actorKey{}, actorID)
}

// ActorFromContext returns the actor ID from context, or empty string if not set.
func ActorFromContext(ctx context.Context) string {
	s, _ := ctx.Value(actorKey{}).(string)
	return s
}

// ResolveActor returns the first non-blank candidate, trimmed. Callers pass
// candidates in precedence order (flag, environment, config).
func ResolveActor(candidates ...string) string {
	for _, c := range candidates {
		if c = strings.TrimSpace(c); c != "" {
			return c
		}
	}
	return ""
}
