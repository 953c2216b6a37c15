package models

import (
	"context"
)

type actorContextKey struct{}

// Actor identifies who initiated an operation.
type Actor struct {
	UserId    string
	Role      UserRole
	RequestId string
}

// WithActor attaches the caller identity to a context.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, a)
}

// ActorFromContext returns the caller identity, or a system actor when none is set.
func ActorFromContext(ctx context.Context) Actor {
	if a, ok := ctx.Value(actorContextKey{}).(Actor); ok {
		return a
	}
	return Actor{UserId: "system"}
}
