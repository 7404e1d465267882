package shared

import "context"

type actorKey struct{}

// ContextWithActor stores the acting user id for audit attribution.
func ContextWithActor(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, actorKey{}, id)
}

// ActorFromContext returns the acting user id, zero when unauthenticated.
func ActorFromContext(ctx context.Context) int64 {
	id, _ := ctx.Value(actorKey{}).(int64)
	return id
}
