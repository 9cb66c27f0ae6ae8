package shared

import "context"

type actorContextKey struct{}

// ContextWithActor stores the request actor in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context. A zero Actor carries no
// capabilities, so missing context degrades to "unauthorized caller".
func ActorFromContext(ctx context.Context) Actor {
	actor, _ := ctx.Value(actorContextKey{}).(Actor)
	return actor
}
