// Package auditctx carries the acting user through request and job contexts so
// audit entries can be attributed without threading extra parameters.
package auditctx

import "context"

// Actor captures contextual information about the authenticated actor that initiated a request.
// Sign-in jobs run with the signing-in user as the actor.
type Actor struct {
	UserID    string
	TeamID    string
	IPAddress string
	UserAgent string
}

// ID returns a pointer to the actor's user ID, or nil for anonymous actors.
func (a Actor) ID() *string {
	if a.UserID == "" {
		return nil
	}
	id := a.UserID
	return &id
}

type actorContextKey struct{}

// WithActor stores actor in ctx. A nil ctx is replaced by context.Background.
func WithActor(ctx context.Context, actor Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// FromContext extracts previously stored actor metadata from the context.
func FromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}
