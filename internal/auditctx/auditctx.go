// Package auditctx carries the acting user of a request down to the service
// layer, where it is stamped onto audit log entries.
package auditctx

import "context"

// Actor identifies who performed an action. UserID is empty for anonymous
// requests such as registration.
type Actor struct {
	UserID    string
	Username  string
	IPAddress string
	UserAgent string
}

type actorKey struct{}

// WithActor returns a derived context carrying actor.
func WithActor(ctx context.Context, actor Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorKey{}, actor)
}

// FromContext returns the actor stored by WithActor.
func FromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	actor, ok := ctx.Value(actorKey{}).(Actor)
	return actor, ok
}
