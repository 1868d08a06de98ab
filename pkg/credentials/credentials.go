// Package credentials carries the caller's bearer token from the HTTP edge to
// outbound gateway calls, including calls made later by background workers.
package credentials

import "context"

type bearerKey struct{}

// WithBearer returns a copy of ctx carrying token.
func WithBearer(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, bearerKey{}, token)
}

// Bearer returns the token stored on ctx or an empty string.
func Bearer(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	token, _ := ctx.Value(bearerKey{}).(string)
	return token
}
