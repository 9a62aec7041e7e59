package middleware

import "context"

type bodyKey struct{}

// WithBody returns a copy of ctx carrying the buffered request body.
func WithBody(ctx context.Context, body []byte) context.Context {
	return context.WithValue(ctx, bodyKey{}, body)
}

// BodyFromContext returns the body buffered by BodyBufferMiddleware, or
// nil when the request was not buffered. A buffered empty body is
// non-nil.
func BodyFromContext(ctx context.Context) []byte {
	body, _ := ctx.Value(bodyKey{}).([]byte)
	return body
}
