package authkit

import (
	"context"

	"github.com/loopchat/authkit/internal/api"
)

// WithRequestID attaches a request id to ctx. Every backend call made under
// that context carries it as X-Request-ID; contexts without one get a fresh
// uuid per call.
func WithRequestID(ctx context.Context, id string) context.Context {
	return api.WithRequestID(ctx, id)
}

// RequestIDFromContext returns the request id attached to ctx, minting one
// when the context carries none.
func RequestIDFromContext(ctx context.Context) string {
	return api.RequestIDFromContext(ctx)
}
