package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/joyeria/internal/core"
)

// WithRequestMetadata adds the client address and user agent to ctx for
// audit entries.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	return core.ContextWithClient(ctx, clientIP(r), r.UserAgent())
}
