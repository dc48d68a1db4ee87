package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/farmerimport/internal/core"
	"github.com/JonMunkholm/farmerimport/internal/web/middleware"
)

// withRequestMetadata adds the caller and client address to ctx for the
// import log.
func withRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	if p, ok := middleware.PrincipalFromContext(ctx); ok && p.Name != "" {
		ctx = core.ContextWithActor(ctx, p.Name)
	}
	return core.ContextWithIPAddress(ctx, middleware.ClientIP(r))
}
