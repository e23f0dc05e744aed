package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/orderimport/internal/core"
	"github.com/JonMunkholm/orderimport/internal/web/middleware"
)

// withRequestMetadata adds client IP and User-Agent for audit records.
func withRequestMetadata(r *http.Request) context.Context {
	return core.WithRequestMeta(r.Context(), middleware.ClientIP(r), r.UserAgent())
}
