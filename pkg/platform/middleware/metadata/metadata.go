// Package metadata extracts client metadata from HTTP requests into the
// request context, where the audit writer and login guard read it.
package metadata

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"bastion/pkg/requestcontext"
)

// RequestIDHeader is honored when upstream infrastructure already assigned a
// correlation ID.
const RequestIDHeader = "X-Request-Id"

// ClientMetadata extracts client IP, User-Agent, and a request ID from the
// request and adds them to the context for handlers and services.
// Apply it early in the chain.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ctx = requestcontext.WithClientMetadata(ctx, ClientIPFromRequest(r), r.Header.Get("User-Agent"))

		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx = requestcontext.WithRequestID(ctx, requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientIPFromRequest extracts the real client IP from the request, handling
// proxies and load balancers.
func ClientIPFromRequest(r *http.Request) string {
	// X-Forwarded-For can contain multiple IPs (client, proxy1, proxy2, ...);
	// the first is the original client.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	// RemoteAddr is "ip:port" (IPv6: "[::1]:port"); strip the port.
	if addr := r.RemoteAddr; addr != "" {
		if idx := strings.LastIndex(addr, ":"); idx != -1 {
			return addr[:idx]
		}
		return addr
	}

	return "unknown"
}
