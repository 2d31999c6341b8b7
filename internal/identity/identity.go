// Package identity resolves the acting user for each request. Authentication
// happens upstream; this service trusts the actor header and only normalizes
// it.
package identity

import (
	"context"
	"net/http"
	"regexp"
	"strings"
)

const (
	// ActorHeaderName carries the acting user identifier set by the upstream
	// gateway.
	ActorHeaderName = "X-Actor-ID"
	// DefaultActor is used when the header is absent or invalid.
	DefaultActor = "system"
)

type contextKey int

const actorKey contextKey = iota

var actorPattern = regexp.MustCompile(`^[A-Za-z0-9._@:-]{1,128}$`)

// ActorFromContext extracts the acting user from the request context.
func ActorFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(actorKey).(string); ok {
		return v
	}
	return DefaultActor
}

func sanitizeActor(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || !actorPattern.MatchString(id) {
		return DefaultActor
	}
	return id
}

// ActorFromRequest resolves the actor for a request without the middleware.
func ActorFromRequest(r *http.Request) string {
	return sanitizeActor(r.Header.Get(ActorHeaderName))
}

// Middleware injects the normalized actor identifier into the request context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), actorKey, ActorFromRequest(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
