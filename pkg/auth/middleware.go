package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

type contextKey string

const (
	tokenHeader              = "Authorization"
	tokenPrefix              = "Bearer "
	bidderIDKey   contextKey = "bidder_id"
	bidderNameKey contextKey = "bidder_name"
)

// Middleware validates the bearer token and injects the bidder's
// identity into the request context. Handlers behind it trust that
// identity without re-verifying credentials.
func Middleware(signer *Signer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get(tokenHeader)
			if authHeader == "" {
				http.Error(w, `{"error":"missing authorization header"}`, http.StatusUnauthorized)
				return
			}
			if !strings.HasPrefix(authHeader, tokenPrefix) {
				http.Error(w, `{"error":"invalid authorization header format"}`, http.StatusUnauthorized)
				return
			}

			claims, err := signer.ValidateToken(strings.TrimPrefix(authHeader, tokenPrefix))
			if err != nil {
				http.Error(w, `{"error":"invalid or expired token"}`, http.StatusUnauthorized)
				return
			}

			bidderID, err := uuid.Parse(claims.Subject)
			if err != nil {
				http.Error(w, `{"error":"invalid subject in token"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), bidderIDKey, bidderID)
			ctx = context.WithValue(ctx, bidderNameKey, claims.Name)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithBidder returns a context carrying the given bidder identity, as
// Middleware would after validating a token.
func WithBidder(ctx context.Context, bidderID uuid.UUID, name string) context.Context {
	ctx = context.WithValue(ctx, bidderIDKey, bidderID)
	return context.WithValue(ctx, bidderNameKey, name)
}

// BidderFromContext retrieves the authenticated bidder's id and display
// name, as placed there by Middleware.
func BidderFromContext(ctx context.Context) (uuid.UUID, string, bool) {
	id, ok := ctx.Value(bidderIDKey).(uuid.UUID)
	if !ok {
		return uuid.Nil, "", false
	}
	name, _ := ctx.Value(bidderNameKey).(string)
	return id, name, true
}
