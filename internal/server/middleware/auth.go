// Package middleware provides HTTP middleware for authentication.
package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// ContextKey is a typed key for context values to avoid collisions.
type ContextKey string

const (
	// userIDKey is the context key for storing the authenticated user ID.
	userIDKey ContextKey = "userID"
	claimsKey ContextKey = "claims"
)

// SignInPath is where unauthenticated page requests are sent.
const SignInPath = "/sign-in"

// TokenValidator is an interface for validating session tokens.
// This allows the middleware to work with any JWT service implementation.
type TokenValidator interface {
	ValidateToken(tokenString string) (UserIDGetter, error)
}

// UserIDGetter is an interface for extracting user ID from token claims.
type UserIDGetter interface {
	GetUserID() uuid.UUID
}

// FailureHandler answers a request that carried no valid session.
type FailureHandler func(w http.ResponseWriter, r *http.Request)

// Authenticate validates the session token from the cookie or the
// Authorization header and adds the user ID to the request context.
// Requests without a valid token go to onFail.
func Authenticate(v TokenValidator, cookieName string, onFail FailureHandler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := validate(v, cookieName, r)
			if !ok {
				onFail(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
		})
	}
}

// Optional attaches the user when a valid token is present and never rejects.
func Optional(v TokenValidator, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if claims, ok := validate(v, cookieName, r); ok {
				r = r.WithContext(withClaims(r.Context(), claims))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAPI rejects unauthenticated API requests with a 401 JSON body.
func RequireAPI(v TokenValidator, cookieName string) func(http.Handler) http.Handler {
	return Authenticate(v, cookieName, Unauthorized)
}

// RequirePage redirects unauthenticated page requests to the sign-in page.
func RequirePage(v TokenValidator, cookieName string) func(http.Handler) http.Handler {
	return Authenticate(v, cookieName, RedirectToSignIn)
}

// Unauthorized writes a 401 JSON error.
func Unauthorized(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "Unauthorized"})
}

// RedirectToSignIn sends the browser to the sign-in page, remembering where it was going.
func RedirectToSignIn(w http.ResponseWriter, r *http.Request) {
	target := SignInPath + "?next=" + url.QueryEscape(r.URL.RequestURI())
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// SafeNext returns next if it is a local path, else fallback. It prevents
// open redirects through the sign-in flow.
func SafeNext(next, fallback string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return fallback
	}
	return next
}

func validate(v TokenValidator, cookieName string, r *http.Request) (UserIDGetter, bool) {
	token := tokenFromRequest(r, cookieName)
	if token == "" {
		return nil, false
	}
	claims, err := v.ValidateToken(token)
	if err != nil || claims.GetUserID() == uuid.Nil {
		return nil, false
	}
	return claims, true
}

// tokenFromRequest prefers the Authorization header over the session cookie.
func tokenFromRequest(r *http.Request, cookieName string) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		// Handle case-insensitive "Bearer" prefix
		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return ""
		}
		return strings.TrimSpace(parts[1])
	}
	if cookieName == "" {
		return ""
	}
	c, err := r.Cookie(cookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

func withClaims(ctx context.Context, claims UserIDGetter) context.Context {
	ctx = context.WithValue(ctx, userIDKey, claims.GetUserID())
	return context.WithValue(ctx, claimsKey, claims)
}

// GetUserID extracts the authenticated user ID from the request context.
func GetUserID(r *http.Request) (uuid.UUID, error) {
	userID, ok := r.Context().Value(userIDKey).(uuid.UUID)
	if !ok {
		return uuid.Nil, fmt.Errorf("user ID not found in request context")
	}
	return userID, nil
}

// GetClaims returns the validated claims from the request context.
func GetClaims(r *http.Request) (UserIDGetter, bool) {
	claims, ok := r.Context().Value(claimsKey).(UserIDGetter)
	return claims, ok
}

// UserIDKey returns the context key for user ID (for testing purposes).
func UserIDKey() ContextKey {
	return userIDKey
}
