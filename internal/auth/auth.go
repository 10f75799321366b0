package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"swing-lab/internal/logging"
	"swing-lab/internal/metrics"
)

const tokenIssuer = "swing-lab"

// ErrNoAuthHeader is returned when the Authorization header is missing or
// is not a bearer token.
var ErrNoAuthHeader = errors.New("missing or malformed authorization header")

// ErrInvalidToken is returned for tokens that fail signature or claims
// validation.
var ErrInvalidToken = errors.New("invalid token")

type contextKey string

const userIDKey contextKey = "userID"

// GetBearerToken extracts the bearer token from an Authorization header.
func GetBearerToken(headers http.Header) (string, error) {
	authHeader := headers.Get("Authorization")
	if authHeader == "" {
		return "", ErrNoAuthHeader
	}

	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", ErrNoAuthHeader
	}
	return parts[1], nil
}

// MakeJWT creates a signed HS256 token for a user. Used by tests and by
// deployments that mint their own tokens instead of a managed provider.
func MakeJWT(userID string, secret []byte, expiresIn time.Duration) (string, error) {
	now := time.Now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
		Subject:   userID,
	})
	return token.SignedString(secret)
}

// ValidateJWT verifies an HS256 token and returns the user ID from its
// subject claim.
func ValidateJWT(tokenString string, secret []byte) (string, error) {
	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(
		tokenString,
		&claims,
		func(token *jwt.Token) (interface{}, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return "", ErrInvalidToken
	}

	userID, err := token.Claims.GetSubject()
	if err != nil || userID == "" {
		return "", ErrInvalidToken
	}
	return userID, nil
}

// UserID returns the authenticated user ID stored in the request context,
// or "" when the request did not pass through Middleware.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

// WithUserID returns a context carrying the given user ID. Used by tests.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// Middleware validates the bearer token on every request and injects the
// user ID into the request context. Requests without a valid token get 401.
func Middleware(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := GetBearerToken(r.Header)
			if err != nil {
				metrics.AuthChecksTotal.WithLabelValues("missing").Inc()
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			userID, err := ValidateJWT(token, secret)
			if err != nil {
				metrics.AuthChecksTotal.WithLabelValues("invalid").Inc()
				logging.Debug("Rejected token: %v", err)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			metrics.AuthChecksTotal.WithLabelValues("success").Inc()
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}
