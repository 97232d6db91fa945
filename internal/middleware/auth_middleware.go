package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/qcom/accounts/internal/service"
	"github.com/sirupsen/logrus"
)

type contextKey string

const accountIDKey contextKey = "account_id"

// TokenVerifier checks a signed token of the given type.
type TokenVerifier interface {
	VerifyToken(tokenString, tokenType string) (*service.Claims, error)
}

type AuthMiddleware struct {
	tokens TokenVerifier
	logger *logrus.Logger
}

func NewAuthMiddleware(tokens TokenVerifier, logger *logrus.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		tokens: tokens,
		logger: logger,
	}
}

// RequireAuth admits requests carrying a valid session token and stores the
// token's account id in the request context.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			m.respondUnauthorized(w, "Missing authorization header")
			return
		}

		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			m.respondUnauthorized(w, "Invalid authorization header format")
			return
		}

		claims, err := m.tokens.VerifyToken(parts[1], service.TokenTypeSession)
		if err != nil {
			m.logger.WithError(err).Debug("Token verification failed")
			m.respondUnauthorized(w, "Invalid or expired token")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithAccountID(r.Context(), claims.AccountID)))
	})
}

func WithAccountID(ctx context.Context, accountID string) context.Context {
	return context.WithValue(ctx, accountIDKey, accountID)
}

func AccountIDFromContext(ctx context.Context) (string, bool) {
	accountID, ok := ctx.Value(accountIDKey).(string)
	return accountID, ok && accountID != ""
}

func (m *AuthMiddleware) respondUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{
		"code":    "UNAUTHORIZED",
		"message": message,
	})
}
