package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"go-chat-vault/internal/model"
	"go-chat-vault/internal/token"
	"go-chat-vault/pkg/apierror"
)

type tokenVerifier interface {
	Verify(tokenString string) (model.Principal, error)
}

type principalStore interface {
	FindByID(ctx context.Context, id string) (model.User, error)
}

type contextKey string

const principalContextKey contextKey = "principal"

// AuthMiddleware is the session guard in front of every protected route.
// It only reads state.
type AuthMiddleware struct {
	verifier tokenVerifier
	users    principalStore
}

func NewAuthMiddleware(verifier tokenVerifier, users principalStore) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier, users: users}
}

func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := bearerToken(r)
		if tokenString == "" {
			writeError(w, http.StatusUnauthorized, apierror.CodeUnauthorized, "missing or invalid authorization header")
			return
		}

		principal, err := m.verifier.Verify(tokenString)
		if err != nil {
			message := "invalid token"
			if errors.Is(err, token.ErrExpiredToken) {
				message = "token expired"
			}
			writeError(w, http.StatusUnauthorized, apierror.CodeUnauthorized, message)
			return
		}

		// demo identities are rebuilt from the token alone
		if principal.Demo || token.IsDemoID(principal.ID) {
			principal.Demo = true
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
			return
		}

		user, err := m.users.FindByID(r.Context(), principal.ID)
		switch {
		case errors.Is(err, model.ErrUserNotFound):
			writeError(w, http.StatusUnauthorized, apierror.CodeUnauthorized, "user no longer exists")
			return
		case errors.Is(err, model.ErrStoreUnavailable):
			slog.Error("session lookup failed, credential store unavailable", "principal_id", principal.ID, "error", err)
			writeError(w, http.StatusServiceUnavailable, apierror.CodeUnavailable, "credential store is unavailable")
			return
		case err != nil:
			slog.Error("session lookup failed", "principal_id", principal.ID, "error", err)
			writeError(w, http.StatusInternalServerError, apierror.CodeInternal, "Unexpected server error")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), user.Principal())))
	})
}

func WithPrincipal(ctx context.Context, principal model.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, principal)
}

func PrincipalFromContext(ctx context.Context) (model.Principal, bool) {
	principal, ok := ctx.Value(principalContextKey).(model.Principal)
	return principal, ok && principal.ID != ""
}

// bearerToken reads the Authorization header. Browsers cannot set headers on
// websocket upgrades, so those may pass access_token in the query string.
func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}

	if header == "" && websocket.IsWebSocketUpgrade(r) {
		return strings.TrimSpace(r.URL.Query().Get("access_token"))
	}

	return ""
}
