package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

// Identity is the authenticated caller attached to a request.
type Identity struct {
	UserID string
	Email  string
}

// TokenVerifier resolves a bearer token to an identity.
type TokenVerifier interface {
	VerifyToken(token string) (Identity, error)
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok && id.UserID != ""
}

type AuthConfig struct {
	Verifier TokenVerifier
	Realm    string
}

type authErr struct {
	Error string `json:"error"`
}

// AuthMiddleware rejects requests without a valid "Authorization: Bearer"
// token and attaches the resolved Identity otherwise.
func AuthMiddleware(cfg AuthConfig) func(http.Handler) http.Handler {
	realm := cfg.Realm
	if realm == "" {
		realm = "tasks"
	}
	challenge := `Bearer realm="` + realm + `"`

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				unauthorized(w, challenge)
				return
			}
			id, err := cfg.Verifier.VerifyToken(token)
			if err != nil || id.UserID == "" {
				unauthorized(w, challenge+`, error="invalid_token"`)
				return
			}
			setLogUser(r.Context(), id.UserID)
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	authz := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(authz, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(w http.ResponseWriter, challenge string) {
	w.Header().Set("Content-Type", "application/json")
	if challenge != "" {
		w.Header().Set("WWW-Authenticate", challenge)
	}
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(authErr{Error: "unauthorized"})
}
