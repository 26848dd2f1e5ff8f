package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/shelfkeeper/apiserver/internal/auth"
)

var (
	errMissingAuthorization = errors.New("access denied")
	errNotBearer            = errors.New("authorization must be a bearer token")
	errEmptyToken           = errors.New("invalid token")
)

// RequireAuth rejects requests without a valid bearer token and stores the
// verified identity in the request context. Every verification failure is
// reported with the same message.
func RequireAuth(tokens *auth.TokenIssuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := bearerToken(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}

			identity, err := tokens.Verify(tokenString)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), identity)))
		})
	}
}

func bearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", errMissingAuthorization
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found {
		if strings.EqualFold(scheme, "Bearer") {
			return "", errEmptyToken
		}
		return "", errNotBearer
	}
	if !strings.EqualFold(scheme, "Bearer") {
		return "", errNotBearer
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errEmptyToken
	}
	return token, nil
}

// identityOrReject returns the caller identity set by RequireAuth.
func identityOrReject(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, errMissingAuthorization.Error())
	}
	return identity, ok
}
