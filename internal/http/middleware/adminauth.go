package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tendant/group-gatekeeper/internal/httputil"
)

type contextKey string

// AdminIDKey is the context key for the authenticated admin's platform id.
const AdminIDKey contextKey = "admin_id"

// AdminAuth creates middleware that validates HS256 bearer tokens on the
// admin surface. The token subject is the admin's platform user id; the
// mode controller re-checks it against the configured admin set, so a
// valid token alone never grants admin rights.
func AdminAuth(secret []byte, issuer string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var tokenString string

			authHeader := r.Header.Get("Authorization")
			if authHeader != "" {
				parts := strings.SplitN(authHeader, " ", 2)
				if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
					tokenString = parts[1]
				}
			}
			if tokenString == "" {
				httputil.Error(w, http.StatusUnauthorized, "missing authorization")
				return
			}

			claims := &jwt.RegisteredClaims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return secret, nil
			}, jwt.WithIssuer(issuer))
			if err != nil || !token.Valid {
				httputil.Error(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			adminID, err := strconv.ParseInt(claims.Subject, 10, 64)
			if err != nil {
				httputil.Error(w, http.StatusUnauthorized, "invalid token subject")
				return
			}

			ctx := context.WithValue(r.Context(), AdminIDKey, adminID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetAdminID extracts the admin id from the request context.
func GetAdminID(ctx context.Context) (int64, bool) {
	adminID, ok := ctx.Value(AdminIDKey).(int64)
	return adminID, ok
}
