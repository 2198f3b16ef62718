package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"wallet-service/internal/domain"
	"wallet-service/pkg/response"
	"wallet-service/pkg/xerrors"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const actorKey contextKey = "actor"

// Claims is the bearer-token payload issued by the auth service.
type Claims struct {
	UserID      int64    `json:"uid"`
	Permissions []string `json:"perms"`
	jwt.RegisteredClaims
}

type Auth struct {
	secret []byte
}

func NewAuth(secret string) *Auth {
	return &Auth{secret: []byte(secret)}
}

// Require rejects requests without a valid bearer token and injects the
// resolved actor into the request context.
func (a *Auth) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if raw == "" || raw == r.Header.Get("Authorization") {
			response.Err(w, xerrors.New(xerrors.ErrUnauthorized, "missing bearer token"))
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, xerrors.New(xerrors.ErrUnauthorized, "unexpected signing method")
			}
			return a.secret, nil
		})
		if err != nil || !token.Valid {
			response.Err(w, xerrors.New(xerrors.ErrUnauthorized, "invalid or expired token"))
			return
		}

		actor := domain.Actor{
			UserID:      claims.UserID,
			Permissions: claims.Permissions,
			ClientIP:    ClientIP(r),
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey, actor)))
	})
}

// RequirePermission layers a permission check on top of Require.
func RequirePermission(perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := FromContext(r.Context())
			if !ok {
				response.Err(w, xerrors.New(xerrors.ErrUnauthorized, "missing bearer token"))
				return
			}
			if !actor.Can(perm) {
				response.Err(w, xerrors.Newf(xerrors.ErrForbidden, "missing %s permission", perm))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func FromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(domain.Actor)
	return actor, ok
}

// ClientIP prefers the first X-Forwarded-For hop, falling back to the peer
// address.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i > 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
