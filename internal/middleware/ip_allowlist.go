package middleware

import (
	"net/http"

	"wallet-service/pkg/response"
	"wallet-service/pkg/xerrors"
)

// IPAllowList restricts a route group to the given source IPs. An empty list
// disables the check, which is the development default.
func IPAllowList(allowed []string) func(http.Handler) http.Handler {
	set := make(map[string]struct{}, len(allowed))
	for _, ip := range allowed {
		set[ip] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(set) > 0 {
				if _, ok := set[ClientIP(r)]; !ok {
					response.Err(w, xerrors.New(xerrors.ErrForbidden, "source address not allowed"))
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
