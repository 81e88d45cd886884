package middleware

import (
	"net/http"

	"github.com/rafaelquintero/sitepay-backend/api/responses"
	pkgerrors "github.com/rafaelquintero/sitepay-backend/pkg/errors"
	"github.com/rafaelquintero/sitepay-backend/pkg/enums"
	"github.com/rafaelquintero/sitepay-backend/pkg/logger"
)

// RequireRole rejects the request unless the authenticated role is one of the
// allowed roles. Handlers still enforce per-operation rules; this only trims
// clearly unauthorized traffic at the router.
func RequireRole(logg *logger.Logger, roles ...enums.ActorRole) func(http.Handler) http.Handler {
	allowed := make(map[enums.ActorRole]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := allowed[RoleFromContext(r.Context())]; !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "role required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
