package auth

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/coursekit/coursekit-lms/internal/rbac"
)

// AttachRoleFromDB refreshes the requester's role from the users table so a
// role change (or deactivation) takes effect before the token expires.
// allowClaimFallback=true keeps dev tokens usable before the user row exists.
func AttachRoleFromDB(db *sql.DB, allowClaimFallback bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			sub := SubjectFromContext(ctx)
			claimRole := rbac.RoleFromContext(ctx) // set by JWTMiddleware

			var role string
			var active bool
			err := db.QueryRowContext(ctx,
				`SELECT role, is_active FROM users WHERE id=$1`,
				sub,
			).Scan(&role, &active)

			switch {
			case err == nil && role != "":
				if !active {
					http.Error(w, "account deactivated", http.StatusForbidden)
					return
				}
				next.ServeHTTP(w, r.WithContext(rbac.WithRole(ctx, role)))
				return

			case errors.Is(err, sql.ErrNoRows):
				if allowClaimFallback && claimRole != "" {
					next.ServeHTTP(w, r) // keep whatever JWTMiddleware set
					return
				}
				http.Error(w, "forbidden", http.StatusForbidden)
				return

			default:
				// Unknown DB error: in dev, be lenient; in prod, deny
				if allowClaimFallback && claimRole != "" {
					next.ServeHTTP(w, r)
					return
				}
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
		})
	}
}
