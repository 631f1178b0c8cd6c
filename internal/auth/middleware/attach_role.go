package auth

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/mind-engage/mindengage-exams/internal/rbac"
)

// AttachRoleFromDB replaces the token's role with the one stored for the
// subject, so demoted or deleted accounts lose access before their token
// expires. allowClaimFallback keeps the claim role when the lookup fails
// (offline mode only).
func AttachRoleFromDB(db *sql.DB, allowClaimFallback bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			sub := SubjectFromContext(ctx)
			claimRole := rbac.RoleFromContext(ctx) // set by JWTMiddleware

			var role string
			err := db.QueryRowContext(ctx, `SELECT role FROM users WHERE id=$1`, sub).Scan(&role)

			switch {
			case err == nil && role != "":
				next.ServeHTTP(w, r.WithContext(rbac.WithRole(ctx, role)))

			case errors.Is(err, sql.ErrNoRows):
				http.Error(w, "unknown account", http.StatusUnauthorized)

			case allowClaimFallback && claimRole != "":
				next.ServeHTTP(w, r)

			default:
				http.Error(w, "forbidden", http.StatusForbidden)
			}
		})
	}
}
