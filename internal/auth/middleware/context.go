package auth

import (
	"context"

	"github.com/mind-engage/mindengage-exams/internal/rbac"
)

// SubjectFromContext returns the authenticated account id, or "" when the
// request carried no valid token.
func SubjectFromContext(ctx context.Context) string {
	p, _ := rbac.PrincipalFromContext(ctx)
	return p.ID
}
