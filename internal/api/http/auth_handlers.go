package http

import (
	"context"
	"net/http"

	"github.com/sirupsen/logrus"

	auth "github.com/mind-engage/mindengage-exams/internal/auth/middleware"
	"github.com/mind-engage/mindengage-exams/internal/users"
)

type UserGetter interface {
	Get(ctx context.Context, id string) (users.User, error)
}

// GET /auth/me
func MeHandler(accounts UserGetter, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := accounts.Get(r.Context(), auth.SubjectFromContext(r.Context()))
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, u)
	}
}

type PasswordChanger interface {
	ChangePassword(ctx context.Context, id, oldPassword, newPassword string) error
}

type changePasswordReq struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// POST /auth/password
func ChangePasswordHandler(accounts PasswordChanger, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req changePasswordReq
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, log, err)
			return
		}
		if err := accounts.ChangePassword(r.Context(), auth.SubjectFromContext(r.Context()), req.OldPassword, req.NewPassword); err != nil {
			writeError(w, log, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
