package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/mind-engage/mindengage-exams/internal/attempt"
	auth "github.com/mind-engage/mindengage-exams/internal/auth/middleware"
	"github.com/mind-engage/mindengage-exams/internal/catalog"
	"github.com/mind-engage/mindengage-exams/internal/exam"
	"github.com/mind-engage/mindengage-exams/internal/rbac"
)

// StudentExams lists the published exams a student can see.
type StudentExams interface {
	ListForStudent(ctx context.Context, studentID string) ([]catalog.StudentExam, error)
}

// A nil Answers means the field was missing from the body.
type submitRequest struct {
	Answers *[]exam.Response `json:"answers"`
}

// GET /student/exams
func ListStudentExamsHandler(exams StudentExams, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := exams.ListForStudent(r.Context(), auth.SubjectFromContext(r.Context()))
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// POST /student/exams/{examID}/start
func StartAttemptHandler(svc *attempt.Service, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := svc.Start(r.Context(), chi.URLParam(r, "examID"), auth.SubjectFromContext(r.Context()))
		if err != nil {
			writeError(w, log, err)
			return
		}
		status := http.StatusCreated
		if res.Resumed {
			status = http.StatusOK
		}
		writeJSON(w, status, res)
	}
}

// POST /student/attempts/{attemptID}/submit  { "answers": [...] }
func SubmitAttemptHandler(svc *attempt.Service, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req submitRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, log, err)
			return
		}
		if req.Answers == nil {
			writeError(w, log, exam.Errorf(exam.ErrBadRequest, "answers is required"))
			return
		}
		res, err := svc.Submit(r.Context(), chi.URLParam(r, "attemptID"), auth.SubjectFromContext(r.Context()), *req.Answers)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// GET /student/attempts/{attemptID}
func GetAttemptResultHandler(svc *attempt.Service, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, _ := rbac.PrincipalFromContext(r.Context())
		res, err := svc.ResultDetail(r.Context(), chi.URLParam(r, "attemptID"), p.ID, p.IsAdmin())
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// GET /student/dashboard
func DashboardHandler(svc *attempt.Service, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := svc.Dashboard(r.Context(), auth.SubjectFromContext(r.Context()))
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, d)
	}
}
