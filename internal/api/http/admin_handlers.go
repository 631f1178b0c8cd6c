package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/mind-engage/mindengage-exams/internal/attempt"
	auth "github.com/mind-engage/mindengage-exams/internal/auth/middleware"
	"github.com/mind-engage/mindengage-exams/internal/catalog"
	"github.com/mind-engage/mindengage-exams/internal/exam"
	syncx "github.com/mind-engage/mindengage-exams/internal/sync"
	"github.com/mind-engage/mindengage-exams/internal/users"
)

// ExamAdmin is the authoring side of the exam catalog.
type ExamAdmin interface {
	GetExam(ctx context.Context, id string) (exam.Exam, error)
	PutExam(ctx context.Context, e exam.Exam, createdBy string) (exam.Exam, error)
	SetPublished(ctx context.Context, id string, published bool) error
	ListExams(ctx context.Context) ([]catalog.ExamSummary, error)
	CountExams(ctx context.Context) (int, error)
}

type StudentCreator interface {
	CreateStudent(ctx context.Context, in users.NewStudent) (users.User, error)
}

type StudentDirectory interface {
	ListStudents(ctx context.Context) ([]users.User, error)
	CountStudents(ctx context.Context) (int, error)
}

type adminSummary struct {
	Students        int     `json:"students"`
	Exams           int     `json:"exams"`
	Submissions     int     `json:"submissions"`
	AvgScorePercent float64 `json:"avg_score_percent"`
}

// StudentReport is one row of the admin student list.
type StudentReport struct {
	users.User
	attempt.Summary
}

type EventReader interface {
	Since(ctx context.Context, after int64, limit int) ([]syncx.Event, error)
}

// GET /admin/exams
func ListExamsHandler(exams ExamAdmin, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := exams.ListExams(r.Context())
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// PUT /admin/exams/{examID}
func PutExamHandler(exams ExamAdmin, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in catalog.ExamInput
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, log, err)
			return
		}
		e, err := in.ToExam(chi.URLParam(r, "examID"))
		if err != nil {
			writeError(w, log, err)
			return
		}
		saved, err := exams.PutExam(r.Context(), e, auth.SubjectFromContext(r.Context()))
		if err != nil {
			writeError(w, log, err)
			return
		}
		log.WithFields(logrus.Fields{"exam_id": saved.ID, "questions": len(saved.Questions)}).Info("exam saved")
		writeJSON(w, http.StatusOK, catalog.AdminView(saved))
	}
}

// PATCH /admin/exams/{examID}/publish  { "published": true }
func PublishExamHandler(exams ExamAdmin, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Published bool `json:"published"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, log, err)
			return
		}
		id := chi.URLParam(r, "examID")
		if err := exams.SetPublished(r.Context(), id, req.Published); err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": id, "published": req.Published})
	}
}

// GET /admin/exams/{examID}
func GetExamAdminHandler(exams ExamAdmin, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, err := exams.GetExam(r.Context(), chi.URLParam(r, "examID"))
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, catalog.AdminView(e))
	}
}

// GET /admin/exams/{examID}/results
func ExamResultsHandler(svc *attempt.Service, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := svc.ExamResults(r.Context(), chi.URLParam(r, "examID"))
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// POST /admin/students
func CreateStudentHandler(accounts StudentCreator, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in users.NewStudent
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, log, err)
			return
		}
		u, err := accounts.CreateStudent(r.Context(), in)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, u)
	}
}

// GET /admin/events?after=0&limit=100
func EventsHandler(events EventReader, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		after, _ := strconv.ParseInt(q.Get("after"), 10, 64)
		limit, _ := strconv.Atoi(q.Get("limit"))
		out, err := events.Since(r.Context(), after, limit)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// GET /admin/dashboard
func AdminDashboardHandler(students StudentDirectory, exams ExamAdmin, svc *attempt.Service, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var (
			out adminSummary
			err error
		)
		if out.Students, err = students.CountStudents(ctx); err != nil {
			writeError(w, log, err)
			return
		}
		if out.Exams, err = exams.CountExams(ctx); err != nil {
			writeError(w, log, err)
			return
		}
		sm, err := svc.Overview(ctx)
		if err != nil {
			writeError(w, log, err)
			return
		}
		out.Submissions, out.AvgScorePercent = sm.Attempts, sm.AveragePercent
		writeJSON(w, http.StatusOK, out)
	}
}

// GET /admin/students
func ListStudentsHandler(students StudentDirectory, svc *attempt.Service, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := students.ListStudents(r.Context())
		if err != nil {
			writeError(w, log, err)
			return
		}
		stats, err := svc.StudentSummaries(r.Context())
		if err != nil {
			writeError(w, log, err)
			return
		}
		out := make([]StudentReport, 0, len(list))
		for _, u := range list {
			out = append(out, StudentReport{User: u, Summary: stats[u.ID]})
		}
		writeJSON(w, http.StatusOK, out)
	}
}
