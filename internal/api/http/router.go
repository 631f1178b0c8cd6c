package http

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"github.com/mind-engage/mindengage-exams/internal/attempt"
	auth "github.com/mind-engage/mindengage-exams/internal/auth/middleware"
	"github.com/mind-engage/mindengage-exams/internal/rbac"
	"github.com/mind-engage/mindengage-exams/internal/storage"
	"github.com/mind-engage/mindengage-exams/internal/users"
)

type ExamCatalog interface {
	ExamAdmin
	StudentExams
}

// Deps are the collaborators the HTTP surface is built from.
type Deps struct {
	DB       *sql.DB // optional; enables the stored-role check and /readyz ping
	Auth     *auth.AuthService
	Users    *users.Store
	Exams    ExamCatalog
	Attempts *attempt.Service
	Events   EventReader
	Blobs    storage.BlobStore
	Log      logrus.FieldLogger

	CORSOrigins   []string
	MaxAudioBytes int64
	// RoleFallback keeps the token role when the account lookup fails.
	RoleFallback bool
	AccessLog    bool
}

func NewRouter(d Deps) http.Handler {
	log := d.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	r := chi.NewRouter()
	mws := []func(http.Handler) http.Handler{middleware.RequestID, middleware.RealIP}
	if d.AccessLog {
		mws = append(mws, middleware.Logger)
	}
	mws = append(mws, middleware.Recoverer, middleware.Timeout(30*time.Second))
	r.Use(mws...)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/login", auth.LoginHandler(d.Auth, d.Users))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if d.DB != nil {
			if err := d.DB.PingContext(r.Context()); err != nil {
				http.Error(w, "db unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})

	// Protected API (JWT → role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(d.Auth))
		if d.DB != nil {
			pr.Use(auth.AttachRoleFromDB(d.DB, d.RoleFallback))
		}

		pr.Get("/auth/me", MeHandler(d.Users, log))
		pr.Post("/auth/password", ChangePasswordHandler(d.Users, log))

		pr.Route("/student", func(sr chi.Router) {
			sr.With(rbac.Require(rbac.PermExamView)).
				Get("/exams", ListStudentExamsHandler(d.Exams, log))
			sr.With(rbac.Require(rbac.PermAttemptCreate)).
				Post("/exams/{examID}/start", StartAttemptHandler(d.Attempts, log))
			sr.With(rbac.Require(rbac.PermAttemptSubmit)).
				Post("/attempts/{attemptID}/submit", SubmitAttemptHandler(d.Attempts, log))
			// ownership is checked by the service; admins may read any attempt
			sr.With(rbac.RequireAny(rbac.PermAttemptViewOwn, rbac.PermAttemptViewAll)).
				Get("/attempts/{attemptID}", GetAttemptResultHandler(d.Attempts, log))
			sr.With(rbac.Require(rbac.PermAttemptViewOwn)).
				Get("/dashboard", DashboardHandler(d.Attempts, log))
		})

		pr.Route("/admin", func(ar chi.Router) {
			ar.With(rbac.Require(rbac.PermExamViewKeys)).Get("/exams", ListExamsHandler(d.Exams, log))
			ar.With(rbac.Require(rbac.PermExamCreate)).Put("/exams/{examID}", PutExamHandler(d.Exams, log))
			ar.With(rbac.Require(rbac.PermExamPublish)).Patch("/exams/{examID}/publish", PublishExamHandler(d.Exams, log))
			ar.With(rbac.Require(rbac.PermExamViewKeys)).Get("/exams/{examID}", GetExamAdminHandler(d.Exams, log))
			ar.With(rbac.Require(rbac.PermAttemptViewAll)).Get("/exams/{examID}/results", ExamResultsHandler(d.Attempts, log))
			ar.With(rbac.Require(rbac.PermReportsView)).Get("/dashboard", AdminDashboardHandler(d.Users, d.Exams, d.Attempts, log))
			ar.With(rbac.Require(rbac.PermUsersView)).Get("/students", ListStudentsHandler(d.Users, d.Attempts, log))
			ar.With(rbac.Require(rbac.PermUsersCreate)).Post("/students", CreateStudentHandler(d.Users, log))
			if d.Events != nil {
				ar.With(rbac.Require(rbac.PermEventsRead)).Get("/events", EventsHandler(d.Events, log))
			}
		})

		if d.Blobs != nil {
			pr.Route("/assets", func(ar chi.Router) {
				MountAssets(ar, d.Blobs, d.MaxAudioBytes, log)
			})
		}
	})

	return r
}
