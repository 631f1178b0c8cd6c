package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	api "github.com/mind-engage/mindengage-exams/internal/api/http"
	"github.com/mind-engage/mindengage-exams/internal/attempt"
	auth "github.com/mind-engage/mindengage-exams/internal/auth/middleware"
	"github.com/mind-engage/mindengage-exams/internal/catalog"
	"github.com/mind-engage/mindengage-exams/internal/config"
	"github.com/mind-engage/mindengage-exams/internal/db"
	"github.com/mind-engage/mindengage-exams/internal/logx"
	"github.com/mind-engage/mindengage-exams/internal/storage"
	syncx "github.com/mind-engage/mindengage-exams/internal/sync"
	"github.com/mind-engage/mindengage-exams/internal/users"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logx.New("info", nil).WithError(err).Fatal("config")
	}
	log := logx.New(cfg.LogLevel, os.Stderr)

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.WithError(err).Fatal("db open failed")
	}
	defer dbh.Close()

	accounts := users.NewStore(dbh)
	created, err := accounts.EnsureAdmin(ctx, cfg.AdminName, cfg.AdminEmail, cfg.AdminPassHash, cfg.AdminPassword)
	if err != nil {
		log.WithError(err).Fatal("admin seed failed")
	}
	if created {
		log.WithField("email", cfg.AdminEmail).Info("admin account created")
	}

	bs, err := storage.NewFSStore(cfg.BlobBasePath)
	if err != nil {
		log.WithError(err).Fatal("blob store")
	}

	exams := catalog.NewSQLStore(dbh, time.Now)
	attempts := attempt.NewService(attempt.NewSQLStore(dbh, cfg.DBDriver), exams, log)
	attempts.SiteID = cfg.SiteID

	router := api.NewRouter(api.Deps{
		DB:            dbh,
		Auth:          auth.NewAuthService(cfg.JWTSecret, time.Duration(cfg.JWTTTLHour)*time.Hour),
		Users:         accounts,
		Exams:         exams,
		Attempts:      attempts,
		Events:        syncx.NewEventRepo(dbh),
		Blobs:         bs,
		Log:           log,
		CORSOrigins:   cfg.CORSOrigins,
		MaxAudioBytes: cfg.MaxAudioBytes,
		// online deployments trust only the stored role
		RoleFallback: cfg.Mode != config.ModeOnline,
		AccessLog:    true,
	})

	s := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	stop, done := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer done()
	go func() {
		<-stop.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("shutdown")
		}
	}()

	log.WithFields(logrus.Fields{"addr": cfg.HTTPAddr, "mode": cfg.Mode, "db": cfg.DBDriver}).Info("listening")
	if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("server")
	}
}
