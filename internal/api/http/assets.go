// internal/api/http/assets.go
package http

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mind-engage/mindengage-exams/internal/exam"
	"github.com/mind-engage/mindengage-exams/internal/rbac"
	"github.com/mind-engage/mindengage-exams/internal/storage"
)

// accepted upload extensions and the content type they are served with
var audioTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".m4a":  "audio/mp4",
	".webm": "audio/webm",
}

// MountAssets serves uploaded audio clips. Uploads need asset:upload; reads
// need asset:read.
func MountAssets(r chi.Router, bs storage.BlobStore, maxBytes int64, log logrus.FieldLogger) {
	if maxBytes <= 0 {
		maxBytes = 20 << 20
	}
	// POST /assets/audio  (multipart, field "file")
	r.With(rbac.Require(rbac.PermAssetUpload)).Post("/audio", func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		f, hdr, err := r.FormFile("file")
		if err != nil {
			var tooBig *http.MaxBytesError
			if errors.As(err, &tooBig) {
				writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "file too large"})
				return
			}
			writeError(w, log, exam.Errorf(exam.ErrBadRequest, "file required"))
			return
		}
		defer f.Close()

		ext := strings.ToLower(filepath.Ext(hdr.Filename))
		if _, ok := audioTypes[ext]; !ok {
			writeError(w, log, exam.Errorf(exam.ErrBadRequest, "unsupported audio type %q", ext))
			return
		}
		key, err := bs.Put("audio/"+uuid.NewString()+ext, f)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"key": key, "url": "/assets/" + key})
	})

	// GET /assets/*   -> returns the blob at whatever follows /assets/
	r.With(rbac.RequireAny(rbac.PermAssetRead, rbac.PermAssetUpload)).Get("/*", func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "*")
		rc, err := bs.Get(key)
		if errors.Is(err, storage.ErrInvalidKey) || errors.Is(err, os.ErrNotExist) {
			writeError(w, log, exam.Errorf(exam.ErrNotFound, "asset %s", key))
			return
		}
		if err != nil {
			writeError(w, log, err)
			return
		}
		defer rc.Close()
		ext := strings.ToLower(filepath.Ext(key))
		ct, ok := audioTypes[ext]
		if !ok {
			ct = mime.TypeByExtension(ext)
		}
		if ct == "" {
			ct = "application/octet-stream"
		}
		w.Header().Set("Content-Type", ct)
		_, _ = io.Copy(w, rc)
	})
}
