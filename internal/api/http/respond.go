package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/mind-engage/mindengage-exams/internal/exam"
)

type errorBody struct {
	Error            string       `json:"error"`
	AlreadySubmitted bool         `json:"already_submitted,omitempty"`
	Result           *exam.Result `json:"result,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the error kinds to HTTP statuses. Anything else is logged
// and reported as a generic 500.
func writeError(w http.ResponseWriter, log logrus.FieldLogger, err error) {
	var ce *exam.ConflictError
	switch {
	case errors.As(err, &ce):
		res := ce.Result
		writeJSON(w, http.StatusConflict, errorBody{Error: ce.Error(), AlreadySubmitted: true, Result: &res})
	case errors.Is(err, exam.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case errors.Is(err, exam.ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorBody{Error: err.Error()})
	case errors.Is(err, exam.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	case errors.Is(err, exam.ErrBadRequest):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	default:
		if log != nil {
			log.WithError(err).Error("request failed")
		}
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

// decodeJSON reads a JSON body. Unknown fields are ignored; a malformed body
// is a bad request.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return exam.Errorf(exam.ErrBadRequest, "bad json: %v", err)
	}
	return nil
}
