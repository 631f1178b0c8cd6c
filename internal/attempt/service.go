package attempt

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mind-engage/mindengage-exams/internal/exam"
	"github.com/mind-engage/mindengage-exams/internal/grading"
	syncx "github.com/mind-engage/mindengage-exams/internal/sync"
)

// Service is the attempt lifecycle controller.
type Service struct {
	store Store
	exams ExamReader
	now   func() time.Time
	log   logrus.FieldLogger
	// SiteID tags emitted events; empty means "local".
	SiteID string
}

func NewService(store Store, exams ExamReader, log logrus.FieldLogger) *Service {
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		log = l
	}
	return &Service{store: store, exams: exams, now: time.Now, log: log}
}

// WithClock replaces the time source; tests use it to pin submission times.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// ExamView is the student-facing exam shown when an attempt starts.
type ExamView struct {
	ID              string                `json:"id"`
	Title           string                `json:"title"`
	Description     string                `json:"description"`
	DurationMinutes int                   `json:"duration_minutes"`
	TotalMarks      int                   `json:"total_marks"`
	Questions       []exam.PublicQuestion `json:"questions"`
}

type StartResult struct {
	AttemptID string    `json:"attempt_id"`
	Resumed   bool      `json:"resumed"`
	StartedAt time.Time `json:"started_at"`
	// Deadline is advisory; submissions after it are still accepted.
	Deadline time.Time `json:"deadline"`
	Exam     ExamView  `json:"exam"`
}

var errUnavailable = exam.Errorf(exam.ErrNotFound, "exam not found or not available")

// Start begins an attempt, or resumes the caller's in-progress one. A student
// who already submitted gets a *exam.ConflictError carrying the stored result.
func (s *Service) Start(ctx context.Context, examID, studentID string) (StartResult, error) {
	now := s.now().UTC()
	e, err := s.exams.GetExam(ctx, examID)
	if errors.Is(err, exam.ErrNotFound) {
		return StartResult{}, errUnavailable
	}
	if err != nil {
		return StartResult{}, err
	}
	if !e.Attemptable(now) {
		return StartResult{}, errUnavailable
	}

	log := s.log.WithFields(logrus.Fields{"exam_id": examID, "student_id": studentID})

	a, err := s.store.FindByExamStudent(ctx, examID, studentID)
	switch {
	case err == nil:
		return s.resume(ctx, e, a, log)
	case !errors.Is(err, exam.ErrNotFound):
		return StartResult{}, err
	}

	a = exam.Attempt{ID: uuid.NewString(), ExamID: examID, StudentID: studentID, StartedAt: now}
	err = s.store.Create(ctx, a)
	if errors.Is(err, exam.ErrAttemptExists) {
		// lost a race with a concurrent start for the same pair
		existing, ferr := s.store.FindByExamStudent(ctx, examID, studentID)
		if ferr != nil {
			return StartResult{}, ferr
		}
		return s.resume(ctx, e, existing, log)
	}
	if err != nil {
		return StartResult{}, err
	}
	log.WithField("attempt_id", a.ID).Info("attempt started")
	return startResult(e, a, false), nil
}

func (s *Service) resume(ctx context.Context, e exam.Exam, a exam.Attempt, log logrus.FieldLogger) (StartResult, error) {
	if a.Status() == exam.StatusSubmitted {
		r, err := s.storedResult(ctx, a)
		if err != nil {
			return StartResult{}, err
		}
		return StartResult{}, &exam.ConflictError{Result: r}
	}
	log.WithField("attempt_id", a.ID).Debug("attempt resumed")
	return startResult(e, a, true), nil
}

func startResult(e exam.Exam, a exam.Attempt, resumed bool) StartResult {
	view := ExamView{
		ID:              e.ID,
		Title:           e.Title,
		Description:     e.Description,
		DurationMinutes: e.DurationMinutes,
		TotalMarks:      e.TotalMarks(),
		Questions:       make([]exam.PublicQuestion, 0, len(e.Questions)),
	}
	for _, q := range e.Questions {
		view.Questions = append(view.Questions, q.Public(a.ID))
	}
	return StartResult{
		AttemptID: a.ID,
		Resumed:   resumed,
		StartedAt: a.StartedAt,
		Deadline:  a.StartedAt.Add(e.Duration()),
		Exam:      view,
	}
}

// Submit grades answers and moves the attempt to submitted. Everything from
// the ownership check to the event append runs in one store transaction, so a
// failed submission leaves the attempt in progress with no answers stored.
func (s *Service) Submit(ctx context.Context, attemptID, callerID string, answers []exam.Response) (exam.Result, error) {
	var (
		result    exam.Result
		startedAt time.Time
		overrun   time.Duration
	)
	err := s.store.InTx(ctx, func(tx Tx) error {
		a, err := tx.GetAttempt(ctx, attemptID)
		if err != nil {
			return err
		}
		if a.StudentID != callerID {
			return exam.Errorf(exam.ErrForbidden, "attempt %s belongs to another student", attemptID)
		}
		if a.Status() == exam.StatusSubmitted {
			return exam.Errorf(exam.ErrConflict, "attempt %s already submitted", attemptID)
		}
		questions, err := tx.Questions(ctx, a.ExamID)
		if err != nil {
			return err
		}
		if len(questions) == 0 {
			return exam.Errorf(exam.ErrBadRequest, "exam %s has no questions", a.ExamID)
		}

		graded := grading.GradeAll(questions, canonicalize(a.ID, questions, answers))
		now := s.now().UTC()
		r, rows, err := Aggregate(&a, graded, now)
		if err != nil {
			return err
		}
		if err := tx.MarkSubmitted(ctx, a); err != nil {
			return err
		}
		if err := tx.InsertAnswers(ctx, rows); err != nil {
			return err
		}
		data, err := json.Marshal(r)
		if err != nil {
			return err
		}
		if err := tx.AppendEvent(ctx, syncx.Event{
			SiteID:    s.SiteID,
			Type:      syncx.TypeAttemptSubmitted,
			Key:       a.ID,
			DataJSON:  string(data),
			CreatedAt: now.UnixMilli(),
		}); err != nil {
			return err
		}
		result = r
		startedAt = a.StartedAt
		return nil
	})
	if err != nil {
		return exam.Result{}, err
	}

	// The exam is read after commit: InTx may hold the store's only connection.
	if e, err := s.exams.GetExam(ctx, result.ExamID); err == nil {
		result.ExamTitle = e.Title
		overrun = result.SubmittedAt.Sub(startedAt.Add(e.Duration()))
	}

	log := s.log.WithFields(logrus.Fields{
		"attempt_id": result.AttemptID,
		"exam_id":    result.ExamID,
		"student_id": callerID,
	})
	if overrun > 0 {
		log.WithField("overrun", overrun.Round(time.Second).String()).Warn("late submission accepted")
	}
	log.WithFields(logrus.Fields{"score": result.Score, "total_marks": result.TotalMarks}).Info("attempt submitted")
	return result, nil
}

// canonicalize maps matching pairs from the attempt's display order back to
// canonical right indices. Other responses pass through unchanged.
func canonicalize(attemptID string, questions []exam.Question, answers []exam.Response) []exam.Response {
	sizes := make(map[string]int, len(questions))
	for _, q := range questions {
		if m, ok := q.Body.(exam.Matching); ok {
			sizes[q.ID] = len(m.Pairs)
		}
	}
	out := make([]exam.Response, len(answers))
	for i, r := range answers {
		out[i] = r
		n, ok := sizes[r.QuestionID]
		if !ok || len(r.MatchingPairs) == 0 {
			continue
		}
		out[i].MatchingPairs = exam.ToCanonical(r.MatchingPairs, exam.RightOrder(attemptID, r.QuestionID, n))
	}
	return out
}

// Result returns the stored result of a submitted attempt. Only the owner or
// an admin may read it.
func (s *Service) Result(ctx context.Context, attemptID, callerID string, isAdmin bool) (exam.Result, error) {
	a, err := s.store.Get(ctx, attemptID)
	if err != nil {
		return exam.Result{}, err
	}
	if !isAdmin && a.StudentID != callerID {
		return exam.Result{}, exam.Errorf(exam.ErrForbidden, "attempt %s belongs to another student", attemptID)
	}
	if a.Status() != exam.StatusSubmitted {
		return exam.Result{}, exam.Errorf(exam.ErrConflict, "attempt %s is still in progress", attemptID)
	}
	return s.storedResult(ctx, a)
}

// ResultDetail is a stored result together with its per-question answers.
type ResultDetail struct {
	exam.Result
	Answers []exam.AttemptAnswer `json:"answers"`
}

func (s *Service) ResultDetail(ctx context.Context, attemptID, callerID string, isAdmin bool) (ResultDetail, error) {
	r, err := s.Result(ctx, attemptID, callerID, isAdmin)
	if err != nil {
		return ResultDetail{}, err
	}
	answers, err := s.store.Answers(ctx, attemptID)
	if err != nil {
		return ResultDetail{}, err
	}
	return ResultDetail{Result: r, Answers: answers}, nil
}

func (s *Service) storedResult(ctx context.Context, a exam.Attempt) (exam.Result, error) {
	rs, err := s.store.Results(ctx, ResultFilter{AttemptID: a.ID, Limit: 1})
	if err != nil {
		return exam.Result{}, err
	}
	if len(rs) == 0 {
		r := a.Result()
		r.StudentID = a.StudentID
		return r, nil
	}
	return rs[0], nil
}
