// Package attempt runs the exam attempt lifecycle: starting or resuming an
// attempt, and grading a submission in a single transaction.
package attempt

import (
	"context"
	"time"

	"github.com/mind-engage/mindengage-exams/internal/exam"
	syncx "github.com/mind-engage/mindengage-exams/internal/sync"
)

// Store persists attempts and their graded answers. Implementations must
// enforce at most one attempt per (exam, student).
type Store interface {
	// FindByExamStudent returns exam.ErrNotFound when the pair has no attempt.
	FindByExamStudent(ctx context.Context, examID, studentID string) (exam.Attempt, error)
	// Create returns exam.ErrAttemptExists when the pair already has a row.
	Create(ctx context.Context, a exam.Attempt) error
	Get(ctx context.Context, id string) (exam.Attempt, error)
	// InTx runs fn in one transaction; nothing fn wrote is kept when it
	// returns an error.
	InTx(ctx context.Context, fn func(Tx) error) error
	// Results lists submitted attempts, newest first.
	Results(ctx context.Context, f ResultFilter) ([]exam.Result, error)
	// Summarize aggregates every submitted attempt matching f. f.Limit is
	// ignored.
	Summarize(ctx context.Context, f ResultFilter) (Summary, error)
	// SummariesByStudent aggregates submitted attempts per student id.
	SummariesByStudent(ctx context.Context) (map[string]Summary, error)
	// Answers returns the graded answers of an attempt in question order.
	Answers(ctx context.Context, attemptID string) ([]exam.AttemptAnswer, error)
}

// Tx is the view of the store available inside a submission transaction.
type Tx interface {
	GetAttempt(ctx context.Context, id string) (exam.Attempt, error)
	// Questions returns the current answer keys of an exam, ordered.
	Questions(ctx context.Context, examID string) ([]exam.Question, error)
	// MarkSubmitted writes the terminal fields only if the attempt is still
	// in progress; otherwise it returns exam.ErrConflict.
	MarkSubmitted(ctx context.Context, a exam.Attempt) error
	InsertAnswers(ctx context.Context, answers []exam.AttemptAnswer) error
	AppendEvent(ctx context.Context, e syncx.Event) error
}

// ExamReader is the exam catalog as seen by the lifecycle.
type ExamReader interface {
	GetExam(ctx context.Context, id string) (exam.Exam, error)
}

// ResultFilter selects submitted attempts. Empty fields match everything;
// Limit <= 0 means no limit.
type ResultFilter struct {
	AttemptID string
	StudentID string
	ExamID    string
	Limit     int
}

// Summary aggregates submitted attempts. Attempts with zero total marks are
// counted but left out of the percentages.
type Summary struct {
	Attempts        int        `json:"attempts"`
	AveragePercent  float64    `json:"average_percent"`
	BestPercent     float64    `json:"best_percent"`
	LastSubmittedAt *time.Time `json:"last_submitted_at,omitempty"`
}
