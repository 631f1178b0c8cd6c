package exam

import (
	"math"
	"time"
)

// Window is the activity interval of an exam. A nil bound is unbounded.
type Window struct {
	StartAt *time.Time `json:"start_at,omitempty"`
	EndAt   *time.Time `json:"end_at,omitempty"`
}

// Contains reports whether now lies within the window, bounds inclusive.
func (w Window) Contains(now time.Time) bool {
	if w.StartAt != nil && now.Before(*w.StartAt) {
		return false
	}
	if w.EndAt != nil && now.After(*w.EndAt) {
		return false
	}
	return true
}

type Exam struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	DurationMinutes int        `json:"duration_minutes"`
	Window          Window     `json:"window"`
	Published       bool       `json:"published"`
	Questions       []Question `json:"-"`

	CreatedAt int64 `json:"created_at,omitempty"`
}

// Attemptable reports whether students may start the exam at now.
func (e Exam) Attemptable(now time.Time) bool {
	return e.Published && e.Window.Contains(now)
}

func (e Exam) Duration() time.Duration {
	return time.Duration(e.DurationMinutes) * time.Minute
}

func (e Exam) TotalMarks() int {
	return TotalMarks(e.Questions)
}

func TotalMarks(qs []Question) int {
	total := 0
	for _, q := range qs {
		total += q.Marks
	}
	return total
}

// Status is derived from SubmittedAt; Submitted is terminal.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusSubmitted  Status = "submitted"
)

type Attempt struct {
	ID               string     `json:"id"`
	ExamID           string     `json:"exam_id"`
	StudentID        string     `json:"student_id"`
	StartedAt        time.Time  `json:"started_at"`
	SubmittedAt      *time.Time `json:"submitted_at,omitempty"`
	Score            int        `json:"score"`
	TotalMarks       int        `json:"total_marks"`
	TimeTakenSeconds int64      `json:"time_taken_seconds"`
}

func (a Attempt) Status() Status {
	if a.SubmittedAt != nil {
		return StatusSubmitted
	}
	return StatusInProgress
}

// Submit performs the single in_progress -> submitted transition.
func (a *Attempt) Submit(at time.Time, score, totalMarks int) error {
	if a.Status() == StatusSubmitted {
		return Errorf(ErrConflict, "attempt %s already submitted", a.ID)
	}
	elapsed := int64(math.Floor(at.Sub(a.StartedAt).Seconds()))
	if elapsed < 0 {
		elapsed = 0
	}
	a.SubmittedAt = &at
	a.Score = score
	a.TotalMarks = totalMarks
	a.TimeTakenSeconds = elapsed
	return nil
}

// Result returns the summary of a submitted attempt. Counts that are only
// known at grading time are left zero.
func (a Attempt) Result() Result {
	r := Result{
		AttemptID:        a.ID,
		ExamID:           a.ExamID,
		Score:            a.Score,
		TotalMarks:       a.TotalMarks,
		Percentage:       Percentage(a.Score, a.TotalMarks),
		TimeTakenSeconds: a.TimeTakenSeconds,
	}
	if a.SubmittedAt != nil {
		r.SubmittedAt = *a.SubmittedAt
	}
	return r
}

// PairChoice is one submitted (left, right) pairing of a matching question.
type PairChoice struct {
	LeftIndex  int `json:"left_index"`
	RightIndex int `json:"right_index"`
}

// Response is a student's answer to one question.
type Response struct {
	QuestionID     string       `json:"question_id" validate:"required"`
	SelectedOption *Option      `json:"selected_option,omitempty"`
	MatchingPairs  []PairChoice `json:"matching_pairs,omitempty"`
}

// Graded is the scoring outcome of one question.
type Graded struct {
	QuestionID     string
	SelectedOption *Option
	MatchingPairs  []PairChoice
	Correct        bool
	MarksAwarded   int
	MaxMarks       int
}

type AttemptAnswer struct {
	AttemptID      string       `json:"attempt_id"`
	QuestionID     string       `json:"question_id"`
	SelectedOption *Option      `json:"selected_option,omitempty"`
	MatchingPairs  []PairChoice `json:"matching_pairs,omitempty"`
	IsCorrect      bool         `json:"is_correct"`
	MarksAwarded   int          `json:"marks_awarded"`
}

type Result struct {
	AttemptID        string    `json:"attempt_id"`
	ExamID           string    `json:"exam_id"`
	ExamTitle        string    `json:"exam_title,omitempty"`
	Score            int       `json:"score"`
	TotalMarks       int       `json:"total_marks"`
	Percentage       float64   `json:"percentage"`
	CorrectAnswers   int       `json:"correct_answers"`
	TotalQuestions   int       `json:"total_questions"`
	SubmittedAt      time.Time `json:"submitted_at"`
	TimeTakenSeconds int64     `json:"time_taken_seconds"`
	StudentID        string    `json:"student_id,omitempty"`
}

// Percentage is score/total*100 rounded to 2 decimals; 0 when total is 0.
func Percentage(score, total int) float64 {
	if total <= 0 {
		return 0
	}
	return Round2(float64(score) / float64(total) * 100)
}

func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
