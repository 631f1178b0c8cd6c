package catalog

import (
	"fmt"
	"strings"
	"time"

	"github.com/mind-engage/mindengage-exams/internal/exam"
)

// QuestionInput is the authoring shape of a question.
type QuestionInput struct {
	ID            string           `json:"id,omitempty"`
	Prompt        string           `json:"prompt" validate:"required,min=5"`
	Type          exam.Kind        `json:"type" validate:"required,oneof=single_choice audio_single_choice matching"`
	AudioURL      string           `json:"audio_url,omitempty"`
	Options       []string         `json:"options,omitempty"`
	CorrectOption exam.Option      `json:"correct_option,omitempty"`
	MatchPairs    []exam.MatchPair `json:"match_pairs,omitempty"`
	Marks         int              `json:"marks" validate:"min=1,max=100"`
}

// ExamInput is the authoring shape of an exam.
type ExamInput struct {
	Title           string          `json:"title" validate:"required,min=3,max=150"`
	Description     string          `json:"description" validate:"max=1000"`
	DurationMinutes int             `json:"duration_minutes" validate:"min=5,max=300"`
	StartAt         *time.Time      `json:"start_at,omitempty"`
	EndAt           *time.Time      `json:"end_at,omitempty"`
	Published       bool            `json:"published"`
	Questions       []QuestionInput `json:"questions" validate:"required,min=1,dive"`
}

// ToExam validates the input and builds the exam. Question positions follow
// input order, starting at 1.
func (in ExamInput) ToExam(id string) (exam.Exam, error) {
	if err := exam.ValidateStruct(in); err != nil {
		return exam.Exam{}, err
	}
	if in.StartAt != nil && in.EndAt != nil && in.EndAt.Before(*in.StartAt) {
		return exam.Exam{}, exam.Errorf(exam.ErrBadRequest, "end_at is before start_at")
	}
	e := exam.Exam{
		ID:              id,
		Title:           strings.TrimSpace(in.Title),
		Description:     in.Description,
		DurationMinutes: in.DurationMinutes,
		Window:          exam.Window{StartAt: in.StartAt, EndAt: in.EndAt},
		Published:       in.Published,
		Questions:       make([]exam.Question, 0, len(in.Questions)),
	}
	for i, qi := range in.Questions {
		q, err := qi.toQuestion()
		if err != nil {
			return exam.Exam{}, exam.Errorf(exam.ErrBadRequest, "question %d: %v", i+1, err)
		}
		q.ExamID = id
		q.Position = i + 1
		e.Questions = append(e.Questions, q)
	}
	return e, nil
}

func (qi QuestionInput) toQuestion() (exam.Question, error) {
	q := exam.Question{
		ID:     qi.ID,
		Prompt: strings.TrimSpace(qi.Prompt),
		Marks:  qi.Marks,
	}
	switch qi.Type {
	case exam.KindSingleChoice, exam.KindAudioSingleChoice:
		if len(qi.Options) != 4 {
			return exam.Question{}, fmt.Errorf("choice questions need exactly 4 options, got %d", len(qi.Options))
		}
		choice := exam.SingleChoice{Correct: qi.CorrectOption}
		copy(choice.Options[:], qi.Options)
		if qi.Type == exam.KindAudioSingleChoice {
			q.Body = exam.AudioSingleChoice{SingleChoice: choice, AudioURL: strings.TrimSpace(qi.AudioURL)}
		} else {
			q.Body = choice
		}
	case exam.KindMatching:
		q.Body = exam.Matching{Pairs: qi.MatchPairs}
	default:
		return exam.Question{}, fmt.Errorf("unknown question type %q", qi.Type)
	}
	if err := q.Validate(); err != nil {
		return exam.Question{}, err
	}
	return q, nil
}

// AdminQuestion is the full authoring view of a question, answer key included.
type AdminQuestion struct {
	QuestionInput
	Position int `json:"position"`
}

func adminView(q exam.Question) AdminQuestion {
	aq := AdminQuestion{
		QuestionInput: QuestionInput{ID: q.ID, Prompt: q.Prompt, Type: q.Kind(), Marks: q.Marks},
		Position:      q.Position,
	}
	switch b := q.Body.(type) {
	case exam.SingleChoice:
		aq.Options = b.Options[:]
		aq.CorrectOption = b.Correct
	case exam.AudioSingleChoice:
		aq.Options = b.Options[:]
		aq.CorrectOption = b.Correct
		aq.AudioURL = b.AudioURL
	case exam.Matching:
		aq.MatchPairs = b.Pairs
	}
	return aq
}

// AdminExam is the authoring view of an exam.
type AdminExam struct {
	exam.Exam
	TotalMarks int             `json:"total_marks"`
	Questions  []AdminQuestion `json:"questions"`
}

func AdminView(e exam.Exam) AdminExam {
	out := AdminExam{Exam: e, TotalMarks: e.TotalMarks(), Questions: make([]AdminQuestion, 0, len(e.Questions))}
	for _, q := range e.Questions {
		out.Questions = append(out.Questions, adminView(q))
	}
	return out
}
