package attempt

import (
	"time"

	"github.com/mind-engage/mindengage-exams/internal/exam"
)

// Aggregate applies graded answers to an in-progress attempt: it performs the
// submitted transition on a and returns the result plus the rows to persist.
func Aggregate(a *exam.Attempt, graded []exam.Graded, now time.Time) (exam.Result, []exam.AttemptAnswer, error) {
	var (
		score, total, correct int
		answers               = make([]exam.AttemptAnswer, 0, len(graded))
	)
	for _, g := range graded {
		score += g.MarksAwarded
		total += g.MaxMarks
		if g.Correct {
			correct++
		}
		answers = append(answers, exam.AttemptAnswer{
			AttemptID:      a.ID,
			QuestionID:     g.QuestionID,
			SelectedOption: g.SelectedOption,
			MatchingPairs:  g.MatchingPairs,
			IsCorrect:      g.Correct,
			MarksAwarded:   g.MarksAwarded,
		})
	}
	if err := a.Submit(now, score, total); err != nil {
		return exam.Result{}, nil, err
	}
	r := a.Result()
	r.StudentID = a.StudentID
	r.CorrectAnswers = correct
	r.TotalQuestions = len(graded)
	return r, answers, nil
}
