// Package grading scores submitted responses against question answer keys.
// Grading never fails: malformed or missing responses score zero.
package grading

import (
	"github.com/mind-engage/mindengage-exams/internal/exam"
)

// Grade scores one question. r may be nil when the student did not answer.
func Grade(q exam.Question, r *exam.Response) exam.Graded {
	g := exam.Graded{QuestionID: q.ID, MaxMarks: q.Marks}
	if r != nil {
		g.SelectedOption = r.SelectedOption
		g.MatchingPairs = r.MatchingPairs
	}

	switch b := q.Body.(type) {
	case exam.SingleChoice:
		g.Correct = choiceCorrect(b, r)
	case exam.AudioSingleChoice:
		g.Correct = choiceCorrect(b.SingleChoice, r)
	case exam.Matching:
		if r != nil {
			g.Correct = matchingCorrect(len(b.Pairs), r.MatchingPairs)
		}
	default:
		// unknown body: nothing to compare against
	}

	if g.Correct {
		g.MarksAwarded = q.Marks
	}
	return g
}

// GradeAll grades every question in order. Responses are looked up by
// question id; the first response for an id wins.
func GradeAll(questions []exam.Question, responses []exam.Response) []exam.Graded {
	byID := make(map[string]*exam.Response, len(responses))
	for i := range responses {
		id := responses[i].QuestionID
		if _, dup := byID[id]; dup {
			continue
		}
		byID[id] = &responses[i]
	}
	out := make([]exam.Graded, 0, len(questions))
	for _, q := range questions {
		out = append(out, Grade(q, byID[q.ID]))
	}
	return out
}

func choiceCorrect(b exam.SingleChoice, r *exam.Response) bool {
	if r == nil || r.SelectedOption == nil {
		return false
	}
	return b.Correct.Valid() && *r.SelectedOption == b.Correct
}
