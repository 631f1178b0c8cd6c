package exam

import (
	"encoding/json"
	"fmt"
	"strings"
)

// QuestionRow is the flat column shape questions are stored in. Columns that
// do not belong to the row's type hold empty placeholders.
type QuestionRow struct {
	ID             string
	ExamID         string
	Prompt         string
	Type           string
	AudioURL       string
	MatchPairsJSON string
	Options        [4]string
	CorrectOption  string
	Marks          int
	Position       int
}

func (q Question) Row() (QuestionRow, error) {
	row := QuestionRow{
		ID:       q.ID,
		ExamID:   q.ExamID,
		Prompt:   strings.TrimSpace(q.Prompt),
		Type:     string(q.Kind()),
		Marks:    q.Marks,
		Position: q.Position,
	}
	switch b := q.Body.(type) {
	case SingleChoice:
		row.Options = b.Options
		row.CorrectOption = string(b.Correct)
	case AudioSingleChoice:
		row.Options = b.Options
		row.CorrectOption = string(b.Correct)
		row.AudioURL = b.AudioURL
	case Matching:
		buf, err := json.Marshal(b.Pairs)
		if err != nil {
			return QuestionRow{}, err
		}
		row.MatchPairsJSON = string(buf)
	default:
		return QuestionRow{}, fmt.Errorf("question %s: unsupported body %T", q.ID, q.Body)
	}
	return row, nil
}

// Question decodes a stored row. Only the columns relevant to the row's type
// are read.
func (r QuestionRow) Question() (Question, error) {
	q := Question{
		ID:       r.ID,
		ExamID:   r.ExamID,
		Prompt:   r.Prompt,
		Marks:    r.Marks,
		Position: r.Position,
	}
	choice := SingleChoice{Options: r.Options, Correct: Option(r.CorrectOption)}
	switch Kind(r.Type) {
	case KindSingleChoice:
		q.Body = choice
	case KindAudioSingleChoice:
		q.Body = AudioSingleChoice{SingleChoice: choice, AudioURL: r.AudioURL}
	case KindMatching:
		var pairs []MatchPair
		if r.MatchPairsJSON != "" {
			if err := json.Unmarshal([]byte(r.MatchPairsJSON), &pairs); err != nil {
				return Question{}, fmt.Errorf("question %s: match pairs: %w", r.ID, err)
			}
		}
		q.Body = Matching{Pairs: pairs}
	default:
		return Question{}, fmt.Errorf("question %s: unknown type %q", r.ID, r.Type)
	}
	return q, nil
}
