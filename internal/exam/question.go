package exam

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the persisted type tag of a question.
type Kind string

const (
	KindSingleChoice      Kind = "single_choice"
	KindAudioSingleChoice Kind = "audio_single_choice"
	KindMatching          Kind = "matching"
)

// Option is a choice letter, A through D.
type Option string

const (
	OptionA Option = "A"
	OptionB Option = "B"
	OptionC Option = "C"
	OptionD Option = "D"
)

var optionLetters = [4]Option{OptionA, OptionB, OptionC, OptionD}

func (o Option) Valid() bool {
	switch o {
	case OptionA, OptionB, OptionC, OptionD:
		return true
	}
	return false
}

// Body is the type-specific part of a question, including its answer key.
// The set of implementations is closed: SingleChoice, AudioSingleChoice, Matching.
type Body interface {
	Kind() Kind
	validate() error
}

type SingleChoice struct {
	Options [4]string
	Correct Option
}

func (SingleChoice) Kind() Kind { return KindSingleChoice }

func (b SingleChoice) validate() error {
	for i, o := range b.Options {
		if strings.TrimSpace(o) == "" {
			return fmt.Errorf("option %s is empty", optionLetters[i])
		}
	}
	if !b.Correct.Valid() {
		return fmt.Errorf("correct option %q must be one of A, B, C, D", b.Correct)
	}
	return nil
}

// AudioSingleChoice is a single-choice question cued by an audio clip.
type AudioSingleChoice struct {
	SingleChoice
	AudioURL string
}

func (AudioSingleChoice) Kind() Kind { return KindAudioSingleChoice }

func (b AudioSingleChoice) validate() error {
	if strings.TrimSpace(b.AudioURL) == "" {
		return errors.New("audio url is required")
	}
	return b.SingleChoice.validate()
}

type MatchPair struct {
	Left  string `json:"left"`
	Right string `json:"right"`
}

// Matching pairs Left[i] with Right[i]; the identity mapping is the only
// correct arrangement.
type Matching struct {
	Pairs []MatchPair
}

func (Matching) Kind() Kind { return KindMatching }

func (b Matching) validate() error {
	if len(b.Pairs) < 2 {
		return errors.New("matching questions need at least 2 pairs")
	}
	for i, p := range b.Pairs {
		if strings.TrimSpace(p.Left) == "" || strings.TrimSpace(p.Right) == "" {
			return fmt.Errorf("pair %d has an empty side", i)
		}
	}
	return nil
}

type Question struct {
	ID       string
	ExamID   string
	Prompt   string
	Marks    int
	Position int
	Body     Body
}

func (q Question) Kind() Kind {
	if q.Body == nil {
		return ""
	}
	return q.Body.Kind()
}

// Validate checks the authoring invariants of a single question.
func (q Question) Validate() error {
	if strings.TrimSpace(q.Prompt) == "" {
		return errors.New("prompt is required")
	}
	if q.Marks < 1 {
		return errors.New("marks must be positive")
	}
	if q.Body == nil {
		return errors.New("question body is required")
	}
	return q.Body.validate()
}

// PublicQuestion is what a student sees: no correct option and no canonical
// matching order.
type PublicQuestion struct {
	ID       string   `json:"id"`
	Prompt   string   `json:"prompt"`
	Type     Kind     `json:"type"`
	Marks    int      `json:"marks"`
	Position int      `json:"position"`
	Options  []string `json:"options,omitempty"`
	AudioURL string   `json:"audio_url,omitempty"`
	Left     []string `json:"left,omitempty"`
	Right    []string `json:"right,omitempty"`
}

// Public strips the answer key. Matching right-hand items are listed in the
// display order for attemptID; see RightOrder.
func (q Question) Public(attemptID string) PublicQuestion {
	pq := PublicQuestion{
		ID:       q.ID,
		Prompt:   q.Prompt,
		Type:     q.Kind(),
		Marks:    q.Marks,
		Position: q.Position,
	}
	switch b := q.Body.(type) {
	case SingleChoice:
		pq.Options = b.Options[:]
	case AudioSingleChoice:
		pq.Options = b.Options[:]
		pq.AudioURL = b.AudioURL
	case Matching:
		order := RightOrder(attemptID, q.ID, len(b.Pairs))
		pq.Left = make([]string, len(b.Pairs))
		pq.Right = make([]string, len(b.Pairs))
		for i, p := range b.Pairs {
			pq.Left[i] = p.Left
		}
		for display, canonical := range order {
			pq.Right[display] = b.Pairs[canonical].Right
		}
	}
	return pq
}
