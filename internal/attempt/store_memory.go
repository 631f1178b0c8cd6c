package attempt

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mind-engage/mindengage-exams/internal/exam"
	syncx "github.com/mind-engage/mindengage-exams/internal/sync"
)

// MemoryStore is an in-process Store and ExamReader. Transactions are
// serialized and their writes are applied only on success.
type MemoryStore struct {
	mu       sync.Mutex
	exams    map[string]exam.Exam
	attempts map[string]exam.Attempt
	byPair   map[[2]string]string // (exam, student) -> attempt id
	answers  map[string][]exam.AttemptAnswer
	events   []syncx.Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		exams:    map[string]exam.Exam{},
		attempts: map[string]exam.Attempt{},
		byPair:   map[[2]string]string{},
		answers:  map[string][]exam.AttemptAnswer{},
	}
}

func (m *MemoryStore) PutExam(e exam.Exam) {
	m.mu.Lock()
	defer m.mu.Unlock()
	qs := make([]exam.Question, len(e.Questions))
	copy(qs, e.Questions)
	e.Questions = qs
	m.exams[e.ID] = e
}

func (m *MemoryStore) GetExam(_ context.Context, id string) (exam.Exam, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.exams[id]
	if !ok {
		return exam.Exam{}, exam.Errorf(exam.ErrNotFound, "exam %s", id)
	}
	return e, nil
}

func (m *MemoryStore) FindByExamStudent(_ context.Context, examID, studentID string) (exam.Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byPair[[2]string{examID, studentID}]
	if !ok {
		return exam.Attempt{}, exam.Errorf(exam.ErrNotFound, "no attempt for exam %s", examID)
	}
	return m.attempts[id], nil
}

func (m *MemoryStore) Create(_ context.Context, a exam.Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := [2]string{a.ExamID, a.StudentID}
	if _, ok := m.byPair[key]; ok {
		return exam.ErrAttemptExists
	}
	if _, ok := m.exams[a.ExamID]; !ok {
		return exam.Errorf(exam.ErrNotFound, "exam %s", a.ExamID)
	}
	m.byPair[key] = a.ID
	m.attempts[a.ID] = a
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (exam.Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[id]
	if !ok {
		return exam.Attempt{}, exam.Errorf(exam.ErrNotFound, "attempt %s", id)
	}
	return a, nil
}

func (m *MemoryStore) InTx(_ context.Context, fn func(Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &memTx{m: m, attempts: map[string]exam.Attempt{}}
	if err := fn(tx); err != nil {
		return err
	}
	for id, a := range tx.attempts {
		m.attempts[id] = a
	}
	for _, ans := range tx.answers {
		m.answers[ans.AttemptID] = append(m.answers[ans.AttemptID], ans)
	}
	m.events = append(m.events, tx.events...)
	return nil
}

func (m *MemoryStore) Results(_ context.Context, f ResultFilter) ([]exam.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []exam.Result{}
	for _, a := range m.attempts {
		if a.SubmittedAt == nil ||
			(f.AttemptID != "" && a.ID != f.AttemptID) ||
			(f.StudentID != "" && a.StudentID != f.StudentID) ||
			(f.ExamID != "" && a.ExamID != f.ExamID) {
			continue
		}
		r := a.Result()
		r.StudentID = a.StudentID
		r.ExamTitle = m.exams[a.ExamID].Title
		for _, ans := range m.answers[a.ID] {
			r.TotalQuestions++
			if ans.IsCorrect {
				r.CorrectAnswers++
			}
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.After(out[j].SubmittedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *MemoryStore) Summarize(_ context.Context, f ResultFilter) (Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var acc summaryAcc
	for _, a := range m.attempts {
		if a.SubmittedAt == nil ||
			(f.AttemptID != "" && a.ID != f.AttemptID) ||
			(f.StudentID != "" && a.StudentID != f.StudentID) ||
			(f.ExamID != "" && a.ExamID != f.ExamID) {
			continue
		}
		acc.add(a)
	}
	return acc.summary(), nil
}

func (m *MemoryStore) SummariesByStudent(_ context.Context) (map[string]Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	accs := map[string]*summaryAcc{}
	for _, a := range m.attempts {
		if a.SubmittedAt == nil {
			continue
		}
		acc, ok := accs[a.StudentID]
		if !ok {
			acc = &summaryAcc{}
			accs[a.StudentID] = acc
		}
		acc.add(a)
	}
	out := make(map[string]Summary, len(accs))
	for id, acc := range accs {
		out[id] = acc.summary()
	}
	return out, nil
}

// summaryAcc mirrors the SQL aggregate: zero-mark attempts count but carry
// no percentage.
type summaryAcc struct {
	n, scored int
	sum, best float64
	last      *time.Time
}

func (s *summaryAcc) add(a exam.Attempt) {
	s.n++
	if s.last == nil || a.SubmittedAt.After(*s.last) {
		t := *a.SubmittedAt
		s.last = &t
	}
	if a.TotalMarks <= 0 {
		return
	}
	p := float64(a.Score) * 100 / float64(a.TotalMarks)
	s.sum += p
	if s.scored == 0 || p > s.best {
		s.best = p
	}
	s.scored++
}

func (s *summaryAcc) summary() Summary {
	sm := Summary{Attempts: s.n, BestPercent: exam.Round2(s.best), LastSubmittedAt: s.last}
	if s.scored > 0 {
		sm.AveragePercent = exam.Round2(s.sum / float64(s.scored))
	}
	return sm
}

func (m *MemoryStore) Answers(_ context.Context, attemptID string) ([]exam.AttemptAnswer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]exam.AttemptAnswer, len(m.answers[attemptID]))
	copy(out, m.answers[attemptID])
	return out, nil
}

// Counts reports the number of stored attempts and answers.
func (m *MemoryStore) Counts() (attempts, answers int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, as := range m.answers {
		answers += len(as)
	}
	return len(m.attempts), answers
}

// Events returns a copy of every committed event.
func (m *MemoryStore) Events() []syncx.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]syncx.Event, len(m.events))
	copy(out, m.events)
	return out
}

// memTx runs with m.mu held by InTx.
type memTx struct {
	m        *MemoryStore
	attempts map[string]exam.Attempt
	answers  []exam.AttemptAnswer
	events   []syncx.Event
}

func (t *memTx) GetAttempt(_ context.Context, id string) (exam.Attempt, error) {
	if a, ok := t.attempts[id]; ok {
		return a, nil
	}
	a, ok := t.m.attempts[id]
	if !ok {
		return exam.Attempt{}, exam.Errorf(exam.ErrNotFound, "attempt %s", id)
	}
	return a, nil
}

func (t *memTx) Questions(_ context.Context, examID string) ([]exam.Question, error) {
	e, ok := t.m.exams[examID]
	if !ok {
		return nil, nil
	}
	qs := make([]exam.Question, len(e.Questions))
	copy(qs, e.Questions)
	sort.SliceStable(qs, func(i, j int) bool { return qs[i].Position < qs[j].Position })
	return qs, nil
}

func (t *memTx) MarkSubmitted(ctx context.Context, a exam.Attempt) error {
	cur, err := t.GetAttempt(ctx, a.ID)
	if err != nil {
		return err
	}
	if cur.SubmittedAt != nil {
		return exam.Errorf(exam.ErrConflict, "attempt %s already submitted", a.ID)
	}
	t.attempts[a.ID] = a
	return nil
}

func (t *memTx) InsertAnswers(_ context.Context, answers []exam.AttemptAnswer) error {
	t.answers = append(t.answers, answers...)
	return nil
}

func (t *memTx) AppendEvent(_ context.Context, e syncx.Event) error {
	t.events = append(t.events, e)
	return nil
}
