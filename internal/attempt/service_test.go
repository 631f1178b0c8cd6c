package attempt_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mind-engage/mindengage-exams/internal/attempt"
	"github.com/mind-engage/mindengage-exams/internal/catalog"
	"github.com/mind-engage/mindengage-exams/internal/db"
	"github.com/mind-engage/mindengage-exams/internal/exam"
	syncx "github.com/mind-engage/mindengage-exams/internal/sync"
)

/* ---------------- backends ---------------- */

type backend struct {
	store attempt.Store
	exams attempt.ExamReader
	put   func(t *testing.T, e exam.Exam) exam.Exam
	// rows counts stored attempts and answers.
	rows func(t *testing.T) (attempts, answers int)
}

func memoryBackend(t *testing.T) backend {
	m := attempt.NewMemoryStore()
	return backend{
		store: m,
		exams: m,
		put: func(t *testing.T, e exam.Exam) exam.Exam {
			m.PutExam(e)
			return e
		},
		rows: func(t *testing.T) (int, int) {
			return m.Counts()
		},
	}
}

func sqliteBackend(t *testing.T) backend {
	t.Helper()
	ctx := context.Background()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	sqldb, err := db.Open(ctx, db.DriverSQLite, fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", name))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = sqldb.Close() })
	cat := catalog.NewSQLStore(sqldb, time.Now)
	return backend{
		store: attempt.NewSQLStore(sqldb, "sqlite"),
		exams: cat,
		put: func(t *testing.T, e exam.Exam) exam.Exam {
			t.Helper()
			out, err := cat.PutExam(ctx, e, "admin-1")
			if err != nil {
				t.Fatalf("put exam: %v", err)
			}
			return out
		},
		rows: func(t *testing.T) (int, int) {
			t.Helper()
			var a, n int
			if err := sqldb.QueryRowContext(ctx, `SELECT COUNT(*) FROM attempts`).Scan(&a); err != nil {
				t.Fatal(err)
			}
			if err := sqldb.QueryRowContext(ctx, `SELECT COUNT(*) FROM attempt_answers`).Scan(&n); err != nil {
				t.Fatal(err)
			}
			return a, n
		},
	}
}

func eachBackend(t *testing.T, fn func(t *testing.T, b backend)) {
	t.Run("memory", func(t *testing.T) { fn(t, memoryBackend(t)) })
	t.Run("sqlite", func(t *testing.T) { fn(t, sqliteBackend(t)) })
}

/* ---------------- fixtures ---------------- */

func opt(o exam.Option) *exam.Option { return &o }

func choice(id string, key exam.Option, marks int) exam.Question {
	return exam.Question{
		ID:     id,
		Prompt: "Pick the right answer for " + id,
		Marks:  marks,
		Body:   exam.SingleChoice{Options: [4]string{"one", "two", "three", "four"}, Correct: key},
	}
}

func matching(id string, n, marks int) exam.Question {
	pairs := make([]exam.MatchPair, n)
	for i := range pairs {
		pairs[i] = exam.MatchPair{Left: fmt.Sprintf("L%d", i), Right: fmt.Sprintf("R%d", i)}
	}
	return exam.Question{ID: id, Prompt: "Match the columns", Marks: marks, Body: exam.Matching{Pairs: pairs}}
}

func publishedExam(id string, qs ...exam.Question) exam.Exam {
	for i := range qs {
		qs[i].ExamID = id
		qs[i].Position = i + 1
	}
	return exam.Exam{ID: id, Title: "Exam " + id, DurationMinutes: 30, Published: true, Questions: qs}
}

// displayIdentity returns the pairs a student sends to match left i with
// canonical right i, given the attempt's shuffled right column.
func displayIdentity(attemptID, questionID string, n int) []exam.PairChoice {
	order := exam.RightOrder(attemptID, questionID, n)
	out := make([]exam.PairChoice, n)
	for display, canonical := range order {
		out[canonical] = exam.PairChoice{LeftIndex: canonical, RightIndex: display}
	}
	return out
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newService(b backend, c *clock) *attempt.Service {
	return attempt.NewService(b.store, b.exams, nil).WithClock(c.Now)
}

/* ---------------- tests ---------------- */

func TestSubmit_TwoChoiceQuestions(t *testing.T) {
	eachBackend(t, func(t *testing.T, b backend) {
		ctx := context.Background()
		c := &clock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
		b.put(t, publishedExam("ex-a", choice("q1", exam.OptionB, 1), choice("q2", exam.OptionD, 1)))
		svc := newService(b, c)

		st, err := svc.Start(ctx, "ex-a", "stu-1")
		if err != nil {
			t.Fatalf("start: %v", err)
		}
		if st.Exam.TotalMarks != 2 || len(st.Exam.Questions) != 2 {
			t.Fatalf("start view = %+v", st.Exam)
		}

		c.Advance(95*time.Second + 600*time.Millisecond)
		res, err := svc.Submit(ctx, st.AttemptID, "stu-1", []exam.Response{
			{QuestionID: "q1", SelectedOption: opt(exam.OptionB)},
			{QuestionID: "q2", SelectedOption: opt(exam.OptionA)},
		})
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
		if res.Score != 1 || res.TotalMarks != 2 || res.CorrectAnswers != 1 || res.TotalQuestions != 2 {
			t.Fatalf("result = %+v", res)
		}
		if res.Percentage != 50.00 {
			t.Fatalf("percentage = %v, want 50", res.Percentage)
		}
		if res.TimeTakenSeconds != 95 {
			t.Fatalf("time taken = %d, want 95", res.TimeTakenSeconds)
		}

		stored, err := svc.Result(ctx, st.AttemptID, "stu-1", false)
		if err != nil {
			t.Fatalf("result: %v", err)
		}
		if stored.Score != 1 || stored.CorrectAnswers != 1 || stored.Percentage != 50 {
			t.Fatalf("stored result = %+v", stored)
		}
	})
}

func TestSubmit_MatchingIdentity(t *testing.T) {
	eachBackend(t, func(t *testing.T, b backend) {
		ctx := context.Background()
		c := &clock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
		b.put(t, publishedExam("ex-b", matching("m1", 3, 5)))
		svc := newService(b, c)

		st, err := svc.Start(ctx, "ex-b", "stu-1")
		if err != nil {
			t.Fatalf("start: %v", err)
		}
		pq := st.Exam.Questions[0]
		if len(pq.Left) != 3 || len(pq.Right) != 3 {
			t.Fatalf("public matching = %+v", pq)
		}
		order := exam.RightOrder(st.AttemptID, "m1", 3)
		for display, canonical := range order {
			if pq.Right[display] != fmt.Sprintf("R%d", canonical) {
				t.Fatalf("right column not in display order: %v (order %v)", pq.Right, order)
			}
		}

		res, err := svc.Submit(ctx, st.AttemptID, "stu-1", []exam.Response{
			{QuestionID: "m1", MatchingPairs: displayIdentity(st.AttemptID, "m1", 3)},
		})
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
		if res.Score != 5 || res.Percentage != 100 {
			t.Fatalf("result = %+v", res)
		}
	})
}

func TestSubmit_MatchingSwappedIsWrong(t *testing.T) {
	eachBackend(t, func(t *testing.T, b backend) {
		ctx := context.Background()
		c := &clock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
		b.put(t, publishedExam("ex-b2", matching("m1", 3, 5)))
		svc := newService(b, c)

		st, err := svc.Start(ctx, "ex-b2", "stu-1")
		if err != nil {
			t.Fatalf("start: %v", err)
		}
		pairs := displayIdentity(st.AttemptID, "m1", 3)
		pairs[0].RightIndex, pairs[1].RightIndex = pairs[1].RightIndex, pairs[0].RightIndex

		res, err := svc.Submit(ctx, st.AttemptID, "stu-1", []exam.Response{{QuestionID: "m1", MatchingPairs: pairs}})
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
		if res.Score != 0 || res.CorrectAnswers != 0 || res.Percentage != 0 {
			t.Fatalf("result = %+v", res)
		}
	})
}

func TestStart_ExamNotActive(t *testing.T) {
	eachBackend(t, func(t *testing.T, b backend) {
		ctx := context.Background()
		now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
		c := &clock{t: now}
		past := now.Add(-time.Hour)
		future := now.Add(time.Hour)

		ended := publishedExam("ex-ended", choice("q1", exam.OptionA, 1))
		ended.Window.EndAt = &past
		b.put(t, ended)

		notYet := publishedExam("ex-later", choice("q2", exam.OptionA, 1))
		notYet.Window.StartAt = &future
		b.put(t, notYet)

		draft := publishedExam("ex-draft", choice("q3", exam.OptionA, 1))
		draft.Published = false
		b.put(t, draft)

		svc := newService(b, c)
		for _, id := range []string{"ex-ended", "ex-later", "ex-draft", "ex-missing"} {
			if _, err := svc.Start(ctx, id, "stu-1"); !errors.Is(err, exam.ErrNotFound) {
				t.Fatalf("start %s: err = %v, want not found", id, err)
			}
		}
		if attempts, _ := b.rows(t); attempts != 0 {
			t.Fatalf("attempts = %d, want 0", attempts)
		}
	})
}

func TestStart_WindowBoundsInclusive(t *testing.T) {
	eachBackend(t, func(t *testing.T, b backend) {
		ctx := context.Background()
		now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
		e := publishedExam("ex-edge", choice("q1", exam.OptionA, 1))
		e.Window = exam.Window{StartAt: &now, EndAt: &now}
		b.put(t, e)

		if _, err := newService(b, &clock{t: now}).Start(ctx, "ex-edge", "stu-1"); err != nil {
			t.Fatalf("start at window edge: %v", err)
		}
	})
}

func TestSubmit_OtherStudentsAttempt(t *testing.T) {
	eachBackend(t, func(t *testing.T, b backend) {
		ctx := context.Background()
		c := &clock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
		b.put(t, publishedExam("ex-d", choice("q1", exam.OptionA, 2)))
		svc := newService(b, c)

		st, err := svc.Start(ctx, "ex-d", "stu-b")
		if err != nil {
			t.Fatalf("start: %v", err)
		}
		_, err = svc.Submit(ctx, st.AttemptID, "stu-a", []exam.Response{{QuestionID: "q1", SelectedOption: opt(exam.OptionA)}})
		if !errors.Is(err, exam.ErrForbidden) {
			t.Fatalf("err = %v, want forbidden", err)
		}
		a, err := b.store.Get(ctx, st.AttemptID)
		if err != nil {
			t.Fatal(err)
		}
		if a.Status() != exam.StatusInProgress {
			t.Fatalf("status = %s, want in_progress", a.Status())
		}
		if _, answers := b.rows(t); answers != 0 {
			t.Fatalf("answers = %d, want 0", answers)
		}
		if _, err := svc.Result(ctx, st.AttemptID, "stu-a", false); !errors.Is(err, exam.ErrForbidden) {
			t.Fatalf("result by other student: %v", err)
		}
	})
}

func TestSubmit_UnknownAttempt(t *testing.T) {
	eachBackend(t, func(t *testing.T, b backend) {
		svc := newService(b, &clock{t: time.Now()})
		if _, err := svc.Submit(context.Background(), "nope", "stu-1", nil); !errors.Is(err, exam.ErrNotFound) {
			t.Fatalf("err = %v, want not found", err)
		}
	})
}

func TestStart_ResumeIsIdempotent(t *testing.T) {
	eachBackend(t, func(t *testing.T, b backend) {
		ctx := context.Background()
		c := &clock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
		b.put(t, publishedExam("ex-r", choice("q1", exam.OptionA, 1), matching("m1", 4, 2)))
		svc := newService(b, c)

		first, err := svc.Start(ctx, "ex-r", "stu-1")
		if err != nil {
			t.Fatal(err)
		}
		c.Advance(10 * time.Minute)
		second, err := svc.Start(ctx, "ex-r", "stu-1")
		if err != nil {
			t.Fatal(err)
		}
		if second.AttemptID != first.AttemptID || !second.Resumed || first.Resumed {
			t.Fatalf("first=%s resumed=%v second=%s resumed=%v", first.AttemptID, first.Resumed, second.AttemptID, second.Resumed)
		}
		if !second.StartedAt.Equal(first.StartedAt) {
			t.Fatalf("timer reset: %v -> %v", first.StartedAt, second.StartedAt)
		}
		if !second.Deadline.Equal(first.StartedAt.Add(30 * time.Minute)) {
			t.Fatalf("deadline = %v", second.Deadline)
		}
		if fmt.Sprint(first.Exam.Questions[1].Right) != fmt.Sprint(second.Exam.Questions[1].Right) {
			t.Fatalf("matching layout changed on resume")
		}
	})
}

func TestStart_ConcurrentCreatesOneAttempt(t *testing.T) {
	eachBackend(t, func(t *testing.T, b backend) {
		ctx := context.Background()
		c := &clock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
		b.put(t, publishedExam("ex-c", choice("q1", exam.OptionA, 1)))
		svc := newService(b, c)

		const n = 8
		var (
			wg   sync.WaitGroup
			ids  = make([]string, n)
			errs = make([]error, n)
		)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				st, err := svc.Start(ctx, "ex-c", "stu-1")
				ids[i], errs[i] = st.AttemptID, err
			}(i)
		}
		wg.Wait()

		for i := 0; i < n; i++ {
			if errs[i] != nil {
				t.Fatalf("start %d: %v", i, errs[i])
			}
			if ids[i] != ids[0] {
				t.Fatalf("attempt ids differ: %q vs %q", ids[i], ids[0])
			}
		}
		if attempts, _ := b.rows(t); attempts != 1 {
			t.Fatalf("attempts = %d, want 1", attempts)
		}
	})
}

func TestSubmit_OnlyOnce(t *testing.T) {
	eachBackend(t, func(t *testing.T, b backend) {
		ctx := context.Background()
		c := &clock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
		b.put(t, publishedExam("ex-once", choice("q1", exam.OptionA, 1), choice("q2", exam.OptionB, 1)))
		svc := newService(b, c)

		st, err := svc.Start(ctx, "ex-once", "stu-1")
		if err != nil {
			t.Fatal(err)
		}
		answers := []exam.Response{{QuestionID: "q1", SelectedOption: opt(exam.OptionA)}}

		const n = 6
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			ok        int
			conflicts int
		)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := svc.Submit(ctx, st.AttemptID, "stu-1", answers)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					ok++
				case errors.Is(err, exam.ErrConflict):
					conflicts++
				default:
					t.Errorf("submit: %v", err)
				}
			}()
		}
		wg.Wait()
		if ok != 1 || conflicts != n-1 {
			t.Fatalf("ok=%d conflicts=%d", ok, conflicts)
		}
		if _, rows := b.rows(t); rows != 2 {
			t.Fatalf("answers = %d, want 2", rows)
		}

		// starting again after submission reports the stored result
		_, err = svc.Start(ctx, "ex-once", "stu-1")
		var ce *exam.ConflictError
		if !errors.As(err, &ce) {
			t.Fatalf("start after submit: %v", err)
		}
		if ce.Result.AttemptID != st.AttemptID || ce.Result.Score != 1 || ce.Result.Percentage != 50 {
			t.Fatalf("conflict result = %+v", ce.Result)
		}
	})
}

func TestSubmit_EmptyExam(t *testing.T) {
	ctx := context.Background()
	m := attempt.NewMemoryStore()
	m.PutExam(exam.Exam{ID: "ex-empty", Title: "Empty", DurationMinutes: 10, Published: true})
	svc := attempt.NewService(m, m, nil)

	st, err := svc.Start(ctx, "ex-empty", "stu-1")
	if err != nil {
		t.Fatal(err)
	}
	if st.Exam.TotalMarks != 0 {
		t.Fatalf("total = %d", st.Exam.TotalMarks)
	}
	if _, err := svc.Submit(ctx, st.AttemptID, "stu-1", nil); !errors.Is(err, exam.ErrBadRequest) {
		t.Fatalf("err = %v, want bad request", err)
	}
}

func TestSubmit_GarbageAnswersScoreZero(t *testing.T) {
	eachBackend(t, func(t *testing.T, b backend) {
		ctx := context.Background()
		c := &clock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
		b.put(t, publishedExam("ex-g", choice("q1", exam.OptionA, 1), matching("m1", 2, 3)))
		svc := newService(b, c)

		st, err := svc.Start(ctx, "ex-g", "stu-1")
		if err != nil {
			t.Fatal(err)
		}
		res, err := svc.Submit(ctx, st.AttemptID, "stu-1", []exam.Response{
			{QuestionID: "q1", SelectedOption: opt("Z")},
			{QuestionID: "m1", MatchingPairs: []exam.PairChoice{{LeftIndex: 0, RightIndex: 9}, {LeftIndex: -1, RightIndex: 0}}},
			{QuestionID: "not-a-question", SelectedOption: opt(exam.OptionA)},
		})
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
		if res.Score != 0 || res.TotalMarks != 4 || res.TotalQuestions != 2 {
			t.Fatalf("result = %+v", res)
		}
	})
}

func TestSubmit_LateIsAccepted(t *testing.T) {
	eachBackend(t, func(t *testing.T, b backend) {
		ctx := context.Background()
		c := &clock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
		b.put(t, publishedExam("ex-late", choice("q1", exam.OptionA, 1)))
		svc := newService(b, c)

		st, err := svc.Start(ctx, "ex-late", "stu-1")
		if err != nil {
			t.Fatal(err)
		}
		c.Advance(3 * time.Hour)
		res, err := svc.Submit(ctx, st.AttemptID, "stu-1", []exam.Response{{QuestionID: "q1", SelectedOption: opt(exam.OptionA)}})
		if err != nil {
			t.Fatalf("late submit: %v", err)
		}
		if res.TimeTakenSeconds != int64((3 * time.Hour).Seconds()) {
			t.Fatalf("time taken = %d", res.TimeTakenSeconds)
		}
	})
}

func TestSubmit_ClockSkewClampsElapsed(t *testing.T) {
	ctx := context.Background()
	c := &clock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	m := attempt.NewMemoryStore()
	m.PutExam(publishedExam("ex-skew", choice("q1", exam.OptionA, 1)))
	svc := attempt.NewService(m, m, nil).WithClock(c.Now)

	st, err := svc.Start(ctx, "ex-skew", "stu-1")
	if err != nil {
		t.Fatal(err)
	}
	c.Advance(-5 * time.Second)
	res, err := svc.Submit(ctx, st.AttemptID, "stu-1", nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.TimeTakenSeconds != 0 {
		t.Fatalf("time taken = %d, want 0", res.TimeTakenSeconds)
	}
}

/* ---------------- atomicity ---------------- */

// failingStore wraps a Store so that one Tx method fails.
type failingStore struct {
	attempt.Store
	failOn string
}

func (f failingStore) InTx(ctx context.Context, fn func(attempt.Tx) error) error {
	return f.Store.InTx(ctx, func(tx attempt.Tx) error {
		return fn(failingTx{Tx: tx, failOn: f.failOn})
	})
}

type failingTx struct {
	attempt.Tx
	failOn string
}

var errInjected = errors.New("injected storage failure")

func (f failingTx) InsertAnswers(ctx context.Context, answers []exam.AttemptAnswer) error {
	if f.failOn == "answers" {
		// write half of them first so a rollback has something to undo
		_ = f.Tx.InsertAnswers(ctx, answers[:len(answers)/2])
		return errInjected
	}
	return f.Tx.InsertAnswers(ctx, answers)
}

func (f failingTx) AppendEvent(ctx context.Context, e syncx.Event) error {
	if f.failOn == "event" {
		return errInjected
	}
	return f.Tx.AppendEvent(ctx, e)
}

func TestSubmit_StorageFailureLeavesAttemptInProgress(t *testing.T) {
	for _, failOn := range []string{"answers", "event"} {
		t.Run(failOn, func(t *testing.T) {
			eachBackend(t, func(t *testing.T, b backend) {
				ctx := context.Background()
				c := &clock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
				b.put(t, publishedExam("ex-f", choice("q1", exam.OptionA, 1), choice("q2", exam.OptionB, 1)))

				broken := attempt.NewService(failingStore{Store: b.store, failOn: failOn}, b.exams, nil).WithClock(c.Now)
				st, err := broken.Start(ctx, "ex-f", "stu-1")
				if err != nil {
					t.Fatal(err)
				}
				answers := []exam.Response{{QuestionID: "q1", SelectedOption: opt(exam.OptionA)}}
				_, err = broken.Submit(ctx, st.AttemptID, "stu-1", answers)
				if !errors.Is(err, errInjected) {
					t.Fatalf("err = %v, want injected", err)
				}
				for _, kind := range []error{exam.ErrNotFound, exam.ErrForbidden, exam.ErrConflict, exam.ErrBadRequest} {
					if errors.Is(err, kind) {
						t.Fatalf("storage failure reported as %v", kind)
					}
				}

				a, err := b.store.Get(ctx, st.AttemptID)
				if err != nil {
					t.Fatal(err)
				}
				if a.Status() != exam.StatusInProgress {
					t.Fatalf("status = %s after failed submit", a.Status())
				}
				if _, rows := b.rows(t); rows != 0 {
					t.Fatalf("answers = %d after failed submit", rows)
				}

				// the attempt can still be submitted once storage recovers
				res, err := newService(b, c).Submit(ctx, st.AttemptID, "stu-1", answers)
				if err != nil {
					t.Fatalf("retry: %v", err)
				}
				if res.Score != 1 {
					t.Fatalf("score = %d", res.Score)
				}
			})
		})
	}
}

/* ---------------- reporting ---------------- */

func TestDashboardAndExamResults(t *testing.T) {
	eachBackend(t, func(t *testing.T, b backend) {
		ctx := context.Background()
		c := &clock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
		svc := newService(b, c)

		// three exams, scored 100%, 0%, 50% in that order
		keys := []exam.Option{exam.OptionA, exam.OptionB}
		picks := [][]exam.Option{{exam.OptionA, exam.OptionB}, {exam.OptionC, exam.OptionC}, {exam.OptionA, exam.OptionC}}
		for i, p := range picks {
			id := fmt.Sprintf("ex-%d", i)
			b.put(t, publishedExam(id, choice(id+"-q1", keys[0], 1), choice(id+"-q2", keys[1], 1)))
			st, err := svc.Start(ctx, id, "stu-1")
			if err != nil {
				t.Fatal(err)
			}
			c.Advance(time.Minute)
			if _, err := svc.Submit(ctx, st.AttemptID, "stu-1", []exam.Response{
				{QuestionID: id + "-q1", SelectedOption: opt(p[0])},
				{QuestionID: id + "-q2", SelectedOption: opt(p[1])},
			}); err != nil {
				t.Fatal(err)
			}
			c.Advance(24 * time.Hour)
		}

		d, err := svc.Dashboard(ctx, "stu-1")
		if err != nil {
			t.Fatal(err)
		}
		if d.Metrics.TotalAttempts != 3 || d.Metrics.AveragePercent != 50 || d.Metrics.BestPercent != 100 {
			t.Fatalf("metrics = %+v", d.Metrics)
		}
		if len(d.History) != 3 || d.History[0].ExamID != "ex-2" {
			t.Fatalf("history not newest first: %+v", d.History)
		}
		if len(d.Recent) != 3 || d.Recent[0].Percentage != 100 || d.Recent[2].Percentage != 50 {
			t.Fatalf("recent not oldest first: %+v", d.Recent)
		}
		if d.Recent[0].ExamTitle != "Exam ex-0" {
			t.Fatalf("recent title = %q", d.Recent[0].ExamTitle)
		}

		empty, err := svc.Dashboard(ctx, "stu-nobody")
		if err != nil {
			t.Fatal(err)
		}
		if empty.Metrics.TotalAttempts != 0 || len(empty.Recent) != 0 {
			t.Fatalf("empty dashboard = %+v", empty)
		}

		rs, err := svc.ExamResults(ctx, "ex-1")
		if err != nil {
			t.Fatal(err)
		}
		if len(rs) != 1 || rs[0].StudentID != "stu-1" || rs[0].Score != 0 {
			t.Fatalf("exam results = %+v", rs)
		}
		if _, err := svc.ExamResults(ctx, "ex-missing"); !errors.Is(err, exam.ErrNotFound) {
			t.Fatalf("missing exam: %v", err)
		}
	})
}

func TestDashboard_MetricsCoverEveryAttempt(t *testing.T) {
	eachBackend(t, func(t *testing.T, b backend) {
		ctx := context.Background()
		c := &clock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
		svc := newService(b, c)

		// 25 exams: the first 5 answered right, the next 20 wrong
		for i := 0; i < 25; i++ {
			id := fmt.Sprintf("ex-%02d", i)
			b.put(t, publishedExam(id, choice(id+"-q1", exam.OptionA, 1)))
			st, err := svc.Start(ctx, id, "stu-1")
			if err != nil {
				t.Fatal(err)
			}
			pick := exam.OptionB
			if i < 5 {
				pick = exam.OptionA
			}
			c.Advance(time.Minute)
			if _, err := svc.Submit(ctx, st.AttemptID, "stu-1", []exam.Response{{QuestionID: id + "-q1", SelectedOption: opt(pick)}}); err != nil {
				t.Fatal(err)
			}
		}

		d, err := svc.Dashboard(ctx, "stu-1")
		if err != nil {
			t.Fatal(err)
		}
		if d.Metrics.TotalAttempts != 25 || d.Metrics.AveragePercent != 20 || d.Metrics.BestPercent != 100 {
			t.Fatalf("metrics = %+v", d.Metrics)
		}
		if len(d.History) != 20 || d.History[0].ExamID != "ex-24" {
			t.Fatalf("history page = %d rows, first %q", len(d.History), d.History[0].ExamID)
		}

		all, err := svc.ExamResults(ctx, "ex-00")
		if err != nil || len(all) != 1 {
			t.Fatalf("exam results = %+v, %v", all, err)
		}

		ov, err := svc.Overview(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if ov.Attempts != 25 || ov.AveragePercent != 20 || ov.LastSubmittedAt == nil || !ov.LastSubmittedAt.Equal(c.Now()) {
			t.Fatalf("overview = %+v", ov)
		}
	})
}

func TestStudentSummaries(t *testing.T) {
	eachBackend(t, func(t *testing.T, b backend) {
		ctx := context.Background()
		c := &clock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
		svc := newService(b, c)
		b.put(t, publishedExam("ex-a", choice("a-q1", exam.OptionA, 1), choice("a-q2", exam.OptionA, 1)))
		b.put(t, publishedExam("ex-b", choice("b-q1", exam.OptionA, 3)))

		submit := func(examID, student string, answers ...exam.Response) {
			t.Helper()
			st, err := svc.Start(ctx, examID, student)
			if err != nil {
				t.Fatal(err)
			}
			c.Advance(time.Minute)
			if _, err := svc.Submit(ctx, st.AttemptID, student, answers); err != nil {
				t.Fatal(err)
			}
		}
		submit("ex-a", "stu-1", exam.Response{QuestionID: "a-q1", SelectedOption: opt(exam.OptionA)})
		submit("ex-b", "stu-1", exam.Response{QuestionID: "b-q1", SelectedOption: opt(exam.OptionA)})
		submit("ex-a", "stu-2")
		if _, err := svc.Start(ctx, "ex-b", "stu-3"); err != nil {
			t.Fatal(err)
		}

		stats, err := svc.StudentSummaries(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if s1 := stats["stu-1"]; s1.Attempts != 2 || s1.AveragePercent != 75 || s1.BestPercent != 100 {
			t.Fatalf("stu-1 = %+v", s1)
		}
		if s2 := stats["stu-2"]; s2.Attempts != 1 || s2.AveragePercent != 0 || s2.BestPercent != 0 {
			t.Fatalf("stu-2 = %+v", s2)
		}
		if _, ok := stats["stu-3"]; ok {
			t.Fatal("in-progress attempt counted")
		}
	})
}
