package attempt

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mind-engage/mindengage-exams/internal/catalog"
	"github.com/mind-engage/mindengage-exams/internal/exam"
	syncx "github.com/mind-engage/mindengage-exams/internal/sync"
)

type SQLStore struct {
	db     *sql.DB
	driver string // "sqlite" or "postgres"
}

func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

const attemptCols = `id,exam_id,student_id,started_at,submitted_at,score,total_marks,time_taken_seconds`

func scanAttempt(row interface{ Scan(...any) error }) (exam.Attempt, error) {
	var (
		a           exam.Attempt
		startedAt   int64
		submittedAt sql.NullInt64
	)
	if err := row.Scan(&a.ID, &a.ExamID, &a.StudentID, &startedAt, &submittedAt, &a.Score, &a.TotalMarks, &a.TimeTakenSeconds); err != nil {
		return exam.Attempt{}, err
	}
	a.StartedAt = time.UnixMilli(startedAt).UTC()
	if submittedAt.Valid {
		t := time.UnixMilli(submittedAt.Int64).UTC()
		a.SubmittedAt = &t
	}
	return a, nil
}

func (s *SQLStore) FindByExamStudent(ctx context.Context, examID, studentID string) (exam.Attempt, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+attemptCols+` FROM attempts WHERE exam_id=$1 AND student_id=$2`, examID, studentID)
	a, err := scanAttempt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return exam.Attempt{}, exam.Errorf(exam.ErrNotFound, "no attempt for exam %s", examID)
	}
	return a, err
}

// Create relies on UNIQUE(exam_id, student_id): a losing concurrent insert
// affects no rows and reports exam.ErrAttemptExists.
func (s *SQLStore) Create(ctx context.Context, a exam.Attempt) error {
	res, err := s.db.ExecContext(ctx, `INSERT INTO attempts (id,exam_id,student_id,started_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (exam_id, student_id) DO NOTHING`,
		a.ID, a.ExamID, a.StudentID, a.StartedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return exam.ErrAttemptExists
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, id string) (exam.Attempt, error) {
	return getAttempt(ctx, s.db, id, "")
}

func getAttempt(ctx context.Context, q catalog.Querier, id, suffix string) (exam.Attempt, error) {
	row := q.QueryRowContext(ctx, `SELECT `+attemptCols+` FROM attempts WHERE id=$1`+suffix, id)
	a, err := scanAttempt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return exam.Attempt{}, exam.Errorf(exam.ErrNotFound, "attempt %s", id)
	}
	return a, err
}

func (s *SQLStore) InTx(ctx context.Context, fn func(Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(&sqlTx{tx: tx, driver: s.driver}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// where renders f as SQL conditions over attempts aliased a.
func (f ResultFilter) where() (string, []any) {
	var (
		conds = []string{"a.submitted_at IS NOT NULL"}
		args  []any
	)
	add := func(col, v string) {
		if v == "" {
			return
		}
		args = append(args, v)
		conds = append(conds, fmt.Sprintf("%s=$%d", col, len(args)))
	}
	add("a.id", f.AttemptID)
	add("a.student_id", f.StudentID)
	add("a.exam_id", f.ExamID)
	return strings.Join(conds, " AND "), args
}

func (s *SQLStore) Results(ctx context.Context, f ResultFilter) ([]exam.Result, error) {
	where, args := f.where()
	q := `SELECT a.id, a.exam_id, e.title, a.student_id, a.score, a.total_marks, a.submitted_at, a.time_taken_seconds,
			(SELECT COUNT(*) FROM attempt_answers aa WHERE aa.attempt_id = a.id AND aa.is_correct = 1),
			(SELECT COUNT(*) FROM attempt_answers aa WHERE aa.attempt_id = a.id)
		FROM attempts a
		JOIN exams e ON e.id = a.exam_id
		WHERE ` + where + `
		ORDER BY a.submitted_at DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []exam.Result{}
	for rows.Next() {
		var (
			r           exam.Result
			submittedAt int64
		)
		if err := rows.Scan(&r.AttemptID, &r.ExamID, &r.ExamTitle, &r.StudentID, &r.Score, &r.TotalMarks,
			&submittedAt, &r.TimeTakenSeconds, &r.CorrectAnswers, &r.TotalQuestions); err != nil {
			return nil, err
		}
		r.SubmittedAt = time.UnixMilli(submittedAt).UTC()
		r.Percentage = exam.Percentage(r.Score, r.TotalMarks)
		out = append(out, r)
	}
	return out, rows.Err()
}

const summaryCols = `COUNT(*),
	AVG(CAST(a.score AS DOUBLE PRECISION) * 100 / NULLIF(a.total_marks, 0)),
	MAX(CAST(a.score AS DOUBLE PRECISION) * 100 / NULLIF(a.total_marks, 0)),
	MAX(a.submitted_at)`

func scanSummary(row interface{ Scan(...any) error }, lead ...any) (Summary, error) {
	var (
		sm        Summary
		avg, best sql.NullFloat64
		last      sql.NullInt64
	)
	if err := row.Scan(append(lead, &sm.Attempts, &avg, &best, &last)...); err != nil {
		return Summary{}, err
	}
	sm.AveragePercent = exam.Round2(avg.Float64)
	sm.BestPercent = exam.Round2(best.Float64)
	if last.Valid {
		t := time.UnixMilli(last.Int64).UTC()
		sm.LastSubmittedAt = &t
	}
	return sm, nil
}

func (s *SQLStore) Summarize(ctx context.Context, f ResultFilter) (Summary, error) {
	where, args := f.where()
	row := s.db.QueryRowContext(ctx, `SELECT `+summaryCols+` FROM attempts a WHERE `+where, args...)
	sm, err := scanSummary(row)
	if err != nil {
		return Summary{}, fmt.Errorf("summarize attempts: %w", err)
	}
	return sm, nil
}

func (s *SQLStore) SummariesByStudent(ctx context.Context) (map[string]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT a.student_id, `+summaryCols+`
		FROM attempts a
		WHERE a.submitted_at IS NOT NULL
		GROUP BY a.student_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]Summary{}
	for rows.Next() {
		var id string
		sm, err := scanSummary(rows, &id)
		if err != nil {
			return nil, err
		}
		out[id] = sm
	}
	return out, rows.Err()
}

type sqlTx struct {
	tx     *sql.Tx
	driver string
}

func (t *sqlTx) GetAttempt(ctx context.Context, id string) (exam.Attempt, error) {
	suffix := ""
	if t.driver == "postgres" {
		suffix = " FOR UPDATE"
	}
	return getAttempt(ctx, t.tx, id, suffix)
}

func (t *sqlTx) Questions(ctx context.Context, examID string) ([]exam.Question, error) {
	return catalog.LoadQuestions(ctx, t.tx, examID)
}

func (t *sqlTx) MarkSubmitted(ctx context.Context, a exam.Attempt) error {
	if a.SubmittedAt == nil {
		return errors.New("mark submitted: attempt has no submission time")
	}
	res, err := t.tx.ExecContext(ctx, `UPDATE attempts
		SET submitted_at=$1, score=$2, total_marks=$3, time_taken_seconds=$4
		WHERE id=$5 AND submitted_at IS NULL`,
		a.SubmittedAt.UnixMilli(), a.Score, a.TotalMarks, a.TimeTakenSeconds, a.ID)
	if err != nil {
		return fmt.Errorf("update attempt: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return exam.Errorf(exam.ErrConflict, "attempt %s already submitted", a.ID)
	}
	return nil
}

func (t *sqlTx) InsertAnswers(ctx context.Context, answers []exam.AttemptAnswer) error {
	for _, ans := range answers {
		var selected sql.NullString
		if ans.SelectedOption != nil {
			selected = sql.NullString{String: string(*ans.SelectedOption), Valid: true}
		}
		matching := ""
		if len(ans.MatchingPairs) > 0 {
			buf, err := json.Marshal(ans.MatchingPairs)
			if err != nil {
				return err
			}
			matching = string(buf)
		}
		correct := 0
		if ans.IsCorrect {
			correct = 1
		}
		if _, err := t.tx.ExecContext(ctx, `INSERT INTO attempt_answers
			(attempt_id,question_id,selected_option,matching_json,is_correct,marks_awarded)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			ans.AttemptID, ans.QuestionID, selected, matching, correct, ans.MarksAwarded); err != nil {
			return fmt.Errorf("insert answer %s: %w", ans.QuestionID, err)
		}
	}
	return nil
}

func (t *sqlTx) AppendEvent(ctx context.Context, e syncx.Event) error {
	return syncx.NewEventRepo(t.tx).Append(ctx, e)
}

func (s *SQLStore) Answers(ctx context.Context, attemptID string) ([]exam.AttemptAnswer, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT aa.attempt_id, aa.question_id, aa.selected_option, aa.matching_json, aa.is_correct, aa.marks_awarded
		FROM attempt_answers aa
		JOIN questions q ON q.id = aa.question_id
		WHERE aa.attempt_id=$1
		ORDER BY q.position ASC`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []exam.AttemptAnswer{}
	for rows.Next() {
		var (
			ans      exam.AttemptAnswer
			selected sql.NullString
			matching string
			correct  int
		)
		if err := rows.Scan(&ans.AttemptID, &ans.QuestionID, &selected, &matching, &correct, &ans.MarksAwarded); err != nil {
			return nil, err
		}
		if selected.Valid {
			o := exam.Option(selected.String)
			ans.SelectedOption = &o
		}
		if matching != "" {
			if err := json.Unmarshal([]byte(matching), &ans.MatchingPairs); err != nil {
				return nil, fmt.Errorf("decode matching pairs of %s/%s: %w", ans.AttemptID, ans.QuestionID, err)
			}
		}
		ans.IsCorrect = correct != 0
		out = append(out, ans)
	}
	return out, rows.Err()
}
