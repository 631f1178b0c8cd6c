// Package catalog stores exams and their questions. The attempt lifecycle only
// reads from it.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/mindengage-exams/internal/exam"
)

// Querier is satisfied by *sql.DB and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type SQLStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLStore(db *sql.DB, now func() time.Time) *SQLStore {
	if now == nil {
		now = time.Now
	}
	return &SQLStore{db: db, now: now}
}

// StudentExam is one row of a student's exam list.
type StudentExam struct {
	ID              string      `json:"id"`
	Title           string      `json:"title"`
	Description     string      `json:"description"`
	DurationMinutes int         `json:"duration_minutes"`
	Window          exam.Window `json:"window"`
	TotalQuestions  int         `json:"total_questions"`
	TotalMarks      int         `json:"total_marks"`
	Active          bool        `json:"active"`
	Attempted       bool        `json:"attempted"`
	AttemptID       string      `json:"attempt_id,omitempty"`
	Score           *int        `json:"score,omitempty"`
	ScoredOutOf     *int        `json:"scored_out_of,omitempty"`
}

// ExamSummary is one row of the admin exam list.
type ExamSummary struct {
	ID              string      `json:"id"`
	Title           string      `json:"title"`
	DurationMinutes int         `json:"duration_minutes"`
	Window          exam.Window `json:"window"`
	Published       bool        `json:"published"`
	TotalQuestions  int         `json:"total_questions"`
	Attempts        int         `json:"attempts"`
}

// GetExam returns the exam with its questions ordered by position, answer
// keys included.
func (s *SQLStore) GetExam(ctx context.Context, id string) (exam.Exam, error) {
	return LoadExam(ctx, s.db, id)
}

// PutExam creates or replaces an exam and its question set in one
// transaction. Questions keep their ids when supplied; questions missing from
// e are removed along with their recorded answers.
func (s *SQLStore) PutExam(ctx context.Context, e exam.Exam, createdBy string) (exam.Exam, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	now := s.now().UnixMilli()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return exam.Exam{}, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `INSERT INTO exams (id,title,description,duration_minutes,start_at,end_at,is_published,created_by,created_at,updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$9)
		ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, description=EXCLUDED.description,
			duration_minutes=EXCLUDED.duration_minutes, start_at=EXCLUDED.start_at, end_at=EXCLUDED.end_at,
			is_published=EXCLUDED.is_published, updated_at=EXCLUDED.updated_at`,
		e.ID, e.Title, e.Description, e.DurationMinutes,
		nullMillis(e.Window.StartAt), nullMillis(e.Window.EndAt), boolInt(e.Published), createdBy, now)
	if err != nil {
		return exam.Exam{}, fmt.Errorf("upsert exam: %w", err)
	}

	keep := make(map[string]bool, len(e.Questions))
	for i := range e.Questions {
		q := &e.Questions[i]
		if q.ID == "" {
			q.ID = uuid.NewString()
		}
		q.ExamID = e.ID
		q.Position = i + 1
		keep[q.ID] = true
	}

	existing, err := questionIDs(ctx, tx, e.ID)
	if err != nil {
		return exam.Exam{}, err
	}
	for _, id := range existing {
		if keep[id] {
			continue
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM questions WHERE id=$1`, id); err != nil {
			return exam.Exam{}, fmt.Errorf("delete question %s: %w", id, err)
		}
	}
	// move surviving rows out of the way of UNIQUE(exam_id, position)
	if _, err := tx.ExecContext(ctx, `UPDATE questions SET position = -position WHERE exam_id=$1`, e.ID); err != nil {
		return exam.Exam{}, fmt.Errorf("shift positions: %w", err)
	}

	for _, q := range e.Questions {
		row, err := q.Row()
		if err != nil {
			return exam.Exam{}, exam.Errorf(exam.ErrBadRequest, "%v", err)
		}
		res, err := tx.ExecContext(ctx, `INSERT INTO questions
			(id,exam_id,prompt,question_type,audio_url,match_pairs_json,option_a,option_b,option_c,option_d,correct_option,marks,position)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
			ON CONFLICT (id) DO UPDATE SET prompt=EXCLUDED.prompt, question_type=EXCLUDED.question_type,
				audio_url=EXCLUDED.audio_url, match_pairs_json=EXCLUDED.match_pairs_json,
				option_a=EXCLUDED.option_a, option_b=EXCLUDED.option_b, option_c=EXCLUDED.option_c, option_d=EXCLUDED.option_d,
				correct_option=EXCLUDED.correct_option, marks=EXCLUDED.marks, position=EXCLUDED.position
			WHERE questions.exam_id = EXCLUDED.exam_id`,
			row.ID, row.ExamID, row.Prompt, row.Type, row.AudioURL, row.MatchPairsJSON,
			row.Options[0], row.Options[1], row.Options[2], row.Options[3], row.CorrectOption, row.Marks, row.Position)
		if err != nil {
			return exam.Exam{}, fmt.Errorf("upsert question %s: %w", row.ID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return exam.Exam{}, exam.Errorf(exam.ErrBadRequest, "question %s belongs to another exam", row.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return exam.Exam{}, err
	}
	e.CreatedAt = now
	return e, nil
}

func (s *SQLStore) SetPublished(ctx context.Context, id string, published bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE exams SET is_published=$1, updated_at=$2 WHERE id=$3`,
		boolInt(published), s.now().UnixMilli(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return exam.Errorf(exam.ErrNotFound, "exam %s", id)
	}
	return nil
}

// ListForStudent lists published exams with the student's attempt state.
func (s *SQLStore) ListForStudent(ctx context.Context, studentID string) ([]StudentExam, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, e.title, e.description, e.duration_minutes, e.start_at, e.end_at,
		       (SELECT COUNT(*) FROM questions q WHERE q.exam_id = e.id),
		       (SELECT COALESCE(SUM(q.marks), 0) FROM questions q WHERE q.exam_id = e.id),
		       a.id, a.submitted_at, a.score, a.total_marks
		FROM exams e
		LEFT JOIN attempts a ON a.exam_id = e.id AND a.student_id = $1
		WHERE e.is_published = 1
		ORDER BY e.start_at IS NULL, e.start_at ASC, e.created_at DESC`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	now := s.now()
	out := []StudentExam{}
	for rows.Next() {
		var (
			se                 StudentExam
			startAt, endAt     sql.NullInt64
			attemptID          sql.NullString
			submittedAt        sql.NullInt64
			score, scoredOutOf sql.NullInt64
		)
		if err := rows.Scan(&se.ID, &se.Title, &se.Description, &se.DurationMinutes, &startAt, &endAt,
			&se.TotalQuestions, &se.TotalMarks, &attemptID, &submittedAt, &score, &scoredOutOf); err != nil {
			return nil, err
		}
		se.Window = exam.Window{StartAt: millisPtr(startAt), EndAt: millisPtr(endAt)}
		se.Active = se.Window.Contains(now)
		se.AttemptID = attemptID.String
		if submittedAt.Valid {
			se.Attempted = true
			sc, of := int(score.Int64), int(scoredOutOf.Int64)
			se.Score, se.ScoredOutOf = &sc, &of
		}
		out = append(out, se)
	}
	return out, rows.Err()
}

func (s *SQLStore) CountExams(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM exams`).Scan(&n)
	return n, err
}

// ListExams lists every exam for administrators.
func (s *SQLStore) ListExams(ctx context.Context) ([]ExamSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, e.title, e.duration_minutes, e.start_at, e.end_at, e.is_published,
		       (SELECT COUNT(*) FROM questions q WHERE q.exam_id = e.id),
		       (SELECT COUNT(*) FROM attempts a WHERE a.exam_id = e.id AND a.submitted_at IS NOT NULL)
		FROM exams e
		ORDER BY e.created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []ExamSummary{}
	for rows.Next() {
		var (
			es             ExamSummary
			startAt, endAt sql.NullInt64
			published      int
		)
		if err := rows.Scan(&es.ID, &es.Title, &es.DurationMinutes, &startAt, &endAt, &published,
			&es.TotalQuestions, &es.Attempts); err != nil {
			return nil, err
		}
		es.Window = exam.Window{StartAt: millisPtr(startAt), EndAt: millisPtr(endAt)}
		es.Published = published != 0
		out = append(out, es)
	}
	return out, rows.Err()
}

// LoadExam reads an exam and its ordered questions through q, which may be a
// transaction.
func LoadExam(ctx context.Context, q Querier, id string) (exam.Exam, error) {
	var (
		e              exam.Exam
		startAt, endAt sql.NullInt64
		published      int
	)
	err := q.QueryRowContext(ctx, `SELECT id,title,description,duration_minutes,start_at,end_at,is_published,created_at
		FROM exams WHERE id=$1`, id).
		Scan(&e.ID, &e.Title, &e.Description, &e.DurationMinutes, &startAt, &endAt, &published, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return exam.Exam{}, exam.Errorf(exam.ErrNotFound, "exam %s", id)
		}
		return exam.Exam{}, err
	}
	e.Window = exam.Window{StartAt: millisPtr(startAt), EndAt: millisPtr(endAt)}
	e.Published = published != 0

	e.Questions, err = LoadQuestions(ctx, q, id)
	if err != nil {
		return exam.Exam{}, err
	}
	return e, nil
}

// LoadQuestions reads the questions of an exam ordered by position.
func LoadQuestions(ctx context.Context, q Querier, examID string) ([]exam.Question, error) {
	rows, err := q.QueryContext(ctx, `SELECT id,exam_id,prompt,question_type,audio_url,match_pairs_json,
			option_a,option_b,option_c,option_d,correct_option,marks,position
		FROM questions WHERE exam_id=$1 ORDER BY position ASC`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []exam.Question
	for rows.Next() {
		var r exam.QuestionRow
		if err := rows.Scan(&r.ID, &r.ExamID, &r.Prompt, &r.Type, &r.AudioURL, &r.MatchPairsJSON,
			&r.Options[0], &r.Options[1], &r.Options[2], &r.Options[3], &r.CorrectOption, &r.Marks, &r.Position); err != nil {
			return nil, err
		}
		qq, err := r.Question()
		if err != nil {
			return nil, err
		}
		out = append(out, qq)
	}
	return out, rows.Err()
}

func questionIDs(ctx context.Context, tx *sql.Tx, examID string) ([]string, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id FROM questions WHERE exam_id=$1`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func millisPtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64).UTC()
	return &t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
