// Package users is the local identity store: accounts, bcrypt password
// checks and the admin seed.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/mindengage-exams/internal/exam"
)

const (
	RoleAdmin   = "admin"
	RoleStudent = "student"
)

type User struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	CreatedAt int64  `json:"created_at"`
}

// NewStudent is the payload for creating a student account.
type NewStudent struct {
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

var ErrInvalidCredentials = errors.New("invalid credentials")

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// Authenticate returns the user for email if password matches its hash.
func (s *Store) Authenticate(ctx context.Context, email, password string) (User, error) {
	var (
		u    User
		hash string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id,name,email,role,created_at,password_hash FROM users WHERE email=$1`,
		normalizeEmail(email)).Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.CreatedAt, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

func (s *Store) Get(ctx context.Context, id string) (User, error) {
	var u User
	err := s.db.QueryRowContext(ctx, `SELECT id,name,email,role,created_at FROM users WHERE id=$1`, id).
		Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, exam.Errorf(exam.ErrNotFound, "user %s", id)
	}
	return u, err
}

// ListStudents returns every student account, newest first.
func (s *Store) ListStudents(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,name,email,role,created_at FROM users
		WHERE role=$1 ORDER BY created_at DESC, email ASC`, RoleStudent)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []User{}
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) CountStudents(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE role=$1`, RoleStudent).Scan(&n)
	return n, err
}

// CreateStudent adds a student account. A taken email is a conflict.
func (s *Store) CreateStudent(ctx context.Context, in NewStudent) (User, error) {
	if err := exam.ValidateStruct(in); err != nil {
		return User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	u := User{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(in.Name),
		Email:     normalizeEmail(in.Email),
		Role:      RoleStudent,
		CreatedAt: time.Now().UnixMilli(),
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO users (id,name,email,password_hash,role,created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (email) DO NOTHING`,
		u.ID, u.Name, u.Email, string(hash), u.Role, u.CreatedAt)
	if err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return User{}, exam.Errorf(exam.ErrConflict, "email %s is already registered", u.Email)
	}
	return u, nil
}

// ChangePassword replaces the password of user id after checking the old one.
// A wrong old password is forbidden.
func (s *Store) ChangePassword(ctx context.Context, id, oldPassword, newPassword string) error {
	if len(newPassword) < 6 {
		return exam.Errorf(exam.ErrBadRequest, "new password must be at least 6 characters")
	}
	var hash string
	err := s.db.QueryRowContext(ctx, `SELECT password_hash FROM users WHERE id=$1`, id).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return exam.Errorf(exam.ErrNotFound, "user %s", id)
	}
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(oldPassword)) != nil {
		return exam.Errorf(exam.ErrForbidden, "incorrect old password")
	}
	next, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `UPDATE users SET password_hash=$1 WHERE id=$2`, string(next), id)
	return err
}

// EnsureAdmin creates the admin account if no user has its email. Either a
// bcrypt hash or a plaintext password must be given; the hash wins.
func (s *Store) EnsureAdmin(ctx context.Context, name, email, passHash, password string) (bool, error) {
	if passHash == "" {
		if password == "" {
			return false, errors.New("admin seed needs a password or a bcrypt hash")
		}
		b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return false, err
		}
		passHash = string(b)
	}
	if name == "" {
		name = "Administrator"
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO users (id,name,email,password_hash,role,created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (email) DO NOTHING`,
		uuid.NewString(), name, normalizeEmail(email), passHash, RoleAdmin, time.Now().UnixMilli())
	if err != nil {
		return false, fmt.Errorf("seed admin: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func normalizeEmail(e string) string { return strings.ToLower(strings.TrimSpace(e)) }
