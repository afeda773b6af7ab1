package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hud-code/binqr-server/internal/model"
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	var confirmedAt sql.NullTime
	err := scanner.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &confirmedAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if confirmedAt.Valid {
		u.EmailConfirmedAt = &confirmedAt.Time
	}
	return &u, nil
}

const userCols = `id, email, password_hash, full_name, email_confirmed_at, created_at, updated_at`

func (s *UserStore) Create(email, passwordHash, fullName string) (*model.User, error) {
	id := uuid.NewString()
	now := time.Now().UTC()
	_, err := s.db.Exec(
		`INSERT INTO users (id, email, password_hash, full_name, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, email, passwordHash, fullName, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) GetByID(id string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByEmail(email string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE email = ?`, email)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// MarkEmailConfirmed records the verification time. Idempotent: an already
// confirmed user keeps the original timestamp.
func (s *UserStore) MarkEmailConfirmed(id string) (*model.User, error) {
	now := time.Now().UTC()
	_, err := s.db.Exec(
		`UPDATE users SET email_confirmed_at = COALESCE(email_confirmed_at, ?), updated_at = ? WHERE id = ?`,
		now, now, id,
	)
	if err != nil {
		return nil, fmt.Errorf("mark email confirmed: %w", err)
	}
	return s.GetByID(id)
}
