package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/hud-code/binqr-server/internal/model"
)

type ProfileStore struct {
	db *sql.DB
}

func NewProfileStore(db *sql.DB) *ProfileStore {
	return &ProfileStore{db: db}
}

func scanProfile(scanner interface{ Scan(...any) error }) (*model.Profile, error) {
	var p model.Profile
	var onboarded int
	err := scanner.Scan(&p.ID, &p.Email, &p.FullName, &p.AvatarURL, &onboarded, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.HasCompletedOnboarding = onboarded != 0
	return &p, nil
}

const profileCols = `id, email, full_name, avatar_url, has_completed_onboarding, created_at, updated_at`

func (s *ProfileStore) GetByUserID(userID string) (*model.Profile, error) {
	row := s.db.QueryRow(`SELECT `+profileCols+` FROM profiles WHERE id = ?`, userID)
	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// EnsureExists returns the profile for a user, creating it with
// has_completed_onboarding = false if it does not yet exist. This is the one
// upsert-on-read in the system: it runs on the first authenticated sight of
// a user.
func (s *ProfileStore) EnsureExists(user *model.User) (*model.Profile, error) {
	p, err := s.GetByUserID(user.ID)
	if err != nil {
		return nil, err
	}
	if p != nil {
		return p, nil
	}

	now := time.Now().UTC()
	_, err = s.db.Exec(
		`INSERT INTO profiles (id, email, full_name, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		user.ID, user.Email, user.FullName, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert profile: %w", err)
	}
	return s.GetByUserID(user.ID)
}

func (s *ProfileStore) Update(userID, fullName, avatarURL string) (*model.Profile, error) {
	result, err := s.db.Exec(
		`UPDATE profiles SET full_name = ?, avatar_url = ?, updated_at = ? WHERE id = ?`,
		fullName, avatarURL, time.Now().UTC(), userID,
	)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	return s.GetByUserID(userID)
}

func (s *ProfileStore) SetOnboardingComplete(userID string) (*model.Profile, error) {
	result, err := s.db.Exec(
		`UPDATE profiles SET has_completed_onboarding = 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), userID,
	)
	if err != nil {
		return nil, fmt.Errorf("set onboarding complete: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	return s.GetByUserID(userID)
}
