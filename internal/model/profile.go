package model

import "time"

// Profile holds user-editable account data. A row is created lazily the
// first time an authenticated session is seen without one.
type Profile struct {
	ID                     string    `json:"id"`
	Email                  string    `json:"email"`
	FullName               string    `json:"full_name,omitempty"`
	AvatarURL              string    `json:"avatar_url,omitempty"`
	HasCompletedOnboarding bool      `json:"has_completed_onboarding"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}
