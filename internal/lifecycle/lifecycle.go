// Package lifecycle derives the account stage that gates what a session may
// reach: unverified accounts see only verification, verified-but-new
// accounts see onboarding, and everyone else gets the full application.
package lifecycle

import (
	"github.com/hud-code/binqr-server/internal/model"
	"github.com/hud-code/binqr-server/internal/store"
)

type State string

const (
	StateUnauthenticated     State = "unauthenticated"
	StatePendingVerification State = "pending_verification"
	StateOnboarding          State = "onboarding"
	StateActive              State = "active"
)

// Flags are the three session signals the state is derived from.
type Flags struct {
	Authenticated  bool
	EmailConfirmed bool
	Onboarded      bool
}

// Derive maps flags to a state. The priority order is fixed: an unverified
// account is PendingVerification no matter what the onboarding flag says.
func Derive(f Flags) State {
	switch {
	case !f.Authenticated:
		return StateUnauthenticated
	case !f.EmailConfirmed:
		return StatePendingVerification
	case !f.Onboarded:
		return StateOnboarding
	default:
		return StateActive
	}
}

// Manager evaluates lifecycle state from stored account data. State is
// derived on every evaluation, never stored.
type Manager struct {
	users    *store.UserStore
	profiles *store.ProfileStore
}

func NewManager(users *store.UserStore, profiles *store.ProfileStore) *Manager {
	return &Manager{users: users, profiles: profiles}
}

// Evaluate resolves the state for a session. On the first authenticated
// sight of a user without a profile row, one is created with
// has_completed_onboarding = false before the state is derived.
func (m *Manager) Evaluate(sess *model.Session) (State, *model.Profile, error) {
	if sess == nil {
		return StateUnauthenticated, nil, nil
	}

	user, err := m.users.GetByID(sess.UserID)
	if err != nil {
		return "", nil, err
	}
	if user == nil {
		// Session outlived its user.
		return StateUnauthenticated, nil, nil
	}

	profile, err := m.profiles.EnsureExists(user)
	if err != nil {
		return "", nil, err
	}

	state := Derive(Flags{
		Authenticated:  true,
		EmailConfirmed: user.EmailConfirmed(),
		Onboarded:      profile.HasCompletedOnboarding,
	})
	return state, profile, nil
}

// CompleteOnboarding marks the user's onboarding done and returns the newly
// derived state.
func (m *Manager) CompleteOnboarding(userID string) (State, *model.Profile, error) {
	user, err := m.users.GetByID(userID)
	if err != nil {
		return "", nil, err
	}
	if user == nil {
		return "", nil, store.ErrNotFound
	}

	profile, err := m.profiles.SetOnboardingComplete(userID)
	if err != nil {
		return "", nil, err
	}

	state := Derive(Flags{
		Authenticated:  true,
		EmailConfirmed: user.EmailConfirmed(),
		Onboarded:      profile.HasCompletedOnboarding,
	})
	return state, profile, nil
}
