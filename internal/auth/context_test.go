package auth

import (
	"context"
	"testing"

	"github.com/hud-code/binqr-server/internal/lifecycle"
)

func TestWithAuthAndFromContext(t *testing.T) {
	ac := AuthContext{
		UserID:    "user-1",
		SessionID: 3,
		State:     lifecycle.StateActive,
	}

	ctx := WithAuth(context.Background(), ac)
	got, ok := FromContext(ctx)
	if !ok {
		t.Fatal("expected AuthContext in context")
	}
	if got.UserID != "user-1" {
		t.Errorf("UserID = %q, want %q", got.UserID, "user-1")
	}
	if got.SessionID != 3 {
		t.Errorf("SessionID = %d, want 3", got.SessionID)
	}
	if got.State != lifecycle.StateActive {
		t.Errorf("State = %q, want %q", got.State, lifecycle.StateActive)
	}
}

func TestFromContextMissing(t *testing.T) {
	_, ok := FromContext(context.Background())
	if ok {
		t.Error("expected false for missing AuthContext")
	}
}

func TestUserID(t *testing.T) {
	ctx := WithAuth(context.Background(), AuthContext{UserID: "user-7"})
	if UserID(ctx) != "user-7" {
		t.Errorf("UserID = %q, want %q", UserID(ctx), "user-7")
	}
}

func TestUserIDMissing(t *testing.T) {
	if UserID(context.Background()) != "" {
		t.Error(`expected "" for missing context`)
	}
}

func TestStateMissing(t *testing.T) {
	if State(context.Background()) != lifecycle.StateUnauthenticated {
		t.Error("expected unauthenticated for missing context")
	}
}
