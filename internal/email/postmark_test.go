package email

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSendVerificationCodeUnconfigured(t *testing.T) {
	c := NewClient("", "noreply@binqr.app")

	if c.Configured() {
		t.Error("client with empty token should not be configured")
	}
	if err := c.SendVerificationCode("user@example.com", "482913"); err == nil {
		t.Error("expected error from unconfigured client")
	}
}

func TestSendVerificationCode(t *testing.T) {
	var got postmarkEmail
	var gotToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-Postmark-Server-Token")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient("test-token", "noreply@binqr.app", WithEndpoint(srv.URL))
	if err := c.SendVerificationCode("user@example.com", "482913"); err != nil {
		t.Fatalf("SendVerificationCode: %v", err)
	}

	if gotToken != "test-token" {
		t.Errorf("server token header = %q, want %q", gotToken, "test-token")
	}
	if got.To != "user@example.com" {
		t.Errorf("To = %q, want user@example.com", got.To)
	}
	if got.From != "noreply@binqr.app" {
		t.Errorf("From = %q, want noreply@binqr.app", got.From)
	}
	if !strings.Contains(got.TextBody, "482913") {
		t.Errorf("text body missing code: %q", got.TextBody)
	}
	if !strings.Contains(got.HtmlBody, "482913") {
		t.Errorf("html body missing code: %q", got.HtmlBody)
	}
}

func TestSendVerificationCodeAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := NewClient("test-token", "noreply@binqr.app", WithEndpoint(srv.URL))
	if err := c.SendVerificationCode("user@example.com", "482913"); err == nil {
		t.Error("expected error on 4xx response")
	}
}
