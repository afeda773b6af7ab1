package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hud-code/binqr-server/internal/database"
	"github.com/hud-code/binqr-server/internal/email"
	"github.com/hud-code/binqr-server/internal/images"
	"github.com/hud-code/binqr-server/internal/logging"
	"github.com/hud-code/binqr-server/internal/store"
)

func setupTestServer(t *testing.T) (*httptest.Server, *Server) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	srv := New(db, email.NewClient("", ""), images.S3Config{}, logging.Setup("error"))
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts, srv
}

func doJSON(t *testing.T, ts *httptest.Server, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, ts.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	json.NewDecoder(resp.Body).Decode(&decoded)
	return resp.StatusCode, decoded
}

// activateAccount walks a fresh registration through verification and
// onboarding, returning a token in the active state.
func activateAccount(t *testing.T, ts *httptest.Server, srv *Server, emailAddr string) string {
	t.Helper()
	status, body := doJSON(t, ts, "POST", "/api/auth/register", "", map[string]string{
		"email":     emailAddr,
		"password":  "correct-horse",
		"full_name": "Test User",
	})
	if status != http.StatusCreated {
		t.Fatalf("register: status = %d, body = %v", status, body)
	}
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatal("register returned no token")
	}
	if body["state"] != "pending_verification" {
		t.Fatalf("state after register = %v, want pending_verification", body["state"])
	}

	vc, err := srv.VerificationStore().GetActiveByEmail(emailAddr, store.PurposeVerifyEmail)
	if err != nil || vc == nil {
		t.Fatalf("no active verification code: %v", err)
	}
	status, body = doJSON(t, ts, "POST", "/api/auth/verify", token, map[string]string{"code": vc.Token})
	if status != http.StatusOK {
		t.Fatalf("verify: status = %d, body = %v", status, body)
	}
	if body["state"] != "onboarding" {
		t.Fatalf("state after verify = %v, want onboarding", body["state"])
	}

	status, body = doJSON(t, ts, "POST", "/api/auth/onboarding/complete", token, nil)
	if status != http.StatusOK {
		t.Fatalf("onboarding: status = %d, body = %v", status, body)
	}
	if body["state"] != "active" {
		t.Fatalf("state after onboarding = %v, want active", body["state"])
	}
	return token
}

func TestInventoryRequiresActiveAccount(t *testing.T) {
	ts, _ := setupTestServer(t)

	// No token at all
	status, _ := doJSON(t, ts, "GET", "/api/boxes", "", nil)
	if status != http.StatusUnauthorized {
		t.Errorf("unauthenticated: status = %d, want 401", status)
	}

	// Registered but unverified
	regStatus, body := doJSON(t, ts, "POST", "/api/auth/register", "", map[string]string{
		"email":    "pending@example.com",
		"password": "correct-horse",
	})
	if regStatus != http.StatusCreated {
		t.Fatalf("register: status = %d", regStatus)
	}
	token := body["token"].(string)

	status, body = doJSON(t, ts, "GET", "/api/boxes", token, nil)
	if status != http.StatusForbidden {
		t.Errorf("pending user on inventory: status = %d, want 403", status)
	}
	if body["state"] != "pending_verification" {
		t.Errorf("gate response state = %v, want pending_verification", body["state"])
	}

	// Auth surface still reachable while pending
	status, _ = doJSON(t, ts, "GET", "/api/auth/status", token, nil)
	if status != http.StatusOK {
		t.Errorf("status while pending: status = %d, want 200", status)
	}
}

func TestVerifyWrongCodeAttempts(t *testing.T) {
	ts, srv := setupTestServer(t)

	_, body := doJSON(t, ts, "POST", "/api/auth/register", "", map[string]string{
		"email":    "fumble@example.com",
		"password": "correct-horse",
	})
	token := body["token"].(string)

	for i := 0; i < 5; i++ {
		status, _ := doJSON(t, ts, "POST", "/api/auth/verify", token, map[string]string{"code": "000000"})
		if status != http.StatusBadRequest {
			t.Fatalf("wrong code %d: status = %d, want 400", i+1, status)
		}
	}

	// Even the right code is refused once attempts are exhausted
	vc, err := srv.VerificationStore().GetActiveByEmail("fumble@example.com", store.PurposeVerifyEmail)
	if err != nil || vc == nil {
		t.Fatalf("no active code: %v", err)
	}
	status, _ := doJSON(t, ts, "POST", "/api/auth/verify", token, map[string]string{"code": vc.Token})
	if status != http.StatusBadRequest {
		t.Errorf("exhausted attempts: status = %d, want 400", status)
	}
}

func TestDuplicateRegistration(t *testing.T) {
	ts, srv := setupTestServer(t)
	activateAccount(t, ts, srv, "alice@example.com")

	status, _ := doJSON(t, ts, "POST", "/api/auth/register", "", map[string]string{
		"email":    "alice@example.com",
		"password": "another-pass",
	})
	if status != http.StatusConflict {
		t.Errorf("duplicate register: status = %d, want 409", status)
	}
}

func TestInventoryLifecycle(t *testing.T) {
	ts, srv := setupTestServer(t)
	token := activateAccount(t, ts, srv, "garage@example.com")

	// Create a location
	status, loc := doJSON(t, ts, "POST", "/api/locations", token, map[string]string{
		"name": "Garage",
	})
	if status != http.StatusCreated {
		t.Fatalf("create location: status = %d, body = %v", status, loc)
	}
	locID := loc["id"].(string)

	// Create a box in it
	status, box := doJSON(t, ts, "POST", "/api/boxes", token, map[string]any{
		"name":        "Tools",
		"location_id": locID,
		"tags":        []string{"hardware", "workshop"},
	})
	if status != http.StatusCreated {
		t.Fatalf("create box: status = %d, body = %v", status, box)
	}
	boxID := box["id"].(string)
	qrCode := box["qr_code"].(string)
	if qrCode == "" {
		t.Fatal("box created without qr code")
	}
	if box["location_name"] != "Garage" {
		t.Errorf("location_name = %v, want Garage", box["location_name"])
	}

	// The location now refuses deletion
	status, _ = doJSON(t, ts, "DELETE", "/api/locations/"+locID, token, nil)
	if status != http.StatusConflict {
		t.Errorf("delete occupied location: status = %d, want 409", status)
	}

	// Scan the printed payload and find the box
	status, scanBody := doJSON(t, ts, "POST", "/api/scan", token, map[string]string{"payload": qrCode})
	if status != http.StatusOK {
		t.Fatalf("scan: status = %d", status)
	}
	result := scanBody["result"].(map[string]any)
	if result["state"] != "found" {
		t.Fatalf("scan state = %v, want found", result["state"])
	}
	if result["box"].(map[string]any)["id"] != boxID {
		t.Error("scan resolved the wrong box")
	}

	// A second frame is ignored until reset
	status, scanBody = doJSON(t, ts, "POST", "/api/scan", token, map[string]string{"payload": qrCode})
	if status != http.StatusOK {
		t.Fatalf("second scan: status = %d", status)
	}
	if scanBody["accepted"] != false {
		t.Error("second frame should be dropped while result unacknowledged")
	}
	doJSON(t, ts, "POST", "/api/scan/reset", token, nil)

	// Reissue invalidates the printed payload
	status, reissue := doJSON(t, ts, "POST", "/api/boxes/"+boxID+"/qr/reissue", token, nil)
	if status != http.StatusOK {
		t.Fatalf("reissue: status = %d", status)
	}
	newCode := reissue["qr_code"].(string)
	if newCode == qrCode {
		t.Fatal("reissue returned the old payload")
	}

	status, scanBody = doJSON(t, ts, "POST", "/api/scan", token, map[string]string{"payload": qrCode})
	if status != http.StatusOK {
		t.Fatalf("scan old payload: status = %d", status)
	}
	if got := scanBody["result"].(map[string]any)["state"]; got != "not_found" {
		t.Errorf("old payload scan state = %v, want not_found", got)
	}
	doJSON(t, ts, "POST", "/api/scan/reset", token, nil)

	// Garbage payload is rejected without touching the inventory
	status, scanBody = doJSON(t, ts, "POST", "/api/scan", token, map[string]string{"payload": "NotAQR:1234"})
	if status != http.StatusOK {
		t.Fatalf("scan garbage: status = %d", status)
	}
	if got := scanBody["result"].(map[string]any)["state"]; got != "not_recognized" {
		t.Errorf("garbage scan state = %v, want not_recognized", got)
	}

	// Search narrows by name
	status, _ = doJSON(t, ts, "GET", "/api/boxes/search?q=tool", token, nil)
	if status != http.StatusOK {
		t.Errorf("search: status = %d", status)
	}
}

func TestSearchEndpoint(t *testing.T) {
	ts, srv := setupTestServer(t)
	token := activateAccount(t, ts, srv, "search@example.com")

	for i, name := range []string{"Winter Clothes", "Summer Clothes", "Kitchen Gear"} {
		status, _ := doJSON(t, ts, "POST", "/api/boxes", token, map[string]any{
			"name": name,
		})
		if status != http.StatusCreated {
			t.Fatalf("create box %d: status = %d", i, status)
		}
	}

	req, _ := http.NewRequest("GET", ts.URL+"/api/boxes/search?q=clothes", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	defer resp.Body.Close()

	var boxes []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&boxes); err != nil {
		t.Fatalf("decode search results: %v", err)
	}
	if len(boxes) != 2 {
		t.Errorf("search matched %d boxes, want 2", len(boxes))
	}
	for _, b := range boxes {
		if b["name"] == "Kitchen Gear" {
			t.Error("search should not match Kitchen Gear")
		}
	}
}

func TestOwnersAreIsolated(t *testing.T) {
	ts, srv := setupTestServer(t)
	aliceToken := activateAccount(t, ts, srv, "alice@example.com")
	bobToken := activateAccount(t, ts, srv, "bob@example.com")

	status, box := doJSON(t, ts, "POST", "/api/boxes", aliceToken, map[string]any{"name": "Private"})
	if status != http.StatusCreated {
		t.Fatalf("create box: status = %d", status)
	}
	boxID := box["id"].(string)

	status, _ = doJSON(t, ts, "GET", "/api/boxes/"+boxID, bobToken, nil)
	if status != http.StatusNotFound {
		t.Errorf("cross-owner get: status = %d, want 404", status)
	}

	// Bob scanning Alice's label resolves nothing
	status, scanBody := doJSON(t, ts, "POST", "/api/scan", bobToken, map[string]string{
		"payload": box["qr_code"].(string),
	})
	if status != http.StatusOK {
		t.Fatalf("scan: status = %d", status)
	}
	if got := scanBody["result"].(map[string]any)["state"]; got != "not_found" {
		t.Errorf("cross-owner scan state = %v, want not_found", got)
	}
}

func TestLoginFlow(t *testing.T) {
	ts, srv := setupTestServer(t)
	activateAccount(t, ts, srv, "returning@example.com")

	status, body := doJSON(t, ts, "POST", "/api/auth/login", "", map[string]string{
		"email":    "returning@example.com",
		"password": "correct-horse",
	})
	if status != http.StatusOK {
		t.Fatalf("login: status = %d, body = %v", status, body)
	}
	if body["state"] != "active" {
		t.Errorf("state after login = %v, want active", body["state"])
	}

	status, _ = doJSON(t, ts, "POST", "/api/auth/login", "", map[string]string{
		"email":    "returning@example.com",
		"password": "wrong-password",
	})
	if status != http.StatusUnauthorized {
		t.Errorf("wrong password: status = %d, want 401", status)
	}

	// Logout invalidates the token
	token := body["token"].(string)
	status, _ = doJSON(t, ts, "POST", "/api/auth/logout", token, nil)
	if status != http.StatusOK {
		t.Fatalf("logout: status = %d", status)
	}
	status, _ = doJSON(t, ts, "GET", "/api/auth/status", token, nil)
	if status != http.StatusUnauthorized {
		t.Errorf("status after logout = %d, want 401", status)
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts, _ := setupTestServer(t)

	resp, err := ts.Client().Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health: status = %d, want 200", resp.StatusCode)
	}
}

func TestRegisterValidation(t *testing.T) {
	ts, _ := setupTestServer(t)

	cases := []struct {
		name string
		body map[string]string
	}{
		{"missing email", map[string]string{"password": "correct-horse"}},
		{"bad email", map[string]string{"email": "not-an-email", "password": "correct-horse"}},
		{"short password", map[string]string{"email": "a@example.com", "password": "short"}},
	}
	for _, tc := range cases {
		status, _ := doJSON(t, ts, "POST", "/api/auth/register", "", tc.body)
		if status != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", tc.name, status)
		}
	}
}

func TestRegisterRateLimited(t *testing.T) {
	ts, _ := setupTestServer(t)

	var last int
	for i := 0; i < 11; i++ {
		last, _ = doJSON(t, ts, "POST", "/api/auth/register", "", map[string]string{
			"email":    fmt.Sprintf("user%d@example.com", i),
			"password": "correct-horse",
		})
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("11th register: status = %d, want 429", last)
	}
}
