package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/jiangkunoa/chat-practise/internal/api"
	"github.com/jiangkunoa/chat-practise/internal/store"
	"github.com/jiangkunoa/chat-practise/internal/token"
)

func newTestAPI(t *testing.T) (http.Handler, *token.Manager) {
	t.Helper()
	st, err := store.NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "chat.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(st.Close)

	tokens := token.NewManager("test-secret", time.Hour)
	return api.NewRouter(zerolog.Nop(), st, tokens, nil), tokens
}

func doJSON(t *testing.T, h http.Handler, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func register(t *testing.T, h http.Handler, username, password string) {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/register", "", map[string]string{
		"username": username,
		"password": password,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %s: status %d, body %s", username, rec.Code, rec.Body)
	}
}

func login(t *testing.T, h http.Handler, username, password string) (*httptest.ResponseRecorder, string) {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/login", "", map[string]string{
		"username": username,
		"password": password,
	})
	var resp struct {
		Token string `json:"token"`
	}
	if rec.Code == http.StatusOK {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
	}
	return rec, resp.Token
}

func TestRegisterAndLogin(t *testing.T) {
	h, tokens := newTestAPI(t)

	register(t, h, "alice", "hunter22")

	rec, tok := login(t, h, "alice", "hunter22")
	if rec.Code != http.StatusOK {
		t.Fatalf("login: status %d, body %s", rec.Code, rec.Body)
	}
	if tok == "" {
		t.Fatal("login returned no token")
	}

	claims, err := tokens.Verify(tok)
	if err != nil {
		t.Fatalf("issued token does not verify: %v", err)
	}
	if claims.Sub == 0 {
		t.Fatal("token carries no user id")
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	h, _ := newTestAPI(t)

	register(t, h, "alice", "hunter22")

	rec := doJSON(t, h, http.MethodPost, "/register", "", map[string]string{
		"username": "alice",
		"password": "hunter22",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status %d, want 409", rec.Code)
	}
}

func TestRegisterValidation(t *testing.T) {
	h, _ := newTestAPI(t)

	cases := []struct {
		name string
		body map[string]string
	}{
		{"empty username", map[string]string{"username": "", "password": "hunter22"}},
		{"short password", map[string]string{"username": "alice", "password": "abc"}},
		{"whitespace username", map[string]string{"username": "   ", "password": "hunter22"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, h, http.MethodPost, "/register", "", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status %d, want 400", rec.Code)
			}
		})
	}
}

func TestLoginWrongPassword(t *testing.T) {
	h, _ := newTestAPI(t)

	register(t, h, "alice", "hunter22")

	rec, _ := login(t, h, "alice", "wrong-pass")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", rec.Code)
	}
}

func TestLoginUnknownUser(t *testing.T) {
	h, _ := newTestAPI(t)

	rec, _ := login(t, h, "nobody", "hunter22")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", rec.Code)
	}
}

func TestUpdatePassword(t *testing.T) {
	h, _ := newTestAPI(t)

	register(t, h, "alice", "old-pass")
	rec, tok := login(t, h, "alice", "old-pass")
	if rec.Code != http.StatusOK {
		t.Fatalf("login: status %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/update_password", tok, map[string]string{
		"old_password": "old-pass",
		"new_password": "new-pass",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update: status %d, body %s", rec.Code, rec.Body)
	}

	// Old credentials stop working, new ones do.
	if rec, _ := login(t, h, "alice", "old-pass"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("old password still accepted: status %d", rec.Code)
	}
	if rec, _ := login(t, h, "alice", "new-pass"); rec.Code != http.StatusOK {
		t.Fatalf("new password rejected: status %d", rec.Code)
	}
}

func TestUpdatePasswordWrongOld(t *testing.T) {
	h, _ := newTestAPI(t)

	register(t, h, "alice", "hunter22")
	_, tok := login(t, h, "alice", "hunter22")

	rec := doJSON(t, h, http.MethodPost, "/update_password", tok, map[string]string{
		"old_password": "wrong",
		"new_password": "new-pass",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", rec.Code)
	}
}

func TestUpdatePasswordRequiresAuth(t *testing.T) {
	h, _ := newTestAPI(t)

	rec := doJSON(t, h, http.MethodPost, "/update_password", "", map[string]string{
		"old_password": "a",
		"new_password": "new-pass",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", rec.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	h, _ := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var resp struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "healthy" {
		t.Fatalf("status = %q", resp.Status)
	}
}
