package handler

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/BrieHudson/Capstone-1-Muse/internal/auth"
	"github.com/BrieHudson/Capstone-1-Muse/internal/model"
	"github.com/BrieHudson/Capstone-1-Muse/internal/user"
)

func TestAuthHandler_Signup_Success(t *testing.T) {
	d := newTestDeps()
	d.auth.signupFn = func(ctx context.Context, in user.RegisterInput) (*auth.Session, error) {
		if in.Username != "alice" || in.Email != "alice@example.com" || in.Password != "secret1" {
			t.Errorf("input = %+v", in)
		}
		return &auth.Session{
			User:      &model.User{ID: 1, Username: "alice", Email: "alice@example.com", PasswordHash: "hash"},
			Token:     "jwt-token",
			ExpiresAt: testTime.Add(24 * time.Hour),
		}, nil
	}

	w := do(t, d.router(t), http.MethodPost, "/auth/signup", "",
		`{"username":"alice","email":"alice@example.com","password":"secret1"}`)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body: %s)", w.Code, w.Body.String())
	}
	if strings.Contains(w.Body.String(), "hash") || strings.Contains(w.Body.String(), "password") {
		t.Errorf("response must not expose password data: %s", w.Body.String())
	}

	var resp sessionResponse
	decodeBody(t, w, &resp)
	if resp.Token != "jwt-token" || resp.User.ID != 1 || resp.User.Email != "alice@example.com" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestAuthHandler_Signup_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"不正なJSON", `{"username":`, nil, http.StatusBadRequest, "INVALID_REQUEST"},
		{"未知のフィールド", `{"username":"a","admin":true}`, nil, http.StatusBadRequest, "INVALID_REQUEST"},
		{"ユーザー名重複", `{"username":"alice","email":"a@example.com","password":"secret1"}`, model.NewDuplicateUsernameError(), http.StatusConflict, model.ErrCodeDuplicateUsername},
		{"入力不正", `{"username":"a","email":"a@example.com","password":"secret1"}`, model.NewValidationError("short"), http.StatusBadRequest, model.ErrCodeValidationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDeps()
			d.auth.signupFn = func(context.Context, user.RegisterInput) (*auth.Session, error) {
				return nil, tt.err
			}
			w := do(t, d.router(t), http.MethodPost, "/auth/signup", "", tt.body)
			assertError(t, w, tt.wantStatus, tt.wantCode)
		})
	}
}

func TestAuthHandler_Login(t *testing.T) {
	d := newTestDeps()
	d.auth.loginFn = func(ctx context.Context, username, password string) (*auth.Session, error) {
		if username == "alice" && password == "secret1" {
			return &auth.Session{User: &model.User{ID: 1, Username: "alice"}, Token: "jwt"}, nil
		}
		return nil, model.NewAuthFailedError()
	}
	h := d.router(t)

	w := do(t, h, http.MethodPost, "/auth/login", "", `{"username":"alice","password":"secret1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	w = do(t, h, http.MethodPost, "/auth/login", "", `{"username":"alice","password":"wrong"}`)
	assertError(t, w, http.StatusUnauthorized, model.ErrCodeAuthFailed)
}

func TestAuthHandler_Me(t *testing.T) {
	d := newTestDeps()
	h := d.router(t)

	w := do(t, h, http.MethodGet, "/auth/me", "token-1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var me meResponse
	decodeBody(t, w, &me)
	if me.ID != 1 || me.Username != "alice" {
		t.Errorf("me = %+v", me)
	}

	w = do(t, h, http.MethodGet, "/auth/me", "", "")
	assertError(t, w, http.StatusUnauthorized, model.ErrCodeUnauthorized)

	d.auth.currentUserFn = func(context.Context, int64) (*model.User, error) {
		return nil, model.NewUnauthorizedError()
	}
	w = do(t, h, http.MethodGet, "/auth/me", "token-1", "")
	assertError(t, w, http.StatusUnauthorized, model.ErrCodeUnauthorized)
}
