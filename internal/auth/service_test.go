package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/BrieHudson/Capstone-1-Muse/internal/model"
	"github.com/BrieHudson/Capstone-1-Muse/internal/user"
)

// --- モック定義 ---

type mockIdentity struct {
	registerFn     func(ctx context.Context, in user.RegisterInput) (*model.User, error)
	authenticateFn func(ctx context.Context, username, password string) (*model.User, error)
	findByIDFn     func(ctx context.Context, userID int64) (*model.User, error)
}

func (m *mockIdentity) Register(ctx context.Context, in user.RegisterInput) (*model.User, error) {
	return m.registerFn(ctx, in)
}

func (m *mockIdentity) Authenticate(ctx context.Context, username, password string) (*model.User, error) {
	return m.authenticateFn(ctx, username, password)
}

func (m *mockIdentity) FindByID(ctx context.Context, userID int64) (*model.User, error) {
	return m.findByIDFn(ctx, userID)
}

// --- TokenIssuer ---

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)

	tok, exp, err := issuer.Issue(42)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if time.Until(exp) <= 0 {
		t.Errorf("expiresAt should be in the future, got %v", exp)
	}

	id, err := issuer.Parse(tok)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if id != 42 {
		t.Errorf("user id = %d, want 42", id)
	}
}

func TestTokenIssuer_UniqueIDs(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)
	a, _, _ := issuer.Issue(1)
	b, _, _ := issuer.Issue(1)
	if a == b {
		t.Error("tokens issued in the same second should differ by jti")
	}
}

func TestTokenIssuer_Rejects(t *testing.T) {
	ti := NewTokenIssuer("test-secret", time.Hour)
	valid, _, _ := ti.Issue(7)

	expired := NewTokenIssuer("test-secret", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expiredTok, _, _ := expired.Issue(7)

	otherSecret, _, _ := NewTokenIssuer("other-secret", time.Hour).Issue(7)

	noneTok, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   "7",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	badSubject, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("test-secret"))

	tests := []struct {
		name  string
		token string
	}{
		{"空文字", ""},
		{"改ざん", valid[:len(valid)-2] + "xx"},
		{"期限切れ", expiredTok},
		{"別のシークレット", otherSecret},
		{"alg=none", noneTok},
		{"数値でないsubject", badSubject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ti.Parse(tt.token); err != ErrInvalidToken {
				t.Errorf("Parse error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc.def", "abc.def", true},
		{"bearer abc", "abc", true},
		{"Bearer ", "", false},
		{"Basic abc", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := BearerToken(tt.header)
		if got != tt.want || ok != tt.ok {
			t.Errorf("BearerToken(%q) = (%q, %v), want (%q, %v)", tt.header, got, ok, tt.want, tt.ok)
		}
	}
}

// --- Service ---

func TestService_Signup_IssuesToken(t *testing.T) {
	ident := &mockIdentity{
		registerFn: func(ctx context.Context, in user.RegisterInput) (*model.User, error) {
			return &model.User{ID: 5, Username: in.Username}, nil
		},
	}
	issuer := NewTokenIssuer("s", time.Hour)
	svc := NewService(ident, issuer)

	sess, err := svc.Signup(context.Background(), user.RegisterInput{Username: "bob"})
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if sess.User.ID != 5 || sess.Token == "" {
		t.Fatalf("session = %+v", sess)
	}
	id, err := svc.VerifyToken(sess.Token)
	if err != nil || id != 5 {
		t.Errorf("VerifyToken = (%d, %v), want 5", id, err)
	}
}

func TestService_Login_PropagatesAuthFailure(t *testing.T) {
	ident := &mockIdentity{
		authenticateFn: func(ctx context.Context, username, password string) (*model.User, error) {
			return nil, model.NewAuthFailedError()
		},
	}
	svc := NewService(ident, NewTokenIssuer("s", time.Hour))

	_, err := svc.Login(context.Background(), "bob", "nope")
	if !model.HasCode(err, model.ErrCodeAuthFailed) {
		t.Errorf("error = %v, want AUTH_FAILED", err)
	}
}

func TestService_VerifyToken_Invalid(t *testing.T) {
	svc := NewService(&mockIdentity{}, NewTokenIssuer("s", time.Hour))
	_, err := svc.VerifyToken("garbage")
	if !model.HasCode(err, model.ErrCodeUnauthorized) {
		t.Errorf("error = %v, want UNAUTHORIZED", err)
	}
}

func TestService_CurrentUser_DeletedUserIsUnauthorized(t *testing.T) {
	ident := &mockIdentity{
		findByIDFn: func(ctx context.Context, userID int64) (*model.User, error) {
			return nil, model.NewUserNotFoundError()
		},
	}
	svc := NewService(ident, NewTokenIssuer("s", time.Hour))
	_, err := svc.CurrentUser(context.Background(), 9)
	if !model.HasCode(err, model.ErrCodeUnauthorized) {
		t.Errorf("error = %v, want UNAUTHORIZED", err)
	}
	if strings.Contains(err.Error(), "9") {
		t.Errorf("error message should not echo the user id: %q", err.Error())
	}
}
