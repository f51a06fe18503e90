// Package auth はユーザー登録・ログインとアクセストークンの発行を提供する。
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BrieHudson/Capstone-1-Muse/internal/model"
	"github.com/BrieHudson/Capstone-1-Muse/internal/user"
)

// Identity はユーザー登録と認証を行うストア。
type Identity interface {
	Register(ctx context.Context, in user.RegisterInput) (*model.User, error)
	Authenticate(ctx context.Context, username, password string) (*model.User, error)
	FindByID(ctx context.Context, userID int64) (*model.User, error)
}

// Session はログイン結果（ユーザーとアクセストークン）を表す。
type Session struct {
	User      *model.User
	Token     string
	ExpiresAt time.Time
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	identity Identity
	issuer   *TokenIssuer
}

// NewService はServiceを生成する。
func NewService(identity Identity, issuer *TokenIssuer) *Service {
	return &Service{identity: identity, issuer: issuer}
}

// Signup はユーザーを登録し、そのままログイン状態のトークンを発行する。
func (s *Service) Signup(ctx context.Context, in user.RegisterInput) (*Session, error) {
	u, err := s.identity.Register(ctx, in)
	if err != nil {
		return nil, err
	}
	return s.issue(u)
}

// Login はユーザー名とパスワードを検証し、トークンを発行する。
func (s *Service) Login(ctx context.Context, username, password string) (*Session, error) {
	u, err := s.identity.Authenticate(ctx, username, password)
	if err != nil {
		return nil, err
	}
	slog.Info("user logged in", slog.Int64("user_id", u.ID))
	return s.issue(u)
}

// CurrentUser はトークンのユーザーを取得する。
func (s *Service) CurrentUser(ctx context.Context, userID int64) (*model.User, error) {
	u, err := s.identity.FindByID(ctx, userID)
	if err != nil {
		if model.HasCode(err, model.ErrCodeUserNotFound) {
			return nil, model.NewUnauthorizedError()
		}
		return nil, err
	}
	return u, nil
}

// VerifyToken はトークンを検証してユーザーIDを返す。不正なトークンはUNAUTHORIZEDを返す。
func (s *Service) VerifyToken(token string) (int64, error) {
	userID, err := s.issuer.Parse(token)
	if err != nil {
		return 0, model.NewUnauthorizedError()
	}
	return userID, nil
}

func (s *Service) issue(u *model.User) (*Session, error) {
	token, expiresAt, err := s.issuer.Issue(u.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return &Session{User: u, Token: token, ExpiresAt: expiresAt}, nil
}
