// Package graph はユーザー間のフォロー関係（ソーシャルグラフ）を管理する。
package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/BrieHudson/Capstone-1-Muse/internal/model"
	"github.com/BrieHudson/Capstone-1-Muse/internal/repository"
)

// 一覧取得のページサイズ
const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Service はフォロー・フォロー解除と一覧取得のサービス層。
type Service struct {
	follows repository.FollowRepository
	users   repository.UserRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(follows repository.FollowRepository, users repository.UserRepository) *Service {
	return &Service{follows: follows, users: users}
}

// Follow はfollowerがfollowedをフォローする。
// 自分自身のフォローはSELF_FOLLOW、既にフォロー済みの場合はALREADY_FOLLOWINGを返す。
func (s *Service) Follow(ctx context.Context, followerID, followedID int64) error {
	if followerID == followedID {
		return model.NewSelfFollowError()
	}

	created, err := s.follows.Create(ctx, followerID, followedID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrReferenceNotFound):
			return model.NewUserNotFoundError()
		case errors.Is(err, repository.ErrCheckViolation):
			return model.NewSelfFollowError()
		}
		return fmt.Errorf("フォローに失敗しました: %w", err)
	}
	if !created {
		return model.NewAlreadyFollowingError()
	}

	slog.Info("ユーザーをフォローしました",
		slog.Int64("follower_id", followerID),
		slog.Int64("followed_id", followedID),
	)
	return nil
}

// Unfollow はフォロー関係を解除する。フォローしていない場合はNOT_FOLLOWINGを返す。
func (s *Service) Unfollow(ctx context.Context, followerID, followedID int64) error {
	deleted, err := s.follows.Delete(ctx, followerID, followedID)
	if err != nil {
		return fmt.Errorf("フォロー解除に失敗しました: %w", err)
	}
	if !deleted {
		return model.NewNotFollowingError()
	}

	slog.Info("フォローを解除しました",
		slog.Int64("follower_id", followerID),
		slog.Int64("followed_id", followedID),
	)
	return nil
}

// IsFollowing はaがbをフォローしているかを返す。
func (s *Service) IsFollowing(ctx context.Context, a, b int64) (bool, error) {
	ok, err := s.follows.Exists(ctx, a, b)
	if err != nil {
		return false, fmt.Errorf("フォロー状態の取得に失敗しました: %w", err)
	}
	return ok, nil
}

// FollowedIDs はuserIDがフォローしているユーザーIDを返す。
func (s *Service) FollowedIDs(ctx context.Context, userID int64) ([]int64, error) {
	ids, err := s.follows.FollowedIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("フォロー中ユーザーの取得に失敗しました: %w", err)
	}
	return ids, nil
}

// FollowerCount はuserIDのフォロワー数を返す。
func (s *Service) FollowerCount(ctx context.Context, userID int64) (int, error) {
	u, err := s.user(ctx, userID)
	if err != nil {
		return 0, err
	}
	return u.FollowerCount, nil
}

// FollowingCount はuserIDがフォローしている数を返す。
func (s *Service) FollowingCount(ctx context.Context, userID int64) (int, error) {
	u, err := s.user(ctx, userID)
	if err != nil {
		return 0, err
	}
	return u.FollowingCount, nil
}

// ListFollowers はuserIDのフォロワーをフォローされた日時の新しい順に返す。
func (s *Service) ListFollowers(ctx context.Context, userID int64, cursor string, limit int) (*model.FollowPage, error) {
	return s.list(ctx, userID, cursor, limit, s.follows.ListFollowers)
}

// ListFollowing はuserIDがフォローしているユーザーをフォローした日時の新しい順に返す。
func (s *Service) ListFollowing(ctx context.Context, userID int64, cursor string, limit int) (*model.FollowPage, error) {
	return s.list(ctx, userID, cursor, limit, s.follows.ListFollowing)
}

type listFunc func(ctx context.Context, userID int64, cursor model.Cursor, limit int) ([]model.FollowListEntry, error)

func (s *Service) list(ctx context.Context, userID int64, rawCursor string, limit int, fetch listFunc) (*model.FollowPage, error) {
	cursor, err := model.DecodeCursor(rawCursor)
	if err != nil {
		return nil, model.NewInvalidCursorError()
	}
	if _, err := s.user(ctx, userID); err != nil {
		return nil, err
	}
	limit = model.ClampLimit(limit, defaultPageSize, maxPageSize)

	// 次ページの有無を判定するため1件多く取得する
	entries, err := fetch(ctx, userID, cursor, limit+1)
	if err != nil {
		return nil, fmt.Errorf("フォロー一覧の取得に失敗しました: %w", err)
	}

	page := &model.FollowPage{Users: entries}
	if len(entries) > limit {
		page.Users = entries[:limit]
		page.HasMore = true
		last := page.Users[limit-1]
		page.NextCursor = model.Cursor{Time: last.FollowedAt, ID: last.EdgeID}.Encode()
	}
	if page.Users == nil {
		page.Users = []model.FollowListEntry{}
	}
	return page, nil
}

func (s *Service) user(ctx context.Context, userID int64) (*model.User, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if u == nil {
		return nil, model.NewUserNotFoundError()
	}
	return u, nil
}
