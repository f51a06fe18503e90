// Package interaction は投稿へのいいねとコメントを管理する。
package interaction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/BrieHudson/Capstone-1-Muse/internal/model"
	"github.com/BrieHudson/Capstone-1-Muse/internal/repository"
	"github.com/BrieHudson/Capstone-1-Muse/internal/security"
)

// PostFinder は投稿の存在確認に使う。
type PostFinder interface {
	FindByID(ctx context.Context, id int64) (*model.Post, error)
}

// Service はいいね・コメントのサービス層。
type Service struct {
	likes     repository.LikeRepository
	comments  repository.CommentRepository
	posts     PostFinder
	sanitizer security.TextSanitizer
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	likes repository.LikeRepository,
	comments repository.CommentRepository,
	posts PostFinder,
	sanitizer security.TextSanitizer,
) *Service {
	return &Service{
		likes:     likes,
		comments:  comments,
		posts:     posts,
		sanitizer: sanitizer,
	}
}

// Like は投稿にいいねする。
// 既にいいね済みの場合はALREADY_LIKED、投稿が存在しない場合はPOST_NOT_FOUNDを返す。
func (s *Service) Like(ctx context.Context, userID, postID int64) error {
	created, err := s.likes.Create(ctx, userID, postID)
	if err != nil {
		if errors.Is(err, repository.ErrReferenceNotFound) {
			return model.NewPostNotFoundError(postID)
		}
		return fmt.Errorf("いいねに失敗しました: %w", err)
	}
	if !created {
		return model.NewAlreadyLikedError()
	}

	slog.Debug("投稿にいいねしました",
		slog.Int64("user_id", userID),
		slog.Int64("post_id", postID),
	)
	return nil
}

// Unlike はいいねを取り消す。いいねしていない場合はNOT_LIKEDを返す。
func (s *Service) Unlike(ctx context.Context, userID, postID int64) error {
	deleted, err := s.likes.Delete(ctx, userID, postID)
	if err != nil {
		return fmt.Errorf("いいねの取り消しに失敗しました: %w", err)
	}
	if !deleted {
		return model.NewNotLikedError()
	}
	return nil
}

// HasLiked はユーザーが投稿にいいねしているかを返す。
func (s *Service) HasLiked(ctx context.Context, userID, postID int64) (bool, error) {
	ok, err := s.likes.Exists(ctx, userID, postID)
	if err != nil {
		return false, fmt.Errorf("いいね状態の取得に失敗しました: %w", err)
	}
	return ok, nil
}

// LikedPostIDs はpostIDsのうちユーザーがいいねしている投稿IDの集合を返す。
func (s *Service) LikedPostIDs(ctx context.Context, userID int64, postIDs []int64) (map[int64]bool, error) {
	if len(postIDs) == 0 {
		return map[int64]bool{}, nil
	}
	liked, err := s.likes.LikedPostIDs(ctx, userID, postIDs)
	if err != nil {
		return nil, fmt.Errorf("いいね状態の取得に失敗しました: %w", err)
	}
	return liked, nil
}

// AddComment は投稿にコメントを追加する。
// 本文はマークアップを除去してから検証し、空ならEMPTY_CONTENTを返す。
func (s *Service) AddComment(ctx context.Context, userID, postID int64, content string) (*model.Comment, error) {
	content = s.sanitizer.Sanitize(content)
	if content == "" {
		return nil, model.NewEmptyContentError()
	}
	if utf8.RuneCountInString(content) > model.MaxCommentLength {
		return nil, model.NewValidationError(fmt.Sprintf("コメントは%d文字以内で入力してください", model.MaxCommentLength))
	}

	c := &model.Comment{
		PostID:   postID,
		AuthorID: userID,
		Content:  content,
	}
	if err := s.comments.Create(ctx, c); err != nil {
		if errors.Is(err, repository.ErrReferenceNotFound) {
			return nil, model.NewPostNotFoundError(postID)
		}
		return nil, fmt.Errorf("コメントの作成に失敗しました: %w", err)
	}

	slog.Info("コメントを追加しました",
		slog.Int64("comment_id", c.ID),
		slog.Int64("post_id", postID),
		slog.Int64("user_id", userID),
	)
	return c, nil
}

// CommentsForPost は投稿のコメントを古い順に返す。
func (s *Service) CommentsForPost(ctx context.Context, postID int64) ([]model.Comment, error) {
	p, err := s.posts.FindByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("投稿の取得に失敗しました: %w", err)
	}
	if p == nil {
		return nil, model.NewPostNotFoundError(postID)
	}

	comments, err := s.comments.ListByPost(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("コメントの取得に失敗しました: %w", err)
	}
	if comments == nil {
		comments = []model.Comment{}
	}
	return comments, nil
}
