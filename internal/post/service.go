// Package post は外部カタログのアイテムを共有する投稿を管理する。
package post

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/BrieHudson/Capstone-1-Muse/internal/model"
	"github.com/BrieHudson/Capstone-1-Muse/internal/repository"
	"github.com/BrieHudson/Capstone-1-Muse/internal/security"
)

// 一覧取得のページサイズ
const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ItemFetcher は外部カタログからアイテムの詳細を取得する。
type ItemFetcher interface {
	FetchItem(ctx context.Context, itemID string, itemType model.ItemType) (*model.CatalogItem, error)
}

// UserFinder はユーザーの存在確認に使う。
type UserFinder interface {
	FindByID(ctx context.Context, id int64) (*model.User, error)
}

// CreatePostInput は投稿作成の入力値。
// ArtistName と Caption は任意、ItemType は未指定ならtrackとして扱う。
type CreatePostInput struct {
	AuthorID         int64
	ExternalItemID   string
	ExternalItemName string
	ArtistName       string
	Caption          string
	ItemType         model.ItemType
}

// Service は投稿の作成・削除・一覧取得のサービス層。
type Service struct {
	posts     repository.PostRepository
	users     UserFinder
	catalog   ItemFetcher
	sanitizer security.TextSanitizer
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(posts repository.PostRepository, users UserFinder, catalog ItemFetcher, sanitizer security.TextSanitizer) *Service {
	return &Service{
		posts:     posts,
		users:     users,
		catalog:   catalog,
		sanitizer: sanitizer,
	}
}

// CreatePost は投稿を作成する。
// アイテムのIDと名前は必須で、キャプションはマークアップ除去後に文字数を検証する。
func (s *Service) CreatePost(ctx context.Context, in CreatePostInput) (*model.Post, error) {
	in.ExternalItemID = strings.TrimSpace(in.ExternalItemID)
	in.ExternalItemName = strings.TrimSpace(in.ExternalItemName)
	if in.ExternalItemID == "" || in.ExternalItemName == "" {
		return nil, model.NewMissingItemError()
	}

	if in.ItemType == "" {
		in.ItemType = model.ItemTypeTrack
	}
	if !in.ItemType.Valid() {
		return nil, model.NewInvalidItemTypeError(string(in.ItemType))
	}

	caption := s.sanitizer.Sanitize(in.Caption)
	if utf8.RuneCountInString(caption) > model.MaxCaptionLength {
		return nil, model.NewCaptionTooLongError(model.MaxCaptionLength)
	}

	p := &model.Post{
		AuthorID:         in.AuthorID,
		ExternalItemID:   in.ExternalItemID,
		ExternalItemName: in.ExternalItemName,
		ArtistName:       strings.TrimSpace(in.ArtistName),
		ItemType:         in.ItemType,
		Caption:          caption,
	}
	if err := s.posts.Create(ctx, p); err != nil {
		switch {
		case errors.Is(err, repository.ErrReferenceNotFound):
			return nil, model.NewUserNotFoundError()
		case errors.Is(err, repository.ErrCheckViolation):
			return nil, model.NewValidationError("投稿内容が制約を満たしていません")
		}
		return nil, fmt.Errorf("投稿の作成に失敗しました: %w", err)
	}

	slog.Info("投稿を作成しました",
		slog.Int64("post_id", p.ID),
		slog.Int64("author_id", p.AuthorID),
		slog.String("item_type", string(p.ItemType)),
	)
	return p, nil
}

// PublishItem は外部カタログからアイテム名とアーティスト名を解決して投稿を作成する。
// カタログのエラーはそのまま返す。
func (s *Service) PublishItem(ctx context.Context, authorID int64, itemID string, itemType model.ItemType, caption string) (*model.Post, error) {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return nil, model.NewMissingItemError()
	}
	if itemType == "" {
		itemType = model.ItemTypeTrack
	}
	if !itemType.Valid() {
		return nil, model.NewInvalidItemTypeError(string(itemType))
	}

	item, err := s.catalog.FetchItem(ctx, itemID, itemType)
	if err != nil {
		return nil, err
	}

	return s.CreatePost(ctx, CreatePostInput{
		AuthorID:         authorID,
		ExternalItemID:   item.ID,
		ExternalItemName: item.Name,
		ArtistName:       item.Artist,
		Caption:          caption,
		ItemType:         itemType,
	})
}

// GetPost は指定IDの投稿を取得する。存在しない場合はPOST_NOT_FOUNDを返す。
func (s *Service) GetPost(ctx context.Context, postID int64) (*model.Post, error) {
	p, err := s.posts.FindByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("投稿の取得に失敗しました: %w", err)
	}
	if p == nil {
		return nil, model.NewPostNotFoundError(postID)
	}
	return p, nil
}

// DeletePost は投稿を削除する。投稿者本人以外はFORBIDDENを返す。
// いいねとコメントは同じトランザクションで削除される。
func (s *Service) DeletePost(ctx context.Context, postID, requesterID int64) error {
	p, err := s.GetPost(ctx, postID)
	if err != nil {
		return err
	}
	if p.AuthorID != requesterID {
		return model.NewForbiddenError("投稿者本人のみ削除できます")
	}

	deleted, err := s.posts.Delete(ctx, postID, requesterID)
	if err != nil {
		return fmt.Errorf("投稿の削除に失敗しました: %w", err)
	}
	// 確認後に別のリクエストが先に削除した場合
	if !deleted {
		return model.NewPostNotFoundError(postID)
	}

	slog.Info("投稿を削除しました",
		slog.Int64("post_id", postID),
		slog.Int64("author_id", requesterID),
	)
	return nil
}

// PostsByAuthor はユーザーの投稿を新しい順に返す。
// ユーザーが存在しない場合はUSER_NOT_FOUNDを返す。
func (s *Service) PostsByAuthor(ctx context.Context, authorID int64, cursor string, limit int) (*model.PostPage, error) {
	return s.page(ctx, authorID, cursor, limit, func(c model.Cursor, n int) ([]model.Post, error) {
		return s.posts.ListByAuthors(ctx, []int64{authorID}, c, n)
	})
}

// LikedPosts はユーザーがいいねした投稿を新しい順に返す。
// ユーザーが存在しない場合はUSER_NOT_FOUNDを返す。
func (s *Service) LikedPosts(ctx context.Context, userID int64, cursor string, limit int) (*model.PostPage, error) {
	return s.page(ctx, userID, cursor, limit, func(c model.Cursor, n int) ([]model.Post, error) {
		return s.posts.ListLikedBy(ctx, userID, c, n)
	})
}

func (s *Service) page(ctx context.Context, userID int64, rawCursor string, limit int, fetch func(model.Cursor, int) ([]model.Post, error)) (*model.PostPage, error) {
	cursor, err := model.DecodeCursor(rawCursor)
	if err != nil {
		return nil, model.NewInvalidCursorError()
	}
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if u == nil {
		return nil, model.NewUserNotFoundError()
	}
	limit = model.ClampLimit(limit, defaultPageSize, maxPageSize)

	posts, err := fetch(cursor, limit+1)
	if err != nil {
		return nil, fmt.Errorf("投稿一覧の取得に失敗しました: %w", err)
	}

	page := &model.PostPage{Posts: posts}
	if len(posts) > limit {
		page.Posts = posts[:limit]
		page.HasMore = true
		last := page.Posts[limit-1]
		page.NextCursor = model.Cursor{Time: last.CreatedAt, ID: last.ID}.Encode()
	}
	if page.Posts == nil {
		page.Posts = []model.Post{}
	}
	return page, nil
}
