package post

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/BrieHudson/Capstone-1-Muse/internal/model"
	"github.com/BrieHudson/Capstone-1-Muse/internal/repository"
	"github.com/BrieHudson/Capstone-1-Muse/internal/security"
)

// --- モック定義 ---

type mockPostRepo struct {
	createFn        func(ctx context.Context, p *model.Post) error
	findByIDFn      func(ctx context.Context, id int64) (*model.Post, error)
	listByAuthorsFn func(ctx context.Context, authorIDs []int64, cursor model.Cursor, limit int) ([]model.Post, error)
	listLikedByFn   func(ctx context.Context, userID int64, cursor model.Cursor, limit int) ([]model.Post, error)
	deleteFn        func(ctx context.Context, postID, actorID int64) (bool, error)
}

func (m *mockPostRepo) Create(ctx context.Context, p *model.Post) error {
	if m.createFn != nil {
		return m.createFn(ctx, p)
	}
	p.ID = 1
	return nil
}
func (m *mockPostRepo) FindByID(ctx context.Context, id int64) (*model.Post, error) {
	return m.findByIDFn(ctx, id)
}
func (m *mockPostRepo) ListByAuthors(ctx context.Context, authorIDs []int64, cursor model.Cursor, limit int) ([]model.Post, error) {
	return m.listByAuthorsFn(ctx, authorIDs, cursor, limit)
}
func (m *mockPostRepo) ListLikedBy(ctx context.Context, userID int64, cursor model.Cursor, limit int) ([]model.Post, error) {
	return m.listLikedByFn(ctx, userID, cursor, limit)
}
func (m *mockPostRepo) CountByAuthor(ctx context.Context, authorID int64) (int, error) {
	return 0, nil
}
func (m *mockPostRepo) Delete(ctx context.Context, postID, actorID int64) (bool, error) {
	return m.deleteFn(ctx, postID, actorID)
}

type mockCatalog struct {
	fetchFn func(ctx context.Context, itemID string, itemType model.ItemType) (*model.CatalogItem, error)
}

func (m *mockCatalog) FetchItem(ctx context.Context, itemID string, itemType model.ItemType) (*model.CatalogItem, error) {
	return m.fetchFn(ctx, itemID, itemType)
}

type mockUserFinder struct {
	findByIDFn func(ctx context.Context, id int64) (*model.User, error)
}

func (m *mockUserFinder) FindByID(ctx context.Context, id int64) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return &model.User{ID: id, Username: "alice"}, nil
}

func newService(repo *mockPostRepo, catalog *mockCatalog) *Service {
	if catalog == nil {
		catalog = &mockCatalog{}
	}
	return NewService(repo, &mockUserFinder{}, catalog, security.NewTextSanitizer())
}

// --- CreatePost ---

func TestService_CreatePost_Success(t *testing.T) {
	var stored *model.Post
	repo := &mockPostRepo{
		createFn: func(ctx context.Context, p *model.Post) error {
			p.ID = 10
			stored = p
			return nil
		},
	}
	svc := newService(repo, nil)

	p, err := svc.CreatePost(context.Background(), CreatePostInput{
		AuthorID:         3,
		ExternalItemID:   "4uLU6hMCjMI75M1A2tKUQC",
		ExternalItemName: "Never Gonna Give You Up",
		ArtistName:       "Rick Astley",
		Caption:          "<i>classic</i>",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID != 10 {
		t.Errorf("ID = %d, want 10", p.ID)
	}
	if stored.ItemType != model.ItemTypeTrack {
		t.Errorf("ItemType = %q, want default track", stored.ItemType)
	}
	if stored.Caption != "classic" {
		t.Errorf("Caption = %q, want sanitized text", stored.Caption)
	}
}

func TestService_CreatePost_Validation(t *testing.T) {
	valid := CreatePostInput{AuthorID: 1, ExternalItemID: "id", ExternalItemName: "name"}

	tests := []struct {
		name   string
		mutate func(in *CreatePostInput)
		want   string
	}{
		{"IDなし", func(in *CreatePostInput) { in.ExternalItemID = " " }, model.ErrCodeMissingItem},
		{"名前なし", func(in *CreatePostInput) { in.ExternalItemName = "" }, model.ErrCodeMissingItem},
		{"不明な種別", func(in *CreatePostInput) { in.ItemType = "album" }, model.ErrCodeInvalidItemType},
		{"長すぎるキャプション", func(in *CreatePostInput) {
			in.Caption = strings.Repeat("a", model.MaxCaptionLength+1)
		}, model.ErrCodeCaptionTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockPostRepo{
				createFn: func(ctx context.Context, p *model.Post) error {
					t.Fatal("Create should not be called")
					return nil
				},
			}
			in := valid
			tt.mutate(&in)
			_, err := newService(repo, nil).CreatePost(context.Background(), in)
			if !model.HasCode(err, tt.want) {
				t.Errorf("error = %v, want %s", err, tt.want)
			}
		})
	}
}

// TestService_CreatePost_CaptionMeasuredAfterSanitize はタグを除いた文字数で判定することを検証する。
func TestService_CreatePost_CaptionMeasuredAfterSanitize(t *testing.T) {
	svc := newService(&mockPostRepo{}, nil)
	caption := "<b>" + strings.Repeat("é", model.MaxCaptionLength) + "</b>"
	_, err := svc.CreatePost(context.Background(), CreatePostInput{
		AuthorID: 1, ExternalItemID: "id", ExternalItemName: "name", Caption: caption,
	})
	if err != nil {
		t.Errorf("280 runes of text inside markup should be accepted: %v", err)
	}
}

func TestService_CreatePost_UnknownAuthor(t *testing.T) {
	repo := &mockPostRepo{
		createFn: func(ctx context.Context, p *model.Post) error {
			return &repository.ConstraintError{Kind: repository.ErrReferenceNotFound}
		},
	}
	_, err := newService(repo, nil).CreatePost(context.Background(), CreatePostInput{
		AuthorID: 404, ExternalItemID: "id", ExternalItemName: "name",
	})
	if !model.HasCode(err, model.ErrCodeUserNotFound) {
		t.Errorf("error = %v, want USER_NOT_FOUND", err)
	}
}

// --- PublishItem ---

func TestService_PublishItem(t *testing.T) {
	var stored *model.Post
	repo := &mockPostRepo{
		createFn: func(ctx context.Context, p *model.Post) error {
			stored = p
			return nil
		},
	}
	catalog := &mockCatalog{
		fetchFn: func(ctx context.Context, itemID string, itemType model.ItemType) (*model.CatalogItem, error) {
			if itemID == "missing" {
				return nil, model.NewCatalogItemNotFoundError(string(itemType), itemID)
			}
			return &model.CatalogItem{ID: itemID, Name: "Road Trip", Type: itemType}, nil
		},
	}
	svc := newService(repo, catalog)

	if _, err := svc.PublishItem(context.Background(), 2, "pl1", model.ItemTypePlaylist, "for the drive"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored.ExternalItemName != "Road Trip" || stored.ItemType != model.ItemTypePlaylist || stored.ArtistName != "" {
		t.Errorf("stored post = %+v", stored)
	}

	_, err := svc.PublishItem(context.Background(), 2, "missing", model.ItemTypeTrack, "")
	if !model.HasCode(err, model.ErrCodeCatalogItemNotFound) {
		t.Errorf("error = %v, want CATALOG_ITEM_NOT_FOUND", err)
	}
	if _, err := svc.PublishItem(context.Background(), 2, "x", "episode", ""); !model.HasCode(err, model.ErrCodeInvalidItemType) {
		t.Errorf("error = %v, want INVALID_ITEM_TYPE", err)
	}
}

// --- DeletePost ---

func TestService_DeletePost(t *testing.T) {
	post := &model.Post{ID: 5, AuthorID: 1}

	tests := []struct {
		name      string
		requester int64
		found     bool
		deleted   bool
		want      string
	}{
		{"投稿者本人", 1, true, true, ""},
		{"他のユーザー", 2, true, true, model.ErrCodeForbidden},
		{"存在しない", 1, false, false, model.ErrCodePostNotFound},
		{"同時に削除された", 1, true, false, model.ErrCodePostNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deleteCalls := 0
			repo := &mockPostRepo{
				findByIDFn: func(ctx context.Context, id int64) (*model.Post, error) {
					if !tt.found {
						return nil, nil
					}
					return post, nil
				},
				deleteFn: func(ctx context.Context, postID, actorID int64) (bool, error) {
					deleteCalls++
					return tt.deleted, nil
				},
			}
			err := newService(repo, nil).DeletePost(context.Background(), 5, tt.requester)
			if tt.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
			} else if !model.HasCode(err, tt.want) {
				t.Fatalf("error = %v, want %s", err, tt.want)
			}
			if tt.want == model.ErrCodeForbidden && deleteCalls != 0 {
				t.Error("Delete must not be called for a non-author")
			}
		})
	}
}

// --- 一覧 ---

func makePosts(n int) []model.Post {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	posts := make([]model.Post, n)
	for i := range posts {
		posts[i] = model.Post{ID: int64(n - i), CreatedAt: base.Add(-time.Duration(i) * time.Hour)}
	}
	return posts
}

func TestService_PostsByAuthor_Paging(t *testing.T) {
	var gotAuthors []int64
	var gotLimit int
	repo := &mockPostRepo{
		listByAuthorsFn: func(ctx context.Context, authorIDs []int64, cursor model.Cursor, limit int) ([]model.Post, error) {
			gotAuthors, gotLimit = authorIDs, limit
			return makePosts(limit), nil
		},
	}
	page, err := newService(repo, nil).PostsByAuthor(context.Background(), 9, "", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(gotAuthors) != 1 || gotAuthors[0] != 9 {
		t.Errorf("authors = %v, want [9]", gotAuthors)
	}
	if gotLimit != defaultPageSize+1 {
		t.Errorf("limit = %d, want %d", gotLimit, defaultPageSize+1)
	}
	if len(page.Posts) != defaultPageSize || !page.HasMore {
		t.Fatalf("page = %d posts, hasMore=%v", len(page.Posts), page.HasMore)
	}

	c, err := model.DecodeCursor(page.NextCursor)
	if err != nil {
		t.Fatal(err)
	}
	last := page.Posts[len(page.Posts)-1]
	if c.ID != last.ID || !c.Time.Equal(last.CreatedAt) {
		t.Errorf("cursor = %+v, want last post (%d, %v)", c, last.ID, last.CreatedAt)
	}
}

func TestService_LikedPosts(t *testing.T) {
	repo := &mockPostRepo{
		listLikedByFn: func(ctx context.Context, userID int64, cursor model.Cursor, limit int) ([]model.Post, error) {
			return makePosts(2), nil
		},
	}
	svc := newService(repo, nil)

	page, err := svc.LikedPosts(context.Background(), 1, "", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Posts) != 2 || page.HasMore || page.NextCursor != "" {
		t.Errorf("page = %+v", page)
	}
	if _, err := svc.LikedPosts(context.Background(), 1, "%%%", 5); !model.HasCode(err, model.ErrCodeInvalidCursor) {
		t.Errorf("error = %v, want INVALID_CURSOR", err)
	}
}

// TestService_UserListings_UnknownUser は存在しないユーザーの一覧取得がUSER_NOT_FOUNDになることを検証する。
func TestService_UserListings_UnknownUser(t *testing.T) {
	repo := &mockPostRepo{
		listByAuthorsFn: func(ctx context.Context, authorIDs []int64, cursor model.Cursor, limit int) ([]model.Post, error) {
			t.Error("ListByAuthors should not be called")
			return nil, nil
		},
		listLikedByFn: func(ctx context.Context, userID int64, cursor model.Cursor, limit int) ([]model.Post, error) {
			t.Error("ListLikedBy should not be called")
			return nil, nil
		},
	}
	users := &mockUserFinder{
		findByIDFn: func(ctx context.Context, id int64) (*model.User, error) { return nil, nil },
	}
	svc := NewService(repo, users, &mockCatalog{}, security.NewTextSanitizer())

	if _, err := svc.PostsByAuthor(context.Background(), 404, "", 10); !model.HasCode(err, model.ErrCodeUserNotFound) {
		t.Errorf("PostsByAuthor error = %v, want USER_NOT_FOUND", err)
	}
	if _, err := svc.LikedPosts(context.Background(), 404, "", 10); !model.HasCode(err, model.ErrCodeUserNotFound) {
		t.Errorf("LikedPosts error = %v, want USER_NOT_FOUND", err)
	}
}
