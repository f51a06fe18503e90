package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/BrieHudson/Capstone-1-Muse/internal/model"
)

func TestUserHandler_Search(t *testing.T) {
	d := newTestDeps()
	d.users.searchFn = func(ctx context.Context, query string, limit int) ([]model.User, error) {
		if query != "ali" || limit != 5 {
			t.Errorf("query=%q limit=%d", query, limit)
		}
		return []model.User{{ID: 1, Username: "alice", Email: "alice@example.com"}}, nil
	}

	w := do(t, d.router(t), http.MethodGet, "/api/users/search?q=ali&limit=5", "token-1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp struct {
		Users []map[string]any `json:"users"`
	}
	decodeBody(t, w, &resp)
	if len(resp.Users) != 1 || resp.Users[0]["username"] != "alice" {
		t.Fatalf("users = %v", resp.Users)
	}
	if _, ok := resp.Users[0]["email"]; ok {
		t.Error("search results must not expose email")
	}
}

func TestUserHandler_Profile(t *testing.T) {
	d := newTestDeps()
	d.users.profileFn = func(ctx context.Context, userID int64) (*model.UserProfile, error) {
		if userID == 404 {
			return nil, model.NewUserNotFoundError()
		}
		return &model.UserProfile{
			User:       model.User{ID: userID, Username: "bob", FollowerCount: 3, FollowingCount: 1},
			PostCount:  7,
			LikedCount: 2,
		}, nil
	}
	d.graph.isFollowingFn = func(ctx context.Context, a, b int64) (bool, error) {
		return a == 1 && b == 2, nil
	}
	h := d.router(t)

	w := do(t, h, http.MethodGet, "/api/users/2", "token-1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var p profileResponse
	decodeBody(t, w, &p)
	if p.PostCount != 7 || p.LikedCount != 2 || p.FollowerCount != 3 {
		t.Errorf("profile = %+v", p)
	}
	if p.IsFollowing == nil || !*p.IsFollowing {
		t.Errorf("is_following = %v, want true", p.IsFollowing)
	}

	// 本人のプロフィールにはis_followingを含めない
	w = do(t, h, http.MethodGet, "/api/users/1", "token-1", "")
	var self profileResponse
	decodeBody(t, w, &self)
	if self.IsFollowing != nil {
		t.Error("is_following should be omitted for own profile")
	}

	assertError(t, do(t, h, http.MethodGet, "/api/users/404", "token-1", ""), http.StatusNotFound, model.ErrCodeUserNotFound)
	assertError(t, do(t, h, http.MethodGet, "/api/users/abc", "token-1", ""), http.StatusNotFound, model.ErrCodeUserNotFound)
}

func TestUserHandler_FollowLists(t *testing.T) {
	d := newTestDeps()
	d.graph.listFollowersFn = func(ctx context.Context, userID int64, cursor string, limit int) (*model.FollowPage, error) {
		if userID != 2 || cursor != "abc" || limit != 10 {
			t.Errorf("args = %d %q %d", userID, cursor, limit)
		}
		return &model.FollowPage{
			Users:      []model.FollowListEntry{{EdgeID: 5, UserID: 1, Username: "alice", FollowedAt: testTime}},
			NextCursor: "next",
			HasMore:    true,
		}, nil
	}
	d.graph.listFollowingFn = func(ctx context.Context, userID int64, cursor string, limit int) (*model.FollowPage, error) {
		return nil, model.NewInvalidCursorError()
	}
	h := d.router(t)

	w := do(t, h, http.MethodGet, "/api/users/2/followers?cursor=abc&limit=10", "token-1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp followListResponse
	decodeBody(t, w, &resp)
	if len(resp.Users) != 1 || resp.Users[0].Username != "alice" || resp.NextCursor != "next" || !resp.HasMore {
		t.Errorf("resp = %+v", resp)
	}

	assertError(t, do(t, h, http.MethodGet, "/api/users/2/following?cursor=bad", "token-1", ""),
		http.StatusBadRequest, model.ErrCodeInvalidCursor)
}

func TestUserHandler_PostLists(t *testing.T) {
	d := newTestDeps()
	d.posts.postsByAuthorFn = func(ctx context.Context, authorID int64, cursor string, limit int) (*model.PostPage, error) {
		return &model.PostPage{Posts: []model.Post{{ID: 9, AuthorID: authorID, ItemType: model.ItemTypeTrack}}}, nil
	}
	d.posts.likedPostsFn = func(ctx context.Context, userID int64, cursor string, limit int) (*model.PostPage, error) {
		return &model.PostPage{Posts: []model.Post{}}, nil
	}
	h := d.router(t)

	w := do(t, h, http.MethodGet, "/api/users/2/posts", "token-1", "")
	var posts postListResponse
	decodeBody(t, w, &posts)
	if len(posts.Posts) != 1 || posts.Posts[0].ID != 9 || posts.Posts[0].ItemType != "track" {
		t.Errorf("posts = %+v", posts)
	}

	w = do(t, h, http.MethodGet, "/api/users/2/likes", "token-1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var likes map[string]any
	decodeBody(t, w, &likes)
	if arr, ok := likes["posts"].([]any); !ok || len(arr) != 0 {
		t.Errorf("empty list should be encoded as [], got %v", likes["posts"])
	}
}

func TestUserHandler_FollowAndUnfollow(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		path       string
		err        error
		wantStatus int
		wantResult string
	}{
		{"フォロー成功", http.MethodPost, "/api/users/2/follow", nil, http.StatusNoContent, "follow:ok"},
		{"自分をフォロー", http.MethodPost, "/api/users/1/follow", model.NewSelfFollowError(), http.StatusBadRequest, "follow:SELF_FOLLOW"},
		{"フォロー済み", http.MethodPost, "/api/users/2/follow", model.NewAlreadyFollowingError(), http.StatusConflict, "follow:ALREADY_FOLLOWING"},
		{"存在しないユーザー", http.MethodPost, "/api/users/9/follow", model.NewUserNotFoundError(), http.StatusNotFound, "follow:USER_NOT_FOUND"},
		{"フォロー解除", http.MethodDelete, "/api/users/2/follow", nil, http.StatusNoContent, "unfollow:ok"},
		{"未フォローの解除", http.MethodDelete, "/api/users/2/follow", model.NewNotFollowingError(), http.StatusNotFound, "unfollow:NOT_FOLLOWING"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDeps()
			action := func(ctx context.Context, followerID, followedID int64) error {
				if followerID != 1 {
					t.Errorf("followerID = %d, want 1 (from token)", followerID)
				}
				return tt.err
			}
			d.graph.followFn = action
			d.graph.unfollowFn = action

			w := do(t, d.router(t), tt.method, tt.path, "token-1", "")
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if len(d.recorder.calls) != 1 || d.recorder.calls[0] != tt.wantResult {
				t.Errorf("recorded = %v, want [%s]", d.recorder.calls, tt.wantResult)
			}
		})
	}
}

func TestUserHandler_ChangePassword(t *testing.T) {
	d := newTestDeps()
	d.users.changePasswordFn = func(ctx context.Context, userID int64, current, next string) error {
		if userID != 1 {
			t.Errorf("userID = %d", userID)
		}
		if current != "old-pass" {
			return model.NewAuthFailedError()
		}
		return nil
	}
	h := d.router(t)

	w := do(t, h, http.MethodPut, "/api/users/me/password", "token-1", `{"current_password":"old-pass","new_password":"new-pass"}`)
	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}

	w = do(t, h, http.MethodPut, "/api/users/me/password", "token-1", `{"current_password":"nope","new_password":"new-pass"}`)
	assertError(t, w, http.StatusUnauthorized, model.ErrCodeAuthFailed)
}
