package repository

import (
	"context"
	"testing"
)

// 各PostgreSQLリポジトリがインターフェースを満たすことを検証
func TestPostgresRepos_ImplementInterfaces(t *testing.T) {
	var _ UserRepository = (*PostgresUserRepo)(nil)
	var _ FollowRepository = (*PostgresFollowRepo)(nil)
	var _ PostRepository = (*PostgresPostRepo)(nil)
	var _ LikeRepository = (*PostgresLikeRepo)(nil)
	var _ CommentRepository = (*PostgresCommentRepo)(nil)
	var _ OutboxRepository = (*PostgresOutboxRepo)(nil)
	var _ PostCascade = (*PostgresLikeRepo)(nil)
	var _ PostCascade = (*PostgresCommentRepo)(nil)
}

func TestEscapeLike(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"alice", "alice"},
		{"a_b", `a\_b`},
		{"100%", `100\%`},
		{`back\slash`, `back\\slash`},
	}
	for _, tt := range tests {
		if got := escapeLike(tt.in); got != tt.want {
			t.Errorf("escapeLike(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPostgresUserRepo_SearchEscapesWildcards(t *testing.T) {
	db := setupRepoDB(t)
	repo := NewPostgresUserRepo(db)
	ctx := context.Background()

	createTestUser(t, repo, "a_b")
	createTestUser(t, repo, "axb")

	users, err := repo.SearchByUsername(ctx, "_", 10)
	if err != nil {
		t.Fatalf("SearchByUsername: %v", err)
	}
	if len(users) != 1 || users[0].Username != "a_b" {
		t.Errorf("users = %+v, want only a_b", users)
	}

	users, err = repo.SearchByUsername(ctx, "AX", 10)
	if err != nil {
		t.Fatalf("SearchByUsername: %v", err)
	}
	if len(users) != 1 || users[0].Username != "axb" {
		t.Errorf("case-insensitive search = %+v", users)
	}
}

func TestPostgresUserRepo_FindAndUpdatePassword(t *testing.T) {
	db := setupRepoDB(t)
	repo := NewPostgresUserRepo(db)
	ctx := context.Background()

	u := createTestUser(t, repo, "carol")

	got, err := repo.FindByUsername(ctx, "carol")
	if err != nil || got == nil || got.ID != u.ID {
		t.Fatalf("FindByUsername = %+v, %v", got, err)
	}
	missing, err := repo.FindByID(ctx, u.ID+100)
	if err != nil || missing != nil {
		t.Fatalf("FindByID(missing) = %+v, %v; want nil, nil", missing, err)
	}

	if err := repo.UpdatePasswordHash(ctx, u.ID, "new-hash"); err != nil {
		t.Fatalf("UpdatePasswordHash: %v", err)
	}
	got, _ = repo.FindByID(ctx, u.ID)
	if got.PasswordHash != "new-hash" {
		t.Errorf("PasswordHash = %q, want new-hash", got.PasswordHash)
	}
	if err := repo.UpdatePasswordHash(ctx, u.ID+100, "x"); err == nil {
		t.Error("expected error for unknown user")
	}
}
