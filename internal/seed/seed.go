// Package seed は開発環境向けにダミーのユーザー・フォロー・投稿・いいね・コメントを投入する。
// データはドメインサービス経由で作成するため、バリデーションやイベント記録は本番と同じ経路を通る。
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/BrieHudson/Capstone-1-Muse/internal/model"
	"github.com/BrieHudson/Capstone-1-Muse/internal/post"
	"github.com/BrieHudson/Capstone-1-Muse/internal/user"
)

// DefaultPassword は投入ユーザー共通のパスワード。
const DefaultPassword = "muse-password"

var nonUsernameChars = regexp.MustCompile(`[^A-Za-z0-9_]`)

// Registrar はユーザー登録を行う。
type Registrar interface {
	Register(ctx context.Context, in user.RegisterInput) (*model.User, error)
}

// Follower はフォロー関係を作成する。
type Follower interface {
	Follow(ctx context.Context, followerID, followedID int64) error
}

// Publisher は投稿を作成する。
type Publisher interface {
	CreatePost(ctx context.Context, in post.CreatePostInput) (*model.Post, error)
}

// Interactor はいいねとコメントを作成する。
type Interactor interface {
	Like(ctx context.Context, userID, postID int64) error
	AddComment(ctx context.Context, userID, postID int64, content string) (*model.Comment, error)
}

// Config は投入量の設定。
type Config struct {
	Users           int
	FollowsPerUser  int
	PostsPerUser    int
	LikesPerUser    int
	CommentsPerUser int
	// RandSeed が0以外の場合、同じ値なら同じデータを生成する。
	RandSeed int64
}

// DefaultConfig はデフォルトの投入量を返す。
func DefaultConfig() Config {
	return Config{
		Users:           20,
		FollowsPerUser:  5,
		PostsPerUser:    3,
		LikesPerUser:    5,
		CommentsPerUser: 2,
	}
}

// Result は投入した件数。
type Result struct {
	Users    int
	Follows  int
	Posts    int
	Likes    int
	Comments int
}

// Seeder はダミーデータの投入処理。
type Seeder struct {
	users        Registrar
	graph        Follower
	posts        Publisher
	interactions Interactor
	faker        *gofakeit.Faker
	cfg          Config
}

// NewSeeder はSeederを生成する。
func NewSeeder(users Registrar, graph Follower, posts Publisher, interactions Interactor, cfg Config) *Seeder {
	return &Seeder{
		users:        users,
		graph:        graph,
		posts:        posts,
		interactions: interactions,
		faker:        gofakeit.New(cfg.RandSeed),
		cfg:          cfg,
	}
}

// Run はダミーデータを投入する。
// 重複やフォロー済みなどの競合エラーはスキップし、それ以外のエラーで中断する。
func (s *Seeder) Run(ctx context.Context) (*Result, error) {
	res := &Result{}

	userIDs := make([]int64, 0, s.cfg.Users)
	for i := 0; i < s.cfg.Users; i++ {
		u, err := s.users.Register(ctx, user.RegisterInput{
			Username: s.username(i),
			Email:    fmt.Sprintf("seed%d.%s", i, strings.ToLower(s.faker.Email())),
			Password: DefaultPassword,
		})
		if skippable(err) {
			continue
		}
		if err != nil {
			return res, fmt.Errorf("ユーザーの投入に失敗しました: %w", err)
		}
		userIDs = append(userIDs, u.ID)
	}
	res.Users = len(userIDs)
	if len(userIDs) < 2 {
		return res, nil
	}

	for _, uid := range userIDs {
		for i := 0; i < s.cfg.FollowsPerUser; i++ {
			target := s.pick(userIDs)
			if target == uid {
				continue
			}
			err := s.graph.Follow(ctx, uid, target)
			if skippable(err) {
				continue
			}
			if err != nil {
				return res, fmt.Errorf("フォローの投入に失敗しました: %w", err)
			}
			res.Follows++
		}
	}

	var postIDs []int64
	for _, uid := range userIDs {
		for i := 0; i < s.cfg.PostsPerUser; i++ {
			p, err := s.posts.CreatePost(ctx, s.postInput(uid))
			if err != nil {
				return res, fmt.Errorf("投稿の投入に失敗しました: %w", err)
			}
			postIDs = append(postIDs, p.ID)
		}
	}
	res.Posts = len(postIDs)
	if len(postIDs) == 0 {
		return res, nil
	}

	for _, uid := range userIDs {
		for i := 0; i < s.cfg.LikesPerUser; i++ {
			err := s.interactions.Like(ctx, uid, s.pick(postIDs))
			if skippable(err) {
				continue
			}
			if err != nil {
				return res, fmt.Errorf("いいねの投入に失敗しました: %w", err)
			}
			res.Likes++
		}
		for i := 0; i < s.cfg.CommentsPerUser; i++ {
			if _, err := s.interactions.AddComment(ctx, uid, s.pick(postIDs), s.faker.Sentence(s.faker.Number(3, 12))); err != nil {
				return res, fmt.Errorf("コメントの投入に失敗しました: %w", err)
			}
			res.Comments++
		}
	}

	slog.Info("ダミーデータを投入しました",
		slog.Int("users", res.Users),
		slog.Int("follows", res.Follows),
		slog.Int("posts", res.Posts),
		slog.Int("likes", res.Likes),
		slog.Int("comments", res.Comments),
	)
	return res, nil
}

// username は3〜20文字に収まる英数字とアンダースコアのみの名前を返す。
func (s *Seeder) username(i int) string {
	base := nonUsernameChars.ReplaceAllString(s.faker.Username(), "")
	if len(base) > 14 {
		base = base[:14]
	}
	if len(base) < 2 {
		base = "user"
	}
	return fmt.Sprintf("%s_%d", strings.ToLower(base), i)
}

func (s *Seeder) postInput(authorID int64) post.CreatePostInput {
	in := post.CreatePostInput{
		AuthorID:         authorID,
		ExternalItemID:   s.faker.LetterN(22),
		ExternalItemName: fmt.Sprintf("%s %s", s.faker.Adjective(), s.faker.Noun()),
		Caption:          s.faker.Sentence(s.faker.Number(4, 15)),
		ItemType:         model.ItemTypeTrack,
	}
	if s.faker.Number(0, 3) == 0 {
		in.ItemType = model.ItemTypePlaylist
	} else {
		in.ArtistName = s.faker.Name()
	}
	return in
}

func (s *Seeder) pick(ids []int64) int64 {
	return ids[s.faker.Number(0, len(ids)-1)]
}

// skippable は再実行時に発生しうる競合エラーかを判定する。
func skippable(err error) bool {
	return err != nil && model.CategoryOf(err) == model.CategoryConflict
}
