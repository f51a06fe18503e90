// Package user はユーザー（認証情報とプロフィール）のドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/BrieHudson/Capstone-1-Muse/internal/model"
	"github.com/BrieHudson/Capstone-1-Muse/internal/repository"
)

// 検索結果の最大件数
const maxSearchResults = 50

// RegisterInput はユーザー登録の入力値。
type RegisterInput struct {
	Username string `validate:"required,min=3,max=20,printable"`
	Email    string `validate:"required,email,max=255"`
	Password string `validate:"required,min=6,max=72"`
}

// PostCounter はユーザーの投稿数を返す。
type PostCounter interface {
	CountByAuthor(ctx context.Context, authorID int64) (int, error)
}

// LikeCounter はユーザーがいいねした投稿数を返す。
type LikeCounter interface {
	CountByUser(ctx context.Context, userID int64) (int, error)
}

// Service はユーザー登録・認証・プロフィール参照のサービス層。
type Service struct {
	userRepo    repository.UserRepository
	postCounter PostCounter
	likeCounter LikeCounter
	hasher      PasswordHasher
	validate    *validator.Validate

	dummyOnce sync.Once
	dummyHash string
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	postCounter PostCounter,
	likeCounter LikeCounter,
	hasher PasswordHasher,
) *Service {
	v := validator.New(validator.WithRequiredStructEnabled())
	mustRegisterValidation(v, "printable", func(fl validator.FieldLevel) bool {
		return isPrintable(fl.Field().String())
	})
	return &Service{
		userRepo:    userRepo,
		postCounter: postCounter,
		likeCounter: likeCounter,
		hasher:      hasher,
		validate:    v,
	}
}

// Register は新規ユーザーを登録する。
// ユーザー名、メールアドレスの順に重複を確認し、挿入時の競合も同じエラーに変換する。
func (s *Service) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	if err := s.validate.Struct(in); err != nil {
		return nil, validationError(err)
	}

	exists, err := s.userRepo.ExistsByUsername(ctx, in.Username)
	if err != nil {
		return nil, fmt.Errorf("ユーザー名の確認に失敗しました: %w", err)
	}
	if exists {
		return nil, model.NewDuplicateUsernameError()
	}

	exists, err = s.userRepo.ExistsByEmail(ctx, in.Email)
	if err != nil {
		return nil, fmt.Errorf("メールアドレスの確認に失敗しました: %w", err)
	}
	if exists {
		return nil, model.NewDuplicateEmailError()
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("パスワードのハッシュ化に失敗しました: %w", err)
	}

	u := &model.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
	}
	if err := s.userRepo.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			if repository.ConstraintName(err) == repository.ConstraintUsersEmail {
				return nil, model.NewDuplicateEmailError()
			}
			return nil, model.NewDuplicateUsernameError()
		}
		return nil, fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}

	slog.Info("ユーザーを登録しました",
		slog.Int64("user_id", u.ID),
	)
	return u, nil
}

// Authenticate はユーザー名とパスワードを検証する。
// ユーザー不在とパスワード不一致は同じAUTH_FAILEDを返し、理由はログにのみ残す。
func (s *Service) Authenticate(ctx context.Context, username, password string) (*model.User, error) {
	u, err := s.userRepo.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if u == nil {
		// 応答時間でユーザーの存在が推測されないよう、ダミーのハッシュと比較する
		_ = s.hasher.Compare(s.dummyPasswordHash(), password)
		slog.Info("ログインに失敗しました",
			slog.String("reason", "unknown_user"),
		)
		return nil, model.NewAuthFailedError()
	}

	if err := s.hasher.Compare(u.PasswordHash, password); err != nil {
		slog.Info("ログインに失敗しました",
			slog.String("reason", "bad_password"),
			slog.Int64("user_id", u.ID),
		)
		return nil, model.NewAuthFailedError()
	}
	return u, nil
}

// ChangePassword は現在のパスワードを確認したうえでパスワードハッシュを差し替える。
func (s *Service) ChangePassword(ctx context.Context, userID int64, current, next string) error {
	u, err := s.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.hasher.Compare(u.PasswordHash, current); err != nil {
		return model.NewAuthFailedError()
	}
	if err := s.validate.Var(next, "required,min=6,max=72"); err != nil {
		return model.NewValidationError("パスワードは6文字以上72文字以内で入力してください")
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		return fmt.Errorf("パスワードのハッシュ化に失敗しました: %w", err)
	}
	if err := s.userRepo.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return fmt.Errorf("パスワードの更新に失敗しました: %w", err)
	}

	slog.Info("パスワードを変更しました", slog.Int64("user_id", userID))
	return nil
}

// FindByID は指定IDのユーザーを取得する。存在しない場合はUSER_NOT_FOUNDを返す。
func (s *Service) FindByID(ctx context.Context, userID int64) (*model.User, error) {
	u, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if u == nil {
		return nil, model.NewUserNotFoundError()
	}
	return u, nil
}

// Profile はユーザーとフォロー数・投稿数・いいね数をまとめて返す。
func (s *Service) Profile(ctx context.Context, userID int64) (*model.UserProfile, error) {
	u, err := s.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	postCount, err := s.postCounter.CountByAuthor(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("投稿数の取得に失敗しました: %w", err)
	}
	likedCount, err := s.likeCounter.CountByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("いいね数の取得に失敗しました: %w", err)
	}

	return &model.UserProfile{
		User:       *u,
		PostCount:  postCount,
		LikedCount: likedCount,
	}, nil
}

// Search はユーザー名の部分一致でユーザーを検索する。
// 空のクエリは空の結果を返す。
func (s *Service) Search(ctx context.Context, query string, limit int) ([]model.User, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []model.User{}, nil
	}
	if limit <= 0 || limit > maxSearchResults {
		limit = maxSearchResults
	}

	users, err := s.userRepo.SearchByUsername(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの検索に失敗しました: %w", err)
	}
	if users == nil {
		users = []model.User{}
	}
	return users, nil
}

func (s *Service) dummyPasswordHash() string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash("muse-dummy-password")
		if err == nil {
			s.dummyHash = h
		}
	})
	return s.dummyHash
}

// mustRegisterValidation はカスタムルールを登録する。登録に失敗した場合はpanicする。
func mustRegisterValidation(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("validation rule %q: %v", tag, err))
	}
}

// isPrintable は制御文字を含まない場合にtrueを返す。
func isPrintable(s string) bool {
	for _, r := range s {
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}

// validationError はvalidatorのエラーを最初のフィールドのメッセージに変換する。
func validationError(err error) *model.APIError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return model.NewValidationError(err.Error())
	}
	fe := verrs[0]
	switch fe.Field() {
	case "Username":
		return model.NewValidationError("ユーザー名は3〜20文字で入力してください（制御文字は使用できません）")
	case "Email":
		return model.NewValidationError("メールアドレスの形式が正しくありません")
	case "Password":
		return model.NewValidationError("パスワードは6文字以上72文字以内で入力してください")
	}
	return model.NewValidationError(fmt.Sprintf("%s is invalid (%s)", fe.Field(), fe.Tag()))
}
