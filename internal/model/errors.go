// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, conflict, not_found, forbidden, auth, upstream, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// エラーカテゴリ
const (
	CategoryValidation = "validation"
	CategoryConflict   = "conflict"
	CategoryNotFound   = "not_found"
	CategoryForbidden  = "forbidden"
	CategoryAuth       = "auth"
	CategoryUpstream   = "upstream"
	CategorySystem     = "system"
)

// 定義済みエラーコード
const (
	ErrCodeValidationFailed    = "VALIDATION_FAILED"
	ErrCodeCaptionTooLong      = "CAPTION_TOO_LONG"
	ErrCodeEmptyContent        = "EMPTY_CONTENT"
	ErrCodeMissingItem         = "MISSING_ITEM"
	ErrCodeSelfFollow          = "SELF_FOLLOW"
	ErrCodeInvalidCursor       = "INVALID_CURSOR"
	ErrCodeInvalidItemType     = "INVALID_ITEM_TYPE"
	ErrCodeEmptyQuery          = "EMPTY_QUERY"
	ErrCodeAlreadyFollowing    = "ALREADY_FOLLOWING"
	ErrCodeAlreadyLiked        = "ALREADY_LIKED"
	ErrCodeDuplicateUsername   = "DUPLICATE_USERNAME"
	ErrCodeDuplicateEmail      = "DUPLICATE_EMAIL"
	ErrCodeUserNotFound        = "USER_NOT_FOUND"
	ErrCodePostNotFound        = "POST_NOT_FOUND"
	ErrCodeNotFollowing        = "NOT_FOLLOWING"
	ErrCodeNotLiked            = "NOT_LIKED"
	ErrCodeCatalogItemNotFound = "CATALOG_ITEM_NOT_FOUND"
	ErrCodeForbidden           = "FORBIDDEN"
	ErrCodeAuthFailed          = "AUTH_FAILED"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeCatalogAuthFailed   = "CATALOG_AUTH_FAILED"
	ErrCodeCatalogUnavailable  = "CATALOG_UNAVAILABLE"
	ErrCodeRateLimited         = "RATE_LIMITED"
	ErrCodeInternal            = "INTERNAL_ERROR"
)

// HasCode はerrがAPIErrorであり、指定のコードを持つかを判定する。
func HasCode(err error, code string) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}

// CategoryOf はerrのカテゴリを返す。APIErrorでない場合は空文字を返す。
func CategoryOf(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Category
	}
	return ""
}

// NewValidationError は入力値検証エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  fmt.Sprintf("入力内容が不正です: %s", reason),
		Category: CategoryValidation,
		Action:   "入力内容を確認してください。",
	}
}

// NewCaptionTooLongError はキャプション長超過エラーを生成する。
func NewCaptionTooLongError(max int) *APIError {
	return &APIError{
		Code:     ErrCodeCaptionTooLong,
		Message:  fmt.Sprintf("キャプションは%d文字以内で入力してください。", max),
		Category: CategoryValidation,
		Action:   "キャプションを短くしてください。",
	}
}

// NewEmptyContentError は空コメントエラーを生成する。
func NewEmptyContentError() *APIError {
	return &APIError{
		Code:     ErrCodeEmptyContent,
		Message:  "コメントが空です。",
		Category: CategoryValidation,
		Action:   "コメント本文を入力してください。",
	}
}

// NewMissingItemError は投稿対象アイテムの指定漏れエラーを生成する。
func NewMissingItemError() *APIError {
	return &APIError{
		Code:     ErrCodeMissingItem,
		Message:  "投稿するアイテムのIDと名前は必須です。",
		Category: CategoryValidation,
		Action:   "カタログ検索からアイテムを選択してください。",
	}
}

// NewSelfFollowError は自分自身へのフォローエラーを生成する。
func NewSelfFollowError() *APIError {
	return &APIError{
		Code:     ErrCodeSelfFollow,
		Message:  "自分自身をフォローすることはできません。",
		Category: CategoryValidation,
		Action:   "他のユーザーを選択してください。",
	}
}

// NewInvalidCursorError は不正なページングカーソルエラーを生成する。
func NewInvalidCursorError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCursor,
		Message:  "無効なカーソルです。",
		Category: CategoryValidation,
		Action:   "カーソルを指定せずに先頭から取得し直してください。",
	}
}

// NewInvalidItemTypeError は不正なアイテム種別エラーを生成する。
func NewInvalidItemTypeError(itemType string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidItemType,
		Message:  fmt.Sprintf("無効なアイテム種別です: %s", itemType),
		Category: CategoryValidation,
		Action:   "種別には track または playlist を指定してください。",
	}
}

// NewEmptyQueryError は空の検索クエリエラーを生成する。
func NewEmptyQueryError() *APIError {
	return &APIError{
		Code:     ErrCodeEmptyQuery,
		Message:  "検索キーワードが空です。",
		Category: CategoryValidation,
		Action:   "検索キーワードを入力してください。",
	}
}

// NewAlreadyFollowingError は既にフォロー済みの場合のエラーを生成する。
func NewAlreadyFollowingError() *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyFollowing,
		Message:  "既にフォローしています。",
		Category: CategoryConflict,
		Action:   "フォロー状態を確認してください。",
	}
}

// NewAlreadyLikedError は既にいいね済みの場合のエラーを生成する。
func NewAlreadyLikedError() *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyLiked,
		Message:  "既にいいねしています。",
		Category: CategoryConflict,
		Action:   "いいね状態を確認してください。",
	}
}

// NewDuplicateUsernameError はユーザー名重複エラーを生成する。
func NewDuplicateUsernameError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateUsername,
		Message:  "このユーザー名は既に使用されています。",
		Category: CategoryConflict,
		Action:   "別のユーザー名を選択してください。",
	}
}

// NewDuplicateEmailError はメールアドレス重複エラーを生成する。
func NewDuplicateEmailError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateEmail,
		Message:  "このメールアドレスは既に登録されています。",
		Category: CategoryConflict,
		Action:   "ログインするか、別のメールアドレスを使用してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: CategoryNotFound,
		Action:   "ユーザーIDを確認してください。",
	}
}

// NewPostNotFoundError は投稿が見つからない場合のエラーを生成する。
func NewPostNotFoundError(postID int64) *APIError {
	return &APIError{
		Code:     ErrCodePostNotFound,
		Message:  fmt.Sprintf("指定された投稿が見つかりません: %d", postID),
		Category: CategoryNotFound,
		Action:   "投稿IDを確認してください。",
	}
}

// NewNotFollowingError はフォローしていないユーザーのフォロー解除エラーを生成する。
func NewNotFollowingError() *APIError {
	return &APIError{
		Code:     ErrCodeNotFollowing,
		Message:  "このユーザーをフォローしていません。",
		Category: CategoryNotFound,
		Action:   "フォロー状態を確認してください。",
	}
}

// NewNotLikedError はいいねしていない投稿のいいね解除エラーを生成する。
func NewNotLikedError() *APIError {
	return &APIError{
		Code:     ErrCodeNotLiked,
		Message:  "この投稿にいいねしていません。",
		Category: CategoryNotFound,
		Action:   "いいね状態を確認してください。",
	}
}

// NewCatalogItemNotFoundError は外部カタログにアイテムが存在しない場合のエラーを生成する。
func NewCatalogItemNotFoundError(itemType, itemID string) *APIError {
	return &APIError{
		Code:     ErrCodeCatalogItemNotFound,
		Message:  fmt.Sprintf("カタログに%sが見つかりません: %s", itemType, itemID),
		Category: CategoryNotFound,
		Action:   "アイテムIDを確認してください。",
	}
}

// NewForbiddenError は権限エラーを生成する。
func NewForbiddenError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  fmt.Sprintf("この操作は許可されていません: %s", reason),
		Category: CategoryForbidden,
		Action:   "自分のリソースに対してのみ操作できます。",
	}
}

// NewAuthFailedError はログイン失敗エラーを生成する。
// ユーザー不在とパスワード不一致を区別しない。
func NewAuthFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeAuthFailed,
		Message:  "ユーザー名またはパスワードが正しくありません。",
		Category: CategoryAuth,
		Action:   "入力内容を確認して再度ログインしてください。",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: CategoryAuth,
		Action:   "ログインしてください。",
	}
}

// NewCatalogAuthFailedError は外部カタログの認証失敗エラーを生成する。
func NewCatalogAuthFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeCatalogAuthFailed,
		Message:  fmt.Sprintf("外部カタログの認証に失敗しました: %s", reason),
		Category: CategoryUpstream,
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewCatalogUnavailableError は外部カタログ到達不能エラーを生成する。
func NewCatalogUnavailableError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeCatalogUnavailable,
		Message:  fmt.Sprintf("外部カタログに接続できません: %s", reason),
		Category: CategoryUpstream,
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: CategorySystem,
		Action:   "Retry-Afterで指定された時間が経過してから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログにのみ記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: CategorySystem,
		Action:   "しばらく待ってから再度お試しください。",
	}
}
