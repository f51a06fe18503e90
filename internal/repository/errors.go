package repository

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// ストレージ制約違反を表すセンチネルエラー。
// *pq.Error はこのパッケージの外に出さず、これらに変換して返す。
var (
	ErrDuplicate         = errors.New("duplicate key")
	ErrReferenceNotFound = errors.New("referenced row not found")
	ErrCheckViolation    = errors.New("check constraint violated")
)

// PostgreSQL SQLSTATE
const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
	pqCheckViolation      = "23514"
)

// ConstraintError は違反した制約名を保持するエラー。
// errors.Is でセンチネルエラーと比較できる。
type ConstraintError struct {
	Kind       error
	Constraint string
}

// Error はerrorインターフェースを実装する。
func (e *ConstraintError) Error() string {
	return fmt.Sprintf("%v: %s", e.Kind, e.Constraint)
}

// Unwrap はセンチネルエラーを返す。
func (e *ConstraintError) Unwrap() error {
	return e.Kind
}

// ConstraintName はerrが制約違反であれば制約名を返す。
func ConstraintName(err error) string {
	var ce *ConstraintError
	if errors.As(err, &ce) {
		return ce.Constraint
	}
	return ""
}

// translateError はlib/pqのエラーを制約違反のセンチネルエラーに変換する。
// 制約違反以外はそのまま返す。
func translateError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case pqUniqueViolation:
		return &ConstraintError{Kind: ErrDuplicate, Constraint: pqErr.Constraint}
	case pqForeignKeyViolation:
		return &ConstraintError{Kind: ErrReferenceNotFound, Constraint: pqErr.Constraint}
	case pqCheckViolation:
		return &ConstraintError{Kind: ErrCheckViolation, Constraint: pqErr.Constraint}
	}
	return err
}
