package service

import (
	"errors"
	"fmt"

	"inkwell-go/internal/repository"
)

var (
	// ErrNotFound 资源不存在或不属于当前用户。对话永远使用它而不是 ErrForbidden。
	ErrNotFound = repository.ErrNotFound
	// ErrForbidden 仅用于公开资源（帖子、评论）的作者校验。
	ErrForbidden = errors.New("forbidden")
	// ErrConflict 唯一约束冲突，例如用户名或持仓代码重复。
	ErrConflict = errors.New("conflict")
	// ErrInvalidInput 参数不合法。
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnauthorized 凭证错误或 token 已失效。
	ErrUnauthorized = errors.New("unauthorized")
)

// PersistenceError 表示一次数据库写入失败。
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func invalidf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// conflictOr 把仓储层的唯一约束错误转为 ErrConflict。
func conflictOr(err error, msg string) error {
	if errors.Is(err, repository.ErrDuplicate) {
		return fmt.Errorf("%w: %s", ErrConflict, msg)
	}
	return err
}
