package repository

import (
	"errors"

	"gorm.io/gorm"
)

var (
	// ErrNotFound 表示记录不存在、已软删除或不属于当前用户。
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate 表示违反唯一约束。
	ErrDuplicate = errors.New("duplicate record")
)

// translate 把 gorm 的哨兵错误映射为仓储层错误，其他错误原样返回。
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	default:
		return err
	}
}

// Order 是列表的排序方向。
type Order string

const (
	OrderAsc  Order = "asc"
	OrderDesc Order = "desc"
)

// ParseOrder 把查询参数解析为 Order，无法识别时返回 OrderAsc。
func ParseOrder(s string) Order {
	if Order(s) == OrderDesc {
		return OrderDesc
	}
	return OrderAsc
}
