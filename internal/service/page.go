package service

// Page 是分页列表的通用响应结构。Number 从 1 开始。
type Page[T any] struct {
	Content       []T   `json:"content"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
	Size          int   `json:"size"`
	Number        int   `json:"number"`
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// normalizePage 把页码和每页大小限制在合理范围内，返回 offset。
func normalizePage(page, size int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size, (page - 1) * size
}

func newPage[T any](items []T, total int64, page, size int) *Page[T] {
	if items == nil {
		items = []T{}
	}
	pages := 0
	if size > 0 {
		pages = int((total + int64(size) - 1) / int64(size))
	}
	return &Page[T]{Content: items, TotalElements: total, TotalPages: pages, Size: size, Number: page}
}
