// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"inkwell-go/internal/service"

	"github.com/gin-gonic/gin"
)

// SearchHandler 负责处理搜索相关的 API 请求。
type SearchHandler struct {
	searchService service.SearchService
}

// NewSearchHandler 创建一个新的 SearchHandler 实例。
func NewSearchHandler(searchService service.SearchService) *SearchHandler {
	return &SearchHandler{searchService: searchService}
}

// SearchPosts 处理 GET /search/posts?q=&page=&size=。
func (h *SearchHandler) SearchPosts(c *gin.Context) {
	page, size := pageParams(c)
	result, err := h.searchService.SearchPosts(c.Request.Context(), c.Query("q"), page, size)
	if err != nil {
		fail(c, "SearchPosts", err)
		return
	}
	ok(c, result)
}
