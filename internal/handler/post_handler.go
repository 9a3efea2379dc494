package handler

import (
	"strconv"

	"inkwell-go/internal/service"

	"github.com/gin-gonic/gin"
)

// PostHandler 负责帖子、评论、点赞与收藏。
type PostHandler struct {
	postService    service.PostService
	commentService service.CommentService
	socialService  service.SocialService
}

func NewPostHandler(postService service.PostService, commentService service.CommentService, socialService service.SocialService) *PostHandler {
	return &PostHandler{postService: postService, commentService: commentService, socialService: socialService}
}

// CreatePostRequest 定义了发帖的请求体。
type CreatePostRequest struct {
	Title     string `json:"title" binding:"required,notblank,max=200"`
	Content   string `json:"content" binding:"required,notblank"`
	CoverKey  string `json:"coverKey" binding:"max=255"`
	Published *bool  `json:"published"`
}

type UpdatePostRequest struct {
	Title     *string `json:"title"`
	Content   *string `json:"content"`
	CoverKey  *string `json:"coverKey"`
	Published *bool   `json:"published"`
}

type CreateCommentRequest struct {
	Content  string `json:"content" binding:"required,notblank,max=2000"`
	ParentID *uint  `json:"parentId"`
}

func (h *PostHandler) Create(c *gin.Context) {
	var req CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "CreatePost", err)
		return
	}
	post, err := h.postService.Create(c.Request.Context(), currentUser(c).ID, service.PostInput{
		Title:     req.Title,
		Content:   req.Content,
		CoverKey:  req.CoverKey,
		Published: req.Published,
	})
	if err != nil {
		fail(c, "CreatePost", err)
		return
	}
	created(c, post)
}

// List 返回帖子列表，?author= 按作者过滤。
func (h *PostHandler) List(c *gin.Context) {
	var authorID uint
	if a := c.Query("author"); a != "" {
		n, err := strconv.ParseUint(a, 10, 64)
		if err != nil {
			badRequest(c, "ListPosts", err)
			return
		}
		authorID = uint(n)
	}
	page, size := pageParams(c)
	result, err := h.postService.List(c.Request.Context(), actor(c), authorID, page, size)
	if err != nil {
		fail(c, "ListPosts", err)
		return
	}
	ok(c, result)
}

func (h *PostHandler) Get(c *gin.Context) {
	id, valid := uintParam(c, "id")
	if !valid {
		return
	}
	post, err := h.postService.Get(c.Request.Context(), actor(c), id)
	if err != nil {
		fail(c, "GetPost", err)
		return
	}
	ok(c, post)
}

func (h *PostHandler) Update(c *gin.Context) {
	id, valid := uintParam(c, "id")
	if !valid {
		return
	}
	var req UpdatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "UpdatePost", err)
		return
	}
	post, err := h.postService.Update(c.Request.Context(), actor(c), id, service.PostPatch{
		Title:     req.Title,
		Content:   req.Content,
		CoverKey:  req.CoverKey,
		Published: req.Published,
	})
	if err != nil {
		fail(c, "UpdatePost", err)
		return
	}
	ok(c, post)
}

func (h *PostHandler) Delete(c *gin.Context) {
	id, valid := uintParam(c, "id")
	if !valid {
		return
	}
	if err := h.postService.Delete(c.Request.Context(), actor(c), id); err != nil {
		fail(c, "DeletePost", err)
		return
	}
	ok(c, nil)
}

func (h *PostHandler) Like(c *gin.Context) {
	id, valid := uintParam(c, "id")
	if !valid {
		return
	}
	state, err := h.socialService.Like(c.Request.Context(), actor(c), id)
	if err != nil {
		fail(c, "LikePost", err)
		return
	}
	ok(c, state)
}

func (h *PostHandler) Unlike(c *gin.Context) {
	id, valid := uintParam(c, "id")
	if !valid {
		return
	}
	state, err := h.socialService.Unlike(c.Request.Context(), actor(c), id)
	if err != nil {
		fail(c, "UnlikePost", err)
		return
	}
	ok(c, state)
}

func (h *PostHandler) Bookmark(c *gin.Context) {
	id, valid := uintParam(c, "id")
	if !valid {
		return
	}
	if err := h.socialService.Bookmark(c.Request.Context(), actor(c), id); err != nil {
		fail(c, "BookmarkPost", err)
		return
	}
	ok(c, nil)
}

func (h *PostHandler) RemoveBookmark(c *gin.Context) {
	id, valid := uintParam(c, "id")
	if !valid {
		return
	}
	if err := h.socialService.RemoveBookmark(c.Request.Context(), actor(c), id); err != nil {
		fail(c, "RemoveBookmark", err)
		return
	}
	ok(c, nil)
}

func (h *PostHandler) ListBookmarks(c *gin.Context) {
	page, size := pageParams(c)
	result, err := h.socialService.ListBookmarks(c.Request.Context(), currentUser(c).ID, page, size)
	if err != nil {
		fail(c, "ListBookmarks", err)
		return
	}
	ok(c, result)
}

func (h *PostHandler) CreateComment(c *gin.Context) {
	id, valid := uintParam(c, "id")
	if !valid {
		return
	}
	var req CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "CreateComment", err)
		return
	}
	comment, err := h.commentService.Create(c.Request.Context(), actor(c), id, req.ParentID, req.Content)
	if err != nil {
		fail(c, "CreateComment", err)
		return
	}
	created(c, comment)
}

func (h *PostHandler) ListComments(c *gin.Context) {
	id, valid := uintParam(c, "id")
	if !valid {
		return
	}
	page, size := pageParams(c)
	result, err := h.commentService.List(c.Request.Context(), actor(c), id, page, size)
	if err != nil {
		fail(c, "ListComments", err)
		return
	}
	ok(c, result)
}

func (h *PostHandler) DeleteComment(c *gin.Context) {
	id, valid := uintParam(c, "id")
	if !valid {
		return
	}
	if err := h.commentService.Delete(c.Request.Context(), actor(c), id); err != nil {
		fail(c, "DeleteComment", err)
		return
	}
	ok(c, nil)
}
