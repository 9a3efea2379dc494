package handler

import (
	"net/http"

	"inkwell-go/internal/service"
	"inkwell-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// MediaHandler 负责图片上传。
type MediaHandler struct {
	mediaService service.MediaService
}

func NewMediaHandler(mediaService service.MediaService) *MediaHandler {
	return &MediaHandler{mediaService: mediaService}
}

// Upload 处理 multipart 上传，表单字段名为 file。
func (h *MediaHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "UploadMedia", err)
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		log.Error("UploadMedia: 无法打开上传文件", err)
		respond(c, http.StatusBadRequest, "cannot read uploaded file", nil)
		return
	}
	defer file.Close()

	res, err := h.mediaService.Upload(c.Request.Context(), currentUser(c).ID, service.Upload{
		FileName:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Size:        fileHeader.Size,
		Body:        file,
	})
	if err != nil {
		fail(c, "UploadMedia", err)
		return
	}
	created(c, res)
}

func (h *MediaHandler) List(c *gin.Context) {
	page, size := pageParams(c)
	result, err := h.mediaService.List(c.Request.Context(), currentUser(c).ID, page, size)
	if err != nil {
		fail(c, "ListMedia", err)
		return
	}
	ok(c, result)
}
