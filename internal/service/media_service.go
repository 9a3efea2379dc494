package service

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"inkwell-go/internal/model"
	"inkwell-go/internal/repository"
	"inkwell-go/pkg/log"
)

// ObjectStore 是媒体文件使用的对象存储，由 pkg/storage.Store 实现。
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	PresignGet(ctx context.Context, key string) (string, error)
	Remove(ctx context.Context, key string) error
}

var allowedMediaTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Upload 描述一个待上传的文件。
type Upload struct {
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// MediaResult 是上传后的对象信息与临时下载地址。
type MediaResult struct {
	model.MediaObject
	URL string `json:"url"`
}

// MediaService 处理图片上传（头像、帖子封面）。
type MediaService interface {
	Upload(ctx context.Context, ownerID uint, up Upload) (*MediaResult, error)
	List(ctx context.Context, ownerID uint, page, size int) (*Page[MediaResult], error)
}

type mediaService struct {
	store    ObjectStore
	repo     repository.MediaRepository
	maxBytes int64
}

// NewMediaService 创建 MediaService。maxMB <= 0 时使用 10MB。
func NewMediaService(store ObjectStore, repo repository.MediaRepository, maxMB int64) MediaService {
	if maxMB <= 0 {
		maxMB = 10
	}
	return &mediaService{store: store, repo: repo, maxBytes: maxMB << 20}
}

func (s *mediaService) Upload(ctx context.Context, ownerID uint, up Upload) (*MediaResult, error) {
	contentType := strings.ToLower(strings.TrimSpace(strings.Split(up.ContentType, ";")[0]))
	ext, ok := allowedMediaTypes[contentType]
	if !ok {
		return nil, invalidf("unsupported content type %q", up.ContentType)
	}
	if up.Size <= 0 {
		return nil, invalidf("file is empty")
	}
	if up.Size > s.maxBytes {
		return nil, invalidf("file exceeds %d MB", s.maxBytes>>20)
	}

	key := fmt.Sprintf("media/%d/%s/%s%s", ownerID, time.Now().UTC().Format("2006/01/02"), repository.NewID(), ext)
	if err := s.store.Put(ctx, key, up.Body, up.Size, contentType); err != nil {
		return nil, err
	}

	obj := &model.MediaObject{
		OwnerID:     ownerID,
		ObjectKey:   key,
		FileName:    path.Base(strings.ReplaceAll(up.FileName, "\\", "/")),
		ContentType: contentType,
		Size:        up.Size,
	}
	if err := s.repo.Create(ctx, obj); err != nil {
		// 元数据写入失败时清理已上传的对象
		if rmErr := s.store.Remove(context.WithoutCancel(ctx), key); rmErr != nil {
			log.Warnf("[MediaService] 清理对象失败, key=%s: %v", key, rmErr)
		}
		return nil, &PersistenceError{Op: "create media object", Err: err}
	}

	url, err := s.store.PresignGet(ctx, key)
	if err != nil {
		return nil, err
	}
	return &MediaResult{MediaObject: *obj, URL: url}, nil
}

func (s *mediaService) List(ctx context.Context, ownerID uint, page, size int) (*Page[MediaResult], error) {
	page, size, offset := normalizePage(page, size)
	objs, total, err := s.repo.ListByOwner(ctx, ownerID, offset, size)
	if err != nil {
		return nil, err
	}
	out := make([]MediaResult, 0, len(objs))
	for _, o := range objs {
		url, err := s.store.PresignGet(ctx, o.ObjectKey)
		if err != nil {
			return nil, err
		}
		out = append(out, MediaResult{MediaObject: o, URL: url})
	}
	return newPage(out, total, page, size), nil
}
