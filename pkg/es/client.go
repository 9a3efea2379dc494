// Package es 提供了与 Elasticsearch 交互的客户端功能。
package es

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"inkwell-go/internal/config"
	"inkwell-go/internal/model"
	"inkwell-go/pkg/log"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const snippetLen = 200

// PostIndex 封装帖子索引的读写。
type PostIndex struct {
	client *elasticsearch.Client
	index  string
}

// NewPostIndex 创建客户端并确保索引存在。
func NewPostIndex(esCfg config.ElasticsearchConfig) (*PostIndex, error) {
	var addrs []string
	for _, a := range strings.Split(esCfg.Addresses, ",") {
		if a = strings.TrimSpace(a); a != "" {
			addrs = append(addrs, a)
		}
	}
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: addrs,
		Username:  esCfg.Username,
		Password:  esCfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}
	p := &PostIndex{client: client, index: esCfg.IndexName}
	if err := p.createIndexIfNotExists(context.Background()); err != nil {
		return nil, err
	}
	return p, nil
}

// createIndexIfNotExists 检查索引是否存在，如果不存在则创建它
func (p *PostIndex) createIndexIfNotExists(ctx context.Context) error {
	res, err := p.client.Indices.Exists([]string{p.index}, p.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("检查索引是否存在时出错: %w", err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		log.Infof("索引 '%s' 已存在", p.index)
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("检查索引是否存在时收到意外的状态码: %d", res.StatusCode)
	}

	mapping := `{
		"mappings": {
			"properties": {
				"post_id": { "type": "long" },
				"author_id": { "type": "long" },
				"author_name": { "type": "keyword" },
				"title": { "type": "text" },
				"content": { "type": "text" },
				"created_at": { "type": "date" }
			}
		}
	}`
	res, err = p.client.Indices.Create(
		p.index,
		p.client.Indices.Create.WithBody(strings.NewReader(mapping)),
		p.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("创建索引 '%s' 失败: %w", p.index, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("创建索引时 Elasticsearch 返回错误: %s", res.String())
	}
	log.Infof("索引 '%s' 创建成功", p.index)
	return nil
}

// IndexPost 写入或覆盖一篇帖子。
func (p *PostIndex) IndexPost(ctx context.Context, doc model.PostDocument) error {
	docBytes, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	req := esapi.IndexRequest{
		Index:      p.index,
		DocumentID: strconv.FormatUint(uint64(doc.PostID), 10),
		Body:       bytes.NewReader(docBytes),
		Refresh:    "true",
	}
	res, err := req.Do(ctx, p.client)
	if err != nil {
		return fmt.Errorf("failed to index post %d: %w", doc.PostID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("failed to index post %d: %s", doc.PostID, res.String())
	}
	return nil
}

// DeletePost 删除索引中的帖子，不存在时视为成功。
func (p *PostIndex) DeletePost(ctx context.Context, postID uint) error {
	req := esapi.DeleteRequest{
		Index:      p.index,
		DocumentID: strconv.FormatUint(uint64(postID), 10),
		Refresh:    "true",
	}
	res, err := req.Do(ctx, p.client)
	if err != nil {
		return fmt.Errorf("failed to delete post %d: %w", postID, err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("failed to delete post %d: %s", postID, res.String())
	}
	return nil
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			Score  float64            `json:"_score"`
			Source model.PostDocument `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// SearchPosts 在标题与正文上做全文检索，标题权重更高。
func (p *PostIndex) SearchPosts(ctx context.Context, query string, from, size int) ([]model.PostSearchHit, int64, error) {
	esQuery := map[string]interface{}{
		"from": from,
		"size": size,
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  query,
				"fields": []string{"title^2", "content"},
			},
		},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(esQuery); err != nil {
		return nil, 0, fmt.Errorf("failed to encode search query: %w", err)
	}

	res, err := p.client.Search(
		p.client.Search.WithContext(ctx),
		p.client.Search.WithIndex(p.index),
		p.client.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("search request failed: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, 0, fmt.Errorf("search returned error: %s", res.String())
	}

	var sr searchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, 0, fmt.Errorf("failed to decode search response: %w", err)
	}
	hits := make([]model.PostSearchHit, 0, len(sr.Hits.Hits))
	for _, h := range sr.Hits.Hits {
		hits = append(hits, model.PostSearchHit{
			PostID:     h.Source.PostID,
			AuthorID:   h.Source.AuthorID,
			AuthorName: h.Source.AuthorName,
			Title:      h.Source.Title,
			Snippet:    snippet(h.Source.Content),
			Score:      h.Score,
			CreatedAt:  h.Source.CreatedAt,
		})
	}
	return hits, sr.Hits.Total.Value, nil
}

func snippet(s string) string {
	r := []rune(s)
	if len(r) <= snippetLen {
		return s
	}
	return string(r[:snippetLen]) + "…"
}
