package es

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"inkwell-go/internal/config"
	"inkwell-go/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeES 模拟最小的 Elasticsearch：索引已存在，搜索返回固定命中。
func fakeES(t *testing.T, onRequest func(r *http.Request, body string)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		body, _ := io.ReadAll(r.Body)
		if onRequest != nil {
			onRequest(r, string(body))
		}
		switch {
		case r.Method == http.MethodHead:
			w.WriteHeader(http.StatusOK)
		case strings.HasSuffix(r.URL.Path, "/_search"):
			_, _ = io.WriteString(w, `{"hits":{"total":{"value":1},"hits":[{"_score":1.5,"_source":{"post_id":3,"author_id":1,"author_name":"alice","title":"Go streams","content":"about SSE"}}]}}`)
		case r.Method == http.MethodDelete:
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"result":"not_found"}`)
		default:
			_, _ = io.WriteString(w, `{"result":"created"}`)
		}
	}))
}

func TestPostIndex_Search(t *testing.T) {
	var (
		mu         sync.Mutex
		searchBody string
	)
	srv := fakeES(t, func(r *http.Request, body string) {
		if strings.HasSuffix(r.URL.Path, "/_search") {
			mu.Lock()
			searchBody = body
			mu.Unlock()
		}
	})
	defer srv.Close()

	idx, err := NewPostIndex(config.ElasticsearchConfig{Addresses: srv.URL, IndexName: "posts"})
	require.NoError(t, err)

	hits, total, err := idx.SearchPosts(context.Background(), "streams", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, hits, 1)
	assert.Equal(t, uint(3), hits[0].PostID)
	assert.Equal(t, "Go streams", hits[0].Title)
	assert.Equal(t, 1.5, hits[0].Score)
	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, searchBody, `"multi_match"`)
}

func TestPostIndex_IndexAndDelete(t *testing.T) {
	var (
		mu    sync.Mutex
		paths []string
	)
	srv := fakeES(t, func(r *http.Request, body string) {
		mu.Lock()
		paths = append(paths, r.Method+" "+r.URL.Path)
		mu.Unlock()
	})
	defer srv.Close()

	idx, err := NewPostIndex(config.ElasticsearchConfig{Addresses: srv.URL, IndexName: "posts"})
	require.NoError(t, err)

	require.NoError(t, idx.IndexPost(context.Background(), model.PostDocument{PostID: 3, Title: "t"}))
	require.NoError(t, idx.DeletePost(context.Background(), 3))
	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, paths, "PUT /posts/_doc/3")
	assert.Contains(t, paths, "DELETE /posts/_doc/3")
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "short", snippet("short"))
	long := strings.Repeat("字", snippetLen+5)
	assert.Equal(t, strings.Repeat("字", snippetLen)+"…", snippet(long))
}
