package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"inkwell-go/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chunkLine(content string) string {
	return fmt.Sprintf(`data: {"id":"gen-1","object":"chat.completion.chunk","model":"test-model","choices":[{"index":0,"delta":{"content":%q}}]}`+"\n\n", content)
}

func usageLine(prompt, completion, total int) string {
	return fmt.Sprintf(`data: {"id":"gen-1","object":"chat.completion.chunk","model":"test-model","choices":[],"usage":{"prompt_tokens":%d,"completion_tokens":%d,"total_tokens":%d}}`+"\n\n", prompt, completion, total)
}

// sseServer replies to streaming requests with the given raw lines and to non-streaming
// requests with the concatenation of fragments.
func sseServer(t *testing.T, lines []string, fullText string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		if stream, _ := body["stream"].(bool); !stream {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"id":"gen-2","object":"chat.completion","model":"test-model","choices":[{"index":0,"message":{"role":"assistant","content":%q},"finish_reason":"stop"}],"usage":{"prompt_tokens":5,"completion_tokens":3,"total_tokens":8}}`, fullText)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, l := range lines {
			_, _ = io.WriteString(w, l)
			flusher.Flush()
		}
	}))
}

func newTestClient(baseURL string) Client {
	return NewClient(config.LLMConfig{
		BaseURL:     baseURL,
		APIKey:      "test-key",
		Model:       "default-model",
		Temperature: 0.7,
	})
}

func collect(t *testing.T, s ChunkStream) ([]string, error) {
	t.Helper()
	var out []string
	for {
		frag, err := s.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return out, err
		}
		out = append(out, frag)
	}
}

func TestStream_YieldsFragmentsThenUsage(t *testing.T) {
	lines := []string{
		": OPENROUTER PROCESSING\n\n",
		chunkLine("Hel"),
		chunkLine("lo"),
		chunkLine(" world"),
		usageLine(5, 3, 8),
		"data: [DONE]\n\n",
	}
	srv := sseServer(t, lines, "Hello world")
	defer srv.Close()

	stream, err := newTestClient(srv.URL).Stream(context.Background(), []Message{{Role: "user", Content: "Hi"}}, Options{})
	require.NoError(t, err)
	defer stream.Close()

	frags, err := collect(t, stream)
	require.NoError(t, err)
	assert.Equal(t, []string{"Hel", "lo", " world"}, frags)
	require.NotNil(t, stream.Usage())
	assert.Equal(t, Usage{PromptTokens: 5, CompletionTokens: 3, TotalTokens: 8}, *stream.Usage())

	// the sequence is not restartable
	_, err = stream.Recv()
	assert.ErrorIs(t, err, io.EOF)
}

func TestStream_ConcatenationMatchesComplete(t *testing.T) {
	lines := []string{chunkLine("Hel"), chunkLine("lo"), chunkLine(" world"), usageLine(5, 3, 8), "data: [DONE]\n\n"}
	srv := sseServer(t, lines, "Hello world")
	defer srv.Close()
	client := newTestClient(srv.URL)
	msgs := []Message{{Role: "user", Content: "Hi"}}

	stream, err := client.Stream(context.Background(), msgs, Options{})
	require.NoError(t, err)
	frags, err := collect(t, stream)
	require.NoError(t, err)

	completion, err := client.Complete(context.Background(), msgs, Options{})
	require.NoError(t, err)
	assert.Equal(t, completion.Message.Content, strings.Join(frags, ""))
	assert.Equal(t, "assistant", completion.Message.Role)
	assert.Equal(t, &Usage{PromptTokens: 5, CompletionTokens: 3, TotalTokens: 8}, completion.Usage)
}

func TestStream_SkipsMalformedLines(t *testing.T) {
	lines := []string{
		chunkLine("a"),
		"data: {not json\n\n",
		"event: ping\n",
		"data: \n\n",
		chunkLine("b"),
		"data: [DONE]\n\n",
	}
	srv := sseServer(t, lines, "ab")
	defer srv.Close()

	stream, err := newTestClient(srv.URL).Stream(context.Background(), []Message{{Role: "user", Content: "x"}}, Options{})
	require.NoError(t, err)
	frags, err := collect(t, stream)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, frags)
	assert.Nil(t, stream.Usage())
}

func TestStream_DoneTerminatesRegardlessOfUsage(t *testing.T) {
	lines := []string{
		chunkLine("only"),
		"data: [DONE]\n\n",
		chunkLine("ignored"),
		usageLine(1, 1, 2),
	}
	srv := sseServer(t, lines, "only")
	defer srv.Close()

	stream, err := newTestClient(srv.URL).Stream(context.Background(), []Message{{Role: "user", Content: "x"}}, Options{})
	require.NoError(t, err)
	frags, err := collect(t, stream)
	require.NoError(t, err)
	assert.Equal(t, []string{"only"}, frags)
	assert.Nil(t, stream.Usage())
}

func TestStream_EndsWithoutDoneMarker(t *testing.T) {
	srv := sseServer(t, []string{chunkLine("x"), chunkLine("y")}, "xy")
	defer srv.Close()

	stream, err := newTestClient(srv.URL).Stream(context.Background(), []Message{{Role: "user", Content: "x"}}, Options{})
	require.NoError(t, err)
	frags, err := collect(t, stream)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, frags)
}

func TestStream_InBandProviderError(t *testing.T) {
	lines := []string{chunkLine("Hel"), `data: {"error":{"message":"rate limited","code":429}}` + "\n\n"}
	srv := sseServer(t, lines, "")
	defer srv.Close()

	stream, err := newTestClient(srv.URL).Stream(context.Background(), []Message{{Role: "user", Content: "x"}}, Options{})
	require.NoError(t, err)
	frags, err := collect(t, stream)
	assert.Equal(t, []string{"Hel"}, frags)
	var ue *UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "rate limited", ue.Body)
}

func TestStream_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"message":"slow down"}}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Stream(context.Background(), []Message{{Role: "user", Content: "x"}}, Options{})
	var ue *UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, http.StatusTooManyRequests, ue.StatusCode)
	assert.Contains(t, ue.Body, "slow down")
}

func TestStream_EmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Stream(context.Background(), []Message{{Role: "user", Content: "x"}}, Options{})
	var ue *UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.ErrorIs(t, err, ErrNoResponseBody)
}

func TestStream_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := newTestClient(url).Stream(context.Background(), []Message{{Role: "user", Content: "x"}}, Options{})
	assert.True(t, IsUpstreamError(err))
}

func TestStream_CancellationStopsFurtherFragments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, chunkLine("first"))
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream, err := newTestClient(srv.URL).Stream(ctx, []Message{{Role: "user", Content: "x"}}, Options{})
	require.NoError(t, err)

	frag, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "first", frag)

	cancel()
	_, err = stream.Recv()
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoError(t, stream.Close())
}

func TestStream_RequestBody(t *testing.T) {
	bodies := make(chan map[string]any, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		bodies <- body
		_, _ = io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	hot := 9.0
	stream, err := newTestClient(srv.URL).Stream(context.Background(), []Message{{Role: "user", Content: "x"}}, Options{Temperature: &hot})
	require.NoError(t, err)
	_, err = stream.Recv()
	assert.ErrorIs(t, err, io.EOF)

	got := <-bodies
	assert.Equal(t, "default-model", got["model"])
	assert.Equal(t, true, got["stream"])
	assert.Equal(t, 2.0, got["temperature"])
	msgs := got["messages"].([]any)
	require.Len(t, msgs, 1)
	assert.Equal(t, "user", msgs[0].(map[string]any)["role"])
}

func TestComplete_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, `{"error":{"message":"provider down","type":"server_error"}}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Complete(context.Background(), []Message{{Role: "user", Content: "x"}}, Options{Model: "other"})
	var ue *UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, http.StatusBadGateway, ue.StatusCode)
	assert.Contains(t, ue.Body, "provider down")
}

func TestComplete_WithoutUsageLeavesUsageNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"gen-1","object":"chat.completion","model":"test-model","choices":[{"index":0,"message":{"role":"assistant","content":"hi"},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	completion, err := newTestClient(srv.URL).Complete(context.Background(), []Message{{Role: "user", Content: "x"}}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "hi", completion.Message.Content)
	assert.Nil(t, completion.Usage)
}

func TestEmptyMessagesRejected(t *testing.T) {
	c := newTestClient("http://127.0.0.1:0")
	_, err := c.Complete(context.Background(), nil, Options{})
	assert.ErrorIs(t, err, ErrEmptyMessages)
	_, err = c.Stream(context.Background(), nil, Options{})
	assert.ErrorIs(t, err, ErrEmptyMessages)
}

func TestClampTemperature(t *testing.T) {
	assert.Equal(t, 0.0, ClampTemperature(-1))
	assert.Equal(t, 1.3, ClampTemperature(1.3))
	assert.Equal(t, 2.0, ClampTemperature(3))
}

func TestResolveModel(t *testing.T) {
	c := newTestClient("http://example.invalid")
	assert.Equal(t, "default-model", c.ResolveModel(Options{}))
	assert.Equal(t, "anthropic/claude-3.5-sonnet", c.ResolveModel(Options{Model: " anthropic/claude-3.5-sonnet "}))
}
