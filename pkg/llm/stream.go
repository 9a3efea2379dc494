package llm

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/sashabaranov/go-openai"
)

const (
	dataPrefix = "data:"
	doneMarker = "[DONE]"
)

// streamPayload is one `data:` line. OpenRouter reports mid-stream failures as an error object.
type streamPayload struct {
	openai.ChatCompletionStreamResponse
	Error *struct {
		Message string `json:"message"`
		Code    any    `json:"code"`
	} `json:"error,omitempty"`
}

// Stream reads an OpenAI-compatible event stream one fragment at a time.
// The response body is closed on every terminal path: EOF, [DONE], error or cancellation.
type Stream struct {
	ctx    context.Context
	body   io.ReadCloser
	reader *bufio.Reader

	usage *Usage
	err   error

	closeOnce sync.Once
}

func newStream(ctx context.Context, body io.ReadCloser, reader *bufio.Reader) *Stream {
	return &Stream{ctx: ctx, body: body, reader: reader}
}

// Recv blocks until the next non-empty text fragment is available.
// It returns io.EOF when the provider ends the stream, the context error on cancellation,
// and an *UpstreamError on read failures or in-band provider errors. Errors are sticky.
func (s *Stream) Recv() (string, error) {
	if s.err != nil {
		return "", s.err
	}
	for {
		if err := s.ctx.Err(); err != nil {
			return "", s.finish(err)
		}

		line, readErr := s.reader.ReadString('\n')
		if line != "" {
			fragment, done, err := s.parseLine(line)
			if err != nil {
				return "", s.finish(err)
			}
			if done {
				return "", s.finish(io.EOF)
			}
			if fragment != "" {
				return fragment, nil
			}
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return "", s.finish(io.EOF)
			}
			if ctxErr := s.ctx.Err(); ctxErr != nil {
				return "", s.finish(ctxErr)
			}
			return "", s.finish(&UpstreamError{Err: fmt.Errorf("failed to read from stream: %w", readErr)})
		}
	}
}

// parseLine handles one line of the event stream. Lines that are not data lines, and data
// lines that fail to decode, are skipped.
func (s *Stream) parseLine(line string) (fragment string, done bool, err error) {
	line = strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(line, dataPrefix) {
		return "", false, nil
	}
	data := strings.TrimSpace(strings.TrimPrefix(line, dataPrefix))
	if data == doneMarker {
		return "", true, nil
	}
	if data == "" {
		return "", false, nil
	}

	var chunk streamPayload
	if err := json.Unmarshal([]byte(data), &chunk); err != nil {
		return "", false, nil
	}
	if chunk.Error != nil {
		return "", false, &UpstreamError{Body: chunk.Error.Message, Err: errors.New("provider reported an error mid-stream")}
	}
	if chunk.Usage != nil {
		u := Usage{
			PromptTokens:     chunk.Usage.PromptTokens,
			CompletionTokens: chunk.Usage.CompletionTokens,
		}
		u.normalize()
		s.usage = &u
	}
	if len(chunk.Choices) > 0 {
		return chunk.Choices[0].Delta.Content, false, nil
	}
	return "", false, nil
}

func (s *Stream) finish(err error) error {
	s.err = err
	_ = s.Close()
	return err
}

// Usage returns the usage record seen on the stream, or nil. It is only complete after Recv returned io.EOF.
func (s *Stream) Usage() *Usage {
	return s.usage
}

// Close releases the underlying response body. It is safe to call more than once.
func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.body.Close()
	})
	return err
}

var _ ChunkStream = (*Stream)(nil)
