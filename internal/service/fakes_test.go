package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"inkwell-go/internal/model"
	"inkwell-go/internal/repository"
	"inkwell-go/internal/testutil"
	"inkwell-go/pkg/llm"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeStream 依次返回 fragments，然后返回 err（为 nil 时返回 io.EOF）。
type fakeStream struct {
	ctx       context.Context
	fragments []string
	err       error
	usage     *llm.Usage
	pos       int
	closed    bool
}

func (s *fakeStream) Recv() (string, error) {
	if err := s.ctx.Err(); err != nil {
		return "", err
	}
	if s.pos < len(s.fragments) {
		f := s.fragments[s.pos]
		s.pos++
		return f, nil
	}
	if s.err != nil {
		return "", s.err
	}
	return "", io.EOF
}

func (s *fakeStream) Usage() *llm.Usage {
	if s.pos < len(s.fragments) || s.err != nil {
		return nil
	}
	return s.usage
}

func (s *fakeStream) Close() error {
	s.closed = true
	return nil
}

// fakeLLM 是可编排的 llm.Client。
type fakeLLM struct {
	fragments []string
	midErr    error
	openErr   error
	usage     *llm.Usage
	model     string

	mu       sync.Mutex
	requests [][]llm.Message
	streams  []*fakeStream
}

func (f *fakeLLM) record(messages []llm.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, append([]llm.Message(nil), messages...))
}

func (f *fakeLLM) Stream(ctx context.Context, messages []llm.Message, opts llm.Options) (llm.ChunkStream, error) {
	f.record(messages)
	if f.openErr != nil {
		return nil, f.openErr
	}
	s := &fakeStream{ctx: ctx, fragments: f.fragments, err: f.midErr, usage: f.usage}
	f.mu.Lock()
	f.streams = append(f.streams, s)
	f.mu.Unlock()
	return s, nil
}

func (f *fakeLLM) Complete(ctx context.Context, messages []llm.Message, opts llm.Options) (*llm.Completion, error) {
	f.record(messages)
	if f.openErr != nil {
		return nil, f.openErr
	}
	var content string
	for _, frag := range f.fragments {
		content += frag
	}
	return &llm.Completion{
		Message: llm.Message{Role: model.MessageRoleAssistant, Content: content},
		Model:   f.ResolveModel(opts),
		Usage:   f.usage,
	}, nil
}

func (f *fakeLLM) ResolveModel(opts llm.Options) string {
	if opts.Model != "" {
		return opts.Model
	}
	return f.model
}

// recordingSink 记录事件，onSend 可在发送时注入行为（例如取消 context）。
type recordingSink struct {
	events  []StreamEvent
	closed  int
	failOn  string
	onSend  func(StreamEvent)
	started bool
}

func (s *recordingSink) Send(ev StreamEvent) error {
	if s.failOn != "" && ev.Type() == s.failOn {
		return errors.New("broken pipe")
	}
	s.started = true
	s.events = append(s.events, ev)
	if s.onSend != nil {
		s.onSend(ev)
	}
	return nil
}

func (s *recordingSink) Close() error {
	s.started = true
	s.closed++
	return nil
}

func (s *recordingSink) Started() bool { return s.started }

func (s *recordingSink) types() []string {
	out := make([]string, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev.Type())
	}
	return out
}

// failingAssistantRepo 让助手消息的写入失败，用于验证延迟重试。
type failingAssistantRepo struct {
	repository.ConversationRepository
}

func (r failingAssistantRepo) CreateMessage(ctx context.Context, msg *model.Message) error {
	if msg.Role == model.MessageRoleAssistant {
		return errors.New("database is locked")
	}
	return r.ConversationRepository.CreateMessage(ctx, msg)
}

type fixture struct {
	db       *gorm.DB
	convRepo repository.ConversationRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	return &fixture{db: db, convRepo: repository.NewConversationRepository(db)}
}

func (f *fixture) conversation(t *testing.T, owner uint) *model.Conversation {
	t.Helper()
	conv, err := f.convRepo.CreateConversation(context.Background(), owner, "test")
	require.NoError(t, err)
	return conv
}

func (f *fixture) user(t *testing.T, username, role string) *model.User {
	t.Helper()
	u := &model.User{Username: username, Password: "x", Role: role}
	require.NoError(t, f.db.Create(u).Error)
	return u
}
