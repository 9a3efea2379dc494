// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"inkwell-go/internal/model"
	"inkwell-go/internal/repository"
	"inkwell-go/pkg/kafka"
	"inkwell-go/pkg/llm"
	"inkwell-go/pkg/log"
	"inkwell-go/pkg/metrics"
	"inkwell-go/pkg/tasks"
	"inkwell-go/pkg/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// persistTimeout 限制流结束后写入助手消息的时间，与请求是否取消无关。
const persistTimeout = 10 * time.Second

// RelayRequest 是一轮对话的输入。Model 为空、Temperature 为 nil 时使用配置默认值。
type RelayRequest struct {
	UserID         uint
	ConversationID string
	Content        string
	Model          string
	Temperature    *float64
}

// ChatTurn 是非流式对话的结果。
type ChatTurn struct {
	UserMessage      model.Message `json:"user_message"`
	AssistantMessage model.Message `json:"assistant_message"`
}

// ChatService 定义了聊天操作的接口。
type ChatService interface {
	// Relay 把上游的流式回复转发给 sink。
	// 在 sink 写出任何字节之前发生的错误（NotFound、用户消息写入失败）直接返回；
	// 之后的错误通过 ErrorEvent 在流内告知客户端，Relay 返回 nil。
	Relay(ctx context.Context, req RelayRequest, sink EventSink) error
	// Complete 执行一轮非流式对话。
	Complete(ctx context.Context, req RelayRequest) (*ChatTurn, error)
}

type chatService struct {
	llmClient    llm.Client
	convRepo     repository.ConversationRepository
	publisher    kafka.Publisher
	systemPrompt string
}

// NewChatService 创建一个新的 ChatService 实例。publisher 用于助手消息写入失败后的延迟重试，可以为 nil。
func NewChatService(llmClient llm.Client, convRepo repository.ConversationRepository, publisher kafka.Publisher, systemPrompt string) ChatService {
	return &chatService{
		llmClient:    llmClient,
		convRepo:     convRepo,
		publisher:    publisher,
		systemPrompt: strings.TrimSpace(systemPrompt),
	}
}

// prepare 校验对话归属并写入用户消息。任何一步失败都不会向客户端输出内容。
func (s *chatService) prepare(ctx context.Context, req RelayRequest) (*model.Message, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, invalidf("content must not be blank")
	}
	if _, err := s.convRepo.GetConversation(ctx, req.ConversationID, req.UserID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}

	userMsg := &model.Message{
		ConversationID: req.ConversationID,
		UserID:         req.UserID,
		Role:           model.MessageRoleUser,
		Content:        content,
	}
	if err := s.convRepo.CreateMessage(ctx, userMsg); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, &PersistenceError{Op: "create user message", Err: err}
	}
	return userMsg, nil
}

// history 读取对话的全部消息（按创建顺序），并在前面加上配置的 system prompt。
func (s *chatService) history(ctx context.Context, req RelayRequest) ([]llm.Message, error) {
	msgs, err := s.convRepo.ListMessages(ctx, req.ConversationID, req.UserID, repository.OrderAsc)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	out := make([]llm.Message, 0, len(msgs)+1)
	if s.systemPrompt != "" {
		out = append(out, llm.Message{Role: model.MessageRoleSystem, Content: s.systemPrompt})
	}
	for _, m := range msgs {
		out = append(out, llm.Message{Role: m.Role, Content: m.Content})
	}
	return out, nil
}

func (s *chatService) Relay(ctx context.Context, req RelayRequest, sink EventSink) error {
	start := time.Now()
	ctx, span := tracing.Tracer().Start(ctx, "chat.relay", trace.WithAttributes(
		attribute.String("conversation.id", req.ConversationID),
		attribute.Int("user.id", int(req.UserID)),
	))
	defer span.End()

	userMsg, err := s.prepare(ctx, req)
	if err != nil {
		metrics.ChatStreamsTotal.WithLabelValues(metrics.StatusRejected).Inc()
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	metrics.ChatActiveStreams.Inc()
	defer metrics.ChatActiveStreams.Dec()

	status := s.relay(ctx, req, userMsg, sink, span)
	metrics.ChatStreamsTotal.WithLabelValues(status).Inc()
	metrics.ChatStreamDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
	span.SetAttributes(attribute.String("chat.status", status))

	if !sink.Started() {
		return fmt.Errorf("stream ended with status %s before any event was delivered", status)
	}
	return nil
}

// relay 从发送 user_message 开始驱动整个流，返回结束状态。
func (s *chatService) relay(ctx context.Context, req RelayRequest, userMsg *model.Message, sink EventSink, span trace.Span) string {
	if err := sink.Send(UserMessageEvent{Message: *userMsg}); err != nil {
		log.Warnf("[ChatService] 发送 user_message 失败, conversation=%s: %v", req.ConversationID, err)
		return metrics.StatusCancelled
	}

	history, err := s.history(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return metrics.StatusCancelled
		}
		return s.fail(sink, span, req, metrics.StatusFailed, err)
	}

	opts := llm.Options{Model: req.Model, Temperature: req.Temperature}
	stream, err := s.llmClient.Stream(ctx, history, opts)
	if err != nil {
		if ctx.Err() != nil {
			return metrics.StatusCancelled
		}
		metrics.ChatUpstreamErrors.Inc()
		return s.fail(sink, span, req, metrics.StatusUpstream, err)
	}
	defer stream.Close()

	var answer strings.Builder
	for {
		fragment, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				// 客户端已断开：不再写任何内容，也不保存半截回复
				log.Infof("[ChatService] 客户端断开, conversation=%s, 已转发 %d 字节", req.ConversationID, answer.Len())
				return metrics.StatusCancelled
			}
			metrics.ChatUpstreamErrors.Inc()
			return s.fail(sink, span, req, metrics.StatusUpstream, err)
		}

		answer.WriteString(fragment)
		if err := sink.Send(ChunkEvent{Content: fragment}); err != nil {
			log.Infof("[ChatService] 写入 ai_chunk 失败，停止转发, conversation=%s: %v", req.ConversationID, err)
			return metrics.StatusCancelled
		}
	}

	assistant := s.newAssistantMessage(req, userMsg, answer.String(), s.llmClient.ResolveModel(opts), stream.Usage())
	s.persistAssistant(ctx, assistant)

	if err := sink.Send(CompleteEvent{Message: *assistant}); err != nil {
		return metrics.StatusCancelled
	}
	if err := sink.Close(); err != nil {
		log.Warnf("[ChatService] 关闭事件流失败, conversation=%s: %v", req.ConversationID, err)
	}
	return metrics.StatusCompleted
}

// fail 记录完整错误，但只向客户端发送通用提示。
func (s *chatService) fail(sink EventSink, span trace.Span, req RelayRequest, status string, err error) string {
	log.Errorw("[ChatService] 流式对话失败",
		"conversation", req.ConversationID,
		"user", req.UserID,
		"status", status,
		"error", err,
	)
	span.RecordError(err)
	span.SetStatus(codes.Error, status)

	if sendErr := sink.Send(ErrorEvent{Message: GenericUpstreamMessage}); sendErr != nil {
		return status
	}
	if closeErr := sink.Close(); closeErr != nil {
		log.Warnf("[ChatService] 关闭事件流失败, conversation=%s: %v", req.ConversationID, closeErr)
	}
	return status
}

func (s *chatService) newAssistantMessage(req RelayRequest, userMsg *model.Message, content, modelName string, usage *llm.Usage) *model.Message {
	msg := &model.Message{
		ID:             repository.NewID(),
		ConversationID: req.ConversationID,
		UserID:         req.UserID,
		Role:           model.MessageRoleAssistant,
		Content:        content,
	}
	if modelName != "" {
		msg.Model = &modelName
	}
	if usage != nil {
		msg.SetUsage(usage.PromptTokens, usage.CompletionTokens)
		metrics.ObserveUsage(usage.PromptTokens, usage.CompletionTokens)
	}
	// 助手消息必须排在用户消息之后
	now := time.Now()
	if !now.After(userMsg.CreatedAt) {
		now = userMsg.CreatedAt.Add(time.Millisecond)
	}
	msg.CreatedAt = now
	msg.UpdatedAt = now
	return msg
}

// persistAssistant 在与请求解耦的 context 中写入助手消息。
// 写入失败时记录日志并投递延迟重试任务；客户端仍然会收到 ai_complete。
func (s *chatService) persistAssistant(ctx context.Context, msg *model.Message) {
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	err := s.convRepo.CreateMessage(persistCtx, msg)
	if err == nil {
		if touchErr := s.convRepo.TouchConversation(persistCtx, msg.ConversationID); touchErr != nil {
			log.Warnf("[ChatService] 更新对话时间失败, conversation=%s: %v", msg.ConversationID, touchErr)
		}
		return
	}

	perr := &PersistenceError{Op: "create assistant message", Err: err}
	log.Error("[ChatService] 保存助手消息失败，转入延迟重试", perr)
	if s.publisher == nil {
		return
	}
	task, taskErr := tasks.New(tasks.TypePersistAssistantMessage, assistantPayload(msg))
	if taskErr == nil {
		taskErr = s.publisher.Publish(persistCtx, task)
	}
	if taskErr != nil {
		log.Error("[ChatService] 投递助手消息重试任务失败", taskErr)
	}
}

func assistantPayload(msg *model.Message) tasks.AssistantMessagePayload {
	p := tasks.AssistantMessagePayload{
		MessageID:        msg.ID,
		ConversationID:   msg.ConversationID,
		UserID:           msg.UserID,
		Content:          msg.Content,
		PromptTokens:     msg.PromptTokens,
		CompletionTokens: msg.CompletionTokens,
		TotalTokens:      msg.TotalTokens,
		CreatedAt:        msg.CreatedAt,
	}
	if msg.Model != nil {
		p.Model = *msg.Model
	}
	return p
}

func (s *chatService) Complete(ctx context.Context, req RelayRequest) (*ChatTurn, error) {
	ctx, span := tracing.Tracer().Start(ctx, "chat.complete")
	defer span.End()

	userMsg, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	history, err := s.history(ctx, req)
	if err != nil {
		return nil, err
	}

	opts := llm.Options{Model: req.Model, Temperature: req.Temperature}
	completion, err := s.llmClient.Complete(ctx, history, opts)
	if err != nil {
		metrics.ChatUpstreamErrors.Inc()
		span.RecordError(err)
		return nil, err
	}

	assistant := s.newAssistantMessage(req, userMsg, completion.Message.Content, completion.Model, completion.Usage)
	if err := s.convRepo.CreateMessage(ctx, assistant); err != nil {
		return nil, &PersistenceError{Op: "create assistant message", Err: err}
	}
	if err := s.convRepo.TouchConversation(ctx, req.ConversationID); err != nil {
		log.Warnf("[ChatService] 更新对话时间失败, conversation=%s: %v", req.ConversationID, err)
	}
	return &ChatTurn{UserMessage: *userMsg, AssistantMessage: *assistant}, nil
}
