// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"inkwell-go/internal/config"
	"inkwell-go/pkg/log"
	"inkwell-go/pkg/tasks"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
)

// TaskProcessor 由 pipeline 实现，消费者只依赖这个接口。
type TaskProcessor interface {
	Process(ctx context.Context, task tasks.Task) error
}

// Publisher 投递后台任务。
type Publisher interface {
	Publish(ctx context.Context, task tasks.Task) error
}

func brokers(cfg config.KafkaConfig) []string {
	var out []string
	for _, b := range strings.Split(cfg.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// Producer 是基于 kafka.Writer 的 Publisher。
type Producer struct {
	writer *kafka.Writer
}

// NewProducer 初始化 Kafka 生产者。
func NewProducer(cfg config.KafkaConfig) *Producer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers(cfg)...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	log.Info("Kafka 生产者初始化成功")
	return &Producer{writer: w}
}

// Publish 以任务 ID 为 key 发送任务。
func (p *Producer) Publish(ctx context.Context, task tasks.Task) error {
	value, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(task.ID), Value: value}); err != nil {
		return fmt.Errorf("failed to publish %s task: %w", task.Type, err)
	}
	return nil
}

// Close 刷新并关闭 writer。
func (p *Producer) Close() error {
	return p.writer.Close()
}

// InlinePublisher 在未启用 Kafka 时直接同步执行任务。
type InlinePublisher struct {
	Processor TaskProcessor
}

// Publish 同步处理任务。
func (p InlinePublisher) Publish(ctx context.Context, task tasks.Task) error {
	return p.Processor.Process(ctx, task)
}

// AttemptCounter 记录任务的失败次数，跨进程重启保留。
type AttemptCounter interface {
	Incr(ctx context.Context, key string) (int64, error)
	Reset(ctx context.Context, key string)
}

// RedisAttemptCounter 用 Redis INCR 计数，24 小时过期。
type RedisAttemptCounter struct {
	Client *redis.Client
}

func (c RedisAttemptCounter) Incr(ctx context.Context, key string) (int64, error) {
	n, err := c.Client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	_ = c.Client.Expire(ctx, key, 24*time.Hour).Err()
	return n, nil
}

func (c RedisAttemptCounter) Reset(ctx context.Context, key string) {
	_ = c.Client.Del(ctx, key).Err()
}

// Consumer 从任务主题拉取消息并交给 TaskProcessor。
type Consumer struct {
	reader      *kafka.Reader
	processor   TaskProcessor
	counter     AttemptCounter
	maxAttempts int64
	backoff     time.Duration
}

// NewConsumer 创建消费者；counter 可以为 nil，此时只在进程内计数。
func NewConsumer(cfg config.KafkaConfig, processor TaskProcessor, counter AttemptCounter) *Consumer {
	c := newConsumer(processor, counter, cfg.MaxAttempts)
	c.reader = kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers(cfg),
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	return c
}

func newConsumer(processor TaskProcessor, counter AttemptCounter, maxAttempts int64) *Consumer {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Consumer{
		processor:   processor,
		counter:     counter,
		maxAttempts: maxAttempts,
		backoff:     time.Second,
	}
}

// Run 阻塞直到 ctx 取消。每条消息处理成功或达到最大重试次数后才提交 offset。
func (c *Consumer) Run(ctx context.Context) {
	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", c.reader.Config().Topic)
	defer func() {
		if err := c.reader.Close(); err != nil {
			log.Error("关闭 Kafka 消费者失败", err)
		}
	}()

	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				log.Info("Kafka 消费者已停止")
				return
			}
			log.Error("从 Kafka 读取消息失败", err)
			return
		}

		c.handle(ctx, m.Value)
		if ctx.Err() != nil {
			// 停机时未处理完的消息不提交，重启后重新投递
			return
		}
		if err := c.reader.CommitMessages(context.Background(), m); err != nil {
			log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
		}
	}
}

// handle 处理一条消息，直到成功、达到最大次数或 ctx 取消。
func (c *Consumer) handle(ctx context.Context, value []byte) {
	var task tasks.Task
	if err := json.Unmarshal(value, &task); err != nil {
		// 消息格式错误，直接提交，避免阻塞队列
		log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(value))
		return
	}

	attemptsKey := "kafka:attempts:" + task.ID
	var local int64
	for {
		err := c.processor.Process(ctx, task)
		if err == nil {
			if c.counter != nil {
				c.counter.Reset(context.Background(), attemptsKey)
			}
			log.Infof("任务处理成功: id=%s type=%s", task.ID, task.Type)
			return
		}
		log.Errorf("任务处理失败: id=%s type=%s, error: %v", task.ID, task.Type, err)

		local++
		attempts := local
		if c.counter != nil {
			if n, incErr := c.counter.Incr(context.Background(), attemptsKey); incErr == nil {
				attempts = n
			}
		}
		if attempts >= c.maxAttempts {
			log.Errorf("任务多次失败(>=%d)，放弃: id=%s type=%s", c.maxAttempts, task.ID, task.Type)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.backoff * time.Duration(attempts)):
		}
	}
}
