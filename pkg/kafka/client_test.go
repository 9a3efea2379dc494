package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"inkwell-go/pkg/tasks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyProcessor struct {
	failures int
	calls    int
}

func (p *flakyProcessor) Process(ctx context.Context, task tasks.Task) error {
	p.calls++
	if p.calls <= p.failures {
		return errors.New("boom")
	}
	return nil
}

type memCounter struct {
	mu     sync.Mutex
	counts map[string]int64
}

func (c *memCounter) Incr(ctx context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[key]++
	return c.counts[key], nil
}

func (c *memCounter) Reset(ctx context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.counts, key)
}

func encodedTask(t *testing.T) []byte {
	t.Helper()
	task, err := tasks.New(tasks.TypeIndexPost, tasks.PostPayload{PostID: 7})
	require.NoError(t, err)
	return mustJSON(t, task)
}

func TestConsumer_RetriesUntilSuccess(t *testing.T) {
	proc := &flakyProcessor{failures: 2}
	counter := &memCounter{counts: map[string]int64{}}
	c := newConsumer(proc, counter, 5)
	c.backoff = time.Millisecond

	c.handle(context.Background(), encodedTask(t))
	assert.Equal(t, 3, proc.calls)
	assert.Empty(t, counter.counts)
}

func TestConsumer_GivesUpAfterMaxAttempts(t *testing.T) {
	proc := &flakyProcessor{failures: 100}
	counter := &memCounter{counts: map[string]int64{}}
	c := newConsumer(proc, counter, 3)
	c.backoff = time.Millisecond

	c.handle(context.Background(), encodedTask(t))
	assert.Equal(t, 3, proc.calls)
}

func TestConsumer_SkipsUndecodableMessage(t *testing.T) {
	proc := &flakyProcessor{}
	c := newConsumer(proc, nil, 3)
	c.handle(context.Background(), []byte("not json"))
	assert.Zero(t, proc.calls)
}

func TestInlinePublisher(t *testing.T) {
	proc := &flakyProcessor{}
	task, err := tasks.New(tasks.TypeDeletePost, tasks.PostPayload{PostID: 1})
	require.NoError(t, err)
	require.NoError(t, InlinePublisher{Processor: proc}.Publish(context.Background(), task))
	assert.Equal(t, 1, proc.calls)
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}
