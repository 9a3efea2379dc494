// Package testutil 提供测试用的数据库与内存替身。
package testutil

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"inkwell-go/internal/config"
	"inkwell-go/internal/model"
	"inkwell-go/pkg/database"
	"inkwell-go/pkg/tasks"

	"gorm.io/gorm"
)

// NewDB 在临时目录中创建一个已迁移的 sqlite 数据库。
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "test.db") + "?_busy_timeout=5000",
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.AutoMigrate(db, model.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// MemBlacklist 是进程内的 TokenBlacklist。
type MemBlacklist struct {
	mu   sync.Mutex
	jtis map[string]time.Time
}

func NewMemBlacklist() *MemBlacklist {
	return &MemBlacklist{jtis: map[string]time.Time{}}
}

func (b *MemBlacklist) Add(ctx context.Context, jti string, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.jtis[jti] = time.Now().Add(ttl)
	return nil
}

func (b *MemBlacklist) Contains(ctx context.Context, jti string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	exp, ok := b.jtis[jti]
	return ok && time.Now().Before(exp), nil
}

// RecordingPublisher 记录所有投递的任务，可设置 Err 模拟 Kafka 故障。
type RecordingPublisher struct {
	mu    sync.Mutex
	Tasks []tasks.Task
	Err   error
}

func (p *RecordingPublisher) Publish(ctx context.Context, task tasks.Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.Tasks = append(p.Tasks, task)
	return nil
}

// Published 返回已投递任务的快照。
func (p *RecordingPublisher) Published() []tasks.Task {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]tasks.Task(nil), p.Tasks...)
}
