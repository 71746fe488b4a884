package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"raid-loot/backend/config"
)

// WriteLocker 全局写锁：导入、手动编辑、分配、撤销、周次变更串行执行
type WriteLocker interface {
	// Lock 阻塞直到获取锁或 ctx 结束；返回的 unlock 必须调用
	Lock(ctx context.Context) (unlock func(), err error)
}

// ── 进程内实现 ──

type localLocker struct {
	sem chan struct{}
}

// NewLocalLocker 单实例部署使用的进程内写锁
func NewLocalLocker() WriteLocker {
	return &localLocker{sem: make(chan struct{}, 1)}
}

func (l *localLocker) Lock(ctx context.Context) (func(), error) {
	select {
	case l.sem <- struct{}{}:
		return func() { <-l.sem }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrWriteBusy, ctx.Err())
	}
}

// ── Redis 实现 ──

// LockClient Redis 锁原语（由 pkg/redis.Client 实现）
type LockClient interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Unlock(ctx context.Context, key, token string) error
}

type redisLocker struct {
	client LockClient
	key    string
	ttl    time.Duration
	retry  time.Duration
	logger *zap.Logger
}

// NewRedisLocker 多实例部署使用的 Redis 写锁（SET NX PX + 令牌释放）
func NewRedisLocker(client LockClient, cfg *config.LootConfig, logger *zap.Logger) WriteLocker {
	retry := cfg.LockRetryInterval
	if retry <= 0 {
		retry = 50 * time.Millisecond
	}
	ttl := cfg.LockTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &redisLocker{
		client: client,
		key:    cfg.LockKey,
		ttl:    ttl,
		retry:  retry,
		logger: logger,
	}
}

func (l *redisLocker) Lock(ctx context.Context) (func(), error) {
	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()

	for {
		token, ok, err := l.client.TryLock(ctx, l.key, l.ttl)
		if err != nil {
			l.logger.Error("获取 Redis 写锁失败", zap.String("key", l.key), zap.Error(err))
			return nil, err
		}
		if ok {
			return func() { l.release(token) }, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrWriteBusy, ctx.Err())
		case <-ticker.C:
		}
	}
}

// release 请求上下文可能已取消，释放锁使用独立的短超时
func (l *redisLocker) release(token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := l.client.Unlock(ctx, l.key, token); err != nil {
		l.logger.Warn("释放 Redis 写锁失败，等待 TTL 过期", zap.String("key", l.key), zap.Error(err))
	}
}
