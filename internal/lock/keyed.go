package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sirupsen/logrus"

	"github.com/digitalgenesiskompound/faceit-discord-bot-sub000/internal/config"
	"github.com/digitalgenesiskompound/faceit-discord-bot-sub000/internal/xerrors"
)

// Manager 进程级变更锁：同一 resourceKey 下同时只有一个回调在执行，
// 其余调用方按到达顺序排队。每个逻辑操作只允许持有一个键，杜绝死锁。
type Manager struct {
	mu    sync.Mutex
	locks map[string]*resourceLock

	acquireTimeout time.Duration
	maxAttempts    int
	initialBackoff time.Duration
	logger         *logrus.Logger
}

type resourceLock struct {
	held    bool
	waiters []chan struct{} // FIFO，Release 时把所有权直接移交队首
}

// NewManager 创建变更锁管理器
func NewManager(cfg *config.LockConfig, logger *logrus.Logger) *Manager {
	return &Manager{
		locks:          make(map[string]*resourceLock),
		acquireTimeout: cfg.AcquireTimeout,
		maxAttempts:    cfg.MaxAttempts,
		initialBackoff: cfg.InitialBackoff,
		logger:         logger,
	}
}

// Acquire 获取资源锁，排队超时返回 LockTimeoutError
func (m *Manager) Acquire(ctx context.Context, key string) error {
	m.mu.Lock()
	rl, ok := m.locks[key]
	if !ok {
		rl = &resourceLock{}
		m.locks[key] = rl
	}
	if !rl.held {
		rl.held = true
		m.mu.Unlock()
		return nil
	}
	granted := make(chan struct{})
	rl.waiters = append(rl.waiters, granted)
	m.mu.Unlock()

	timer := time.NewTimer(m.acquireTimeout)
	defer timer.Stop()
	select {
	case <-granted:
		return nil
	case <-timer.C:
	case <-ctx.Done():
	}

	// 超时/取消：把自己摘出队列。若已被 Release 移交了所有权（队列里找不到自己），
	// 视作获取成功，否则所有权会丢失。
	m.mu.Lock()
	for i, ch := range rl.waiters {
		if ch == granted {
			rl.waiters = append(rl.waiters[:i], rl.waiters[i+1:]...)
			m.mu.Unlock()
			return &xerrors.LockTimeoutError{Resource: key}
		}
	}
	m.mu.Unlock()
	return nil
}

// Release 释放资源锁；有等待者时把所有权移交队首，否则回收锁记录
func (m *Manager) Release(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rl, ok := m.locks[key]
	if !ok || !rl.held {
		return
	}
	if len(rl.waiters) > 0 {
		next := rl.waiters[0]
		rl.waiters = rl.waiters[1:]
		close(next) // held 保持 true，所有权已转移
		return
	}
	rl.held = false
	delete(m.locks, key)
}

// WithLock 串行执行：获取 resourceKey 的锁后运行 fn。
// fn 返回可重试错误（如存储繁忙）时带指数退避重试到配置上限，
// 重试耗尽后以致命错误上抛；锁在完成、出错乃至 panic 时都会释放。
func (m *Manager) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if err := m.Acquire(ctx, key); err != nil {
		return err
	}
	defer m.Release(key)

	attempts := 0
	op := func() (struct{}, error) {
		attempts++
		err := fn(ctx)
		if err != nil && !xerrors.IsRetryable(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = m.initialBackoff
	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(eb),
		backoff.WithMaxTries(uint(m.maxAttempts)),
	)
	if err != nil && xerrors.IsRetryable(err) {
		m.logger.WithError(err).WithFields(logrus.Fields{"resource": key, "attempts": attempts}).
			Error("重试耗尽，操作失败")
		return fmt.Errorf("resource %s: 重试%d次后仍失败: %w", key, attempts, err)
	}
	return err
}
