package lock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digitalgenesiskompound/faceit-discord-bot-sub000/internal/config"
	"github.com/digitalgenesiskompound/faceit-discord-bot-sub000/internal/xerrors"
)

func newTestManager(timeout time.Duration) *Manager {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewManager(&config.LockConfig{
		AcquireTimeout: timeout,
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
	}, logger)
}

func TestWithLockSerializesSameKey(t *testing.T) {
	t.Parallel()

	m := newTestManager(5 * time.Second)

	// 两个并发回调绝不重叠：active 计数任何时刻不超过1
	var mu sync.Mutex
	active, maxActive, total := 0, 0, 0

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := m.WithLock(context.Background(), "match:m1", func(_ context.Context) error {
				mu.Lock()
				active++
				if active > maxActive {
					maxActive = active
				}
				mu.Unlock()

				time.Sleep(time.Millisecond)

				mu.Lock()
				active--
				total++
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxActive)
	assert.Equal(t, 16, total)
}

func TestDifferentKeysDoNotBlockEachOther(t *testing.T) {
	t.Parallel()

	m := newTestManager(100 * time.Millisecond)
	require.NoError(t, m.Acquire(context.Background(), "match:m1"))
	defer m.Release("match:m1")

	done := make(chan error, 1)
	go func() {
		done <- m.WithLock(context.Background(), "match:m2", func(_ context.Context) error {
			return nil
		})
	}()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("independent key should not wait for match:m1")
	}
}

func TestAcquireTimeoutReturnsTypedError(t *testing.T) {
	t.Parallel()

	m := newTestManager(20 * time.Millisecond)
	require.NoError(t, m.Acquire(context.Background(), "match:m1"))
	defer m.Release("match:m1")

	err := m.Acquire(context.Background(), "match:m1")
	require.Error(t, err)
	var lte *xerrors.LockTimeoutError
	assert.ErrorAs(t, err, &lte)
	assert.Equal(t, "match:m1", lte.Resource)
}

func TestReleaseHandsOwnershipInOrder(t *testing.T) {
	t.Parallel()

	m := newTestManager(5 * time.Second)
	require.NoError(t, m.Acquire(context.Background(), "k"))

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := 1; i <= 3; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			require.NoError(t, m.Acquire(context.Background(), "k"))
			mu.Lock()
			order = append(order, n)
			mu.Unlock()
			m.Release("k")
		}(i)
		// 给每个等待者排队的时间，保证到达顺序确定
		time.Sleep(20 * time.Millisecond)
	}

	m.Release("k")
	wg.Wait()

	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestWithLockRetriesBusyStore(t *testing.T) {
	t.Parallel()

	m := newTestManager(time.Second)
	calls := 0
	err := m.WithLock(context.Background(), "k", func(_ context.Context) error {
		calls++
		if calls < 3 {
			return &xerrors.StoreBusyError{Err: errors.New("database table is locked")}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithLockDoesNotRetryPermanentErrors(t *testing.T) {
	t.Parallel()

	m := newTestManager(time.Second)
	boom := errors.New("boom")
	calls := 0
	err := m.WithLock(context.Background(), "k", func(_ context.Context) error {
		calls++
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestWithLockReleasesOnPanic(t *testing.T) {
	t.Parallel()

	m := newTestManager(100 * time.Millisecond)

	func() {
		defer func() {
			assert.Equal(t, "boom", recover())
		}()
		_ = m.WithLock(context.Background(), "k", func(_ context.Context) error {
			panic("boom")
		})
	}()

	// panic 之后锁必须已释放，同一键可以立即再次获取
	require.NoError(t, m.WithLock(context.Background(), "k", func(_ context.Context) error {
		return nil
	}))
}

func TestWithLockGivesUpAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	m := newTestManager(time.Second)
	calls := 0
	err := m.WithLock(context.Background(), "k", func(_ context.Context) error {
		calls++
		return &xerrors.StoreBusyError{Err: errors.New("database table is locked")}
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)

	// 锁已释放，后续操作不受影响
	require.NoError(t, m.WithLock(context.Background(), "k", func(_ context.Context) error {
		return nil
	}))
}
