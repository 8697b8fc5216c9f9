package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/digitalgenesiskompound/faceit-discord-bot-sub000/internal/repository"
)

// 离散失效事件：每种事件只失效受影响的键，不清空整个缓存
const (
	EventMatchStarted     = "match_started"
	EventMatchFinished    = "match_finished"
	EventMatchRescheduled = "match_rescheduled"
	EventThreadCreated    = "thread_created"
)

// 缓存键构造
func KeyMatch(matchID string) string { return "match:" + matchID }
func KeyRoster(teamID string) string { return "roster:" + teamID }
func KeyUpcomingList() string        { return "matches:upcoming" }
func KeyFinishedList() string        { return "matches:finished" }
func KeySearch(query string) string  { return "search:" + query }

// phaseTTL 相位结果的内存记忆时长，避免每次读缓存都扫一遍比赛表
const phaseTTL = 30 * time.Second

type memEntry struct {
	payload []byte
	until   time.Time
}

// Status 缓存层运行状态
type Status struct {
	Phase             Phase            `json:"phase"`
	TTLs              map[Class]string `json:"ttls"`
	MemoryEntries     int              `json:"memory_entries"`
	PersistentEntries int64            `json:"persistent_entries"`
}

// Adaptive 两层自适应缓存：进程内map + 持久化缓存表。
// 任何一层都不在计算出的过期时间之后继续提供数据。
type Adaptive struct {
	mu   sync.RWMutex
	mem  map[string]memEntry
	repo repository.CacheRepository

	matches repository.MatchRepository
	logger  *logrus.Logger

	phaseMu      sync.Mutex
	cachedPhase  Phase
	phaseValidTo time.Time

	now func() time.Time
}

// NewAdaptive 创建两层缓存；相位由被追踪比赛集合推导
func NewAdaptive(cacheRepo repository.CacheRepository, matchRepo repository.MatchRepository, logger *logrus.Logger) *Adaptive {
	return &Adaptive{
		mem:     make(map[string]memEntry),
		repo:    cacheRepo,
		matches: matchRepo,
		logger:  logger,
		now:     time.Now,
	}
}

// CurrentPhase 当前相位（短暂记忆，扫描比赛表的结果30秒内复用）
func (c *Adaptive) CurrentPhase(ctx context.Context) Phase {
	c.phaseMu.Lock()
	defer c.phaseMu.Unlock()
	now := c.now()
	if c.cachedPhase != "" && now.Before(c.phaseValidTo) {
		return c.cachedPhase
	}
	matches, err := c.matches.List(ctx)
	if err != nil {
		c.logger.WithError(err).Warn("相位计算读取比赛列表失败，按NORMAL处理")
		return PhaseNormal
	}
	c.cachedPhase = ComputePhase(now, matches)
	c.phaseValidTo = now.Add(phaseTTL)
	return c.cachedPhase
}

// GetJSON 读取缓存：内存层 → 持久层（回填内存） → loader（写两层）。
// loader 的返回值与缓存命中统一经由JSON编解码写入 dest。
func (c *Adaptive) GetJSON(ctx context.Context, key string, class Class, dest any, loader func(ctx context.Context) (any, error)) error {
	now := c.now()

	// 1. 进程内层
	c.mu.RLock()
	if e, ok := c.mem[key]; ok && now.Before(e.until) {
		c.mu.RUnlock()
		return json.Unmarshal(e.payload, dest)
	}
	c.mu.RUnlock()

	// 2. 持久层，命中时回填进程内层
	row, err := c.repo.Get(ctx, key)
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("读持久缓存失败，降级为直接加载")
	} else if row != nil && now.Unix() < row.ExpiresAt {
		c.mu.Lock()
		c.mem[key] = memEntry{payload: []byte(row.Payload), until: time.Unix(row.ExpiresAt, 0)}
		c.mu.Unlock()
		return json.Unmarshal([]byte(row.Payload), dest)
	}

	// 3. 加载并写两层
	val, err := loader(ctx)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(val)
	if err != nil {
		return fmt.Errorf("序列化缓存载荷失败: %w", err)
	}
	ttl := TTL(c.CurrentPhase(ctx), class)
	until := now.Add(ttl)

	c.mu.Lock()
	c.mem[key] = memEntry{payload: payload, until: until}
	c.mu.Unlock()
	if err := c.repo.Set(ctx, key, string(payload), until.Unix()); err != nil {
		// 持久层写失败只降级：内存层仍然有效
		c.logger.WithError(err).WithField("key", key).Warn("写持久缓存失败")
	}
	return json.Unmarshal(payload, dest)
}

// Invalidate 显式失效指定键（两层同时删除）
func (c *Adaptive) Invalidate(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	c.mu.Lock()
	for _, k := range keys {
		delete(c.mem, k)
	}
	c.mu.Unlock()
	if err := c.repo.Delete(ctx, keys...); err != nil {
		c.logger.WithError(err).WithField("keys", keys).Warn("删持久缓存失败")
	}
	// 状态变更事件同时使相位记忆失效
	c.phaseMu.Lock()
	c.phaseValidTo = time.Time{}
	c.phaseMu.Unlock()
}

// InvalidateEvent 状态变更事件触发的定点失效
func (c *Adaptive) InvalidateEvent(ctx context.Context, event, matchID string) {
	switch event {
	case EventMatchStarted:
		c.Invalidate(ctx, KeyMatch(matchID), KeyUpcomingList())
	case EventMatchFinished:
		c.Invalidate(ctx, KeyMatch(matchID), KeyUpcomingList(), KeyFinishedList())
	case EventMatchRescheduled:
		c.Invalidate(ctx, KeyMatch(matchID), KeyUpcomingList())
	case EventThreadCreated:
		c.Invalidate(ctx, KeyMatch(matchID))
	default:
		c.logger.WithField("event", event).Warn("未知的缓存失效事件，忽略")
	}
}

// PurgeExpired 清理两层中已过期的条目（后台扫描调用），返回持久层清理数量
func (c *Adaptive) PurgeExpired(ctx context.Context) (int64, error) {
	now := c.now()
	c.mu.Lock()
	for k, e := range c.mem {
		if !now.Before(e.until) {
			delete(c.mem, k)
		}
	}
	c.mu.Unlock()
	return c.repo.DeleteExpired(ctx, now.Unix())
}

// Status 上报当前相位、TTL表与两层条目数
func (c *Adaptive) Status(ctx context.Context) Status {
	phase := c.CurrentPhase(ctx)
	ttls := make(map[Class]string, len(ttlTable[phase]))
	for class, d := range ttlTable[phase] {
		ttls[class] = d.String()
	}
	c.mu.RLock()
	memCount := len(c.mem)
	c.mu.RUnlock()
	persistent, err := c.repo.Count(ctx)
	if err != nil {
		c.logger.WithError(err).Warn("统计持久缓存行数失败")
	}
	return Status{Phase: phase, TTLs: ttls, MemoryEntries: memCount, PersistentEntries: persistent}
}
