package service

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/adhocore/gronx"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/digitalgenesiskompound/faceit-discord-bot-sub000/internal/cache"
	"github.com/digitalgenesiskompound/faceit-discord-bot-sub000/internal/config"
	"github.com/digitalgenesiskompound/faceit-discord-bot-sub000/internal/interfaces"
	"github.com/digitalgenesiskompound/faceit-discord-bot-sub000/internal/lock"
	"github.com/digitalgenesiskompound/faceit-discord-bot-sub000/internal/model"
	"github.com/digitalgenesiskompound/faceit-discord-bot-sub000/internal/repository"
	"github.com/digitalgenesiskompound/faceit-discord-bot-sub000/internal/xerrors"
)

// Checker 周期扫描入口：发现比赛、逐场调和并分发动作、刷新出勤面板、做维护清理。
// 同一时刻只允许一轮扫描在跑。
type Checker struct {
	source     interfaces.MatchSourceAdapter
	platform   interfaces.ThreadPlatformAdapter
	reconciler *Reconciler
	lifecycle  *ThreadLifecycle
	rsvpSync   *RsvpSync
	matches    repository.MatchRepository
	threads    repository.ThreadRepository
	rsvps      repository.RsvpRepository
	markers    repository.MarkerRepository
	cache      *cache.Adaptive
	locks      *lock.Manager
	cfg        *config.SyncConfig
	logger     *logrus.Logger
	running    atomic.Bool
	now        func() time.Time
}

// NewChecker 创建周期扫描器
func NewChecker(
	source interfaces.MatchSourceAdapter,
	platform interfaces.ThreadPlatformAdapter,
	reconciler *Reconciler,
	lifecycle *ThreadLifecycle,
	rsvpSync *RsvpSync,
	matches repository.MatchRepository,
	threads repository.ThreadRepository,
	rsvps repository.RsvpRepository,
	markers repository.MarkerRepository,
	adaptive *cache.Adaptive,
	locks *lock.Manager,
	cfg *config.SyncConfig,
	logger *logrus.Logger,
) *Checker {
	return &Checker{
		source:     source,
		platform:   platform,
		reconciler: reconciler,
		lifecycle:  lifecycle,
		rsvpSync:   rsvpSync,
		matches:    matches,
		threads:    threads,
		rsvps:      rsvps,
		markers:    markers,
		cache:      adaptive,
		locks:      locks,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// Start 按Cron表达式驱动扫描循环，ctx取消时退出
func (c *Checker) Start(ctx context.Context) error {
	if !gronx.IsValid(c.cfg.Cron) {
		return xerrors.NewValidationError("非法Cron表达式: %s", c.cfg.Cron)
	}
	c.logger.WithField("cron", c.cfg.Cron).Info("后台扫描调度已启动")
	go func() {
		for {
			next, err := gronx.NextTickAfter(c.cfg.Cron, c.now(), false)
			if err != nil {
				c.logger.WithError(err).Error("计算下次扫描时间失败，调度退出")
				return
			}
			select {
			case <-ctx.Done():
				c.logger.Info("后台扫描调度已停止")
				return
			case <-time.After(time.Until(next)):
				c.CheckMatches(ctx)
			}
		}
	}()
	return nil
}

// CheckMatches 执行一轮完整扫描。已有扫描在跑时直接返回。
func (c *Checker) CheckMatches(ctx context.Context) {
	if !c.running.CompareAndSwap(false, true) {
		c.logger.Debug("上一轮扫描尚未结束，跳过本轮")
		return
	}
	defer c.running.Store(false)

	runID := uuid.New().String()
	log := c.logger.WithField("run_id", runID)
	start := c.now()
	log.WithField("phase", c.cache.CurrentPhase(ctx)).Info("开始扫描")

	ids := c.discover(ctx, log)
	for _, id := range ids {
		c.reconcileOne(ctx, log, id)
	}

	c.rsvpSync.SyncAll(ctx)
	c.maintain(ctx, log)

	log.WithFields(logrus.Fields{
		"matches": len(ids),
		"elapsed": c.now().Sub(start).String(),
	}).Info("扫描完成")
}

// discover 汇总本轮需要调和的比赛ID：数据源两个列表 + 本地已存记录。
// 列表拉取失败只降级为对已存记录调和，不中断。
func (c *Checker) discover(ctx context.Context, log *logrus.Entry) []string {
	seen := make(map[string]struct{})
	var ids []string
	add := func(id string) {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}

	var upcoming []*model.SourceMatch
	err := c.cache.GetJSON(ctx, cache.KeyUpcomingList(), cache.ClassUpcomingList, &upcoming,
		func(ctx context.Context) (any, error) {
			return c.source.FetchUpcomingMatches(ctx)
		})
	if err != nil {
		log.WithError(err).Warn("拉取未开赛比赛列表失败，仅调和已存记录")
	}
	for _, m := range upcoming {
		add(m.MatchID)
	}

	var finished []*model.SourceMatch
	err = c.cache.GetJSON(ctx, cache.KeyFinishedList(), cache.ClassFinishedList, &finished,
		func(ctx context.Context) (any, error) {
			return c.source.FetchFinishedMatches(ctx, c.cfg.FinishedFetchLimit)
		})
	if err != nil {
		log.WithError(err).Warn("拉取最近结束比赛列表失败，仅调和已存记录")
	}
	for _, m := range finished {
		add(m.MatchID)
	}

	stored, err := c.matches.List(ctx)
	if err != nil {
		log.WithError(err).Error("读取已存比赛失败")
	}
	for _, m := range stored {
		add(m.MatchID)
	}
	return ids
}

// reconcileOne 调和单场比赛并执行决策；任何一场失败都不中断整轮扫描
func (c *Checker) reconcileOne(ctx context.Context, log *logrus.Entry, matchID string) {
	mlog := log.WithField("match_id", matchID)
	action, err := c.reconciler.Reconcile(ctx, matchID)
	if err != nil {
		mlog.WithError(err).Warn("调和失败")
		return
	}
	if action == ActionNoAction || action == ActionSkipUnvalidated {
		return
	}
	if err := c.dispatch(ctx, matchID, action); err != nil {
		if xerrors.IsDuplicate(err) {
			// 并发路径已完成同一动作，无害
			mlog.WithField("action", action).Debug("动作已由并发路径完成")
			return
		}
		mlog.WithError(err).WithField("action", action).Warn("调和动作执行失败")
		return
	}
	mlog.WithField("action", action).Info("调和动作已执行")
}

// dispatch 把调和决策翻译成子区生命周期操作，动作在比赛级变更锁内执行
func (c *Checker) dispatch(ctx context.Context, matchID string, action Action) error {
	// 过期残留即使从未入库也要清理本地痕迹
	if action == ActionCleanupStale {
		return c.locks.WithLock(ctx, "match:"+matchID, func(ctx context.Context) error {
			return c.cleanupStale(ctx, matchID)
		})
	}

	m, err := c.matches.Get(ctx, matchID)
	if err != nil {
		return err
	}
	if m == nil {
		return xerrors.NewValidationError("比赛 %s 未入库，无法执行 %s", matchID, action)
	}
	return c.locks.WithLock(ctx, "match:"+matchID, func(ctx context.Context) error {
		switch action {
		case ActionCreateUpcoming:
			return c.lifecycle.Create(ctx, m)
		case ActionConvertToFinished:
			return c.lifecycle.ConvertToFinished(ctx, m)
		case ActionRestoreReference:
			return c.lifecycle.RestoreReference(ctx, m)
		default:
			return nil
		}
	})
}

// cleanupStale 保留窗口之外的残留：清掉本地出勤数据。
// 关联只有在平台确认子区已不存在时才移除，否则留给整体清除路径。
func (c *Checker) cleanupStale(ctx context.Context, matchID string) error {
	assoc, err := c.threads.GetByMatch(ctx, matchID)
	if err != nil {
		return err
	}
	if assoc != nil {
		exists, err := c.platform.ThreadExists(ctx, assoc.ThreadID)
		if err != nil {
			return err
		}
		if !exists {
			if err := c.threads.Remove(ctx, matchID); err != nil {
				return err
			}
		}
	}
	return c.rsvps.DeleteByMatch(ctx, matchID)
}

// maintain 每轮扫描尾部的维护：锁定老化子区、清理过期缓存、整体清除退役比赛
func (c *Checker) maintain(ctx context.Context, log *logrus.Entry) {
	c.lifecycle.LockAged(ctx)

	if n, err := c.cache.PurgeExpired(ctx); err != nil {
		log.WithError(err).Warn("清理过期缓存失败")
	} else if n > 0 {
		log.WithField("purged", n).Debug("已清理过期缓存条目")
	}

	cutoff := c.now().Add(-c.cfg.PurgeAfter)
	retired, err := c.matches.ListFinishedBefore(ctx, cutoff.Unix())
	if err != nil {
		log.WithError(err).Warn("查询待清除比赛失败")
		return
	}
	for _, m := range retired {
		if err := c.purgeMatch(ctx, m); err != nil {
			log.WithError(err).WithField("match_id", m.MatchID).Warn("清除退役比赛失败")
		}
	}

	if n, err := c.markers.DeleteBefore(ctx, cutoff); err != nil {
		log.WithError(err).Warn("清理公告去重标记失败")
	} else if n > 0 {
		log.WithField("deleted", n).Debug("已清理公告去重标记")
	}
}

// purgeMatch 整体清除一场退役比赛。关联的子区仍存在时只删本地记录，
// 子区本体留给平台的归档策略处理。
func (c *Checker) purgeMatch(ctx context.Context, m *model.Match) error {
	return c.locks.WithLock(ctx, "match:"+m.MatchID, func(ctx context.Context) error {
		assoc, err := c.threads.GetByMatch(ctx, m.MatchID)
		if err != nil {
			return err
		}
		if assoc != nil {
			if err := c.threads.Remove(ctx, m.MatchID); err != nil {
				return err
			}
		}
		if err := c.rsvps.DeleteByMatch(ctx, m.MatchID); err != nil {
			return err
		}
		if err := c.matches.Delete(ctx, m.MatchID); err != nil {
			return err
		}
		c.cache.Invalidate(ctx, cache.KeyMatch(m.MatchID))
		return nil
	})
}
