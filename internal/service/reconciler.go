package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/digitalgenesiskompound/faceit-discord-bot-sub000/internal/cache"
	"github.com/digitalgenesiskompound/faceit-discord-bot-sub000/internal/config"
	"github.com/digitalgenesiskompound/faceit-discord-bot-sub000/internal/interfaces"
	"github.com/digitalgenesiskompound/faceit-discord-bot-sub000/internal/model"
	"github.com/digitalgenesiskompound/faceit-discord-bot-sub000/internal/repository"
	"github.com/digitalgenesiskompound/faceit-discord-bot-sub000/internal/xerrors"
)

// Action 调和引擎对单场比赛得出的唯一必要动作
type Action string

const (
	ActionCreateUpcoming    Action = "create_upcoming"
	ActionConvertToFinished Action = "convert_to_finished"
	ActionRestoreReference  Action = "restore_reference"
	ActionCleanupStale      Action = "cleanup_stale"
	ActionNoAction          Action = "no_action"
	ActionSkipUnvalidated   Action = "skip_unvalidated"
)

// finishedAtSkew finished_at 允许的时钟偏差
const finishedAtSkew = 5 * time.Minute

// Reconciler 调和引擎：对每场已知比赛比较数据源新数据、已存数据与平台实际子区状态，
// 得出唯一必要动作。未经确认的数据绝不触发子区/比赛状态变更。
type Reconciler struct {
	source   interfaces.MatchSourceAdapter
	platform interfaces.ThreadPlatformAdapter
	matches  repository.MatchRepository
	threads  repository.ThreadRepository
	cache    *cache.Adaptive
	cfg      *config.SyncConfig
	logger   *logrus.Logger
	now      func() time.Time
}

// NewReconciler 创建调和引擎
func NewReconciler(
	source interfaces.MatchSourceAdapter,
	platform interfaces.ThreadPlatformAdapter,
	matches repository.MatchRepository,
	threads repository.ThreadRepository,
	adaptive *cache.Adaptive,
	cfg *config.SyncConfig,
	logger *logrus.Logger,
) *Reconciler {
	return &Reconciler{
		source:   source,
		platform: platform,
		matches:  matches,
		threads:  threads,
		cache:    adaptive,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// fetchFresh 经缓存层拉取单场比赛的权威数据，未命中时回落到数据源适配器
func (r *Reconciler) fetchFresh(ctx context.Context, matchID string) (*model.SourceMatch, error) {
	var fresh model.SourceMatch
	err := r.cache.GetJSON(ctx, cache.KeyMatch(matchID), cache.ClassUpcomingList, &fresh,
		func(ctx context.Context) (any, error) {
			return r.source.FetchMatch(ctx, matchID)
		})
	if err != nil {
		return nil, err
	}
	return &fresh, nil
}

// Reconcile 决策单场比赛的必要动作。
// 新数据不变的情况下重复调用，首次成功动作之后始终返回 no_action，
// 并且绝不为同一场比赛产生第二个子区或关联。
func (r *Reconciler) Reconcile(ctx context.Context, matchID string) (Action, error) {
	log := r.logger.WithField("match_id", matchID)

	stored, err := r.matches.Get(ctx, matchID)
	if err != nil {
		return ActionSkipUnvalidated, err
	}

	fresh, err := r.fetchFresh(ctx, matchID)
	if err != nil {
		// 瞬时抓取失败：绝不基于未确认数据做变更
		if xerrors.IsRetryable(err) {
			r.warnIfOverdue(log, stored)
			log.WithError(err).Warn("数据源不可达，跳过本场调和")
			return ActionSkipUnvalidated, nil
		}
		// 畸形数据：解析为skip决策并带结构化日志，不上抛
		if xerrors.IsValidation(err) {
			log.WithError(err).Warn("数据源返回非法数据，跳过本场调和")
			return ActionSkipUnvalidated, nil
		}
		return ActionSkipUnvalidated, err
	}

	// 状态回退属于异常信号：只记日志，不做破坏性动作
	if stored != nil && model.StatusRegressed(stored.Status, fresh.Status) {
		log.WithFields(logrus.Fields{"stored": stored.Status, "fresh": fresh.Status}).
			Warn("数据源状态回退，按异常处理不动作")
		return ActionNoAction, nil
	}

	// FINISHED 记录先过校验：非法或超出保留窗口的数据绝不落库
	if fresh.Status == model.StatusFinished {
		if act, ok := r.validateFinished(log, fresh); !ok {
			return act, nil
		}
	}

	// 落库更新（含状态转移触发的定点缓存失效）
	if err := r.persist(ctx, stored, fresh); err != nil {
		return ActionSkipUnvalidated, err
	}

	assoc, err := r.threads.GetByMatch(ctx, matchID)
	if err != nil {
		return ActionSkipUnvalidated, err
	}

	// 不信任存储关联，独立做平台直查
	discovered, err := r.platform.FindThreadByTag(ctx, ThreadTag(matchID))
	if err != nil {
		log.WithError(err).Warn("平台子区直查失败，跳过本场调和")
		return ActionSkipUnvalidated, nil
	}

	if fresh.Status == model.StatusFinished {
		return r.decideFinished(assoc, discovered)
	}
	return r.decideOngoing(ctx, log, fresh, assoc, discovered)
}

// warnIfOverdue 开赛已超过阈值仍无法确认时发运营告警（不动作）
func (r *Reconciler) warnIfOverdue(log *logrus.Entry, stored *model.Match) {
	if stored == nil {
		return
	}
	start := time.Unix(stored.ScheduledAt, 0)
	if overdue := r.now().Sub(start); overdue > r.cfg.OverdueAfter {
		log.WithField("overdue", overdue.String()).
			Warn("比赛开赛已久仍无法从数据源确认状态")
	}
}

// persist 把更新的数据源记录写回存储，并对状态转移触发定点缓存失效
func (r *Reconciler) persist(ctx context.Context, stored *model.Match, fresh *model.SourceMatch) error {
	if stored != nil && !changed(stored, fresh) {
		return nil
	}

	row := &model.Match{
		MatchID:     fresh.MatchID,
		TeamAID:     fresh.TeamAID,
		TeamAName:   fresh.TeamAName,
		TeamBID:     fresh.TeamBID,
		TeamBName:   fresh.TeamBName,
		ScheduledAt: fresh.ScheduledAt,
		Status:      fresh.Status,
		FinishedAt:  fresh.FinishedAt,
		CreatedAt:   r.now(),
	}
	if fresh.Result != nil {
		payload, err := json.Marshal(fresh.Result)
		if err != nil {
			return err
		}
		row.Result = payload
	}
	if err := r.matches.Upsert(ctx, row); err != nil {
		return err
	}

	if stored != nil {
		switch {
		case stored.Status != model.StatusLive && fresh.Status == model.StatusLive:
			r.cache.InvalidateEvent(ctx, cache.EventMatchStarted, fresh.MatchID)
		case stored.Status != model.StatusFinished && fresh.Status == model.StatusFinished:
			r.cache.InvalidateEvent(ctx, cache.EventMatchFinished, fresh.MatchID)
		case stored.ScheduledAt != fresh.ScheduledAt:
			r.cache.InvalidateEvent(ctx, cache.EventMatchRescheduled, fresh.MatchID)
		}
	}
	return nil
}

// changed 数据源记录相对存储行是否有实质变化
func changed(stored *model.Match, fresh *model.SourceMatch) bool {
	if stored.Status != fresh.Status || stored.ScheduledAt != fresh.ScheduledAt {
		return true
	}
	if (stored.FinishedAt == nil) != (fresh.FinishedAt == nil) {
		return true
	}
	if stored.FinishedAt != nil && fresh.FinishedAt != nil && *stored.FinishedAt != *fresh.FinishedAt {
		return true
	}
	if stored.TeamAName != fresh.TeamAName || stored.TeamBName != fresh.TeamBName {
		return true
	}
	return resultChanged(stored, fresh)
}

// resultChanged 赛果迟到或被上游修正时也要落库
func resultChanged(stored *model.Match, fresh *model.SourceMatch) bool {
	if fresh.Result == nil {
		return false
	}
	if len(stored.Result) == 0 {
		return true
	}
	var prev model.SourceResult
	if err := json.Unmarshal(stored.Result, &prev); err != nil {
		return true
	}
	return prev != *fresh.Result
}

// validateFinished FINISHED 记录的 finished_at 校验与保留窗口判断。
// 返回 ok=false 时调用方直接采用给出的动作，落库在此之前被拦下。
func (r *Reconciler) validateFinished(log *logrus.Entry, fresh *model.SourceMatch) (Action, bool) {
	if fresh.FinishedAt == nil {
		log.Warn("FINISHED比赛缺少finished_at，跳过")
		return ActionSkipUnvalidated, false
	}
	finishedAt := time.Unix(*fresh.FinishedAt, 0)
	now := r.now()
	if finishedAt.After(now.Add(finishedAtSkew)) {
		log.WithField("finished_at", finishedAt).Warn("finished_at在未来，数据非法，跳过")
		return ActionSkipUnvalidated, false
	}
	// 超出保留窗口的比赛不再复活
	if now.Sub(finishedAt) > r.cfg.FinishedRetention {
		log.WithField("age", now.Sub(finishedAt).String()).Info("比赛结束已超出保留窗口: too old")
		return ActionCleanupStale, false
	}
	return "", true
}

// decideFinished FINISHED 分支：finished_at 已校验，按子区现状决策
func (r *Reconciler) decideFinished(assoc *model.ThreadAssociation, discovered *interfaces.ThreadInfo) (Action, error) {
	switch {
	case assoc == nil && discovered == nil:
		// 完全没有子区：直接产出 finished 子区
		return ActionConvertToFinished, nil
	case assoc == nil && discovered != nil:
		return ActionRestoreReference, nil
	case assoc.ThreadType == model.ThreadTypeUpcoming:
		return ActionConvertToFinished, nil
	default:
		return ActionNoAction, nil
	}
}

// decideOngoing 未结束分支：按关联与平台现状决策
func (r *Reconciler) decideOngoing(ctx context.Context, log *logrus.Entry, fresh *model.SourceMatch, assoc *model.ThreadAssociation, discovered *interfaces.ThreadInfo) (Action, error) {
	// 取消的比赛不再创建新子区
	if fresh.Status == model.StatusCancelled {
		return ActionNoAction, nil
	}

	if assoc == nil {
		if discovered != nil {
			// 平台上有子区但存储里没有：恢复引用而不是重复创建
			return ActionRestoreReference, nil
		}
		return ActionCreateUpcoming, nil
	}

	// 有关联：独立校验子区是否还在
	exists, err := r.platform.ThreadExists(ctx, assoc.ThreadID)
	if err != nil {
		log.WithError(err).Warn("子区存在性校验失败，跳过本场调和")
		return ActionSkipUnvalidated, nil
	}
	if !exists && discovered == nil {
		// 平台确认子区已消失：移除失效关联并重建
		log.WithField("thread_id", assoc.ThreadID).Warn("关联指向的子区已不存在，移除后重建")
		if err := r.threads.Remove(ctx, fresh.MatchID); err != nil {
			return ActionSkipUnvalidated, err
		}
		return ActionCreateUpcoming, nil
	}
	return ActionNoAction, nil
}
