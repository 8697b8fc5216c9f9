package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/digitalgenesiskompound/faceit-discord-bot-sub000/internal/cache"
	"github.com/digitalgenesiskompound/faceit-discord-bot-sub000/internal/config"
	"github.com/digitalgenesiskompound/faceit-discord-bot-sub000/internal/interfaces"
	"github.com/digitalgenesiskompound/faceit-discord-bot-sub000/internal/model"
	"github.com/digitalgenesiskompound/faceit-discord-bot-sub000/internal/repository"
	"github.com/digitalgenesiskompound/faceit-discord-bot-sub000/internal/xerrors"
)

// ThreadTag 子区名中嵌入的比赛标记，平台侧直查用
func ThreadTag(matchID string) string {
	return "[m:" + matchID + "]"
}

// upcomingThreadName / finishedThreadName 子区命名
func upcomingThreadName(m *model.Match) string {
	return fmt.Sprintf("Match: %s vs %s %s", m.TeamAName, m.TeamBName, ThreadTag(m.MatchID))
}

func finishedThreadName(m *model.Match) string {
	var score model.SourceResult
	if len(m.Result) > 0 {
		// Result 为空时退化为无比分命名
		_ = json.Unmarshal(m.Result, &score)
	}
	return fmt.Sprintf("Result: %s %d:%d %s %s", m.TeamAName, score.ScoreA, score.ScoreB, m.TeamBName, ThreadTag(m.MatchID))
}

// summaryMessage 转换/创建 finished 子区时追加的总结消息
func summaryMessage(m *model.Match) string {
	var res model.SourceResult
	if len(m.Result) > 0 {
		_ = json.Unmarshal(m.Result, &res)
	}
	winner := "draw"
	switch res.Winner {
	case m.TeamAID:
		winner = m.TeamAName
	case m.TeamBID:
		winner = m.TeamBName
	}
	return fmt.Sprintf("Final score: %s %d : %d %s — winner: %s",
		m.TeamAName, res.ScoreA, res.ScoreB, m.TeamBName, winner)
}

// ThreadLifecycle 子区生命周期管理：NONE → UPCOMING_THREAD → FINISHED_THREAD → LOCKED。
// 所有变更操作通过平台直查实现重试幂等：重复执行会发现既有状态并短路。
type ThreadLifecycle struct {
	platform interfaces.ThreadPlatformAdapter
	threads  repository.ThreadRepository
	markers  repository.MarkerRepository
	cache    *cache.Adaptive
	cfg      *config.SyncConfig
	logger   *logrus.Logger
	now      func() time.Time
}

// NewThreadLifecycle 创建子区生命周期管理器
func NewThreadLifecycle(
	platform interfaces.ThreadPlatformAdapter,
	threads repository.ThreadRepository,
	markers repository.MarkerRepository,
	adaptive *cache.Adaptive,
	cfg *config.SyncConfig,
	logger *logrus.Logger,
) *ThreadLifecycle {
	return &ThreadLifecycle{
		platform: platform,
		threads:  threads,
		markers:  markers,
		cache:    adaptive,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Create 为未结束的比赛创建 upcoming 子区。创建前做三重查重：
// (a) 存储无关联 (b) 平台上按标记直查不到子区 (c) 数据源状态不是已结束。
// 任一信号矛盾时放弃创建，转为恢复既有引用。
func (t *ThreadLifecycle) Create(ctx context.Context, m *model.Match) error {
	// (c) 已结束的比赛直接走 finished 路径
	if m.Status == model.StatusFinished {
		return t.CreateFinished(ctx, m)
	}

	// (a) 存储关联查重
	existing, err := t.threads.GetByMatch(ctx, m.MatchID)
	if err != nil {
		return err
	}
	if existing != nil {
		return &xerrors.DuplicateDetectedError{Resource: "thread:" + m.MatchID}
	}

	// (b) 平台直查：发现孤儿子区时恢复引用而不是重复创建
	found, err := t.platform.FindThreadByTag(ctx, ThreadTag(m.MatchID))
	if err != nil {
		return err
	}
	if found != nil {
		t.logger.WithFields(logrus.Fields{"match_id": m.MatchID, "thread_id": found.ThreadID}).
			Warn("平台上已有该比赛的子区，恢复引用")
		return t.restore(ctx, m, found.ThreadID)
	}

	threadID, err := t.platform.CreateThread(ctx, upcomingThreadName(m))
	if err != nil {
		return err
	}
	if err := t.threads.Create(ctx, &model.ThreadAssociation{
		MatchID:    m.MatchID,
		ThreadID:   threadID,
		ThreadType: model.ThreadTypeUpcoming,
		CreatedAt:  t.now(),
	}); err != nil {
		return err
	}
	t.cache.InvalidateEvent(ctx, cache.EventThreadCreated, m.MatchID)
	t.announce(ctx, m, threadID)
	return nil
}

// announce 首次观察到比赛时在子区里发一次性通知；ProcessedMarker 防止重复通知
func (t *ThreadLifecycle) announce(ctx context.Context, m *model.Match, threadID string) {
	marked, err := t.markers.IsMarked(ctx, m.MatchID)
	if err != nil {
		t.logger.WithError(err).WithField("match_id", m.MatchID).Warn("读取通知标记失败，跳过通知")
		return
	}
	if marked {
		return
	}
	content := fmt.Sprintf("New match scheduled: **%s vs %s** — <t:%d:F>",
		m.TeamAName, m.TeamBName, m.ScheduledAt)
	if _, err := t.platform.PostMessage(ctx, threadID, content); err != nil {
		t.logger.WithError(err).WithField("match_id", m.MatchID).Warn("发布比赛通知失败")
		return
	}
	if err := t.markers.Mark(ctx, m.MatchID); err != nil {
		t.logger.WithError(err).WithField("match_id", m.MatchID).Warn("写入通知标记失败")
	}
}

// CreateFinished 比赛已结束且平台上完全没有子区时，直接产出 finished 子区
func (t *ThreadLifecycle) CreateFinished(ctx context.Context, m *model.Match) error {
	existing, err := t.threads.GetByMatch(ctx, m.MatchID)
	if err != nil {
		return err
	}
	if existing != nil {
		return &xerrors.DuplicateDetectedError{Resource: "thread:" + m.MatchID}
	}
	found, err := t.platform.FindThreadByTag(ctx, ThreadTag(m.MatchID))
	if err != nil {
		return err
	}
	if found != nil {
		return t.restore(ctx, m, found.ThreadID)
	}

	threadID, err := t.platform.CreateThread(ctx, finishedThreadName(m))
	if err != nil {
		return err
	}
	if err := t.threads.Create(ctx, &model.ThreadAssociation{
		MatchID:    m.MatchID,
		ThreadID:   threadID,
		ThreadType: model.ThreadTypeFinished,
		CreatedAt:  t.now(),
	}); err != nil {
		return err
	}
	if _, err := t.platform.PostMessage(ctx, threadID, summaryMessage(m)); err != nil {
		t.logger.WithError(err).WithField("match_id", m.MatchID).Warn("发布总结消息失败")
	}
	t.cache.InvalidateEvent(ctx, cache.EventThreadCreated, m.MatchID)
	return nil
}

// ConvertToFinished 把 upcoming 子区转换为 finished：重命名、落库类型变更、追加总结。
// 幂等：第二次调用发现类型已是 finished 时直接 no-op。
func (t *ThreadLifecycle) ConvertToFinished(ctx context.Context, m *model.Match) error {
	assoc, err := t.threads.GetByMatch(ctx, m.MatchID)
	if err != nil {
		return err
	}
	if assoc == nil {
		return t.CreateFinished(ctx, m)
	}
	if assoc.ThreadType == model.ThreadTypeFinished {
		t.logger.WithField("match_id", m.MatchID).Debug("子区已是finished类型，跳过转换")
		return nil
	}

	// 崩溃重启后的重复尝试靠平台直查短路：子区没了就重建 finished 子区
	exists, err := t.platform.ThreadExists(ctx, assoc.ThreadID)
	if err != nil {
		return err
	}
	if !exists {
		t.logger.WithFields(logrus.Fields{"match_id": m.MatchID, "thread_id": assoc.ThreadID}).
			Warn("upcoming子区已不存在，移除关联并重建finished子区")
		if err := t.threads.Remove(ctx, m.MatchID); err != nil {
			return err
		}
		return t.CreateFinished(ctx, m)
	}

	if err := t.platform.RenameThread(ctx, assoc.ThreadID, finishedThreadName(m)); err != nil {
		return err
	}
	if err := t.threads.MarkFinished(ctx, m.MatchID); err != nil {
		return err
	}
	if _, err := t.platform.PostMessage(ctx, assoc.ThreadID, summaryMessage(m)); err != nil {
		t.logger.WithError(err).WithField("match_id", m.MatchID).Warn("发布总结消息失败")
	}
	t.logger.WithFields(logrus.Fields{"match_id": m.MatchID, "thread_id": assoc.ThreadID}).
		Info("子区已转换为finished")
	return nil
}

// RestoreReference 平台上有子区但存储里丢了关联时，恢复引用而不是创建重复子区
func (t *ThreadLifecycle) RestoreReference(ctx context.Context, m *model.Match) error {
	existing, err := t.threads.GetByMatch(ctx, m.MatchID)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	found, err := t.platform.FindThreadByTag(ctx, ThreadTag(m.MatchID))
	if err != nil {
		return err
	}
	if found == nil {
		return xerrors.NewValidationError("比赛 %s 需要恢复引用但平台上查不到子区", m.MatchID)
	}
	return t.restore(ctx, m, found.ThreadID)
}

func (t *ThreadLifecycle) restore(ctx context.Context, m *model.Match, threadID string) error {
	threadType := model.ThreadTypeUpcoming
	if m.Status == model.StatusFinished {
		threadType = model.ThreadTypeFinished
	}
	err := t.threads.Create(ctx, &model.ThreadAssociation{
		MatchID:    m.MatchID,
		ThreadID:   threadID,
		ThreadType: threadType,
		CreatedAt:  t.now(),
	})
	if err != nil && !xerrors.IsDuplicate(err) {
		return err
	}
	t.logger.WithFields(logrus.Fields{"match_id": m.MatchID, "thread_id": threadID}).
		Info("子区引用已恢复")
	return nil
}

// LockAged 锁定超过配置窗口的 finished 子区，锁定不可逆；平台错误降级为跳过
func (t *ThreadLifecycle) LockAged(ctx context.Context) {
	assocs, err := t.threads.ListByType(ctx, model.ThreadTypeFinished)
	if err != nil {
		t.logger.WithError(err).Warn("列举finished子区失败，跳过锁定扫描")
		return
	}
	cutoff := t.now().Add(-t.cfg.LockAfter)
	for _, a := range assocs {
		if a.LockedAt != nil {
			continue
		}
		if a.UpdatedAt.After(cutoff) {
			continue
		}
		if err := t.platform.LockThread(ctx, a.ThreadID); err != nil {
			t.logger.WithError(err).WithField("thread_id", a.ThreadID).Warn("锁定子区失败，下轮重试")
			continue
		}
		if err := t.threads.SetLockedAt(ctx, a.MatchID, t.now().Unix()); err != nil {
			t.logger.WithError(err).WithField("match_id", a.MatchID).Warn("记录锁定时间失败")
			continue
		}
		t.logger.WithFields(logrus.Fields{"match_id": a.MatchID, "thread_id": a.ThreadID}).
			Info("子区已锁定")
	}
}
