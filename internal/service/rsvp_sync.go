package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/digitalgenesiskompound/faceit-discord-bot-sub000/internal/cache"
	"github.com/digitalgenesiskompound/faceit-discord-bot-sub000/internal/config"
	"github.com/digitalgenesiskompound/faceit-discord-bot-sub000/internal/interfaces"
	"github.com/digitalgenesiskompound/faceit-discord-bot-sub000/internal/model"
	"github.com/digitalgenesiskompound/faceit-discord-bot-sub000/internal/repository"
)

// Buckets 出勤三分桶。成员按展示昵称字典序排列，保证输出可复现。
type Buckets struct {
	Attending  []string
	Declined   []string
	NoResponse []string
}

// ComputeBuckets 用完整名单对已存回应做连接，产出确定性的三分桶
func ComputeBuckets(roster []*model.RosterPlayer, entries []*model.RsvpEntry) Buckets {
	responses := make(map[string]string, len(entries))
	for _, e := range entries {
		responses[e.UserID] = e.Response
	}
	var b Buckets
	for _, p := range roster {
		switch responses[p.UserID] {
		case model.RsvpYes:
			b.Attending = append(b.Attending, p.Nickname)
		case model.RsvpNo:
			b.Declined = append(b.Declined, p.Nickname)
		default:
			b.NoResponse = append(b.NoResponse, p.Nickname)
		}
	}
	sort.Strings(b.Attending)
	sort.Strings(b.Declined)
	sort.Strings(b.NoResponse)
	return b
}

// RenderBuckets 渲染出勤面板文本（与读回的消息逐字比较，必须确定性）
func RenderBuckets(m *model.Match, b Buckets) string {
	line := func(label string, names []string) string {
		if len(names) == 0 {
			return fmt.Sprintf("%s (0): —", label)
		}
		return fmt.Sprintf("%s (%d): %s", label, len(names), strings.Join(names, ", "))
	}
	return fmt.Sprintf("**RSVP — %s vs %s**\n%s\n%s\n%s",
		m.TeamAName, m.TeamBName,
		line("Attending", b.Attending),
		line("Declined", b.Declined),
		line("No response", b.NoResponse))
}

// RsvpSync 出勤视图同步器：对每个活跃的 upcoming 子区重算三分桶，
// 与已渲染状态漂移或渲染消息丢失时覆盖/重建。
type RsvpSync struct {
	source   interfaces.MatchSourceAdapter
	platform interfaces.ThreadPlatformAdapter
	matches  repository.MatchRepository
	threads  repository.ThreadRepository
	rsvps    repository.RsvpRepository
	cache    *cache.Adaptive
	cfg      *config.SourceConfig
	logger   *logrus.Logger
}

// NewRsvpSync 创建出勤同步器
func NewRsvpSync(
	source interfaces.MatchSourceAdapter,
	platform interfaces.ThreadPlatformAdapter,
	matches repository.MatchRepository,
	threads repository.ThreadRepository,
	rsvps repository.RsvpRepository,
	adaptive *cache.Adaptive,
	cfg *config.SourceConfig,
	logger *logrus.Logger,
) *RsvpSync {
	return &RsvpSync{
		source:   source,
		platform: platform,
		matches:  matches,
		threads:  threads,
		rsvps:    rsvps,
		cache:    adaptive,
		cfg:      cfg,
		logger:   logger,
	}
}

// roster 经缓存层取本队完整名单
func (s *RsvpSync) roster(ctx context.Context) ([]*model.RosterPlayer, error) {
	var players []*model.RosterPlayer
	err := s.cache.GetJSON(ctx, cache.KeyRoster(s.cfg.TeamID), cache.ClassRoster, &players,
		func(ctx context.Context) (any, error) {
			return s.source.FetchRoster(ctx, s.cfg.TeamID)
		})
	return players, err
}

// SyncAll 同步所有活跃 upcoming 子区的出勤面板；单场失败只记日志不中断
func (s *RsvpSync) SyncAll(ctx context.Context) {
	assocs, err := s.threads.ListByType(ctx, model.ThreadTypeUpcoming)
	if err != nil {
		s.logger.WithError(err).Warn("列举upcoming子区失败，跳过出勤同步")
		return
	}
	for _, a := range assocs {
		if err := s.SyncMatch(ctx, a.MatchID); err != nil {
			s.logger.WithError(err).WithField("match_id", a.MatchID).Warn("出勤面板同步失败")
		}
	}
}

// SyncMatch 同步单场比赛的出勤面板
func (s *RsvpSync) SyncMatch(ctx context.Context, matchID string) error {
	m, err := s.matches.Get(ctx, matchID)
	if err != nil {
		return err
	}
	if m == nil {
		return fmt.Errorf("比赛 %s 不存在", matchID)
	}
	assoc, err := s.threads.GetByMatch(ctx, matchID)
	if err != nil {
		return err
	}
	if assoc == nil || assoc.ThreadType != model.ThreadTypeUpcoming {
		// 没有活跃面板可同步
		return nil
	}

	roster, err := s.roster(ctx)
	if err != nil {
		return err
	}
	entries, err := s.rsvps.ListByMatch(ctx, matchID)
	if err != nil {
		return err
	}
	rendered := RenderBuckets(m, ComputeBuckets(roster, entries))

	// 读回已渲染状态；消息丢失时重建
	if assoc.RsvpMessageID != "" {
		current, found, err := s.platform.GetMessage(ctx, assoc.ThreadID, assoc.RsvpMessageID)
		if err != nil {
			return err
		}
		if found {
			if current == rendered {
				return nil
			}
			return s.platform.EditMessage(ctx, assoc.ThreadID, assoc.RsvpMessageID, rendered)
		}
		s.logger.WithFields(logrus.Fields{"match_id": matchID, "message_id": assoc.RsvpMessageID}).
			Warn("出勤面板消息丢失，重建")
	}

	msgID, err := s.platform.PostMessage(ctx, assoc.ThreadID, rendered)
	if err != nil {
		return err
	}
	return s.threads.SetRsvpMessageID(ctx, matchID, msgID)
}
