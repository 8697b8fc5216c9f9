package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/digitalgenesiskompound/faceit-discord-bot-sub000/internal/lock"
	"github.com/digitalgenesiskompound/faceit-discord-bot-sub000/internal/model"
	"github.com/digitalgenesiskompound/faceit-discord-bot-sub000/internal/repository"
	"github.com/digitalgenesiskompound/faceit-discord-bot-sub000/internal/xerrors"
)

// ErrRsvpUnavailable 对外统一的失败提示，具体诊断只进日志
var ErrRsvpUnavailable = errors.New("attendance update failed, please try again")

// Rsvp 出勤回应服务：写入用户回应并同步刷新面板
type Rsvp struct {
	matches repository.MatchRepository
	rsvps   repository.RsvpRepository
	locks   *lock.Manager
	sync    *RsvpSync
	logger  *logrus.Logger
	now     func() time.Time
}

// NewRsvp 创建出勤回应服务
func NewRsvp(
	matches repository.MatchRepository,
	rsvps repository.RsvpRepository,
	locks *lock.Manager,
	sync *RsvpSync,
	logger *logrus.Logger,
) *Rsvp {
	return &Rsvp{
		matches: matches,
		rsvps:   rsvps,
		locks:   locks,
		sync:    sync,
		logger:  logger,
		now:     time.Now,
	}
}

// Submit 记录一条出勤回应。同一比赛的写入串行化，成功后立即刷新面板。
func (s *Rsvp) Submit(ctx context.Context, matchID, userID, nickname, response string) error {
	if response != model.RsvpYes && response != model.RsvpNo {
		return xerrors.NewValidationError("非法回应值: %s", response)
	}
	m, err := s.matches.Get(ctx, matchID)
	if err != nil {
		s.logger.WithError(err).WithField("match_id", matchID).Error("查询比赛失败")
		return ErrRsvpUnavailable
	}
	if m == nil {
		return xerrors.NewValidationError("比赛 %s 不存在", matchID)
	}

	entry := &model.RsvpEntry{
		MatchID:     matchID,
		UserID:      userID,
		Nickname:    nickname,
		Response:    response,
		RespondedAt: s.now().Unix(),
	}
	err = s.locks.WithLock(ctx, "rsvp:"+matchID, func(ctx context.Context) error {
		return s.rsvps.Upsert(ctx, entry)
	})
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"match_id": matchID,
			"user_id":  userID,
			"response": response,
		}).Error("出勤回应写入失败")
		return ErrRsvpUnavailable
	}

	// 面板刷新失败不影响已落库的回应，下个同步周期会补齐
	if err := s.sync.SyncMatch(ctx, matchID); err != nil {
		s.logger.WithError(err).WithField("match_id", matchID).Warn("出勤面板即时刷新失败")
	}
	return nil
}
