package interfaces

import (
	"context"

	"github.com/digitalgenesiskompound/faceit-discord-bot-sub000/internal/model"
)

// MatchSourceAdapter 比赛数据源必须实现的核心接口，失败时返回可重试的 FetchError
type MatchSourceAdapter interface {
	GetName() string
	// FetchUpcomingMatches 拉取未开赛的比赛
	FetchUpcomingMatches(ctx context.Context) ([]*model.SourceMatch, error)
	// FetchFinishedMatches 拉取最近结束的比赛（带上限）
	FetchFinishedMatches(ctx context.Context, limit int) ([]*model.SourceMatch, error)
	// FetchMatch 按ID拉取单场比赛
	FetchMatch(ctx context.Context, matchID string) (*model.SourceMatch, error)
	// FetchRoster 拉取队伍完整名单
	FetchRoster(ctx context.Context, teamID string) ([]*model.RosterPlayer, error)
}
