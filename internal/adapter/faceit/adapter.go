package faceit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sirupsen/logrus"

	"github.com/digitalgenesiskompound/faceit-discord-bot-sub000/internal/config"
	"github.com/digitalgenesiskompound/faceit-discord-bot-sub000/internal/interfaces"
	"github.com/digitalgenesiskompound/faceit-discord-bot-sub000/internal/model"
	"github.com/digitalgenesiskompound/faceit-discord-bot-sub000/internal/utils/httpclient"
	"github.com/digitalgenesiskompound/faceit-discord-bot-sub000/internal/xerrors"
)

// statusMap 数据源状态 → 内部状态
var statusMap = map[string]string{
	"SCHEDULED": model.StatusScheduled,
	"READY":     model.StatusReady,
	"ONGOING":   model.StatusLive,
	"FINISHED":  model.StatusFinished,
	"CANCELLED": model.StatusCancelled,
	"ABORTED":   model.StatusCancelled,
}

type Adapter struct {
	cfg           *config.SourceConfig
	httpClient    *http.Client
	logger        *logrus.Logger
	fetchTries    uint
	retryInterval time.Duration
}

// NewAdapter 创建FACEIT数据源适配器
func NewAdapter(cfg *config.SourceConfig, logger *logrus.Logger) interfaces.MatchSourceAdapter {
	return &Adapter{
		cfg: cfg,
		httpClient: httpclient.New(httpclient.Options{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
			Proxy:   cfg.Proxy,
		}, logger),
		logger:        logger,
		fetchTries:    3,
		retryInterval: 200 * time.Millisecond,
	}
}

func (a *Adapter) GetName() string { return "faceit" }

// getJSON 按指数退避重试瞬时失败（传输层错误、非200响应），非法响应体不重试
func (a *Adapter) getJSON(ctx context.Context, url string, dest any) error {
	op := func() (struct{}, error) {
		err := a.doGet(ctx, url, dest)
		if err != nil && !xerrors.IsRetryable(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = a.retryInterval
	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(eb),
		backoff.WithMaxTries(a.fetchTries),
	)
	return err
}

// doGet 带API Key调用Data API并解码；传输层失败与非200响应归为可重试的 FetchError
func (a *Adapter) doGet(ctx context.Context, url string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("构造请求失败: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return xerrors.NewFetchError(a.GetName(), err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			a.logger.WithError(err).Warn("关闭FACEIT响应体失败")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return xerrors.NewFetchError(a.GetName(), fmt.Errorf("HTTP %d: %s", resp.StatusCode, url))
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return xerrors.NewValidationError("解析FACEIT响应失败: %v", err)
	}
	return nil
}

func (a *Adapter) FetchUpcomingMatches(ctx context.Context) ([]*model.SourceMatch, error) {
	url := fmt.Sprintf("%s/championships/%s/matches?type=upcoming&offset=0&limit=100", a.cfg.BaseURL, a.cfg.ChampionshipID)
	var list matchListResp
	if err := a.getJSON(ctx, url, &list); err != nil {
		return nil, err
	}
	matches := a.convertAll(list.Items)
	a.logger.WithField("count", len(matches)).Info("成功拉取未开赛比赛")
	return matches, nil
}

func (a *Adapter) FetchFinishedMatches(ctx context.Context, limit int) ([]*model.SourceMatch, error) {
	if limit <= 0 {
		limit = 20
	}
	url := fmt.Sprintf("%s/championships/%s/matches?type=past&offset=0&limit=%d", a.cfg.BaseURL, a.cfg.ChampionshipID, limit)
	var list matchListResp
	if err := a.getJSON(ctx, url, &list); err != nil {
		return nil, err
	}
	matches := a.convertAll(list.Items)
	a.logger.WithField("count", len(matches)).Info("成功拉取最近结束比赛")
	return matches, nil
}

func (a *Adapter) FetchMatch(ctx context.Context, matchID string) (*model.SourceMatch, error) {
	url := fmt.Sprintf("%s/matches/%s", a.cfg.BaseURL, matchID)
	var raw apiMatch
	if err := a.getJSON(ctx, url, &raw); err != nil {
		return nil, err
	}
	m, err := a.convert(raw)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (a *Adapter) FetchRoster(ctx context.Context, teamID string) ([]*model.RosterPlayer, error) {
	url := fmt.Sprintf("%s/teams/%s", a.cfg.BaseURL, teamID)
	var team apiTeamResp
	if err := a.getJSON(ctx, url, &team); err != nil {
		return nil, err
	}
	players := make([]*model.RosterPlayer, 0, len(team.Members))
	for _, mem := range team.Members {
		if mem.UserID == "" {
			continue
		}
		players = append(players, &model.RosterPlayer{UserID: mem.UserID, Nickname: mem.Nickname})
	}
	return players, nil
}

// convertAll 批量转归一化记录，单条非法时记日志跳过
func (a *Adapter) convertAll(raw []apiMatch) []*model.SourceMatch {
	matches := make([]*model.SourceMatch, 0, len(raw))
	for _, r := range raw {
		m, err := a.convert(r)
		if err != nil {
			a.logger.WithError(err).WithField("match_id", r.MatchID).Warn("比赛记录转换失败，跳过")
			continue
		}
		matches = append(matches, m)
	}
	return matches
}

// convert 单条原始记录 → 归一化记录
func (a *Adapter) convert(raw apiMatch) (*model.SourceMatch, error) {
	if raw.MatchID == "" {
		return nil, xerrors.NewValidationError("缺少 match_id")
	}
	f1, ok1 := raw.Teams["faction1"]
	f2, ok2 := raw.Teams["faction2"]
	if !ok1 || !ok2 {
		return nil, xerrors.NewValidationError("比赛 %s 缺少对阵双方", raw.MatchID)
	}
	status, ok := statusMap[raw.Status]
	if !ok {
		return nil, xerrors.NewValidationError("比赛 %s 状态未知: %s", raw.MatchID, raw.Status)
	}

	m := &model.SourceMatch{
		MatchID:     raw.MatchID,
		TeamAID:     f1.FactionID,
		TeamAName:   f1.Name,
		TeamBID:     f2.FactionID,
		TeamBName:   f2.Name,
		ScheduledAt: raw.ScheduledAt,
		Status:      status,
	}
	if status == model.StatusFinished {
		if raw.FinishedAt <= 0 {
			return nil, xerrors.NewValidationError("比赛 %s 为FINISHED但缺少 finished_at", raw.MatchID)
		}
		finished := raw.FinishedAt
		m.FinishedAt = &finished
		if raw.Results != nil {
			winner := ""
			switch raw.Results.Winner {
			case "faction1":
				winner = f1.FactionID
			case "faction2":
				winner = f2.FactionID
			}
			m.Result = &model.SourceResult{
				ScoreA: raw.Results.Score.Faction1,
				ScoreB: raw.Results.Score.Faction2,
				Winner: winner,
			}
		}
	}
	return m, nil
}
