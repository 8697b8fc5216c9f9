package model

// 比赛状态机：SCHEDULED → READY → LIVE → FINISHED/CANCELLED
const (
	StatusScheduled = "SCHEDULED"
	StatusReady     = "READY"
	StatusLive      = "LIVE"
	StatusFinished  = "FINISHED"
	StatusCancelled = "CANCELLED"
)

// statusRank 状态在进程中的序号，用于检测数据源上报的状态回退
var statusRank = map[string]int{
	StatusScheduled: 0,
	StatusReady:     1,
	StatusLive:      2,
	StatusFinished:  3,
	StatusCancelled: 3,
}

// StatusRegressed 新状态相对已存状态是否回退（如 FINISHED 被上报为 SCHEDULED）
func StatusRegressed(stored, fresh string) bool {
	sr, ok1 := statusRank[stored]
	fr, ok2 := statusRank[fresh]
	if !ok1 || !ok2 {
		return false
	}
	return fr < sr
}

// 子区类型，只允许 upcoming → finished 单向转换
const (
	ThreadTypeUpcoming = "upcoming"
	ThreadTypeFinished = "finished"
)

// 出勤回应取值
const (
	RsvpYes = "yes"
	RsvpNo  = "no"
)

// SourceResult 数据源给出的比赛结果
type SourceResult struct {
	ScoreA int    `json:"score_a"`
	ScoreB int    `json:"score_b"`
	Winner string `json:"winner"` // 胜方外部队伍ID，平局为空
}

// SourceMatch 数据源适配器返回的归一化比赛记录
type SourceMatch struct {
	MatchID     string        `json:"match_id"`
	TeamAID     string        `json:"team_a_id"`
	TeamAName   string        `json:"team_a_name"`
	TeamBID     string        `json:"team_b_id"`
	TeamBName   string        `json:"team_b_name"`
	ScheduledAt int64         `json:"scheduled_at"`
	Status      string        `json:"status"`
	FinishedAt  *int64        `json:"finished_at,omitempty"`
	Result      *SourceResult `json:"result,omitempty"`
}

// RosterPlayer 有资格出勤回应的队员
type RosterPlayer struct {
	UserID   string `json:"user_id"`
	Nickname string `json:"nickname"`
}
