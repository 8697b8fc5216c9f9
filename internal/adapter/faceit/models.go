package faceit

// Data API 返回的原始结构，仅本包内使用

type matchListResp struct {
	Items []apiMatch `json:"items"`
	Start int        `json:"start"`
	End   int        `json:"end"`
}

type apiFaction struct {
	FactionID string `json:"faction_id"`
	Name      string `json:"name"`
}

type apiScore struct {
	Faction1 int `json:"faction1"`
	Faction2 int `json:"faction2"`
}

type apiResults struct {
	Winner string   `json:"winner"` // faction1 / faction2，未出结果为空
	Score  apiScore `json:"score"`
}

type apiMatch struct {
	MatchID     string                `json:"match_id"`
	Teams       map[string]apiFaction `json:"teams"` // faction1 / faction2
	ScheduledAt int64                 `json:"scheduled_at"`
	StartedAt   int64                 `json:"started_at"`
	FinishedAt  int64                 `json:"finished_at"`
	Status      string                `json:"status"`
	Results     *apiResults           `json:"results"`
}

type apiTeamResp struct {
	TeamID  string      `json:"team_id"`
	Name    string      `json:"name"`
	Members []apiMember `json:"members"`
}

type apiMember struct {
	UserID   string `json:"user_id"`
	Nickname string `json:"nickname"`
}
