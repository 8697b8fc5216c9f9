package cache

import (
	"time"

	"github.com/digitalgenesiskompound/faceit-discord-bot-sub000/internal/model"
)

// Phase 当前时间相对所有被追踪比赛的紧迫度分类
type Phase string

const (
	PhaseNormal      Phase = "NORMAL"      // 平静期
	PhaseApproaching Phase = "APPROACHING" // 距开赛不足1小时
	PhaseActive      Phase = "ACTIVE"      // 比赛进行中（开赛后约2小时内）
	PhaseCooldown    Phase = "COOLDOWN"    // 结束后2-5小时
)

// Class 缓存数据类别，不同类别有独立TTL表
type Class string

const (
	ClassFinishedList Class = "finished_list"
	ClassUpcomingList Class = "upcoming_list"
	ClassRoster       Class = "roster"
	ClassPlayer       Class = "player"
	ClassSearch       Class = "search"
)

const (
	approachWindow = time.Hour
	activeWindow   = 2 * time.Hour
	cooldownFrom   = 2 * time.Hour
	cooldownUntil  = 5 * time.Hour
)

// phaseUrgency 取最紧迫相位时的排序
var phaseUrgency = map[Phase]int{
	PhaseNormal:      0,
	PhaseCooldown:    1,
	PhaseApproaching: 2,
	PhaseActive:      3,
}

// ttlTable 每相位×每类别的TTL。ACTIVE 最短、NORMAL 最长。
var ttlTable = map[Phase]map[Class]time.Duration{
	PhaseNormal: {
		ClassFinishedList: time.Hour,
		ClassUpcomingList: 30 * time.Minute,
		ClassRoster:       6 * time.Hour,
		ClassPlayer:       12 * time.Hour,
		ClassSearch:       24 * time.Hour,
	},
	PhaseCooldown: {
		ClassFinishedList: 10 * time.Minute,
		ClassUpcomingList: 15 * time.Minute,
		ClassRoster:       2 * time.Hour,
		ClassPlayer:       6 * time.Hour,
		ClassSearch:       12 * time.Hour,
	},
	PhaseApproaching: {
		ClassFinishedList: 30 * time.Minute,
		ClassUpcomingList: 10 * time.Minute,
		ClassRoster:       time.Hour,
		ClassPlayer:       6 * time.Hour,
		ClassSearch:       12 * time.Hour,
	},
	PhaseActive: {
		ClassFinishedList: 2 * time.Minute,
		ClassUpcomingList: 2 * time.Minute,
		ClassRoster:       30 * time.Minute,
		ClassPlayer:       time.Hour,
		ClassSearch:       6 * time.Hour,
	},
}

// TTL 返回给定类别在给定相位下的TTL
func TTL(phase Phase, class Class) time.Duration {
	if t, ok := ttlTable[phase][class]; ok {
		return t
	}
	return ttlTable[PhaseNormal][ClassSearch]
}

// matchPhase 单场比赛的相位
func matchPhase(now time.Time, m *model.Match) Phase {
	if m.Status == model.StatusLive {
		return PhaseActive
	}
	if m.FinishedAt != nil {
		since := now.Sub(time.Unix(*m.FinishedAt, 0))
		if since >= cooldownFrom && since <= cooldownUntil {
			return PhaseCooldown
		}
		return PhaseNormal
	}
	start := time.Unix(m.ScheduledAt, 0)
	switch {
	case !now.Before(start) && now.Sub(start) <= activeWindow:
		return PhaseActive
	case now.Before(start) && start.Sub(now) <= approachWindow:
		return PhaseApproaching
	default:
		return PhaseNormal
	}
}

// ComputePhase 在全部被追踪比赛上取最紧迫的相位
func ComputePhase(now time.Time, matches []*model.Match) Phase {
	phase := PhaseNormal
	for _, m := range matches {
		if p := matchPhase(now, m); phaseUrgency[p] > phaseUrgency[phase] {
			phase = p
		}
		if phase == PhaseActive {
			break
		}
	}
	return phase
}
