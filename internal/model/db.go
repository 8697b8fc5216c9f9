package model

import (
	"time"

	"gorm.io/datatypes"
)

type Match struct {
	ID          uint64         `gorm:"column:id;primaryKey;autoIncrement;comment:自增主键ID"`
	MatchID     string         `gorm:"column:match_id;type:varchar(64);uniqueIndex;not null;comment:数据源侧的稳定比赛ID"`
	TeamAID     string         `gorm:"column:team_a_id;type:varchar(64);not null;comment:A队外部ID"`
	TeamAName   string         `gorm:"column:team_a_name;type:varchar(128);not null;comment:A队名称"`
	TeamBID     string         `gorm:"column:team_b_id;type:varchar(64);not null;comment:B队外部ID"`
	TeamBName   string         `gorm:"column:team_b_name;type:varchar(128);not null;comment:B队名称"`
	ScheduledAt int64          `gorm:"column:scheduled_at;type:bigint;not null;comment:开赛时间（epoch秒）"`
	Status      string         `gorm:"column:status;type:varchar(16);not null;default:SCHEDULED;comment:状态：SCHEDULED/READY/LIVE/FINISHED/CANCELLED"`
	FinishedAt  *int64         `gorm:"column:finished_at;type:bigint;comment:结束时间（epoch秒），仅FINISHED时有值"`
	Result      datatypes.JSON `gorm:"column:result;comment:比分/胜者"`
	CreatedAt   time.Time      `gorm:"column:created_at;type:timestamp;comment:创建时间"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;type:timestamp;comment:更新时间"`
}

type ThreadAssociation struct {
	ID            uint64    `gorm:"column:id;primaryKey;autoIncrement;comment:自增主键ID"`
	MatchID       string    `gorm:"column:match_id;type:varchar(64);uniqueIndex;not null;comment:比赛ID，每场比赛至多一条关联"`
	ThreadID      string    `gorm:"column:thread_id;type:varchar(64);uniqueIndex;not null;comment:聊天平台的频道/子区ID"`
	ThreadType    string    `gorm:"column:thread_type;type:varchar(16);not null;comment:类型：upcoming/finished，只允许单向转换"`
	RsvpMessageID string    `gorm:"column:rsvp_message_id;type:varchar(64);comment:出勤面板消息ID，丢失时由同步器重建"`
	LockedAt      *int64    `gorm:"column:locked_at;type:bigint;comment:锁定时间（epoch秒），锁定不可逆"`
	CreatedAt     time.Time `gorm:"column:created_at;type:timestamp;comment:创建时间"`
	UpdatedAt     time.Time `gorm:"column:updated_at;type:timestamp;comment:更新时间"`
}

type RsvpEntry struct {
	ID          uint64    `gorm:"column:id;primaryKey;autoIncrement;comment:自增主键ID"`
	MatchID     string    `gorm:"column:match_id;type:varchar(64);not null;uniqueIndex:uk_match_user;comment:比赛ID"`
	UserID      string    `gorm:"column:user_id;type:varchar(64);not null;uniqueIndex:uk_match_user;comment:用户ID"`
	Response    string    `gorm:"column:response;type:varchar(8);not null;comment:回应：yes/no"`
	Nickname    string    `gorm:"column:nickname;type:varchar(128);not null;comment:展示昵称"`
	RespondedAt int64     `gorm:"column:responded_at;type:bigint;not null;comment:提交时间（epoch秒），last-write-wins"`
	CreatedAt   time.Time `gorm:"column:created_at;type:timestamp;comment:创建时间"`
	UpdatedAt   time.Time `gorm:"column:updated_at;type:timestamp;comment:更新时间"`
}

type CacheEntry struct {
	ID        uint64    `gorm:"column:id;primaryKey;autoIncrement;comment:自增主键ID"`
	CacheKey  string    `gorm:"column:cache_key;type:varchar(128);uniqueIndex;not null;comment:缓存键"`
	Payload   string    `gorm:"column:payload;type:text;not null;comment:JSON载荷，永远可从数据源重建"`
	ExpiresAt int64     `gorm:"column:expires_at;type:bigint;not null;comment:过期时间（epoch秒），过期后不可信"`
	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;comment:创建时间"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp;comment:更新时间"`
}

type ProcessedMarker struct {
	ID        uint64    `gorm:"column:id;primaryKey;autoIncrement;comment:自增主键ID"`
	MatchID   string    `gorm:"column:match_id;type:varchar(64);uniqueIndex;not null;comment:已通知过的比赛ID，只由保留清理移除"`
	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;comment:创建时间"`
}

func (Match) TableName() string             { return "matches" }
func (ThreadAssociation) TableName() string { return "thread_associations" }
func (RsvpEntry) TableName() string         { return "rsvp_entries" }
func (CacheEntry) TableName() string        { return "cache_entries" }
func (ProcessedMarker) TableName() string   { return "processed_markers" }
