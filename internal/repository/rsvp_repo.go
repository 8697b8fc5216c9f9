package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/digitalgenesiskompound/faceit-discord-bot-sub000/internal/model"
)

// RsvpRepository 出勤回应存取接口，(match_id, user_id) 一行，按时间戳 last-write-wins
type RsvpRepository interface {
	// Upsert 写入回应；库中已有更新时间戳的行时本次写入被丢弃
	Upsert(ctx context.Context, e *model.RsvpEntry) error
	// ListByMatch 列出某场比赛的全部回应
	ListByMatch(ctx context.Context, matchID string) ([]*model.RsvpEntry, error)
	// DeleteByMatch 保留清理时随比赛一起删除
	DeleteByMatch(ctx context.Context, matchID string) error
}

type rsvpRepository struct {
	db *gorm.DB
}

// NewRsvpRepository 创建 RsvpRepository 实例
func NewRsvpRepository(db *gorm.DB) RsvpRepository {
	return &rsvpRepository{db: db}
}

func (r *rsvpRepository) Upsert(ctx context.Context, e *model.RsvpEntry) error {
	e.UpdatedAt = time.Now()
	// last-write-wins 在 SQL 层兜底：旧时间戳的写入不覆盖新值
	return classify(r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "match_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"response", "nickname", "responded_at", "updated_at"}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "excluded.responded_at >= rsvp_entries.responded_at"},
		}},
	}).Create(e).Error)
}

func (r *rsvpRepository) ListByMatch(ctx context.Context, matchID string) ([]*model.RsvpEntry, error) {
	var res []*model.RsvpEntry
	if err := r.db.WithContext(ctx).
		Where("match_id = ?", matchID).
		Order("nickname ASC").
		Find(&res).Error; err != nil {
		return nil, classify(err)
	}
	return res, nil
}

func (r *rsvpRepository) DeleteByMatch(ctx context.Context, matchID string) error {
	return classify(r.db.WithContext(ctx).Where("match_id = ?", matchID).Delete(&model.RsvpEntry{}).Error)
}
