package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/digitalgenesiskompound/faceit-discord-bot-sub000/internal/model"
)

// MarkerRepository 已通知比赛的单调标记集合。只增，只由保留清理移除。
type MarkerRepository interface {
	// Mark 记录比赛已通知（幂等：重复标记不报错）
	Mark(ctx context.Context, matchID string) error
	// IsMarked 比赛是否已通知过
	IsMarked(ctx context.Context, matchID string) (bool, error)
	// DeleteBefore 保留清理：移除早于cutoff创建的标记
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type markerRepository struct {
	db *gorm.DB
}

// NewMarkerRepository 创建 MarkerRepository 实例
func NewMarkerRepository(db *gorm.DB) MarkerRepository {
	return &markerRepository{db: db}
}

func (r *markerRepository) Mark(ctx context.Context, matchID string) error {
	m := &model.ProcessedMarker{MatchID: matchID, CreatedAt: time.Now()}
	return classify(r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(m).Error)
}

func (r *markerRepository) IsMarked(ctx context.Context, matchID string) (bool, error) {
	var cnt int64
	if err := r.db.WithContext(ctx).
		Model(&model.ProcessedMarker{}).
		Where("match_id = ?", matchID).
		Count(&cnt).Error; err != nil {
		return false, classify(err)
	}
	return cnt > 0, nil
}

func (r *markerRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&model.ProcessedMarker{})
	return res.RowsAffected, classify(res.Error)
}
