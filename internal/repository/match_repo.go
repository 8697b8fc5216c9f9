package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/digitalgenesiskompound/faceit-discord-bot-sub000/internal/model"
)

// MatchRepository 比赛行存取接口
type MatchRepository interface {
	// Get 按数据源侧ID获取比赛，未找到返回 nil
	Get(ctx context.Context, matchID string) (*model.Match, error)
	// Upsert 首次观察到即创建，之后每次调和发现更新数据时覆盖
	Upsert(ctx context.Context, m *model.Match) error
	// List 列出所有被追踪的比赛
	List(ctx context.Context) ([]*model.Match, error)
	// ListFinishedBefore 结束时间早于cutoff的FINISHED比赛（供保留清理）
	ListFinishedBefore(ctx context.Context, cutoff int64) ([]*model.Match, error)
	// Delete 仅保留清理可删除比赛行
	Delete(ctx context.Context, matchID string) error
}

type matchRepository struct {
	db *gorm.DB
}

// NewMatchRepository 创建 MatchRepository 实例
func NewMatchRepository(db *gorm.DB) MatchRepository {
	return &matchRepository{db: db}
}

func (r *matchRepository) Get(ctx context.Context, matchID string) (*model.Match, error) {
	var m model.Match
	if err := r.db.WithContext(ctx).Where("match_id = ?", matchID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, classify(err)
	}
	return &m, nil
}

func (r *matchRepository) Upsert(ctx context.Context, m *model.Match) error {
	m.UpdatedAt = time.Now()
	return classify(r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "match_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"team_a_id", "team_a_name", "team_b_id", "team_b_name",
			"scheduled_at", "status", "finished_at", "result", "updated_at",
		}),
	}).Create(m).Error)
}

func (r *matchRepository) List(ctx context.Context) ([]*model.Match, error) {
	var res []*model.Match
	if err := r.db.WithContext(ctx).Order("scheduled_at ASC").Find(&res).Error; err != nil {
		return nil, classify(err)
	}
	return res, nil
}

func (r *matchRepository) ListFinishedBefore(ctx context.Context, cutoff int64) ([]*model.Match, error) {
	var res []*model.Match
	if err := r.db.WithContext(ctx).
		Where("status = ? AND finished_at IS NOT NULL AND finished_at < ?", model.StatusFinished, cutoff).
		Find(&res).Error; err != nil {
		return nil, classify(err)
	}
	return res, nil
}

func (r *matchRepository) Delete(ctx context.Context, matchID string) error {
	return classify(r.db.WithContext(ctx).Where("match_id = ?", matchID).Delete(&model.Match{}).Error)
}
