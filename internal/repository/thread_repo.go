package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/digitalgenesiskompound/faceit-discord-bot-sub000/internal/model"
	"github.com/digitalgenesiskompound/faceit-discord-bot-sub000/internal/xerrors"
)

// ThreadRepository 比赛↔子区关联存取接口。
// 不变式：每场比赛至多一条关联；thread_type 只允许 upcoming → finished。
type ThreadRepository interface {
	// GetByMatch 按比赛ID获取关联，未找到返回 nil
	GetByMatch(ctx context.Context, matchID string) (*model.ThreadAssociation, error)
	// Create 创建关联，已存在同比赛关联时返回 DuplicateDetectedError
	Create(ctx context.Context, a *model.ThreadAssociation) error
	// MarkFinished 将类型从 upcoming 置为 finished（幂等，反向转换被拒绝）
	MarkFinished(ctx context.Context, matchID string) error
	// SetRsvpMessageID 记录出勤面板消息ID
	SetRsvpMessageID(ctx context.Context, matchID, messageID string) error
	// SetLockedAt 记录子区锁定时间
	SetLockedAt(ctx context.Context, matchID string, lockedAt int64) error
	// ListByType 按类型列出关联
	ListByType(ctx context.Context, threadType string) ([]*model.ThreadAssociation, error)
	// Remove 仅在平台确认子区已不存在或比赛被清除时删除关联
	Remove(ctx context.Context, matchID string) error
}

type threadRepository struct {
	db *gorm.DB
}

// NewThreadRepository 创建 ThreadRepository 实例
func NewThreadRepository(db *gorm.DB) ThreadRepository {
	return &threadRepository{db: db}
}

func (r *threadRepository) GetByMatch(ctx context.Context, matchID string) (*model.ThreadAssociation, error) {
	var a model.ThreadAssociation
	if err := r.db.WithContext(ctx).Where("match_id = ?", matchID).First(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, classify(err)
	}
	return &a, nil
}

func (r *threadRepository) Create(ctx context.Context, a *model.ThreadAssociation) error {
	existing, err := r.GetByMatch(ctx, a.MatchID)
	if err != nil {
		return err
	}
	if existing != nil {
		return &xerrors.DuplicateDetectedError{Resource: "thread_association:" + a.MatchID}
	}
	return classify(r.db.WithContext(ctx).Create(a).Error)
}

func (r *threadRepository) MarkFinished(ctx context.Context, matchID string) error {
	// WHERE 限定 upcoming，保证类型只单向转换且重复调用无副作用
	return classify(r.db.WithContext(ctx).
		Model(&model.ThreadAssociation{}).
		Where("match_id = ? AND thread_type = ?", matchID, model.ThreadTypeUpcoming).
		Updates(map[string]any{"thread_type": model.ThreadTypeFinished, "updated_at": time.Now()}).Error)
}

func (r *threadRepository) SetRsvpMessageID(ctx context.Context, matchID, messageID string) error {
	return classify(r.db.WithContext(ctx).
		Model(&model.ThreadAssociation{}).
		Where("match_id = ?", matchID).
		Updates(map[string]any{"rsvp_message_id": messageID, "updated_at": time.Now()}).Error)
}

func (r *threadRepository) SetLockedAt(ctx context.Context, matchID string, lockedAt int64) error {
	return classify(r.db.WithContext(ctx).
		Model(&model.ThreadAssociation{}).
		Where("match_id = ? AND locked_at IS NULL", matchID).
		Updates(map[string]any{"locked_at": lockedAt, "updated_at": time.Now()}).Error)
}

func (r *threadRepository) ListByType(ctx context.Context, threadType string) ([]*model.ThreadAssociation, error) {
	var res []*model.ThreadAssociation
	if err := r.db.WithContext(ctx).
		Where("thread_type = ?", threadType).
		Order("created_at ASC").
		Find(&res).Error; err != nil {
		return nil, classify(err)
	}
	return res, nil
}

func (r *threadRepository) Remove(ctx context.Context, matchID string) error {
	return classify(r.db.WithContext(ctx).Where("match_id = ?", matchID).Delete(&model.ThreadAssociation{}).Error)
}
