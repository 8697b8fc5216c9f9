package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/digitalgenesiskompound/faceit-discord-bot-sub000/internal/model"
)

// CacheRepository 通用持久化缓存行存取接口（缓存的第二层）
type CacheRepository interface {
	// Get 读取缓存行，未找到返回 nil；过期判定由缓存层负责
	Get(ctx context.Context, key string) (*model.CacheEntry, error)
	// Set 写入/覆盖缓存行
	Set(ctx context.Context, key, payload string, expiresAt int64) error
	// Delete 删除指定键
	Delete(ctx context.Context, keys ...string) error
	// DeleteExpired 清理所有已过期的行，返回清理数量
	DeleteExpired(ctx context.Context, now int64) (int64, error)
	// Count 当前持久化缓存行数（状态上报用）
	Count(ctx context.Context) (int64, error)
}

type cacheRepository struct {
	db *gorm.DB
}

// NewCacheRepository 创建 CacheRepository 实例
func NewCacheRepository(db *gorm.DB) CacheRepository {
	return &cacheRepository{db: db}
}

func (r *cacheRepository) Get(ctx context.Context, key string) (*model.CacheEntry, error) {
	var e model.CacheEntry
	if err := r.db.WithContext(ctx).Where("cache_key = ?", key).First(&e).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, classify(err)
	}
	return &e, nil
}

func (r *cacheRepository) Set(ctx context.Context, key, payload string, expiresAt int64) error {
	e := &model.CacheEntry{CacheKey: key, Payload: payload, ExpiresAt: expiresAt, UpdatedAt: time.Now()}
	return classify(r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cache_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "expires_at", "updated_at"}),
	}).Create(e).Error)
}

func (r *cacheRepository) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return classify(r.db.WithContext(ctx).Where("cache_key IN ?", keys).Delete(&model.CacheEntry{}).Error)
}

func (r *cacheRepository) DeleteExpired(ctx context.Context, now int64) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at < ?", now).Delete(&model.CacheEntry{})
	return res.RowsAffected, classify(res.Error)
}

func (r *cacheRepository) Count(ctx context.Context) (int64, error) {
	var cnt int64
	if err := r.db.WithContext(ctx).Model(&model.CacheEntry{}).Count(&cnt).Error; err != nil {
		return 0, classify(err)
	}
	return cnt, nil
}
