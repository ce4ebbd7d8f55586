package repository

import (
	"context"
	"errors"

	"geojournal/model"

	"gorm.io/gorm"
)

// EntryRepository 时间线条目数据访问接口
type EntryRepository interface {
	Create(ctx context.Context, entry *model.Entry) error
	// ListRecent returns up to limit entries, newest first.
	ListRecent(ctx context.Context, limit int) ([]*model.Entry, error)
	// ListInCells is ListRecent restricted to entries whose cell is in cells.
	ListInCells(ctx context.Context, cells []int64, limit int) ([]*model.Entry, error)
	GetByID(ctx context.Context, id string) (*model.Entry, error)
	DeleteAll(ctx context.Context) (int64, error)
	Count(ctx context.Context) (int64, error)
}

// gormEntryRepository GORM 实现
type gormEntryRepository struct {
	db *gorm.DB
}

// NewGormEntryRepository 创建 GORM 条目仓库
func NewGormEntryRepository(db *gorm.DB) EntryRepository {
	return &gormEntryRepository{db: db}
}

func (r *gormEntryRepository) Create(ctx context.Context, entry *model.Entry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *gormEntryRepository) ListRecent(ctx context.Context, limit int) ([]*model.Entry, error) {
	var entries []*model.Entry
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

func (r *gormEntryRepository) ListInCells(ctx context.Context, cells []int64, limit int) ([]*model.Entry, error) {
	var entries []*model.Entry
	if len(cells) == 0 {
		return entries, nil
	}
	err := r.db.WithContext(ctx).
		Where("cell IN ?", cells).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

// GetByID returns nil, nil when the entry does not exist.
func (r *gormEntryRepository) GetByID(ctx context.Context, id string) (*model.Entry, error) {
	var entry model.Entry
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

func (r *gormEntryRepository) DeleteAll(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&model.Entry{})
	return res.RowsAffected, res.Error
}

func (r *gormEntryRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Entry{}).Count(&count).Error
	return count, err
}
