// Package service 在授权、元数据缓存与流式引擎之上组合下载、信息查询与删除.
package service

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yeisme/fastlink/pkg/apperr"
	"github.com/yeisme/fastlink/pkg/internal/model"
)

// RecordStore 基于 gorm 的 ObjectRecord 持久化.
type RecordStore struct {
	db *gorm.DB
}

// NewRecordStore 创建记录存储.
func NewRecordStore(db *gorm.DB) *RecordStore {
	return &RecordStore{db: db}
}

// Get 按 object id 查询，包括已软删除的记录.
func (s *RecordStore) Get(ctx context.Context, objectID string) (*model.ObjectRecord, error) {
	var rec model.ObjectRecord

	err := s.db.WithContext(ctx).Where("object_id = ?", objectID).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}

	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstreamUnavailable, err, "query object record")
	}

	return &rec, nil
}

// Insert 写入新记录. object_id 已存在时不做任何修改，重复投递的完成事件因此是幂等的.
func (s *RecordStore) Insert(ctx context.Context, rec *model.ObjectRecord) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(rec).Error
}

// IncrementDownloads 批量累加下载次数. 不使用事务，部分失败的计数允许丢失.
func (s *RecordStore) IncrementDownloads(ctx context.Context, counts map[string]int64, at time.Time) error {
	var errs []error

	for id, n := range counts {
		err := s.db.WithContext(ctx).Model(&model.ObjectRecord{}).
			Where("object_id = ?", id).
			Updates(map[string]any{
				"download_count":     gorm.Expr("download_count + ?", n),
				"last_downloaded_at": at,
			}).Error
		if err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// SoftDelete 标记删除. 返回 false 表示记录原本就已删除.
func (s *RecordStore) SoftDelete(ctx context.Context, objectID string, at time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&model.ObjectRecord{}).
		Where("object_id = ? AND deleted = ?", objectID, false).
		Updates(map[string]any{"deleted": true, "deleted_at": at})
	if res.Error != nil {
		return false, apperr.Wrap(apperr.KindUpstreamUnavailable, res.Error, "soft delete")
	}

	if res.RowsAffected > 0 {
		return true, nil
	}

	if _, err := s.Get(ctx, objectID); err != nil {
		return false, err
	}

	return false, nil
}

// ListFilter 列表条件.
type ListFilter struct {
	Page           int
	Size           int
	IncludeDeleted bool
	Extension      string
}

// List 按创建时间倒序分页列出记录.
func (s *RecordStore) List(ctx context.Context, f ListFilter) ([]model.ObjectRecord, int64, error) {
	if f.Page <= 0 {
		f.Page = 1
	}

	if f.Size <= 0 || f.Size > 200 {
		f.Size = 50
	}

	q := s.db.WithContext(ctx).Model(&model.ObjectRecord{})
	if !f.IncludeDeleted {
		q = q.Where("deleted = ?", false)
	}

	if f.Extension != "" {
		q = q.Where("extension = ?", f.Extension)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []model.ObjectRecord
	if err := q.Order("created_at DESC").Offset((f.Page - 1) * f.Size).Limit(f.Size).Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	return rows, total, nil
}
