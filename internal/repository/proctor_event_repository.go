package repository

import (
	"coder_edu_lockdown/internal/model"
	"context"

	"gorm.io/gorm"
)

type ProctorEventRepository struct {
	DB *gorm.DB
}

func NewProctorEventRepository(db *gorm.DB) *ProctorEventRepository {
	return &ProctorEventRepository{DB: db}
}

func (r *ProctorEventRepository) Create(ctx context.Context, event *model.ProctorEvent) error {
	return r.DB.WithContext(ctx).Create(event).Error
}

func (r *ProctorEventRepository) ListBySession(ctx context.Context, sessionID string) ([]model.ProctorEvent, error) {
	var events []model.ProctorEvent
	err := r.DB.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&events).Error
	return events, err
}

// ListByLearner 按时间倒序分页
func (r *ProctorEventRepository) ListByLearner(ctx context.Context, learnerID uint, limit, offset int) ([]model.ProctorEvent, int64, error) {
	var events []model.ProctorEvent
	var total int64

	db := r.DB.WithContext(ctx).Model(&model.ProctorEvent{}).Where("learner_id = ?", learnerID)
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := db.Order("created_at DESC").Limit(limit).Offset(offset).Find(&events).Error
	return events, total, err
}
