package model

import (
	"time"

	"github.com/google/uuid"
)

// AuditModel 只追加的审计表公共字段，没有更新与软删除
type AuditModel struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
}

// NewSessionID 会话 ID 同时作为 Redis 会话锁的持有者标识
func NewSessionID() string {
	return uuid.NewString()
}
