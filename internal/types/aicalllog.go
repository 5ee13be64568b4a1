package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// AICallLog records one call to the reasoning service, successful or
// not. Written best-effort from the intent extractor; a log failure
// never fails the order request.
type AICallLog struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     *uuid.UUID     `gorm:"type:uuid;index" json:"user_id,omitempty"`
	WhatsAppID string         `gorm:"column:whatsapp_id;index" json:"whatsapp_id"`
	CallType   string         `gorm:"column:call_type;not null" json:"call_type"`
	Model      string         `gorm:"column:model;not null" json:"model"`
	Prompt     string         `gorm:"column:prompt" json:"prompt"`
	Response   string         `gorm:"column:response" json:"response"`
	Success    bool           `gorm:"column:success;not null" json:"success"`
	Error      string         `gorm:"column:error" json:"error"`
	Usage      datatypes.JSON `gorm:"type:jsonb;column:usage" json:"usage"`
	CreatedAt  time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
}

func (AICallLog) TableName() string {
	return "ai_call_log"
}
