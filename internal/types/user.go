package types

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	WhatsAppID string    `gorm:"column:whatsapp_id;uniqueIndex;not null" json:"whatsapp_id"`
	Username   string    `gorm:"not null" json:"username"`
	Age        *int      `gorm:"column:age" json:"age,omitempty"`
	Address    string    `gorm:"column:address" json:"address,omitempty"`
	CreatedAt  time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}
