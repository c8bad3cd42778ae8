package gormstore

import (
	"time"

	"gorm.io/datatypes"
)

// ProjectModel is the GORM model for projects.
type ProjectModel struct {
	ID        string    `gorm:"type:uuid;primaryKey"`
	Name      string    `gorm:"not null;uniqueIndex"`
	OwnerID   string    `gorm:"type:uuid;not null;index"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime:false"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime:false"`
}

// TableName pins the table name.
func (ProjectModel) TableName() string { return "projects" }

// MessageModel is the GORM model for messages.
type MessageModel struct {
	ID           string          `gorm:"type:uuid;primaryKey"`
	ProjectID    string          `gorm:"type:uuid;not null;index"`
	Content      *datatypes.JSON `gorm:"type:jsonb"`
	PasswordHash *string
	Hint         *string
	FromName     *string
	ToName       *string
	Version      int64     `gorm:"not null;default:1"`
	CreatedAt    time.Time `gorm:"not null;index;autoCreateTime:false"`
	UpdatedAt    time.Time `gorm:"not null;autoUpdateTime:false"`
}

// TableName pins the table name.
func (MessageModel) TableName() string { return "messages" }
