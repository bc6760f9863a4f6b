package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Task struct {
	gorm.Model

	Title       string `gorm:"not null"`
	Description string
	Status      string `gorm:"not null;default:open"`   // "open", "in-progress", "completed", "cancelled"
	Priority    string `gorm:"not null;default:medium"` // "low", "medium", "high", "urgent"
	DueDate     *time.Time
	CreatedByID uint  `gorm:"not null;index"`
	AssignedTo  *uint `gorm:"index"`
	TeamID      *uint `gorm:"index"`
	Tags        datatypes.JSON
	CompletedAt *time.Time

	// Relationships
	CreatedBy   User         `gorm:"foreignKey:CreatedByID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	Assignee    *User        `gorm:"foreignKey:AssignedTo;constraint:OnUpdate:Cascade,OnDelete:SET NULL"`
	Team        *Team        `gorm:"foreignKey:TeamID;constraint:OnUpdate:Cascade,OnDelete:SET NULL"`
	Comments    []Comment    `gorm:"foreignKey:TaskID"`
	Attachments []Attachment `gorm:"foreignKey:TaskID"`
}
