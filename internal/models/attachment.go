package models

import "gorm.io/gorm"

// Attachment holds file metadata; the blob itself lives on disk under
// the uploads directory, keyed by FileName.
type Attachment struct {
	gorm.Model

	TaskID       uint   `gorm:"not null;index"`
	UploaderID   uint   `gorm:"not null;index"`
	FileName     string `gorm:"not null"` // stored name, unique per upload
	OriginalName string `gorm:"not null"`
	MimeType     string `gorm:"not null"`
	Size         int64  `gorm:"not null"`
	StoragePath  string `gorm:"not null"`

	// Relationships
	Uploader User `gorm:"foreignKey:UploaderID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
}
