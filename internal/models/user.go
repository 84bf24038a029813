package models

import (
	"time"

	"gorm.io/gorm"
)

// User is the directory's profile record. Created on first sign-in, replaced
// wholesale on profile edits; removal is an administrative action outside the
// directory core (soft delete).
type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Name         string         `gorm:"size:255;not null" json:"name"`
	Email        string         `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash string         `gorm:"size:255" json:"-"`
	PictureURL   string         `gorm:"size:512" json:"picture_url,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`

	// Relations
	Location *UserLocation `gorm:"foreignKey:UserID" json:"location,omitempty"`
	Presence *UserPresence `gorm:"foreignKey:UserID" json:"presence,omitempty"`
}
