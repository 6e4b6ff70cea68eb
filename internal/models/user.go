package models

import "time"

// User is one WhatsApp sender, created lazily on first contact.
type User struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	WaID      string `gorm:"size:32;uniqueIndex"`
	Language  string `gorm:"size:8;default:en"`
	CreatedAt time.Time
}
