package models

import "time"

// ConversationSnapshot holds where one sender currently is in the dialogue.
// At most one live row per sender (upsert by WaID); it is overwritten on
// every transition and never deleted.
type ConversationSnapshot struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	WaID      string `gorm:"size:32;uniqueIndex"`
	State     string `gorm:"size:64;default:idle"`
	Scratch   string `gorm:"type:text;default:'{}'"` // small JSON map of cross-step data
	UpdatedAt time.Time
}
