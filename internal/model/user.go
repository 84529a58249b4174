package model

import "time"

// User is a Telegram chat the bot talks to.
type User struct {
	ID             uint  `gorm:"primaryKey"`
	TelegramID     int64 `gorm:"uniqueIndex"`
	ChatID         int64
	FirstName      string
	Username       string
	ReportsEnabled bool `gorm:"default:true"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
