package model

import "time"

// Record is one key/value row of a gorm-backed store.
type Record struct {
	Key       string `gorm:"primaryKey"`
	Value     string
	UpdatedAt time.Time
}

func (Record) TableName() string {
	return "kv_records"
}
