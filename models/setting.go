package models

import "time"

// Setting is one row of the admin key-value settings store. Values are
// JSON-serialized; the warmup config loader parses them into a typed
// snapshot and falls back to defaults for missing or malformed keys.
type Setting struct {
	Key         string    `gorm:"primaryKey;size:100" json:"key"`
	ValueJSON   string    `json:"value_json"`
	Type        string    `gorm:"default:'string'" json:"type"` // string, integer, boolean, json, list
	Description string    `json:"description"`
	UpdatedBy   string    `json:"updated_by"`
	UpdatedAt   time.Time `json:"updated_at"`
}
