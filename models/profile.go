package models

import "gorm.io/gorm"

// WarmupProfile is a named, reusable warmup configuration preset. The
// config payload is the same shape as the warmup settings keys (phase
// days/min/max and so on) serialized as JSON. System profiles are seeded at
// migration time and cannot be modified or deleted through the API.
type WarmupProfile struct {
	gorm.Model
	Name        string `gorm:"not null;uniqueIndex" json:"name"`
	Description string `json:"description"`
	IsDefault   bool   `gorm:"default:false" json:"is_default"`
	IsSystem    bool   `gorm:"default:false" json:"is_system"`
	ConfigJSON  string `gorm:"not null" json:"config_json"`
}
