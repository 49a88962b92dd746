package models

import "gorm.io/gorm"

// User is the operator account behind the API token. Account lifecycle
// (registration, password reset) lives outside this service; the orchestrator
// only needs it to authorize API calls.
type User struct {
	gorm.Model
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"not null" json:"-"`
	IsActive     bool   `gorm:"default:true" json:"is_active"`
	TokenVersion int    `gorm:"default:0" json:"-"`
}
