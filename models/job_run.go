package models

import (
	"time"

	"gorm.io/gorm"
)

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// JobRun records one execution of a background or on-demand pipeline.
type JobRun struct {
	gorm.Model
	PipelineName string     `gorm:"not null;index" json:"pipeline_name"`
	StartedAt    time.Time  `gorm:"not null" json:"started_at"`
	EndedAt      *time.Time `json:"ended_at"`
	Status       JobStatus  `gorm:"default:'pending';index" json:"status"`
	CountersJSON string     `json:"counters_json"`
	ErrorMessage string     `json:"error_message"`
	TriggeredBy  string     `json:"triggered_by"` // user email or "scheduler"
}
