package domain

import (
	"time"

	"gorm.io/datatypes"
)

type ExecutionStatus string

const (
	StatusPending   ExecutionStatus = "pending"
	StatusRunning   ExecutionStatus = "running"
	StatusCompleted ExecutionStatus = "completed"
	StatusFailed    ExecutionStatus = "failed"
)

func (s ExecutionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition enforces the pending → running → {completed, failed} lifecycle.
func (s ExecutionStatus) CanTransition(to ExecutionStatus) bool {
	switch s {
	case StatusPending:
		return to == StatusRunning || to == StatusFailed
	case StatusRunning:
		return to == StatusCompleted || to == StatusFailed
	default:
		return false
	}
}

// CREATE TABLE public.executions (
//     id             UUID PRIMARY KEY,
//     status         TEXT NOT NULL,
//     trigger_source TEXT NOT NULL,
//     start_time     TIMESTAMPTZ NOT NULL,
//     end_time       TIMESTAMPTZ,
//     notes          TEXT,
//     created_at     TIMESTAMPTZ DEFAULT NOW(),
//     updated_at     TIMESTAMPTZ DEFAULT NOW()
// );

type Execution struct {
	ID            string          `gorm:"primaryKey;type:uuid" json:"id"`
	Status        ExecutionStatus `gorm:"column:status;not null" json:"status"`
	TriggerSource string          `gorm:"column:trigger_source;not null" json:"trigger_source"`
	StartTime     time.Time       `gorm:"column:start_time;not null" json:"start_time"`
	EndTime       *time.Time      `gorm:"column:end_time" json:"end_time,omitempty"`
	Notes         string          `gorm:"column:notes;type:text" json:"notes,omitempty"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	Runs []CompetitorRun `gorm:"foreignKey:ExecutionID" json:"runs,omitempty"`
}

func (Execution) TableName() string {
	return "executions"
}

// CREATE TABLE public.competitor_runs (
//     id             UUID PRIMARY KEY,
//     execution_id   UUID NOT NULL REFERENCES executions(id),
//     competitor     TEXT NOT NULL,
//     status         TEXT NOT NULL,
//     start_time     TIMESTAMPTZ,
//     end_time       TIMESTAMPTZ,
//     processed_keys INTEGER NOT NULL DEFAULT 0,
//     succeeded_keys INTEGER NOT NULL DEFAULT 0,
//     offer_count    INTEGER NOT NULL DEFAULT 0,
//     error_count    INTEGER NOT NULL DEFAULT 0,
//     error          JSONB,
//     UNIQUE (execution_id, competitor)
// );

type CompetitorRun struct {
	ID            string            `gorm:"primaryKey;type:uuid" json:"id"`
	ExecutionID   string            `gorm:"column:execution_id;type:uuid;not null" json:"execution_id"`
	Competitor    string            `gorm:"column:competitor;not null" json:"competitor"`
	Status        ExecutionStatus   `gorm:"column:status;not null" json:"status"`
	StartTime     *time.Time        `gorm:"column:start_time" json:"start_time,omitempty"`
	EndTime       *time.Time        `gorm:"column:end_time" json:"end_time,omitempty"`
	ProcessedKeys int               `gorm:"column:processed_keys" json:"processed_keys"`
	SucceededKeys int               `gorm:"column:succeeded_keys" json:"succeeded_keys"`
	OfferCount    int               `gorm:"column:offer_count" json:"offer_count"`
	ErrorCount    int               `gorm:"column:error_count" json:"error_count"`
	Error         datatypes.JSONMap `gorm:"column:error;type:jsonb" json:"error,omitempty"`
}

func (CompetitorRun) TableName() string {
	return "competitor_runs"
}
