package domain

import "time"

// RunStatus represents the outcome of one data-source ingestion cycle.
// Values include RunStatusRunning, RunStatusSuccess, and RunStatusFailure.
type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusFailure RunStatus = "failure"
)

// RunRecord is the ledger entry for one (data source, cycle) pair. It is
// created with status running when the cycle starts and finalized exactly once
// when the cycle ends; a finalized record is never mutated again.
type RunRecord struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	SourceName      string     `gorm:"type:text;not null;index" json:"source_name"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	Status          RunStatus  `gorm:"type:text;index" json:"status"`
	PostingsAdded   int        `gorm:"default:0" json:"postings_added"`
	PostingsUpdated int        `gorm:"default:0" json:"postings_updated"`
	ErrorMessage    string     `gorm:"type:text" json:"error_message,omitempty"`
}

// TableName returns the database table name for RunRecord.
func (RunRecord) TableName() string {
	return "run_records"
}
