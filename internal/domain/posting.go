package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// RawPayload is a custom type for storing the original adapter record as JSON
// in the database. It is kept verbatim for audit purposes and never read back
// by the ingestion pipeline.
type RawPayload map[string]interface{}

// Value implements the driver.Valuer interface for database serialization.
// Parameters: none.
// Returns:
//   - driver.Value: JSON-encoded string representation of the payload.
//   - error: non-nil if marshaling fails.
func (p RawPayload) Value() (driver.Value, error) {
	if p == nil {
		return "{}", nil
	}
	return json.Marshal(p)
}

// Scan implements the sql.Scanner interface for database deserialization.
// Parameters:
//   - value: raw database value to decode.
// Returns:
//   - error: non-nil if decoding fails or the type is unexpected.
func (p *RawPayload) Scan(value interface{}) error {
	if value == nil {
		*p = RawPayload{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan RawPayload")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, p)
}

// Posting is the canonical internal record for one job listing. A posting is
// created on first sighting, overwritten on every re-sighting, and never
// physically deleted; it only transitions between active and inactive.
// The pair (ExternalID, Company) is unique.
type Posting struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	ExternalID     string     `gorm:"type:text;not null;index:idx_postings_identity,unique" json:"external_id"`
	Company        string     `gorm:"type:text;not null;index:idx_postings_identity,unique;index:idx_postings_company" json:"company"`
	Title          string     `gorm:"type:text;not null" json:"title"`
	Location       string     `gorm:"type:text" json:"location"`
	URL            string     `gorm:"type:text;not null" json:"url"`
	DatePosted     time.Time  `json:"date_posted"`
	EmploymentType string     `gorm:"type:text" json:"employment_type"`
	Description    string     `gorm:"type:text" json:"description"`
	FirstSeen      time.Time  `json:"first_seen"`
	LastUpdated    time.Time  `json:"last_updated"`
	IsActive       bool       `gorm:"index:idx_postings_active" json:"is_active"`
	RawPayload     RawPayload `gorm:"type:text" json:"-"`
	Roles          []Role     `gorm:"many2many:posting_roles" json:"roles,omitempty"`
}

// TableName returns the database table name for Posting.
func (Posting) TableName() string {
	return "postings"
}

// Role is a canonical taxonomy entry. Roles are created on first use by the
// classifier and accumulate on postings across cycles; associations are never
// removed.
type Role struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"type:text;uniqueIndex;not null" json:"name"`
}

// TableName returns the database table name for Role.
func (Role) TableName() string {
	return "roles"
}

// RoleCount pairs a role name with the number of postings carrying it.
type RoleCount struct {
	Role  string `json:"role"`
	Count int64  `json:"count"`
}
