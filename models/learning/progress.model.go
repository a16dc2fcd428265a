package learning

import "time"

// Progress record statuses
const (
	ProgressAssigned   = "assigned"
	ProgressEnrolled   = "enrolled"
	ProgressInProgress = "in_progress"
	ProgressCompleted  = "completed"
	ProgressExpired    = "expired"
)

// Element statuses. Only in_progress, completed and expired are persisted;
// locked and assigned are derived from the schedule on read.
const (
	ElementLocked     = "locked"
	ElementAssigned   = "assigned"
	ElementInProgress = "in_progress"
	ElementCompleted  = "completed"
	ElementExpired    = "expired"
)

// ProgressRecord is the single source of truth for one learner against one
// Assignment or Enrollment
type ProgressRecord struct {
	ID             uint              `json:"id" gorm:"primaryKey"`
	SourceType     string            `json:"source_type" gorm:"uniqueIndex:idx_progress_source_user;not null"`
	SourceID       uint              `json:"source_id" gorm:"uniqueIndex:idx_progress_source_user;not null"`
	UserID         uint              `json:"user_id" gorm:"uniqueIndex:idx_progress_source_user;index;not null"`
	OrganizationID uint              `json:"organization_id" gorm:"index"`
	Status         string            `json:"status" gorm:"index;not null"`
	Percentage     float64           `json:"percentage" gorm:"default:0"`
	EnforceOrder   bool              `json:"enforce_order" gorm:"default:false"`
	DueAt          *time.Time        `json:"due_at"`
	StartedAt      *time.Time        `json:"started_at"`
	CompletedAt    *time.Time        `json:"completed_at"`
	LastActivityAt *time.Time        `json:"last_activity_at"`
	Elements       []ProgressElement `json:"elements" gorm:"foreignKey:ProgressID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// ProgressElement is one sequenced sub-unit of a ProgressRecord
type ProgressElement struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	ProgressID  uint       `json:"progress_id" gorm:"uniqueIndex:idx_progress_position;not null"`
	Position    int        `json:"position" gorm:"uniqueIndex:idx_progress_position"`
	ContentType string     `json:"content_type" gorm:"index:idx_element_content;not null"`
	ContentID   uint       `json:"content_id" gorm:"index:idx_element_content;not null"`
	AssignOn    time.Time  `json:"assign_on"`
	DueAt       *time.Time `json:"due_at"`
	Status      string     `json:"status"` // persisted facts only, see Sequence
	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

// IsTerminal reports whether no further learner activity is accepted
func (p ProgressRecord) IsTerminal() bool {
	return p.Status == ProgressCompleted || p.Status == ProgressExpired
}
