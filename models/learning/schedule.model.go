package learning

import (
	"time"

	"gorm.io/datatypes"
)

// Content type discriminators for polymorphic content references
const (
	ContentPackageType  = "package"
	ContentModule       = "module"
	ContentAssessment   = "assessment"
	ContentSurvey       = "survey"
	ContentLearningPath = "learning_path"
)

// Schedule source discriminators
const (
	SourceAssignment = "assignment"
	SourceEnrollment = "enrollment"
)

// Assignment is an administrator-created scheduling of content to learners
type Assignment struct {
	ID             uint                      `json:"id" gorm:"primaryKey"`
	OrganizationID uint                      `json:"organization_id" gorm:"index;not null"`
	ContentType    string                    `json:"content_type" gorm:"index:idx_assignment_content;not null"`
	ContentID      uint                      `json:"content_id" gorm:"index:idx_assignment_content;not null"`
	GroupIDs       datatypes.JSONSlice[uint] `json:"group_ids"`
	AssignOn       time.Time                 `json:"assign_on"`
	DueAt          *time.Time                `json:"due_at"`
	EnforceOrder   bool                      `json:"enforce_order" gorm:"default:false"`
	CreatedBy      uint                      `json:"created_by"`
	CreatedAt      time.Time                 `json:"created_at"`
	UpdatedAt      time.Time                 `json:"updated_at"`
}

// AssignmentLearner binds one learner to an Assignment
type AssignmentLearner struct {
	AssignmentID uint `json:"assignment_id" gorm:"primaryKey"`
	UserID       uint `json:"user_id" gorm:"primaryKey"`
}

// Enrollment is the learner-initiated analogue of Assignment
type Enrollment struct {
	ID             uint       `json:"id" gorm:"primaryKey"`
	OrganizationID uint       `json:"organization_id" gorm:"index;not null"`
	UserID         uint       `json:"user_id" gorm:"index;not null"`
	ContentType    string     `json:"content_type" gorm:"not null"`
	ContentID      uint       `json:"content_id" gorm:"not null"`
	EnforceOrder   bool       `json:"enforce_order" gorm:"default:false"`
	DueAt          *time.Time `json:"due_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// ScheduleElement is one ordered item of an Assignment or Enrollment
type ScheduleElement struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	SourceType  string     `json:"source_type" gorm:"uniqueIndex:idx_schedule_position;not null"`
	SourceID    uint       `json:"source_id" gorm:"uniqueIndex:idx_schedule_position;not null"`
	Position    int        `json:"position" gorm:"uniqueIndex:idx_schedule_position"`
	ContentType string     `json:"content_type" gorm:"not null"`
	ContentID   uint       `json:"content_id" gorm:"not null"`
	AssignOn    time.Time  `json:"assign_on"`
	DueAt       *time.Time `json:"due_at"`
}
