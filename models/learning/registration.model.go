package learning

import "time"

// Registration states
const (
	RegistrationCreated  = "CREATED"
	RegistrationActive   = "ACTIVE"
	RegistrationFinished = "FINISHED"
)

// Registration is one attempt by one learner at one ContentPackage
type Registration struct {
	ID               string     `json:"id" gorm:"primaryKey;size:36"`
	UserID           uint       `json:"user_id" gorm:"index;not null"`
	OrganizationID   uint       `json:"organization_id" gorm:"index;not null"`
	ContentPackageID uint       `json:"content_package_id" gorm:"index;not null"`
	State            string     `json:"state" gorm:"default:'CREATED'"`
	InitializedAt    *time.Time `json:"initialized_at"`
	CompletedAt      *time.Time `json:"completed_at"`
	PropagatedAt     *time.Time `json:"propagated_at"` // completion reached progress tracking
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// CMIEntry is one key/value pair persisted by bridged content
type CMIEntry struct {
	RegistrationID string    `json:"registration_id" gorm:"primaryKey;size:36"`
	Key            string    `json:"key" gorm:"column:cmi_key;primaryKey;size:255"`
	Value          string    `json:"value" gorm:"type:text"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (CMIEntry) TableName() string { return "cmi_entries" }
