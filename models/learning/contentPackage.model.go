package learning

import (
	"time"

	"gorm.io/datatypes"
)

// Content package lifecycle
const (
	PackageDraft     = "DRAFT"
	PackagePublished = "PUBLISHED"
)

// ContentPackage is an uploaded, extracted and bridge-injected courseware unit
type ContentPackage struct {
	ID               uint                        `json:"id" gorm:"primaryKey"`
	OrganizationID   uint                        `json:"organization_id" gorm:"index;not null"`
	Title            string                      `json:"title" gorm:"not null"`
	Description      string                      `json:"description" gorm:"type:text"`
	Tags             datatypes.JSONSlice[string] `json:"tags"`
	Status           string                      `json:"status" gorm:"default:'DRAFT'"` // DRAFT, PUBLISHED
	StoragePath      string                      `json:"storage_path" gorm:"not null"`  // per-upload dir under UPLOAD_DIR
	EntryPoint       string                      `json:"entry_point" gorm:"not null"`   // relative to StoragePath
	Credits          float64                     `json:"credits" gorm:"default:0"`
	Prerequisites    datatypes.JSONSlice[string] `json:"prerequisites"`
	LearningOutcomes datatypes.JSONSlice[string] `json:"learning_outcomes"`
	CreatedBy        uint                        `json:"created_by"`
	CreatedAt        time.Time                   `json:"created_at"`
	UpdatedAt        time.Time                   `json:"updated_at"`
}

// Ingest job lifecycle
const (
	JobPending   = "PENDING"
	JobSucceeded = "SUCCEEDED"
	JobFailed    = "FAILED"
)

// IngestJob tracks an archive waiting for (or done with) background extraction.
// The ContentPackage row only exists once the job has succeeded.
type IngestJob struct {
	ID               string         `json:"id" gorm:"primaryKey;size:36"`
	OrganizationID   uint           `json:"organization_id" gorm:"index;not null"`
	Status           string         `json:"status" gorm:"default:'PENDING'"`
	Error            string         `json:"error,omitempty"`
	ContentPackageID *uint          `json:"content_package_id,omitempty"`
	ArchivePath      string         `json:"-"`
	Metadata         datatypes.JSON `json:"-"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}
