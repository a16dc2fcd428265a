// Package ingest validates uploaded courseware archives, extracts them into a
// per-upload directory, injects the runtime shim and records the package.
package ingest

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"coursebridge/apperr"
	"coursebridge/metrics"
	"coursebridge/models/learning"
	"coursebridge/services/bridge"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Metadata is the authoring information uploaded with an archive.
type Metadata struct {
	OrganizationID   uint     `json:"organization_id" validate:"required"`
	CreatedBy        uint     `json:"created_by"`
	Title            string   `json:"title" validate:"required,max=200"`
	Description      string   `json:"description" validate:"max=5000"`
	Tags             []string `json:"tags" validate:"max=32,dive,min=1,max=64"`
	Status           string   `json:"status" validate:"omitempty,oneof=DRAFT PUBLISHED"`
	Credits          float64  `json:"credits" validate:"gte=0"`
	Prerequisites    []string `json:"prerequisites" validate:"max=64,dive,min=1"`
	LearningOutcomes []string `json:"learning_outcomes" validate:"max=64,dive,min=1"`
}

// Validate checks m and reports every failing field.
func (m *Metadata) Validate() error {
	m.Title = strings.TrimSpace(m.Title)
	m.Description = strings.TrimSpace(m.Description)
	if m.Status == "" {
		m.Status = learning.PackageDraft
	}
	if err := validate.Struct(m); err != nil {
		return apperr.Invalid("metadata", err)
	}
	return nil
}

// Ingestor turns archives into ContentPackage rows.
type Ingestor struct {
	db        *gorm.DB
	uploadDir string
	shim      bridge.Options
	logger    *slog.Logger
	clock     func() time.Time
}

func NewIngestor(db *gorm.DB, uploadDir string, shim bridge.Options, logger *slog.Logger) *Ingestor {
	return &Ingestor{
		db:        db,
		uploadDir: uploadDir,
		shim:      shim,
		logger:    logger.With(slog.String("component", "ingest")),
		clock:     time.Now,
	}
}

// UploadDir is where extracted packages live.
func (i *Ingestor) UploadDir() string { return i.uploadDir }

// Ingest extracts the archive, resolves and bridges the entry document and
// creates the package record. On any failure the extraction directory is
// removed and no record exists.
func (i *Ingestor) Ingest(ctx context.Context, archivePath string, meta Metadata) (pkg *learning.ContentPackage, err error) {
	if err := meta.Validate(); err != nil {
		metrics.IngestResults.WithLabelValues("invalid").Inc()
		return nil, err
	}

	dirName := i.clock().UTC().Format("20060102150405") + "-" + uuid.NewString()[:8]
	dest := filepath.Join(i.uploadDir, dirName)

	defer func() {
		if err == nil {
			metrics.IngestResults.WithLabelValues("ok").Inc()
			return
		}
		if rmErr := os.RemoveAll(dest); rmErr != nil {
			i.logger.Error("cleanup of failed ingest left files behind",
				slog.String("dir", dest),
				slog.String("error", rmErr.Error()),
			)
		}
		metrics.IngestResults.WithLabelValues(strings.ToLower(string(apperr.KindOf(err)))).Inc()
		i.logger.Warn("ingest failed", slog.String("archive", filepath.Base(archivePath)), slog.String("error", err.Error()))
	}()

	if err := Extract(archivePath, dest); err != nil {
		return nil, err
	}
	entry, err := ResolveEntryPoint(dest)
	if err != nil {
		return nil, err
	}
	if err := bridge.InjectFile(filepath.Join(dest, filepath.FromSlash(entry)), i.shim); err != nil {
		return nil, err
	}

	pkg = &learning.ContentPackage{
		OrganizationID:   meta.OrganizationID,
		Title:            meta.Title,
		Description:      meta.Description,
		Tags:             meta.Tags,
		Status:           meta.Status,
		StoragePath:      dirName,
		EntryPoint:       entry,
		Credits:          meta.Credits,
		Prerequisites:    meta.Prerequisites,
		LearningOutcomes: meta.LearningOutcomes,
		CreatedBy:        meta.CreatedBy,
	}
	if err := i.db.WithContext(ctx).Create(pkg).Error; err != nil {
		return nil, apperr.Storage(err, "create content package")
	}

	i.logger.Info("package ingested",
		slog.Uint64("package_id", uint64(pkg.ID)),
		slog.String("dir", dirName),
		slog.String("entry", entry),
	)
	return pkg, nil
}
