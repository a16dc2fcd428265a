// Package catalog manages ingested content packages after upload: listing,
// editing, publishing and the cascading delete.
package catalog

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"coursebridge/apperr"
	"coursebridge/models/learning"
	"coursebridge/services/registration"
	"coursebridge/services/schedule"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Invalidator drops cached copies of a package.
type Invalidator interface {
	Invalidate(packageID uint)
}

// Update holds the editable package fields; nil fields are left alone.
type Update struct {
	Title            *string   `json:"title" validate:"omitempty,min=1,max=200"`
	Description      *string   `json:"description" validate:"omitempty,max=5000"`
	Tags             *[]string `json:"tags" validate:"omitempty,max=32,dive,min=1,max=64"`
	Credits          *float64  `json:"credits" validate:"omitempty,gte=0"`
	Prerequisites    *[]string `json:"prerequisites" validate:"omitempty,max=64,dive,min=1"`
	LearningOutcomes *[]string `json:"learning_outcomes" validate:"omitempty,max=64,dive,min=1"`
}

// Filter narrows List.
type Filter struct {
	Status string
	Search string
	Page   int
	Limit  int
}

// Catalog is the package store seen by administrators.
type Catalog struct {
	db            *gorm.DB
	schedules     *schedule.Service
	registrations *registration.Manager
	uploadDir     string
	cache         Invalidator
	logger        *slog.Logger
}

func New(db *gorm.DB, schedules *schedule.Service, registrations *registration.Manager, uploadDir string, cache Invalidator, logger *slog.Logger) *Catalog {
	return &Catalog{
		db:            db,
		schedules:     schedules,
		registrations: registrations,
		uploadDir:     uploadDir,
		cache:         cache,
		logger:        logger.With(slog.String("component", "catalog")),
	}
}

// List returns one page of the organization's packages and the total count.
func (c *Catalog) List(ctx context.Context, organizationID uint, f Filter) ([]learning.ContentPackage, int64, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 20
	}
	q := c.db.WithContext(ctx).Model(&learning.ContentPackage{}).Where("organization_id = ?", organizationID)
	if f.Status != "" {
		q = q.Where("status = ?", strings.ToUpper(f.Status))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		q = q.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(s)+"%")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, apperr.Storage(err, "count packages")
	}
	var pkgs []learning.ContentPackage
	if err := q.Order("created_at desc").Order("id desc").Offset((f.Page - 1) * f.Limit).Limit(f.Limit).Find(&pkgs).Error; err != nil {
		return nil, 0, apperr.Storage(err, "list packages")
	}
	return pkgs, total, nil
}

// Get returns a package of the organization.
func (c *Catalog) Get(ctx context.Context, organizationID, id uint) (*learning.ContentPackage, error) {
	return c.find(c.db.WithContext(ctx), organizationID, id)
}

// Update edits the authoring metadata of a package.
func (c *Catalog) Update(ctx context.Context, organizationID, id uint, u Update) (*learning.ContentPackage, error) {
	if u.Title != nil {
		t := strings.TrimSpace(*u.Title)
		u.Title = &t
	}
	if err := validate.Struct(u); err != nil {
		return nil, apperr.Invalid("package update", err)
	}
	db := c.db.WithContext(ctx)
	pkg, err := c.find(db, organizationID, id)
	if err != nil {
		return nil, err
	}

	if u.Title != nil {
		pkg.Title = *u.Title
	}
	if u.Description != nil {
		pkg.Description = strings.TrimSpace(*u.Description)
	}
	if u.Tags != nil {
		pkg.Tags = *u.Tags
	}
	if u.Credits != nil {
		pkg.Credits = *u.Credits
	}
	if u.Prerequisites != nil {
		pkg.Prerequisites = *u.Prerequisites
	}
	if u.LearningOutcomes != nil {
		pkg.LearningOutcomes = *u.LearningOutcomes
	}
	if err := db.Save(pkg).Error; err != nil {
		return nil, apperr.Storage(err, "update package")
	}
	c.invalidate(pkg.ID)
	return pkg, nil
}

// Publish moves a DRAFT package to PUBLISHED. Publishing twice is a no-op.
func (c *Catalog) Publish(ctx context.Context, organizationID, id uint) (*learning.ContentPackage, error) {
	db := c.db.WithContext(ctx)
	pkg, err := c.find(db, organizationID, id)
	if err != nil {
		return nil, err
	}
	if pkg.Status == learning.PackagePublished {
		return pkg, nil
	}
	if err := db.Model(pkg).Update("status", learning.PackagePublished).Error; err != nil {
		return nil, apperr.Storage(err, "publish package")
	}
	pkg.Status = learning.PackagePublished
	c.invalidate(pkg.ID)
	c.logger.Info("package published", slog.Uint64("package_id", uint64(pkg.ID)))
	return pkg, nil
}

// Delete removes a package with its assignments, enrollments, progress,
// registrations and CMI state in one transaction, then its extracted files.
func (c *Catalog) Delete(ctx context.Context, organizationID, id uint) error {
	var pkg *learning.ContentPackage
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if pkg, err = c.find(tx, organizationID, id); err != nil {
			return err
		}
		ids := []uint{pkg.ID}
		if err := c.schedules.WithTx(tx).DeleteForContent(ctx, learning.ContentPackageType, ids); err != nil {
			return err
		}
		if err := c.registrations.DeleteForPackages(ctx, tx, ids); err != nil {
			return err
		}
		if err := tx.Delete(&learning.ContentPackage{}, pkg.ID).Error; err != nil {
			return apperr.Storage(err, "delete package")
		}
		return nil
	})
	if err != nil {
		return err
	}
	c.invalidate(pkg.ID)

	if pkg.StoragePath != "" {
		dir := filepath.Join(c.uploadDir, filepath.Clean(pkg.StoragePath))
		if err := os.RemoveAll(dir); err != nil {
			c.logger.Warn("could not remove package files", slog.String("dir", dir), slog.String("error", err.Error()))
		}
	}
	c.logger.Info("package deleted", slog.Uint64("package_id", uint64(pkg.ID)))
	return nil
}

func (c *Catalog) find(db *gorm.DB, organizationID, id uint) (*learning.ContentPackage, error) {
	var pkg learning.ContentPackage
	if err := db.Where("id = ? AND organization_id = ?", id, organizationID).First(&pkg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("content package %d not found", id)
		}
		return nil, apperr.Storage(err, "look up package")
	}
	return &pkg, nil
}

func (c *Catalog) invalidate(id uint) {
	if c.cache != nil {
		c.cache.Invalidate(id)
	}
}
