// Package launch resolves a learner's request to open a content package into
// a registration and the URL of the bridged entry document.
package launch

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"path"

	"coursebridge/apperr"
	"coursebridge/models/learning"
	"coursebridge/services/registration"

	"gorm.io/gorm"
)

// Learner identifies who is launching.
type Learner struct {
	UserID         uint
	OrganizationID uint
}

// Result is what the client needs to open the content.
type Result struct {
	URL            string `json:"url"`
	RegistrationID string `json:"registration_id"`
	Resumed        bool   `json:"resumed"`
}

// Options configure URL construction and registration reuse.
type Options struct {
	PublicPath        string // URL prefix extracted packages are served under
	RegistrationParam string // query parameter carrying the registration id
	Resume            bool   // reuse the learner's latest unfinished registration
}

// Resolver turns launches into registrations.
type Resolver struct {
	db            *gorm.DB
	registrations *registration.Manager
	cache         *PackageCache
	opts          Options
	logger        *slog.Logger
}

func NewResolver(db *gorm.DB, registrations *registration.Manager, cache *PackageCache, opts Options, logger *slog.Logger) *Resolver {
	if opts.PublicPath == "" {
		opts.PublicPath = "/packages"
	}
	if opts.RegistrationParam == "" {
		opts.RegistrationParam = "rid"
	}
	return &Resolver{
		db:            db,
		registrations: registrations,
		cache:         cache,
		opts:          opts,
		logger:        logger.With(slog.String("component", "launch")),
	}
}

// Launch opens an attempt of the learner at the package. Packages of other
// organizations are reported as not found.
func (r *Resolver) Launch(ctx context.Context, packageID uint, who Learner) (*Result, error) {
	pkg, err := r.lookup(ctx, packageID)
	if err != nil {
		return nil, err
	}
	if pkg.OrganizationID != who.OrganizationID {
		return nil, apperr.NotFound("content package %d not found", packageID)
	}

	var reg *learning.Registration
	resumed := false
	if r.opts.Resume {
		if reg, err = r.registrations.LatestUnfinished(ctx, who.UserID, pkg.ID); err != nil {
			return nil, err
		}
		resumed = reg != nil
	}
	if reg == nil {
		if reg, err = r.registrations.Create(ctx, who.UserID, who.OrganizationID, pkg.ID); err != nil {
			return nil, err
		}
	}

	r.logger.Info("launch",
		slog.Uint64("package_id", uint64(pkg.ID)),
		slog.Uint64("user_id", uint64(who.UserID)),
		slog.String("registration_id", reg.ID),
		slog.Bool("resumed", resumed),
	)
	return &Result{URL: r.URL(pkg, reg.ID), RegistrationID: reg.ID, Resumed: resumed}, nil
}

// URL builds <public path>/<storage dir>/<entry>?rid=<registration>.
func (r *Resolver) URL(pkg *learning.ContentPackage, registrationID string) string {
	u := url.URL{
		Path:     path.Join("/", r.opts.PublicPath, pkg.StoragePath, pkg.EntryPoint),
		RawQuery: url.Values{r.opts.RegistrationParam: {registrationID}}.Encode(),
	}
	return u.String()
}

// Invalidate drops a cached package.
func (r *Resolver) Invalidate(packageID uint) {
	if r.cache != nil {
		r.cache.Invalidate(packageID)
	}
}

func (r *Resolver) lookup(ctx context.Context, id uint) (*learning.ContentPackage, error) {
	if r.cache != nil {
		if pkg, ok := r.cache.Get(id); ok {
			return &pkg, nil
		}
	}
	var pkg learning.ContentPackage
	if err := r.db.WithContext(ctx).First(&pkg, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("content package %d not found", id)
		}
		return nil, apperr.Storage(err, "look up package")
	}
	if r.cache != nil {
		r.cache.Set(pkg)
	}
	return &pkg, nil
}
