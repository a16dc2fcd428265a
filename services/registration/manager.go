// Package registration implements the runtime protocol lifecycle:
// CREATED → ACTIVE → FINISHED, with CMI reads and writes allowed only while ACTIVE.
package registration

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"coursebridge/apperr"
	"coursebridge/models/learning"
	"coursebridge/services/cmi"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Completer receives the completion signal of a finished registration. Only
// progress tracked at or before until is credited.
type Completer interface {
	CompleteContent(ctx context.Context, userID uint, contentType string, contentID uint, until time.Time) (int, error)
}

// Manager creates registrations and serves the runtime protocol calls.
type Manager struct {
	db        *gorm.DB
	store     *cmi.Store
	completer Completer
	logger    *slog.Logger
	clock     func() time.Time
}

func NewManager(db *gorm.DB, store *cmi.Store, completer Completer, logger *slog.Logger) *Manager {
	return &Manager{
		db:        db,
		store:     store,
		completer: completer,
		logger:    logger.With(slog.String("component", "registration")),
		clock:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source.
func (m *Manager) WithClock(clock func() time.Time) *Manager {
	c := *m
	c.clock = clock
	return &c
}

// Create opens a new attempt of userID at packageID.
func (m *Manager) Create(ctx context.Context, userID, organizationID, packageID uint) (*learning.Registration, error) {
	reg := learning.Registration{
		ID:               uuid.NewString(),
		UserID:           userID,
		OrganizationID:   organizationID,
		ContentPackageID: packageID,
		State:            learning.RegistrationCreated,
	}
	if err := m.db.WithContext(ctx).Create(&reg).Error; err != nil {
		return nil, apperr.Storage(err, "create registration")
	}
	return &reg, nil
}

// LatestUnfinished returns the newest CREATED or ACTIVE registration of the pair, or nil.
func (m *Manager) LatestUnfinished(ctx context.Context, userID, packageID uint) (*learning.Registration, error) {
	var reg learning.Registration
	err := m.db.WithContext(ctx).
		Where("user_id = ? AND content_package_id = ? AND state <> ?", userID, packageID, learning.RegistrationFinished).
		Order("created_at desc").
		First(&reg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Storage(err, "look up registration")
	}
	return &reg, nil
}

// Lookup returns the registration or a NotFound error.
func (m *Manager) Lookup(ctx context.Context, registrationID string) (*learning.Registration, error) {
	var reg learning.Registration
	err := m.db.WithContext(ctx).Where("id = ?", registrationID).First(&reg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("registration %s not found", registrationID)
	}
	if err != nil {
		return nil, apperr.Storage(err, "load registration")
	}
	return &reg, nil
}

// Initialize moves CREATED to ACTIVE (ACTIVE is a no-op) and returns the full
// CMI snapshot so the client can serve reads from memory.
func (m *Manager) Initialize(ctx context.Context, registrationID string) (map[string]string, error) {
	at := m.clock()
	err := m.db.WithContext(ctx).Model(&learning.Registration{}).
		Where("id = ? AND state = ?", registrationID, learning.RegistrationCreated).
		Updates(map[string]interface{}{"state": learning.RegistrationActive, "initialized_at": at}).Error
	if err != nil {
		return nil, apperr.Storage(err, "initialize registration")
	}

	reg, err := m.Lookup(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	if reg.State == learning.RegistrationFinished {
		return nil, ErrTerminated
	}
	return m.store.Snapshot(ctx, registrationID)
}

// GetValue reads one key. A key never written is an empty value, not an error.
func (m *Manager) GetValue(ctx context.Context, registrationID, key string) (string, error) {
	if _, err := m.active(ctx, registrationID); err != nil {
		return "", err
	}
	value, _, err := m.store.Get(ctx, registrationID, key)
	return value, err
}

// SetValue upserts one key.
func (m *Manager) SetValue(ctx context.Context, registrationID, key, value string) error {
	if _, err := m.active(ctx, registrationID); err != nil {
		return err
	}
	return m.store.Set(ctx, registrationID, key, value)
}

// Commit acknowledges prior writes and upserts values as one batch.
func (m *Manager) Commit(ctx context.Context, registrationID string, values map[string]string) error {
	if _, err := m.active(ctx, registrationID); err != nil {
		return err
	}
	return m.flush(ctx, m.db, registrationID, values)
}

// Finish flushes values, moves ACTIVE to FINISHED stamping the completion time,
// and signals completion of the package to the progress tracker once. Finishing
// a FINISHED registration changes nothing, except that a signal which failed
// earlier is retried.
func (m *Manager) Finish(ctx context.Context, registrationID string, values map[string]string) (*learning.Registration, error) {
	reg, err := m.Lookup(ctx, registrationID)
	if err != nil {
		return nil, err
	}

	switch reg.State {
	case learning.RegistrationCreated:
		return nil, ErrNotInitialized
	case learning.RegistrationActive:
		at := m.clock()
		err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := m.flush(ctx, tx, registrationID, values); err != nil {
				return err
			}
			return tx.Model(&learning.Registration{}).
				Where("id = ? AND state = ?", registrationID, learning.RegistrationActive).
				Updates(map[string]interface{}{"state": learning.RegistrationFinished, "completed_at": at}).Error
		})
		if err != nil {
			if apperr.KindOf(err) != "" {
				return nil, err
			}
			return nil, apperr.Storage(err, "finish registration")
		}
		if reg, err = m.Lookup(ctx, registrationID); err != nil {
			return nil, err
		}
		m.logger.Info("registration finished",
			slog.String("registration_id", reg.ID),
			slog.Uint64("user_id", uint64(reg.UserID)),
			slog.Uint64("package_id", uint64(reg.ContentPackageID)),
		)
	}

	if m.completer == nil || reg.PropagatedAt != nil {
		return reg, nil
	}
	return reg, m.propagate(ctx, reg)
}

// propagate credits the finished attempt to the learner's progress and marks
// it done so replays of Finish leave progress alone.
func (m *Manager) propagate(ctx context.Context, reg *learning.Registration) error {
	var until time.Time
	if reg.CompletedAt != nil {
		until = *reg.CompletedAt
	}
	n, err := m.completer.CompleteContent(ctx, reg.UserID, learning.ContentPackageType, reg.ContentPackageID, until)
	if err != nil {
		m.logger.Error("completion propagation failed",
			slog.String("registration_id", reg.ID),
			slog.String("error", err.Error()),
		)
		return err
	}

	at := m.clock()
	if err := m.db.WithContext(ctx).Model(&learning.Registration{}).
		Where("id = ?", reg.ID).
		Update("propagated_at", at).Error; err != nil {
		return apperr.Storage(err, "mark registration propagated")
	}
	reg.PropagatedAt = &at
	if n > 0 {
		m.logger.Info("completion propagated", slog.String("registration_id", reg.ID), slog.Int("progress_records", n))
	}
	return nil
}

func (m *Manager) active(ctx context.Context, registrationID string) (*learning.Registration, error) {
	reg, err := m.Lookup(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	switch reg.State {
	case learning.RegistrationCreated:
		return nil, ErrNotInitialized
	case learning.RegistrationFinished:
		return nil, ErrTerminated
	}
	return reg, nil
}

func (m *Manager) flush(ctx context.Context, db *gorm.DB, registrationID string, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	return m.store.WithTx(db).SetMany(ctx, registrationID, values)
}

// DeleteForPackages removes the registrations (and their CMI entries) of the given packages.
func (m *Manager) DeleteForPackages(ctx context.Context, tx *gorm.DB, packageIDs []uint) error {
	var ids []string
	if err := tx.WithContext(ctx).Model(&learning.Registration{}).
		Where("content_package_id IN ?", packageIDs).
		Pluck("id", &ids).Error; err != nil {
		return apperr.Storage(err, "list registrations")
	}
	if err := m.store.WithTx(tx).DeleteForRegistrations(ctx, ids); err != nil {
		return apperr.Storage(err, "delete cmi entries")
	}
	if err := tx.WithContext(ctx).Where("content_package_id IN ?", packageIDs).Delete(&learning.Registration{}).Error; err != nil {
		return apperr.Storage(err, "delete registrations")
	}
	return nil
}
