// Package cmi is the per-registration key/value table written by bridged content.
// Keys and values are opaque strings; concurrent writes to one key are last-write-wins.
package cmi

import (
	"context"
	"errors"
	"time"

	"coursebridge/apperr"
	"coursebridge/models/learning"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store reads and upserts CMI entries.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// WithTx returns a Store bound to tx.
func (s *Store) WithTx(tx *gorm.DB) *Store {
	return &Store{db: tx}
}

// Get returns the value for key. A key never written yields ("", false, nil).
func (s *Store) Get(ctx context.Context, registrationID, key string) (string, bool, error) {
	var entry learning.CMIEntry
	err := s.db.WithContext(ctx).
		Where("registration_id = ? AND cmi_key = ?", registrationID, key).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, apperr.Storage(err, "read cmi entry")
	}
	return entry.Value, true, nil
}

// Set upserts a single value.
func (s *Store) Set(ctx context.Context, registrationID, key, value string) error {
	return s.SetMany(ctx, registrationID, map[string]string{key: value})
}

// SetMany upserts every pair in values with a single statement.
func (s *Store) SetMany(ctx context.Context, registrationID string, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	now := time.Now().UTC()
	entries := make([]learning.CMIEntry, 0, len(values))
	for k, v := range values {
		if k == "" {
			return apperr.Validation("cmi key must not be empty")
		}
		entries = append(entries, learning.CMIEntry{RegistrationID: registrationID, Key: k, Value: v, UpdatedAt: now})
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "registration_id"}, {Name: "cmi_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entries).Error
	if err != nil {
		return apperr.Storage(err, "write cmi entries")
	}
	return nil
}

// Snapshot returns every key/value stored for the registration.
func (s *Store) Snapshot(ctx context.Context, registrationID string) (map[string]string, error) {
	var entries []learning.CMIEntry
	if err := s.db.WithContext(ctx).Where("registration_id = ?", registrationID).Find(&entries).Error; err != nil {
		return nil, apperr.Storage(err, "read cmi snapshot")
	}
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		out[e.Key] = e.Value
	}
	return out, nil
}

// DeleteForRegistrations removes the entries of the given registrations.
func (s *Store) DeleteForRegistrations(ctx context.Context, registrationIDs []string) error {
	if len(registrationIDs) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Where("registration_id IN ?", registrationIDs).Delete(&learning.CMIEntry{}).Error
}
