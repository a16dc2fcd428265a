package progress

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"coursebridge/apperr"
	"coursebridge/models/learning"

	"github.com/jinzhu/now"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var openStatuses = []string{
	learning.ProgressAssigned,
	learning.ProgressEnrolled,
	learning.ProgressInProgress,
}

// Source describes the schedule a progress record is created from.
type Source struct {
	Type           string // learning.SourceAssignment or learning.SourceEnrollment
	ID             uint
	OrganizationID uint
	EnforceOrder   bool
	DueAt          *time.Time
	Elements       []learning.ScheduleElement
}

func (s Source) initialStatus() string {
	if s.Type == learning.SourceEnrollment {
		return learning.ProgressEnrolled
	}
	return learning.ProgressAssigned
}

// ElementView is an element with its derived state.
type ElementView struct {
	learning.ProgressElement
	State string `json:"state"`
}

// View is a progress record with derived element states.
type View struct {
	learning.ProgressRecord
	Elements []ElementView `json:"elements"`
}

// ExpiryResult counts what an expiry pass changed.
type ExpiryResult struct {
	Records  int `json:"records"`
	Elements int `json:"elements"`
}

// Tracker enforces the progress state machine.
type Tracker struct {
	db     *gorm.DB
	logger *slog.Logger
	clock  func() time.Time
}

func NewTracker(db *gorm.DB, logger *slog.Logger) *Tracker {
	return &Tracker{
		db:     db,
		logger: logger.With(slog.String("component", "progress")),
		clock:  func() time.Time { return time.Now().UTC() },
	}
}

// WithTx returns a Tracker that runs inside tx.
func (t *Tracker) WithTx(tx *gorm.DB) *Tracker {
	c := *t
	c.db = tx
	return &c
}

// WithClock overrides the time source.
func (t *Tracker) WithClock(clock func() time.Time) *Tracker {
	c := *t
	c.clock = clock
	return &c
}

// Create builds the progress record of userID for src. An existing open or
// completed record is a conflict; an expired one is re-armed in place so the
// (source, learner) pair keeps exactly one row.
func (t *Tracker) Create(ctx context.Context, src Source, userID uint) (*learning.ProgressRecord, error) {
	if len(src.Elements) == 0 {
		return nil, apperr.Validation("%s %d has no elements to track", src.Type, src.ID)
	}

	var out *learning.ProgressRecord
	err := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing learning.ProgressRecord
		err := tx.Where("source_type = ? AND source_id = ? AND user_id = ?", src.Type, src.ID, userID).First(&existing).Error
		switch {
		case err == nil && existing.Status != learning.ProgressExpired:
			return apperr.Conflict("user %d is already %s for %s %d", userID, existing.Status, src.Type, src.ID)
		case err == nil:
			if err := tx.Where("progress_id = ?", existing.ID).Delete(&learning.ProgressElement{}).Error; err != nil {
				return apperr.Storage(err, "reset expired progress")
			}
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return apperr.Storage(err, "look up progress")
		}

		rec := existing
		if rec.ID != 0 {
			rec.CreatedAt = tx.NowFunc()
		}
		rec.SourceType = src.Type
		rec.SourceID = src.ID
		rec.UserID = userID
		rec.OrganizationID = src.OrganizationID
		rec.Status = src.initialStatus()
		rec.Percentage = 0
		rec.EnforceOrder = src.EnforceOrder
		rec.DueAt = src.DueAt
		rec.StartedAt = nil
		rec.CompletedAt = nil
		rec.LastActivityAt = nil
		rec.Elements = nil

		if err := tx.Omit(clause.Associations).Save(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.Conflict("user %d is already tracked for %s %d", userID, src.Type, src.ID)
			}
			return apperr.Storage(err, "save progress")
		}

		elements := buildElements(rec.ID, src.Elements)
		if err := tx.Create(&elements).Error; err != nil {
			return apperr.Storage(err, "save progress elements")
		}
		rec.Elements = elements
		out = &rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	t.logger.Info("progress created",
		slog.Uint64("progress_id", uint64(out.ID)),
		slog.String("source", src.Type),
		slog.Uint64("source_id", uint64(src.ID)),
		slog.Uint64("user_id", uint64(userID)),
	)
	return out, nil
}

func buildElements(progressID uint, schedule []learning.ScheduleElement) []learning.ProgressElement {
	sorted := append([]learning.ScheduleElement(nil), schedule...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Position < sorted[j].Position })

	elements := make([]learning.ProgressElement, len(sorted))
	for i, s := range sorted {
		elements[i] = learning.ProgressElement{
			ProgressID:  progressID,
			Position:    s.Position,
			ContentType: s.ContentType,
			ContentID:   s.ContentID,
			AssignOn:    s.AssignOn,
			DueAt:       s.DueAt,
		}
	}
	return elements
}

// Get returns the record with derived element states.
func (t *Tracker) Get(ctx context.Context, progressID uint) (*View, error) {
	rec, err := t.load(t.db.WithContext(ctx), progressID)
	if err != nil {
		return nil, err
	}
	v := t.view(rec)
	return &v, nil
}

// ListForUser returns every record of userID, newest first.
func (t *Tracker) ListForUser(ctx context.Context, userID uint) ([]View, error) {
	var recs []learning.ProgressRecord
	err := t.db.WithContext(ctx).
		Preload("Elements", func(db *gorm.DB) *gorm.DB { return db.Order("position asc") }).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&recs).Error
	if err != nil {
		return nil, apperr.Storage(err, "list progress")
	}
	views := make([]View, len(recs))
	for i := range recs {
		views[i] = t.view(&recs[i])
	}
	return views, nil
}

// StartElement records first activity on the element at position.
func (t *Tracker) StartElement(ctx context.Context, progressID, userID uint, position int) (*View, error) {
	return t.mutate(ctx, progressID, userID, func(rec *learning.ProgressRecord, at time.Time) ([]int, error) {
		idx, err := t.activeElement(rec, position, at)
		if err != nil {
			return nil, err
		}
		el := &rec.Elements[idx]
		if el.Status == learning.ElementCompleted || el.Status == learning.ElementInProgress {
			return nil, nil
		}
		el.Status = learning.ElementInProgress
		el.StartedAt = &at
		touch(rec, at)
		return []int{idx}, nil
	})
}

// CompleteElement marks the element at position completed and recomputes the record.
func (t *Tracker) CompleteElement(ctx context.Context, progressID, userID uint, position int) (*View, error) {
	return t.mutate(ctx, progressID, userID, func(rec *learning.ProgressRecord, at time.Time) ([]int, error) {
		idx, err := t.activeElement(rec, position, at)
		if err != nil {
			return nil, err
		}
		if !complete(rec, idx, at) {
			return nil, nil
		}
		return []int{idx}, nil
	})
}

// CompleteContent completes the element referencing (contentType, contentID)
// in every open record of userID tracked at or before until (zero means any).
// Locked matches are skipped. It returns the number of records changed.
func (t *Tracker) CompleteContent(ctx context.Context, userID uint, contentType string, contentID uint, until time.Time) (int, error) {
	var progressIDs []uint
	err := t.db.WithContext(ctx).Model(&learning.ProgressElement{}).
		Joins("JOIN progress_records ON progress_records.id = progress_elements.progress_id").
		Where("progress_records.user_id = ? AND progress_records.status IN ?", userID, openStatuses).
		Where("progress_elements.content_type = ? AND progress_elements.content_id = ?", contentType, contentID).
		Pluck("progress_elements.progress_id", &progressIDs).Error
	if err != nil {
		return 0, apperr.Storage(err, "find progress for content")
	}

	changed := 0
	seen := make(map[uint]bool, len(progressIDs))
	for _, id := range progressIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		updated := false
		_, err := t.mutate(ctx, id, userID, func(rec *learning.ProgressRecord, at time.Time) ([]int, error) {
			if !until.IsZero() && rec.CreatedAt.After(until) {
				return nil, nil
			}
			states := Sequence(rec.Elements, rec.EnforceOrder, at)
			var touched []int
			for i := range rec.Elements {
				el := rec.Elements[i]
				if el.ContentType != contentType || el.ContentID != contentID {
					continue
				}
				if states[i] == learning.ElementLocked || states[i] == learning.ElementExpired {
					t.logger.Warn("completion signal for unavailable element ignored",
						slog.Uint64("progress_id", uint64(rec.ID)),
						slog.Int("position", el.Position),
						slog.String("state", states[i]),
					)
					continue
				}
				if complete(rec, i, at) {
					touched = append(touched, i)
					// later matches may have just unlocked
					states = Sequence(rec.Elements, rec.EnforceOrder, at)
				}
			}
			updated = len(touched) > 0
			return touched, nil
		})
		if err != nil {
			if apperr.KindOf(err) == apperr.KindState {
				continue
			}
			return changed, err
		}
		if updated {
			changed++
		}
	}
	return changed, nil
}

// ExpireOverdue expires open elements and records whose due date has passed.
// A due date covers the whole due day.
func (t *Tracker) ExpireOverdue(ctx context.Context, at time.Time) (ExpiryResult, error) {
	var res ExpiryResult
	withDueElements := t.db.Model(&learning.ProgressElement{}).Select("progress_id").Where("due_at IS NOT NULL")

	var recs []learning.ProgressRecord
	err := t.db.WithContext(ctx).
		Preload("Elements", func(db *gorm.DB) *gorm.DB { return db.Order("position asc") }).
		Where("status IN ?", openStatuses).
		Where("(due_at IS NOT NULL OR id IN (?))", withDueElements).
		FindInBatches(&recs, 200, func(batch *gorm.DB, _ int) error {
			for i := range recs {
				recExpired, elements, err := t.expireOne(ctx, &recs[i], at)
				if err != nil {
					return err
				}
				res.Elements += elements
				if recExpired {
					res.Records++
				}
			}
			return nil
		}).Error
	if err != nil {
		return res, apperr.Storage(err, "expire overdue progress")
	}
	if res.Records > 0 || res.Elements > 0 {
		t.logger.Info("expired overdue progress", slog.Int("records", res.Records), slog.Int("elements", res.Elements))
	}
	return res, nil
}

func (t *Tracker) expireOne(ctx context.Context, rec *learning.ProgressRecord, at time.Time) (bool, int, error) {
	recordDue := overdue(rec.DueAt, at)
	var touched []int
	for i := range rec.Elements {
		el := &rec.Elements[i]
		if el.Status == learning.ElementCompleted || el.Status == learning.ElementExpired {
			continue
		}
		if recordDue || overdue(el.DueAt, at) {
			el.Status = learning.ElementExpired
			touched = append(touched, i)
		}
	}
	if !recordDue && stalled(rec) {
		recordDue = true
		for i := range rec.Elements {
			if el := &rec.Elements[i]; el.Status != learning.ElementCompleted && el.Status != learning.ElementExpired {
				el.Status = learning.ElementExpired
				touched = append(touched, i)
			}
		}
	}
	if recordDue {
		rec.Status = learning.ProgressExpired
	}
	if len(touched) == 0 && !recordDue {
		return false, 0, nil
	}
	err := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return persist(tx, rec, touched)
	})
	return recordDue, len(touched), err
}

// stalled reports whether an expired element leaves nothing the learner can
// still complete. With order enforced, everything after an expired element
// stays locked.
func stalled(rec *learning.ProgressRecord) bool {
	expired := false
	for _, el := range rec.Elements {
		switch el.Status {
		case learning.ElementExpired:
			expired = true
		case learning.ElementCompleted:
		default:
			if !expired || !rec.EnforceOrder {
				return false
			}
		}
	}
	return expired
}

func overdue(due *time.Time, at time.Time) bool {
	return due != nil && at.After(now.With(*due).EndOfDay())
}

// DeleteForSources removes the records (and elements) of the given schedules.
func (t *Tracker) DeleteForSources(ctx context.Context, sourceType string, sourceIDs []uint) error {
	if len(sourceIDs) == 0 {
		return nil
	}
	db := t.db.WithContext(ctx)
	recIDs := db.Model(&learning.ProgressRecord{}).Select("id").Where("source_type = ? AND source_id IN ?", sourceType, sourceIDs)
	if err := db.Where("progress_id IN (?)", recIDs).Delete(&learning.ProgressElement{}).Error; err != nil {
		return apperr.Storage(err, "delete progress elements")
	}
	if err := db.Where("source_type = ? AND source_id IN ?", sourceType, sourceIDs).Delete(&learning.ProgressRecord{}).Error; err != nil {
		return apperr.Storage(err, "delete progress records")
	}
	return nil
}

type mutation func(rec *learning.ProgressRecord, at time.Time) ([]int, error)

// mutate loads a record, applies fn and persists the touched elements and the
// record in one transaction.
func (t *Tracker) mutate(ctx context.Context, progressID, userID uint, fn mutation) (*View, error) {
	var out *View
	err := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, err := t.load(tx, progressID)
		if err != nil {
			return err
		}
		if rec.UserID != userID {
			return apperr.NotFound("progress %d not found", progressID)
		}
		if rec.IsTerminal() {
			return apperr.State("progress %d is %s", progressID, rec.Status)
		}
		touched, err := fn(rec, t.clock())
		if err != nil {
			return err
		}
		if len(touched) > 0 {
			if err := persist(tx, rec, touched); err != nil {
				return err
			}
		}
		v := t.view(rec)
		out = &v
		return nil
	})
	return out, err
}

func (t *Tracker) load(db *gorm.DB, progressID uint) (*learning.ProgressRecord, error) {
	var rec learning.ProgressRecord
	err := db.Preload("Elements", func(db *gorm.DB) *gorm.DB { return db.Order("position asc") }).
		First(&rec, progressID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("progress %d not found", progressID)
	}
	if err != nil {
		return nil, apperr.Storage(err, "load progress")
	}
	return &rec, nil
}

// activeElement returns the index of the element at position when it accepts activity.
func (t *Tracker) activeElement(rec *learning.ProgressRecord, position int, at time.Time) (int, error) {
	states := Sequence(rec.Elements, rec.EnforceOrder, at)
	for i, el := range rec.Elements {
		if el.Position != position {
			continue
		}
		switch states[i] {
		case learning.ElementLocked:
			return 0, apperr.State("element %d is locked", position)
		case learning.ElementExpired:
			return 0, apperr.State("element %d has expired", position)
		}
		return i, nil
	}
	return 0, apperr.NotFound("element %d not found in progress %d", position, rec.ID)
}

func (t *Tracker) view(rec *learning.ProgressRecord) View {
	states := Sequence(rec.Elements, rec.EnforceOrder, t.clock())
	v := View{ProgressRecord: *rec, Elements: make([]ElementView, len(rec.Elements))}
	for i, el := range rec.Elements {
		v.Elements[i] = ElementView{ProgressElement: el, State: states[i]}
	}
	v.ProgressRecord.Elements = nil
	return v
}

// complete marks element idx completed; false when it already was.
func complete(rec *learning.ProgressRecord, idx int, at time.Time) bool {
	el := &rec.Elements[idx]
	if el.Status == learning.ElementCompleted {
		return false
	}
	if el.StartedAt == nil {
		el.StartedAt = &at
	}
	el.Status = learning.ElementCompleted
	el.CompletedAt = &at
	touch(rec, at)

	rec.Percentage = Percentage(rec.Elements)
	if rec.Percentage >= 100 {
		rec.Status = learning.ProgressCompleted
		rec.CompletedAt = &at
	}
	return true
}

// touch records learner activity: first activity moves the record to in_progress.
func touch(rec *learning.ProgressRecord, at time.Time) {
	if rec.StartedAt == nil {
		rec.StartedAt = &at
	}
	rec.LastActivityAt = &at
	if rec.Status == learning.ProgressAssigned || rec.Status == learning.ProgressEnrolled {
		rec.Status = learning.ProgressInProgress
	}
}

func persist(tx *gorm.DB, rec *learning.ProgressRecord, touched []int) error {
	for _, i := range touched {
		if err := tx.Save(&rec.Elements[i]).Error; err != nil {
			return apperr.Storage(err, "save progress element")
		}
	}
	if err := tx.Omit(clause.Associations).Save(rec).Error; err != nil {
		return apperr.Storage(err, "save progress")
	}
	return nil
}
