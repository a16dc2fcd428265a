// Package schedule creates and removes assignments and enrollments together
// with the progress records that track them.
package schedule

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"coursebridge/apperr"
	"coursebridge/models/learning"
	"coursebridge/services/progress"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ElementInput is one ordered item of a schedule.
type ElementInput struct {
	ContentType string     `json:"content_type" validate:"required,oneof=package module assessment survey learning_path"`
	ContentID   uint       `json:"content_id" validate:"required"`
	AssignOn    *time.Time `json:"assign_on"`
	DueAt       *time.Time `json:"due_at"`
}

// AssignmentInput is an administrator's request to schedule content for learners.
// Without explicit Elements the content itself is the only element.
type AssignmentInput struct {
	OrganizationID uint           `json:"organization_id" validate:"required"`
	CreatedBy      uint           `json:"created_by"`
	ContentType    string         `json:"content_type" validate:"required,oneof=package module assessment survey learning_path"`
	ContentID      uint           `json:"content_id" validate:"required"`
	UserIDs        []uint         `json:"user_ids" validate:"required,min=1,dive,required"`
	GroupIDs       []uint         `json:"group_ids"`
	AssignOn       *time.Time     `json:"assign_on"`
	DueAt          *time.Time     `json:"due_at"`
	EnforceOrder   bool           `json:"enforce_order"`
	Elements       []ElementInput `json:"elements" validate:"dive"`
}

// EnrollmentInput is a learner opting into content.
type EnrollmentInput struct {
	OrganizationID uint           `json:"organization_id" validate:"required"`
	UserID         uint           `json:"user_id" validate:"required"`
	ContentType    string         `json:"content_type" validate:"required,oneof=package module assessment survey learning_path"`
	ContentID      uint           `json:"content_id" validate:"required"`
	DueAt          *time.Time     `json:"due_at"`
	EnforceOrder   bool           `json:"enforce_order"`
	Elements       []ElementInput `json:"elements" validate:"dive"`
}

// AssignmentResult is a created assignment with everything written alongside it.
type AssignmentResult struct {
	Assignment learning.Assignment        `json:"assignment"`
	UserIDs    []uint                     `json:"user_ids"`
	Elements   []learning.ScheduleElement `json:"elements"`
	Progress   []learning.ProgressRecord  `json:"progress"`
}

// EnrollmentResult is a created enrollment and its progress record.
type EnrollmentResult struct {
	Enrollment learning.Enrollment        `json:"enrollment"`
	Elements   []learning.ScheduleElement `json:"elements"`
	Progress   learning.ProgressRecord    `json:"progress"`
}

// Service writes schedules and their progress in single transactions.
type Service struct {
	db      *gorm.DB
	tracker *progress.Tracker
	logger  *slog.Logger
	clock   func() time.Time
}

func NewService(db *gorm.DB, tracker *progress.Tracker, logger *slog.Logger) *Service {
	return &Service{
		db:      db,
		tracker: tracker,
		logger:  logger.With(slog.String("component", "schedule")),
		clock:   func() time.Time { return time.Now().UTC() },
	}
}

// WithTx returns a Service that runs inside tx.
func (s *Service) WithTx(tx *gorm.DB) *Service {
	c := *s
	c.db = tx
	c.tracker = s.tracker.WithTx(tx)
	return &c
}

// WithClock overrides the time source.
func (s *Service) WithClock(clock func() time.Time) *Service {
	c := *s
	c.clock = clock
	return &c
}

// CreateAssignment writes the assignment, its learners, its elements and one
// progress record per learner, or nothing at all.
func (s *Service) CreateAssignment(ctx context.Context, in AssignmentInput) (*AssignmentResult, error) {
	if err := validate.Struct(in); err != nil {
		return nil, apperr.Invalid("assignment", err)
	}
	now := s.clock()
	assignOn := now
	if in.AssignOn != nil {
		assignOn = in.AssignOn.UTC()
	}
	if in.DueAt != nil && in.DueAt.Before(assignOn) {
		return nil, apperr.Validation("assignment invalid: due date is before assign-on date")
	}
	users := dedupe(in.UserIDs)

	var out AssignmentResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkContent(tx, in.OrganizationID, in.ContentType, in.ContentID, in.Elements); err != nil {
			return err
		}

		a := learning.Assignment{
			OrganizationID: in.OrganizationID,
			ContentType:    in.ContentType,
			ContentID:      in.ContentID,
			GroupIDs:       in.GroupIDs,
			AssignOn:       assignOn,
			DueAt:          in.DueAt,
			EnforceOrder:   in.EnforceOrder,
			CreatedBy:      in.CreatedBy,
		}
		if err := tx.Create(&a).Error; err != nil {
			return apperr.Storage(err, "create assignment")
		}

		learners := make([]learning.AssignmentLearner, len(users))
		for i, u := range users {
			learners[i] = learning.AssignmentLearner{AssignmentID: a.ID, UserID: u}
		}
		if err := tx.Create(&learners).Error; err != nil {
			return apperr.Storage(err, "create assignment learners")
		}

		elements := scheduleElements(learning.SourceAssignment, a.ID, in.ContentType, in.ContentID, assignOn, in.DueAt, in.Elements)
		if err := tx.Create(&elements).Error; err != nil {
			return apperr.Storage(err, "create schedule elements")
		}

		src := assignmentSource(&a, elements)
		tracker := s.tracker.WithTx(tx)
		for _, u := range users {
			rec, err := tracker.Create(ctx, src, u)
			if err != nil {
				return err
			}
			out.Progress = append(out.Progress, *rec)
		}

		out.Assignment = a
		out.UserIDs = users
		out.Elements = elements
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("assignment created",
		slog.Uint64("assignment_id", uint64(out.Assignment.ID)),
		slog.String("content_type", in.ContentType),
		slog.Uint64("content_id", uint64(in.ContentID)),
		slog.Int("learners", len(users)),
	)
	return &out, nil
}

// Reconcile creates the progress records an assignment's learners are missing.
// Running it again changes nothing.
func (s *Service) Reconcile(ctx context.Context, organizationID, assignmentID uint) (int, error) {
	db := s.db.WithContext(ctx)
	a, err := s.assignment(db, organizationID, assignmentID)
	if err != nil {
		return 0, err
	}

	var users []uint
	if err := db.Model(&learning.AssignmentLearner{}).Where("assignment_id = ?", a.ID).Order("user_id asc").Pluck("user_id", &users).Error; err != nil {
		return 0, apperr.Storage(err, "list assignment learners")
	}
	var tracked []uint
	if err := db.Model(&learning.ProgressRecord{}).
		Where("source_type = ? AND source_id = ?", learning.SourceAssignment, a.ID).
		Pluck("user_id", &tracked).Error; err != nil {
		return 0, apperr.Storage(err, "list tracked learners")
	}
	elements, err := s.elements(db, learning.SourceAssignment, a.ID)
	if err != nil {
		return 0, err
	}

	has := make(map[uint]bool, len(tracked))
	for _, u := range tracked {
		has[u] = true
	}
	src := assignmentSource(a, elements)
	created := 0
	for _, u := range users {
		if has[u] {
			continue
		}
		if _, err := s.tracker.Create(ctx, src, u); err != nil {
			if errors.Is(err, apperr.ErrConflict) {
				continue
			}
			return created, err
		}
		created++
	}
	if created > 0 {
		s.logger.Info("assignment reconciled", slog.Uint64("assignment_id", uint64(a.ID)), slog.Int("created", created))
	}
	return created, nil
}

// Enroll opts a learner into content. Enrolling twice while the first
// enrollment is still tracked is a conflict; an expired one is re-armed with
// the new schedule.
func (s *Service) Enroll(ctx context.Context, in EnrollmentInput) (*EnrollmentResult, error) {
	if err := validate.Struct(in); err != nil {
		return nil, apperr.Invalid("enrollment", err)
	}
	now := s.clock()

	var out EnrollmentResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkContent(tx, in.OrganizationID, in.ContentType, in.ContentID, in.Elements); err != nil {
			return err
		}

		var e learning.Enrollment
		err := tx.Where("user_id = ? AND content_type = ? AND content_id = ?", in.UserID, in.ContentType, in.ContentID).First(&e).Error
		switch {
		case err == nil:
			// a tracked enrollment rolls all of this back through the conflict below
			e.EnforceOrder = in.EnforceOrder
			e.DueAt = in.DueAt
			if err := tx.Save(&e).Error; err != nil {
				return apperr.Storage(err, "update enrollment")
			}
			if err := tx.Where("source_type = ? AND source_id = ?", learning.SourceEnrollment, e.ID).Delete(&learning.ScheduleElement{}).Error; err != nil {
				return apperr.Storage(err, "reset schedule elements")
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			e = learning.Enrollment{
				OrganizationID: in.OrganizationID,
				UserID:         in.UserID,
				ContentType:    in.ContentType,
				ContentID:      in.ContentID,
				EnforceOrder:   in.EnforceOrder,
				DueAt:          in.DueAt,
			}
			if err := tx.Create(&e).Error; err != nil {
				return apperr.Storage(err, "create enrollment")
			}
		default:
			return apperr.Storage(err, "look up enrollment")
		}

		elements := scheduleElements(learning.SourceEnrollment, e.ID, in.ContentType, in.ContentID, now, in.DueAt, in.Elements)
		if err := tx.Create(&elements).Error; err != nil {
			return apperr.Storage(err, "create schedule elements")
		}

		rec, err := s.tracker.WithTx(tx).Create(ctx, enrollmentSource(&e, elements), in.UserID)
		if err != nil {
			if errors.Is(err, apperr.ErrConflict) {
				return apperr.Conflict("already enrolled in %s %d", in.ContentType, in.ContentID)
			}
			return err
		}
		out = EnrollmentResult{Enrollment: e, Elements: elements, Progress: *rec}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteAssignment removes an assignment and everything that tracks it.
func (s *Service) DeleteAssignment(ctx context.Context, organizationID, assignmentID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.assignment(tx, organizationID, assignmentID); err != nil {
			return err
		}
		return s.WithTx(tx).deleteSources(ctx, learning.SourceAssignment, []uint{assignmentID})
	})
}

// DeleteEnrollment removes an enrollment and its progress. A non-zero userID
// restricts the delete to that learner's own enrollment.
func (s *Service) DeleteEnrollment(ctx context.Context, organizationID, userID, enrollmentID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Where("id = ? AND organization_id = ?", enrollmentID, organizationID)
		if userID != 0 {
			q = q.Where("user_id = ?", userID)
		}
		var e learning.Enrollment
		if err := q.First(&e).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("enrollment %d not found", enrollmentID)
			}
			return apperr.Storage(err, "look up enrollment")
		}
		return s.WithTx(tx).deleteSources(ctx, learning.SourceEnrollment, []uint{e.ID})
	})
}

// DeleteForContent removes every assignment and enrollment of the given
// content along with their progress. Callers wrap it in their own transaction.
func (s *Service) DeleteForContent(ctx context.Context, contentType string, contentIDs []uint) error {
	if len(contentIDs) == 0 {
		return nil
	}
	db := s.db.WithContext(ctx)
	var assignments, enrollments []uint
	if err := db.Model(&learning.Assignment{}).Where("content_type = ? AND content_id IN ?", contentType, contentIDs).Pluck("id", &assignments).Error; err != nil {
		return apperr.Storage(err, "list assignments")
	}
	if err := db.Model(&learning.Enrollment{}).Where("content_type = ? AND content_id IN ?", contentType, contentIDs).Pluck("id", &enrollments).Error; err != nil {
		return apperr.Storage(err, "list enrollments")
	}
	if err := s.deleteSources(ctx, learning.SourceAssignment, assignments); err != nil {
		return err
	}
	return s.deleteSources(ctx, learning.SourceEnrollment, enrollments)
}

func (s *Service) deleteSources(ctx context.Context, sourceType string, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	db := s.db.WithContext(ctx)
	if err := s.tracker.DeleteForSources(ctx, sourceType, ids); err != nil {
		return err
	}
	if err := db.Where("source_type = ? AND source_id IN ?", sourceType, ids).Delete(&learning.ScheduleElement{}).Error; err != nil {
		return apperr.Storage(err, "delete schedule elements")
	}
	switch sourceType {
	case learning.SourceAssignment:
		if err := db.Where("assignment_id IN ?", ids).Delete(&learning.AssignmentLearner{}).Error; err != nil {
			return apperr.Storage(err, "delete assignment learners")
		}
		if err := db.Where("id IN ?", ids).Delete(&learning.Assignment{}).Error; err != nil {
			return apperr.Storage(err, "delete assignments")
		}
	case learning.SourceEnrollment:
		if err := db.Where("id IN ?", ids).Delete(&learning.Enrollment{}).Error; err != nil {
			return apperr.Storage(err, "delete enrollments")
		}
	}
	s.logger.Info("schedules deleted", slog.String("source", sourceType), slog.Int("count", len(ids)))
	return nil
}

func (s *Service) assignment(db *gorm.DB, organizationID, id uint) (*learning.Assignment, error) {
	var a learning.Assignment
	if err := db.Where("id = ? AND organization_id = ?", id, organizationID).First(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("assignment %d not found", id)
		}
		return nil, apperr.Storage(err, "look up assignment")
	}
	return &a, nil
}

func (s *Service) elements(db *gorm.DB, sourceType string, id uint) ([]learning.ScheduleElement, error) {
	var elements []learning.ScheduleElement
	if err := db.Where("source_type = ? AND source_id = ?", sourceType, id).Order("position asc").Find(&elements).Error; err != nil {
		return nil, apperr.Storage(err, "list schedule elements")
	}
	return elements, nil
}

// checkContent makes sure every package the schedule references exists in the
// organization. Other content types are owned elsewhere and taken as given.
func checkContent(db *gorm.DB, organizationID uint, contentType string, contentID uint, elements []ElementInput) error {
	ids := map[uint]bool{}
	if contentType == learning.ContentPackageType {
		ids[contentID] = true
	}
	for _, e := range elements {
		if e.ContentType == learning.ContentPackageType {
			ids[e.ContentID] = true
		}
	}
	for id := range ids {
		var n int64
		if err := db.Model(&learning.ContentPackage{}).Where("id = ? AND organization_id = ?", id, organizationID).Count(&n).Error; err != nil {
			return apperr.Storage(err, "look up content package")
		}
		if n == 0 {
			return apperr.NotFound("content package %d not found", id)
		}
	}
	return nil
}

func scheduleElements(sourceType string, sourceID uint, contentType string, contentID uint, assignOn time.Time, dueAt *time.Time, in []ElementInput) []learning.ScheduleElement {
	if len(in) == 0 {
		in = []ElementInput{{ContentType: contentType, ContentID: contentID}}
	}
	out := make([]learning.ScheduleElement, len(in))
	for i, e := range in {
		el := learning.ScheduleElement{
			SourceType:  sourceType,
			SourceID:    sourceID,
			Position:    i,
			ContentType: e.ContentType,
			ContentID:   e.ContentID,
			AssignOn:    assignOn,
			DueAt:       dueAt,
		}
		if e.AssignOn != nil {
			el.AssignOn = e.AssignOn.UTC()
		}
		if e.DueAt != nil {
			el.DueAt = e.DueAt
		}
		out[i] = el
	}
	return out
}

func assignmentSource(a *learning.Assignment, elements []learning.ScheduleElement) progress.Source {
	return progress.Source{
		Type:           learning.SourceAssignment,
		ID:             a.ID,
		OrganizationID: a.OrganizationID,
		EnforceOrder:   a.EnforceOrder,
		DueAt:          a.DueAt,
		Elements:       elements,
	}
}

func enrollmentSource(e *learning.Enrollment, elements []learning.ScheduleElement) progress.Source {
	return progress.Source{
		Type:           learning.SourceEnrollment,
		ID:             e.ID,
		OrganizationID: e.OrganizationID,
		EnforceOrder:   e.EnforceOrder,
		DueAt:          e.DueAt,
		Elements:       elements,
	}
}

func dedupe(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
