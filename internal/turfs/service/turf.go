package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	turfserrors "turfbook/internal/turfs/errors"
	"turfbook/internal/turfs/repository"
	"turfbook/internal/turfs/validator"
	"turfbook/pkg/config"
	apperrors "turfbook/pkg/errors"
	"turfbook/pkg/model"
	"turfbook/pkg/sanitizer"
)

// BookingCounter reports how many confirmed bookings a turf holds. It guards
// deletion: a turf with confirmed bookings must not disappear under them.
type BookingCounter interface {
	CountConfirmedByTurf(ctx context.Context, turfID string) (int64, error)
}

// TurfLocker takes the per-turf advisory lock booking creation takes. The
// booking lock repository satisfies it directly. Deletion must hold the lock
// while it counts confirmed bookings, otherwise a booking insert committing
// in another session never conflicts with this transaction's snapshot and
// the count reads stale.
type TurfLocker interface {
	Create(ctx context.Context, lock *model.BookingLock) (*model.BookingLock, error)
	Delete(ctx context.Context, lockID string) error
}

type TurfService interface {
	Create(ctx context.Context, ownerID string, turf *model.Turf) error
	ListAvailable(ctx context.Context, limit int, offset int64) ([]*model.Turf, int64, error)
	ListByOwner(ctx context.Context, ownerID string, limit int, offset int64) ([]*model.Turf, int64, error)
	Update(ctx context.Context, id, ownerID string, updates *model.TurfUpdate) error
	Delete(ctx context.Context, id, ownerID string) error
}

type turfService struct {
	repo      repository.TurfRepository
	bookings  BookingCounter
	locks     TurfLocker
	validator *validator.TurfValidator
	cfg       *config.Config
}

func NewTurfService(
	repo repository.TurfRepository,
	bookings BookingCounter,
	locks TurfLocker,
	validator *validator.TurfValidator,
	cfg *config.Config,
) TurfService {
	return &turfService{
		repo:      repo,
		bookings:  bookings,
		locks:     locks,
		validator: validator,
		cfg:       cfg,
	}
}

func (s *turfService) Create(ctx context.Context, ownerID string, turf *model.Turf) error {
	turf.ID = ""
	turf.OwnerID = ownerID
	// New turfs start available; owners toggle visibility via update.
	turf.Available = true
	s.sanitize(turf)

	if err := s.validator.Validate(turf); err != nil {
		s.cfg.Log.Warn("Turf validation failed", "error", err)
		return apperrors.Validation("Turf validation failed", map[string]any{"error": err.Error()})
	}

	if err := s.repo.Create(ctx, turf); err != nil {
		s.cfg.Log.Error("Failed to create turf", "error", err)
		return apperrors.Internal("Failed to create turf", err)
	}

	s.cfg.Log.Info("Turf created",
		"id", turf.ID,
		"owner_id", turf.OwnerID,
		"name", turf.Name,
	)
	return nil
}

func (s *turfService) ListAvailable(ctx context.Context, limit int, offset int64) ([]*model.Turf, int64, error) {
	return s.list(ctx,
		func(ctx context.Context) (int64, error) { return s.repo.CountAvailable(ctx) },
		func(ctx context.Context) ([]*model.Turf, error) { return s.repo.FindAvailable(ctx, limit, offset) },
	)
}

func (s *turfService) ListByOwner(ctx context.Context, ownerID string, limit int, offset int64) ([]*model.Turf, int64, error) {
	if ownerID == "" {
		return nil, 0, apperrors.InvalidInput("Owner ID cannot be empty")
	}
	return s.list(ctx,
		func(ctx context.Context) (int64, error) { return s.repo.CountByOwner(ctx, ownerID) },
		func(ctx context.Context) ([]*model.Turf, error) { return s.repo.FindByOwner(ctx, ownerID, limit, offset) },
	)
}

func (s *turfService) list(
	ctx context.Context,
	count func(context.Context) (int64, error),
	find func(context.Context) ([]*model.Turf, error),
) ([]*model.Turf, int64, error) {

	var total int64
	var turfs []*model.Turf
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		total, errCount = count(ctx)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count turfs", "error", errCount)
			errCount = apperrors.Internal("Failed to count turfs", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		turfs, errFind = find(ctx)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list turfs", "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve turfs", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return turfs, total, nil
}

func (s *turfService) Update(ctx context.Context, id, ownerID string, updates *model.TurfUpdate) error {
	if id == "" {
		return apperrors.InvalidInput("Turf ID cannot be empty")
	}
	if updates.Empty() {
		return apperrors.InvalidInput("No fields to update")
	}

	s.sanitizeUpdate(updates)
	if err := s.validator.ValidateUpdate(updates); err != nil {
		s.cfg.Log.Warn("Turf update validation failed", "id", id, "error", err)
		return apperrors.Validation("Invalid update input", map[string]any{"error": err.Error()})
	}

	if err := s.repo.UpdateOwned(ctx, id, ownerID, updates); err != nil {
		if isNotFound(err) {
			return apperrors.NotFound("Turf")
		}
		s.cfg.Log.Error("Failed to update turf", "id", id, "error", err)
		return apperrors.Internal("Failed to update turf", err)
	}

	s.cfg.Log.Info("Turf updated", "id", id, "owner_id", ownerID)
	return nil
}

func (s *turfService) Delete(ctx context.Context, id, ownerID string) error {
	if id == "" {
		return apperrors.InvalidInput("Turf ID cannot be empty")
	}

	// Ownership is settled before the lock so an absent or not-owned turf
	// reports NotFound without leaking whether booking activity exists.
	turf, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return apperrors.NotFound("Turf")
		}
		s.cfg.Log.Error("Failed to resolve turf", "id", id, "error", err)
		return apperrors.Internal("Failed to delete turf", err)
	}
	if turf.OwnerID != ownerID {
		return apperrors.NotFound("Turf")
	}

	lockID, err := s.acquireTurfLock(ctx, id)
	if err != nil {
		return err
	}
	defer func() {
		if releaseErr := s.locks.Delete(ctx, lockID); releaseErr != nil {
			s.cfg.Log.Warn("Failed to release turf lock", "lock_id", lockID, "error", releaseErr)
		}
	}()

	// A confirmed booking found after the delete aborts the transaction and
	// the delete rolls back.
	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.repo.DeleteOwned(sessCtx, id, ownerID); err != nil {
			if isNotFound(err) {
				return apperrors.NotFound("Turf")
			}
			return apperrors.Internal("Failed to delete turf", err)
		}

		confirmed, err := s.bookings.CountConfirmedByTurf(sessCtx, id)
		if err != nil {
			return apperrors.Internal("Failed to check bookings for turf", err)
		}
		if confirmed > 0 {
			return apperrors.HasActiveBookings()
		}

		return nil
	})
	if err != nil {
		if !apperrors.IsAppError(err) {
			s.cfg.Log.Error("Failed to delete turf", "id", id, "error", err)
			return apperrors.Internal("Failed to delete turf", err)
		}
		return err
	}

	s.cfg.Log.Info("Turf deleted", "id", id, "owner_id", ownerID)
	return nil
}

// acquireTurfLock contends with booking attempts under the shared per-turf
// key. A held lock means a booking attempt is in flight, so the delete backs
// off rather than racing its insert.
func (s *turfService) acquireTurfLock(ctx context.Context, turfID string) (string, error) {
	lockID := model.TurfLockID(turfID)

	lock := &model.BookingLock{
		ID:        lockID,
		ExpiresAt: time.Now().UTC().Add(s.cfg.BookingLockTTL),
	}

	if _, err := s.locks.Create(ctx, lock); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", apperrors.Conflict("A booking attempt on this turf is in progress")
		}
		return "", apperrors.Internal("Failed to acquire turf lock", err)
	}

	return lockID, nil
}

func (s *turfService) sanitize(turf *model.Turf) {
	turf.Name = sanitizer.SanitizeLabel(turf.Name)
	turf.Location = sanitizer.SanitizeLabel(turf.Location)
	turf.Description = sanitizer.SanitizeFreeText(turf.Description)
	for i, a := range turf.Amenities {
		turf.Amenities[i] = sanitizer.SanitizeLabel(a)
	}
}

func (s *turfService) sanitizeUpdate(updates *model.TurfUpdate) {
	if updates.Name != nil {
		clean := sanitizer.SanitizeLabel(*updates.Name)
		updates.Name = &clean
	}
	if updates.Location != nil {
		clean := sanitizer.SanitizeLabel(*updates.Location)
		updates.Location = &clean
	}
	if updates.Description != nil {
		clean := sanitizer.SanitizeFreeText(*updates.Description)
		updates.Description = &clean
	}
	if updates.Amenities != nil {
		cleaned := make([]string, len(*updates.Amenities))
		for i, a := range *updates.Amenities {
			cleaned[i] = sanitizer.SanitizeLabel(a)
		}
		updates.Amenities = &cleaned
	}
}

// isNotFound folds the malformed-id case into NotFound so probing with invalid
// ids learns nothing that probing with unknown ids would not.
func isNotFound(err error) bool {
	return errors.Is(err, turfserrors.ErrNotFound) || errors.Is(err, turfserrors.ErrInvalidID)
}
