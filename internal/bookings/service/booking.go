package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	bookingserrors "turfbook/internal/bookings/errors"
	"turfbook/internal/bookings/repository"
	"turfbook/internal/bookings/validator"
	turfserrors "turfbook/internal/turfs/errors"
	"turfbook/pkg/config"
	apperrors "turfbook/pkg/errors"
	"turfbook/pkg/events"
	"turfbook/pkg/model"
	"turfbook/pkg/sanitizer"
)

// TurfGetter resolves the turf a booking targets. The turf repository
// satisfies it directly.
type TurfGetter interface {
	FindByID(ctx context.Context, id string) (*model.Turf, error)
}

type BookingService interface {
	Create(ctx context.Context, customerID string, req *model.BookingRequest) (*model.Booking, error)
	Cancel(ctx context.Context, id, customerID string) (*model.Booking, error)
	ListForCustomer(ctx context.Context, customerID string, limit int, offset int64) ([]*model.Booking, int64, error)
	ListForTurf(ctx context.Context, turfID, ownerID string, limit int, offset int64) ([]*model.Booking, int64, error)
}

type bookingService struct {
	repo      repository.BookingRepository
	lockRepo  repository.BookingLockRepository
	turfs     TurfGetter
	validator *validator.BookingValidator
	publisher events.Publisher
	cfg       *config.Config
}

func NewBookingService(
	repo repository.BookingRepository,
	lockRepo repository.BookingLockRepository,
	turfs TurfGetter,
	validator *validator.BookingValidator,
	publisher events.Publisher,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		repo:      repo,
		lockRepo:  lockRepo,
		turfs:     turfs,
		validator: validator,
		publisher: publisher,
		cfg:       cfg,
	}
}

func (s *bookingService) Create(ctx context.Context, customerID string, req *model.BookingRequest) (*model.Booking, error) {
	start := req.StartTime.UTC()
	end := req.EndTime.UTC()

	if start.IsZero() || end.IsZero() {
		return nil, apperrors.InvalidInput("Start and end time are required")
	}
	if !end.After(start) {
		return nil, apperrors.InvalidInput("End time must be after start time")
	}

	// The advisory lock serializes attempts per turf; the transaction makes the
	// overlap check and the insert a single unit underneath it. Turf deletion
	// takes the same lock, so the turf must be resolved only after the lock is
	// held or a delete committing in between would go unseen.
	lockID, err := s.acquireTurfLock(ctx, req.TurfID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if releaseErr := s.releaseTurfLock(ctx, lockID); releaseErr != nil {
			s.cfg.Log.Warn("Failed to release booking lock", "lock_id", lockID, "error", releaseErr)
		}
	}()

	turf, err := s.turfs.FindByID(ctx, req.TurfID)
	if err != nil {
		if errors.Is(err, turfserrors.ErrNotFound) || errors.Is(err, turfserrors.ErrInvalidID) {
			return nil, apperrors.NotFound("Turf")
		}
		s.cfg.Log.Error("Failed to resolve turf for booking", "turf_id", req.TurfID, "error", err)
		return nil, apperrors.Internal("Failed to resolve turf", err)
	}
	if !turf.Available {
		return nil, apperrors.TurfUnavailable()
	}

	// Cost is fixed now, from the price at this moment. Later price changes
	// never touch an existing booking.
	booking := &model.Booking{
		TurfID:     turf.ID,
		CustomerID: customerID,
		StartTime:  start,
		EndTime:    end,
		Status:     model.StatusConfirmed,
		TotalCost:  slotCost(turf.PricePerHour, start, end),
		Note:       sanitizer.SanitizeFreeText(req.Note),
	}

	if err := s.validator.Validate(booking); err != nil {
		s.cfg.Log.Warn("Booking validation failed", "error", err)
		return nil, apperrors.Validation("Booking validation failed", map[string]any{"error": err.Error()})
	}

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		overlapping, err := s.repo.FindConfirmedOverlapping(sessCtx, booking.TurfID, booking.StartTime, booking.EndTime)
		if err != nil {
			return apperrors.Internal("Failed to check existing bookings", err)
		}
		if len(overlapping) > 0 {
			return apperrors.SlotUnavailable()
		}

		if err := s.repo.Create(sessCtx, booking); err != nil {
			return apperrors.Internal("Failed to create booking", err)
		}
		return nil
	})
	if err != nil {
		if !apperrors.HasCode(err, apperrors.CodeSlotUnavailable) {
			s.cfg.Log.Error("Failed to create booking", "turf_id", booking.TurfID, "error", err)
		}
		return nil, err
	}

	s.cfg.Log.Info("Booking created",
		"id", booking.ID,
		"turf_id", booking.TurfID,
		"customer_id", booking.CustomerID,
		"start_time", booking.StartTime,
		"end_time", booking.EndTime,
		"total_cost", booking.TotalCost,
	)
	s.publish(ctx, events.TypeBookingConfirmed, booking)
	return booking, nil
}

func (s *bookingService) Cancel(ctx context.Context, id, customerID string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.NotFound("Booking")
	}

	var booking *model.Booking
	err := s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		found, err := s.repo.FindByIDForCustomer(sessCtx, id, customerID)
		if err != nil {
			if errors.Is(err, bookingserrors.ErrNotFound) || errors.Is(err, bookingserrors.ErrInvalidID) {
				return apperrors.NotFound("Booking")
			}
			return apperrors.Internal("Failed to retrieve booking", err)
		}
		if found.Status == model.StatusCancelled {
			return apperrors.AlreadyCancelled()
		}

		if err := s.repo.UpdateStatus(sessCtx, found.ID, model.StatusCancelled); err != nil {
			return apperrors.Internal("Failed to cancel booking", err)
		}

		found.Status = model.StatusCancelled
		booking = found
		return nil
	})
	if err != nil {
		if !apperrors.IsAppError(err) {
			s.cfg.Log.Error("Failed to cancel booking", "id", id, "error", err)
			return nil, apperrors.Internal("Failed to cancel booking", err)
		}
		return nil, err
	}

	s.cfg.Log.Info("Booking cancelled", "id", booking.ID, "turf_id", booking.TurfID)
	s.publish(ctx, events.TypeBookingCancelled, booking)
	return booking, nil
}

func (s *bookingService) ListForCustomer(ctx context.Context, customerID string, limit int, offset int64) ([]*model.Booking, int64, error) {
	if customerID == "" {
		return nil, 0, apperrors.InvalidInput("Customer ID cannot be empty")
	}
	return s.list(ctx,
		func(ctx context.Context) (int64, error) { return s.repo.CountByCustomer(ctx, customerID) },
		func(ctx context.Context) ([]*model.Booking, error) {
			return s.repo.FindByCustomer(ctx, customerID, limit, offset)
		},
	)
}

func (s *bookingService) ListForTurf(ctx context.Context, turfID, ownerID string, limit int, offset int64) ([]*model.Booking, int64, error) {
	turf, err := s.turfs.FindByID(ctx, turfID)
	if err != nil {
		if errors.Is(err, turfserrors.ErrNotFound) || errors.Is(err, turfserrors.ErrInvalidID) {
			return nil, 0, apperrors.NotFound("Turf")
		}
		return nil, 0, apperrors.Internal("Failed to resolve turf", err)
	}
	// A foreign turf answers exactly like a missing one.
	if turf.OwnerID != ownerID {
		return nil, 0, apperrors.NotFound("Turf")
	}

	return s.list(ctx,
		func(ctx context.Context) (int64, error) { return s.repo.CountByTurf(ctx, turfID) },
		func(ctx context.Context) ([]*model.Booking, error) {
			return s.repo.FindByTurf(ctx, turfID, limit, offset)
		},
	)
}

func (s *bookingService) list(
	ctx context.Context,
	count func(context.Context) (int64, error),
	find func(context.Context) ([]*model.Booking, error),
) ([]*model.Booking, int64, error) {

	var total int64
	var bookings []*model.Booking
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		total, errCount = count(ctx)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count bookings", "error", errCount)
			errCount = apperrors.Internal("Failed to count bookings", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		bookings, errFind = find(ctx)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list bookings", "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve bookings", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return bookings, total, nil
}

// slotCost prices a half-open interval at the hourly rate, fractional hours
// included, rounded to cents.
func slotCost(pricePerHour float64, start, end time.Time) float64 {
	hours := end.Sub(start).Hours()
	return math.Round(pricePerHour*hours*100) / 100
}

// acquireTurfLock keys the advisory lock by turf id alone, so concurrent
// attempts on one turf serialize while distinct turfs never contend.
func (s *bookingService) acquireTurfLock(ctx context.Context, turfID string) (string, error) {
	lockID := model.TurfLockID(turfID)

	lock := &model.BookingLock{
		ID:        lockID,
		ExpiresAt: time.Now().UTC().Add(s.cfg.BookingLockTTL),
	}

	_, err := s.lockRepo.Create(ctx, lock)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", apperrors.SlotUnavailable()
		}
		return "", apperrors.Internal("Failed to acquire booking lock", err)
	}

	return lockID, nil
}

func (s *bookingService) releaseTurfLock(ctx context.Context, lockID string) error {
	return s.lockRepo.Delete(ctx, lockID)
}

func (s *bookingService) publish(ctx context.Context, eventType string, booking *model.Booking) {
	if err := s.publisher.Publish(ctx, events.NewBookingEvent(eventType, booking)); err != nil {
		s.cfg.Log.Warn("Failed to publish booking event",
			"type", eventType,
			"booking_id", booking.ID,
			"error", err,
		)
	}
}
