package service

import (
	"context"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	turfserrors "turfbook/internal/turfs/errors"
	"turfbook/internal/turfs/validator"
	"turfbook/pkg/config"
	mongotx "turfbook/pkg/db/mongo"
	apperrors "turfbook/pkg/errors"
	"turfbook/pkg/logger"
	"turfbook/pkg/model"
)

// ────────────────────────────────────────────────
// Mock repository for testing
// ────────────────────────────────────────────────

type mockTurfRepository struct {
	turf            *model.Turf
	createFunc      func(ctx context.Context, turf *model.Turf) error
	updateOwnedFunc func(ctx context.Context, id, ownerID string, updates *model.TurfUpdate) error
	deleteOwnedFunc func(ctx context.Context, id, ownerID string) error
	deleted         []string
}

func (m *mockTurfRepository) Create(ctx context.Context, turf *model.Turf) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, turf)
	}
	turf.ID = "68a000000000000000000010"
	return nil
}

func (m *mockTurfRepository) FindByID(ctx context.Context, id string) (*model.Turf, error) {
	if m.turf != nil && m.turf.ID == id {
		copied := *m.turf
		return &copied, nil
	}
	return nil, turfserrors.ErrNotFound
}

func (m *mockTurfRepository) FindAvailable(ctx context.Context, limit int, offset int64) ([]*model.Turf, error) {
	return []*model.Turf{}, nil
}

func (m *mockTurfRepository) CountAvailable(ctx context.Context) (int64, error) {
	return 0, nil
}

func (m *mockTurfRepository) FindByOwner(ctx context.Context, ownerID string, limit int, offset int64) ([]*model.Turf, error) {
	return []*model.Turf{}, nil
}

func (m *mockTurfRepository) CountByOwner(ctx context.Context, ownerID string) (int64, error) {
	return 0, nil
}

func (m *mockTurfRepository) UpdateOwned(ctx context.Context, id, ownerID string, updates *model.TurfUpdate) error {
	if m.updateOwnedFunc != nil {
		return m.updateOwnedFunc(ctx, id, ownerID, updates)
	}
	return nil
}

func (m *mockTurfRepository) DeleteOwned(ctx context.Context, id, ownerID string) error {
	if m.deleteOwnedFunc != nil {
		return m.deleteOwnedFunc(ctx, id, ownerID)
	}
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockTurfRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(nil)
}

type mockBookingCounter struct {
	confirmed int64
}

func (m *mockBookingCounter) CountConfirmedByTurf(ctx context.Context, turfID string) (int64, error) {
	return m.confirmed, nil
}

// mockTurfLocker enforces the insert-if-absent semantics the unique index on
// the lock collection provides, including the duplicate key error class.
type mockTurfLocker struct {
	held      map[string]struct{}
	acquired  []string
	released  []string
	onAcquire func()
}

func newMockTurfLocker() *mockTurfLocker {
	return &mockTurfLocker{held: make(map[string]struct{})}
}

func duplicateKeyError() error {
	return mongo.WriteException{
		WriteErrors: []mongo.WriteError{{Code: 11000}},
	}
}

func (m *mockTurfLocker) Create(ctx context.Context, lock *model.BookingLock) (*model.BookingLock, error) {
	if _, taken := m.held[lock.ID]; taken {
		return nil, duplicateKeyError()
	}
	m.held[lock.ID] = struct{}{}
	m.acquired = append(m.acquired, lock.ID)
	if m.onAcquire != nil {
		m.onAcquire()
	}
	return lock, nil
}

func (m *mockTurfLocker) Delete(ctx context.Context, lockID string) error {
	delete(m.held, lockID)
	m.released = append(m.released, lockID)
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		Log: logger.New(logger.Config{
			Level:   "error",
			Format:  logger.JSON,
			Service: "test",
		}),
		ReadTimeout:    5 * time.Second,
		WriteTimeout:   5 * time.Second,
		BookingLockTTL: 10 * time.Second,
	}
}

func newTestService(repo *mockTurfRepository, counter *mockBookingCounter) TurfService {
	return newTestServiceLocked(repo, counter, newMockTurfLocker())
}

func newTestServiceLocked(repo *mockTurfRepository, counter *mockBookingCounter, locks *mockTurfLocker) TurfService {
	if counter == nil {
		counter = &mockBookingCounter{}
	}
	return NewTurfService(repo, counter, locks, validator.NewTurfValidator(), testConfig())
}

const ownerID = "68a000000000000000000099"

func ownedTurf(id string) *model.Turf {
	return &model.Turf{
		ID:           id,
		OwnerID:      ownerID,
		Name:         "Greenfield",
		Location:     "Sector 21",
		PricePerHour: 50,
		Available:    true,
	}
}

// ────────────────────────────────────────────────
// Tests for Create()
// ────────────────────────────────────────────────

func TestCreate_SetsOwnerAndDefaults(t *testing.T) {
	repo := &mockTurfRepository{}
	svc := newTestService(repo, nil)

	turf := &model.Turf{
		Name:         "  Greenfield   Arena ",
		Location:     "Sector 21",
		PricePerHour: 50,
	}
	if err := svc.Create(context.Background(), ownerID, turf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if turf.OwnerID != ownerID {
		t.Errorf("expected owner %s, got %s", ownerID, turf.OwnerID)
	}
	if !turf.Available {
		t.Error("new turf must start available")
	}
	if turf.Name != "Greenfield Arena" {
		t.Errorf("expected sanitized name, got %q", turf.Name)
	}
}

func TestCreate_RejectsInvalidPrice(t *testing.T) {
	tests := []struct {
		name  string
		price float64
	}{
		{"zero price", 0},
		{"negative price", -10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(&mockTurfRepository{}, nil)
			turf := &model.Turf{
				Name:         "Greenfield",
				Location:     "Sector 21",
				PricePerHour: tt.price,
			}

			err := svc.Create(context.Background(), ownerID, turf)
			if !apperrors.HasCode(err, apperrors.CodeValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestCreate_IgnoresClientSuppliedOwner(t *testing.T) {
	repo := &mockTurfRepository{}
	svc := newTestService(repo, nil)

	turf := &model.Turf{
		OwnerID:      "68a0000000000000000000ff",
		Name:         "Greenfield",
		Location:     "Sector 21",
		PricePerHour: 50,
	}
	if err := svc.Create(context.Background(), ownerID, turf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if turf.OwnerID != ownerID {
		t.Error("owner must come from the verified identity, not the payload")
	}
}

// ────────────────────────────────────────────────
// Tests for Update()
// ────────────────────────────────────────────────

func TestUpdate_EmptyPatchRejected(t *testing.T) {
	svc := newTestService(&mockTurfRepository{}, nil)

	err := svc.Update(context.Background(), "68a000000000000000000010", ownerID, &model.TurfUpdate{})
	if !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
		t.Errorf("expected invalid input error, got %v", err)
	}
}

func TestUpdate_NotOwnedLooksAbsent(t *testing.T) {
	repo := &mockTurfRepository{
		updateOwnedFunc: func(ctx context.Context, id, ownerID string, updates *model.TurfUpdate) error {
			return turfserrors.ErrNotFound
		},
	}
	svc := newTestService(repo, nil)

	price := 80.0
	errNotOwned := svc.Update(context.Background(), "68a000000000000000000010", ownerID, &model.TurfUpdate{PricePerHour: &price})
	errBadID := svc.Update(context.Background(), "zzz", ownerID, &model.TurfUpdate{PricePerHour: &price})

	if !apperrors.HasCode(errNotOwned, apperrors.CodeNotFound) {
		t.Errorf("expected not found for foreign turf, got %v", errNotOwned)
	}
	if !apperrors.HasCode(errBadID, apperrors.CodeNotFound) {
		t.Errorf("expected not found for malformed id, got %v", errBadID)
	}
	if errNotOwned.Error() != errBadID.Error() {
		t.Error("foreign and malformed ids must be indistinguishable")
	}
}

func TestUpdate_InvalidPatchRejected(t *testing.T) {
	svc := newTestService(&mockTurfRepository{}, nil)

	price := -5.0
	err := svc.Update(context.Background(), "68a000000000000000000010", ownerID, &model.TurfUpdate{PricePerHour: &price})
	if !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

// ────────────────────────────────────────────────
// Tests for Delete()
// ────────────────────────────────────────────────

func TestDelete_BlockedByConfirmedBookings(t *testing.T) {
	repo := &mockTurfRepository{turf: ownedTurf("68a000000000000000000010")}
	svc := newTestService(repo, &mockBookingCounter{confirmed: 2})

	err := svc.Delete(context.Background(), "68a000000000000000000010", ownerID)
	if !apperrors.HasCode(err, apperrors.CodeHasActiveBookings) {
		t.Errorf("expected has active bookings error, got %v", err)
	}
}

func TestDelete_Succeeds(t *testing.T) {
	repo := &mockTurfRepository{turf: ownedTurf("68a000000000000000000010")}
	locks := newMockTurfLocker()
	svc := newTestServiceLocked(repo, &mockBookingCounter{confirmed: 0}, locks)

	if err := svc.Delete(context.Background(), "68a000000000000000000010", ownerID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.deleted) != 1 {
		t.Errorf("expected exactly one delete, got %d", len(repo.deleted))
	}

	wantLock := model.TurfLockID("68a000000000000000000010")
	if len(locks.acquired) != 1 || locks.acquired[0] != wantLock {
		t.Errorf("expected turf lock %s to be taken, got %v", wantLock, locks.acquired)
	}
	if len(locks.released) != 1 || locks.released[0] != wantLock {
		t.Errorf("expected turf lock %s to be released, got %v", wantLock, locks.released)
	}
}

func TestDelete_NotOwnedLooksAbsent(t *testing.T) {
	foreign := ownedTurf("68a000000000000000000010")
	foreign.OwnerID = "68a0000000000000000000ff"
	repoForeign := &mockTurfRepository{turf: foreign}
	repoAbsent := &mockTurfRepository{}

	counter := &mockBookingCounter{confirmed: 5}
	errForeign := newTestService(repoForeign, counter).Delete(context.Background(), "68a000000000000000000010", ownerID)
	errAbsent := newTestService(repoAbsent, counter).Delete(context.Background(), "68a000000000000000000010", ownerID)

	if !apperrors.HasCode(errForeign, apperrors.CodeNotFound) {
		t.Errorf("ownership must be settled before booking state is consulted, got %v", errForeign)
	}
	if !apperrors.HasCode(errAbsent, apperrors.CodeNotFound) {
		t.Errorf("expected not found for absent turf, got %v", errAbsent)
	}
	if errForeign.Error() != errAbsent.Error() {
		t.Error("foreign and absent turfs must be indistinguishable")
	}
	if len(repoForeign.deleted)+len(repoAbsent.deleted) != 0 {
		t.Error("delete must not run for a turf the actor does not own")
	}
}

func TestDelete_BacksOffWhileBookingAttemptHoldsLock(t *testing.T) {
	turfID := "68a000000000000000000010"
	repo := &mockTurfRepository{turf: ownedTurf(turfID)}
	locks := newMockTurfLocker()
	locks.held[model.TurfLockID(turfID)] = struct{}{}
	svc := newTestServiceLocked(repo, &mockBookingCounter{confirmed: 0}, locks)

	err := svc.Delete(context.Background(), turfID, ownerID)
	if !apperrors.HasCode(err, apperrors.CodeConflict) {
		t.Errorf("expected conflict while the turf lock is held, got %v", err)
	}
	if len(repo.deleted) != 0 {
		t.Error("delete must not run while a booking attempt holds the lock")
	}
}

func TestDelete_SeesBookingCommittedBeforeLock(t *testing.T) {
	turfID := "68a000000000000000000010"
	repo := &mockTurfRepository{turf: ownedTurf(turfID)}
	counter := &mockBookingCounter{confirmed: 0}
	locks := newMockTurfLocker()
	// A booking attempt wins the lock first and commits; by the time the
	// delete acquires the lock the confirmed count must reflect it.
	locks.onAcquire = func() { counter.confirmed = 1 }
	svc := newTestServiceLocked(repo, counter, locks)

	err := svc.Delete(context.Background(), turfID, ownerID)
	if !apperrors.HasCode(err, apperrors.CodeHasActiveBookings) {
		t.Errorf("expected has active bookings error, got %v", err)
	}
}
