package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	bookingserrors "turfbook/internal/bookings/errors"
	"turfbook/internal/bookings/validator"
	turfserrors "turfbook/internal/turfs/errors"
	"turfbook/pkg/config"
	mongotx "turfbook/pkg/db/mongo"
	apperrors "turfbook/pkg/errors"
	"turfbook/pkg/events"
	"turfbook/pkg/logger"
	"turfbook/pkg/model"
)

// ────────────────────────────────────────────────
// In-memory fakes mirroring the store's contract
// ────────────────────────────────────────────────

type memBookingRepository struct {
	mu       sync.Mutex
	bookings map[string]*model.Booking
	seq      int
}

func newMemBookingRepository() *memBookingRepository {
	return &memBookingRepository{bookings: make(map[string]*model.Booking)}
}

func (m *memBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	copied := *booking
	copied.ID = fmt.Sprintf("68a0000000000000000001%02d", m.seq)
	copied.CreatedAt = time.Now().UTC()
	m.bookings[copied.ID] = &copied
	booking.ID = copied.ID
	booking.CreatedAt = copied.CreatedAt
	return nil
}

func (m *memBookingRepository) FindByIDForCustomer(ctx context.Context, id, customerID string) (*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bookings[id]
	if !ok || b.CustomerID != customerID {
		return nil, bookingserrors.ErrNotFound
	}
	copied := *b
	return &copied, nil
}

func (m *memBookingRepository) FindConfirmedOverlapping(ctx context.Context, turfID string, start, end time.Time) ([]*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*model.Booking
	for _, b := range m.bookings {
		if b.TurfID != turfID || b.Status != model.StatusConfirmed {
			continue
		}
		if b.StartTime.Before(end) && b.EndTime.After(start) {
			copied := *b
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *memBookingRepository) UpdateStatus(ctx context.Context, id string, status model.BookingStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bookings[id]
	if !ok {
		return bookingserrors.ErrNotFound
	}
	b.Status = status
	return nil
}

func (m *memBookingRepository) FindByCustomer(ctx context.Context, customerID string, limit int, offset int64) ([]*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*model.Booking
	for _, b := range m.bookings {
		if b.CustomerID == customerID {
			copied := *b
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *memBookingRepository) CountByCustomer(ctx context.Context, customerID string) (int64, error) {
	found, _ := m.FindByCustomer(ctx, customerID, 0, 0)
	return int64(len(found)), nil
}

func (m *memBookingRepository) FindByTurf(ctx context.Context, turfID string, limit int, offset int64) ([]*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*model.Booking
	for _, b := range m.bookings {
		if b.TurfID == turfID {
			copied := *b
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *memBookingRepository) CountByTurf(ctx context.Context, turfID string) (int64, error) {
	found, _ := m.FindByTurf(ctx, turfID, 0, 0)
	return int64(len(found)), nil
}

func (m *memBookingRepository) CountConfirmedByTurf(ctx context.Context, turfID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, b := range m.bookings {
		if b.TurfID == turfID && b.Status == model.StatusConfirmed {
			n++
		}
	}
	return n, nil
}

func (m *memBookingRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(nil)
}

// memLockRepository enforces the same insert-if-absent semantics the unique
// index provides, including the duplicate key error class.
type memLockRepository struct {
	mu        sync.Mutex
	locks     map[string]struct{}
	onAcquire func()
}

func newMemLockRepository() *memLockRepository {
	return &memLockRepository{locks: make(map[string]struct{})}
}

func duplicateKeyError() error {
	return mongo.WriteException{
		WriteErrors: []mongo.WriteError{{Code: 11000}},
	}
}

func (m *memLockRepository) Create(ctx context.Context, lock *model.BookingLock) (*model.BookingLock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.locks[lock.ID]; taken {
		return nil, duplicateKeyError()
	}
	m.locks[lock.ID] = struct{}{}
	if m.onAcquire != nil {
		m.onAcquire()
	}
	return lock, nil
}

func (m *memLockRepository) Delete(ctx context.Context, lockID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.locks, lockID)
	return nil
}

type stubTurfGetter struct {
	turfs map[string]*model.Turf
}

func (s *stubTurfGetter) FindByID(ctx context.Context, id string) (*model.Turf, error) {
	turf, ok := s.turfs[id]
	if !ok {
		return nil, turfserrors.ErrNotFound
	}
	copied := *turf
	return &copied, nil
}

type capturePublisher struct {
	mu     sync.Mutex
	events []events.BookingEvent
	err    error
}

func (p *capturePublisher) Publish(ctx context.Context, event events.BookingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

// ────────────────────────────────────────────────
// Fixture
// ────────────────────────────────────────────────

const (
	turfID     = "68a000000000000000000010"
	customerID = "68a000000000000000000020"
	otherID    = "68a000000000000000000021"
	turfOwner  = "68a000000000000000000030"
)

type fixture struct {
	svc       BookingService
	repo      *memBookingRepository
	locks     *memLockRepository
	turfs     *stubTurfGetter
	publisher *capturePublisher
}

func newFixture() *fixture {
	repo := newMemBookingRepository()
	locks := newMemLockRepository()
	turfs := &stubTurfGetter{turfs: map[string]*model.Turf{
		turfID: {
			ID:           turfID,
			OwnerID:      turfOwner,
			Name:         "Greenfield Arena",
			Location:     "Sector 21",
			PricePerHour: 40,
			Available:    true,
		},
	}}
	publisher := &capturePublisher{}

	cfg := &config.Config{
		Log: logger.New(logger.Config{
			Level:   "error",
			Format:  logger.JSON,
			Service: "test",
		}),
		ReadTimeout:    5 * time.Second,
		WriteTimeout:   5 * time.Second,
		BookingLockTTL: 10 * time.Second,
	}

	svc := NewBookingService(
		repo,
		locks,
		turfs,
		validator.NewBookingValidator(),
		publisher,
		cfg,
	)

	return &fixture{svc: svc, repo: repo, locks: locks, turfs: turfs, publisher: publisher}
}

func slot(hour, minute, durMinutes int) (time.Time, time.Time) {
	start := time.Date(2026, 9, 12, hour, minute, 0, 0, time.UTC)
	return start, start.Add(time.Duration(durMinutes) * time.Minute)
}

func request(start, end time.Time) *model.BookingRequest {
	return &model.BookingRequest{
		TurfID:    turfID,
		StartTime: start,
		EndTime:   end,
	}
}

// ────────────────────────────────────────────────
// Tests for Create()
// ────────────────────────────────────────────────

func TestCreate_Success(t *testing.T) {
	f := newFixture()
	start, end := slot(10, 0, 90)

	booking, err := f.svc.Create(context.Background(), customerID, request(start, end))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if booking.Status != model.StatusConfirmed {
		t.Errorf("expected confirmed status, got %s", booking.Status)
	}
	if booking.TotalCost != 60 {
		t.Errorf("expected cost 60 for 1.5h at 40/h, got %v", booking.TotalCost)
	}
	if len(f.publisher.events) != 1 || f.publisher.events[0].Type != events.TypeBookingConfirmed {
		t.Errorf("expected one confirmed event, got %+v", f.publisher.events)
	}
}

func TestCreate_NormalizesToUTC(t *testing.T) {
	f := newFixture()
	ist := time.FixedZone("IST", 5*3600+1800)
	start := time.Date(2026, 9, 12, 15, 30, 0, 0, ist)
	end := start.Add(time.Hour)

	booking, err := f.svc.Create(context.Background(), customerID, request(start, end))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if booking.StartTime.Location() != time.UTC {
		t.Errorf("expected UTC start time, got %v", booking.StartTime.Location())
	}
	if !booking.StartTime.Equal(start) {
		t.Error("normalization must preserve the instant")
	}
}

func TestCreate_InvalidInterval(t *testing.T) {
	f := newFixture()
	start, _ := slot(10, 0, 60)

	tests := []struct {
		name string
		end  time.Time
	}{
		{"end before start", start.Add(-time.Hour)},
		{"zero duration", start},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(context.Background(), customerID, request(start, tt.end))
			if !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
				t.Errorf("expected invalid input error, got %v", err)
			}
		})
	}
}

func TestCreate_UnknownTurf(t *testing.T) {
	f := newFixture()
	start, end := slot(10, 0, 60)
	req := request(start, end)
	req.TurfID = "68a0000000000000000000ff"

	_, err := f.svc.Create(context.Background(), customerID, req)
	if !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Errorf("expected not found error, got %v", err)
	}
}

func TestCreate_UnavailableTurf(t *testing.T) {
	f := newFixture()
	f.turfs.turfs[turfID].Available = false
	start, end := slot(10, 0, 60)

	_, err := f.svc.Create(context.Background(), customerID, request(start, end))
	if !apperrors.HasCode(err, apperrors.CodeTurfUnavailable) {
		t.Errorf("expected turf unavailable error, got %v", err)
	}
}

func TestCreate_OverlapAndAdjacency(t *testing.T) {
	f := newFixture()

	// Existing booking holds 10:00-12:00.
	start, end := slot(10, 0, 120)
	if _, err := f.svc.Create(context.Background(), customerID, request(start, end)); err != nil {
		t.Fatalf("seed booking failed: %v", err)
	}

	tests := []struct {
		name      string
		hour, min int
		dur       int
		wantOK    bool
	}{
		{"straddles the end", 11, 0, 120, false},
		{"contained inside", 10, 30, 60, false},
		{"covers entirely", 9, 0, 240, false},
		{"identical slot", 10, 0, 120, false},
		{"adjacent after", 12, 0, 60, true},
		{"adjacent before", 9, 0, 60, true},
		{"disjoint", 15, 0, 60, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, e := slot(tt.hour, tt.min, tt.dur)
			_, err := f.svc.Create(context.Background(), otherID, request(s, e))
			if tt.wantOK && err != nil {
				t.Errorf("expected success, got %v", err)
			}
			if !tt.wantOK && !apperrors.HasCode(err, apperrors.CodeSlotUnavailable) {
				t.Errorf("expected slot unavailable, got %v", err)
			}
		})
	}
}

func TestCreate_CancelledBookingFreesSlot(t *testing.T) {
	f := newFixture()
	start, end := slot(10, 0, 120)

	booking, err := f.svc.Create(context.Background(), customerID, request(start, end))
	if err != nil {
		t.Fatalf("seed booking failed: %v", err)
	}
	if _, err := f.svc.Cancel(context.Background(), booking.ID, customerID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	if _, err := f.svc.Create(context.Background(), otherID, request(start, end)); err != nil {
		t.Errorf("cancelled booking must not block the slot, got %v", err)
	}
}

func TestCreate_CostFixedAtCreation(t *testing.T) {
	f := newFixture()
	start, end := slot(10, 0, 60)

	booking, err := f.svc.Create(context.Background(), customerID, request(start, end))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Owner raises the price afterwards.
	f.turfs.turfs[turfID].PricePerHour = 100

	stored, err := f.repo.FindByIDForCustomer(context.Background(), booking.ID, customerID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored.TotalCost != 40 {
		t.Errorf("existing booking cost must stay at 40, got %v", stored.TotalCost)
	}

	s2, e2 := slot(14, 0, 60)
	later, err := f.svc.Create(context.Background(), customerID, request(s2, e2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if later.TotalCost != 100 {
		t.Errorf("new booking must use the new price, got %v", later.TotalCost)
	}
}

func TestCreate_ConcurrentAttemptsSingleWinner(t *testing.T) {
	f := newFixture()
	start, end := slot(10, 0, 60)

	const attempts = 16
	var wg sync.WaitGroup
	results := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			customer := fmt.Sprintf("68a0000000000000000002%02d", n)
			_, err := f.svc.Create(context.Background(), customer, request(start, end))
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	var wins, conflicts int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case apperrors.HasCode(err, apperrors.CodeSlotUnavailable):
			conflicts++
		default:
			t.Errorf("unexpected error class: %v", err)
		}
	}

	if wins != 1 {
		t.Errorf("expected exactly one winner, got %d", wins)
	}
	if wins+conflicts != attempts {
		t.Errorf("every attempt must resolve to success or conflict, got %d+%d", wins, conflicts)
	}

	confirmed, _ := f.repo.CountConfirmedByTurf(context.Background(), turfID)
	if confirmed != 1 {
		t.Errorf("store must hold exactly one confirmed booking, got %d", confirmed)
	}
}

func TestCreate_TurfDeletedBeforeLockHeld(t *testing.T) {
	f := newFixture()
	// A turf delete wins the lock first and commits. The attempt resolves the
	// turf only after it holds the lock, so the deletion must be visible.
	f.locks.onAcquire = func() { delete(f.turfs.turfs, turfID) }
	start, end := slot(10, 0, 60)

	_, err := f.svc.Create(context.Background(), customerID, request(start, end))
	if !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Errorf("expected not found for a turf deleted before the lock was held, got %v", err)
	}
	if n, _ := f.repo.CountConfirmedByTurf(context.Background(), turfID); n != 0 {
		t.Errorf("no booking may land on a deleted turf, got %d", n)
	}
}

func TestCreate_PublishFailureDoesNotFailBooking(t *testing.T) {
	f := newFixture()
	f.publisher.err = fmt.Errorf("broker unreachable")
	start, end := slot(10, 0, 60)

	if _, err := f.svc.Create(context.Background(), customerID, request(start, end)); err != nil {
		t.Errorf("publish failure must not fail the booking, got %v", err)
	}
}

// ────────────────────────────────────────────────
// Tests for Cancel()
// ────────────────────────────────────────────────

func TestCancel_Success(t *testing.T) {
	f := newFixture()
	start, end := slot(10, 0, 60)
	booking, err := f.svc.Create(context.Background(), customerID, request(start, end))
	if err != nil {
		t.Fatalf("seed booking failed: %v", err)
	}

	cancelled, err := f.svc.Cancel(context.Background(), booking.ID, customerID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cancelled.Status != model.StatusCancelled {
		t.Errorf("expected cancelled status, got %s", cancelled.Status)
	}

	last := f.publisher.events[len(f.publisher.events)-1]
	if last.Type != events.TypeBookingCancelled {
		t.Errorf("expected cancelled event, got %s", last.Type)
	}
}

func TestCancel_AlreadyCancelled(t *testing.T) {
	f := newFixture()
	start, end := slot(10, 0, 60)
	booking, err := f.svc.Create(context.Background(), customerID, request(start, end))
	if err != nil {
		t.Fatalf("seed booking failed: %v", err)
	}

	if _, err := f.svc.Cancel(context.Background(), booking.ID, customerID); err != nil {
		t.Fatalf("first cancel failed: %v", err)
	}

	_, err = f.svc.Cancel(context.Background(), booking.ID, customerID)
	if !apperrors.HasCode(err, apperrors.CodeAlreadyCancelled) {
		t.Errorf("expected already cancelled error, got %v", err)
	}
}

func TestCancel_ForeignBookingLooksAbsent(t *testing.T) {
	f := newFixture()
	start, end := slot(10, 0, 60)
	booking, err := f.svc.Create(context.Background(), customerID, request(start, end))
	if err != nil {
		t.Fatalf("seed booking failed: %v", err)
	}

	_, errForeign := f.svc.Cancel(context.Background(), booking.ID, otherID)
	_, errAbsent := f.svc.Cancel(context.Background(), "68a0000000000000000001ff", otherID)

	if !apperrors.HasCode(errForeign, apperrors.CodeNotFound) {
		t.Errorf("expected not found for foreign booking, got %v", errForeign)
	}
	if !apperrors.HasCode(errAbsent, apperrors.CodeNotFound) {
		t.Errorf("expected not found for absent booking, got %v", errAbsent)
	}
	if errForeign.Error() != errAbsent.Error() {
		t.Error("foreign and absent bookings must be indistinguishable")
	}
}

// ────────────────────────────────────────────────
// Tests for listings
// ────────────────────────────────────────────────

func TestListForCustomer_IncludesAllStatuses(t *testing.T) {
	f := newFixture()

	s1, e1 := slot(10, 0, 60)
	s2, e2 := slot(14, 0, 60)
	first, err := f.svc.Create(context.Background(), customerID, request(s1, e1))
	if err != nil {
		t.Fatalf("seed booking failed: %v", err)
	}
	if _, err := f.svc.Create(context.Background(), customerID, request(s2, e2)); err != nil {
		t.Fatalf("seed booking failed: %v", err)
	}
	if _, err := f.svc.Cancel(context.Background(), first.ID, customerID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	bookings, total, err := f.svc.ListForCustomer(context.Background(), customerID, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 || len(bookings) != 2 {
		t.Errorf("cancelled bookings must remain listed, got %d/%d", len(bookings), total)
	}
}

func TestListForTurf_OwnershipOpacity(t *testing.T) {
	f := newFixture()

	_, _, errForeign := f.svc.ListForTurf(context.Background(), turfID, otherID, 10, 0)
	_, _, errAbsent := f.svc.ListForTurf(context.Background(), "68a0000000000000000000ff", otherID, 10, 0)

	if !apperrors.HasCode(errForeign, apperrors.CodeNotFound) {
		t.Errorf("expected not found for foreign turf, got %v", errForeign)
	}
	if !apperrors.HasCode(errAbsent, apperrors.CodeNotFound) {
		t.Errorf("expected not found for absent turf, got %v", errAbsent)
	}
	if errForeign.Error() != errAbsent.Error() {
		t.Error("foreign and absent turfs must be indistinguishable")
	}
}

func TestListForTurf_OwnerSeesBookings(t *testing.T) {
	f := newFixture()
	start, end := slot(10, 0, 60)
	if _, err := f.svc.Create(context.Background(), customerID, request(start, end)); err != nil {
		t.Fatalf("seed booking failed: %v", err)
	}

	bookings, total, err := f.svc.ListForTurf(context.Background(), turfID, turfOwner, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || len(bookings) != 1 {
		t.Errorf("expected one booking, got %d/%d", len(bookings), total)
	}
}
