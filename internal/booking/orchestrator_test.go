package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridehub/bus-booking/internal/event"
	"github.com/ridehub/bus-booking/internal/idempotency"
	"github.com/ridehub/bus-booking/internal/inventory"
	"github.com/ridehub/bus-booking/internal/model"
	"github.com/ridehub/bus-booking/internal/pricing"
)

// memBookingStore is an in-memory Store.
type memBookingStore struct {
	mu       sync.Mutex
	bookings map[string]model.Booking
	history  []model.BookingHistory
	txns     []model.PaymentTransaction
}

func newMemBookingStore() *memBookingStore {
	return &memBookingStore{bookings: make(map[string]model.Booking)}
}

func (m *memBookingStore) CreateBooking(_ context.Context, b *model.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bookings[b.ID]; ok {
		return errors.New("duplicate booking id")
	}
	m.bookings[b.ID] = *b
	return nil
}

func (m *memBookingStore) UpdateBooking(_ context.Context, b *model.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bookings[b.ID]; !ok {
		return errors.New("booking missing")
	}
	m.bookings[b.ID] = *b
	return nil
}

func (m *memBookingStore) BookingByID(_ context.Context, id string) (*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.bookings[id]; ok {
		out := b
		return &out, nil
	}
	return nil, nil
}

func (m *memBookingStore) BookingByCode(_ context.Context, code string) (*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bookings {
		if b.BookingCode == code {
			out := b
			return &out, nil
		}
	}
	return nil, nil
}

func (m *memBookingStore) BookingCodeExists(_ context.Context, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bookings {
		if b.BookingCode == code {
			return true, nil
		}
	}
	return false, nil
}

func (m *memBookingStore) AppendHistory(_ context.Context, h model.BookingHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, h)
	return nil
}

func (m *memBookingStore) SavePaymentTxn(_ context.Context, txn *model.PaymentTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txns = append(m.txns, *txn)
	return nil
}

func (m *memBookingStore) StaleBookingIDs(_ context.Context, cutoff time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for id, b := range m.bookings {
		if b.Status == model.BookingAwaitingPayment && b.CreatedAt.Before(cutoff) {
			out = append(out, id)
		}
	}
	return out, nil
}

func (m *memBookingStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bookings)
}

func (m *memBookingStore) txnStatuses() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.txns))
	for i, t := range m.txns {
		out[i] = t.Status
	}
	return out
}

func (m *memBookingStore) statusTrail(bookingID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, h := range m.history {
		if h.BookingID == bookingID {
			out = append(out, h.ToStatus)
		}
	}
	return out
}

// memSeatStore backs the real inventory engine and doubles as the seat
// catalog.
type memSeatStore struct {
	mu    sync.Mutex
	seats map[uint64]model.Seat
}

func newMemSeatStore(seats ...model.Seat) *memSeatStore {
	m := &memSeatStore{seats: make(map[uint64]model.Seat)}
	for _, s := range seats {
		m.seats[s.ID] = s
	}
	return m
}

func (m *memSeatStore) SeatsByIDs(_ context.Context, ids []uint64) ([]model.Seat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Seat, 0, len(ids))
	for _, id := range ids {
		if s, ok := m.seats[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memSeatStore) SaveSeatState(_ context.Context, id uint64, status string, until *time.Time, heldBy string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.seats[id]
	s.ID = id
	s.Status = status
	s.ReservedUntil = until
	s.HeldBy = heldBy
	m.seats[id] = s
	return nil
}

func (m *memSeatStore) ExpiredHolds(_ context.Context, now time.Time) ([]model.Seat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Seat
	for _, s := range m.seats {
		if s.HoldExpired(now) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memSeatStore) CountByStatus(_ context.Context, scheduleID uint64, status string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.seats {
		if s.ScheduleID == scheduleID && s.Status == status {
			n++
		}
	}
	return n, nil
}

func (m *memSeatStore) seat(id uint64) model.Seat {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seats[id]
}

type fakeSchedules struct{}

func (fakeSchedules) ScheduleByTripID(_ context.Context, tripID uint64) (*model.Schedule, error) {
	if tripID != 1 {
		return nil, nil
	}
	return &model.Schedule{ID: 10, TripID: 1, Origin: "Hanoi", Destination: "Da Nang", SeatCount: 3}, nil
}

type memPromoStore struct {
	promos map[string]*model.Promotion
}

func (m *memPromoStore) PromotionByCode(_ context.Context, code string) (*model.Promotion, error) {
	if m.promos == nil {
		return nil, nil
	}
	return m.promos[code], nil
}

func (m *memPromoStore) IncrementUses(context.Context, uint64) error { return nil }

type capturePublisher struct {
	mu     sync.Mutex
	events []event.Envelope
}

func (p *capturePublisher) Publish(_ context.Context, env event.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, env)
	return nil
}

func (p *capturePublisher) kinds() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Kind
	}
	return out
}

type captureNotifier struct {
	mu        sync.Mutex
	confirmed int
	cancelled int
}

func (n *captureNotifier) BookingConfirmed(context.Context, *model.Booking) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.confirmed++
}

func (n *captureNotifier) BookingCancelled(context.Context, *model.Booking, string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cancelled++
}

func (n *captureNotifier) counts() (int, int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.confirmed, n.cancelled
}

type harness struct {
	store *memBookingStore
	seats *memSeatStore
	inv   *inventory.Inventory
	pub   *capturePublisher
	notif *captureNotifier
	o     *Orchestrator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	now := time.Now().UTC()
	seats := newMemSeatStore(
		model.Seat{ID: 1, ScheduleID: 10, SeatNo: "A1", Status: model.SeatAvailable, PriceCents: 1500},
		model.Seat{ID: 2, ScheduleID: 10, SeatNo: "A2", Status: model.SeatAvailable, PriceCents: 1500},
		model.Seat{ID: 3, ScheduleID: 10, SeatNo: "B1", Status: model.SeatAvailable, PriceCents: 2000},
		model.Seat{ID: 4, ScheduleID: 99, SeatNo: "Z1", Status: model.SeatAvailable, PriceCents: 2000},
	)
	promos := &memPromoStore{promos: map[string]*model.Promotion{
		"SAVE10": {ID: 7, Code: "SAVE10", PercentOff: 10, StartsAt: now.Add(-time.Hour), EndsAt: now.Add(time.Hour)},
	}}
	store := newMemBookingStore()
	pub := &capturePublisher{}
	notif := &captureNotifier{}
	inv := inventory.New(seats)
	o := New(
		store,
		fakeSchedules{},
		seats,
		inv,
		idempotency.NewGuard(idempotency.NewMemoryStore(), 24*time.Hour),
		pricing.New(promos),
		pub,
		notif,
		10*time.Minute,
	)
	return &harness{store: store, seats: seats, inv: inv, pub: pub, notif: notif, o: o}
}

func createInput() CreateBookingInput {
	return CreateBookingInput{
		TripID:      1,
		SeatIDs:     []uint64{1, 2},
		IdemKey:     "k1",
		UserID:      "u1",
		ContactName: "Alice Nguyen",
	}
}

func TestCreateBooking_HoldsSeatsAndRequestsPayment(t *testing.T) {
	h := newHarness(t)

	snap, err := h.o.CreateBooking(context.Background(), createInput())
	require.NoError(t, err)
	assert.Equal(t, model.BookingAwaitingPayment, snap.Status)
	assert.Equal(t, uint32(3000), snap.AmountCents)
	assert.Len(t, snap.BookingCode, 10)

	for _, id := range []uint64{1, 2} {
		s := h.seats.seat(id)
		assert.Equal(t, model.SeatBooked, s.Status)
		assert.Equal(t, snap.BookingID, s.HeldBy)
		require.NotNil(t, s.ReservedUntil)
	}

	b, err := h.o.Get(context.Background(), snap.BookingID)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), b.Version) // DRAFT then AWAITING_PAYMENT
	assert.Equal(t, []uint64{1, 2}, b.SeatIDs)

	assert.Equal(t, []string{event.KindBookingCreated, event.KindPaymentRequested}, h.pub.kinds())
	assert.Equal(t, []string{model.PaymentInitiated}, h.store.txnStatuses())
}

func TestCreateBooking_ReplayReturnsFirstOutcome(t *testing.T) {
	h := newHarness(t)

	first, err := h.o.CreateBooking(context.Background(), createInput())
	require.NoError(t, err)

	replay, err := h.o.CreateBooking(context.Background(), createInput())
	require.NoError(t, err)
	assert.Equal(t, first, replay)

	assert.Equal(t, 1, h.store.count(), "replay must not create a second booking")
	assert.Len(t, h.pub.kinds(), 2, "replay must not republish")
}

func TestCreateBooking_SeatConflictCancelsDraft(t *testing.T) {
	h := newHarness(t)

	// First booking takes seat 2.
	_, err := h.o.CreateBooking(context.Background(), createInput())
	require.NoError(t, err)

	in := createInput()
	in.IdemKey = "k2"
	in.UserID = "u2"
	in.SeatIDs = []uint64{2, 3}
	snap, err := h.o.CreateBooking(context.Background(), in)
	require.ErrorIs(t, err, inventory.ErrSeatUnavailable)
	assert.Equal(t, model.BookingCancelled, snap.Status)
	assert.Equal(t, []uint64{2}, snap.UnavailableSeatIDs)

	// Seat 3 was never touched.
	assert.Equal(t, model.SeatAvailable, h.seats.seat(3).Status)

	// The conflict outcome itself replays.
	again, err := h.o.CreateBooking(context.Background(), in)
	require.ErrorIs(t, err, inventory.ErrSeatUnavailable)
	assert.Equal(t, snap, again)
}

func TestCreateBooking_ValidationFreesKeyForRetry(t *testing.T) {
	h := newHarness(t)

	in := createInput()
	in.SeatIDs = nil
	_, err := h.o.CreateBooking(context.Background(), in)
	require.ErrorIs(t, err, ErrEmptySeatList)

	// Same key with a corrected request goes through.
	_, err = h.o.CreateBooking(context.Background(), createInput())
	require.NoError(t, err)
}

func TestCreateBooking_UnknownTrip(t *testing.T) {
	h := newHarness(t)

	in := createInput()
	in.TripID = 42
	_, err := h.o.CreateBooking(context.Background(), in)
	require.ErrorIs(t, err, ErrTripNotFound)
}

func TestCreateBooking_SeatOutsideSchedule(t *testing.T) {
	h := newHarness(t)

	in := createInput()
	in.SeatIDs = []uint64{1, 4} // seat 4 belongs to another schedule
	_, err := h.o.CreateBooking(context.Background(), in)
	require.ErrorIs(t, err, ErrSeatsOutsideSchedule)
	assert.Equal(t, model.SeatAvailable, h.seats.seat(1).Status)
}

func TestCreateBooking_InvalidPromoRejectedBeforeHold(t *testing.T) {
	h := newHarness(t)

	in := createInput()
	in.PromoCode = "NOPE"
	_, err := h.o.CreateBooking(context.Background(), in)
	require.ErrorIs(t, err, pricing.ErrPromoInvalid)

	assert.Equal(t, model.SeatAvailable, h.seats.seat(1).Status)
	assert.Equal(t, 0, h.store.count())
}

func TestCreateBooking_PromoDiscountApplied(t *testing.T) {
	h := newHarness(t)

	in := createInput()
	in.PromoCode = "SAVE10"
	snap, err := h.o.CreateBooking(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, uint32(2700), snap.AmountCents)
}

func TestOnPaymentResult_SuccessConfirmsBooking(t *testing.T) {
	h := newHarness(t)

	snap, err := h.o.CreateBooking(context.Background(), createInput())
	require.NoError(t, err)

	err = h.o.OnPaymentResult(context.Background(), snap.BookingID, model.PaymentSuccess, "gw-1")
	require.NoError(t, err)

	b, err := h.o.Get(context.Background(), snap.BookingID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingConfirmed, b.Status)
	assert.Equal(t, uint64(4), b.Version)

	for _, id := range []uint64{1, 2} {
		s := h.seats.seat(id)
		assert.Equal(t, model.SeatBooked, s.Status)
		assert.Nil(t, s.ReservedUntil, "confirmed seats must not expire")
	}

	assert.Contains(t, h.pub.kinds(), event.KindBookingConfirmed)
	assert.Contains(t, h.store.txnStatuses(), model.PaymentSuccess)
	assert.Equal(t,
		[]string{model.BookingDraft, model.BookingAwaitingPayment, model.BookingPaid, model.BookingConfirmed},
		h.store.statusTrail(snap.BookingID))

	time.Sleep(50 * time.Millisecond) // notifier runs on its own goroutine
	confirmed, _ := h.notif.counts()
	assert.Equal(t, 1, confirmed)
}

func TestOnPaymentResult_FailureReleasesSeats(t *testing.T) {
	h := newHarness(t)

	snap, err := h.o.CreateBooking(context.Background(), createInput())
	require.NoError(t, err)

	err = h.o.OnPaymentResult(context.Background(), snap.BookingID, model.PaymentFailed, "gw-1")
	require.NoError(t, err)

	b, err := h.o.Get(context.Background(), snap.BookingID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingCancelled, b.Status)
	for _, id := range []uint64{1, 2} {
		assert.Equal(t, model.SeatAvailable, h.seats.seat(id).Status)
	}
	assert.Contains(t, h.pub.kinds(), event.KindBookingCancelled)
	assert.Contains(t, h.store.txnStatuses(), model.PaymentFailed)
}

func TestOnPaymentResult_DuplicateDeliveryRejected(t *testing.T) {
	h := newHarness(t)

	snap, err := h.o.CreateBooking(context.Background(), createInput())
	require.NoError(t, err)
	require.NoError(t, h.o.OnPaymentResult(context.Background(), snap.BookingID, model.PaymentSuccess, "gw-1"))

	err = h.o.OnPaymentResult(context.Background(), snap.BookingID, model.PaymentSuccess, "gw-1")
	require.ErrorIs(t, err, ErrInvalidTransition)

	b, _ := h.o.Get(context.Background(), snap.BookingID)
	assert.Equal(t, model.BookingConfirmed, b.Status)
	assert.Equal(t, uint64(4), b.Version, "duplicate must not bump the version")
}

func TestOnPaymentResult_UnknownBooking(t *testing.T) {
	h := newHarness(t)

	err := h.o.OnPaymentResult(context.Background(), "no-such-id", model.PaymentSuccess, "gw-1")
	require.ErrorIs(t, err, ErrBookingNotFound)
}

func TestExpire_BeforeDeadlineIsNoop(t *testing.T) {
	h := newHarness(t)

	snap, err := h.o.CreateBooking(context.Background(), createInput())
	require.NoError(t, err)

	require.NoError(t, h.o.Expire(context.Background(), snap.BookingID))

	b, _ := h.o.Get(context.Background(), snap.BookingID)
	assert.Equal(t, model.BookingAwaitingPayment, b.Status)
	assert.Equal(t, model.SeatBooked, h.seats.seat(1).Status)
}

func TestExpire_AfterDeadlineCancels(t *testing.T) {
	h := newHarness(t)

	snap, err := h.o.CreateBooking(context.Background(), createInput())
	require.NoError(t, err)

	h.o.now = func() time.Time { return time.Now().UTC().Add(time.Hour) }
	require.NoError(t, h.o.Expire(context.Background(), snap.BookingID))

	b, _ := h.o.Get(context.Background(), snap.BookingID)
	assert.Equal(t, model.BookingCancelled, b.Status)
	for _, id := range []uint64{1, 2} {
		assert.Equal(t, model.SeatAvailable, h.seats.seat(id).Status)
	}
}

func TestExpire_PaymentWinsTheRace(t *testing.T) {
	h := newHarness(t)

	snap, err := h.o.CreateBooking(context.Background(), createInput())
	require.NoError(t, err)
	require.NoError(t, h.o.OnPaymentResult(context.Background(), snap.BookingID, model.PaymentSuccess, "gw-1"))

	// The reaper fires late; the paid booking must be left alone.
	h.o.now = func() time.Time { return time.Now().UTC().Add(time.Hour) }
	require.NoError(t, h.o.Expire(context.Background(), snap.BookingID))

	b, _ := h.o.Get(context.Background(), snap.BookingID)
	assert.Equal(t, model.BookingConfirmed, b.Status)
	assert.Equal(t, model.SeatBooked, h.seats.seat(1).Status)
}

func TestOnPaymentResult_LateSuccessAfterSweepCancels(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	snap, err := h.o.CreateBooking(ctx, createInput())
	require.NoError(t, err)

	// The reaper reclaims the lapsed hold, then the gateway's success
	// lands before Expire got to the booking.
	released, err := h.inv.SweepExpired(ctx, time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)
	require.Contains(t, released, snap.BookingID)

	require.NoError(t, h.o.OnPaymentResult(ctx, snap.BookingID, model.PaymentSuccess, "gw-1"))

	// The booking must not come out CONFIRMED with its seats on sale.
	b, _ := h.o.Get(ctx, snap.BookingID)
	assert.Equal(t, model.BookingCancelled, b.Status)
	assert.Contains(t, h.store.txnStatuses(), model.PaymentRefunded)
	for _, id := range []uint64{1, 2} {
		assert.Equal(t, model.SeatAvailable, h.seats.seat(id).Status)
	}
	assert.Contains(t, h.pub.kinds(), event.KindBookingCancelled)

	// The freed seats sell cleanly to the next customer.
	in := createInput()
	in.IdemKey = "k2"
	in.UserID = "u2"
	second, err := h.o.CreateBooking(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, model.BookingAwaitingPayment, second.Status)
}

func TestExpire_HoldTakenOverStrandsNoBooking(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.o.CreateBooking(ctx, createInput())
	require.NoError(t, err)

	// The hold lapses and a second customer takes the seats over before
	// the next sweep runs.
	past := time.Now().UTC().Add(-time.Minute)
	for _, id := range []uint64{1, 2} {
		require.NoError(t, h.seats.SaveSeatState(ctx, id, model.SeatBooked, &past, first.BookingID))
	}
	in := createInput()
	in.IdemKey = "k2"
	in.UserID = "u2"
	second, err := h.o.CreateBooking(ctx, in)
	require.NoError(t, err)

	// No seat points back at the first booking, so the sweep alone would
	// never cascade to it.
	released, err := h.inv.SweepExpired(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.NotContains(t, released, first.BookingID)

	// The stale scan still surfaces it once its window lapsed.
	h.o.now = func() time.Time { return time.Now().UTC().Add(time.Hour) }
	stale, err := h.o.StaleBookingIDs(ctx, h.o.now())
	require.NoError(t, err)
	assert.Contains(t, stale, first.BookingID)

	require.NoError(t, h.o.Expire(ctx, first.BookingID))

	b, _ := h.o.Get(ctx, first.BookingID)
	assert.Equal(t, model.BookingCancelled, b.Status)
	for _, id := range []uint64{1, 2} {
		assert.Equal(t, second.BookingID, h.seats.seat(id).HeldBy, "the takeover hold must survive the expiry")
	}

	// A late payment success for the stranded booking settles instead of
	// looping through redelivery.
	err = h.o.OnPaymentResult(ctx, first.BookingID, model.PaymentSuccess, "gw-late")
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCheckInAndComplete(t *testing.T) {
	h := newHarness(t)

	snap, err := h.o.CreateBooking(context.Background(), createInput())
	require.NoError(t, err)
	require.NoError(t, h.o.OnPaymentResult(context.Background(), snap.BookingID, model.PaymentSuccess, "gw-1"))

	require.NoError(t, h.o.CheckIn(context.Background(), snap.BookingID))
	require.NoError(t, h.o.Complete(context.Background(), snap.BookingID))

	b, _ := h.o.Get(context.Background(), snap.BookingID)
	assert.Equal(t, model.BookingCompleted, b.Status)

	// Completed bookings cannot be cancelled or checked in again.
	require.ErrorIs(t, h.o.Cancel(context.Background(), snap.BookingID), ErrInvalidTransition)
	require.ErrorIs(t, h.o.CheckIn(context.Background(), snap.BookingID), ErrInvalidTransition)
}

func TestCheckIn_RequiresPaidBooking(t *testing.T) {
	h := newHarness(t)

	snap, err := h.o.CreateBooking(context.Background(), createInput())
	require.NoError(t, err)

	require.ErrorIs(t, h.o.CheckIn(context.Background(), snap.BookingID), ErrInvalidTransition)
}

func TestCancel_ReleasesHeldSeats(t *testing.T) {
	h := newHarness(t)

	snap, err := h.o.CreateBooking(context.Background(), createInput())
	require.NoError(t, err)

	require.NoError(t, h.o.Cancel(context.Background(), snap.BookingID))

	b, _ := h.o.Get(context.Background(), snap.BookingID)
	assert.Equal(t, model.BookingCancelled, b.Status)
	for _, id := range []uint64{1, 2} {
		assert.Equal(t, model.SeatAvailable, h.seats.seat(id).Status)
	}

	// Cancelling twice is an invalid transition.
	require.ErrorIs(t, h.o.Cancel(context.Background(), snap.BookingID), ErrInvalidTransition)
}

func TestRefund_ReturnsSeatsToSale(t *testing.T) {
	h := newHarness(t)

	snap, err := h.o.CreateBooking(context.Background(), createInput())
	require.NoError(t, err)
	require.NoError(t, h.o.OnPaymentResult(context.Background(), snap.BookingID, model.PaymentSuccess, "gw-1"))

	require.NoError(t, h.o.Refund(context.Background(), snap.BookingID))

	b, _ := h.o.Get(context.Background(), snap.BookingID)
	assert.Equal(t, model.BookingRefunded, b.Status)
	for _, id := range []uint64{1, 2} {
		assert.Equal(t, model.SeatAvailable, h.seats.seat(id).Status)
	}
	assert.Contains(t, h.store.txnStatuses(), model.PaymentRefunded)

	// A second refund is rejected.
	require.ErrorIs(t, h.o.Refund(context.Background(), snap.BookingID), ErrInvalidTransition)
}

func TestGetByCode(t *testing.T) {
	h := newHarness(t)

	snap, err := h.o.CreateBooking(context.Background(), createInput())
	require.NoError(t, err)

	b, err := h.o.GetByCode(context.Background(), snap.BookingCode)
	require.NoError(t, err)
	assert.Equal(t, snap.BookingID, b.ID)

	_, err = h.o.GetByCode(context.Background(), "XXXXXXXXXX")
	require.ErrorIs(t, err, ErrBookingNotFound)
}

func TestConcurrentCreates_SameSeats_OneWinner(t *testing.T) {
	h := newHarness(t)

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			in := createInput()
			in.IdemKey = "key-" + string(rune('a'+i))
			in.UserID = "user-" + string(rune('a'+i))
			_, errs[i] = h.o.CreateBooking(context.Background(), in)
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			require.ErrorIs(t, err, inventory.ErrSeatUnavailable)
		}
	}
	assert.Equal(t, 1, winners)
}
