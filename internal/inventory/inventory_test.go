package inventory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridehub/bus-booking/internal/model"
)

// memSeatStore is an in-memory SeatStore.  Writes are deliberately not
// atomic across seats so the tests exercise the engine's own locking.
type memSeatStore struct {
	mu    sync.Mutex
	seats map[uint64]model.Seat

	failSaveAfter int // fail the Nth SaveSeatState call (0 = never)
	saves         int
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
	m.saves++
	if m.failSaveAfter > 0 && m.saves >= m.failSaveAfter {
		return errors.New("store down")
	}
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

func availableSeat(id, scheduleID uint64) model.Seat {
	return model.Seat{ID: id, ScheduleID: scheduleID, Status: model.SeatAvailable, PriceCents: 1500}
}

func TestTryHold_HoldsAllSeats(t *testing.T) {
	store := newMemSeatStore(availableSeat(1, 10), availableSeat(2, 10), availableSeat(3, 10))
	inv := New(store)

	conflicts, err := inv.TryHold(context.Background(), 10, []uint64{2, 1, 2}, "b1", 10*time.Minute)
	require.NoError(t, err)
	assert.Empty(t, conflicts)

	for _, id := range []uint64{1, 2} {
		s := store.seat(id)
		assert.Equal(t, model.SeatBooked, s.Status)
		assert.Equal(t, "b1", s.HeldBy)
		require.NotNil(t, s.ReservedUntil)
	}
	// seat 3 was not requested and stays free
	assert.Equal(t, model.SeatAvailable, store.seat(3).Status)
}

func TestTryHold_AllOrNothingOnConflict(t *testing.T) {
	taken := availableSeat(2, 10)
	taken.Status = model.SeatBooked
	taken.HeldBy = "other"
	until := time.Now().UTC().Add(time.Hour)
	taken.ReservedUntil = &until

	store := newMemSeatStore(availableSeat(1, 10), taken)
	inv := New(store)

	conflicts, err := inv.TryHold(context.Background(), 10, []uint64{1, 2}, "b1", 10*time.Minute)
	require.ErrorIs(t, err, ErrSeatUnavailable)
	assert.Equal(t, []uint64{2}, conflicts)

	// seat 1 must not have been touched
	assert.Equal(t, model.SeatAvailable, store.seat(1).Status)
	assert.Empty(t, store.seat(1).HeldBy)
}

func TestTryHold_UnknownAndForeignScheduleSeatsConflict(t *testing.T) {
	store := newMemSeatStore(availableSeat(1, 10), availableSeat(2, 99))
	inv := New(store)

	conflicts, err := inv.TryHold(context.Background(), 10, []uint64{1, 2, 3}, "b1", time.Minute)
	require.ErrorIs(t, err, ErrSeatUnavailable)
	assert.ElementsMatch(t, []uint64{2, 3}, conflicts)
}

func TestTryHold_TakesOverLapsedHold(t *testing.T) {
	stale := availableSeat(1, 10)
	stale.Status = model.SeatBooked
	stale.HeldBy = "old-booking"
	past := time.Now().UTC().Add(-time.Minute)
	stale.ReservedUntil = &past

	store := newMemSeatStore(stale)
	inv := New(store)

	conflicts, err := inv.TryHold(context.Background(), 10, []uint64{1}, "new-booking", 10*time.Minute)
	require.NoError(t, err)
	assert.Empty(t, conflicts)
	assert.Equal(t, "new-booking", store.seat(1).HeldBy)

	// the stale owner's release is now a no-op
	require.NoError(t, inv.Release(context.Background(), []uint64{1}, "old-booking", false))
	assert.Equal(t, model.SeatBooked, store.seat(1).Status)
	assert.Equal(t, "new-booking", store.seat(1).HeldBy)
}

func TestTryHold_RollsBackOnStorageFailure(t *testing.T) {
	store := newMemSeatStore(availableSeat(1, 10), availableSeat(2, 10), availableSeat(3, 10))
	store.failSaveAfter = 3 // two holds succeed, the third write fails
	inv := New(store)

	_, err := inv.TryHold(context.Background(), 10, []uint64{1, 2, 3}, "b1", time.Minute)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrSeatUnavailable)
}

func TestTryHold_ConcurrentOverlap_ExactlyOneWinner(t *testing.T) {
	store := newMemSeatStore(availableSeat(1, 10), availableSeat(2, 10), availableSeat(3, 10))
	inv := New(store)

	const attempts = 32
	var wg sync.WaitGroup
	wins := make(chan string, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		bookingID := string(rune('A' + i%26))
		go func(id string) {
			defer wg.Done()
			if _, err := inv.TryHold(context.Background(), 10, []uint64{1, 2, 3}, id, time.Minute); err == nil {
				wins <- id
			}
		}(bookingID + "-" + string(rune('0'+i/26)))
	}
	wg.Wait()
	close(wins)

	var winners []string
	for w := range wins {
		winners = append(winners, w)
	}
	require.Len(t, winners, 1)
	for _, id := range []uint64{1, 2, 3} {
		assert.Equal(t, winners[0], store.seat(id).HeldBy)
	}
}

func TestConfirm_ClearsHoldExpiry(t *testing.T) {
	store := newMemSeatStore(availableSeat(1, 10), availableSeat(2, 10))
	inv := New(store)

	_, err := inv.TryHold(context.Background(), 10, []uint64{1, 2}, "b1", time.Minute)
	require.NoError(t, err)

	require.NoError(t, inv.Confirm(context.Background(), []uint64{1, 2}, "b1"))
	for _, id := range []uint64{1, 2} {
		s := store.seat(id)
		assert.Equal(t, model.SeatBooked, s.Status)
		assert.Nil(t, s.ReservedUntil)
	}

	// confirming again is a no-op
	require.NoError(t, inv.Confirm(context.Background(), []uint64{1, 2}, "b1"))
}

func TestConfirm_ForeignHoldFails(t *testing.T) {
	store := newMemSeatStore(availableSeat(1, 10))
	inv := New(store)

	_, err := inv.TryHold(context.Background(), 10, []uint64{1}, "b1", time.Minute)
	require.NoError(t, err)

	err = inv.Confirm(context.Background(), []uint64{1}, "someone-else")
	require.ErrorIs(t, err, ErrSeatNotHeld)
}

func TestConfirm_FailsWhenHoldWasReclaimed(t *testing.T) {
	store := newMemSeatStore(availableSeat(1, 10), availableSeat(2, 10))
	inv := New(store)

	_, err := inv.TryHold(context.Background(), 10, []uint64{1, 2}, "b1", time.Minute)
	require.NoError(t, err)

	// The sweep reclaims the hold before the confirmation arrives.
	_, err = inv.SweepExpired(context.Background(), time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)

	err = inv.Confirm(context.Background(), []uint64{1, 2}, "b1")
	require.ErrorIs(t, err, ErrSeatNotHeld)
	for _, id := range []uint64{1, 2} {
		assert.Equal(t, model.SeatAvailable, store.seat(id).Status, "a failed confirm must not re-book the seat")
	}
}

func TestConfirm_PartiallyReclaimedHoldWritesNothing(t *testing.T) {
	store := newMemSeatStore(availableSeat(1, 10), availableSeat(2, 10))
	inv := New(store)

	_, err := inv.TryHold(context.Background(), 10, []uint64{1, 2}, "b1", time.Minute)
	require.NoError(t, err)

	// Seat 2 lapses and is taken over by another booking; seat 1 is still
	// held by b1.
	past := time.Now().UTC().Add(-time.Minute)
	require.NoError(t, store.SaveSeatState(context.Background(), 2, model.SeatBooked, &past, "b1"))
	_, err = inv.TryHold(context.Background(), 10, []uint64{2}, "b2", time.Minute)
	require.NoError(t, err)

	err = inv.Confirm(context.Background(), []uint64{1, 2}, "b1")
	require.ErrorIs(t, err, ErrSeatNotHeld)

	// Seat 1 keeps its expiring hold; seat 2 stays with the new owner.
	require.NotNil(t, store.seat(1).ReservedUntil)
	assert.Equal(t, "b2", store.seat(2).HeldBy)
}

func TestRelease_ReturnsSeatsAndIsIdempotent(t *testing.T) {
	store := newMemSeatStore(availableSeat(1, 10), availableSeat(2, 10))
	inv := New(store)

	_, err := inv.TryHold(context.Background(), 10, []uint64{1, 2}, "b1", time.Minute)
	require.NoError(t, err)

	require.NoError(t, inv.Release(context.Background(), []uint64{1, 2}, "b1", false))
	for _, id := range []uint64{1, 2} {
		s := store.seat(id)
		assert.Equal(t, model.SeatAvailable, s.Status)
		assert.Empty(t, s.HeldBy)
		assert.Nil(t, s.ReservedUntil)
	}

	require.NoError(t, inv.Release(context.Background(), []uint64{1, 2}, "b1", false))
}

func TestSweepExpired_GroupsByOwningBooking(t *testing.T) {
	store := newMemSeatStore(
		availableSeat(1, 10), availableSeat(2, 10), availableSeat(3, 10), availableSeat(4, 10),
	)
	inv := New(store)
	base := time.Now().UTC()

	_, err := inv.TryHold(context.Background(), 10, []uint64{1, 2}, "b1", time.Minute)
	require.NoError(t, err)
	_, err = inv.TryHold(context.Background(), 10, []uint64{3}, "b2", time.Minute)
	require.NoError(t, err)
	_, err = inv.TryHold(context.Background(), 10, []uint64{4}, "b3", time.Hour)
	require.NoError(t, err)

	released, err := inv.SweepExpired(context.Background(), base.Add(5*time.Minute))
	require.NoError(t, err)

	assert.ElementsMatch(t, []uint64{1, 2}, released["b1"])
	assert.Equal(t, []uint64{3}, released["b2"])
	assert.NotContains(t, released, "b3")

	assert.Equal(t, model.SeatAvailable, store.seat(1).Status)
	assert.Equal(t, model.SeatBooked, store.seat(4).Status)
}

func TestSweepExpired_LeavesConfirmedSeatsAlone(t *testing.T) {
	store := newMemSeatStore(availableSeat(1, 10))
	inv := New(store)

	_, err := inv.TryHold(context.Background(), 10, []uint64{1}, "b1", time.Minute)
	require.NoError(t, err)
	require.NoError(t, inv.Confirm(context.Background(), []uint64{1}, "b1"))

	released, err := inv.SweepExpired(context.Background(), time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, released)
	assert.Equal(t, "b1", store.seat(1).HeldBy)
}

func TestAvailableCount(t *testing.T) {
	store := newMemSeatStore(availableSeat(1, 10), availableSeat(2, 10), availableSeat(3, 20))
	inv := New(store)

	_, err := inv.TryHold(context.Background(), 10, []uint64{1}, "b1", time.Minute)
	require.NoError(t, err)

	n, err := inv.AvailableCount(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
