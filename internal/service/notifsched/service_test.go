package notifsched

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wsb-platform/booking-service/internal/domain"
	bookingRepo "github.com/wsb-platform/booking-service/internal/infra/storage/booking"
	"github.com/wsb-platform/booking-service/pkg/ptr"
)

type mockBookingRepo struct {
	getByIDFunc func(ctx context.Context, id int64) (*domain.Booking, error)
	getLiveFunc func(ctx context.Context, now time.Time) ([]*domain.Booking, error)
}

func (m *mockBookingRepo) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockBookingRepo) GetLive(ctx context.Context, now time.Time) ([]*domain.Booking, error) {
	return m.getLiveFunc(ctx, now)
}

type mockUserRepo struct {
	getByIDFunc func(ctx context.Context, id int64) (*domain.User, error)
}

func (m *mockUserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return m.getByIDFunc(ctx, id)
}

type mockScheduleRepo struct {
	deleted  []int64
	inserted []*domain.ScheduleEntry

	deleteFunc func(ctx context.Context, bookingID int64, channels []domain.NotificationChannel) (int64, error)
}

func (m *mockScheduleRepo) DeleteForBooking(ctx context.Context, bookingID int64, channels []domain.NotificationChannel) (int64, error) {
	m.deleted = append(m.deleted, bookingID)
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, bookingID, channels)
	}
	return 0, nil
}

func (m *mockScheduleRepo) Insert(ctx context.Context, entries []*domain.ScheduleEntry) error {
	m.inserted = append(m.inserted, entries...)
	return nil
}

func (m *mockScheduleRepo) Truncate(ctx context.Context) error {
	m.inserted = nil
	return nil
}

type mockTxManager struct{}

func (m *mockTxManager) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

type nopLogger struct{}

func (nopLogger) Info(format string, v ...interface{})  {}
func (nopLogger) Warn(format string, v ...interface{})  {}
func (nopLogger) Error(format string, v ...interface{}) {}

var msk = time.FixedZone("MSK", 3*60*60)

func chatUser(id int64) *domain.User {
	return &domain.User{
		ID:          id,
		DisplayName: "Мастер",
		ChatID:      ptr.Ptr(int64(100 + id)),
		IsActive:    true,
	}
}

func liveBooking(id int64, start, end time.Time) *domain.Booking {
	return &domain.Booking{
		ID:          id,
		UserID:      1,
		EquipmentID: 5,
		Date:        time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, msk),
		TimeStart:   start,
		TimeEnd:     end,
	}
}

func newTestService(b *mockBookingRepo, u *mockUserRepo, sch *mockScheduleRepo, now time.Time, cfg Config) *Service {
	return NewService(b, u, sch, &mockTxManager{}, fixedClock{now: now}, cfg, nopLogger{})
}

func TestRebuildForBooking_Offsets(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, msk)
	start := time.Date(2026, 3, 10, 12, 0, 0, 0, msk)
	end := time.Date(2026, 3, 10, 14, 0, 0, 0, msk)

	booking := liveBooking(7, start, end)
	sch := &mockScheduleRepo{}
	svc := newTestService(
		&mockBookingRepo{getByIDFunc: func(ctx context.Context, id int64) (*domain.Booking, error) {
			return booking, nil
		}},
		&mockUserRepo{getByIDFunc: func(ctx context.Context, id int64) (*domain.User, error) {
			return chatUser(id), nil
		}},
		sch,
		now,
		Config{NotifyBeforeStart: 30 * time.Minute, NotifyBeforeEnd: 15 * time.Minute},
	)

	n, err := svc.RebuildForBooking(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, sch.inserted, 2)

	byEvent := map[domain.NotificationEvent]*domain.ScheduleEntry{}
	for _, e := range sch.inserted {
		byEvent[e.Event] = e
		assert.Equal(t, int64(7), e.BookingID)
		assert.Equal(t, domain.ChannelChat, e.Channel)
	}
	assert.True(t, byEvent[domain.EventStart].RunAt.Equal(start.Add(-30*time.Minute)))
	assert.True(t, byEvent[domain.EventEnd].RunAt.Equal(end.Add(-15*time.Minute)))
}

func TestRebuildForBooking_SkipsPastRunAt(t *testing.T) {
	// "Сейчас" уже позади момента START-уведомления, END ещё впереди
	now := time.Date(2026, 3, 10, 11, 45, 0, 0, msk)
	start := time.Date(2026, 3, 10, 12, 0, 0, 0, msk)
	end := time.Date(2026, 3, 10, 14, 0, 0, 0, msk)

	booking := liveBooking(8, start, end)
	sch := &mockScheduleRepo{}
	svc := newTestService(
		&mockBookingRepo{getByIDFunc: func(ctx context.Context, id int64) (*domain.Booking, error) {
			return booking, nil
		}},
		&mockUserRepo{getByIDFunc: func(ctx context.Context, id int64) (*domain.User, error) {
			return chatUser(id), nil
		}},
		sch,
		now,
		Config{NotifyBeforeStart: 30 * time.Minute, NotifyBeforeEnd: 15 * time.Minute},
	)

	n, err := svc.RebuildForBooking(context.Background(), 8)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, sch.inserted, 1)
	assert.Equal(t, domain.EventEnd, sch.inserted[0].Event)
}

func TestRebuildForBooking_DeadBookingOnlyDeletes(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, msk)
	booking := liveBooking(9,
		time.Date(2026, 3, 10, 12, 0, 0, 0, msk),
		time.Date(2026, 3, 10, 14, 0, 0, 0, msk),
	)
	booking.Cancel = true

	sch := &mockScheduleRepo{
		deleteFunc: func(ctx context.Context, bookingID int64, channels []domain.NotificationChannel) (int64, error) {
			return 2, nil
		},
	}
	svc := newTestService(
		&mockBookingRepo{getByIDFunc: func(ctx context.Context, id int64) (*domain.Booking, error) {
			return booking, nil
		}},
		&mockUserRepo{getByIDFunc: func(ctx context.Context, id int64) (*domain.User, error) {
			t.Fatal("user must not be loaded for a dead booking")
			return nil, nil
		}},
		sch,
		now,
		Config{NotifyBeforeStart: 30 * time.Minute, NotifyBeforeEnd: 15 * time.Minute},
	)

	n, err := svc.RebuildForBooking(context.Background(), 9)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, []int64{9}, sch.deleted)
	assert.Empty(t, sch.inserted)
}

func TestRebuildForBooking_MissingBookingOnlyDeletes(t *testing.T) {
	sch := &mockScheduleRepo{}
	svc := newTestService(
		&mockBookingRepo{getByIDFunc: func(ctx context.Context, id int64) (*domain.Booking, error) {
			return nil, bookingRepo.ErrBookingNotFound
		}},
		&mockUserRepo{},
		sch,
		time.Date(2026, 3, 10, 9, 0, 0, 0, msk),
		Config{NotifyBeforeStart: 30 * time.Minute, NotifyBeforeEnd: 15 * time.Minute},
	)

	n, err := svc.RebuildForBooking(context.Background(), 404)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, []int64{404}, sch.deleted)
}

func TestRebuildForBooking_EmailChannel(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, msk)
	booking := liveBooking(10,
		time.Date(2026, 3, 10, 12, 0, 0, 0, msk),
		time.Date(2026, 3, 10, 14, 0, 0, 0, msk),
	)

	user := chatUser(1)
	user.Email = ptr.Ptr("master@example.com")

	makeService := func(emailEnabled bool, sch *mockScheduleRepo) *Service {
		return newTestService(
			&mockBookingRepo{getByIDFunc: func(ctx context.Context, id int64) (*domain.Booking, error) {
				return booking, nil
			}},
			&mockUserRepo{getByIDFunc: func(ctx context.Context, id int64) (*domain.User, error) {
				return user, nil
			}},
			sch,
			now,
			Config{NotifyBeforeStart: 30 * time.Minute, NotifyBeforeEnd: 15 * time.Minute, EmailEnabled: emailEnabled},
		)
	}

	sch := &mockScheduleRepo{}
	n, err := makeService(true, sch).RebuildForBooking(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	channels := map[domain.NotificationChannel]int{}
	for _, e := range sch.inserted {
		channels[e.Channel]++
	}
	assert.Equal(t, 2, channels[domain.ChannelChat])
	assert.Equal(t, 2, channels[domain.ChannelEmail])

	// с выключенной почтой канал email не планируется даже при наличии адреса
	sch = &mockScheduleRepo{}
	n, err = makeService(false, sch).RebuildForBooking(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	for _, e := range sch.inserted {
		assert.Equal(t, domain.ChannelChat, e.Channel)
	}
}

func TestRebuildAll(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, msk)
	live := []*domain.Booking{
		liveBooking(1, time.Date(2026, 3, 10, 12, 0, 0, 0, msk), time.Date(2026, 3, 10, 14, 0, 0, 0, msk)),
		liveBooking(2, time.Date(2026, 3, 10, 15, 0, 0, 0, msk), time.Date(2026, 3, 10, 16, 0, 0, 0, msk)),
	}

	sch := &mockScheduleRepo{}
	svc := newTestService(
		&mockBookingRepo{getLiveFunc: func(ctx context.Context, at time.Time) ([]*domain.Booking, error) {
			return live, nil
		}},
		&mockUserRepo{getByIDFunc: func(ctx context.Context, id int64) (*domain.User, error) {
			return chatUser(id), nil
		}},
		sch,
		now,
		Config{NotifyBeforeStart: 30 * time.Minute, NotifyBeforeEnd: 15 * time.Minute},
	)

	n, err := svc.RebuildAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Len(t, sch.inserted, 4)
}
