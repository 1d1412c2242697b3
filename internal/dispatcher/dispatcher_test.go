package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wsb-platform/booking-service/internal/domain"
	bookingstorage "github.com/wsb-platform/booking-service/internal/infra/storage/booking"
	"github.com/wsb-platform/booking-service/internal/service/notifypolicy"
	"github.com/wsb-platform/booking-service/pkg/ptr"
	"github.com/wsb-platform/booking-service/pkg/types"
)

var msk = time.FixedZone("MSK", 3*60*60)

type mockScheduleStore struct {
	done        map[int64]*string
	failed      map[int64]string
	rescheduled map[int64]time.Time

	claimFunc func(ctx context.Context, limit int, now time.Time) ([]*domain.ScheduleEntry, error)
	resetFunc func(ctx context.Context, threshold time.Duration, now time.Time) (int64, error)
}

func newMockScheduleStore() *mockScheduleStore {
	return &mockScheduleStore{
		done:        map[int64]*string{},
		failed:      map[int64]string{},
		rescheduled: map[int64]time.Time{},
	}
}

func (m *mockScheduleStore) ClaimDue(ctx context.Context, limit int, now time.Time) ([]*domain.ScheduleEntry, error) {
	if m.claimFunc != nil {
		return m.claimFunc(ctx, limit, now)
	}
	return nil, nil
}

func (m *mockScheduleStore) MarkDone(ctx context.Context, id int64, reason *string) error {
	m.done[id] = reason
	return nil
}

func (m *mockScheduleStore) MarkFailed(ctx context.Context, id int64, lastError string) error {
	m.failed[id] = lastError
	return nil
}

func (m *mockScheduleStore) Reschedule(ctx context.Context, id int64, runAt time.Time, lastError string) error {
	m.rescheduled[id] = runAt
	return nil
}

func (m *mockScheduleStore) ResetStuck(ctx context.Context, threshold time.Duration, now time.Time) (int64, error) {
	if m.resetFunc != nil {
		return m.resetFunc(ctx, threshold, now)
	}
	return 0, nil
}

type mockBookingStore struct {
	booking       *domain.Booking
	conflicts     []domain.ConflictInfo
	expiredIDs    []int64
	deadlines     map[int64]time.Time
	getByIDFunc   func(ctx context.Context, id int64) (*domain.Booking, error)
	conflictsFunc func(ctx context.Context, equipmentID int64, start, end time.Time, excludeID *int64) ([]domain.ConflictInfo, error)
}

func (m *mockBookingStore) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return m.booking, nil
}

func (m *mockBookingStore) GetConflicts(ctx context.Context, equipmentID int64, start, end time.Time, excludeID *int64) ([]domain.ConflictInfo, error) {
	if m.conflictsFunc != nil {
		return m.conflictsFunc(ctx, equipmentID, start, end, excludeID)
	}
	return m.conflicts, nil
}

func (m *mockBookingStore) SetConfirmDeadline(ctx context.Context, id int64, deadline time.Time) error {
	if m.deadlines == nil {
		m.deadlines = map[int64]time.Time{}
	}
	m.deadlines[id] = deadline
	return nil
}

func (m *mockBookingStore) GetUnconfirmedExpired(ctx context.Context, now time.Time) ([]int64, error) {
	return m.expiredIDs, nil
}

type mockUserStore struct {
	user        *domain.User
	deactivated []int64
}

func (m *mockUserStore) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return m.user, nil
}

func (m *mockUserStore) Deactivate(ctx context.Context, id int64) error {
	m.deactivated = append(m.deactivated, id)
	return nil
}

type mockEquipmentStore struct{}

func (m *mockEquipmentStore) GetByID(ctx context.Context, id int64) (*domain.Equipment, error) {
	return &domain.Equipment{ID: id, Name: "Швейная машина"}, nil
}

type mockCore struct {
	autoCancelled []int64
	result        bool
}

func (m *mockCore) AutoCancel(ctx context.Context, bookingID int64) (bool, error) {
	m.autoCancelled = append(m.autoCancelled, bookingID)
	return m.result, nil
}

type mockAdapter struct {
	sent []*Notification
	err  error
}

func (m *mockAdapter) Send(ctx context.Context, n *Notification) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, n)
	return nil
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

func at(hh, mm int) time.Time {
	return time.Date(2026, 3, 10, hh, mm, 0, 0, msk)
}

func testRules() notifypolicy.Rules {
	return notifypolicy.Rules{
		NotifyBeforeStart: 30 * time.Minute,
		NotifyBeforeEnd:   15 * time.Minute,
		Step:              30 * time.Minute,
		WorkEnd:           types.TimeString("21:00"),
		Location:          msk,
	}
}

func testConfig() Config {
	return Config{
		Interval:       10 * time.Second,
		BatchSize:      50,
		StuckThreshold: 5 * time.Minute,
		ConfirmGrace:   5 * time.Minute,
		MaxAttempts:    3,
		Backoff:        []time.Duration{time.Minute, 5 * time.Minute, 30 * time.Minute},
	}
}

type fixture struct {
	schedule *mockScheduleStore
	bookings *mockBookingStore
	users    *mockUserStore
	core     *mockCore
	chat     *mockAdapter
	email    *mockAdapter
	d        *Dispatcher
}

func newFixture(now time.Time) *fixture {
	f := &fixture{
		schedule: newMockScheduleStore(),
		bookings: &mockBookingStore{},
		users: &mockUserStore{user: &domain.User{
			ID: 1, DisplayName: "Мастер", ChatID: ptr.Ptr(int64(100)), IsActive: true,
		}},
		core:  &mockCore{result: true},
		chat:  &mockAdapter{},
		email: &mockAdapter{},
	}
	f.d = New(
		f.schedule, f.bookings, f.users, &mockEquipmentStore{}, f.core,
		map[domain.NotificationChannel]Adapter{
			domain.ChannelChat:  f.chat,
			domain.ChannelEmail: f.email,
		},
		fixedClock{now: now}, testRules(), testConfig(), nil, nopLogger{},
	)
	return f
}

func plannedBooking() *domain.Booking {
	return &domain.Booking{
		ID: 42, UserID: 1, EquipmentID: 5,
		Date:      at(0, 0),
		TimeStart: at(12, 0),
		TimeEnd:   at(14, 0),
	}
}

func startEntry() *domain.ScheduleEntry {
	return &domain.ScheduleEntry{
		ID: 7, BookingID: 42,
		Channel: domain.ChannelChat, Event: domain.EventStart,
		RunAt: at(11, 30), Status: domain.EntryProcessing,
	}
}

func endEntry() *domain.ScheduleEntry {
	return &domain.ScheduleEntry{
		ID: 8, BookingID: 42,
		Channel: domain.ChannelChat, Event: domain.EventEnd,
		RunAt: at(13, 45), Status: domain.EntryProcessing,
	}
}

func TestProcess_StartNotification(t *testing.T) {
	now := at(11, 30)
	f := newFixture(now)
	f.bookings.booking = plannedBooking()

	f.d.process(context.Background(), startEntry())

	require.Len(t, f.chat.sent, 1)
	n := f.chat.sent[0]
	assert.Equal(t, domain.EventStart, n.Event)
	assert.Equal(t, "Швейная машина", n.Equipment.Name)
	assert.True(t, n.ConfirmDeadline.Equal(now.Add(5*time.Minute)))

	// дедлайн записан в БД, таймер взведен, строка закрыта
	assert.True(t, f.bookings.deadlines[42].Equal(now.Add(5*time.Minute)))
	assert.Equal(t, 1, f.d.timers.Len())
	reason, ok := f.schedule.done[7]
	require.True(t, ok)
	assert.Nil(t, reason)

	f.d.timers.StopAll()
}

func TestProcess_EmailStartDoesNotArmConfirmation(t *testing.T) {
	now := at(11, 30)
	f := newFixture(now)
	f.bookings.booking = plannedBooking()
	f.users.user = &domain.User{
		ID: 1, DisplayName: "Мастер", Email: ptr.Ptr("master@example.com"), IsActive: true,
	}

	entry := startEntry()
	entry.Channel = domain.ChannelEmail

	f.d.process(context.Background(), entry)

	// без чата подтверждение не запрашивается: письмо уходит,
	// бронирование считается подтвержденным неявно
	require.Len(t, f.email.sent, 1)
	assert.True(t, f.email.sent[0].ConfirmDeadline.IsZero())
	assert.Empty(t, f.bookings.deadlines)
	assert.Zero(t, f.d.timers.Len())
	reason, ok := f.schedule.done[7]
	require.True(t, ok)
	assert.Nil(t, reason)
}

func TestProcess_EndNotificationWithExtensionOffer(t *testing.T) {
	now := at(13, 45)
	f := newFixture(now)
	f.bookings.booking = plannedBooking()

	f.d.process(context.Background(), endEntry())

	require.Len(t, f.chat.sent, 1)
	assert.True(t, f.chat.sent[0].OfferExtension)
	assert.Empty(t, f.bookings.deadlines, "end notification must not touch confirm deadline")
	assert.Zero(t, f.d.timers.Len())
}

func TestProcess_NoExtensionOfferWhenTailBusy(t *testing.T) {
	now := at(13, 45)
	f := newFixture(now)
	f.bookings.booking = plannedBooking()
	f.bookings.conflicts = []domain.ConflictInfo{{BookingID: 9, TimeStart: at(14, 0), TimeEnd: at(15, 0)}}

	f.d.process(context.Background(), endEntry())

	require.Len(t, f.chat.sent, 1)
	assert.False(t, f.chat.sent[0].OfferExtension)
}

func TestProcess_StaleEntries(t *testing.T) {
	now := at(11, 30)

	tests := []struct {
		name    string
		booking *domain.Booking
		entry   *domain.ScheduleEntry
	}{
		{
			name: "cancelled booking",
			booking: func() *domain.Booking {
				b := plannedBooking()
				b.Cancel = true
				return b
			}(),
			entry: startEntry(),
		},
		{
			name: "finished booking",
			booking: func() *domain.Booking {
				b := plannedBooking()
				b.Finish = ptr.Ptr(at(11, 0))
				return b
			}(),
			entry: endEntry(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(now)
			f.bookings.booking = tt.booking

			f.d.process(context.Background(), tt.entry)

			assert.Empty(t, f.chat.sent)
			reason, ok := f.schedule.done[tt.entry.ID]
			require.True(t, ok)
			require.NotNil(t, reason)
			assert.NotEmpty(t, *reason)
		})
	}
}

func TestProcess_ExtendOfferEntryIsDropped(t *testing.T) {
	f := newFixture(at(13, 45))

	f.d.process(context.Background(), &domain.ScheduleEntry{
		ID: 9, BookingID: 42,
		Channel: domain.ChannelChat, Event: domain.EventExtendOffer,
		RunAt: at(13, 45), Status: domain.EntryProcessing,
	})

	assert.Empty(t, f.chat.sent)
	reason, ok := f.schedule.done[9]
	require.True(t, ok)
	require.NotNil(t, reason)
}

func TestProcess_MissingBookingIsStale(t *testing.T) {
	f := newFixture(at(11, 30))
	f.bookings.getByIDFunc = func(ctx context.Context, id int64) (*domain.Booking, error) {
		return nil, bookingstorage.ErrBookingNotFound
	}

	f.d.process(context.Background(), startEntry())

	assert.Empty(t, f.chat.sent)
	reason, ok := f.schedule.done[7]
	require.True(t, ok)
	require.NotNil(t, reason)
}

func TestProcess_TransientFailureReschedules(t *testing.T) {
	now := at(11, 30)
	f := newFixture(now)
	f.bookings.booking = plannedBooking()
	f.chat.err = errors.New("telegram: timeout")

	entry := startEntry()
	f.d.process(context.Background(), entry)

	runAt, ok := f.schedule.rescheduled[entry.ID]
	require.True(t, ok)
	assert.True(t, runAt.Equal(now.Add(time.Minute)), "first retry uses first backoff step")
	assert.Empty(t, f.schedule.failed)
	assert.Empty(t, f.bookings.deadlines)
}

func TestProcess_SecondRetryUsesNextBackoff(t *testing.T) {
	now := at(11, 30)
	f := newFixture(now)
	f.bookings.booking = plannedBooking()
	f.chat.err = errors.New("telegram: timeout")

	entry := startEntry()
	entry.Attempts = 1
	f.d.process(context.Background(), entry)

	runAt, ok := f.schedule.rescheduled[entry.ID]
	require.True(t, ok)
	assert.True(t, runAt.Equal(now.Add(5*time.Minute)))
}

func TestProcess_AttemptsExhausted(t *testing.T) {
	f := newFixture(at(11, 30))
	f.bookings.booking = plannedBooking()
	f.chat.err = errors.New("telegram: timeout")

	entry := startEntry()
	entry.Attempts = 3
	f.d.process(context.Background(), entry)

	assert.Empty(t, f.schedule.rescheduled)
	assert.Contains(t, f.schedule.failed[entry.ID], "attempts exhausted")
	assert.Empty(t, f.users.deactivated)
}

func TestProcess_PermanentChatFailureDeactivatesUser(t *testing.T) {
	f := newFixture(at(11, 30))
	f.bookings.booking = plannedBooking()
	f.chat.err = fmt.Errorf("%w: bot was blocked by the user", ErrPermanent)

	entry := startEntry()
	f.d.process(context.Background(), entry)

	assert.Empty(t, f.schedule.rescheduled)
	assert.NotEmpty(t, f.schedule.failed[entry.ID])
	assert.Equal(t, []int64{1}, f.users.deactivated)
}

func TestProcess_PermanentEmailFailureKeepsUser(t *testing.T) {
	f := newFixture(at(11, 30))
	f.bookings.booking = plannedBooking()
	f.email.err = fmt.Errorf("%w: mailbox does not exist", ErrPermanent)

	entry := startEntry()
	entry.Channel = domain.ChannelEmail
	f.d.process(context.Background(), entry)

	assert.NotEmpty(t, f.schedule.failed[entry.ID])
	assert.Empty(t, f.users.deactivated)
}

func TestTick_SweepsExpiredConfirmations(t *testing.T) {
	f := newFixture(at(12, 10))
	f.bookings.expiredIDs = []int64{42, 43}

	f.d.Tick(context.Background())

	assert.Equal(t, []int64{42, 43}, f.core.autoCancelled)
}

func TestTick_ProcessesClaimedBatch(t *testing.T) {
	now := at(11, 30)
	f := newFixture(now)
	f.bookings.booking = plannedBooking()
	f.schedule.claimFunc = func(ctx context.Context, limit int, claimedAt time.Time) ([]*domain.ScheduleEntry, error) {
		assert.Equal(t, 50, limit)
		assert.True(t, claimedAt.Equal(now))
		return []*domain.ScheduleEntry{startEntry()}, nil
	}

	f.d.Tick(context.Background())

	assert.Len(t, f.chat.sent, 1)
	f.d.timers.StopAll()
}

func TestNotifyCancelled_SendsToOwnerChat(t *testing.T) {
	f := newFixture(at(12, 30))

	err := f.d.NotifyCancelled(context.Background(), plannedBooking())

	require.NoError(t, err)
	require.Len(t, f.chat.sent, 1)
	n := f.chat.sent[0]
	assert.Equal(t, domain.EventCancelled, n.Event)
	assert.Equal(t, "Мастер", n.User.DisplayName)
	assert.Equal(t, "Швейная машина", n.Equipment.Name)
	assert.Empty(t, f.email.sent)
}

func TestNotifyCancelled_FallsBackToEmail(t *testing.T) {
	f := newFixture(at(12, 30))
	f.users.user = &domain.User{
		ID: 1, DisplayName: "Мастер", Email: ptr.Ptr("master@example.com"), IsActive: true,
	}

	err := f.d.NotifyCancelled(context.Background(), plannedBooking())

	require.NoError(t, err)
	assert.Empty(t, f.chat.sent)
	require.Len(t, f.email.sent, 1)
	assert.Equal(t, domain.EventCancelled, f.email.sent[0].Event)
}

func TestNotifyCancelled_OwnerWithoutChannels(t *testing.T) {
	f := newFixture(at(12, 30))
	f.users.user = &domain.User{ID: 1, DisplayName: "Мастер", IsActive: true}

	err := f.d.NotifyCancelled(context.Background(), plannedBooking())

	require.NoError(t, err)
	assert.Empty(t, f.chat.sent)
	assert.Empty(t, f.email.sent)
}
