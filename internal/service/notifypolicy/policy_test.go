package notifypolicy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wsb-platform/booking-service/internal/domain"
)

var msk = time.FixedZone("MSK", 3*60*60)

func testRules() Rules {
	return Rules{
		NotifyBeforeStart: 15 * time.Minute,
		NotifyBeforeEnd:   10 * time.Minute,
		Step:              30 * time.Minute,
		WorkEnd:           "19:00",
		Location:          msk,
	}
}

func testBooking() *domain.Booking {
	return &domain.Booking{
		ID:          1,
		EquipmentID: 10,
		Date:        time.Date(2025, 3, 10, 0, 0, 0, 0, msk),
		TimeStart:   time.Date(2025, 3, 10, 10, 0, 0, 0, msk),
		TimeEnd:     time.Date(2025, 3, 10, 11, 0, 0, 0, msk),
	}
}

func TestRules_ValidForStartNotification(t *testing.T) {
	rules := testRules()
	b := testBooking()

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{name: "inside window", now: b.TimeStart.Add(-10 * time.Minute), want: true},
		{name: "exactly at threshold", now: b.TimeStart.Add(-15 * time.Minute), want: true},
		{name: "exactly at start", now: b.TimeStart, want: false}, // уже active
		{name: "too early", now: b.TimeStart.Add(-16 * time.Minute), want: false},
		{name: "start passed", now: b.TimeStart.Add(time.Minute), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rules.ValidForStartNotification(tt.now, b))
		})
	}

	t.Run("cancelled booking never valid", func(t *testing.T) {
		cancelled := testBooking()
		cancelled.Cancel = true
		assert.False(t, rules.ValidForStartNotification(cancelled.TimeStart.Add(-10*time.Minute), cancelled))
	})
}

func TestRules_ValidForEndNotification(t *testing.T) {
	rules := testRules()
	b := testBooking()

	assert.True(t, rules.ValidForEndNotification(b.TimeEnd.Add(-5*time.Minute), b))
	assert.True(t, rules.ValidForEndNotification(b.TimeEnd.Add(-10*time.Minute), b))
	assert.False(t, rules.ValidForEndNotification(b.TimeEnd.Add(-11*time.Minute), b))
	assert.False(t, rules.ValidForEndNotification(b.TimeEnd, b)) // уже finished

	finished := testBooking()
	finished.Finish = &finished.TimeStart
	assert.False(t, rules.ValidForEndNotification(finished.TimeEnd.Add(-5*time.Minute), finished))
}

func TestRules_MayOfferExtension(t *testing.T) {
	rules := testRules()

	t.Run("active with room and no neighbour", func(t *testing.T) {
		b := testBooking()
		now := b.TimeEnd.Add(-5 * time.Minute)
		assert.True(t, rules.MayOfferExtension(now, b, false))
	})

	t.Run("neighbour blocks the offer", func(t *testing.T) {
		b := testBooking()
		now := b.TimeEnd.Add(-5 * time.Minute)
		assert.False(t, rules.MayOfferExtension(now, b, true))
	})

	t.Run("next step does not fit the workday", func(t *testing.T) {
		b := testBooking()
		b.TimeStart = time.Date(2025, 3, 10, 18, 0, 0, 0, msk)
		b.TimeEnd = time.Date(2025, 3, 10, 19, 0, 0, 0, msk)
		now := b.TimeEnd.Add(-5 * time.Minute)
		assert.False(t, rules.MayOfferExtension(now, b, false))
	})

	t.Run("last step exactly fits", func(t *testing.T) {
		b := testBooking()
		b.TimeStart = time.Date(2025, 3, 10, 17, 30, 0, 0, msk)
		b.TimeEnd = time.Date(2025, 3, 10, 18, 30, 0, 0, msk)
		now := b.TimeEnd.Add(-5 * time.Minute)
		assert.True(t, rules.MayOfferExtension(now, b, false))
	})

	t.Run("planned booking gets no offer", func(t *testing.T) {
		b := testBooking()
		now := b.TimeStart.Add(-time.Hour)
		assert.False(t, rules.MayOfferExtension(now, b, false))
	})
}
