package email

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomail "gopkg.in/gomail.v2"

	"github.com/wsb-platform/booking-service/internal/dispatcher"
	"github.com/wsb-platform/booking-service/internal/domain"
	"github.com/wsb-platform/booking-service/pkg/ptr"
)

type mockSender struct {
	sent []*gomail.Message
	err  error
}

func (m *mockSender) DialAndSend(msgs ...*gomail.Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msgs...)
	return nil
}

type nopLogger struct{}

func (nopLogger) Info(format string, v ...interface{})  {}
func (nopLogger) Warn(format string, v ...interface{})  {}
func (nopLogger) Error(format string, v ...interface{}) {}

var msk = time.FixedZone("MSK", 3*60*60)

func notification(event domain.NotificationEvent) *dispatcher.Notification {
	return &dispatcher.Notification{
		Booking: &domain.Booking{
			ID: 42, UserID: 1, EquipmentID: 5,
			TimeStart:    time.Date(2026, 3, 10, 12, 0, 0, 0, msk),
			TimeEnd:      time.Date(2026, 3, 10, 14, 0, 0, 0, msk),
			TimeInterval: "12:00-14:00",
		},
		User: &domain.User{
			ID: 1, DisplayName: "Мастер",
			Email: ptr.Ptr("master@example.com"), IsActive: true,
		},
		Equipment:       &domain.Equipment{ID: 5, Name: "Швейная машина"},
		Event:           event,
		ConfirmDeadline: time.Date(2026, 3, 10, 11, 35, 0, 0, msk),
	}
}

func TestSend_StartNotification(t *testing.T) {
	sender := &mockSender{}
	adapter := NewWithSender(sender, "noreply@example.com", nopLogger{})

	require.NoError(t, adapter.Send(context.Background(), notification(domain.EventStart)))
	require.Len(t, sender.sent, 1)

	m := sender.sent[0]
	assert.Equal(t, []string{"noreply@example.com"}, m.GetHeader("From"))
	assert.Equal(t, []string{"master@example.com"}, m.GetHeader("To"))
	assert.Contains(t, m.GetHeader("Subject")[0], "Швейная машина")
}

func TestSend_CancelledNotification(t *testing.T) {
	sender := &mockSender{}
	adapter := NewWithSender(sender, "noreply@example.com", nopLogger{})

	require.NoError(t, adapter.Send(context.Background(), notification(domain.EventCancelled)))
	require.Len(t, sender.sent, 1)

	subject := sender.sent[0].GetHeader("Subject")[0]
	assert.Contains(t, subject, "отменено")
	assert.Contains(t, subject, "Швейная машина")
}

func TestSend_NoEmailIsPermanent(t *testing.T) {
	adapter := NewWithSender(&mockSender{}, "noreply@example.com", nopLogger{})

	n := notification(domain.EventStart)
	n.User.Email = nil
	err := adapter.Send(context.Background(), n)
	assert.ErrorIs(t, err, dispatcher.ErrPermanent)
}

func TestSend_SMTPFailureIsTransient(t *testing.T) {
	sender := &mockSender{err: errors.New("dial tcp: connection refused")}
	adapter := NewWithSender(sender, "noreply@example.com", nopLogger{})

	err := adapter.Send(context.Background(), notification(domain.EventEnd))
	require.Error(t, err)
	assert.NotErrorIs(t, err, dispatcher.ErrPermanent)
}
