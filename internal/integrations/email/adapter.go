// Package email адаптер почтового канала уведомлений поверх SMTP.
package email

import (
	"context"
	"fmt"

	gomail "gopkg.in/gomail.v2"

	"github.com/wsb-platform/booking-service/internal/dispatcher"
	"github.com/wsb-platform/booking-service/internal/domain"
)

// Sender часть gomail, используемая адаптером
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// Logger интерфейс для логирования
type Logger interface {
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}

// Config параметры SMTP
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Adapter отправляет уведомления на почту пользователя. SMTP не дает
// надежного признака постоянной ошибки, поэтому все сбои считаются
// временными и уходят в повторы диспетчера.
type Adapter struct {
	dialer Sender
	from   string
	logger Logger
}

// New создает почтовый адаптер
func New(cfg Config, logger Logger) *Adapter {
	return &Adapter{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
		logger: logger,
	}
}

// NewWithSender создает адаптер с готовым отправителем; используется в тестах
func NewWithSender(sender Sender, from string, logger Logger) *Adapter {
	return &Adapter{dialer: sender, from: from, logger: logger}
}

// Send доставляет одно уведомление
func (a *Adapter) Send(ctx context.Context, n *dispatcher.Notification) error {
	if n.User.Email == nil || *n.User.Email == "" {
		return fmt.Errorf("%w: user id=%d has no email", dispatcher.ErrPermanent, n.User.ID)
	}

	subject, body := a.compose(n)

	m := gomail.NewMessage()
	m.SetHeader("From", a.from)
	m.SetHeader("To", *n.User.Email)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := a.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("email: send to %s: %w", *n.User.Email, err)
	}

	return nil
}

func (a *Adapter) compose(n *dispatcher.Notification) (string, string) {
	switch n.Event {
	case domain.EventStart:
		subject := fmt.Sprintf("Скоро начало бронирования: %s", n.Equipment.Name)
		body := fmt.Sprintf(
			"Здравствуйте, %s!\n\n"+
				"Ваше бронирование «%s» начинается в %s.\n",
			n.User.DisplayName,
			n.Equipment.Name,
			n.Booking.TimeStart.Format(domain.TimeFormat),
		)
		return subject, body
	case domain.EventEnd:
		subject := fmt.Sprintf("Бронирование заканчивается: %s", n.Equipment.Name)
		body := fmt.Sprintf(
			"Здравствуйте, %s!\n\n"+
				"Ваше бронирование «%s» (%s) скоро заканчивается.\n",
			n.User.DisplayName,
			n.Equipment.Name,
			n.Booking.TimeInterval,
		)
		if n.OfferExtension {
			body += "Следующий слот свободен, бронирование можно продлить.\n"
		}
		return subject, body
	case domain.EventCancelled:
		subject := fmt.Sprintf("Бронирование отменено: %s", n.Equipment.Name)
		body := fmt.Sprintf(
			"Здравствуйте, %s!\n\n"+
				"Ваше бронирование «%s» (%s) отменено администратором.\n",
			n.User.DisplayName,
			n.Equipment.Name,
			n.Booking.TimeInterval,
		)
		return subject, body
	default:
		subject := fmt.Sprintf("Уведомление по бронированию №%d", n.Booking.ID)
		return subject, fmt.Sprintf("Бронирование №%d, %s.\n", n.Booking.ID, n.Booking.TimeInterval)
	}
}
