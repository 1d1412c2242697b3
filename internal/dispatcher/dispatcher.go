package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wsb-platform/booking-service/internal/domain"
	bookingstorage "github.com/wsb-platform/booking-service/internal/infra/storage/booking"
	"github.com/wsb-platform/booking-service/internal/service/notifypolicy"
	"github.com/wsb-platform/booking-service/pkg/metrics"
)

// Config параметры цикла диспетчера
type Config struct {
	Interval       time.Duration
	BatchSize      int
	StuckThreshold time.Duration
	ConfirmGrace   time.Duration
	// MaxAttempts число повторов после первой неудачной отправки:
	// всего строка доставляется до 1+MaxAttempts раз, по одному
	// интервалу Backoff на каждый повтор
	MaxAttempts int
	Backoff     []time.Duration
}

// DefaultBackoff интервалы повторов по номеру попытки
var DefaultBackoff = []time.Duration{time.Minute, 5 * time.Minute, 30 * time.Minute}

// Dispatcher цикл доставки уведомлений. Забирает созревшие строки
// расписания, перепроверяет их уместность по текущему состоянию
// бронирования и отправляет через адаптеры каналов. Успешное
// START-уведомление взводит авто-отмену неподтвержденного начала.
type Dispatcher struct {
	scheduleStore  ScheduleStore
	bookingStore   BookingStore
	userStore      UserStore
	equipmentStore EquipmentStore
	core           BookingCore
	adapters       map[domain.NotificationChannel]Adapter
	timers         *Timers
	clock          Clock
	rules          notifypolicy.Rules
	cfg            Config
	metrics        *metrics.Metrics
	logger         Logger
}

// New создает диспетчер уведомлений
func New(
	scheduleStore ScheduleStore,
	bookingStore BookingStore,
	userStore UserStore,
	equipmentStore EquipmentStore,
	core BookingCore,
	adapters map[domain.NotificationChannel]Adapter,
	clock Clock,
	rules notifypolicy.Rules,
	cfg Config,
	m *metrics.Metrics,
	logger Logger,
) *Dispatcher {
	if len(cfg.Backoff) == 0 {
		cfg.Backoff = DefaultBackoff
	}
	return &Dispatcher{
		scheduleStore:  scheduleStore,
		bookingStore:   bookingStore,
		userStore:      userStore,
		equipmentStore: equipmentStore,
		core:           core,
		adapters:       adapters,
		timers:         NewTimers(),
		clock:          clock,
		rules:          rules,
		cfg:            cfg,
		metrics:        m,
		logger:         logger,
	}
}

// Run крутит цикл доставки до отмены контекста. Начатая пачка
// дорабатывается до конца, после чего таймеры снимаются.
func (d *Dispatcher) Run(ctx context.Context) {
	d.logger.Info("Dispatcher: started, interval=%s, batch=%d", d.cfg.Interval, d.cfg.BatchSize)

	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.timers.StopAll()
			d.logger.Info("Dispatcher: stopped")
			return
		case <-ticker.C:
			d.Tick(ctx)
		}
	}
}

// Tick одна итерация цикла: добор просроченных подтверждений, возврат
// зависших строк и доставка созревшей пачки
func (d *Dispatcher) Tick(ctx context.Context) {
	now := d.clock.Now()

	d.sweepExpiredConfirms(ctx, now)

	if reset, err := d.scheduleStore.ResetStuck(ctx, d.cfg.StuckThreshold, now); err != nil {
		d.logger.Error("Dispatcher: reset stuck entries: %v", err)
	} else if reset > 0 {
		d.logger.Warn("Dispatcher: returned %d stuck entries to pending", reset)
	}

	entries, err := d.scheduleStore.ClaimDue(ctx, d.cfg.BatchSize, now)
	if err != nil {
		d.logger.Error("Dispatcher: claim due entries: %v", err)
		return
	}

	for _, entry := range entries {
		d.process(ctx, entry)
	}
}

// sweepExpiredConfirms добирает бронирования с прошедшим дедлайном
// подтверждения: страховка на случай потери таймеров при перезапуске
func (d *Dispatcher) sweepExpiredConfirms(ctx context.Context, now time.Time) {
	ids, err := d.bookingStore.GetUnconfirmedExpired(ctx, now)
	if err != nil {
		d.logger.Error("Dispatcher: get expired confirmations: %v", err)
		return
	}

	for _, id := range ids {
		d.autoCancel(ctx, id)
	}
}

func (d *Dispatcher) autoCancel(ctx context.Context, bookingID int64) {
	d.timers.Disarm(bookingID)

	cancelled, err := d.core.AutoCancel(ctx, bookingID)
	if err != nil {
		d.logger.Error("Dispatcher: auto-cancel booking id=%d: %v", bookingID, err)
		return
	}
	if cancelled {
		if d.metrics != nil {
			d.metrics.AutoCancelTotal.Inc()
		}
		d.logger.Warn("Dispatcher: booking id=%d auto-cancelled, start was not confirmed", bookingID)
	}
}

// process доставляет одну строку расписания
func (d *Dispatcher) process(ctx context.Context, entry *domain.ScheduleEntry) {
	// extend_offer остался от раздельной доставки предложений продления;
	// теперь предложение едет внутри END-уведомления
	if entry.Event == domain.EventExtendOffer {
		d.markStale(ctx, entry, "extend offers ride on end notifications")
		return
	}

	b, err := d.bookingStore.GetByID(ctx, entry.BookingID)
	if err != nil {
		if errors.Is(err, bookingstorage.ErrBookingNotFound) {
			d.markStale(ctx, entry, "booking no longer exists")
			return
		}
		d.retryOrFail(ctx, entry, fmt.Errorf("get booking: %w", err))
		return
	}

	now := d.clock.Now()
	if reason, stale := d.staleReason(now, entry, b); stale {
		d.markStale(ctx, entry, reason)
		return
	}

	n, err := d.buildNotification(ctx, entry, b, now)
	if err != nil {
		d.retryOrFail(ctx, entry, err)
		return
	}

	adapter, ok := d.adapters[entry.Channel]
	if !ok {
		d.fail(ctx, entry, fmt.Errorf("no adapter for channel %q", entry.Channel))
		return
	}

	if err := adapter.Send(ctx, n); err != nil {
		if errors.Is(err, ErrPermanent) {
			d.fail(ctx, entry, err)
			if entry.Channel == domain.ChannelChat {
				// чат недоступен навсегда: пользователя больше не беспокоим
				if derr := d.userStore.Deactivate(ctx, n.User.ID); derr != nil {
					d.logger.Error("Dispatcher: deactivate user id=%d: %v", n.User.ID, derr)
				} else {
					d.logger.Warn("Dispatcher: user id=%d deactivated, chat unreachable", n.User.ID)
				}
			}
			return
		}
		d.retryOrFail(ctx, entry, err)
		return
	}

	// подтверждение запрашивается только в чате; бронирование без
	// чат-канала считается подтверждённым неявно
	if entry.Event == domain.EventStart && entry.Channel == domain.ChannelChat {
		d.armConfirmation(ctx, b, now)
	}

	if err := d.scheduleStore.MarkDone(ctx, entry.ID, nil); err != nil {
		d.logger.Error("Dispatcher: mark entry id=%d done: %v", entry.ID, err)
		return
	}

	if d.metrics != nil {
		d.metrics.NotificationsSent.WithLabelValues(string(entry.Event), string(entry.Channel)).Inc()
	}
	d.logger.Info("Dispatcher: sent %s/%s for booking id=%d", entry.Event, entry.Channel, entry.BookingID)
}

// NotifyCancelled сообщает владельцу о принудительной отмене его
// бронирования администратором. Доставка идет мимо расписания: событие
// уже случилось и откладывать его некуда. Канал выбирается как чат,
// при его отсутствии почта; без каналов уведомление пропускается.
func (d *Dispatcher) NotifyCancelled(ctx context.Context, b *domain.Booking) error {
	u, err := d.userStore.GetByID(ctx, b.UserID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	eq, err := d.equipmentStore.GetByID(ctx, b.EquipmentID)
	if err != nil {
		return fmt.Errorf("get equipment: %w", err)
	}

	channel := domain.ChannelChat
	if !u.HasChatChannel() {
		if !u.HasEmail() {
			d.logger.Warn("Dispatcher: booking id=%d cancelled, owner id=%d has no channels", b.ID, u.ID)
			return nil
		}
		channel = domain.ChannelEmail
	}

	adapter, ok := d.adapters[channel]
	if !ok {
		return fmt.Errorf("no adapter for channel %q", channel)
	}

	n := &Notification{Booking: b, User: u, Equipment: eq, Event: domain.EventCancelled}
	if err := adapter.Send(ctx, n); err != nil {
		return fmt.Errorf("send cancel notice: %w", err)
	}

	d.logger.Info("Dispatcher: sent %s/%s for booking id=%d", domain.EventCancelled, channel, b.ID)
	return nil
}

// staleReason проверяет, имеет ли уведомление еще смысл
func (d *Dispatcher) staleReason(now time.Time, entry *domain.ScheduleEntry, b *domain.Booking) (string, bool) {
	switch entry.Event {
	case domain.EventStart:
		if !d.rules.ValidForStartNotification(now, b) {
			return fmt.Sprintf("booking is %s, start reminder is meaningless", b.Status(now)), true
		}
	case domain.EventEnd:
		if !d.rules.ValidForEndNotification(now, b) {
			return fmt.Sprintf("booking is %s, end reminder is meaningless", b.Status(now)), true
		}
	}
	return "", false
}

// buildNotification собирает данные для адаптера
func (d *Dispatcher) buildNotification(ctx context.Context, entry *domain.ScheduleEntry, b *domain.Booking, now time.Time) (*Notification, error) {
	u, err := d.userStore.GetByID(ctx, b.UserID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	eq, err := d.equipmentStore.GetByID(ctx, b.EquipmentID)
	if err != nil {
		return nil, fmt.Errorf("get equipment: %w", err)
	}

	n := &Notification{
		Booking:   b,
		User:      u,
		Equipment: eq,
		Event:     entry.Event,
	}

	switch entry.Event {
	case domain.EventStart:
		if entry.Channel == domain.ChannelChat {
			n.ConfirmDeadline = now.Add(d.cfg.ConfirmGrace)
		}
	case domain.EventEnd:
		conflicts, err := d.bookingStore.GetConflicts(ctx, b.EquipmentID, b.TimeEnd, b.TimeEnd.Add(d.rules.Step), &b.ID)
		if err != nil {
			return nil, fmt.Errorf("get tail conflicts: %w", err)
		}
		n.OfferExtension = d.rules.MayOfferExtension(now, b, len(conflicts) > 0)
	}

	return n, nil
}

// armConfirmation записывает дедлайн подтверждения и взводит таймер
// авто-отмены. Таймер работает на фоновом контексте: его срабатывание
// не должно зависеть от жизни контекста пачки.
func (d *Dispatcher) armConfirmation(ctx context.Context, b *domain.Booking, now time.Time) {
	deadline := now.Add(d.cfg.ConfirmGrace)
	if err := d.bookingStore.SetConfirmDeadline(ctx, b.ID, deadline); err != nil {
		d.logger.Error("Dispatcher: set confirm deadline for booking id=%d: %v", b.ID, err)
		return
	}

	bookingID := b.ID
	d.timers.Arm(bookingID, d.cfg.ConfirmGrace, func() {
		d.autoCancel(context.Background(), bookingID)
	})
	d.logger.Info("Dispatcher: booking id=%d must be confirmed before %s", bookingID, deadline.Format(domain.TimestampFormat))
}

// markStale закрывает строку без отправки
func (d *Dispatcher) markStale(ctx context.Context, entry *domain.ScheduleEntry, reason string) {
	if err := d.scheduleStore.MarkDone(ctx, entry.ID, &reason); err != nil {
		d.logger.Error("Dispatcher: mark entry id=%d stale: %v", entry.ID, err)
		return
	}
	if d.metrics != nil {
		d.metrics.NotificationsStale.WithLabelValues(string(entry.Event), string(entry.Channel)).Inc()
	}
	d.logger.Info("Dispatcher: dropped stale %s/%s for booking id=%d: %s", entry.Event, entry.Channel, entry.BookingID, reason)
}

// retryOrFail переносит строку на следующую попытку либо закрывает
// её как failed, когда попытки исчерпаны
func (d *Dispatcher) retryOrFail(ctx context.Context, entry *domain.ScheduleEntry, cause error) {
	if entry.Attempts >= d.cfg.MaxAttempts {
		d.fail(ctx, entry, fmt.Errorf("attempts exhausted: %w", cause))
		return
	}

	idx := entry.Attempts
	if idx >= len(d.cfg.Backoff) {
		idx = len(d.cfg.Backoff) - 1
	}
	runAt := d.clock.Now().Add(d.cfg.Backoff[idx])

	if err := d.scheduleStore.Reschedule(ctx, entry.ID, runAt, cause.Error()); err != nil {
		d.logger.Error("Dispatcher: reschedule entry id=%d: %v", entry.ID, err)
		return
	}
	d.logger.Warn("Dispatcher: entry id=%d retry %d at %s: %v", entry.ID, entry.Attempts+1, runAt.Format(domain.TimestampFormat), cause)
}

func (d *Dispatcher) fail(ctx context.Context, entry *domain.ScheduleEntry, cause error) {
	if err := d.scheduleStore.MarkFailed(ctx, entry.ID, cause.Error()); err != nil {
		d.logger.Error("Dispatcher: mark entry id=%d failed: %v", entry.ID, err)
		return
	}
	if d.metrics != nil {
		d.metrics.NotificationsFailed.WithLabelValues(string(entry.Event), string(entry.Channel)).Inc()
	}
	d.logger.Error("Dispatcher: entry id=%d failed permanently: %v", entry.ID, cause)
}
