package domain

import "time"

// NotificationChannel канал доставки уведомления
type NotificationChannel string

const (
	ChannelChat  NotificationChannel = "chat"
	ChannelEmail NotificationChannel = "email"
)

// NotificationEvent событие, о котором уведомляем
type NotificationEvent string

const (
	EventStart       NotificationEvent = "start"
	EventEnd         NotificationEvent = "end"
	EventExtendOffer NotificationEvent = "extend_offer"

	// EventCancelled доставляется сразу, минуя расписание
	EventCancelled NotificationEvent = "cancelled"
)

// EntryStatus статус строки расписания уведомлений
type EntryStatus string

const (
	EntryPending    EntryStatus = "pending"
	EntryProcessing EntryStatus = "processing"
	EntryDone       EntryStatus = "done"
	EntryFailed     EntryStatus = "failed"
)

// ScheduleEntry строка расписания уведомлений: намерение доставить одно
// уведомление по одному бронированию в один канал. Для пары
// (booking, channel, event) существует не более одной pending/processing строки.
type ScheduleEntry struct {
	ID        int64
	BookingID int64
	Channel   NotificationChannel
	Event     NotificationEvent
	RunAt     time.Time
	Status    EntryStatus
	Attempts  int
	Payload   *string
	LastError *string
	CreatedAt time.Time
	UpdatedAt time.Time
}
