// Package telegram адаптер чат-канала уведомлений поверх Telegram Bot API.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/wsb-platform/booking-service/internal/dispatcher"
	"github.com/wsb-platform/booking-service/internal/domain"
)

// BotAPI часть tgbotapi.BotAPI, используемая адаптером
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Logger интерфейс для логирования
type Logger interface {
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}

// Adapter отправляет уведомления в чат пользователя. Тексты и кнопки
// собираются здесь, решения о том, что и когда отправлять, принимает
// диспетчер.
type Adapter struct {
	bot    BotAPI
	logger Logger
}

// New создает Telegram-адаптер
func New(bot BotAPI, logger Logger) *Adapter {
	return &Adapter{bot: bot, logger: logger}
}

// Send доставляет одно уведомление. Блокировка бота пользователем
// возвращается как постоянная ошибка: повторять отправку бессмысленно.
func (a *Adapter) Send(ctx context.Context, n *dispatcher.Notification) error {
	if n.User.ChatID == nil {
		return fmt.Errorf("%w: user id=%d has no chat", dispatcher.ErrPermanent, n.User.ID)
	}

	msg := tgbotapi.NewMessage(*n.User.ChatID, a.text(n))
	if markup, ok := a.keyboard(n); ok {
		msg.ReplyMarkup = markup
	}

	if _, err := a.bot.Send(msg); err != nil {
		var apiErr *tgbotapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == 403 {
			return fmt.Errorf("%w: chat id=%d: %v", dispatcher.ErrPermanent, *n.User.ChatID, err)
		}
		return fmt.Errorf("telegram: send to chat id=%d: %w", *n.User.ChatID, err)
	}

	return nil
}

func (a *Adapter) text(n *dispatcher.Notification) string {
	var sb strings.Builder

	switch n.Event {
	case domain.EventStart:
		sb.WriteString("⏰ Скоро начало вашего бронирования!\n\n")
		sb.WriteString(fmt.Sprintf("Оборудование: %s\n", n.Equipment.Name))
		sb.WriteString(fmt.Sprintf("Время: %s\n\n", n.Booking.TimeInterval))
		sb.WriteString(fmt.Sprintf("Подтвердите начало работы до %s, иначе бронирование будет отменено.", n.ConfirmDeadline.Format(domain.TimeFormat)))
	case domain.EventEnd:
		sb.WriteString("⌛ Ваше бронирование скоро заканчивается.\n\n")
		sb.WriteString(fmt.Sprintf("Оборудование: %s\n", n.Equipment.Name))
		sb.WriteString(fmt.Sprintf("Время: %s\n", n.Booking.TimeInterval))
		if n.OfferExtension {
			sb.WriteString("\nСледующий слот свободен, можно продлить.")
		}
	case domain.EventCancelled:
		sb.WriteString("🚫 Ваше бронирование отменено администратором.\n\n")
		sb.WriteString(fmt.Sprintf("Оборудование: %s\n", n.Equipment.Name))
		sb.WriteString(fmt.Sprintf("Время: %s", n.Booking.TimeInterval))
	default:
		sb.WriteString(fmt.Sprintf("Уведомление по бронированию №%d (%s)", n.Booking.ID, n.Booking.TimeInterval))
	}

	return sb.String()
}

func (a *Adapter) keyboard(n *dispatcher.Notification) (tgbotapi.InlineKeyboardMarkup, bool) {
	switch n.Event {
	case domain.EventStart:
		return tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("✅ Подтвердить начало", fmt.Sprintf("confirm_%d", n.Booking.ID)),
				tgbotapi.NewInlineKeyboardButtonData("❌ Отменить", fmt.Sprintf("cancel_%d", n.Booking.ID)),
			),
		), true
	case domain.EventEnd:
		rows := [][]tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("🏁 Завершить", fmt.Sprintf("finish_%d", n.Booking.ID)),
			),
		}
		if n.OfferExtension {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("🔄 Продлить", fmt.Sprintf("extend_%d", n.Booking.ID)),
			))
		}
		return tgbotapi.NewInlineKeyboardMarkup(rows...), true
	}
	return tgbotapi.InlineKeyboardMarkup{}, false
}
