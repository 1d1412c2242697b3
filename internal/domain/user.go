package domain

import "time"

// User пользователь системы. ID выдается чат-платформой при первом контакте.
type User struct {
	ID          int64
	DisplayName string
	Email       *string
	ChatID      *int64 // ID чата для уведомлений; nil - чат-канал не привязан
	IsAdmin     bool
	IsBlocked   bool
	IsActive    bool
	CreatedAt   time.Time
}

// CanBook возвращает true, если пользователю разрешены мутации бронирований
func (u *User) CanBook() bool {
	return u.IsActive && !u.IsBlocked
}

// HasChatChannel возвращает true, если пользователю можно писать в чат
func (u *User) HasChatChannel() bool {
	return u.ChatID != nil
}

// HasEmail возвращает true, если у пользователя указана почта
func (u *User) HasEmail() bool {
	return u.Email != nil && *u.Email != ""
}
