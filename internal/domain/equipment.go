package domain

import "time"

// Equipment единица оборудования, на которую делаются бронирования
type Equipment struct {
	ID        int64
	Name      string
	Category  *string
	Note      *string
	CreatedAt time.Time
}
