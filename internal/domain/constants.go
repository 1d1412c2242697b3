package domain

// Форматы времени
const (
	TimeFormat      = "15:04"            // HH:MM
	DateFormat      = "2006-01-02"       // YYYY-MM-DD
	TimestampFormat = "2006-01-02 15:04" // для сообщений пользователю
)

// IntervalFormat собирает отображаемый интервал "HH:MM-HH:MM"
const IntervalSeparator = "-"
