package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/wsb-platform/booking-service/pkg/types"
)

// ErrInvalidConfig возвращается при некорректной конфигурации
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config конфигурация сервиса: config.toml + переопределения из окружения
type Config struct {
	Server     ServerConfig     `toml:"server"`
	Database   DatabaseConfig   `toml:"database"`
	Logs       LogsConfig       `toml:"logs"`
	Metrics    MetricsConfig    `toml:"metrics"`
	Booking    BookingConfig    `toml:"booking"`
	Telegram   TelegramConfig   `toml:"telegram"`
	Email      EmailConfig      `toml:"email"`
	Dispatcher DispatcherConfig `toml:"dispatcher"`
}

// ServerConfig настройки HTTP-сервера
type ServerConfig struct {
	HTTPPort        int `toml:"http_port"`
	ReadTimeout     int `toml:"read_timeout"`
	WriteTimeout    int `toml:"write_timeout"`
	IdleTimeout     int `toml:"idle_timeout"`
	ShutdownTimeout int `toml:"shutdown_timeout"`
}

// DatabaseConfig настройки подключения к PostgreSQL
type DatabaseConfig struct {
	Host            string `toml:"host"`
	Port            int    `toml:"port"`
	User            string `toml:"user"`
	Password        string `toml:"password"`
	DBName          string `toml:"dbname"`
	SSLMode         string `toml:"sslmode"`
	MaxOpenConns    int    `toml:"max_open_conns"`
	MaxIdleConns    int    `toml:"max_idle_conns"`
	ConnMaxLifetime int    `toml:"conn_max_lifetime"`
}

// DSN возвращает строку подключения к PostgreSQL
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// LogsConfig настройки логирования
type LogsConfig struct {
	File  string `toml:"file"`
	Level string `toml:"level"`
}

// MetricsConfig настройки Prometheus-метрик
type MetricsConfig struct {
	Enabled     bool   `toml:"enabled"`
	Path        string `toml:"path"`
	ServiceName string `toml:"service_name"`
}

// BookingConfig правила бронирования: часовой пояс оператора, рабочее окно,
// шаг сетки и пороги уведомлений
type BookingConfig struct {
	Timezone                 string `toml:"timezone"`
	WorkStart                string `toml:"work_start"`
	WorkEnd                  string `toml:"work_end"`
	StepMinutes              int    `toml:"step_minutes"`
	MaxDurationHours         int    `toml:"max_duration_hours"`
	NotifyBeforeStartMinutes int    `toml:"notify_before_start_minutes"`
	NotifyBeforeEndMinutes   int    `toml:"notify_before_end_minutes"`
	ConfirmGraceSeconds      int    `toml:"confirm_grace_seconds"`
}

// Location возвращает часовой пояс оператора
func (c BookingConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// WorkStartTime возвращает начало рабочего окна
func (c BookingConfig) WorkStartTime() types.TimeString {
	return types.TimeString(c.WorkStart)
}

// WorkEndTime возвращает конец рабочего окна
func (c BookingConfig) WorkEndTime() types.TimeString {
	return types.TimeString(c.WorkEnd)
}

// Step возвращает шаг сетки слотов
func (c BookingConfig) Step() time.Duration {
	return time.Duration(c.StepMinutes) * time.Minute
}

// MaxDuration возвращает максимальную длительность бронирования
func (c BookingConfig) MaxDuration() time.Duration {
	return time.Duration(c.MaxDurationHours) * time.Hour
}

// NotifyBeforeStart возвращает порог напоминания о начале
func (c BookingConfig) NotifyBeforeStart() time.Duration {
	return time.Duration(c.NotifyBeforeStartMinutes) * time.Minute
}

// NotifyBeforeEnd возвращает порог напоминания об окончании
func (c BookingConfig) NotifyBeforeEnd() time.Duration {
	return time.Duration(c.NotifyBeforeEndMinutes) * time.Minute
}

// ConfirmGrace возвращает окно подтверждения начала
func (c BookingConfig) ConfirmGrace() time.Duration {
	return time.Duration(c.ConfirmGraceSeconds) * time.Second
}

// TelegramConfig настройки чат-адаптера
type TelegramConfig struct {
	Enabled bool   `toml:"enabled"`
	Token   string `toml:"token"`
}

// EmailConfig настройки почтового адаптера.
// Выключенный адаптер работает как заглушка и всегда «успешен».
type EmailConfig struct {
	Enabled      bool   `toml:"enabled"`
	SMTPHost     string `toml:"smtp_host"`
	SMTPPort     int    `toml:"smtp_port"`
	SMTPUser     string `toml:"smtp_user"`
	SMTPPassword string `toml:"smtp_password"`
	From         string `toml:"from"`
}

// DispatcherConfig настройки воркера уведомлений
type DispatcherConfig struct {
	TickSeconds           int `toml:"tick_seconds"`
	BatchSize             int `toml:"batch_size"`
	StuckThresholdMinutes int `toml:"stuck_threshold_minutes"`
}

// Tick возвращает период опроса расписания
func (c DispatcherConfig) Tick() time.Duration {
	return time.Duration(c.TickSeconds) * time.Second
}

// StuckThreshold возвращает порог, после которого PROCESSING-строка
// считается брошенной
func (c DispatcherConfig) StuckThreshold() time.Duration {
	return time.Duration(c.StuckThresholdMinutes) * time.Minute
}

// Load читает config.toml, применяет переопределения из переменных окружения
// и валидирует результат
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("%w: failed to parse %s: %v", ErrInvalidConfig, path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:        8080,
			ReadTimeout:     10,
			WriteTimeout:    10,
			IdleTimeout:     60,
			ShutdownTimeout: 15,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			User:            "postgres",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 300,
		},
		Logs: LogsConfig{Level: "info"},
		Metrics: MetricsConfig{
			Path:        "/metrics",
			ServiceName: "booking-service",
		},
		Booking: BookingConfig{
			Timezone:                 "Europe/Moscow",
			WorkStart:                "09:00",
			WorkEnd:                  "19:00",
			StepMinutes:              30,
			MaxDurationHours:         12,
			NotifyBeforeStartMinutes: 15,
			NotifyBeforeEndMinutes:   10,
			ConfirmGraceSeconds:      300,
		},
		Dispatcher: DispatcherConfig{
			TickSeconds:           15,
			BatchSize:             50,
			StuckThresholdMinutes: 10,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	setString(&cfg.Booking.Timezone, "TIMEZONE")
	setString(&cfg.Booking.WorkStart, "WORK_START")
	setString(&cfg.Booking.WorkEnd, "WORK_END")
	setInt(&cfg.Booking.StepMinutes, "STEP_MINUTES")
	setInt(&cfg.Booking.MaxDurationHours, "MAX_DURATION_HOURS")
	setInt(&cfg.Booking.NotifyBeforeStartMinutes, "NOTIFY_BEFORE_START_MINUTES")
	setInt(&cfg.Booking.NotifyBeforeEndMinutes, "NOTIFY_BEFORE_END_MINUTES")
	setInt(&cfg.Booking.ConfirmGraceSeconds, "CONFIRM_GRACE_SECONDS")

	setBool(&cfg.Telegram.Enabled, "TELEGRAM_ENABLED")
	setString(&cfg.Telegram.Token, "TELEGRAM_TOKEN")

	setBool(&cfg.Email.Enabled, "EMAIL_ENABLED")
	setString(&cfg.Email.SMTPHost, "SMTP_HOST")
	setInt(&cfg.Email.SMTPPort, "SMTP_PORT")
	setString(&cfg.Email.SMTPUser, "SMTP_USER")
	setString(&cfg.Email.SMTPPassword, "SMTP_PASSWORD")
	setString(&cfg.Email.From, "SMTP_FROM")

	setString(&cfg.Database.Host, "DB_HOST")
	setInt(&cfg.Database.Port, "DB_PORT")
	setString(&cfg.Database.User, "DB_USER")
	setString(&cfg.Database.Password, "DB_PASSWORD")
	setString(&cfg.Database.DBName, "DB_NAME")
	setString(&cfg.Database.SSLMode, "DB_SSLMODE")
}

func (c *Config) validate() error {
	if _, err := c.Booking.Location(); err != nil {
		return fmt.Errorf("%w: unknown timezone %q", ErrInvalidConfig, c.Booking.Timezone)
	}

	workStart := c.Booking.WorkStartTime()
	workEnd := c.Booking.WorkEndTime()
	if err := workStart.Validate(); err != nil {
		return fmt.Errorf("%w: work_start: %v", ErrInvalidConfig, err)
	}
	if err := workEnd.Validate(); err != nil {
		return fmt.Errorf("%w: work_end: %v", ErrInvalidConfig, err)
	}
	if !workStart.IsBefore(workEnd) {
		return fmt.Errorf("%w: work_start %s must be before work_end %s", ErrInvalidConfig, workStart, workEnd)
	}

	if c.Booking.StepMinutes <= 0 || (24*60)%c.Booking.StepMinutes != 0 {
		return fmt.Errorf("%w: step_minutes %d must be positive and divide the day", ErrInvalidConfig, c.Booking.StepMinutes)
	}
	if c.Booking.MaxDurationHours <= 0 {
		return fmt.Errorf("%w: max_duration_hours must be positive", ErrInvalidConfig)
	}
	if c.Booking.NotifyBeforeStartMinutes < 0 || c.Booking.NotifyBeforeEndMinutes < 0 {
		return fmt.Errorf("%w: notify thresholds must be non-negative", ErrInvalidConfig)
	}
	if c.Booking.ConfirmGraceSeconds < 0 {
		return fmt.Errorf("%w: confirm_grace_seconds must be non-negative", ErrInvalidConfig)
	}

	if c.Email.Enabled && (c.Email.SMTPHost == "" || c.Email.SMTPPort == 0 || c.Email.From == "") {
		return fmt.Errorf("%w: email enabled but smtp host/port/from are not set", ErrInvalidConfig)
	}
	if c.Telegram.Enabled && c.Telegram.Token == "" {
		return fmt.Errorf("%w: telegram enabled but token is not set", ErrInvalidConfig)
	}

	return nil
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func setInt(dst *int, env string) {
	if v := os.Getenv(env); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			*dst = parsed
		}
	}
}

func setBool(dst *bool, env string) {
	if v := os.Getenv(env); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			*dst = parsed
		}
	}
}
