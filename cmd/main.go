package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	cancelBookingHandler "github.com/wsb-platform/booking-service/internal/api/handlers/cancel_booking"
	confirmBookingHandler "github.com/wsb-platform/booking-service/internal/api/handlers/confirm_booking"
	createBookingHandler "github.com/wsb-platform/booking-service/internal/api/handlers/create_booking"
	deleteEquipmentHandler "github.com/wsb-platform/booking-service/internal/api/handlers/delete_equipment"
	extendBookingHandler "github.com/wsb-platform/booking-service/internal/api/handlers/extend_booking"
	finishBookingHandler "github.com/wsb-platform/booking-service/internal/api/handlers/finish_booking"
	getBookingHandler "github.com/wsb-platform/booking-service/internal/api/handlers/get_booking"
	getDaySlotsHandler "github.com/wsb-platform/booking-service/internal/api/handlers/get_day_slots"
	getUserBookingsHandler "github.com/wsb-platform/booking-service/internal/api/handlers/get_user_bookings"
	listEquipmentHandler "github.com/wsb-platform/booking-service/internal/api/handlers/list_equipment"
	"github.com/wsb-platform/booking-service/internal/api/middleware"
	"github.com/wsb-platform/booking-service/internal/config"
	"github.com/wsb-platform/booking-service/internal/dispatcher"
	"github.com/wsb-platform/booking-service/internal/domain"
	bookingRepo "github.com/wsb-platform/booking-service/internal/infra/storage/booking"
	equipmentRepo "github.com/wsb-platform/booking-service/internal/infra/storage/equipment"
	scheduleRepo "github.com/wsb-platform/booking-service/internal/infra/storage/schedule"
	slotRepo "github.com/wsb-platform/booking-service/internal/infra/storage/slot"
	userRepo "github.com/wsb-platform/booking-service/internal/infra/storage/user"
	emailAdapter "github.com/wsb-platform/booking-service/internal/integrations/email"
	telegramAdapter "github.com/wsb-platform/booking-service/internal/integrations/telegram"
	bookingsService "github.com/wsb-platform/booking-service/internal/service/bookings"
	notifschedService "github.com/wsb-platform/booking-service/internal/service/notifsched"
	"github.com/wsb-platform/booking-service/internal/service/notifypolicy"
	slotsService "github.com/wsb-platform/booking-service/internal/service/slots"
	"github.com/wsb-platform/booking-service/pkg/dbmetrics"
	"github.com/wsb-platform/booking-service/pkg/logger"
	"github.com/wsb-platform/booking-service/pkg/metrics"
	"github.com/wsb-platform/booking-service/pkg/txmanager"
)

// noopChatAdapter заглушка чат-канала для окружений без Telegram-токена
type noopChatAdapter struct {
	logger *logger.Logger
}

func (a *noopChatAdapter) Send(ctx context.Context, n *dispatcher.Notification) error {
	a.logger.Info("ChatAdapter(noop): would send %s for booking id=%d to user id=%d", n.Event, n.Booking.ID, n.User.ID)
	return nil
}

func main() {
	// .env удобен при локальной разработке; в проде переменные приходят из окружения
	_ = godotenv.Load()

	cfg, err := config.Load("config.toml")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Logs.File, cfg.Logs.Level)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	log.Info("Starting booking-service...")

	location, err := cfg.Booking.Location()
	if err != nil {
		log.Fatal("Failed to load timezone: %v", err)
	}

	// Метрики
	var metricsCollector *metrics.Metrics
	stopMetricsCh := make(chan struct{})
	if cfg.Metrics.Enabled {
		metricsCollector = metrics.New(cfg.Metrics.ServiceName)
		log.Info("Metrics enabled at %s", cfg.Metrics.Path)
	}

	// База данных
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		log.Fatal("Failed to connect to database: %v", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetime) * time.Second)

	if err := db.Ping(); err != nil {
		log.Fatal("Failed to ping database: %v", err)
	}
	log.Info("Connected to database (host=%s, port=%d, db=%s)",
		cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName)

	// Репозитории: с обёрткой метрик или без
	var executor txmanager.DBExecutor = db
	var beginner txmanager.TxBeginner = db
	if cfg.Metrics.Enabled {
		wrappedDB := dbmetrics.WrapWithDefault(db, metricsCollector, stopMetricsCh)
		executor = wrappedDB
		beginner = wrappedDB
		log.Info("Database metrics collection started")
	}

	bookingRepository := bookingRepo.NewRepository(executor)
	userRepository := userRepo.NewRepository(executor)
	equipmentRepository := equipmentRepo.NewRepository(executor)
	slotRepository := slotRepo.NewRepository(executor)
	scheduleRepository := scheduleRepo.NewRepository(executor)
	txMgr := txmanager.NewTransactionManager(beginner)

	clock := bookingsService.RealClock{}

	// Сервисы
	slotSvc := slotsService.NewService(
		slotRepository,
		bookingRepository,
		equipmentRepository,
		txMgr,
		slotsService.Config{
			Location:  location,
			WorkStart: cfg.Booking.WorkStartTime(),
			WorkEnd:   cfg.Booking.WorkEndTime(),
			Step:      cfg.Booking.Step(),
		},
		log,
	)

	scheduleSvc := notifschedService.NewService(
		bookingRepository,
		userRepository,
		scheduleRepository,
		txMgr,
		clock,
		notifschedService.Config{
			NotifyBeforeStart: cfg.Booking.NotifyBeforeStart(),
			NotifyBeforeEnd:   cfg.Booking.NotifyBeforeEnd(),
			EmailEnabled:      cfg.Email.Enabled,
		},
		log,
	)

	bookingSvc := bookingsService.NewService(
		bookingRepository,
		userRepository,
		slotSvc,
		scheduleSvc,
		txMgr,
		clock,
		bookingsService.Config{
			Location:    location,
			WorkStart:   cfg.Booking.WorkStartTime(),
			WorkEnd:     cfg.Booking.WorkEndTime(),
			Step:        cfg.Booking.Step(),
			MaxDuration: cfg.Booking.MaxDuration(),
		},
		log,
	)

	// Адаптеры каналов
	adapters := map[domain.NotificationChannel]dispatcher.Adapter{}

	if cfg.Telegram.Enabled {
		bot, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
		if err != nil {
			log.Fatal("Failed to initialize Telegram bot: %v", err)
		}
		adapters[domain.ChannelChat] = telegramAdapter.New(bot, log)
		log.Info("Telegram adapter initialized (bot=%s)", bot.Self.UserName)
	} else {
		adapters[domain.ChannelChat] = &noopChatAdapter{logger: log}
		log.Warn("Telegram disabled, chat notifications are logged only")
	}

	if cfg.Email.Enabled {
		adapters[domain.ChannelEmail] = emailAdapter.New(emailAdapter.Config{
			Host:     cfg.Email.SMTPHost,
			Port:     cfg.Email.SMTPPort,
			Username: cfg.Email.SMTPUser,
			Password: cfg.Email.SMTPPassword,
			From:     cfg.Email.From,
		}, log)
		log.Info("Email adapter initialized (host=%s)", cfg.Email.SMTPHost)
	}

	// Расписание уведомлений: полное перестроение на старте,
	// восстановление после падения или простоя
	bootCtx, bootCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if n, err := scheduleSvc.RebuildAll(bootCtx); err != nil {
		log.Fatal("Failed to rebuild notification schedule: %v", err)
	} else {
		log.Info("Notification schedule rebuilt, %d entries", n)
	}
	bootCancel()

	// Диспетчер уведомлений
	dispatcherCtx, dispatcherCancel := context.WithCancel(context.Background())
	notifDispatcher := dispatcher.New(
		scheduleRepository,
		bookingRepository,
		userRepository,
		equipmentRepository,
		bookingSvc,
		adapters,
		clock,
		notifypolicy.Rules{
			NotifyBeforeStart: cfg.Booking.NotifyBeforeStart(),
			NotifyBeforeEnd:   cfg.Booking.NotifyBeforeEnd(),
			Step:              cfg.Booking.Step(),
			WorkEnd:           cfg.Booking.WorkEndTime(),
			Location:          location,
		},
		dispatcher.Config{
			Interval:       cfg.Dispatcher.Tick(),
			BatchSize:      cfg.Dispatcher.BatchSize,
			StuckThreshold: cfg.Dispatcher.StuckThreshold(),
			ConfirmGrace:   cfg.Booking.ConfirmGrace(),
			MaxAttempts:    3, // плюс первая отправка: до четырех доставок на строку
		},
		metricsCollector,
		log,
	)
	go notifDispatcher.Run(dispatcherCtx)

	// Handlers
	createBooking := createBookingHandler.NewHandler(bookingSvc, log)
	getBooking := getBookingHandler.NewHandler(bookingSvc, log)
	cancelBooking := cancelBookingHandler.NewHandler(bookingSvc, notifDispatcher, log)
	finishBooking := finishBookingHandler.NewHandler(bookingSvc, log)
	extendBooking := extendBookingHandler.NewHandler(bookingSvc, log)
	confirmBooking := confirmBookingHandler.NewHandler(bookingSvc, log)
	getUserBookings := getUserBookingsHandler.NewHandler(bookingSvc, log)
	getDaySlots := getDaySlotsHandler.NewHandler(slotSvc, log)
	listEquipment := listEquipmentHandler.NewHandler(equipmentRepository, log)
	deleteEquipment := deleteEquipmentHandler.NewHandler(equipmentRepository, log)

	// Роутер
	r := mux.NewRouter()

	if cfg.Metrics.Enabled {
		r.Use(middleware.Metrics(metricsCollector))
		r.Handle(cfg.Metrics.Path, promhttp.Handler()).Methods(http.MethodGet)
		log.Info("Prometheus metrics endpoint exposed at %s", cfg.Metrics.Path)
	}

	api := r.PathPrefix("/api/v1").Subrouter()

	// Публичные маршруты
	api.HandleFunc("/equipment", listEquipment.Handle).Methods(http.MethodGet)
	api.HandleFunc("/equipment/{equipmentId}/slots", getDaySlots.Handle).Methods(http.MethodGet)

	// Маршруты, требующие X-User-ID
	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.Auth(userRepository, log))

	protected.HandleFunc("/bookings", createBooking.Handle).Methods(http.MethodPost)
	protected.HandleFunc("/bookings/{bookingId}", getBooking.Handle).Methods(http.MethodGet)
	protected.HandleFunc("/bookings/{bookingId}/cancel", cancelBooking.Handle).Methods(http.MethodPatch)
	protected.HandleFunc("/bookings/{bookingId}/finish", finishBooking.Handle).Methods(http.MethodPatch)
	protected.HandleFunc("/bookings/{bookingId}/extend", extendBooking.Handle).Methods(http.MethodPatch)
	protected.HandleFunc("/bookings/{bookingId}/confirm", confirmBooking.Handle).Methods(http.MethodPost)
	protected.HandleFunc("/users/{userId}/bookings", getUserBookings.Handle).Methods(http.MethodGet)
	protected.HandleFunc("/equipment/{equipmentId}", deleteEquipment.Handle).Methods(http.MethodDelete)

	addr := fmt.Sprintf(":%d", cfg.Server.HTTPPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		log.Info("Starting server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	dispatcherCancel()
	if cfg.Metrics.Enabled {
		close(stopMetricsCh)
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown: %v", err)
	}

	log.Info("Server stopped gracefully")
}
