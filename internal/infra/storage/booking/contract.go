package booking

import "github.com/wsb-platform/booking-service/pkg/txmanager"

// DBExecutor executor для выполнения запросов (пул, транзакция или обертка метрик)
type DBExecutor = txmanager.DBExecutor
