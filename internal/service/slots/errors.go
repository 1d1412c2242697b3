package slots

import "errors"

var (
	// ErrEquipmentNotFound оборудование не найдено
	ErrEquipmentNotFound = errors.New("slots: equipment not found")
	// ErrInvalidWindow рабочее окно не делится на целое число шагов
	ErrInvalidWindow = errors.New("slots: work window is not a whole number of steps")
	// ErrInternal внутренняя ошибка сервиса
	ErrInternal = errors.New("slots: internal error")
)
