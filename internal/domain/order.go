package domain

import (
	"strings"
	"time"
)

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// OrderStatusConfirmed — заказ создан успешной транзакцией и финализирован.
	OrderStatusConfirmed OrderStatus = "confirmed"
	// OrderStatusCancelled — заказ отменён администратором (вне основного потока).
	OrderStatusCancelled OrderStatus = "cancelled"
)

// PaymentStatus — отдельный жизненный цикл оплаты. Обработка платежей
// вне скоупа сервиса, поле носит информационный характер.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
)

// OrderLine представляет одну позицию заказа. Topic, Location и Price —
// снимок полей занятия на момент оформления: исторические заказы не должны
// меняться при последующих правках каталога.
type OrderLine struct {
	LessonID string
	Topic    string
	Location string
	Price    float64
	Quantity int64
	// Amount = Price * Quantity, фиксируется при оформлении.
	Amount float64
}

// Order агрегирует подтверждённую покупку одной или нескольких позиций.
// После создания заказ неизменяем.
type Order struct {
	ID            string
	Name          string
	Phone         string
	Lines         []OrderLine
	TotalAmount   float64
	Status        OrderStatus
	PaymentStatus PaymentStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ConfirmationCode строит человекочитаемый код подтверждения:
// последние 8 символов идентификатора в верхнем регистре.
func (o *Order) ConfirmationCode() string {
	id := o.ID
	if len(id) > 8 {
		id = id[len(id)-8:]
	}
	return strings.ToUpper(id)
}

// ValidateInvariants проверяет согласованность заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if strings.TrimSpace(o.Name) == "" {
		errs = append(errs, ErrNameRequired)
	}
	if strings.TrimSpace(o.Phone) == "" {
		errs = append(errs, ErrPhoneRequired)
	}
	if len(o.Lines) == 0 {
		errs = append(errs, ErrLinesRequired)
	}

	// Сверяем сумму заказа с суммой позиций: qty * price.
	var calc float64
	for _, line := range o.Lines {
		if line.Quantity <= 0 {
			errs = append(errs, ErrLineQuantityInvalid)
		}
		if line.Price < 0 {
			errs = append(errs, ErrLinePriceInvalid)
		}
		calc += float64(line.Quantity) * line.Price
	}
	if calc != o.TotalAmount {
		errs = append(errs, ErrAmountMismatch)
	}

	return errs
}

// Поля сортировки заказов.
const (
	OrderSortCreatedAt   = "createdAt"
	OrderSortTotalAmount = "totalAmount"
	OrderSortName        = "name"
)

// OrderFilter описывает условия выборки заказов.
type OrderFilter struct {
	Status        OrderStatus
	PaymentStatus PaymentStatus
}

// OrderQuery объединяет фильтр, сортировку и пагинацию для выборки заказов.
type OrderQuery struct {
	Filter OrderFilter
	SortBy string
	Desc   bool
	Skip   int64
	Limit  int64
}

// StatusCount — количество заказов в одном статусе.
type StatusCount struct {
	Status OrderStatus
	Count  int64
}

// DailyPoint — точка тренда за один день.
type DailyPoint struct {
	// Day в формате YYYY-MM-DD (UTC).
	Day     string
	Count   int64
	Revenue float64
}

// OrderStats агрегирует сводные показатели по заказам.
type OrderStats struct {
	TotalOrders       int64
	TotalRevenue      float64
	AverageOrderValue float64
	TotalLineItems    int64
	ByStatus          []StatusCount
	// Daily — тренд количества и выручки за последние 7 дней.
	Daily []DailyPoint
}
