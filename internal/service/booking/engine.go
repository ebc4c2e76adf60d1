package booking

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/booking/internal/domain"
	"github.com/vladislavdragonenkov/booking/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/booking/internal/metrics"
	"github.com/vladislavdragonenkov/booking/internal/validation"
)

const (
	defaultPage  = 1
	defaultLimit = 20
	maxLimit     = 100

	defaultTxTimeout = 10 * time.Second
)

// RequestLine — одна позиция запроса на оформление заказа.
type RequestLine struct {
	LessonID string `json:"lessonId"`
	Quantity int64  `json:"quantity"`
}

// PlaceOrderRequest — входные данные оформления заказа.
type PlaceOrderRequest struct {
	Name  string        `json:"name"`
	Phone string        `json:"phone"`
	Lines []RequestLine `json:"lessons"`
}

// LineView — позиция заказа в выдаче.
type LineView struct {
	LessonID string  `json:"lessonId"`
	Topic    string  `json:"topic"`
	Location string  `json:"location"`
	Price    float64 `json:"price"`
	Quantity int64   `json:"quantity"`
	Amount   float64 `json:"amount"`
}

// OrderView — заказ, обогащённый кодом подтверждения.
type OrderView struct {
	ID               string     `json:"id"`
	ConfirmationCode string     `json:"confirmationCode"`
	Name             string     `json:"name"`
	Phone            string     `json:"phone"`
	Lines            []LineView `json:"lessons"`
	TotalAmount      float64    `json:"totalAmount"`
	Status           string     `json:"status"`
	PaymentStatus    string     `json:"paymentStatus"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// OrdersPage — страница заказов с метаданными пагинации.
type OrdersPage struct {
	Orders []OrderView `json:"orders"`
	Total  int64       `json:"total"`
	Page   int64       `json:"page"`
	Limit  int64       `json:"limit"`
	Pages  int64       `json:"pages"`
}

// ListParams — сырые query-параметры выборки заказов.
type ListParams struct {
	Status        string
	PaymentStatus string
	SortBy        string
	Order         string
	Page          string
	Limit         string
}

// Engine описывает операции оформления и чтения заказов.
type Engine interface {
	// PlaceOrder атомарно проверяет и списывает места по всем позициям
	// и создаёт заказ. Любая ошибка откатывает все списания запроса.
	PlaceOrder(ctx context.Context, req PlaceOrderRequest) (OrderView, error)
	List(ctx context.Context, params ListParams) (OrdersPage, error)
	Get(ctx context.Context, id string) (OrderView, error)
	Stats(ctx context.Context) (domain.OrderStats, error)
}

type engine struct {
	lessons   domain.LessonRepository
	orders    domain.OrderRepository
	outbox    domain.OutboxRepository
	tx        domain.TransactionRunner
	logger    *log.Entry
	metrics   *metrics.BookingMetrics
	retry     RetryConfig
	txTimeout time.Duration
}

// Option настраивает движок оформления.
type Option func(*engine)

// WithTxTimeout задаёт тайм-аут транзакции оформления.
func WithTxTimeout(d time.Duration) Option {
	return func(e *engine) {
		if d > 0 {
			e.txTimeout = d
		}
	}
}

// WithRetryConfig задаёт параметры повторов при транзиентных конфликтах.
func WithRetryConfig(cfg RetryConfig) Option {
	return func(e *engine) {
		if cfg.MaxAttempts > 0 {
			e.retry = cfg
		}
	}
}

// WithoutMetrics отключает метрики (для тестов).
func WithoutMetrics() Option {
	return func(e *engine) {
		e.metrics = nil
	}
}

// NewEngine создаёт рабочий экземпляр движка оформления заказов.
func NewEngine(
	lessons domain.LessonRepository,
	orders domain.OrderRepository,
	outbox domain.OutboxRepository,
	tx domain.TransactionRunner,
	logger *log.Entry,
	opts ...Option,
) Engine {
	if logger == nil {
		logger = log.New().WithField("component", "booking-engine")
	}
	e := &engine{
		lessons:   lessons,
		orders:    orders,
		outbox:    outbox,
		tx:        tx,
		logger:    logger,
		metrics:   metrics.NewBookingMetrics(),
		retry:     DefaultRetryConfig(),
		txTimeout: defaultTxTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// PlaceOrder сначала валидирует запрос целиком, и только потом открывает
// транзакцию: ни одно списание не происходит до прохождения всех правил.
func (e *engine) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (OrderView, error) {
	start := time.Now()
	if e.metrics != nil {
		e.metrics.RecordOrderInFlightStarted()
	}
	defer func() {
		if e.metrics != nil {
			e.metrics.RecordOrderInFlightFinished()
			e.metrics.RecordOrderDuration(time.Since(start))
		}
	}()

	if err := validatePlaceOrder(req); err != nil {
		if e.metrics != nil {
			e.metrics.RecordOrderRejected("validation")
		}
		return OrderView{}, err
	}

	txCtx, cancel := context.WithTimeout(ctx, e.txTimeout)
	defer cancel()

	var placed domain.Order
	err := e.executeWithRetry(txCtx, func(ctx context.Context) error {
		var txErr error
		placed, txErr = e.placeOrderTx(ctx, req)
		return txErr
	})
	if err != nil {
		e.recordRejection(err)
		return OrderView{}, err
	}

	if e.metrics != nil {
		e.metrics.RecordOrderPlaced()
		e.metrics.RecordOutboxEvent()
	}
	e.logger.WithFields(log.Fields{
		"order_id":     placed.ID,
		"total_amount": placed.TotalAmount,
		"lines":        len(placed.Lines),
	}).Info("order placed")

	return toOrderView(placed), nil
}

// placeOrderTx — тело транзакции: чтение, проверка и условное списание
// по каждой позиции, затем вставка заказа и outbox-событие.
func (e *engine) placeOrderTx(ctx context.Context, req PlaceOrderRequest) (domain.Order, error) {
	var placed domain.Order

	err := e.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		lines := make([]domain.OrderLine, 0, len(req.Lines))
		var total float64

		for _, reqLine := range req.Lines {
			lesson, err := e.lessons.FindByID(ctx, reqLine.LessonID)
			if err != nil {
				return err
			}
			if lesson.Spaces < reqLine.Quantity {
				return &domain.InsufficientSpacesError{
					LessonID:  lesson.ID,
					Topic:     lesson.Topic,
					Available: lesson.Spaces,
					Requested: reqLine.Quantity,
				}
			}
			// Повторная проверка внутри условного update закрывает гонку
			// между чтением и записью.
			if err := e.lessons.TryDecrement(ctx, lesson.ID, reqLine.Quantity); err != nil {
				return err
			}

			amount := lesson.Price * float64(reqLine.Quantity)
			lines = append(lines, domain.OrderLine{
				LessonID: lesson.ID,
				Topic:    lesson.Topic,
				Location: lesson.Location,
				Price:    lesson.Price,
				Quantity: reqLine.Quantity,
				Amount:   amount,
			})
			total += amount
		}

		now := time.Now().UTC()
		order := domain.Order{
			Name:          req.Name,
			Phone:         req.Phone,
			Lines:         lines,
			TotalAmount:   total,
			Status:        domain.OrderStatusConfirmed,
			PaymentStatus: domain.PaymentStatusPending,
			CreatedAt:     now,
			UpdatedAt:     now,
		}

		inserted, err := e.orders.Insert(ctx, order)
		if err != nil {
			return err
		}

		payload, err := json.Marshal(kafka.NewOrderConfirmedEvent(inserted))
		if err != nil {
			return err
		}
		if _, err := e.outbox.Enqueue(ctx, domain.OutboxMessage{
			AggregateType: kafka.AggregateOrder,
			AggregateID:   inserted.ID,
			EventType:     kafka.EventTypeOrderConfirmed,
			Payload:       payload,
		}); err != nil {
			return err
		}

		placed = inserted
		return nil
	})

	return placed, err
}

// List разбирает параметры и отдаёт страницу заказов.
func (e *engine) List(ctx context.Context, params ListParams) (OrdersPage, error) {
	query, page, limit, err := buildOrderQuery(params)
	if err != nil {
		return OrdersPage{}, err
	}

	total, err := e.orders.Count(ctx, query.Filter)
	if err != nil {
		e.logger.WithError(err).Error("failed to count orders")
		return OrdersPage{}, err
	}

	orders, err := e.orders.Find(ctx, query)
	if err != nil {
		e.logger.WithError(err).Error("failed to list orders")
		return OrdersPage{}, err
	}

	views := make([]OrderView, 0, len(orders))
	for _, order := range orders {
		views = append(views, toOrderView(order))
	}

	pages := int64(0)
	if limit > 0 {
		pages = int64(math.Ceil(float64(total) / float64(limit)))
	}

	return OrdersPage{
		Orders: views,
		Total:  total,
		Page:   page,
		Limit:  limit,
		Pages:  pages,
	}, nil
}

// Get возвращает заказ по идентификатору.
func (e *engine) Get(ctx context.Context, id string) (OrderView, error) {
	if err := validation.Check(
		validation.ObjectIDHex(errOrderIDInvalid, id),
	); err != nil {
		return OrderView{}, err
	}

	order, err := e.orders.FindByID(ctx, id)
	if err != nil {
		return OrderView{}, err
	}
	return toOrderView(order), nil
}

// Stats возвращает сводные показатели по заказам.
func (e *engine) Stats(ctx context.Context) (domain.OrderStats, error) {
	stats, err := e.orders.Stats(ctx)
	if err != nil {
		e.logger.WithError(err).Error("failed to compute order stats")
		return domain.OrderStats{}, err
	}
	return stats, nil
}

func (e *engine) recordRejection(err error) {
	if e.metrics == nil {
		return
	}
	switch {
	case domain.IsConflict(err):
		e.metrics.RecordCapacityConflict()
	case domain.IsNotFound(err):
		e.metrics.RecordOrderRejected("not_found")
	default:
		e.metrics.RecordOrderRejected("internal")
	}
}

// validatePlaceOrder прогоняет все правила запроса и агрегирует нарушения.
func validatePlaceOrder(req PlaceOrderRequest) error {
	rules := []validation.Rule{
		validation.NonEmpty(domain.ErrNameRequired, req.Name),
		validation.NonEmpty(domain.ErrPhoneRequired, req.Phone),
	}
	if req.Name != "" {
		rules = append(rules, validation.Matches(domain.ErrNameInvalid, req.Name, validation.NamePattern))
	}
	if req.Phone != "" {
		rules = append(rules, validation.Matches(domain.ErrPhoneInvalid, req.Phone, validation.PhonePattern))
	}
	if len(req.Lines) == 0 {
		rules = append(rules, func() error { return domain.ErrLinesRequired })
	}
	for _, line := range req.Lines {
		rules = append(rules,
			validation.ObjectIDHex(domain.ErrLessonIDInvalid, line.LessonID),
			validation.Positive(domain.ErrLineQuantityInvalid, line.Quantity),
		)
	}
	return validation.Check(rules...)
}

func buildOrderQuery(params ListParams) (domain.OrderQuery, int64, int64, error) {
	var violations []error

	var filter domain.OrderFilter
	if err := validation.OneOf(errStatusInvalid, params.Status,
		string(domain.OrderStatusConfirmed), string(domain.OrderStatusCancelled))(); err != nil {
		violations = append(violations, err)
	} else {
		filter.Status = domain.OrderStatus(params.Status)
	}
	if err := validation.OneOf(errPaymentStatusInvalid, params.PaymentStatus,
		string(domain.PaymentStatusPending), string(domain.PaymentStatusPaid))(); err != nil {
		violations = append(violations, err)
	} else {
		filter.PaymentStatus = domain.PaymentStatus(params.PaymentStatus)
	}

	sortBy := params.SortBy
	if err := validation.OneOf(errSortByInvalid, sortBy,
		domain.OrderSortCreatedAt, domain.OrderSortTotalAmount, domain.OrderSortName)(); err != nil {
		violations = append(violations, err)
		sortBy = ""
	}
	if sortBy == "" {
		sortBy = domain.OrderSortCreatedAt
	}

	if err := validation.OneOf(errOrderInvalid, params.Order, "asc", "desc")(); err != nil {
		violations = append(violations, err)
	}
	desc := params.Order == "desc"

	page := int64(defaultPage)
	if params.Page != "" {
		v, err := strconv.ParseInt(params.Page, 10, 64)
		if err != nil || v < 1 {
			violations = append(violations, errPageInvalid)
		} else {
			page = v
		}
	}

	limit := int64(defaultLimit)
	if params.Limit != "" {
		v, err := strconv.ParseInt(params.Limit, 10, 64)
		if err != nil || v < 1 || v > maxLimit {
			violations = append(violations, errLimitInvalid)
		} else {
			limit = v
		}
	}

	if len(violations) > 0 {
		return domain.OrderQuery{}, 0, 0, &validation.Error{Violations: violations}
	}

	return domain.OrderQuery{
		Filter: filter,
		SortBy: sortBy,
		Desc:   desc,
		Skip:   (page - 1) * limit,
		Limit:  limit,
	}, page, limit, nil
}

func toOrderView(order domain.Order) OrderView {
	lines := make([]LineView, 0, len(order.Lines))
	for _, l := range order.Lines {
		lines = append(lines, LineView(l))
	}
	return OrderView{
		ID:               order.ID,
		ConfirmationCode: order.ConfirmationCode(),
		Name:             order.Name,
		Phone:            order.Phone,
		Lines:            lines,
		TotalAmount:      order.TotalAmount,
		Status:           string(order.Status),
		PaymentStatus:    string(order.PaymentStatus),
		CreatedAt:        order.CreatedAt,
		UpdatedAt:        order.UpdatedAt,
	}
}

var _ Engine = (*engine)(nil)
