package rest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/booking/internal/domain"
	"github.com/vladislavdragonenkov/booking/internal/service/booking"
)

// HeaderIdempotencyKey — заголовок повторяемого оформления заказа.
const HeaderIdempotencyKey = "Idempotency-Key"

// OrderHandler обслуживает оформление и чтение заказов.
type OrderHandler struct {
	engine      booking.Engine
	idempotency domain.IdempotencyRepository
	logger      *log.Entry
}

// NewOrderHandler создаёт обработчик заказов. idempotency может быть nil —
// тогда заголовок Idempotency-Key игнорируется.
func NewOrderHandler(engine booking.Engine, idempotency domain.IdempotencyRepository, logger *log.Entry) *OrderHandler {
	if logger == nil {
		logger = log.WithField("component", "order-handler")
	}
	return &OrderHandler{engine: engine, idempotency: idempotency, logger: logger}
}

// Create — POST /orders. При заголовке Idempotency-Key ответ сохраняется
// и повтор того же запроса отдаёт сохранённый результат без повторного
// списания мест.
func (h *OrderHandler) Create(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, failResponse("invalid request body", nil))
		return
	}

	key := c.GetHeader(HeaderIdempotencyKey)
	if key != "" && h.idempotency != nil {
		if replayed := h.beginIdempotent(c, key, body); replayed {
			return
		}
	}

	var req booking.PlaceOrderRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.finish(c, key, http.StatusBadRequest, failResponse("invalid request body", nil), false)
		return
	}

	order, err := h.engine.PlaceOrder(c.Request.Context(), req)
	if err != nil {
		status, resp := mapError(h.logger, err)
		h.finish(c, key, status, resp, false)
		return
	}

	h.finish(c, key, http.StatusCreated, successResponse(order), true)
}

// beginIdempotent регистрирует ключ. Возвращает true, если ответ уже
// отправлен (replay сохранённого результата или конфликт ключа).
func (h *OrderHandler) beginIdempotent(c *gin.Context, key string, body []byte) bool {
	sum := sha256.Sum256(body)
	requestHash := hex.EncodeToString(sum[:])

	// Короткий TTL на время обработки: если процесс упадёт до записи
	// ответа, ключ освободится, а не будет блокировать повторы сутками.
	ttlAt := time.Now().UTC().Add(domain.IdempotencyProcessingTTL)
	record, err := h.idempotency.CreateProcessing(c.Request.Context(), key, requestHash, ttlAt)
	switch {
	case err == nil:
		return false
	case errors.Is(err, domain.ErrIdempotencyHashMismatch):
		c.JSON(http.StatusConflict, failResponse("idempotency key reused with different request", nil))
		return true
	case errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists):
		if record.Status == domain.IdempotencyStatusProcessing {
			c.JSON(http.StatusConflict, failResponse("request with this idempotency key is still being processed", nil))
			return true
		}
		// Завершённый запрос: отдаём сохранённый ответ как есть.
		c.Data(record.HTTPStatus, "application/json", record.ResponseBody)
		return true
	default:
		h.logger.WithError(err).Error("failed to register idempotency key")
		c.JSON(http.StatusInternalServerError, errorResponse())
		return true
	}
}

// finish отправляет ответ и фиксирует его для повторов, если ключ задан.
func (h *OrderHandler) finish(c *gin.Context, key string, status int, resp Response, ok bool) {
	c.JSON(status, resp)

	if key == "" || h.idempotency == nil {
		return
	}

	stored, err := json.Marshal(resp)
	if err != nil {
		h.logger.WithError(err).Warn("failed to marshal response for idempotency store")
		return
	}

	if ok {
		err = h.idempotency.MarkDone(c.Request.Context(), key, stored, status)
	} else {
		err = h.idempotency.MarkFailed(c.Request.Context(), key, stored, status)
	}
	if err != nil && !errors.Is(err, domain.ErrIdempotencyKeyNotFound) {
		h.logger.WithError(err).Warn("failed to store idempotency result")
	}
}

// List — GET /orders.
func (h *OrderHandler) List(c *gin.Context) {
	params := booking.ListParams{
		Status:        c.Query("status"),
		PaymentStatus: c.Query("paymentStatus"),
		SortBy:        c.Query("sortBy"),
		Order:         c.Query("order"),
		Page:          c.Query("page"),
		Limit:         c.Query("limit"),
	}

	page, err := h.engine.List(c.Request.Context(), params)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(page))
}

// Get — GET /orders/:id.
func (h *OrderHandler) Get(c *gin.Context) {
	order, err := h.engine.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(order))
}

// Stats — GET /orders/stats/overview.
func (h *OrderHandler) Stats(c *gin.Context) {
	stats, err := h.engine.Stats(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(statsView(stats)))
}

// statsView переводит доменную сводку в JSON-представление.
func statsView(stats domain.OrderStats) gin.H {
	byStatus := make([]gin.H, 0, len(stats.ByStatus))
	for _, sc := range stats.ByStatus {
		byStatus = append(byStatus, gin.H{"status": sc.Status, "count": sc.Count})
	}
	daily := make([]gin.H, 0, len(stats.Daily))
	for _, p := range stats.Daily {
		daily = append(daily, gin.H{"day": p.Day, "count": p.Count, "revenue": p.Revenue})
	}
	return gin.H{
		"totalOrders":       stats.TotalOrders,
		"totalRevenue":      stats.TotalRevenue,
		"averageOrderValue": stats.AverageOrderValue,
		"totalLineItems":    stats.TotalLineItems,
		"byStatus":          byStatus,
		"daily":             daily,
	}
}
