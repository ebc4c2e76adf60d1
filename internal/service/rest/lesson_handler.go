package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/booking/internal/domain"
	"github.com/vladislavdragonenkov/booking/internal/service/catalog"
)

// LessonHandler обслуживает read-side каталога и административное обновление.
type LessonHandler struct {
	catalog catalog.Service
	logger  *log.Entry
}

// NewLessonHandler создаёт обработчик каталога.
func NewLessonHandler(svc catalog.Service, logger *log.Entry) *LessonHandler {
	if logger == nil {
		logger = log.WithField("component", "lesson-handler")
	}
	return &LessonHandler{catalog: svc, logger: logger}
}

// List — GET /lessons.
func (h *LessonHandler) List(c *gin.Context) {
	params := catalog.ListParams{
		Topic:     c.Query("topic"),
		Location:  c.Query("location"),
		MinPrice:  c.Query("minPrice"),
		MaxPrice:  c.Query("maxPrice"),
		MinSpaces: c.Query("minSpaces"),
		Search:    c.Query("search"),
		SortBy:    c.Query("sortBy"),
		Order:     c.Query("order"),
		Page:      c.Query("page"),
		Limit:     c.Query("limit"),
	}

	page, err := h.catalog.List(c.Request.Context(), params)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(page))
}

// Get — GET /lessons/:id.
func (h *LessonHandler) Get(c *gin.Context) {
	lesson, err := h.catalog.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(lesson))
}

// lessonUpdateRequest — частичное тело обновления: отсутствующие поля
// не трогаются.
type lessonUpdateRequest struct {
	Topic       *string  `json:"topic"`
	Location    *string  `json:"location"`
	Price       *float64 `json:"price"`
	Spaces      *int64   `json:"spaces"`
	Space       *int64   `json:"space"`
	Description *string  `json:"description"`
	Image       *string  `json:"image"`
}

// Update — PUT /lessons/:id.
func (h *LessonHandler) Update(c *gin.Context) {
	var req lessonUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, failResponse("invalid request body", nil))
		return
	}

	update := domain.LessonUpdate{
		Topic:       req.Topic,
		Location:    req.Location,
		Price:       req.Price,
		Spaces:      req.Spaces,
		Description: req.Description,
		Image:       req.Image,
	}
	// Legacy-имя поля ёмкости принимается наравне с каноническим.
	if update.Spaces == nil && req.Space != nil {
		update.Spaces = req.Space
	}

	lesson, err := h.catalog.Update(c.Request.Context(), c.Param("id"), update)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(lesson))
}

// Stats — GET /lessons/stats/overview.
func (h *LessonHandler) Stats(c *gin.Context) {
	stats, err := h.catalog.Stats(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(stats))
}
