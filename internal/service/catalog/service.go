package catalog

import (
	"context"
	"encoding/json"
	"math"
	"sort"
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

	// PlaceholderImage подставляется занятиям без собственного изображения.
	PlaceholderImage = "/images/placeholder.jpg"
)

// ListParams — сырые query-параметры каталога до разбора и валидации.
type ListParams struct {
	Topic     string
	Location  string
	MinPrice  string
	MaxPrice  string
	MinSpaces string
	Search    string
	SortBy    string
	Order     string
	Page      string
	Limit     string
}

// LessonView — занятие, обогащённое для выдачи наружу: нормализованная
// ёмкость зеркалится в оба имени, доступность и картинка вычислены.
type LessonView struct {
	ID          string  `json:"id"`
	Topic       string  `json:"topic"`
	Location    string  `json:"location"`
	Price       float64 `json:"price"`
	Spaces      int64   `json:"spaces"`
	Space       int64   `json:"space"`
	Available   bool    `json:"available"`
	Description string  `json:"description,omitempty"`
	Image       string  `json:"image"`
}

// Page — страница каталога с метаданными пагинации.
type Page struct {
	Lessons []LessonView `json:"lessons"`
	Total   int64        `json:"total"`
	Page    int64        `json:"page"`
	Limit   int64        `json:"limit"`
	Pages   int64        `json:"pages"`
}

// TopicStats — разбивка каталога по одному предмету.
type TopicStats struct {
	Topic       string  `json:"topic"`
	Count       int64   `json:"count"`
	TotalSpaces int64   `json:"totalSpaces"`
	AvgPrice    float64 `json:"avgPrice"`
}

// Stats — сводные показатели каталога.
type Stats struct {
	TotalLessons        int64        `json:"totalLessons"`
	TotalSpaces         int64        `json:"totalSpaces"`
	AvgPrice            float64      `json:"avgPrice"`
	MinPrice            float64      `json:"minPrice"`
	MaxPrice            float64      `json:"maxPrice"`
	AvailableLessons    int64        `json:"availableLessons"`
	PercentageAvailable float64      `json:"percentageAvailable"`
	ByTopic             []TopicStats `json:"byTopic"`
}

// Service описывает read-side операции каталога и административное обновление.
type Service interface {
	List(ctx context.Context, params ListParams) (Page, error)
	Get(ctx context.Context, id string) (LessonView, error)
	Update(ctx context.Context, id string, update domain.LessonUpdate) (LessonView, error)
	Stats(ctx context.Context) (Stats, error)
}

type service struct {
	lessons domain.LessonRepository
	outbox  domain.OutboxRepository
	logger  *log.Entry
	metrics *metrics.BookingMetrics
}

// Option настраивает каталог.
type Option func(*service)

// WithOutbox включает публикацию событий обновления занятий через
// transactional outbox.
func WithOutbox(outbox domain.OutboxRepository) Option {
	return func(s *service) {
		s.outbox = outbox
	}
}

// NewService создаёт рабочий экземпляр каталога.
func NewService(lessons domain.LessonRepository, logger *log.Entry, opts ...Option) Service {
	if logger == nil {
		logger = log.New().WithField("component", "catalog")
	}
	s := &service{
		lessons: lessons,
		logger:  logger,
		metrics: metrics.NewBookingMetrics(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewServiceWithoutMetrics создаёт каталог без метрик (для тестов).
func NewServiceWithoutMetrics(lessons domain.LessonRepository, logger *log.Entry, opts ...Option) Service {
	if logger == nil {
		logger = log.New().WithField("component", "catalog")
	}
	s := &service{
		lessons: lessons,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List разбирает параметры, валидирует их одним агрегатом и отдаёт страницу
// каталога с метаданными пагинации.
func (s *service) List(ctx context.Context, params ListParams) (Page, error) {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordCatalogQuery(time.Since(start))
		}
	}()

	query, page, limit, err := buildLessonQuery(params)
	if err != nil {
		return Page{}, err
	}

	total, err := s.lessons.Count(ctx, query.Filter)
	if err != nil {
		s.logger.WithError(err).Error("failed to count lessons")
		return Page{}, err
	}

	lessons, err := s.lessons.Find(ctx, query)
	if err != nil {
		s.logger.WithError(err).Error("failed to list lessons")
		return Page{}, err
	}

	views := make([]LessonView, 0, len(lessons))
	for _, lesson := range lessons {
		views = append(views, toView(lesson))
	}

	pages := int64(0)
	if limit > 0 {
		pages = int64(math.Ceil(float64(total) / float64(limit)))
	}

	return Page{
		Lessons: views,
		Total:   total,
		Page:    page,
		Limit:   limit,
		Pages:   pages,
	}, nil
}

// Get возвращает занятие по идентификатору. Синтаксически некорректный
// идентификатор отклоняется до обращения к хранилищу.
func (s *service) Get(ctx context.Context, id string) (LessonView, error) {
	if err := validation.Check(
		validation.ObjectIDHex(domain.ErrLessonIDInvalid, id),
	); err != nil {
		return LessonView{}, err
	}

	lesson, err := s.lessons.FindByID(ctx, id)
	if err != nil {
		return LessonView{}, err
	}
	return toView(lesson), nil
}

// Update применяет частичное административное обновление занятия.
func (s *service) Update(ctx context.Context, id string, update domain.LessonUpdate) (LessonView, error) {
	rules := []validation.Rule{
		validation.ObjectIDHex(domain.ErrLessonIDInvalid, id),
	}
	if update.Topic != nil {
		rules = append(rules, validation.NonEmpty(domain.ErrTopicRequired, *update.Topic))
	}
	if update.Location != nil {
		rules = append(rules, validation.NonEmpty(domain.ErrLocationRequired, *update.Location))
	}
	if update.Price != nil {
		rules = append(rules, validation.NonNegativeFloat(domain.ErrPriceNegative, *update.Price))
	}
	if update.Spaces != nil {
		rules = append(rules, validation.NonNegativeInt(domain.ErrSpacesNegative, *update.Spaces))
	}
	if err := validation.Check(rules...); err != nil {
		return LessonView{}, err
	}
	if update.Empty() {
		return LessonView{}, domain.ErrUpdateEmpty
	}

	lesson, err := s.lessons.ApplyFieldUpdate(ctx, id, update)
	if err != nil {
		return LessonView{}, err
	}

	s.enqueueLessonUpdated(ctx, lesson, update)

	s.logger.WithField("lesson_id", lesson.ID).Info("lesson updated")
	return toView(lesson), nil
}

// enqueueLessonUpdated кладёт событие lesson.updated в outbox. Ошибка
// постановки не откатывает обновление: событие просто не будет отправлено,
// о чём остаётся запись в логе.
func (s *service) enqueueLessonUpdated(ctx context.Context, lesson domain.Lesson, update domain.LessonUpdate) {
	if s.outbox == nil {
		return
	}

	event := kafka.NewLessonUpdatedEvent(lesson, changedFields(update))
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.WithError(err).WithField("lesson_id", lesson.ID).Warn("failed to marshal lesson event")
		return
	}

	_, err = s.outbox.Enqueue(ctx, domain.OutboxMessage{
		AggregateType: kafka.AggregateLesson,
		AggregateID:   lesson.ID,
		EventType:     kafka.EventTypeLessonUpdated,
		Payload:       payload,
	})
	if err != nil {
		s.logger.WithError(err).WithField("lesson_id", lesson.ID).Warn("failed to enqueue lesson event")
	}
}

// changedFields перечисляет поля, затронутые частичным обновлением.
func changedFields(update domain.LessonUpdate) []string {
	var changed []string
	if update.Topic != nil {
		changed = append(changed, "topic")
	}
	if update.Location != nil {
		changed = append(changed, "location")
	}
	if update.Price != nil {
		changed = append(changed, "price")
	}
	if update.Spaces != nil {
		changed = append(changed, "spaces")
	}
	if update.Description != nil {
		changed = append(changed, "description")
	}
	if update.Image != nil {
		changed = append(changed, "image")
	}
	return changed
}

// Stats считает сводку каталога по полной выборке занятий.
func (s *service) Stats(ctx context.Context) (Stats, error) {
	lessons, err := s.lessons.Find(ctx, domain.LessonQuery{SortBy: domain.LessonSortTopic})
	if err != nil {
		s.logger.WithError(err).Error("failed to load lessons for stats")
		return Stats{}, err
	}

	stats := Stats{ByTopic: []TopicStats{}}
	if len(lessons) == 0 {
		return stats, nil
	}

	type topicAgg struct {
		count       int64
		totalSpaces int64
		priceSum    float64
	}
	byTopic := make(map[string]*topicAgg)

	var priceSum float64
	stats.MinPrice = lessons[0].Price
	stats.MaxPrice = lessons[0].Price

	for _, lesson := range lessons {
		stats.TotalLessons++
		stats.TotalSpaces += lesson.Spaces
		priceSum += lesson.Price
		if lesson.Price < stats.MinPrice {
			stats.MinPrice = lesson.Price
		}
		if lesson.Price > stats.MaxPrice {
			stats.MaxPrice = lesson.Price
		}
		if lesson.Available() {
			stats.AvailableLessons++
		}

		agg, ok := byTopic[lesson.Topic]
		if !ok {
			agg = &topicAgg{}
			byTopic[lesson.Topic] = agg
		}
		agg.count++
		agg.totalSpaces += lesson.Spaces
		agg.priceSum += lesson.Price
	}

	stats.AvgPrice = round2(priceSum / float64(stats.TotalLessons))
	stats.PercentageAvailable = round2(float64(stats.AvailableLessons) / float64(stats.TotalLessons) * 100)

	for topic, agg := range byTopic {
		stats.ByTopic = append(stats.ByTopic, TopicStats{
			Topic:       topic,
			Count:       agg.count,
			TotalSpaces: agg.totalSpaces,
			AvgPrice:    round2(agg.priceSum / float64(agg.count)),
		})
	}
	sort.Slice(stats.ByTopic, func(i, j int) bool {
		if stats.ByTopic[i].Count != stats.ByTopic[j].Count {
			return stats.ByTopic[i].Count > stats.ByTopic[j].Count
		}
		return stats.ByTopic[i].Topic < stats.ByTopic[j].Topic
	})

	return stats, nil
}

// buildLessonQuery валидирует сырые параметры и собирает LessonQuery.
// Все нарушения собираются в один агрегат.
func buildLessonQuery(params ListParams) (domain.LessonQuery, int64, int64, error) {
	var violations []error

	var filter domain.LessonFilter
	filter.Topic = params.Topic
	filter.Location = params.Location
	filter.Search = params.Search

	if params.MinPrice != "" {
		v, err := strconv.ParseFloat(params.MinPrice, 64)
		if err != nil || v < 0 {
			violations = append(violations, errMinPriceInvalid)
		} else {
			filter.MinPrice = &v
		}
	}
	if params.MaxPrice != "" {
		v, err := strconv.ParseFloat(params.MaxPrice, 64)
		if err != nil || v < 0 {
			violations = append(violations, errMaxPriceInvalid)
		} else {
			filter.MaxPrice = &v
		}
	}
	if params.MinSpaces != "" {
		v, err := strconv.ParseInt(params.MinSpaces, 10, 64)
		if err != nil || v < 0 {
			violations = append(violations, errMinSpacesInvalid)
		} else {
			filter.MinSpaces = &v
		}
	}

	sortBy := params.SortBy
	if err := validation.OneOf(errSortByInvalid, sortBy,
		domain.LessonSortTopic, domain.LessonSortLocation, domain.LessonSortPrice, domain.LessonSortSpaces)(); err != nil {
		violations = append(violations, err)
		sortBy = ""
	}
	if sortBy == "" {
		sortBy = domain.LessonSortTopic
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
		return domain.LessonQuery{}, 0, 0, &validation.Error{Violations: violations}
	}

	return domain.LessonQuery{
		Filter: filter,
		SortBy: sortBy,
		Desc:   desc,
		Skip:   (page - 1) * limit,
		Limit:  limit,
	}, page, limit, nil
}

func toView(lesson domain.Lesson) LessonView {
	image := lesson.Image
	if image == "" {
		image = PlaceholderImage
	}
	return LessonView{
		ID:          lesson.ID,
		Topic:       lesson.Topic,
		Location:    lesson.Location,
		Price:       lesson.Price,
		Spaces:      lesson.Spaces,
		Space:       lesson.Spaces,
		Available:   lesson.Available(),
		Description: lesson.Description,
		Image:       image,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

var _ Service = (*service)(nil)
