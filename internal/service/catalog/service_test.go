package catalog

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/booking/internal/domain"
	"github.com/vladislavdragonenkov/booking/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/booking/internal/storage/memory"
	"github.com/vladislavdragonenkov/booking/internal/validation"
)

func newTestCatalog(t *testing.T) (Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	svc := NewServiceWithoutMetrics(memory.NewLessonRepository(store), nil)
	return svc, store
}

func seedCatalog(store *memory.Store) []domain.Lesson {
	return []domain.Lesson{
		store.SeedLesson(domain.Lesson{Topic: "math", Location: "London", Price: 10, Spaces: 5}),
		store.SeedLesson(domain.Lesson{Topic: "math", Location: "Oxford", Price: 20, Spaces: 0}),
		store.SeedLesson(domain.Lesson{Topic: "english", Location: "London", Price: 15, Spaces: 3, Image: "/images/english.png"}),
		store.SeedLesson(domain.Lesson{Topic: "music", Location: "Bristol", Price: 30, Spaces: 2, Description: "piano basics"}),
	}
}

func TestList_DefaultsAndMetadata(t *testing.T) {
	svc, store := newTestCatalog(t)
	seedCatalog(store)

	page, err := svc.List(context.Background(), ListParams{})
	require.NoError(t, err)

	assert.Equal(t, int64(4), page.Total)
	assert.Equal(t, int64(1), page.Page)
	assert.Equal(t, int64(20), page.Limit)
	assert.Equal(t, int64(1), page.Pages)
	require.Len(t, page.Lessons, 4)

	// Сортировка по умолчанию — topic по возрастанию.
	assert.Equal(t, "english", page.Lessons[0].Topic)
}

func TestList_Pagination(t *testing.T) {
	svc, store := newTestCatalog(t)
	seedCatalog(store)

	page, err := svc.List(context.Background(), ListParams{Page: "2", Limit: "3"})
	require.NoError(t, err)

	assert.Equal(t, int64(4), page.Total)
	assert.Equal(t, int64(2), page.Page)
	assert.Equal(t, int64(3), page.Limit)
	assert.Equal(t, int64(2), page.Pages)
	assert.Len(t, page.Lessons, 1)
}

func TestList_PageBeyondRange(t *testing.T) {
	svc, store := newTestCatalog(t)
	seedCatalog(store)

	page, err := svc.List(context.Background(), ListParams{Page: "10", Limit: "5"})
	require.NoError(t, err)

	assert.Equal(t, int64(4), page.Total)
	assert.Empty(t, page.Lessons)
	assert.Equal(t, int64(1), page.Pages)
}

func TestList_Filters(t *testing.T) {
	svc, store := newTestCatalog(t)
	seedCatalog(store)

	tests := []struct {
		name       string
		params     ListParams
		wantTopics []string
	}{
		{
			name:       "by topic",
			params:     ListParams{Topic: "math", SortBy: "price"},
			wantTopics: []string{"math", "math"},
		},
		{
			name:       "by location",
			params:     ListParams{Location: "London", SortBy: "price"},
			wantTopics: []string{"math", "english"},
		},
		{
			name:       "price range",
			params:     ListParams{MinPrice: "12", MaxPrice: "25", SortBy: "price"},
			wantTopics: []string{"english", "math"},
		},
		{
			name:       "min spaces excludes sold out",
			params:     ListParams{MinSpaces: "1", Topic: "math"},
			wantTopics: []string{"math"},
		},
		{
			name:       "search over description",
			params:     ListParams{Search: "PIANO"},
			wantTopics: []string{"music"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := svc.List(context.Background(), tt.params)
			require.NoError(t, err)
			topics := make([]string, 0, len(page.Lessons))
			for _, l := range page.Lessons {
				topics = append(topics, l.Topic)
			}
			assert.Equal(t, tt.wantTopics, topics)
		})
	}
}

func TestList_SortDesc(t *testing.T) {
	svc, store := newTestCatalog(t)
	seedCatalog(store)

	page, err := svc.List(context.Background(), ListParams{SortBy: "price", Order: "desc"})
	require.NoError(t, err)

	require.Len(t, page.Lessons, 4)
	assert.Equal(t, float64(30), page.Lessons[0].Price)
	assert.Equal(t, float64(10), page.Lessons[3].Price)
}

func TestList_InvalidParamsAggregated(t *testing.T) {
	svc, _ := newTestCatalog(t)

	_, err := svc.List(context.Background(), ListParams{
		MinPrice: "abc",
		SortBy:   "bogus",
		Page:     "0",
		Limit:    "1000",
	})
	require.Error(t, err)
	require.True(t, validation.IsValidationError(err))

	verr := err.(*validation.Error)
	assert.Len(t, verr.Violations, 4)
}

func TestList_ViewEnrichment(t *testing.T) {
	svc, store := newTestCatalog(t)
	seedCatalog(store)

	page, err := svc.List(context.Background(), ListParams{Topic: "math", SortBy: "price"})
	require.NoError(t, err)
	require.Len(t, page.Lessons, 2)

	withSpaces := page.Lessons[0]
	soldOut := page.Lessons[1]

	assert.True(t, withSpaces.Available)
	assert.Equal(t, withSpaces.Spaces, withSpaces.Space)
	assert.Equal(t, PlaceholderImage, withSpaces.Image)

	assert.False(t, soldOut.Available)
	assert.Equal(t, int64(0), soldOut.Spaces)
}

func TestGet(t *testing.T) {
	svc, store := newTestCatalog(t)
	lessons := seedCatalog(store)

	view, err := svc.Get(context.Background(), lessons[2].ID)
	require.NoError(t, err)
	assert.Equal(t, "english", view.Topic)
	assert.Equal(t, "/images/english.png", view.Image)
}

func TestGet_InvalidID(t *testing.T) {
	svc, _ := newTestCatalog(t)

	_, err := svc.Get(context.Background(), "not-an-object-id")
	require.Error(t, err)
	assert.True(t, validation.IsValidationError(err))
}

func TestGet_NotFound(t *testing.T) {
	svc, _ := newTestCatalog(t)

	_, err := svc.Get(context.Background(), "65f1a2b3c4d5e6f7a8b9c0d1")
	assert.ErrorIs(t, err, domain.ErrLessonNotFound)
}

func TestUpdate(t *testing.T) {
	svc, store := newTestCatalog(t)
	lessons := seedCatalog(store)

	spaces := int64(9)
	price := 42.5
	view, err := svc.Update(context.Background(), lessons[0].ID, domain.LessonUpdate{
		Spaces: &spaces,
		Price:  &price,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(9), view.Spaces)
	assert.Equal(t, 42.5, view.Price)
	// Нетронутые поля сохраняются.
	assert.Equal(t, "math", view.Topic)
}

func TestUpdate_EmptyBody(t *testing.T) {
	svc, store := newTestCatalog(t)
	lessons := seedCatalog(store)

	_, err := svc.Update(context.Background(), lessons[0].ID, domain.LessonUpdate{})
	assert.ErrorIs(t, err, domain.ErrUpdateEmpty)
}

func TestUpdate_InvalidFields(t *testing.T) {
	svc, store := newTestCatalog(t)
	lessons := seedCatalog(store)

	badSpaces := int64(-1)
	badPrice := -5.0
	_, err := svc.Update(context.Background(), lessons[0].ID, domain.LessonUpdate{
		Spaces: &badSpaces,
		Price:  &badPrice,
	})
	require.Error(t, err)
	require.True(t, validation.IsValidationError(err))
	assert.Len(t, err.(*validation.Error).Violations, 2)
}

func TestStats(t *testing.T) {
	svc, store := newTestCatalog(t)
	seedCatalog(store)

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(4), stats.TotalLessons)
	assert.Equal(t, int64(10), stats.TotalSpaces)
	assert.Equal(t, 18.75, stats.AvgPrice)
	assert.Equal(t, float64(10), stats.MinPrice)
	assert.Equal(t, float64(30), stats.MaxPrice)
	assert.Equal(t, int64(3), stats.AvailableLessons)
	assert.Equal(t, 75.0, stats.PercentageAvailable)

	require.NotEmpty(t, stats.ByTopic)
	// math встречается дважды и идёт первым.
	assert.Equal(t, "math", stats.ByTopic[0].Topic)
	assert.Equal(t, int64(2), stats.ByTopic[0].Count)
	assert.Equal(t, int64(5), stats.ByTopic[0].TotalSpaces)
	assert.Equal(t, 15.0, stats.ByTopic[0].AvgPrice)
}

func TestStats_EmptyCatalog(t *testing.T) {
	svc, _ := newTestCatalog(t)

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(0), stats.TotalLessons)
	assert.Equal(t, 0.0, stats.PercentageAvailable)
	assert.Empty(t, stats.ByTopic)
}

func TestUpdate_EnqueuesLessonEvent(t *testing.T) {
	store := memory.NewStore()
	outbox := memory.NewOutboxRepository(store)
	svc := NewServiceWithoutMetrics(memory.NewLessonRepository(store), nil, WithOutbox(outbox))
	lesson := store.SeedLesson(domain.Lesson{Topic: "math", Location: "London", Price: 10, Spaces: 5})

	spaces := int64(9)
	price := 42.5
	_, err := svc.Update(context.Background(), lesson.ID, domain.LessonUpdate{
		Spaces: &spaces,
		Price:  &price,
	})
	require.NoError(t, err)

	pending, err := outbox.PullPending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	assert.Equal(t, kafka.AggregateLesson, pending[0].AggregateType)
	assert.Equal(t, lesson.ID, pending[0].AggregateID)
	assert.Equal(t, kafka.EventTypeLessonUpdated, pending[0].EventType)

	var event kafka.LessonEvent
	require.NoError(t, json.Unmarshal(pending[0].Payload, &event))
	assert.Equal(t, lesson.ID, event.LessonID)
	assert.Equal(t, int64(9), event.Spaces)
	assert.ElementsMatch(t, []string{"price", "spaces"}, event.Changed)
}

func TestUpdate_NoOutboxConfigured(t *testing.T) {
	svc, store := newTestCatalog(t)
	lessons := seedCatalog(store)

	// Каталог без outbox обновляет занятие и не пытается публиковать событие.
	spaces := int64(7)
	view, err := svc.Update(context.Background(), lessons[0].ID, domain.LessonUpdate{Spaces: &spaces})
	require.NoError(t, err)
	assert.Equal(t, int64(7), view.Spaces)
}
