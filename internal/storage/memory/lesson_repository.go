package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/vladislavdragonenkov/booking/internal/domain"
)

// lessonRepositoryInMemory — реализация LessonRepository поверх Store.
type lessonRepositoryInMemory struct {
	store *Store
}

// NewLessonRepository возвращает in-memory репозиторий занятий.
func NewLessonRepository(store *Store) domain.LessonRepository {
	return &lessonRepositoryInMemory{store: store}
}

func (r *lessonRepositoryInMemory) Find(ctx context.Context, query domain.LessonQuery) ([]domain.Lesson, error) {
	var result []domain.Lesson
	r.store.read(ctx, func() {
		result = make([]domain.Lesson, 0, len(r.store.lessons))
		for _, lesson := range r.store.lessons {
			if matchesLessonFilter(lesson, query.Filter) {
				result = append(result, lesson)
			}
		}
	})

	sortLessons(result, query.SortBy, query.Desc)

	if query.Skip > 0 {
		if query.Skip >= int64(len(result)) {
			return []domain.Lesson{}, nil
		}
		result = result[query.Skip:]
	}
	if query.Limit > 0 && int64(len(result)) > query.Limit {
		result = result[:query.Limit]
	}
	return result, nil
}

func (r *lessonRepositoryInMemory) Count(ctx context.Context, filter domain.LessonFilter) (int64, error) {
	var count int64
	r.store.read(ctx, func() {
		for _, lesson := range r.store.lessons {
			if matchesLessonFilter(lesson, filter) {
				count++
			}
		}
	})
	return count, nil
}

func (r *lessonRepositoryInMemory) FindByID(ctx context.Context, id string) (domain.Lesson, error) {
	var (
		lesson domain.Lesson
		ok     bool
	)
	r.store.read(ctx, func() {
		lesson, ok = r.store.lessons[id]
	})
	if !ok {
		return domain.Lesson{}, domain.ErrLessonNotFound
	}
	return lesson, nil
}

// TryDecrement проверяет предусловие и пишет под одной блокировкой — это
// in-memory эквивалент guarded update: гонка двух декрементов невозможна.
func (r *lessonRepositoryInMemory) TryDecrement(ctx context.Context, id string, qty int64) error {
	var err error
	r.store.write(ctx, func() {
		lesson, ok := r.store.lessons[id]
		if !ok {
			err = domain.ErrLessonNotFound
			return
		}
		if lesson.Spaces < qty {
			err = &domain.InsufficientSpacesError{
				LessonID:  lesson.ID,
				Topic:     lesson.Topic,
				Available: lesson.Spaces,
				Requested: qty,
			}
			return
		}
		lesson.Spaces -= qty
		r.store.lessons[id] = lesson
	})
	return err
}

func (r *lessonRepositoryInMemory) ApplyFieldUpdate(ctx context.Context, id string, update domain.LessonUpdate) (domain.Lesson, error) {
	var (
		lesson domain.Lesson
		err    error
	)
	r.store.write(ctx, func() {
		current, ok := r.store.lessons[id]
		if !ok {
			err = domain.ErrLessonNotFound
			return
		}
		if update.Topic != nil {
			current.Topic = *update.Topic
		}
		if update.Location != nil {
			current.Location = *update.Location
		}
		if update.Price != nil {
			current.Price = *update.Price
		}
		if update.Spaces != nil {
			current.Spaces = *update.Spaces
		}
		if update.Description != nil {
			current.Description = *update.Description
		}
		if update.Image != nil {
			current.Image = *update.Image
		}
		r.store.lessons[id] = current
		lesson = current
	})
	return lesson, err
}

func matchesLessonFilter(lesson domain.Lesson, filter domain.LessonFilter) bool {
	if filter.Topic != "" && lesson.Topic != filter.Topic {
		return false
	}
	if filter.Location != "" && lesson.Location != filter.Location {
		return false
	}
	if filter.MinPrice != nil && lesson.Price < *filter.MinPrice {
		return false
	}
	if filter.MaxPrice != nil && lesson.Price > *filter.MaxPrice {
		return false
	}
	if filter.MinSpaces != nil && lesson.Spaces < *filter.MinSpaces {
		return false
	}
	if filter.Search != "" {
		needle := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(lesson.Topic), needle) &&
			!strings.Contains(strings.ToLower(lesson.Location), needle) &&
			!strings.Contains(strings.ToLower(lesson.Description), needle) {
			return false
		}
	}
	return true
}

func sortLessons(lessons []domain.Lesson, sortBy string, desc bool) {
	sort.Slice(lessons, func(i, j int) bool {
		a, b := lessons[i], lessons[j]
		if desc {
			a, b = b, a
		}
		switch sortBy {
		case domain.LessonSortLocation:
			if a.Location != b.Location {
				return a.Location < b.Location
			}
		case domain.LessonSortPrice:
			if a.Price != b.Price {
				return a.Price < b.Price
			}
		case domain.LessonSortSpaces:
			if a.Spaces != b.Spaces {
				return a.Spaces < b.Spaces
			}
		default:
			if a.Topic != b.Topic {
				return a.Topic < b.Topic
			}
		}
		// Стабильный tiebreak по ID, чтобы пагинация была детерминированной.
		return a.ID < b.ID
	})
}

var _ domain.LessonRepository = (*lessonRepositoryInMemory)(nil)
