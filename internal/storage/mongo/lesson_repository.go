package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vladislavdragonenkov/booking/internal/domain"
)

// lessonDoc — представление занятия в коллекции. Оба имени поля ёмкости
// читаются указателями, чтобы отличать отсутствующее поле от нуля:
// нормализация legacy-алиаса живёт только здесь, на границе репозитория.
type lessonDoc struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Topic       string             `bson:"topic"`
	Location    string             `bson:"location"`
	Price       float64            `bson:"price"`
	Spaces      *int64             `bson:"spaces,omitempty"`
	Space       *int64             `bson:"space,omitempty"`
	Description string             `bson:"description,omitempty"`
	Image       string             `bson:"image,omitempty"`
}

// toDomain нормализует ёмкость: текущее поле, иначе legacy, иначе 0.
func (d lessonDoc) toDomain() domain.Lesson {
	var spaces int64
	switch {
	case d.Spaces != nil:
		spaces = *d.Spaces
	case d.Space != nil:
		spaces = *d.Space
	}
	return domain.Lesson{
		ID:          d.ID.Hex(),
		Topic:       d.Topic,
		Location:    d.Location,
		Price:       d.Price,
		Spaces:      spaces,
		Description: d.Description,
		Image:       d.Image,
	}
}

type lessonRepository struct {
	coll *mongo.Collection
}

// NewLessonRepository создаёт Mongo-реализацию LessonRepository.
func NewLessonRepository(store *Store) domain.LessonRepository {
	return &lessonRepository{coll: store.Database().Collection(lessonsCollection)}
}

func (r *lessonRepository) Find(ctx context.Context, query domain.LessonQuery) ([]domain.Lesson, error) {
	opts := options.Find().SetSort(lessonSort(query.SortBy, query.Desc))
	if query.Skip > 0 {
		opts.SetSkip(query.Skip)
	}
	if query.Limit > 0 {
		opts.SetLimit(query.Limit)
	}

	cursor, err := r.coll.Find(ctx, buildLessonFilter(query.Filter), opts)
	if err != nil {
		return nil, fmt.Errorf("find lessons: %w", err)
	}
	defer cursor.Close(ctx)

	lessons := make([]domain.Lesson, 0)
	for cursor.Next(ctx) {
		var doc lessonDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode lesson: %w", err)
		}
		lessons = append(lessons, doc.toDomain())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate lessons: %w", err)
	}
	return lessons, nil
}

func (r *lessonRepository) Count(ctx context.Context, filter domain.LessonFilter) (int64, error) {
	count, err := r.coll.CountDocuments(ctx, buildLessonFilter(filter))
	if err != nil {
		return 0, fmt.Errorf("count lessons: %w", err)
	}
	return count, nil
}

func (r *lessonRepository) FindByID(ctx context.Context, id string) (domain.Lesson, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.Lesson{}, domain.ErrLessonNotFound
	}

	var doc lessonDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Lesson{}, domain.ErrLessonNotFound
		}
		return domain.Lesson{}, fmt.Errorf("find lesson: %w", err)
	}
	return doc.toDomain(), nil
}

// capacityExpr — нормализованная ёмкость в агрегационных выражениях:
// spaces, иначе legacy space, иначе 0.
func capacityExpr() bson.M {
	return bson.M{"$ifNull": bson.A{"$spaces", bson.M{"$ifNull": bson.A{"$space", int64(0)}}}}
}

// TryDecrement — одиночный условный update: предусловие spaces >= qty
// зашито в фильтр того же вызова, что и запись. Из двух гонящихся
// транзакций предусловие увидит выполненным только одна.
func (r *lessonRepository) TryDecrement(ctx context.Context, id string, qty int64) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrLessonNotFound
	}

	filter := bson.M{
		"_id":   oid,
		"$expr": bson.M{"$gte": bson.A{capacityExpr(), qty}},
	}
	// Pipeline-update, чтобы декремент работал и для legacy-документов
	// без поля spaces; вторая стадия зеркалит новое значение в алиас.
	update := mongo.Pipeline{
		bson.D{{Key: "$set", Value: bson.M{"spaces": bson.M{"$subtract": bson.A{capacityExpr(), qty}}}}},
		bson.D{{Key: "$set", Value: bson.M{"space": "$spaces"}}},
	}

	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("decrement lesson spaces: %w", err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	// Предусловие не прошло либо документа нет — различаем отдельным чтением.
	lesson, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}
	return &domain.InsufficientSpacesError{
		LessonID:  lesson.ID,
		Topic:     lesson.Topic,
		Available: lesson.Spaces,
		Requested: qty,
	}
}

func (r *lessonRepository) ApplyFieldUpdate(ctx context.Context, id string, update domain.LessonUpdate) (domain.Lesson, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.Lesson{}, domain.ErrLessonNotFound
	}
	if update.Empty() {
		return domain.Lesson{}, domain.ErrUpdateEmpty
	}

	set := bson.M{}
	if update.Topic != nil {
		set["topic"] = *update.Topic
	}
	if update.Location != nil {
		set["location"] = *update.Location
	}
	if update.Price != nil {
		set["price"] = *update.Price
	}
	if update.Spaces != nil {
		// Канонический и legacy-алиас всегда пишутся парой.
		set["spaces"] = *update.Spaces
		set["space"] = *update.Spaces
	}
	if update.Description != nil {
		set["description"] = *update.Description
	}
	if update.Image != nil {
		set["image"] = *update.Image
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc lessonDoc
	if err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set}, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Lesson{}, domain.ErrLessonNotFound
		}
		return domain.Lesson{}, fmt.Errorf("update lesson: %w", err)
	}
	return doc.toDomain(), nil
}

func buildLessonFilter(f domain.LessonFilter) bson.M {
	filter := bson.M{}
	if f.Topic != "" {
		filter["topic"] = f.Topic
	}
	if f.Location != "" {
		filter["location"] = f.Location
	}

	price := bson.M{}
	if f.MinPrice != nil {
		price["$gte"] = *f.MinPrice
	}
	if f.MaxPrice != nil {
		price["$lte"] = *f.MaxPrice
	}
	if len(price) > 0 {
		filter["price"] = price
	}

	// $or-условия собираются через $and, чтобы поиск и фильтр ёмкости
	// не затирали друг друга.
	var ands []bson.M
	if f.MinSpaces != nil {
		ands = append(ands, bson.M{"$or": []bson.M{
			{"spaces": bson.M{"$gte": *f.MinSpaces}},
			{"space": bson.M{"$gte": *f.MinSpaces}},
		}})
	}
	if f.Search != "" {
		re := primitive.Regex{Pattern: regexp.QuoteMeta(f.Search), Options: "i"}
		ands = append(ands, bson.M{"$or": []bson.M{
			{"topic": re},
			{"location": re},
			{"description": re},
		}})
	}
	if len(ands) > 0 {
		filter["$and"] = ands
	}
	return filter
}

func lessonSort(sortBy string, desc bool) bson.D {
	field := "topic"
	switch sortBy {
	case domain.LessonSortLocation:
		field = "location"
	case domain.LessonSortPrice:
		field = "price"
	case domain.LessonSortSpaces:
		field = "spaces"
	}
	dir := 1
	if desc {
		dir = -1
	}
	// Tiebreak по _id ради детерминированной пагинации.
	return bson.D{{Key: field, Value: dir}, {Key: "_id", Value: 1}}
}

var _ domain.LessonRepository = (*lessonRepository)(nil)
