package mongo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vladislavdragonenkov/booking/internal/domain"
)

type orderLineDoc struct {
	LessonID string  `bson:"lessonId"`
	Topic    string  `bson:"topic"`
	Location string  `bson:"location"`
	Price    float64 `bson:"price"`
	Quantity int64   `bson:"quantity"`
	Amount   float64 `bson:"amount"`
}

type orderDoc struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	Name          string             `bson:"name"`
	Phone         string             `bson:"phone"`
	Lines         []orderLineDoc     `bson:"lines"`
	TotalAmount   float64            `bson:"totalAmount"`
	Status        string             `bson:"status"`
	PaymentStatus string             `bson:"paymentStatus"`
	CreatedAt     time.Time          `bson:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt"`
}

func (d orderDoc) toDomain() domain.Order {
	lines := make([]domain.OrderLine, 0, len(d.Lines))
	for _, l := range d.Lines {
		lines = append(lines, domain.OrderLine(l))
	}
	return domain.Order{
		ID:            d.ID.Hex(),
		Name:          d.Name,
		Phone:         d.Phone,
		Lines:         lines,
		TotalAmount:   d.TotalAmount,
		Status:        domain.OrderStatus(d.Status),
		PaymentStatus: domain.PaymentStatus(d.PaymentStatus),
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

func orderToDoc(order domain.Order) (orderDoc, error) {
	doc := orderDoc{
		Name:          order.Name,
		Phone:         order.Phone,
		TotalAmount:   order.TotalAmount,
		Status:        string(order.Status),
		PaymentStatus: string(order.PaymentStatus),
		CreatedAt:     order.CreatedAt,
		UpdatedAt:     order.UpdatedAt,
	}
	if order.ID != "" {
		oid, err := primitive.ObjectIDFromHex(order.ID)
		if err != nil {
			return orderDoc{}, fmt.Errorf("invalid order id %q: %w", order.ID, err)
		}
		doc.ID = oid
	}
	doc.Lines = make([]orderLineDoc, 0, len(order.Lines))
	for _, l := range order.Lines {
		doc.Lines = append(doc.Lines, orderLineDoc(l))
	}
	return doc, nil
}

type orderRepository struct {
	coll *mongo.Collection
}

// NewOrderRepository создаёт Mongo-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{coll: store.Database().Collection(ordersCollection)}
}

func (r *orderRepository) Insert(ctx context.Context, order domain.Order) (domain.Order, error) {
	doc, err := orderToDoc(order)
	if err != nil {
		return domain.Order{}, err
	}
	if doc.ID.IsZero() {
		doc.ID = primitive.NewObjectID()
	}

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return domain.Order{}, fmt.Errorf("insert order: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *orderRepository) Find(ctx context.Context, query domain.OrderQuery) ([]domain.Order, error) {
	opts := options.Find().SetSort(orderSort(query.SortBy, query.Desc))
	if query.Skip > 0 {
		opts.SetSkip(query.Skip)
	}
	if query.Limit > 0 {
		opts.SetLimit(query.Limit)
	}

	cursor, err := r.coll.Find(ctx, buildOrderFilter(query.Filter), opts)
	if err != nil {
		return nil, fmt.Errorf("find orders: %w", err)
	}
	defer cursor.Close(ctx)

	orders := make([]domain.Order, 0)
	for cursor.Next(ctx) {
		var doc orderDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode order: %w", err)
		}
		orders = append(orders, doc.toDomain())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	return orders, nil
}

func (r *orderRepository) Count(ctx context.Context, filter domain.OrderFilter) (int64, error) {
	count, err := r.coll.CountDocuments(ctx, buildOrderFilter(filter))
	if err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	return count, nil
}

func (r *orderRepository) FindByID(ctx context.Context, id string) (domain.Order, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.Order{}, domain.ErrOrderNotFound
	}

	var doc orderDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("find order: %w", err)
	}
	return doc.toDomain(), nil
}

// Stats считает сводку тремя агрегациями: общие показатели, разрез по
// статусам и дневной тренд за 7 суток. Пустые дни дозаполняются нулями
// уже на стороне приложения.
func (r *orderRepository) Stats(ctx context.Context) (domain.OrderStats, error) {
	stats := domain.OrderStats{
		ByStatus: []domain.StatusCount{},
		Daily:    []domain.DailyPoint{},
	}

	totalsPipeline := mongo.Pipeline{
		bson.D{{Key: "$group", Value: bson.M{
			"_id":       nil,
			"total":     bson.M{"$sum": 1},
			"revenue":   bson.M{"$sum": "$totalAmount"},
			"lineItems": bson.M{"$sum": bson.M{"$size": "$lines"}},
		}}},
	}
	cursor, err := r.coll.Aggregate(ctx, totalsPipeline)
	if err != nil {
		return domain.OrderStats{}, fmt.Errorf("aggregate order totals: %w", err)
	}
	var totals []struct {
		Total     int64   `bson:"total"`
		Revenue   float64 `bson:"revenue"`
		LineItems int64   `bson:"lineItems"`
	}
	if err := cursor.All(ctx, &totals); err != nil {
		return domain.OrderStats{}, fmt.Errorf("decode order totals: %w", err)
	}
	if len(totals) > 0 {
		stats.TotalOrders = totals[0].Total
		stats.TotalRevenue = totals[0].Revenue
		stats.TotalLineItems = totals[0].LineItems
		if stats.TotalOrders > 0 {
			stats.AverageOrderValue = stats.TotalRevenue / float64(stats.TotalOrders)
		}
	}

	statusPipeline := mongo.Pipeline{
		bson.D{{Key: "$group", Value: bson.M{
			"_id":   "$status",
			"count": bson.M{"$sum": 1},
		}}},
	}
	cursor, err = r.coll.Aggregate(ctx, statusPipeline)
	if err != nil {
		return domain.OrderStats{}, fmt.Errorf("aggregate order statuses: %w", err)
	}
	var byStatus []struct {
		Status string `bson:"_id"`
		Count  int64  `bson:"count"`
	}
	if err := cursor.All(ctx, &byStatus); err != nil {
		return domain.OrderStats{}, fmt.Errorf("decode order statuses: %w", err)
	}
	for _, sc := range byStatus {
		stats.ByStatus = append(stats.ByStatus, domain.StatusCount{
			Status: domain.OrderStatus(sc.Status),
			Count:  sc.Count,
		})
	}
	sort.Slice(stats.ByStatus, func(i, j int) bool {
		if stats.ByStatus[i].Count != stats.ByStatus[j].Count {
			return stats.ByStatus[i].Count > stats.ByStatus[j].Count
		}
		return stats.ByStatus[i].Status < stats.ByStatus[j].Status
	})

	weekAgo := time.Now().UTC().AddDate(0, 0, -6).Truncate(24 * time.Hour)
	dailyPipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{"createdAt": bson.M{"$gte": weekAgo}}}},
		bson.D{{Key: "$group", Value: bson.M{
			"_id": bson.M{"$dateToString": bson.M{
				"format": "%Y-%m-%d",
				"date":   "$createdAt",
			}},
			"count":   bson.M{"$sum": 1},
			"revenue": bson.M{"$sum": "$totalAmount"},
		}}},
	}
	cursor, err = r.coll.Aggregate(ctx, dailyPipeline)
	if err != nil {
		return domain.OrderStats{}, fmt.Errorf("aggregate daily orders: %w", err)
	}
	var daily []struct {
		Day     string  `bson:"_id"`
		Count   int64   `bson:"count"`
		Revenue float64 `bson:"revenue"`
	}
	if err := cursor.All(ctx, &daily); err != nil {
		return domain.OrderStats{}, fmt.Errorf("decode daily orders: %w", err)
	}

	byDay := make(map[string]domain.DailyPoint, len(daily))
	for _, p := range daily {
		byDay[p.Day] = domain.DailyPoint{Day: p.Day, Count: p.Count, Revenue: p.Revenue}
	}
	for i := 0; i < 7; i++ {
		day := weekAgo.AddDate(0, 0, i).Format("2006-01-02")
		point, ok := byDay[day]
		if !ok {
			point = domain.DailyPoint{Day: day}
		}
		stats.Daily = append(stats.Daily, point)
	}

	return stats, nil
}

func buildOrderFilter(f domain.OrderFilter) bson.M {
	filter := bson.M{}
	if f.Status != "" {
		filter["status"] = string(f.Status)
	}
	if f.PaymentStatus != "" {
		filter["paymentStatus"] = string(f.PaymentStatus)
	}
	return filter
}

func orderSort(sortBy string, desc bool) bson.D {
	field := "createdAt"
	switch sortBy {
	case domain.OrderSortTotalAmount:
		field = "totalAmount"
	case domain.OrderSortName:
		field = "name"
	}
	dir := 1
	if desc {
		dir = -1
	}
	return bson.D{{Key: field, Value: dir}, {Key: "_id", Value: 1}}
}

var _ domain.OrderRepository = (*orderRepository)(nil)
