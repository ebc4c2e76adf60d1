package memory

import (
	"context"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/vladislavdragonenkov/booking/internal/domain"
)

// orderRepositoryInMemory — реализация OrderRepository поверх Store.
type orderRepositoryInMemory struct {
	store *Store
}

// NewOrderRepository возвращает in-memory репозиторий заказов.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepositoryInMemory{store: store}
}

func (r *orderRepositoryInMemory) Insert(ctx context.Context, order domain.Order) (domain.Order, error) {
	if order.ID == "" {
		order.ID = primitive.NewObjectID().Hex()
	}
	r.store.write(ctx, func() {
		// Сохраняем копию, чтобы избежать мутаций извне.
		r.store.orders[order.ID] = cloneOrder(order)
	})
	return order, nil
}

func (r *orderRepositoryInMemory) Find(ctx context.Context, query domain.OrderQuery) ([]domain.Order, error) {
	var result []domain.Order
	r.store.read(ctx, func() {
		result = make([]domain.Order, 0, len(r.store.orders))
		for _, order := range r.store.orders {
			if matchesOrderFilter(order, query.Filter) {
				result = append(result, cloneOrder(order))
			}
		}
	})

	sortOrders(result, query.SortBy, query.Desc)

	if query.Skip > 0 {
		if query.Skip >= int64(len(result)) {
			return []domain.Order{}, nil
		}
		result = result[query.Skip:]
	}
	if query.Limit > 0 && int64(len(result)) > query.Limit {
		result = result[:query.Limit]
	}
	return result, nil
}

func (r *orderRepositoryInMemory) Count(ctx context.Context, filter domain.OrderFilter) (int64, error) {
	var count int64
	r.store.read(ctx, func() {
		for _, order := range r.store.orders {
			if matchesOrderFilter(order, filter) {
				count++
			}
		}
	})
	return count, nil
}

func (r *orderRepositoryInMemory) FindByID(ctx context.Context, id string) (domain.Order, error) {
	var (
		order domain.Order
		ok    bool
	)
	r.store.read(ctx, func() {
		var stored domain.Order
		stored, ok = r.store.orders[id]
		if ok {
			order = cloneOrder(stored)
		}
	})
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return order, nil
}

func (r *orderRepositoryInMemory) Stats(ctx context.Context) (domain.OrderStats, error) {
	var stats domain.OrderStats

	byStatus := make(map[domain.OrderStatus]int64)
	daily := make(map[string]*domain.DailyPoint)

	now := time.Now().UTC()
	weekAgo := now.AddDate(0, 0, -6).Truncate(24 * time.Hour)

	r.store.read(ctx, func() {
		for _, order := range r.store.orders {
			stats.TotalOrders++
			stats.TotalRevenue += order.TotalAmount
			stats.TotalLineItems += int64(len(order.Lines))
			byStatus[order.Status]++

			created := order.CreatedAt.UTC()
			if !created.Before(weekAgo) {
				day := created.Format("2006-01-02")
				point, ok := daily[day]
				if !ok {
					point = &domain.DailyPoint{Day: day}
					daily[day] = point
				}
				point.Count++
				point.Revenue += order.TotalAmount
			}
		}
	})

	if stats.TotalOrders > 0 {
		stats.AverageOrderValue = stats.TotalRevenue / float64(stats.TotalOrders)
	}

	stats.ByStatus = make([]domain.StatusCount, 0, len(byStatus))
	for status, count := range byStatus {
		stats.ByStatus = append(stats.ByStatus, domain.StatusCount{Status: status, Count: count})
	}
	sort.Slice(stats.ByStatus, func(i, j int) bool {
		if stats.ByStatus[i].Count != stats.ByStatus[j].Count {
			return stats.ByStatus[i].Count > stats.ByStatus[j].Count
		}
		return stats.ByStatus[i].Status < stats.ByStatus[j].Status
	})

	// Тренд отдаём за все 7 дней, заполняя нулями дни без заказов.
	stats.Daily = make([]domain.DailyPoint, 0, 7)
	for d := 0; d < 7; d++ {
		day := weekAgo.AddDate(0, 0, d).Format("2006-01-02")
		if point, ok := daily[day]; ok {
			stats.Daily = append(stats.Daily, *point)
		} else {
			stats.Daily = append(stats.Daily, domain.DailyPoint{Day: day})
		}
	}

	return stats, nil
}

func matchesOrderFilter(order domain.Order, filter domain.OrderFilter) bool {
	if filter.Status != "" && order.Status != filter.Status {
		return false
	}
	if filter.PaymentStatus != "" && order.PaymentStatus != filter.PaymentStatus {
		return false
	}
	return true
}

func sortOrders(orders []domain.Order, sortBy string, desc bool) {
	sort.Slice(orders, func(i, j int) bool {
		a, b := orders[i], orders[j]
		if desc {
			a, b = b, a
		}
		switch sortBy {
		case domain.OrderSortTotalAmount:
			if a.TotalAmount != b.TotalAmount {
				return a.TotalAmount < b.TotalAmount
			}
		case domain.OrderSortName:
			if a.Name != b.Name {
				return a.Name < b.Name
			}
		default:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
		}
		return a.ID < b.ID
	})
}

var _ domain.OrderRepository = (*orderRepositoryInMemory)(nil)
