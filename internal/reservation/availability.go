package reservation

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/iliyamo/store-reservation/internal/model"
)

// ItemAvailability is the live inventory view of one item.
type ItemAvailability struct {
	ItemID    uint64 `json:"item_id"`
	Name      string `json:"item_name"`
	Capacity  int    `json:"total_ticket"`
	Price     int    `json:"price"`
	Remaining int    `json:"remaining_ticket"`
}

// Availability returns the remaining tickets of every active item of the
// store for today.
func (s *Service) Availability(ctx context.Context, storeID uint64) ([]ItemAvailability, error) {
	return s.AvailabilityOn(ctx, storeID, s.today())
}

// AvailabilityOn returns the remaining tickets of every active item of the
// store for the given date, in the store's item order.
func (s *Service) AvailabilityOn(ctx context.Context, storeID uint64, date time.Time) ([]ItemAvailability, error) {
	ctx, span := tracer.Start(ctx, "reservation.Availability", trace.WithAttributes(
		attribute.Int64("store.id", int64(storeID)),
		attribute.String("date", date.Format(model.DateLayout)),
	))
	defer span.End()

	st, err := s.repo.StoreByID(ctx, storeID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	reserved, err := s.Aggregate(ctx, st.ID, date)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return availability(st.Items, reserved), nil
}

func availability(items []model.Item, reserved map[uint64]int) []ItemAvailability {
	out := make([]ItemAvailability, 0, len(items))
	for _, it := range items {
		if it.Deleted() {
			continue
		}
		out = append(out, ItemAvailability{
			ItemID:    it.ID,
			Name:      it.Name,
			Capacity:  it.TotalTicket,
			Price:     it.Price,
			Remaining: remainingTickets(it.TotalTicket, reserved[it.ID]),
		})
	}
	return out
}

// remainingTickets clamps capacity minus reserved into [0, capacity].
func remainingTickets(capacity, reserved int) int {
	if reserved < 0 {
		reserved = 0
	}
	left := capacity - reserved
	if left < 0 {
		return 0
	}
	return left
}
