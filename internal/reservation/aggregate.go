package reservation

import (
	"context"
	"fmt"
	"time"

	"github.com/iliyamo/store-reservation/internal/model"
)

// Aggregate returns the number of reserved tickets per item id for the
// store on the given date.  Cancelled reservations do not count.  Items
// nobody reserved are absent from the map; callers read them as zero.
func (s *Service) Aggregate(ctx context.Context, storeID uint64, date time.Time) (map[uint64]int, error) {
	list, err := s.repo.ReservationsByDateAndStore(ctx, model.DateOf(date), storeID)
	if err != nil {
		return nil, fmt.Errorf("load reservations of store %d: %w", storeID, err)
	}
	return tallyTickets(list), nil
}

func tallyTickets(list []model.Reservation) map[uint64]int {
	reserved := make(map[uint64]int)
	for _, r := range list {
		if r.Cancelled() {
			continue
		}
		for _, line := range r.Items {
			reserved[line.ItemID] += line.TicketCount
		}
	}
	return reserved
}
