package reservation

import (
	"fmt"
	"time"

	"github.com/iliyamo/store-reservation/internal/model"
)

// validateReservationDate rejects dates strictly before today.
func validateReservationDate(date, today time.Time) error {
	if model.DateOf(date).Before(model.DateOf(today)) {
		failures.WithLabelValues("past_date").Inc()
		return fmt.Errorf("%w: reservation date %s is before today %s",
			model.ErrInvalidArgument, date.Format(model.DateLayout), today.Format(model.DateLayout))
	}
	return nil
}

// validateTicketCount checks that requested tickets fit in what is left
// of the item after the already reserved tickets.
func validateTicketCount(item model.Item, requested, reserved int) error {
	if requested <= 0 {
		failures.WithLabelValues("ticket_count").Inc()
		return fmt.Errorf("%w: ticket count for item %d must be positive", model.ErrInvalidArgument, item.ID)
	}
	left := remainingTickets(item.TotalTicket, reserved)
	if requested > left {
		failures.WithLabelValues("sold_out").Inc()
		return fmt.Errorf("%w: item %d has %d tickets left, %d requested",
			model.ErrInvalidArgument, item.ID, left, requested)
	}
	return nil
}

// pricedLine is a reservation line joined with the item it references.
type pricedLine struct {
	Item        model.Item
	TicketCount int
}

// validateTotalPrice recomputes sum(count * price) and compares it with
// the declared total.
func validateTotalPrice(lines []pricedLine, declared int) error {
	sum := 0
	for _, l := range lines {
		sum += l.TicketCount * l.Item.Price
	}
	if sum != declared {
		failures.WithLabelValues("total_price").Inc()
		return fmt.Errorf("%w: declared total %d does not match item total %d",
			model.ErrInvalidArgument, declared, sum)
	}
	return nil
}
