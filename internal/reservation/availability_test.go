package reservation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/store-reservation/internal/model"
)

func TestTallyTicketsSkipsCancelled(t *testing.T) {
	list := []model.Reservation{
		{Status: model.ReservationPending, Items: []model.ReservationItem{{ItemID: 1, TicketCount: 2}, {ItemID: 2, TicketCount: 1}}},
		{Status: model.ReservationPending, Items: []model.ReservationItem{{ItemID: 1, TicketCount: 1}}},
		{Status: model.ReservationCancelled, Items: []model.ReservationItem{{ItemID: 1, TicketCount: 4}, {ItemID: 3, TicketCount: 1}}},
	}

	got := tallyTickets(list)
	assert.Equal(t, map[uint64]int{1: 3, 2: 1}, got)
	_, present := got[3]
	assert.False(t, present, "items only on cancelled reservations must be absent")
}

func TestRemainingTicketsClamps(t *testing.T) {
	tests := []struct {
		capacity, reserved, want int
	}{
		{5, 0, 5},
		{5, 3, 2},
		{5, 5, 0},
		{5, 8, 0},
		{5, -2, 5},
		{0, 0, 0},
	}
	for _, tt := range tests {
		got := remainingTickets(tt.capacity, tt.reserved)
		assert.Equal(t, tt.want, got, "capacity=%d reserved=%d", tt.capacity, tt.reserved)
		assert.GreaterOrEqual(t, got, 0)
		assert.LessOrEqual(t, got, tt.capacity)
	}
}

func TestAvailabilityKeepsOrderAndSkipsDeleted(t *testing.T) {
	items := []model.Item{
		{ID: 3, Name: "c", TotalTicket: 4, Price: 5, Status: model.ItemActive},
		{ID: 1, Name: "a", TotalTicket: 2, Price: 7, Status: model.ItemDeleted},
		{ID: 2, Name: "b", TotalTicket: 1, Price: 9, Status: model.ItemActive},
	}

	got := availability(items, map[uint64]int{3: 1, 1: 1, 2: 5})
	assert.Equal(t, []ItemAvailability{
		{ItemID: 3, Name: "c", Capacity: 4, Price: 5, Remaining: 3},
		{ItemID: 2, Name: "b", Capacity: 1, Price: 9, Remaining: 0},
	}, got)
}
