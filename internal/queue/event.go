// Package queue defines the reservation events exchanged over RabbitMQ and
// the publisher and consumer that move them.
package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/store-reservation/internal/model"
)

// Event types carried in ReservationEvent.Type and used as routing keys.
const (
	EventReservationCreated   = "reservation.created"
	EventReservationCancelled = "reservation.cancelled"
)

// EventLine is the per-item part of a reservation event.
type EventLine struct {
	ItemID      uint64 `json:"item_id"`
	TicketCount int    `json:"ticket_count"`
}

// ReservationEvent is published after a reservation is created or
// cancelled.  It carries enough detail for consumers to log or notify
// without querying the primary database.
type ReservationEvent struct {
	EventID       string      `json:"event_id"`
	Type          string      `json:"event_type"`
	ReservationID uint64      `json:"reservation_id"`
	MemberID      uint64      `json:"member_id"`
	StoreID       uint64      `json:"store_id"`
	Date          string      `json:"reservation_date"`
	Status        string      `json:"status"`
	TotalPrice    int         `json:"total_price"`
	Items         []EventLine `json:"items"`
	OccurredAt    string      `json:"occurred_at"`
}

// NewReservationEvent builds an event of the given type for r, stamped
// with a fresh id and the given time.
func NewReservationEvent(eventType string, r *model.Reservation, at time.Time) ReservationEvent {
	lines := make([]EventLine, 0, len(r.Items))
	for _, it := range r.Items {
		lines = append(lines, EventLine{ItemID: it.ItemID, TicketCount: it.TicketCount})
	}
	return ReservationEvent{
		EventID:       uuid.New().String(),
		Type:          eventType,
		ReservationID: r.ID,
		MemberID:      r.MemberID,
		StoreID:       r.StoreID,
		Date:          r.Date.Format(model.DateLayout),
		Status:        r.Status,
		TotalPrice:    r.TotalPrice,
		Items:         lines,
		OccurredAt:    at.UTC().Format(time.RFC3339),
	}
}
