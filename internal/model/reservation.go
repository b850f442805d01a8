package model

import "time"

// Reservation status values.  CANCELLED is terminal.
const (
	ReservationPending   = "PENDING"
	ReservationCancelled = "CANCELLED"
)

// Reservation records a member's booking at a store for one calendar
// date.  It groups one or more ReservationItem lines and carries the
// contact details given at booking time.
//
// Fields:
//  ID         – primary key identifier.
//  MemberID   – member who made (and owns) the reservation.
//  StoreID    – store being reserved.
//  Date       – reservation date (midnight UTC, no time component).
//  Name       – contact name.
//  Phone      – contact phone number.
//  Email      – contact email.
//  Status     – PENDING or CANCELLED.
//  TotalPrice – declared total price of all lines.
//  Items      – ordered reservation lines.
//  CreatedAt  – creation timestamp.
//  UpdatedAt  – last update timestamp.
type Reservation struct {
	ID         uint64            `db:"id" json:"id"`
	MemberID   uint64            `db:"member_id" json:"member_id"`
	StoreID    uint64            `db:"store_id" json:"store_id"`
	Date       time.Time         `db:"reservation_date" json:"-"`
	Name       string            `db:"reservation_name" json:"reservation_name"`
	Phone      string            `db:"reservation_phone" json:"reservation_phone"`
	Email      string            `db:"reservation_email" json:"reservation_email"`
	Status     string            `db:"status" json:"status"`
	TotalPrice int               `db:"total_price" json:"total_price"`
	Items      []ReservationItem `db:"-" json:"items"`
	CreatedAt  time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time         `db:"updated_at" json:"updated_at"`
}

// Cancelled reports whether the reservation reached its terminal state.
func (r Reservation) Cancelled() bool { return r.Status == ReservationCancelled }

// ReservationItem is one item-and-quantity line of a reservation.
//
// Fields:
//  ID            – primary key identifier.
//  ReservationID – owning reservation.
//  ItemID        – reserved item.
//  TicketCount   – number of tickets (always positive).
//  UnitPrice     – item price captured when the reservation was created.
type ReservationItem struct {
	ID            uint64 `db:"id" json:"id"`
	ReservationID uint64 `db:"reservation_id" json:"-"`
	ItemID        uint64 `db:"item_id" json:"item_id"`
	TicketCount   int    `db:"ticket_count" json:"ticket_count"`
	UnitPrice     int    `db:"unit_price" json:"unit_price"`
}
