package model

import "time"

// Item lifecycle values.  Deleted items stay in storage so historical
// reservation lines keep their reference.
const (
	ItemActive  = "active"
	ItemDeleted = "deleted"
)

// Item is a bookable product or time slot offered by a store.  Price and
// TotalTicket are fixed when the item is created.
type Item struct {
	ID          uint64    `db:"id" json:"item_id"`
	StoreID     uint64    `db:"store_id" json:"-"`
	Name        string    `db:"item_name" json:"item_name"`
	Price       int       `db:"price" json:"price"`
	TotalTicket int       `db:"total_ticket" json:"total_ticket"`
	Status      string    `db:"status" json:"status"`
	CreatedAt   time.Time `db:"created_at" json:"-"`
}

// Deleted reports whether the item was soft-deleted.
func (i Item) Deleted() bool { return i.Status == ItemDeleted }
