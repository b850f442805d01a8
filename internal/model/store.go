package model

import "time"

// Store represents a venue that offers items for reservation.  A store
// belongs to one partner member and its coordinates are geocoded once
// from the address when the store is created.
//
// Fields:
//  ID        – primary key identifier.
//  OwnerID   – member ID of the partner who owns the store.
//  Name      – display name.
//  Category  – free-form category label.
//  Body      – long description.
//  Address   – street address used for geocoding.
//  Contact   – contact phone number.
//  Kakao     – Kakao channel link.
//  Latitude  – geocoded latitude.
//  Longitude – geocoded longitude.
//  Items     – items in store order (id ascending).
//  Images    – image references in insertion order.
type Store struct {
	ID        uint64       `db:"id"`
	OwnerID   uint64       `db:"owner_id"`
	Name      string       `db:"store_name"`
	Category  string       `db:"category"`
	Body      string       `db:"body"`
	Address   string       `db:"address"`
	Contact   string       `db:"contact"`
	Kakao     string       `db:"kakao"`
	Latitude  float64      `db:"latitude"`
	Longitude float64      `db:"longitude"`
	CreatedAt time.Time    `db:"created_at"`
	Items     []Item       `db:"-"`
	Images    []StoreImage `db:"-"`
}

// StoreImage references an uploaded image of a store.  At most one image
// is expected to be flagged as the thumbnail.
type StoreImage struct {
	ID          uint64 `db:"id"`
	StoreID     uint64 `db:"store_id"`
	Link        string `db:"link"`
	IsThumbnail bool   `db:"is_thumbnail"`
}
