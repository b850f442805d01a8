package reservation

import (
	"context"
	"time"

	"github.com/iliyamo/store-reservation/internal/model"
	"github.com/iliyamo/store-reservation/internal/queue"
)

// Repository is the persistence port of the reservation service.  Lookups
// that find nothing return an error wrapping model.ErrNotFound.
//
// WithinTx runs fn inside one atomic unit of work.  The context handed to
// fn carries the transaction; every repository call made with it joins
// the same transaction.  fn returning an error rolls everything back.
type Repository interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error

	StoreByID(ctx context.Context, id uint64) (*model.Store, error)
	MemberByEmail(ctx context.Context, email string) (*model.Member, error)

	// LockItems loads the given items and, inside a transaction, holds a
	// write lock on them until the transaction ends.  Missing ids are
	// simply absent from the result.
	LockItems(ctx context.Context, ids []uint64) ([]model.Item, error)

	ReservationByID(ctx context.Context, id uint64) (*model.Reservation, error)
	// ReservationsByDateAndStore returns every reservation of the store on
	// the date regardless of status, lines included.
	ReservationsByDateAndStore(ctx context.Context, date time.Time, storeID uint64) ([]model.Reservation, error)
	ReservationsByMember(ctx context.Context, memberID uint64) ([]model.Reservation, error)

	// InsertReservation stores r and its lines, assigning their ids.
	InsertReservation(ctx context.Context, r *model.Reservation) error
	// UpdateReservation persists the contact fields and status of r.
	UpdateReservation(ctx context.Context, r *model.Reservation) error
	DeleteCancelledBefore(ctx context.Context, date time.Time) (int64, error)
}

// Publisher delivers reservation events to interested consumers.
type Publisher interface {
	Publish(ctx context.Context, ev queue.ReservationEvent) error
}
