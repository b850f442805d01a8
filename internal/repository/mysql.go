package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// MySQL bundles the table repositories behind one value that satisfies the
// reservation, store and auth ports.
type MySQL struct {
	db *sqlx.DB
	*MemberRepo
	*TokenRepo
	*StoreRepo
	*ReservationRepo
}

func NewMySQL(db *sqlx.DB) *MySQL {
	return &MySQL{
		db:              db,
		MemberRepo:      NewMemberRepo(db),
		TokenRepo:       NewTokenRepo(db),
		StoreRepo:       NewStoreRepo(db),
		ReservationRepo: NewReservationRepo(db),
	}
}

// WithinTx runs fn in one transaction shared by every repository call
// made with the context fn receives.
func (m *MySQL) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withinTx(ctx, m.db, fn)
}
