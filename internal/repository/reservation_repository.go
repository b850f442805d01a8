package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/store-reservation/internal/model"
)

const reservationColumns = `id, member_id, store_id, reservation_date, reservation_name, reservation_phone,
	reservation_email, status, total_price, created_at, updated_at`

// ReservationRepo provides CRUD operations for reservations and their
// lines.  Lines live in reservation_items and are always loaded together
// with their reservation.
type ReservationRepo struct{ conn }

func NewReservationRepo(db *sqlx.DB) *ReservationRepo { return &ReservationRepo{conn{db}} }

// InsertReservation inserts the reservation and its lines, filling ids.
func (r *ReservationRepo) InsertReservation(ctx context.Context, res *model.Reservation) error {
	ext := r.ext(ctx)
	result, err := ext.ExecContext(ctx,
		`INSERT INTO reservations (member_id, store_id, reservation_date, reservation_name, reservation_phone,
		 reservation_email, status, total_price) VALUES (?,?,?,?,?,?,?,?)`,
		res.MemberID, res.StoreID, res.Date.Format(model.DateLayout), res.Name, res.Phone,
		res.Email, res.Status, res.TotalPrice)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)

	for i := range res.Items {
		line := &res.Items[i]
		line.ReservationID = res.ID
		result, err := ext.ExecContext(ctx,
			"INSERT INTO reservation_items (reservation_id, item_id, ticket_count, unit_price) VALUES (?,?,?,?)",
			line.ReservationID, line.ItemID, line.TicketCount, line.UnitPrice)
		if err != nil {
			return fmt.Errorf("insert line for item %d: %w", line.ItemID, err)
		}
		lineID, err := result.LastInsertId()
		if err != nil {
			return err
		}
		line.ID = uint64(lineID)
	}
	return nil
}

// UpdateReservation writes back the contact fields and the status.
func (r *ReservationRepo) UpdateReservation(ctx context.Context, res *model.Reservation) error {
	result, err := r.ext(ctx).ExecContext(ctx,
		`UPDATE reservations SET reservation_name = ?, reservation_phone = ?, reservation_email = ?, status = ?
		 WHERE id = ?`,
		res.Name, res.Phone, res.Email, res.Status, res.ID)
	if err != nil {
		return err
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		if _, err := r.ReservationByID(ctx, res.ID); err != nil {
			return err
		}
	}
	return nil
}

func (r *ReservationRepo) ReservationByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	var res model.Reservation
	err := sqlx.GetContext(ctx, r.ext(ctx), &res,
		"SELECT "+reservationColumns+" FROM reservations WHERE id = ?", id)
	if err != nil {
		return nil, notFound(err, "reservation %d", id)
	}
	list := []model.Reservation{res}
	if err := r.attachLines(ctx, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

// ReservationsByDateAndStore is the aggregator's read.  It returns every
// status; callers decide what counts.
func (r *ReservationRepo) ReservationsByDateAndStore(ctx context.Context, date time.Time, storeID uint64) ([]model.Reservation, error) {
	return r.list(ctx,
		"SELECT "+reservationColumns+" FROM reservations WHERE store_id = ? AND reservation_date = ? ORDER BY id",
		storeID, model.DateOf(date).Format(model.DateLayout))
}

// ReservationsByMember lists a member's reservations, newest first.
func (r *ReservationRepo) ReservationsByMember(ctx context.Context, memberID uint64) ([]model.Reservation, error) {
	return r.list(ctx,
		"SELECT "+reservationColumns+" FROM reservations WHERE member_id = ? ORDER BY created_at DESC, id DESC",
		memberID)
}

// DeleteCancelledBefore removes cancelled reservations dated before date.
// Lines go with them through ON DELETE CASCADE.
func (r *ReservationRepo) DeleteCancelledBefore(ctx context.Context, date time.Time) (int64, error) {
	result, err := r.ext(ctx).ExecContext(ctx,
		"DELETE FROM reservations WHERE status = ? AND reservation_date < ?",
		model.ReservationCancelled, model.DateOf(date).Format(model.DateLayout))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *ReservationRepo) list(ctx context.Context, q string, args ...any) ([]model.Reservation, error) {
	out := []model.Reservation{}
	if err := sqlx.SelectContext(ctx, r.ext(ctx), &out, q, args...); err != nil {
		return nil, err
	}
	if err := r.attachLines(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// attachLines loads the lines of all given reservations in one query and
// keeps each reservation's lines in insertion order.
func (r *ReservationRepo) attachLines(ctx context.Context, list []model.Reservation) error {
	if len(list) == 0 {
		return nil
	}
	ids := make([]uint64, 0, len(list))
	index := make(map[uint64]int, len(list))
	for i := range list {
		ids = append(ids, list[i].ID)
		index[list[i].ID] = i
		list[i].Items = []model.ReservationItem{}
	}
	ext := r.ext(ctx)
	q, args, err := sqlx.In(
		"SELECT id, reservation_id, item_id, ticket_count, unit_price FROM reservation_items WHERE reservation_id IN (?) ORDER BY id",
		ids)
	if err != nil {
		return err
	}
	var lines []model.ReservationItem
	if err := sqlx.SelectContext(ctx, ext, &lines, ext.Rebind(q), args...); err != nil {
		return fmt.Errorf("reservation lines: %w", err)
	}
	for _, l := range lines {
		i := index[l.ReservationID]
		list[i].Items = append(list[i].Items, l)
	}
	return nil
}
