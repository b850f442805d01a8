// Package reservation implements the reservation lifecycle and the ticket
// inventory reconciliation of stores: which tickets are reserved for an
// item on a date and how many are left.
package reservation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/iliyamo/store-reservation/internal/model"
	"github.com/iliyamo/store-reservation/internal/queue"
)

// Service creates, amends and cancels reservations and computes the
// remaining inventory of store items.  It is safe for concurrent use.
type Service struct {
	repo      Repository
	publisher Publisher
	log       *zap.Logger
	loc       *time.Location
	now       func() time.Time
}

// NewService wires a Service.  publisher may be nil, in which case no
// events are emitted.  loc decides what "today" means for date checks.
func NewService(repo Repository, publisher Publisher, log *zap.Logger, loc *time.Location) *Service {
	if repo == nil {
		panic("nil repository passed to NewService")
	}
	if log == nil {
		log = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{repo: repo, publisher: publisher, log: log, loc: loc, now: time.Now}
}

// Line is one requested item of a new reservation.
type Line struct {
	ItemID      uint64
	TicketCount int
}

// Draft holds what a member submits when reserving.
type Draft struct {
	Date       time.Time
	Name       string
	Phone      string
	Email      string
	TotalPrice int
	Lines      []Line
}

// Patch carries contact changes.  Nil or blank fields are left unchanged.
type Patch struct {
	Name  *string
	Phone *string
	Email *string
}

func (s *Service) today() time.Time { return model.DateOf(s.now().In(s.loc)) }

// Create books the draft's items at the store for the calling member.
// The store, date, items, stock and declared total are all checked inside
// one transaction; on failure nothing is stored.
func (s *Service) Create(ctx context.Context, id model.Identity, storeID uint64, d Draft) (*model.Reservation, error) {
	ctx, span := tracer.Start(ctx, "reservation.Create", trace.WithAttributes(
		attribute.Int64("store.id", int64(storeID)),
		attribute.Int("lines", len(d.Lines)),
	))
	defer span.End()

	var res *model.Reservation
	err := s.repo.WithinTx(ctx, func(ctx context.Context) error {
		st, err := s.repo.StoreByID(ctx, storeID)
		if err != nil {
			return err
		}
		date := model.DateOf(d.Date)
		if err := validateReservationDate(date, s.today()); err != nil {
			return err
		}
		member, err := s.repo.MemberByEmail(ctx, id.Email)
		if err != nil {
			return err
		}
		lines, err := s.priceLines(ctx, st.ID, date, d.Lines)
		if err != nil {
			return err
		}
		if err := validateTotalPrice(lines, d.TotalPrice); err != nil {
			return err
		}

		now := s.now().UTC()
		r := &model.Reservation{
			MemberID:   member.ID,
			StoreID:    st.ID,
			Date:       date,
			Name:       strings.TrimSpace(d.Name),
			Phone:      strings.TrimSpace(d.Phone),
			Email:      strings.TrimSpace(d.Email),
			Status:     model.ReservationPending,
			TotalPrice: d.TotalPrice,
			Items:      make([]model.ReservationItem, 0, len(lines)),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		for _, l := range lines {
			r.Items = append(r.Items, model.ReservationItem{
				ItemID:      l.Item.ID,
				TicketCount: l.TicketCount,
				UnitPrice:   l.Item.Price,
			})
		}
		if err := s.repo.InsertReservation(ctx, r); err != nil {
			return fmt.Errorf("insert reservation: %w", err)
		}
		res = r
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	created.Inc()
	s.log.Info("reservation created",
		zap.Uint64("reservation_id", res.ID),
		zap.Uint64("store_id", res.StoreID),
		zap.Uint64("member_id", res.MemberID),
		zap.String("date", res.Date.Format(model.DateLayout)),
	)
	s.publish(ctx, queue.EventReservationCreated, res)
	return res, nil
}

// priceLines locks the requested items, checks they belong to the store
// and are still offered, and checks the requested tickets against what is
// left for the date.  The returned lines keep the request order.
func (s *Service) priceLines(ctx context.Context, storeID uint64, date time.Time, in []Line) ([]pricedLine, error) {
	if len(in) == 0 {
		failures.WithLabelValues("no_items").Inc()
		return nil, fmt.Errorf("%w: a reservation needs at least one item", model.ErrInvalidArgument)
	}
	requested := make(map[uint64]int, len(in))
	ids := make([]uint64, 0, len(in))
	for _, l := range in {
		if l.TicketCount <= 0 {
			failures.WithLabelValues("ticket_count").Inc()
			return nil, fmt.Errorf("%w: ticket count for item %d must be positive", model.ErrInvalidArgument, l.ItemID)
		}
		if _, seen := requested[l.ItemID]; !seen {
			ids = append(ids, l.ItemID)
		}
		requested[l.ItemID] += l.TicketCount
	}

	// Items are locked before the date's reservations are read so two
	// bookings of the same item cannot both see the same stock.
	items, err := s.repo.LockItems(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("lock items: %w", err)
	}
	byID := make(map[uint64]model.Item, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}
	reserved, err := s.Aggregate(ctx, storeID, date)
	if err != nil {
		return nil, err
	}

	for _, itemID := range ids {
		it, ok := byID[itemID]
		if !ok || it.StoreID != storeID {
			return nil, fmt.Errorf("item %d in store %d: %w", itemID, storeID, model.ErrNotFound)
		}
		if it.Deleted() {
			failures.WithLabelValues("deleted_item").Inc()
			return nil, fmt.Errorf("%w: item %d is no longer offered", model.ErrInvalidArgument, itemID)
		}
		if err := validateTicketCount(it, requested[itemID], reserved[itemID]); err != nil {
			return nil, err
		}
	}

	lines := make([]pricedLine, 0, len(in))
	for _, l := range in {
		lines = append(lines, pricedLine{Item: byID[l.ItemID], TicketCount: l.TicketCount})
	}
	return lines, nil
}

// Update applies the non-empty contact fields of p to a reservation owned
// by the caller.
func (s *Service) Update(ctx context.Context, id model.Identity, reservationID uint64, p Patch) (*model.Reservation, error) {
	ctx, span := tracer.Start(ctx, "reservation.Update", trace.WithAttributes(
		attribute.Int64("reservation.id", int64(reservationID)),
	))
	defer span.End()

	var res *model.Reservation
	err := s.repo.WithinTx(ctx, func(ctx context.Context) error {
		r, err := s.ownedReservation(ctx, id, reservationID)
		if err != nil {
			return err
		}
		if r.Cancelled() {
			return fmt.Errorf("%w: reservation %d is cancelled", model.ErrInvalidArgument, r.ID)
		}
		applyPatch(r, p)
		r.UpdatedAt = s.now().UTC()
		if err := s.repo.UpdateReservation(ctx, r); err != nil {
			return fmt.Errorf("update reservation %d: %w", r.ID, err)
		}
		res = r
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return res, nil
}

func applyPatch(r *model.Reservation, p Patch) {
	set := func(dst *string, v *string) {
		if v == nil {
			return
		}
		if t := strings.TrimSpace(*v); t != "" {
			*dst = t
		}
	}
	set(&r.Name, p.Name)
	set(&r.Phone, p.Phone)
	set(&r.Email, p.Email)
}

// Cancel moves a reservation owned by the caller to CANCELLED.  The row
// is kept; its tickets stop counting against availability.  Cancelling
// twice is a no-op.
func (s *Service) Cancel(ctx context.Context, id model.Identity, reservationID uint64) (*model.Reservation, error) {
	ctx, span := tracer.Start(ctx, "reservation.Cancel", trace.WithAttributes(
		attribute.Int64("reservation.id", int64(reservationID)),
	))
	defer span.End()

	var (
		res     *model.Reservation
		changed bool
	)
	err := s.repo.WithinTx(ctx, func(ctx context.Context) error {
		r, err := s.ownedReservation(ctx, id, reservationID)
		if err != nil {
			return err
		}
		res = r
		if r.Cancelled() {
			return nil
		}
		r.Status = model.ReservationCancelled
		r.UpdatedAt = s.now().UTC()
		if err := s.repo.UpdateReservation(ctx, r); err != nil {
			return fmt.Errorf("cancel reservation %d: %w", r.ID, err)
		}
		changed = true
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if changed {
		cancelled.Inc()
		s.log.Info("reservation cancelled", zap.Uint64("reservation_id", res.ID), zap.Uint64("store_id", res.StoreID))
		s.publish(ctx, queue.EventReservationCancelled, res)
	}
	return res, nil
}

// Get returns a reservation with its lines.
func (s *Service) Get(ctx context.Context, reservationID uint64) (*model.Reservation, error) {
	return s.repo.ReservationByID(ctx, reservationID)
}

// ListMine returns the caller's reservations, newest first.
func (s *Service) ListMine(ctx context.Context, id model.Identity) ([]model.Reservation, error) {
	member, err := s.repo.MemberByEmail(ctx, id.Email)
	if err != nil {
		return nil, err
	}
	return s.repo.ReservationsByMember(ctx, member.ID)
}

// ListForStore returns every reservation of the store on the date.  Only
// the store's owner may list them.
func (s *Service) ListForStore(ctx context.Context, id model.Identity, storeID uint64, date time.Time) ([]model.Reservation, error) {
	st, err := s.repo.StoreByID(ctx, storeID)
	if err != nil {
		return nil, err
	}
	member, err := s.repo.MemberByEmail(ctx, id.Email)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown member", model.ErrPermissionDenied)
		}
		return nil, err
	}
	if st.OwnerID != member.ID {
		return nil, fmt.Errorf("%w: store %d belongs to another member", model.ErrPermissionDenied, st.ID)
	}
	return s.repo.ReservationsByDateAndStore(ctx, model.DateOf(date), st.ID)
}

// PurgeCancelled hard-deletes cancelled reservations dated before the
// given day.  It is the data-retention counterpart of Cancel.
func (s *Service) PurgeCancelled(ctx context.Context, before time.Time) (int64, error) {
	var n int64
	err := s.repo.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		n, err = s.repo.DeleteCancelledBefore(ctx, model.DateOf(before))
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("purge cancelled reservations: %w", err)
	}
	if n > 0 {
		s.log.Info("purged cancelled reservations", zap.Int64("count", n), zap.String("before", before.Format(model.DateLayout)))
	}
	return n, nil
}

// RunRetention purges cancelled reservations dated more than days before
// today, once at start and then every interval until ctx ends.
func (s *Service) RunRetention(ctx context.Context, days int, interval time.Duration) {
	s.purgeExpired(ctx, days)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.purgeExpired(ctx, days)
		}
	}
}

func (s *Service) purgeExpired(ctx context.Context, days int) {
	if _, err := s.PurgeCancelled(ctx, s.today().AddDate(0, 0, -days)); err != nil {
		s.log.Error("purge cancelled reservations failed", zap.Error(err))
	}
}

// ownedReservation loads a reservation and checks the caller owns it.
func (s *Service) ownedReservation(ctx context.Context, id model.Identity, reservationID uint64) (*model.Reservation, error) {
	r, err := s.repo.ReservationByID(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	member, err := s.repo.MemberByEmail(ctx, id.Email)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown member", model.ErrPermissionDenied)
		}
		return nil, err
	}
	if member.ID != r.MemberID {
		return nil, fmt.Errorf("%w: reservation %d belongs to another member", model.ErrPermissionDenied, r.ID)
	}
	return r, nil
}

// publish sends an event after commit.  Delivery failures are logged and
// never undo the committed change.
func (s *Service) publish(ctx context.Context, eventType string, r *model.Reservation) {
	if s.publisher == nil {
		return
	}
	ev := queue.NewReservationEvent(eventType, r, s.now())
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.log.Warn("publish reservation event failed",
			zap.String("event_type", eventType),
			zap.Uint64("reservation_id", r.ID),
			zap.Error(err),
		)
	}
}
