package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/store-reservation/internal/middleware"
	"github.com/iliyamo/store-reservation/internal/model"
	"github.com/iliyamo/store-reservation/internal/reservation"
)

// ReservationHandler exposes the reservation lifecycle to members and
// the per-date reservation list to partners.
type ReservationHandler struct {
	reservations *reservation.Service
	cache        StoreCache
	log          *zap.Logger
}

// NewReservationHandler wires a ReservationHandler.  cache may be nil.
func NewReservationHandler(reservations *reservation.Service, cache StoreCache, log *zap.Logger) *ReservationHandler {
	if reservations == nil {
		panic("nil reservation service passed to NewReservationHandler")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ReservationHandler{reservations: reservations, cache: cache, log: log}
}

type lineReq struct {
	ItemID      uint64 `json:"item_id"`
	TicketCount int    `json:"ticket_count"`
}

type createReservationReq struct {
	Date       string    `json:"reservation_date"`
	Name       string    `json:"reservation_name"`
	Phone      string    `json:"reservation_phone"`
	Email      string    `json:"reservation_email"`
	TotalPrice int       `json:"total_price"`
	Items      []lineReq `json:"items"`
}

type patchReservationReq struct {
	Name  *string `json:"reservation_name"`
	Phone *string `json:"reservation_phone"`
	Email *string `json:"reservation_email"`
}

type reservationResp struct {
	ID         uint64                  `json:"reservation_id"`
	StoreID    uint64                  `json:"store_id"`
	MemberID   uint64                  `json:"member_id"`
	Date       string                  `json:"reservation_date"`
	Name       string                  `json:"reservation_name"`
	Phone      string                  `json:"reservation_phone"`
	Email      string                  `json:"reservation_email"`
	Status     string                  `json:"status"`
	TotalPrice int                     `json:"total_price"`
	Items      []model.ReservationItem `json:"items"`
	CreatedAt  time.Time               `json:"created_at"`
	UpdatedAt  time.Time               `json:"updated_at"`
}

func toReservationResp(r *model.Reservation) reservationResp {
	items := r.Items
	if items == nil {
		items = []model.ReservationItem{}
	}
	return reservationResp{
		ID:         r.ID,
		StoreID:    r.StoreID,
		MemberID:   r.MemberID,
		Date:       r.Date.Format(model.DateLayout),
		Name:       r.Name,
		Phone:      r.Phone,
		Email:      r.Email,
		Status:     r.Status,
		TotalPrice: r.TotalPrice,
		Items:      items,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

func toReservationList(list []model.Reservation) []reservationResp {
	out := make([]reservationResp, 0, len(list))
	for i := range list {
		out = append(out, toReservationResp(&list[i]))
	}
	return out
}

// Create handles POST /v1/stores/:id/reservations.
func (h *ReservationHandler) Create(c echo.Context) error {
	id, ok := identity(c)
	if !ok {
		return unauthorized(c)
	}
	storeID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid store id")
	}
	var req createReservationReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	date, err := model.ParseDate(req.Date)
	if err != nil {
		return badRequest(c, "reservation_date must be YYYY-MM-DD")
	}
	if len(req.Items) == 0 {
		return badRequest(c, "items is required")
	}
	lines := make([]reservation.Line, 0, len(req.Items))
	for _, it := range req.Items {
		lines = append(lines, reservation.Line{ItemID: it.ItemID, TicketCount: it.TicketCount})
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	r, err := h.reservations.Create(ctx, id, storeID, reservation.Draft{
		Date:       date,
		Name:       req.Name,
		Phone:      req.Phone,
		Email:      req.Email,
		TotalPrice: req.TotalPrice,
		Lines:      lines,
	})
	if err != nil {
		return fail(c, h.log, err)
	}
	h.invalidate(ctx, r.StoreID)
	return c.JSON(http.StatusCreated, toReservationResp(r))
}

// invalidate drops the cached views of a store whose remaining tickets
// just changed.
func (h *ReservationHandler) invalidate(ctx context.Context, storeID uint64) {
	if h.cache != nil {
		h.cache.InvalidateStore(ctx, storeID)
	}
}

// Get handles GET /v1/reservations/:id.  Members only see their own
// reservations.
func (h *ReservationHandler) Get(c echo.Context) error {
	memberID, ok := middleware.MemberIDFrom(c)
	if !ok {
		return unauthorized(c)
	}
	resID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid reservation id")
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	r, err := h.reservations.Get(ctx, resID)
	if err != nil {
		return fail(c, h.log, err)
	}
	if r.MemberID != memberID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not your reservation"})
	}
	return c.JSON(http.StatusOK, toReservationResp(r))
}

// Update handles PATCH /v1/reservations/:id.  Only contact details can
// change.
func (h *ReservationHandler) Update(c echo.Context) error {
	id, ok := identity(c)
	if !ok {
		return unauthorized(c)
	}
	resID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid reservation id")
	}
	var req patchReservationReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	r, err := h.reservations.Update(ctx, id, resID, reservation.Patch{Name: req.Name, Phone: req.Phone, Email: req.Email})
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, toReservationResp(r))
}

// Cancel handles DELETE /v1/reservations/:id.  Cancelling twice is not an
// error.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	id, ok := identity(c)
	if !ok {
		return unauthorized(c)
	}
	resID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid reservation id")
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	r, err := h.reservations.Cancel(ctx, id, resID)
	if err != nil {
		return fail(c, h.log, err)
	}
	h.invalidate(ctx, r.StoreID)
	return c.JSON(http.StatusOK, toReservationResp(r))
}

// ListMine handles GET /v1/my-reservations, newest first.
func (h *ReservationHandler) ListMine(c echo.Context) error {
	id, ok := identity(c)
	if !ok {
		return unauthorized(c)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	list, err := h.reservations.ListMine(ctx, id)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"reservations": toReservationList(list)})
}

// ListForStore handles GET /v1/partner/stores/:id/reservations?date=.
func (h *ReservationHandler) ListForStore(c echo.Context) error {
	id, ok := identity(c)
	if !ok {
		return unauthorized(c)
	}
	storeID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid store id")
	}
	date, err := model.ParseDate(c.QueryParam("date"))
	if err != nil {
		return badRequest(c, "date must be YYYY-MM-DD")
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	list, err := h.reservations.ListForStore(ctx, id, storeID, date)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"store_id":     storeID,
		"date":         date.Format(model.DateLayout),
		"reservations": toReservationList(list),
	})
}
