package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/store-reservation/internal/model"
	"github.com/iliyamo/store-reservation/internal/store"
)

// StoreHandler serves the public store views and the partner endpoints
// that manage stores and items.
type StoreHandler struct {
	stores *store.Service
	cache  StoreCache
	log    *zap.Logger
}

// NewStoreHandler wires a StoreHandler.  cache may be nil.
func NewStoreHandler(stores *store.Service, cache StoreCache, log *zap.Logger) *StoreHandler {
	if stores == nil {
		panic("nil store service passed to NewStoreHandler")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &StoreHandler{stores: stores, cache: cache, log: log}
}

// GetStore handles GET /v1/stores/:id.  The items carry today's remaining
// tickets.
func (h *StoreHandler) GetStore(c echo.Context) error {
	storeID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid store id")
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	d, err := h.stores.Detail(ctx, storeID)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, d)
}

// ListItems handles GET /v1/stores/:id/items?date=YYYY-MM-DD.  Without a
// date the remaining tickets are those of today.
func (h *StoreHandler) ListItems(c echo.Context) error {
	storeID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid store id")
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	raw := c.QueryParam("date")
	if raw == "" {
		items, err := h.stores.Items(ctx, storeID)
		if err != nil {
			return fail(c, h.log, err)
		}
		return c.JSON(http.StatusOK, echo.Map{"store_id": storeID, "items": items})
	}
	date, err := model.ParseDate(raw)
	if err != nil {
		return badRequest(c, "date must be YYYY-MM-DD")
	}
	items, err := h.stores.ItemsOn(ctx, storeID, date)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"store_id": storeID, "date": raw, "items": items})
}

type storeResp struct {
	ID        uint64       `json:"store_id"`
	Name      string       `json:"store_name"`
	Address   string       `json:"address"`
	Latitude  float64      `json:"latitude"`
	Longitude float64      `json:"longitude"`
	Items     []model.Item `json:"items"`
}

// CreateStore handles POST /v1/stores for partners.
func (h *StoreHandler) CreateStore(c echo.Context) error {
	id, ok := identity(c)
	if !ok {
		return unauthorized(c)
	}
	var in store.NewStore
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	s, err := h.stores.Create(ctx, id, in)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, storeResp{
		ID:        s.ID,
		Name:      s.Name,
		Address:   s.Address,
		Latitude:  s.Latitude,
		Longitude: s.Longitude,
		Items:     s.Items,
	})
}

// AddItem handles POST /v1/stores/:id/items.
func (h *StoreHandler) AddItem(c echo.Context) error {
	id, ok := identity(c)
	if !ok {
		return unauthorized(c)
	}
	storeID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid store id")
	}
	var in store.ItemInput
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	it, err := h.stores.AddItem(ctx, id, storeID, in)
	if err != nil {
		return fail(c, h.log, err)
	}
	h.invalidate(ctx, storeID)
	return c.JSON(http.StatusCreated, it)
}

// DeleteItem handles DELETE /v1/stores/:id/items/:itemId.  Items are soft
// deleted so past reservations keep their lines.
func (h *StoreHandler) DeleteItem(c echo.Context) error {
	id, ok := identity(c)
	if !ok {
		return unauthorized(c)
	}
	storeID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid store id")
	}
	itemID, ok := pathID(c, "itemId")
	if !ok {
		return badRequest(c, "invalid item id")
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.stores.DeleteItem(ctx, id, storeID, itemID); err != nil {
		return fail(c, h.log, err)
	}
	h.invalidate(ctx, storeID)
	return c.NoContent(http.StatusNoContent)
}

func (h *StoreHandler) invalidate(ctx context.Context, storeID uint64) {
	if h.cache != nil {
		h.cache.InvalidateStore(ctx, storeID)
	}
}
