// Package router registers the HTTP routes and their middleware.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/store-reservation/internal/handler"
	"github.com/iliyamo/store-reservation/internal/middleware"
	"github.com/iliyamo/store-reservation/internal/model"
)

// Handlers bundles everything the routes dispatch to.
type Handlers struct {
	Health       *handler.HealthHandler
	Auth         *handler.AuthHandler
	Stores       *handler.StoreHandler
	Reservations *handler.ReservationHandler
}

// Middleware holds the Redis backed middleware.  Either may be a no-op
// when Redis is unavailable.
type Middleware struct {
	Cache     echo.MiddlewareFunc
	RateLimit echo.MiddlewareFunc
}

// Register wires every route onto e.
func Register(e *echo.Echo, h Handlers, mw Middleware, jwtSecret string) {
	RegisterRoutes(e, h.Health)
	RegisterAuth(e, h.Auth, jwtSecret)
	RegisterPublic(e, h.Stores, mw.Cache)
	RegisterPartner(e, h.Stores, h.Reservations, jwtSecret)
	RegisterMember(e, h.Reservations, mw.RateLimit, jwtSecret)
}

// RegisterRoutes registers the probe and metrics endpoints.
func RegisterRoutes(e *echo.Echo, health *handler.HealthHandler) {
	e.GET("/healthz", health.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterAuth registers session endpoints under /v1/auth and the profile
// endpoints under /v1/me.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	// Rotates the refresh token.
	g.POST("/refresh", a.Refresh)
	g.POST("/refresh-access", a.RefreshAccess)
	// Logout authenticates itself with either token, so it sits outside JWTAuth.
	g.POST("/logout", a.Logout)

	me := e.Group("/v1/me", middleware.JWTAuth(jwtSecret), middleware.RequireRole(model.RoleUser, model.RolePartner))
	me.GET("", a.Me)
	me.PUT("/profile-image", a.SetProfileImage)
}

// RegisterPublic registers the store views guests can browse.  Responses
// are cached per store; the handlers that change a store's availability
// invalidate its entries.
func RegisterPublic(e *echo.Echo, s *handler.StoreHandler, cache echo.MiddlewareFunc) {
	var mw []echo.MiddlewareFunc
	if cache != nil {
		mw = append(mw, cache)
	}
	e.GET("/v1/stores/:id", s.GetStore, mw...)
	e.GET("/v1/stores/:id/items", s.ListItems, mw...)
}

// RegisterPartner registers store management and the per-date reservation
// list.  All routes require the PARTNER role; ownership of the store is
// checked by the services.
func RegisterPartner(e *echo.Echo, s *handler.StoreHandler, r *handler.ReservationHandler, jwtSecret string) {
	auth := []echo.MiddlewareFunc{middleware.JWTAuth(jwtSecret), middleware.RequireRole(model.RolePartner)}

	e.POST("/v1/stores", s.CreateStore, auth...)
	e.POST("/v1/stores/:id/items", s.AddItem, auth...)
	e.DELETE("/v1/stores/:id/items/:itemId", s.DeleteItem, auth...)

	g := e.Group("/v1/partner", auth...)
	g.GET("/stores/:id/reservations", r.ListForStore)
}

// RegisterMember registers the reservation lifecycle for any signed-in
// member.  Writes are rate limited per caller.
func RegisterMember(e *echo.Echo, r *handler.ReservationHandler, limit echo.MiddlewareFunc, jwtSecret string) {
	auth := []echo.MiddlewareFunc{middleware.JWTAuth(jwtSecret), middleware.RequireRole(model.RoleUser, model.RolePartner)}
	writes := auth
	if limit != nil {
		writes = append(append([]echo.MiddlewareFunc{}, auth...), limit)
	}

	e.POST("/v1/stores/:id/reservations", r.Create, writes...)
	e.GET("/v1/reservations/:id", r.Get, auth...)
	e.PATCH("/v1/reservations/:id", r.Update, writes...)
	e.DELETE("/v1/reservations/:id", r.Cancel, writes...)
	e.GET("/v1/my-reservations", r.ListMine, auth...)
}
