package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/store-reservation/internal/config"
	"github.com/iliyamo/store-reservation/internal/model"
	"github.com/iliyamo/store-reservation/internal/utils"
)

const secret = "test-secret"

func newEcho(mw ...echo.MiddlewareFunc) *echo.Echo {
	e := echo.New()
	e.GET("/v1/me", func(c echo.Context) error {
		id, ok := IdentityFrom(c)
		if !ok {
			return c.NoContent(http.StatusTeapot)
		}
		memberID, _ := MemberIDFrom(c)
		return c.JSON(http.StatusOK, echo.Map{"email": id.Email, "member_id": memberID, "role": RoleFrom(c)})
	}, mw...)
	return e
}

func do(e *echo.Echo, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuthStoresIdentity(t *testing.T) {
	tok, err := utils.NewAccessToken(secret, 7, "alice@example.com", model.RolePartner, 5)
	require.NoError(t, err)

	rec := do(newEcho(JWTAuth(secret)), tok.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"email":"alice@example.com","member_id":7,"role":"PARTNER"}`, rec.Body.String())
}

func TestJWTAuthRejects(t *testing.T) {
	e := newEcho(JWTAuth(secret))
	other, err := utils.NewAccessToken("other-secret", 7, "alice@example.com", model.RoleUser, 5)
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, do(e, "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(e, "garbage").Code)
	assert.Equal(t, http.StatusUnauthorized, do(e, other.Token).Code)
}

func TestRequireRole(t *testing.T) {
	e := newEcho(JWTAuth(secret), RequireRole(model.RolePartner))
	user, err := utils.NewAccessToken(secret, 1, "u@example.com", model.RoleUser, 5)
	require.NoError(t, err)
	partner, err := utils.NewAccessToken(secret, 2, "p@example.com", model.RolePartner, 5)
	require.NoError(t, err)

	assert.Equal(t, http.StatusForbidden, do(e, user.Token).Code)
	assert.Equal(t, http.StatusOK, do(e, partner.Token).Code)
}

func TestDisabledRedisMiddlewarePassThrough(t *testing.T) {
	tok, err := utils.NewAccessToken(secret, 3, "c@example.com", model.RoleUser, 5)
	require.NoError(t, err)
	e := newEcho(
		JWTAuth(secret),
		NewTokenBucket(config.RateLimitConfig{Enabled: true}, nil, zap.NewNop()),
		NewRedisCache(config.CacheConfig{Enabled: true}, nil, zap.NewNop()),
		Metrics(),
	)

	rec := do(e, tok.Token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Cache"))
}

func TestRequestLoggerKeepsErrorStatus(t *testing.T) {
	e := echo.New()
	e.Use(RequestLogger(zap.NewNop()))
	e.GET("/boom", func(c echo.Context) error { return echo.NewHTTPError(http.StatusBadGateway, "upstream") })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestCachePayloadCodec(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"ok":true}`))
	require.NoError(t, err)

	status, gotHdr, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "application/json", gotHdr.Get("Content-Type"))
	assert.Equal(t, `{"ok":true}`, string(body))

	_, _, _, ok = decodePayload(bs[:5])
	assert.False(t, ok)
}

func TestRateKeyStrategies(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/stores/3/reservations", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.1")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/stores/:id/reservations")
	c.Set(ctxMemberID, uint64(9))

	assert.Equal(t, "rl:ip:10.0.0.1", rateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: "ip"}, c))
	assert.Equal(t, "rl:user:9:route:POST /v1/stores/:id/reservations",
		rateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: "user_route"}, c))
}
