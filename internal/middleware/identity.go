package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/store-reservation/internal/model"
)

// Context keys set by JWTAuth.
const (
	ctxIdentity = "identity"
	ctxMemberID = "member_id"
	ctxRole     = "role"
)

// IdentityFrom returns the authenticated caller stored by JWTAuth.
func IdentityFrom(c echo.Context) (model.Identity, bool) {
	id, ok := c.Get(ctxIdentity).(model.Identity)
	return id, ok && id.Email != ""
}

// MemberIDFrom returns the member id of the authenticated caller.
func MemberIDFrom(c echo.Context) (uint64, bool) {
	id, ok := c.Get(ctxMemberID).(uint64)
	return id, ok && id != 0
}

// RoleFrom returns the role claim of the authenticated caller.
func RoleFrom(c echo.Context) string {
	role, _ := c.Get(ctxRole).(string)
	return role
}

// callerKey identifies the caller for rate limiting.  Anonymous requests
// share the "anon" bucket per IP.
func callerKey(c echo.Context) string {
	if id, ok := MemberIDFrom(c); ok {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}
