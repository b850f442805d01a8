package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/store-reservation/internal/config"
	"github.com/iliyamo/store-reservation/internal/middleware"
	"github.com/iliyamo/store-reservation/internal/model"
	"github.com/iliyamo/store-reservation/internal/utils"
)

// AuthStore is the persistence the auth endpoints need.
type AuthStore interface {
	CreateMember(ctx context.Context, m *model.Member) error
	MemberByEmail(ctx context.Context, email string) (*model.Member, error)
	MemberByID(ctx context.Context, id uint64) (*model.Member, error)
	SetProfileImage(ctx context.Context, memberID uint64, link string) error
	StoreRefresh(ctx context.Context, memberID uint64, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error)
	RevokeRefresh(ctx context.Context, tokenHash string) error
	RevokeAllForMember(ctx context.Context, memberID uint64) error
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	cfg   config.Config
	store AuthStore
	log   *zap.Logger
}

func NewAuthHandler(cfg config.Config, store AuthStore, log *zap.Logger) *AuthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthHandler{cfg: cfg, store: store, log: log}
}

type registerReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Nickname string `json:"nickname"`
	Phone    string `json:"phone"`
	Role     string `json:"role"` // USER | PARTNER
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type memberPart struct {
	ID           uint64  `json:"id"`
	Email        string  `json:"email"`
	Nickname     string  `json:"nickname"`
	Phone        string  `json:"phone,omitempty"`
	Role         string  `json:"role"`
	ProfileImage *string `json:"profile_image"`
}

type authResp struct {
	Member  memberPart `json:"member"`
	Access  tokenPart  `json:"access"`
	Refresh tokenPart  `json:"refresh"`
}

func toMemberPart(m *model.Member) memberPart {
	return memberPart{ID: m.ID, Email: m.Email, Nickname: m.Nickname, Phone: m.Phone, Role: m.Role, ProfileImage: m.ProfileImage}
}

// issue creates an access and refresh token pair and stores the refresh
// token hash.
func (h *AuthHandler) issue(ctx context.Context, m *model.Member) (authResp, error) {
	access, err := utils.NewAccessToken(h.cfg.JWTSecret, m.ID, m.Email, m.Role, h.cfg.AccessTTLMin)
	if err != nil {
		return authResp{}, err
	}
	refresh, err := utils.NewRefreshToken(h.cfg.RefreshTTLDays)
	if err != nil {
		return authResp{}, err
	}
	if err := h.store.StoreRefresh(ctx, m.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return authResp{}, err
	}
	return authResp{
		Member:  toMemberPart(m),
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp},
	}, nil
}

// Register creates a member and returns tokens immediately.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		return badRequest(c, "valid email required")
	}
	if len(req.Password) < utils.MinPasswordLength {
		return badRequest(c, "password too short")
	}
	role := strings.ToUpper(strings.TrimSpace(req.Role))
	if role != model.RolePartner {
		role = model.RoleUser
	}
	nickname := strings.TrimSpace(req.Nickname)
	if nickname == "" {
		nickname = req.Email[:strings.Index(req.Email, "@")]
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	hash, err := utils.HashPassword(req.Password, h.cfg.BcryptCost)
	if err != nil {
		return fail(c, h.log, err)
	}
	m := &model.Member{
		Email:        req.Email,
		PasswordHash: hash,
		Nickname:     nickname,
		Phone:        strings.TrimSpace(req.Phone),
		Role:         role,
	}
	if err := h.store.CreateMember(ctx, m); err != nil {
		if errors.Is(err, model.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
		}
		return fail(c, h.log, err)
	}

	resp, err := h.issue(ctx, m)
	if err != nil {
		return fail(c, h.log, err)
	}
	h.log.Info("member registered", zap.Uint64("member_id", m.ID), zap.String("role", m.Role))
	return c.JSON(http.StatusCreated, resp)
}

// Login verifies the password and returns a new token pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return badRequest(c, "email/password required")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	m, err := h.store.MemberByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return fail(c, h.log, err)
	}
	if !utils.VerifyPassword(m.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	resp, err := h.issue(ctx, m)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// refreshMember resolves the member behind a live refresh token.
func (h *AuthHandler) refreshMember(ctx context.Context, c echo.Context) (*model.Member, string, error) {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return nil, "", badRequest(c, "refresh_token required")
	}
	hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))
	memberID, err := h.store.ValidateRefresh(ctx, hash)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, "", c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
		}
		return nil, "", fail(c, h.log, err)
	}
	m, err := h.store.MemberByID(ctx, memberID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, "", c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
		}
		return nil, "", fail(c, h.log, err)
	}
	return m, hash, nil
}

// Refresh validates a refresh token, revokes it and issues a new pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	m, hash, err := h.refreshMember(ctx, c)
	if m == nil {
		return err
	}
	if err := h.store.RevokeRefresh(ctx, hash); err != nil {
		return fail(c, h.log, err)
	}
	resp, err := h.issue(ctx, m)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// RefreshAccess returns a new access token and keeps the refresh token.
func (h *AuthHandler) RefreshAccess(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	m, _, err := h.refreshMember(ctx, c)
	if m == nil {
		return err
	}
	access, err := utils.NewAccessToken(h.cfg.JWTSecret, m.ID, m.Email, m.Role, h.cfg.AccessTTLMin)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"access": tokenPart{Token: access.Token, Expires: access.Exp},
	})
}

// Logout revokes one session or all of them.  A refresh_token in the body
// revokes that token.  Without one, a valid bearer access token revokes
// every refresh token of its member.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	_ = c.Bind(&req)
	refresh := strings.TrimSpace(req.RefreshToken)

	ctx, cancel := requestContext(c)
	defer cancel()

	if refresh != "" {
		hash := utils.HashRefreshRaw(refresh)
		if _, err := h.store.ValidateRefresh(ctx, hash); err != nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
		}
		if err := h.store.RevokeRefresh(ctx, hash); err != nil {
			return fail(c, h.log, err)
		}
		return c.NoContent(http.StatusNoContent)
	}

	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	if !strings.HasPrefix(auth, "Bearer ") {
		return badRequest(c, "provide Authorization header or refresh_token")
	}
	claims, err := utils.ParseAccessToken(h.cfg.JWTSecret, strings.TrimPrefix(auth, "Bearer "))
	if err != nil {
		return unauthorized(c)
	}
	memberID, err := claims.MemberID()
	if err != nil || memberID == 0 {
		return unauthorized(c)
	}
	if err := h.store.RevokeAllForMember(ctx, memberID); err != nil {
		return fail(c, h.log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the authenticated member's profile.
func (h *AuthHandler) Me(c echo.Context) error {
	memberID, ok := middleware.MemberIDFrom(c)
	if !ok {
		return unauthorized(c)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	m, err := h.store.MemberByID(ctx, memberID)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, toMemberPart(m))
}

// SetProfileImage handles PUT /v1/me/profile-image.  The image is shown
// on the detail page of every store the member owns.
func (h *AuthHandler) SetProfileImage(c echo.Context) error {
	memberID, ok := middleware.MemberIDFrom(c)
	if !ok {
		return unauthorized(c)
	}
	var body struct {
		Link string `json:"link"`
	}
	if err := c.Bind(&body); err != nil || strings.TrimSpace(body.Link) == "" {
		return badRequest(c, "link required")
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.store.SetProfileImage(ctx, memberID, strings.TrimSpace(body.Link)); err != nil {
		return fail(c, h.log, err)
	}
	return c.NoContent(http.StatusNoContent)
}
