package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/store-reservation/internal/model"
)

const memberColumns = "id, email, password_hash, nickname, phone, role, profile_image, created_at"

type MemberRepo struct{ conn }

func NewMemberRepo(db *sqlx.DB) *MemberRepo { return &MemberRepo{conn{db}} }

// CreateMember inserts m and fills its ID.  A taken email is reported as
// model.ErrConflict.
func (r *MemberRepo) CreateMember(ctx context.Context, m *model.Member) error {
	m.Email = strings.ToLower(strings.TrimSpace(m.Email))
	if m.Role == "" {
		m.Role = model.RoleUser
	}
	res, err := r.ext(ctx).ExecContext(ctx,
		"INSERT INTO members (email, password_hash, nickname, phone, role, profile_image) VALUES (?,?,?,?,?,?)",
		m.Email, m.PasswordHash, m.Nickname, m.Phone, m.Role, m.ProfileImage)
	if err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("member %s: %w", m.Email, model.ErrConflict)
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	m.ID = uint64(id)
	return nil
}

// MemberByEmail fetches a member by normalized email.
func (r *MemberRepo) MemberByEmail(ctx context.Context, email string) (*model.Member, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var m model.Member
	err := sqlx.GetContext(ctx, r.ext(ctx), &m,
		"SELECT "+memberColumns+" FROM members WHERE email=? LIMIT 1", email)
	if err != nil {
		return nil, notFound(err, "member %s", email)
	}
	return &m, nil
}

// MemberByID fetches a member by id.
func (r *MemberRepo) MemberByID(ctx context.Context, id uint64) (*model.Member, error) {
	var m model.Member
	err := sqlx.GetContext(ctx, r.ext(ctx), &m,
		"SELECT "+memberColumns+" FROM members WHERE id=? LIMIT 1", id)
	if err != nil {
		return nil, notFound(err, "member %d", id)
	}
	return &m, nil
}

// ProfileImage returns the member's image link.  A member without one, or
// no member at all, yields nil without error.
func (r *MemberRepo) ProfileImage(ctx context.Context, memberID uint64) (*string, error) {
	var link sql.NullString
	err := sqlx.GetContext(ctx, r.ext(ctx), &link,
		"SELECT profile_image FROM members WHERE id=? LIMIT 1", memberID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !link.Valid {
		return nil, nil
	}
	return &link.String, nil
}

func (r *MemberRepo) SetProfileImage(ctx context.Context, memberID uint64, link string) error {
	res, err := r.ext(ctx).ExecContext(ctx, "UPDATE members SET profile_image=? WHERE id=?", link, memberID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// MySQL reports 0 for an unchanged row as well, so check existence.
		if _, err := r.MemberByID(ctx, memberID); err != nil {
			return err
		}
	}
	return nil
}
