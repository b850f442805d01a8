// Package memory is an in-process implementation of the repository ports.
// It backs STORAGE=memory for local runs and the service tests.  Every
// value is copied on the way in and out so callers never share state with
// the repository.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/store-reservation/internal/model"
)

type txKey struct{}

// Repo holds all tables in maps guarded by one lock.  A transaction holds
// the write lock for its whole duration and restores a snapshot when fn
// fails.
type Repo struct {
	mu  sync.RWMutex
	seq uint64

	members      map[uint64]model.Member
	tokens       map[string]model.RefreshToken
	stores       map[uint64]model.Store
	images       map[uint64]model.StoreImage
	items        map[uint64]model.Item
	reservations map[uint64]model.Reservation
}

func New() *Repo {
	return &Repo{
		members:      map[uint64]model.Member{},
		tokens:       map[string]model.RefreshToken{},
		stores:       map[uint64]model.Store{},
		images:       map[uint64]model.StoreImage{},
		items:        map[uint64]model.Item{},
		reservations: map[uint64]model.Reservation{},
	}
}

func inTx(ctx context.Context) bool {
	v, _ := ctx.Value(txKey{}).(bool)
	return v
}

// WithinTx runs fn while holding the write lock.  Nested calls join the
// outer transaction.
func (r *Repo) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := r.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		r.restore(snap)
		return err
	}
	return nil
}

func (r *Repo) read(ctx context.Context) func() {
	if inTx(ctx) {
		return func() {}
	}
	r.mu.RLock()
	return r.mu.RUnlock
}

func (r *Repo) write(ctx context.Context) func() {
	if inTx(ctx) {
		return func() {}
	}
	r.mu.Lock()
	return r.mu.Unlock
}

func (r *Repo) nextID() uint64 {
	r.seq++
	return r.seq
}

type snapshot struct {
	seq          uint64
	members      map[uint64]model.Member
	tokens       map[string]model.RefreshToken
	stores       map[uint64]model.Store
	images       map[uint64]model.StoreImage
	items        map[uint64]model.Item
	reservations map[uint64]model.Reservation
}

func (r *Repo) snapshot() snapshot {
	s := snapshot{
		seq:          r.seq,
		members:      make(map[uint64]model.Member, len(r.members)),
		tokens:       make(map[string]model.RefreshToken, len(r.tokens)),
		stores:       make(map[uint64]model.Store, len(r.stores)),
		images:       make(map[uint64]model.StoreImage, len(r.images)),
		items:        make(map[uint64]model.Item, len(r.items)),
		reservations: make(map[uint64]model.Reservation, len(r.reservations)),
	}
	for k, v := range r.members {
		s.members[k] = v
	}
	for k, v := range r.tokens {
		s.tokens[k] = v
	}
	for k, v := range r.stores {
		s.stores[k] = v
	}
	for k, v := range r.images {
		s.images[k] = v
	}
	for k, v := range r.items {
		s.items[k] = v
	}
	for k, v := range r.reservations {
		s.reservations[k] = copyReservation(v)
	}
	return s
}

func (r *Repo) restore(s snapshot) {
	r.seq = s.seq
	r.members = s.members
	r.tokens = s.tokens
	r.stores = s.stores
	r.images = s.images
	r.items = s.items
	r.reservations = s.reservations
}

func copyReservation(v model.Reservation) model.Reservation {
	v.Items = append([]model.ReservationItem(nil), v.Items...)
	return v
}

// Members and refresh tokens.

func (r *Repo) CreateMember(ctx context.Context, m *model.Member) error {
	defer r.write(ctx)()
	m.Email = strings.ToLower(strings.TrimSpace(m.Email))
	for _, existing := range r.members {
		if existing.Email == m.Email {
			return fmt.Errorf("member %s: %w", m.Email, model.ErrConflict)
		}
	}
	m.ID = r.nextID()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	r.members[m.ID] = *m
	return nil
}

func (r *Repo) MemberByEmail(ctx context.Context, email string) (*model.Member, error) {
	defer r.read(ctx)()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, m := range r.members {
		if m.Email == email {
			return &m, nil
		}
	}
	return nil, fmt.Errorf("member %s: %w", email, model.ErrNotFound)
}

func (r *Repo) MemberByID(ctx context.Context, id uint64) (*model.Member, error) {
	defer r.read(ctx)()
	m, ok := r.members[id]
	if !ok {
		return nil, fmt.Errorf("member %d: %w", id, model.ErrNotFound)
	}
	return &m, nil
}

// ProfileImage returns nil for a member without an image.
func (r *Repo) ProfileImage(ctx context.Context, memberID uint64) (*string, error) {
	defer r.read(ctx)()
	m, ok := r.members[memberID]
	if !ok || m.ProfileImage == nil {
		return nil, nil
	}
	link := *m.ProfileImage
	return &link, nil
}

func (r *Repo) StoreRefresh(ctx context.Context, memberID uint64, tokenHash string, exp time.Time) error {
	defer r.write(ctx)()
	r.tokens[tokenHash] = model.RefreshToken{
		ID:        r.nextID(),
		MemberID:  memberID,
		TokenHash: tokenHash,
		ExpiresAt: exp,
		CreatedAt: time.Now().UTC(),
	}
	return nil
}

// ValidateRefresh returns the member of a live token.  Revoked, expired
// and unknown tokens are all reported as not found.
func (r *Repo) ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error) {
	defer r.read(ctx)()
	t, ok := r.tokens[tokenHash]
	if !ok || t.RevokedAt != nil || time.Now().UTC().After(t.ExpiresAt) {
		return 0, fmt.Errorf("refresh token: %w", model.ErrNotFound)
	}
	return t.MemberID, nil
}

func (r *Repo) RevokeRefresh(ctx context.Context, tokenHash string) error {
	defer r.write(ctx)()
	t, ok := r.tokens[tokenHash]
	if !ok || t.RevokedAt != nil {
		return nil
	}
	now := time.Now().UTC()
	t.RevokedAt = &now
	r.tokens[tokenHash] = t
	return nil
}

func (r *Repo) RevokeAllForMember(ctx context.Context, memberID uint64) error {
	defer r.write(ctx)()
	now := time.Now().UTC()
	for k, t := range r.tokens {
		if t.MemberID == memberID && t.RevokedAt == nil {
			t.RevokedAt = &now
			r.tokens[k] = t
		}
	}
	return nil
}

// Stores and items.

func (r *Repo) InsertStore(ctx context.Context, s *model.Store) error {
	defer r.write(ctx)()
	s.ID = r.nextID()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	row := *s
	row.Items, row.Images = nil, nil
	r.stores[s.ID] = row
	for i := range s.Items {
		s.Items[i].ID = r.nextID()
		s.Items[i].StoreID = s.ID
		if s.Items[i].Status == "" {
			s.Items[i].Status = model.ItemActive
		}
		s.Items[i].CreatedAt = s.CreatedAt
		r.items[s.Items[i].ID] = s.Items[i]
	}
	for i := range s.Images {
		s.Images[i].ID = r.nextID()
		s.Images[i].StoreID = s.ID
		r.images[s.Images[i].ID] = s.Images[i]
	}
	return nil
}

// StoreByID returns the store with its items and images in id order.
func (r *Repo) StoreByID(ctx context.Context, id uint64) (*model.Store, error) {
	defer r.read(ctx)()
	s, ok := r.stores[id]
	if !ok {
		return nil, fmt.Errorf("store %d: %w", id, model.ErrNotFound)
	}
	for _, it := range r.items {
		if it.StoreID == id {
			s.Items = append(s.Items, it)
		}
	}
	sort.Slice(s.Items, func(i, j int) bool { return s.Items[i].ID < s.Items[j].ID })
	for _, img := range r.images {
		if img.StoreID == id {
			s.Images = append(s.Images, img)
		}
	}
	sort.Slice(s.Images, func(i, j int) bool { return s.Images[i].ID < s.Images[j].ID })
	return &s, nil
}

func (r *Repo) InsertItem(ctx context.Context, it *model.Item) error {
	defer r.write(ctx)()
	if _, ok := r.stores[it.StoreID]; !ok {
		return fmt.Errorf("store %d: %w", it.StoreID, model.ErrNotFound)
	}
	it.ID = r.nextID()
	if it.Status == "" {
		it.Status = model.ItemActive
	}
	it.CreatedAt = time.Now().UTC()
	r.items[it.ID] = *it
	return nil
}

func (r *Repo) SetItemStatus(ctx context.Context, storeID, itemID uint64, status string) error {
	defer r.write(ctx)()
	it, ok := r.items[itemID]
	if !ok || it.StoreID != storeID {
		return fmt.Errorf("item %d in store %d: %w", itemID, storeID, model.ErrNotFound)
	}
	it.Status = status
	r.items[itemID] = it
	return nil
}

// LockItems needs no row locks here: the caller's transaction already
// holds the repository lock.
func (r *Repo) LockItems(ctx context.Context, ids []uint64) ([]model.Item, error) {
	defer r.read(ctx)()
	out := make([]model.Item, 0, len(ids))
	for _, id := range ids {
		if it, ok := r.items[id]; ok {
			out = append(out, it)
		}
	}
	return out, nil
}

// Reservations.

func (r *Repo) InsertReservation(ctx context.Context, res *model.Reservation) error {
	defer r.write(ctx)()
	res.ID = r.nextID()
	now := time.Now().UTC()
	if res.CreatedAt.IsZero() {
		res.CreatedAt = now
	}
	if res.UpdatedAt.IsZero() {
		res.UpdatedAt = now
	}
	for i := range res.Items {
		res.Items[i].ID = r.nextID()
		res.Items[i].ReservationID = res.ID
	}
	r.reservations[res.ID] = copyReservation(*res)
	return nil
}

// UpdateReservation writes back the contact fields and the status.
func (r *Repo) UpdateReservation(ctx context.Context, res *model.Reservation) error {
	defer r.write(ctx)()
	cur, ok := r.reservations[res.ID]
	if !ok {
		return fmt.Errorf("reservation %d: %w", res.ID, model.ErrNotFound)
	}
	cur.Name, cur.Phone, cur.Email = res.Name, res.Phone, res.Email
	cur.Status = res.Status
	cur.UpdatedAt = res.UpdatedAt
	r.reservations[res.ID] = cur
	return nil
}

func (r *Repo) ReservationByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	defer r.read(ctx)()
	res, ok := r.reservations[id]
	if !ok {
		return nil, fmt.Errorf("reservation %d: %w", id, model.ErrNotFound)
	}
	res = copyReservation(res)
	return &res, nil
}

func (r *Repo) ReservationsByDateAndStore(ctx context.Context, date time.Time, storeID uint64) ([]model.Reservation, error) {
	defer r.read(ctx)()
	day := model.DateOf(date)
	return r.collect(func(res model.Reservation) bool {
		return res.StoreID == storeID && res.Date.Equal(day)
	}, false), nil
}

// ReservationsByMember lists the member's reservations, newest first.
func (r *Repo) ReservationsByMember(ctx context.Context, memberID uint64) ([]model.Reservation, error) {
	defer r.read(ctx)()
	return r.collect(func(res model.Reservation) bool {
		return res.MemberID == memberID
	}, true), nil
}

func (r *Repo) collect(match func(model.Reservation) bool, newestFirst bool) []model.Reservation {
	out := []model.Reservation{}
	for _, res := range r.reservations {
		if match(res) {
			out = append(out, copyReservation(res))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if newestFirst {
			return out[i].ID > out[j].ID
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *Repo) DeleteCancelledBefore(ctx context.Context, date time.Time) (int64, error) {
	defer r.write(ctx)()
	day := model.DateOf(date)
	var n int64
	for id, res := range r.reservations {
		if res.Cancelled() && res.Date.Before(day) {
			delete(r.reservations, id)
			n++
		}
	}
	return n, nil
}

// SetProfileImage attaches a profile image link to a member.
func (r *Repo) SetProfileImage(ctx context.Context, memberID uint64, link string) error {
	defer r.write(ctx)()
	m, ok := r.members[memberID]
	if !ok {
		return fmt.Errorf("member %d: %w", memberID, model.ErrNotFound)
	}
	m.ProfileImage = &link
	r.members[memberID] = m
	return nil
}
