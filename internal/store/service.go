// Package store manages partner stores and their items and shapes the
// public store view, including today's remaining tickets per item.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/store-reservation/internal/model"
	"github.com/iliyamo/store-reservation/internal/reservation"
)

// Repository is the persistence port of the store service.
type Repository interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
	StoreByID(ctx context.Context, id uint64) (*model.Store, error)
	MemberByEmail(ctx context.Context, email string) (*model.Member, error)
	// InsertStore stores s with its items and images and assigns all ids.
	InsertStore(ctx context.Context, s *model.Store) error
	InsertItem(ctx context.Context, it *model.Item) error
	// SetItemStatus changes the status of an item of the store.  An item
	// of another store is reported as not found.
	SetItemStatus(ctx context.Context, storeID, itemID uint64, status string) error
	// ProfileImage returns the member's profile image link, or nil when the
	// member has none.
	ProfileImage(ctx context.Context, memberID uint64) (*string, error)
}

// Geocoder turns a street address into coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (lat, lng float64, err error)
}

// Inventory reports the remaining tickets of a store's items.
type Inventory interface {
	Availability(ctx context.Context, storeID uint64) ([]reservation.ItemAvailability, error)
	AvailabilityOn(ctx context.Context, storeID uint64, date time.Time) ([]reservation.ItemAvailability, error)
}

type Service struct {
	repo      Repository
	geo       Geocoder
	inventory Inventory
	log       *zap.Logger
}

// NewService wires a Service.  geo may be nil, in which case stores are
// saved without coordinates.
func NewService(repo Repository, geo Geocoder, inventory Inventory, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{repo: repo, geo: geo, inventory: inventory, log: log}
}

// ItemInput describes an item to offer.
type ItemInput struct {
	Name        string `json:"item_name"`
	Price       int    `json:"price"`
	TotalTicket int    `json:"total_ticket"`
}

// ImageInput references an already uploaded image.
type ImageInput struct {
	Link        string `json:"link"`
	IsThumbnail bool   `json:"is_thumbnail"`
}

// NewStore is the input of Create.
type NewStore struct {
	Name     string       `json:"store_name"`
	Category string       `json:"category"`
	Body     string       `json:"body"`
	Address  string       `json:"address"`
	Contact  string       `json:"contact"`
	Kakao    string       `json:"kakao"`
	Items    []ItemInput  `json:"items"`
	Images   []ImageInput `json:"images"`
}

// Create registers a store owned by the calling partner.  The address is
// geocoded once here and never again.
func (s *Service) Create(ctx context.Context, id model.Identity, in NewStore) (*model.Store, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Address = strings.TrimSpace(in.Address)
	if in.Name == "" || in.Address == "" {
		return nil, fmt.Errorf("%w: store_name and address are required", model.ErrInvalidArgument)
	}
	for _, it := range in.Items {
		if err := validateItem(it); err != nil {
			return nil, err
		}
	}

	owner, err := s.partner(ctx, id)
	if err != nil {
		return nil, err
	}

	st := &model.Store{
		OwnerID:  owner.ID,
		Name:     in.Name,
		Category: strings.TrimSpace(in.Category),
		Body:     in.Body,
		Address:  in.Address,
		Contact:  strings.TrimSpace(in.Contact),
		Kakao:    strings.TrimSpace(in.Kakao),
	}
	if s.geo != nil {
		lat, lng, err := s.geo.Geocode(ctx, in.Address)
		if err != nil {
			return nil, fmt.Errorf("geocode %q: %w", in.Address, err)
		}
		st.Latitude, st.Longitude = lat, lng
	}
	for _, it := range in.Items {
		st.Items = append(st.Items, model.Item{
			Name:        strings.TrimSpace(it.Name),
			Price:       it.Price,
			TotalTicket: it.TotalTicket,
			Status:      model.ItemActive,
		})
	}
	for _, img := range in.Images {
		if strings.TrimSpace(img.Link) == "" {
			continue
		}
		st.Images = append(st.Images, model.StoreImage{Link: strings.TrimSpace(img.Link), IsThumbnail: img.IsThumbnail})
	}

	if err := s.repo.WithinTx(ctx, func(ctx context.Context) error {
		return s.repo.InsertStore(ctx, st)
	}); err != nil {
		return nil, fmt.Errorf("insert store: %w", err)
	}
	s.log.Info("store created", zap.Uint64("store_id", st.ID), zap.Uint64("owner_id", st.OwnerID), zap.Int("items", len(st.Items)))
	return st, nil
}

// AddItem offers a new item at a store owned by the caller.
func (s *Service) AddItem(ctx context.Context, id model.Identity, storeID uint64, in ItemInput) (*model.Item, error) {
	if err := validateItem(in); err != nil {
		return nil, err
	}
	var it *model.Item
	err := s.repo.WithinTx(ctx, func(ctx context.Context) error {
		st, err := s.ownedStore(ctx, id, storeID)
		if err != nil {
			return err
		}
		it = &model.Item{
			StoreID:     st.ID,
			Name:        strings.TrimSpace(in.Name),
			Price:       in.Price,
			TotalTicket: in.TotalTicket,
			Status:      model.ItemActive,
		}
		return s.repo.InsertItem(ctx, it)
	})
	if err != nil {
		return nil, err
	}
	return it, nil
}

// DeleteItem withdraws an item from a store owned by the caller.  The row
// is kept with status deleted so existing reservation lines still resolve.
func (s *Service) DeleteItem(ctx context.Context, id model.Identity, storeID, itemID uint64) error {
	return s.repo.WithinTx(ctx, func(ctx context.Context) error {
		st, err := s.ownedStore(ctx, id, storeID)
		if err != nil {
			return err
		}
		return s.repo.SetItemStatus(ctx, st.ID, itemID, model.ItemDeleted)
	})
}

func validateItem(in ItemInput) error {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return fmt.Errorf("%w: item_name is required", model.ErrInvalidArgument)
	case in.Price < 0:
		return fmt.Errorf("%w: price must not be negative", model.ErrInvalidArgument)
	case in.TotalTicket < 0:
		return fmt.Errorf("%w: total_ticket must not be negative", model.ErrInvalidArgument)
	}
	return nil
}

// partner resolves the caller and requires the PARTNER role.
func (s *Service) partner(ctx context.Context, id model.Identity) (*model.Member, error) {
	m, err := s.repo.MemberByEmail(ctx, id.Email)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown member", model.ErrPermissionDenied)
		}
		return nil, err
	}
	if m.Role != model.RolePartner {
		return nil, fmt.Errorf("%w: partner role required", model.ErrPermissionDenied)
	}
	return m, nil
}

func (s *Service) ownedStore(ctx context.Context, id model.Identity, storeID uint64) (*model.Store, error) {
	st, err := s.repo.StoreByID(ctx, storeID)
	if err != nil {
		return nil, err
	}
	m, err := s.partner(ctx, id)
	if err != nil {
		return nil, err
	}
	if st.OwnerID != m.ID {
		return nil, fmt.Errorf("%w: store %d belongs to another member", model.ErrPermissionDenied, st.ID)
	}
	return st, nil
}
