package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/iliyamo/store-reservation/internal/model"
	"github.com/iliyamo/store-reservation/internal/reservation"
)

// Detail is the public view of a store.
type Detail struct {
	ID           uint64                         `json:"store_id"`
	Name         string                         `json:"store_name"`
	Category     string                         `json:"category"`
	Body         string                         `json:"body"`
	Address      string                         `json:"address"`
	Contact      string                         `json:"contact"`
	Kakao        string                         `json:"kakao"`
	Latitude     float64                        `json:"latitude"`
	Longitude    float64                        `json:"longitude"`
	ProfileImage *string                        `json:"profile_image"`
	Images       []string                       `json:"images"`
	Items        []reservation.ItemAvailability `json:"items"`
	CreatedAt    time.Time                      `json:"created_at"`
}

// Detail returns the store with today's remaining tickets.  A failure to
// compute availability fails the whole call.
func (s *Service) Detail(ctx context.Context, storeID uint64) (*Detail, error) {
	st, err := s.repo.StoreByID(ctx, storeID)
	if err != nil {
		return nil, err
	}
	items, err := s.inventory.Availability(ctx, st.ID)
	if err != nil {
		return nil, fmt.Errorf("availability of store %d: %w", st.ID, err)
	}
	profile, err := s.repo.ProfileImage(ctx, st.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("profile image of member %d: %w", st.OwnerID, err)
	}
	return &Detail{
		ID:           st.ID,
		Name:         st.Name,
		Category:     st.Category,
		Body:         st.Body,
		Address:      st.Address,
		Contact:      st.Contact,
		Kakao:        st.Kakao,
		Latitude:     st.Latitude,
		Longitude:    st.Longitude,
		ProfileImage: profile,
		Images:       imageLinks(st.Images),
		Items:        items,
		CreatedAt:    st.CreatedAt,
	}, nil
}

// Items returns the remaining tickets of the store's active items for
// today.
func (s *Service) Items(ctx context.Context, storeID uint64) ([]reservation.ItemAvailability, error) {
	return s.inventory.Availability(ctx, storeID)
}

// ItemsOn returns the remaining tickets of the store's active items for
// the given date.
func (s *Service) ItemsOn(ctx context.Context, storeID uint64, date time.Time) ([]reservation.ItemAvailability, error) {
	return s.inventory.AvailabilityOn(ctx, storeID, model.DateOf(date))
}

// imageLinks lists image links with the thumbnail first and the rest in
// their stored order.
func imageLinks(images []model.StoreImage) []string {
	sorted := make([]model.StoreImage, len(images))
	copy(sorted, images)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].IsThumbnail && !sorted[j].IsThumbnail
	})
	links := make([]string, 0, len(sorted))
	for _, img := range sorted {
		links = append(links, img.Link)
	}
	return links
}
