package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/store-reservation/internal/model"
	"github.com/iliyamo/store-reservation/internal/repository/memory"
	"github.com/iliyamo/store-reservation/internal/reservation"
)

type stubGeocoder struct {
	calls    int
	lat, lng float64
	err      error
}

func (g *stubGeocoder) Geocode(_ context.Context, _ string) (float64, float64, error) {
	g.calls++
	return g.lat, g.lng, g.err
}

var (
	partner = model.Identity{Email: "partner@example.com"}
	rival   = model.Identity{Email: "rival@example.com"}
	user    = model.Identity{Email: "user@example.com"}
)

func newTestService(t *testing.T) (*Service, *memory.Repo, *stubGeocoder, *reservation.Service) {
	t.Helper()
	ctx := context.Background()
	repo := memory.New()
	require.NoError(t, repo.CreateMember(ctx, &model.Member{Email: partner.Email, Role: model.RolePartner}))
	require.NoError(t, repo.CreateMember(ctx, &model.Member{Email: rival.Email, Role: model.RolePartner}))
	require.NoError(t, repo.CreateMember(ctx, &model.Member{Email: user.Email, Role: model.RoleUser}))

	geo := &stubGeocoder{lat: 37.5665, lng: 126.978}
	inventory := reservation.NewService(repo, nil, zap.NewNop(), time.UTC)
	return NewService(repo, geo, inventory, zap.NewNop()), repo, geo, inventory
}

func sampleStore() NewStore {
	return NewStore{
		Name:    "Sunset Studio",
		Address: "Seoul, Jung-gu, Sejong-daero 110",
		Items: []ItemInput{
			{Name: "Morning", Price: 10, TotalTicket: 5},
			{Name: "Evening", Price: 20, TotalTicket: 3},
		},
		Images: []ImageInput{
			{Link: "https://img/1.png"},
			{Link: "https://img/thumb.png", IsThumbnail: true},
			{Link: "  "},
		},
	}
}

func TestCreateGeocodesOnce(t *testing.T) {
	svc, _, geo, _ := newTestService(t)

	st, err := svc.Create(context.Background(), partner, sampleStore())
	require.NoError(t, err)
	assert.NotZero(t, st.ID)
	assert.Equal(t, 1, geo.calls)
	assert.InDelta(t, 37.5665, st.Latitude, 1e-9)
	assert.InDelta(t, 126.978, st.Longitude, 1e-9)
	require.Len(t, st.Items, 2)
	assert.Len(t, st.Images, 2, "blank image links are dropped")
}

func TestCreateFailures(t *testing.T) {
	svc, _, geo, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, user, sampleStore())
	assert.ErrorIs(t, err, model.ErrPermissionDenied)

	in := sampleStore()
	in.Address = ""
	_, err = svc.Create(ctx, partner, in)
	assert.ErrorIs(t, err, model.ErrInvalidArgument)

	in = sampleStore()
	in.Items[0].Price = -1
	_, err = svc.Create(ctx, partner, in)
	assert.ErrorIs(t, err, model.ErrInvalidArgument)

	geo.err = errors.New("quota exceeded")
	_, err = svc.Create(ctx, partner, sampleStore())
	assert.ErrorContains(t, err, "quota exceeded")
}

func TestDetail(t *testing.T) {
	svc, repo, _, inventory := newTestService(t)
	ctx := context.Background()
	st, err := svc.Create(ctx, partner, sampleStore())
	require.NoError(t, err)

	d, err := svc.Detail(ctx, st.ID)
	require.NoError(t, err)
	assert.Nil(t, d.ProfileImage)
	assert.Equal(t, []string{"https://img/thumb.png", "https://img/1.png"}, d.Images)
	require.Len(t, d.Items, 2)
	assert.Equal(t, 5, d.Items[0].Remaining)

	_, err = inventory.Create(ctx, user, st.ID, reservation.Draft{
		Date:       time.Now().UTC(),
		TotalPrice: 20,
		Lines:      []reservation.Line{{ItemID: st.Items[0].ID, TicketCount: 2}},
	})
	require.NoError(t, err)

	owner, err := repo.MemberByEmail(ctx, partner.Email)
	require.NoError(t, err)
	require.NoError(t, repo.SetProfileImage(ctx, owner.ID, "https://img/me.png"))

	d, err = svc.Detail(ctx, st.ID)
	require.NoError(t, err)
	require.NotNil(t, d.ProfileImage)
	assert.Equal(t, "https://img/me.png", *d.ProfileImage)
	assert.Equal(t, 3, d.Items[0].Remaining)
	assert.False(t, d.CreatedAt.IsZero())
	assert.Equal(t, st.CreatedAt, d.CreatedAt)

	items, err := svc.Items(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, d.Items, items)

	_, err = svc.Detail(ctx, 999)
	assert.ErrorIs(t, err, model.ErrNotFound)
	_, err = svc.Items(ctx, 999)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestItemManagement(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()
	st, err := svc.Create(ctx, partner, sampleStore())
	require.NoError(t, err)

	it, err := svc.AddItem(ctx, partner, st.ID, ItemInput{Name: "Night", Price: 30, TotalTicket: 2})
	require.NoError(t, err)
	assert.Equal(t, model.ItemActive, it.Status)

	_, err = svc.AddItem(ctx, rival, st.ID, ItemInput{Name: "Hijack", Price: 1, TotalTicket: 1})
	assert.ErrorIs(t, err, model.ErrPermissionDenied)
	assert.ErrorIs(t, svc.DeleteItem(ctx, rival, st.ID, it.ID), model.ErrPermissionDenied)

	require.NoError(t, svc.DeleteItem(ctx, partner, st.ID, it.ID))
	assert.ErrorIs(t, svc.DeleteItem(ctx, partner, st.ID, 999), model.ErrNotFound)

	items, err := svc.ItemsOn(ctx, st.ID, time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, items, 2)
	for _, a := range items {
		assert.NotEqual(t, it.ID, a.ItemID)
	}
}
