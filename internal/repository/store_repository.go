package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/store-reservation/internal/model"
)

const itemColumns = "id, store_id, item_name, price, total_ticket, status, created_at"

// StoreRepo encapsulates the queries on stores, their images and items.
type StoreRepo struct{ conn }

func NewStoreRepo(db *sqlx.DB) *StoreRepo { return &StoreRepo{conn{db}} }

// InsertStore inserts the store row, then its items and images, filling
// every generated id.  Callers run it inside a transaction so a partial
// store is never visible.
func (r *StoreRepo) InsertStore(ctx context.Context, s *model.Store) error {
	ext := r.ext(ctx)
	res, err := ext.ExecContext(ctx,
		`INSERT INTO stores (owner_id, store_name, category, body, address, contact, kakao, latitude, longitude)
		 VALUES (?,?,?,?,?,?,?,?,?)`,
		s.OwnerID, s.Name, s.Category, s.Body, s.Address, s.Contact, s.Kakao, s.Latitude, s.Longitude)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)

	for i := range s.Items {
		s.Items[i].StoreID = s.ID
		if err := r.InsertItem(ctx, &s.Items[i]); err != nil {
			return fmt.Errorf("insert item %q: %w", s.Items[i].Name, err)
		}
	}
	for i := range s.Images {
		img := &s.Images[i]
		img.StoreID = s.ID
		res, err := ext.ExecContext(ctx,
			"INSERT INTO store_images (store_id, link, is_thumbnail) VALUES (?,?,?)",
			img.StoreID, img.Link, img.IsThumbnail)
		if err != nil {
			return fmt.Errorf("insert image: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		img.ID = uint64(id)
	}
	return nil
}

// StoreByID loads a store with its items (all statuses, id order) and
// images (insertion order).
func (r *StoreRepo) StoreByID(ctx context.Context, id uint64) (*model.Store, error) {
	ext := r.ext(ctx)
	var s model.Store
	err := sqlx.GetContext(ctx, ext, &s,
		`SELECT id, owner_id, store_name, category, body, address, contact, kakao, latitude, longitude, created_at
		 FROM stores WHERE id = ?`, id)
	if err != nil {
		return nil, notFound(err, "store %d", id)
	}
	if err := sqlx.SelectContext(ctx, ext, &s.Items,
		"SELECT "+itemColumns+" FROM items WHERE store_id = ? ORDER BY id", id); err != nil {
		return nil, fmt.Errorf("items of store %d: %w", id, err)
	}
	if err := sqlx.SelectContext(ctx, ext, &s.Images,
		"SELECT id, store_id, link, is_thumbnail FROM store_images WHERE store_id = ? ORDER BY id", id); err != nil {
		return nil, fmt.Errorf("images of store %d: %w", id, err)
	}
	return &s, nil
}

func (r *StoreRepo) InsertItem(ctx context.Context, it *model.Item) error {
	if it.Status == "" {
		it.Status = model.ItemActive
	}
	res, err := r.ext(ctx).ExecContext(ctx,
		"INSERT INTO items (store_id, item_name, price, total_ticket, status) VALUES (?,?,?,?,?)",
		it.StoreID, it.Name, it.Price, it.TotalTicket, it.Status)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	it.ID = uint64(id)
	return nil
}

// SetItemStatus updates the status of an item of the given store.
func (r *StoreRepo) SetItemStatus(ctx context.Context, storeID, itemID uint64, status string) error {
	var found uint64
	err := sqlx.GetContext(ctx, r.ext(ctx), &found,
		"SELECT id FROM items WHERE id = ? AND store_id = ? FOR UPDATE", itemID, storeID)
	if err != nil {
		return notFound(err, "item %d in store %d", itemID, storeID)
	}
	_, err = r.ext(ctx).ExecContext(ctx, "UPDATE items SET status = ? WHERE id = ?", status, itemID)
	return err
}

// LockItems selects the items FOR UPDATE.  Rows are locked in id order so
// concurrent callers cannot deadlock on each other.
func (r *StoreRepo) LockItems(ctx context.Context, ids []uint64) ([]model.Item, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	ext := r.ext(ctx)
	q, args, err := sqlx.In("SELECT "+itemColumns+" FROM items WHERE id IN (?) ORDER BY id FOR UPDATE", ids)
	if err != nil {
		return nil, err
	}
	var items []model.Item
	if err := sqlx.SelectContext(ctx, ext, &items, ext.Rebind(q), args...); err != nil {
		return nil, err
	}
	return items, nil
}
