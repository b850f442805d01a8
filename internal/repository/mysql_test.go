package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/store-reservation/internal/model"
)

var (
	itemCols        = []string{"id", "store_id", "item_name", "price", "total_ticket", "status", "created_at"}
	reservationCols = []string{"id", "member_id", "store_id", "reservation_date", "reservation_name", "reservation_phone",
		"reservation_email", "status", "total_price", "created_at", "updated_at"}
	lineCols = []string{"id", "reservation_id", "item_id", "ticket_count", "unit_price"}
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlx.NewDb(db, "mysql"), mock
}

// isolationConn records the isolation level of every transaction begun on
// the wrapped sqlmock connection.
type isolationConn struct {
	driver.Conn
	levels *[]sql.IsolationLevel
}

func (c isolationConn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	*c.levels = append(*c.levels, sql.IsolationLevel(opts.Isolation))
	return c.Conn.(driver.ConnBeginTx).BeginTx(ctx, opts)
}

func (c isolationConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	return c.Conn.(driver.ExecerContext).ExecContext(ctx, query, args)
}

type isolationConnector struct {
	drv  driver.Driver
	conn isolationConn
}

func (c isolationConnector) Connect(context.Context) (driver.Conn, error) { return c.conn, nil }
func (c isolationConnector) Driver() driver.Driver                        { return c.drv }

func TestWithinTxUsesReadCommitted(t *testing.T) {
	const dsn = "within-tx-read-committed"
	mockDB, mock, err := sqlmock.NewWithDSN(dsn)
	require.NoError(t, err)
	raw, err := mockDB.Driver().Open(dsn)
	require.NoError(t, err)

	var levels []sql.IsolationLevel
	db := sqlx.NewDb(sql.OpenDB(isolationConnector{
		drv:  mockDB.Driver(),
		conn: isolationConn{Conn: raw, levels: &levels},
	}), "mysql")

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE items SET status = ? WHERE id = ?")).
		WithArgs(model.ItemDeleted, 4).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ctx := context.Background()
	err = withinTx(ctx, db, func(ctx context.Context) error {
		// A nested call joins the open transaction.
		return withinTx(ctx, db, func(ctx context.Context) error {
			_, err := conn{db}.ext(ctx).ExecContext(ctx, "UPDATE items SET status = ? WHERE id = ?", model.ItemDeleted, 4)
			return err
		})
	})
	require.NoError(t, err)
	assert.Equal(t, []sql.IsolationLevel{sql.LevelReadCommitted}, levels)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := withinTx(context.Background(), db, func(ctx context.Context) error {
		_, ok := ctx.Value(txKey{}).(*sqlx.Tx)
		assert.True(t, ok, "fn runs with the transaction in its context")
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet(), "rolled back without a commit")
}

func TestWithinTxReportsCommitFailure(t *testing.T) {
	db, mock := newMock(t)
	commitErr := errors.New("connection lost")
	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(commitErr)

	err := withinTx(context.Background(), db, func(context.Context) error { return nil })
	require.ErrorIs(t, err, commitErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockItemsLocksInIDOrder(t *testing.T) {
	db, mock := newMock(t)
	repo := NewStoreRepo(db)
	created := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM items WHERE id IN (?, ?) ORDER BY id FOR UPDATE")).
		WithArgs(3, 1).
		WillReturnRows(sqlmock.NewRows(itemCols).
			AddRow(1, 9, "Canoe", 10, 5, model.ItemActive, created).
			AddRow(3, 9, "Sauna", 20, 3, model.ItemDeleted, created))

	items, err := repo.LockItems(context.Background(), []uint64{3, 1})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.EqualValues(t, 1, items[0].ID)
	assert.Equal(t, "Canoe", items[0].Name)
	assert.True(t, items[1].Deleted())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockItemsWithoutIDsRunsNoQuery(t *testing.T) {
	db, mock := newMock(t)
	items, err := NewStoreRepo(db).LockItems(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, items)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationsByDateAndStoreGroupsLines(t *testing.T) {
	db, mock := newMock(t)
	repo := NewReservationRepo(db)
	date := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM reservations WHERE store_id = ? AND reservation_date = ? ORDER BY id")).
		WithArgs(9, "2025-03-10").
		WillReturnRows(sqlmock.NewRows(reservationCols).
			AddRow(10, 1, 9, date, "Alice", "010", "a@example.com", model.ReservationPending, 40, now, now).
			AddRow(11, 2, 9, date, "Bob", "011", "b@example.com", model.ReservationCancelled, 20, now, now).
			AddRow(12, 3, 9, date, "Carol", "012", "c@example.com", model.ReservationPending, 0, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM reservation_items WHERE reservation_id IN (?, ?, ?) ORDER BY id")).
		WithArgs(10, 11, 12).
		WillReturnRows(sqlmock.NewRows(lineCols).
			AddRow(1, 10, 1, 2, 10).
			AddRow(2, 11, 3, 1, 20).
			AddRow(3, 10, 3, 1, 20))

	list, err := repo.ReservationsByDateAndStore(context.Background(), date.Add(15*time.Hour), 9)
	require.NoError(t, err)
	require.Len(t, list, 3)

	lineIDs := func(r model.Reservation) []uint64 {
		ids := []uint64{}
		for _, l := range r.Items {
			assert.Equal(t, r.ID, l.ReservationID)
			ids = append(ids, l.ID)
		}
		return ids
	}
	assert.Equal(t, []uint64{1, 3}, lineIDs(list[0]))
	assert.Equal(t, []uint64{2}, lineIDs(list[1]))
	assert.NotNil(t, list[2].Items)
	assert.Empty(t, list[2].Items)
	assert.Equal(t, 2, list[0].Items[0].TicketCount)
	assert.True(t, list[1].Cancelled())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationsByDateAndStoreEmpty(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM reservations WHERE store_id = ?")).
		WillReturnRows(sqlmock.NewRows(reservationCols))

	list, err := NewReservationRepo(db).ReservationsByDateAndStore(context.Background(), time.Now(), 9)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
	assert.NoError(t, mock.ExpectationsWereMet(), "no line query for an empty day")
}

func TestInsertReservationFillsIDs(t *testing.T) {
	db, mock := newMock(t)
	res := &model.Reservation{
		MemberID: 1, StoreID: 9, Date: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		Name: "Alice", Status: model.ReservationPending, TotalPrice: 40,
		Items: []model.ReservationItem{{ItemID: 1, TicketCount: 2, UnitPrice: 10}, {ItemID: 3, TicketCount: 1, UnitPrice: 20}},
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO reservations")).
		WithArgs(1, 9, "2025-03-10", "Alice", "", "", model.ReservationPending, 40).
		WillReturnResult(sqlmock.NewResult(10, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO reservation_items")).
		WithArgs(10, 1, 2, 10).
		WillReturnResult(sqlmock.NewResult(100, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO reservation_items")).
		WithArgs(10, 3, 1, 20).
		WillReturnResult(sqlmock.NewResult(101, 1))

	require.NoError(t, NewReservationRepo(db).InsertReservation(context.Background(), res))
	assert.EqualValues(t, 10, res.ID)
	assert.EqualValues(t, 100, res.Items[0].ID)
	assert.EqualValues(t, 101, res.Items[1].ID)
	assert.EqualValues(t, 10, res.Items[1].ReservationID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateReservationZeroRows(t *testing.T) {
	update := regexp.QuoteMeta("UPDATE reservations SET reservation_name = ?")
	res := &model.Reservation{ID: 42, Name: "Alice", Status: model.ReservationPending}

	t.Run("missing reservation", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectExec(update).
			WithArgs("Alice", "", "", model.ReservationPending, 42).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta("FROM reservations WHERE id = ?")).
			WithArgs(42).
			WillReturnRows(sqlmock.NewRows(reservationCols))

		err := NewReservationRepo(db).UpdateReservation(context.Background(), res)
		assert.ErrorIs(t, err, model.ErrNotFound)
		assert.EqualError(t, err, "reservation 42: not found")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unchanged values", func(t *testing.T) {
		db, mock := newMock(t)
		now := time.Now().UTC()
		mock.ExpectExec(update).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta("FROM reservations WHERE id = ?")).
			WithArgs(42).
			WillReturnRows(sqlmock.NewRows(reservationCols).
				AddRow(42, 1, 9, now, "Alice", "", "", model.ReservationPending, 10, now, now))
		mock.ExpectQuery(regexp.QuoteMeta("FROM reservation_items WHERE reservation_id IN (?)")).
			WithArgs(42).
			WillReturnRows(sqlmock.NewRows(lineCols))

		assert.NoError(t, NewReservationRepo(db).UpdateReservation(context.Background(), res))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDeleteCancelledBefore(t *testing.T) {
	del := regexp.QuoteMeta("DELETE FROM reservations WHERE status = ? AND reservation_date < ?")
	before := time.Date(2025, 3, 1, 18, 30, 0, 0, time.UTC)

	db, mock := newMock(t)
	repo := NewReservationRepo(db)
	mock.ExpectExec(del).
		WithArgs(model.ReservationCancelled, "2025-03-01").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(del).
		WithArgs(model.ReservationCancelled, "2025-03-01").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.DeleteCancelledBefore(context.Background(), before)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = repo.DeleteCancelledBefore(context.Background(), before)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
