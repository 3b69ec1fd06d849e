package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uma-arai/sbcntr-booking/internal/model"
	"github.com/uma-arai/sbcntr-booking/internal/query"
)

// containsQuery は空白を正規化した上で、実行されたSQLに期待する断片が含まれるかを確認します
var containsQuery = sqlmock.QueryMatcherFunc(func(expected, actual string) error {
	normalized := strings.Join(strings.Fields(actual), " ")
	if !strings.Contains(normalized, expected) {
		return fmt.Errorf("query %q does not contain %q", normalized, expected)
	}
	return nil
})

func setupPostgresStore(t *testing.T) (*PostgresBookingStore, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(containsQuery))
	require.NoError(t, err)

	sqlxDB := sqlx.NewDb(db, "postgres")
	t.Cleanup(func() { sqlxDB.Close() })

	return NewPostgresBookingStore(NewDB(sqlxDB)), mock
}

var (
	testCreatedAt = time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	testStart     = time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)
	testEnd       = time.Date(2026, 10, 21, 0, 0, 0, 0, time.UTC)
)

func bookingRow(id int64, status string, extra ...driver.Value) []driver.Value {
	row := []driver.Value{id, testCreatedAt, testStart, testEnd, 3, 2, 300.0, 45.0, 345.0, status, true, false, nil, int64(1), int64(7)}
	return append(row, extra...)
}

func bookingRowColumns(extra ...string) []string {
	return append(append([]string{}, model.BookingColumns...), extra...)
}

func TestPostgresListBookings(t *testing.T) {
	store, mock := setupPostgresStore(t)

	q := query.Query{
		Where: query.Eq("status", model.BookingStatusUnconfirmed),
		Order: []query.Order{{Field: "startDate"}},
		Range: query.PageRange(1, 10),
	}

	mock.ExpectQuery(`FROM booking b LEFT JOIN cabins c ON c."id" = b."cabinId" LEFT JOIN guests g ON g."id" = b."guestId" WHERE b."status" = $1 ORDER BY b."startDate" DESC LIMIT $2 OFFSET $3`).
		WithArgs("unconfirmed", 10, 0).
		WillReturnRows(sqlmock.NewRows(bookingListColumns).
			AddRow(1, testCreatedAt, testStart, testEnd, 3, 2, "unconfirmed", 345.0, 24, []byte(`{"name":"001"}`), []byte(`{"fullName":"Jonas Schmedtmann","email":"hello@jonas.io"}`)).
			AddRow(2, testCreatedAt, testStart, testEnd, 1, 1, "unconfirmed", 100.0, 24, nil, nil))

	items, count, err := store.ListBookings(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, 24, count)

	assert.Equal(t, int64(1), items[0].ID)
	assert.Equal(t, model.BookingStatusUnconfirmed, items[0].Status)
	require.NotNil(t, items[0].Cabin)
	assert.Equal(t, "001", items[0].Cabin.Name)
	require.NotNil(t, items[0].Guest)
	assert.Equal(t, "hello@jonas.io", items[0].Guest.Email)

	assert.Nil(t, items[1].Cabin)
	assert.Nil(t, items[1].Guest)

	require.NoError(t, mock.ExpectationsWereMet())
}

var bookingListColumns = []string{"id", "created_at", "startDate", "endDate", "numNights", "numGuests", "status", "totalPrice", "full_count", "cabins", "guests"}

func TestPostgresListBookingsPastLastPage(t *testing.T) {
	store, mock := setupPostgresStore(t)

	q := query.Query{
		Where: query.Eq("status", model.BookingStatusUnconfirmed),
		Range: query.PageRange(5, 10),
	}

	mock.ExpectQuery(`COUNT(*) OVER() AS "full_count"`).
		WithArgs("unconfirmed", 10, 40).
		WillReturnRows(sqlmock.NewRows(bookingListColumns))
	mock.ExpectQuery(`SELECT COUNT(*) FROM booking b WHERE b."status" = $1`).
		WithArgs("unconfirmed").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(24))

	items, count, err := store.ListBookings(context.Background(), q)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, 24, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListBookingsEmpty(t *testing.T) {
	store, mock := setupPostgresStore(t)

	// 先頭ページが空なら件数の問い合わせは行わない
	mock.ExpectQuery(`FROM booking b`).
		WillReturnRows(sqlmock.NewRows(bookingListColumns))

	items, count, err := store.ListBookings(context.Background(), query.Query{Range: query.PageRange(1, 10)})
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Zero(t, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListBookingsHugePage(t *testing.T) {
	store, mock := setupPostgresStore(t)

	mock.ExpectQuery(`LIMIT $1 OFFSET $2`).
		WithArgs(10, math.MaxInt-9).
		WillReturnRows(sqlmock.NewRows(bookingListColumns))
	mock.ExpectQuery(`SELECT COUNT(*) FROM booking b`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))

	items, count, err := store.ListBookings(context.Background(), query.Query{Range: query.PageRange(math.MaxInt/10+2, 10)})
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, 5, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListBookingsQueryError(t *testing.T) {
	store, mock := setupPostgresStore(t)

	mock.ExpectQuery(`FROM booking b`).WillReturnError(errors.New("connection refused"))

	_, _, err := store.ListBookings(context.Background(), query.Query{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListBookingsUnknownField(t *testing.T) {
	store, mock := setupPostgresStore(t)

	_, _, err := store.ListBookings(context.Background(), query.Query{Where: query.Eq("cabins.name", "001")})
	assert.ErrorIs(t, err, ErrUnknownField)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetBooking(t *testing.T) {
	store, mock := setupPostgresStore(t)

	cabin := []byte(`{"id":1,"created_at":"2026-01-01T00:00:00+00:00","name":"001","maxCapacity":2,"regularPrice":250,"discount":0,"description":"","image":""}`)
	guest := []byte(`{"id":7,"created_at":"2026-01-01T00:00:00+00:00","fullName":"Jonas Schmedtmann","email":"hello@jonas.io","nationalID":"3525436345","nationality":"Portugal","countryFlag":"https://flagcdn.com/pt.svg"}`)

	mock.ExpectQuery(`WHERE b."id" = $1`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(bookingRowColumns("cabins", "guests")).
			AddRow(bookingRow(1, "checked-in", cabin, guest)...))

	got, err := store.GetBooking(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.ID)
	assert.Equal(t, model.BookingStatusCheckedIn, got.Status)
	assert.Nil(t, got.Observations)
	require.NotNil(t, got.Cabin)
	assert.Equal(t, 2, got.Cabin.MaxCapacity)
	require.NotNil(t, got.Guest)
	assert.Equal(t, "Portugal", got.Guest.Nationality)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetBookingNotFound(t *testing.T) {
	store, mock := setupPostgresStore(t)

	mock.ExpectQuery(`WHERE b."id" = $1`).
		WithArgs(int64(404)).
		WillReturnRows(sqlmock.NewRows(bookingRowColumns("cabins", "guests")))

	_, err := store.GetBooking(context.Background(), 404)
	assert.ErrorIs(t, err, ErrRowNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListBookingSales(t *testing.T) {
	store, mock := setupPostgresStore(t)

	from := time.Date(2026, 10, 11, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 10, 18, 23, 59, 59, 999000000, time.UTC)

	mock.ExpectQuery(`SELECT b."created_at", b."totalPrice", b."extrasPrice" FROM booking b WHERE (b."created_at" >= $1 AND b."created_at" <= $2)`).
		WithArgs(from, to).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "totalPrice", "extrasPrice"}).
			AddRow(testCreatedAt, 345.0, 45.0))

	sales, err := store.ListBookingSales(context.Background(), query.Query{
		Where: query.AllOf(query.Gte("created_at", from), query.Lte("created_at", to)),
	})
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.Equal(t, 45.0, sales[0].ExtrasPrice)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListBookingSalesEmpty(t *testing.T) {
	store, mock := setupPostgresStore(t)

	mock.ExpectQuery(`FROM booking b`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "totalPrice", "extrasPrice"}))

	sales, err := store.ListBookingSales(context.Background(), query.Query{})
	require.NoError(t, err)
	assert.NotNil(t, sales)
	assert.Empty(t, sales)
}

func TestPostgresListStays(t *testing.T) {
	store, mock := setupPostgresStore(t)

	mock.ExpectQuery(`LEFT JOIN guests g ON g."id" = b."guestId" WHERE (b."startDate" >= $1 AND b."startDate" <= $2)`).
		WithArgs(testStart, testEnd).
		WillReturnRows(sqlmock.NewRows(bookingRowColumns("guests")).
			AddRow(bookingRow(3, "checked-out", []byte(`{"fullName":"Emma Watson"}`))...))

	stays, err := store.ListStays(context.Background(), query.Query{
		Where: query.AllOf(query.Gte("startDate", testStart), query.Lte("startDate", testEnd)),
	})
	require.NoError(t, err)
	require.Len(t, stays, 1)
	assert.Equal(t, model.BookingStatusCheckedOut, stays[0].Status)
	require.NotNil(t, stays[0].Guest)
	assert.Equal(t, "Emma Watson", stays[0].Guest.FullName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListActivity(t *testing.T) {
	store, mock := setupPostgresStore(t)

	q := query.Query{
		Where: query.AnyOf(
			query.AllOf(query.Eq("status", model.BookingStatusUnconfirmed), query.Eq("startDate", testStart)),
			query.AllOf(query.Eq("status", model.BookingStatusCheckedIn), query.Eq("endDate", testStart)),
		),
		Order: []query.Order{{Field: "created_at", Ascending: true}},
	}

	mock.ExpectQuery(`WHERE ((b."status" = $1 AND b."startDate" = $2) OR (b."status" = $3 AND b."endDate" = $4)) ORDER BY b."created_at" ASC`).
		WithArgs("unconfirmed", testStart, "checked-in", testStart).
		WillReturnRows(sqlmock.NewRows(bookingRowColumns("guests")).
			AddRow(bookingRow(5, "unconfirmed", []byte(`{"fullName":"Maria Gomez","nationality":"Spain","countryFlag":"https://flagcdn.com/es.svg"}`))...))

	activities, err := store.ListActivity(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, activities, 1)
	require.NotNil(t, activities[0].Guest)
	assert.Equal(t, "Spain", activities[0].Guest.Nationality)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateBooking(t *testing.T) {
	store, mock := setupPostgresStore(t)

	status := model.BookingStatusCheckedIn
	paid := true
	patch := model.BookingPatch{Status: &status, IsPaid: &paid}

	mock.ExpectQuery(`UPDATE booking SET "status" = $1, "isPaid" = $2 WHERE "id" = $3 RETURNING "id", "created_at"`).
		WithArgs("checked-in", true, int64(1)).
		WillReturnRows(sqlmock.NewRows(bookingRowColumns()).AddRow(bookingRow(1, "checked-in")...))

	got, err := store.UpdateBooking(context.Background(), 1, patch)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusCheckedIn, got.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateBookingNotFound(t *testing.T) {
	store, mock := setupPostgresStore(t)

	paid := true
	mock.ExpectQuery(`UPDATE booking`).
		WithArgs(true, int64(99)).
		WillReturnRows(sqlmock.NewRows(bookingRowColumns()))

	_, err := store.UpdateBooking(context.Background(), 99, model.BookingPatch{IsPaid: &paid})
	assert.ErrorIs(t, err, ErrRowNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateBookingEmptyPatch(t *testing.T) {
	store, mock := setupPostgresStore(t)

	_, err := store.UpdateBooking(context.Background(), 1, model.BookingPatch{})
	assert.ErrorIs(t, err, ErrEmptyPatch)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDeleteBooking(t *testing.T) {
	store, mock := setupPostgresStore(t)

	mock.ExpectExec(`DELETE FROM booking WHERE "id" = $1`).
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.DeleteBooking(context.Background(), 1))

	mock.ExpectExec(`DELETE FROM booking`).
		WithArgs(int64(2)).
		WillReturnError(errors.New("permission denied"))

	err := store.DeleteBooking(context.Background(), 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDecodeRelation(t *testing.T) {
	got, err := decodeRelation[model.GuestName](nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = decodeRelation[model.GuestName]([]byte("null"))
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = decodeRelation[model.GuestName]([]byte("{"))
	assert.Error(t, err)
}
