package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/uma-arai/sbcntr-booking/internal/common/utils"
	"github.com/uma-arai/sbcntr-booking/internal/model"
	"github.com/uma-arai/sbcntr-booking/internal/query"
)

// 関連テーブルはホスティング先のAPIと同じ形(cabins/guestsの入れ子)になるようJSONで取得する
var (
	bookingListFrom = `
		SELECT
			b."id", b."created_at", b."startDate", b."endDate", b."numNights",
			b."numGuests", b."status", b."totalPrice",
			COUNT(*) OVER() AS "full_count",
			CASE WHEN c."id" IS NULL THEN NULL
				ELSE jsonb_build_object('name', c."name") END AS "cabins",
			CASE WHEN g."id" IS NULL THEN NULL
				ELSE jsonb_build_object('fullName', g."fullName", 'email', g."email") END AS "guests"
		FROM booking b
		LEFT JOIN cabins c ON c."id" = b."cabinId"
		LEFT JOIN guests g ON g."id" = b."guestId"`

	bookingCountFrom = `
		SELECT COUNT(*)
		FROM booking b`

	bookingDetailQuery = `
		SELECT
			` + bookingColumnList("b") + `,
			CASE WHEN c."id" IS NULL THEN NULL ELSE to_jsonb(c) END AS "cabins",
			CASE WHEN g."id" IS NULL THEN NULL ELSE to_jsonb(g) END AS "guests"
		FROM booking b
		LEFT JOIN cabins c ON c."id" = b."cabinId"
		LEFT JOIN guests g ON g."id" = b."guestId"
		WHERE b."id" = $1`

	bookingSalesFrom = `
		SELECT b."created_at", b."totalPrice", b."extrasPrice"
		FROM booking b`

	staysFrom = `
		SELECT
			` + bookingColumnList("b") + `,
			CASE WHEN g."id" IS NULL THEN NULL
				ELSE jsonb_build_object('fullName', g."fullName") END AS "guests"
		FROM booking b
		LEFT JOIN guests g ON g."id" = b."guestId"`

	activityFrom = `
		SELECT
			` + bookingColumnList("b") + `,
			CASE WHEN g."id" IS NULL THEN NULL
				ELSE jsonb_build_object('fullName', g."fullName", 'nationality', g."nationality", 'countryFlag', g."countryFlag") END AS "guests"
		FROM booking b
		LEFT JOIN guests g ON g."id" = b."guestId"`

	bookingDeleteQuery = `
		DELETE FROM booking
		WHERE "id" = $1`
)

type bookingListRow struct {
	model.BookingListItem
	FullCount int    `db:"full_count"`
	CabinJSON []byte `db:"cabins"`
	GuestJSON []byte `db:"guests"`
}

type bookingDetailRow struct {
	model.Booking
	CabinJSON []byte `db:"cabins"`
	GuestJSON []byte `db:"guests"`
}

type bookingGuestRow struct {
	model.Booking
	GuestJSON []byte `db:"guests"`
}

// PostgresBookingStore はPostgreSQLのbookingテーブルを直接参照するBookingStoreの実装です
type PostgresBookingStore struct {
	db *DB
}

// NewPostgresBookingStore は新しいPostgresBookingStoreを作成します
func NewPostgresBookingStore(db *DB) *PostgresBookingStore {
	return &PostgresBookingStore{db: db}
}

// ListBookings は一覧用の予約と総件数を取得します
// 件数はページングを除いた同じ条件でウィンドウ関数により同じ文で数えます
// 範囲が末尾を超えて行が返らない場合のみ、件数を別途問い合わせます
func (s *PostgresBookingStore) ListBookings(ctx context.Context, q query.Query) (items []model.BookingListItem, count int, err error) {
	ctx, seg := utils.BeginSubsegment(ctx, "BookingStore.ListBookings")
	defer func() { utils.CloseSegment(seg, err) }()

	b := newSQLBuilder("b")
	stmt, err := b.selectStatement(bookingListFrom, q)
	if err != nil {
		return nil, 0, err
	}

	var rows []bookingListRow
	if err = s.db.SelectContext(ctx, &rows, stmt, b.args...); err != nil {
		return nil, 0, fmt.Errorf("failed to query bookings: %w", err)
	}

	switch {
	case len(rows) > 0:
		count = rows[0].FullCount
	case q.Range != nil && q.Range.From > 0:
		if count, err = s.countBookings(ctx, q.Where); err != nil {
			return nil, 0, err
		}
	}

	items = make([]model.BookingListItem, len(rows))
	for i, row := range rows {
		item := row.BookingListItem
		if item.Cabin, err = decodeRelation[model.CabinName](row.CabinJSON); err != nil {
			return nil, 0, err
		}
		if item.Guest, err = decodeRelation[model.GuestContact](row.GuestJSON); err != nil {
			return nil, 0, err
		}
		items[i] = item
	}

	return items, count, nil
}

func (s *PostgresBookingStore) countBookings(ctx context.Context, where query.Predicate) (int, error) {
	b := newSQLBuilder("b")
	stmt, err := b.selectStatement(bookingCountFrom, query.Query{Where: where})
	if err != nil {
		return 0, err
	}
	var count int
	if err := s.db.GetContext(ctx, &count, stmt, b.args...); err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return count, nil
}

// GetBooking は主キーで予約を1件取得します
func (s *PostgresBookingStore) GetBooking(ctx context.Context, id int64) (detail *model.BookingDetail, err error) {
	ctx, seg := utils.BeginSubsegment(ctx, "BookingStore.GetBooking")
	defer func() { utils.CloseSegment(seg, ignoreNotFound(err)) }()

	var row bookingDetailRow
	if err = s.db.GetContext(ctx, &row, bookingDetailQuery, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("booking %d: %w", id, ErrRowNotFound)
		}
		return nil, fmt.Errorf("failed to get booking %d: %w", id, err)
	}

	detail = &model.BookingDetail{Booking: row.Booking}
	if detail.Cabin, err = decodeRelation[model.Cabin](row.CabinJSON); err != nil {
		return nil, err
	}
	if detail.Guest, err = decodeRelation[model.Guest](row.GuestJSON); err != nil {
		return nil, err
	}

	return detail, nil
}

// ListBookingSales は売上集計用の列を取得します
func (s *PostgresBookingStore) ListBookingSales(ctx context.Context, q query.Query) (sales []model.BookingSale, err error) {
	ctx, seg := utils.BeginSubsegment(ctx, "BookingStore.ListBookingSales")
	defer func() { utils.CloseSegment(seg, err) }()

	b := newSQLBuilder("b")
	stmt, err := b.selectStatement(bookingSalesFrom, q)
	if err != nil {
		return nil, err
	}

	sales = []model.BookingSale{}
	if err = s.db.SelectContext(ctx, &sales, stmt, b.args...); err != nil {
		return nil, fmt.Errorf("failed to query booking sales: %w", err)
	}

	return sales, nil
}

// ListStays はゲスト名付きの予約を取得します
func (s *PostgresBookingStore) ListStays(ctx context.Context, q query.Query) (stays []model.Stay, err error) {
	ctx, seg := utils.BeginSubsegment(ctx, "BookingStore.ListStays")
	defer func() { utils.CloseSegment(seg, err) }()

	rows, err := s.selectWithGuest(ctx, staysFrom, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query stays: %w", err)
	}

	stays = make([]model.Stay, len(rows))
	for i, row := range rows {
		stays[i] = model.Stay{Booking: row.Booking}
		if stays[i].Guest, err = decodeRelation[model.GuestName](row.GuestJSON); err != nil {
			return nil, err
		}
	}

	return stays, nil
}

// ListActivity はゲストの国籍情報付きの予約を取得します
func (s *PostgresBookingStore) ListActivity(ctx context.Context, q query.Query) (activities []model.Activity, err error) {
	ctx, seg := utils.BeginSubsegment(ctx, "BookingStore.ListActivity")
	defer func() { utils.CloseSegment(seg, err) }()

	rows, err := s.selectWithGuest(ctx, activityFrom, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity: %w", err)
	}

	activities = make([]model.Activity, len(rows))
	for i, row := range rows {
		activities[i] = model.Activity{Booking: row.Booking}
		if activities[i].Guest, err = decodeRelation[model.GuestOrigin](row.GuestJSON); err != nil {
			return nil, err
		}
	}

	return activities, nil
}

func (s *PostgresBookingStore) selectWithGuest(ctx context.Context, from string, q query.Query) ([]bookingGuestRow, error) {
	b := newSQLBuilder("b")
	stmt, err := b.selectStatement(from, q)
	if err != nil {
		return nil, err
	}

	var rows []bookingGuestRow
	if err := s.db.SelectContext(ctx, &rows, stmt, b.args...); err != nil {
		return nil, err
	}
	return rows, nil
}

// UpdateBooking は指定されたフィールドのみ更新し、更新後の行を返します
func (s *PostgresBookingStore) UpdateBooking(ctx context.Context, id int64, patch model.BookingPatch) (booking *model.Booking, err error) {
	ctx, seg := utils.BeginSubsegment(ctx, "BookingStore.UpdateBooking")
	defer func() { utils.CloseSegment(seg, err) }()

	values := patch.Values()
	if len(values) == 0 {
		return nil, ErrEmptyPatch
	}

	b := newSQLBuilder("")
	sets := make([]string, len(values))
	for i, v := range values {
		sets[i] = fmt.Sprintf("%s = %s", qualifiedColumn("", v.Field), b.arg(v.Value))
	}

	stmt := fmt.Sprintf(`
		UPDATE booking
		SET %s
		WHERE "id" = %s
		RETURNING %s`, strings.Join(sets, ", "), b.arg(id), bookingColumnList(""))

	booking = &model.Booking{}
	if err = s.db.GetContext(ctx, booking, stmt, b.args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("booking %d: %w", id, ErrRowNotFound)
		}
		return nil, fmt.Errorf("failed to update booking %d: %w", id, err)
	}

	return booking, nil
}

// DeleteBooking は予約を削除します
func (s *PostgresBookingStore) DeleteBooking(ctx context.Context, id int64) (err error) {
	ctx, seg := utils.BeginSubsegment(ctx, "BookingStore.DeleteBooking")
	defer func() { utils.CloseSegment(seg, err) }()

	if _, err = s.db.ExecContext(ctx, bookingDeleteQuery, id); err != nil {
		return fmt.Errorf("failed to delete booking %d: %w", id, err)
	}

	return nil
}

// decodeRelation はJSONで取得した関連テーブルの行を復元します。NULLの場合はnilです
func decodeRelation[T any](raw []byte) (*T, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("failed to decode related row: %w", err)
	}
	return &v, nil
}

func ignoreNotFound(err error) error {
	if errors.Is(err, ErrRowNotFound) {
		return nil
	}
	return err
}
