package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/uma-arai/sbcntr-booking/internal/common/clock"
	"github.com/uma-arai/sbcntr-booking/internal/metrics"
	"github.com/uma-arai/sbcntr-booking/internal/model"
	"github.com/uma-arai/sbcntr-booking/internal/query"
	"github.com/uma-arai/sbcntr-booking/internal/repository"
)

// DefaultPageSize は1ページあたりの件数の既定値です
const DefaultPageSize = 10

// Filter は予約一覧の絞り込み条件です。Methodが空の場合はeqです
type Filter struct {
	Field  string
	Value  any
	Method string
}

// SortBy は予約一覧の並び順です。Directionが"asc"以外の場合は降順です
type SortBy struct {
	Field     string
	Direction string
}

// BookingService は予約の取得・更新・削除を提供します
type BookingService struct {
	store    repository.BookingStore
	clock    clock.Clock
	pageSize int
}

// NewBookingService は新しいBookingServiceを作成します
// cがnilの場合はシステム時刻を、pageSizeが0以下の場合はDefaultPageSizeを使います
func NewBookingService(store repository.BookingStore, c clock.Clock, pageSize int) *BookingService {
	if c == nil {
		c = clock.System{}
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &BookingService{store: store, clock: c, pageSize: pageSize}
}

// PageSize は1ページあたりの件数を返します
func (s *BookingService) PageSize() int {
	return s.pageSize
}

// ListBookings は予約一覧と、ページングを無視した総件数を返します
// pageは1始まりで、0以下の場合は全件を返します
func (s *BookingService) ListBookings(ctx context.Context, filter *Filter, sortBy *SortBy, page int) ([]model.BookingListItem, int, error) {
	const op = "ListBookings"

	q := query.Query{Range: query.PageRange(page, s.pageSize)}
	if filter != nil {
		where, err := filterPredicate(*filter)
		if err != nil {
			metrics.RecordValidationError(op)
			return nil, 0, err
		}
		q.Where = where
	}
	if sortBy != nil {
		if !model.IsBookingColumn(sortBy.Field) {
			metrics.RecordValidationError(op)
			return nil, 0, unknownField(sortBy.Field)
		}
		q.Order = []query.Order{{
			Field:     sortBy.Field,
			Ascending: sortBy.Direction == "asc",
		}}
	}

	start := time.Now()
	items, count, err := s.store.ListBookings(ctx, q)
	s.observe(op, start, err)
	if err != nil {
		return nil, 0, ErrBookingsNotLoaded
	}
	return items, count, nil
}

// GetBooking はキャビンとゲストの詳細を含む予約を返します
func (s *BookingService) GetBooking(ctx context.Context, id int64) (*model.BookingDetail, error) {
	start := time.Now()
	booking, err := s.store.GetBooking(ctx, id)
	s.observe("GetBooking", start, err)
	if err != nil {
		return nil, ErrBookingNotFound
	}
	return booking, nil
}

// ListBookingsCreatedAfter はdateから当日の終わりまでに作成された予約の売上を返します
func (s *BookingService) ListBookingsCreatedAfter(ctx context.Context, date time.Time) ([]model.BookingSale, error) {
	q := query.Query{
		Where: query.AllOf(
			query.Gte("created_at", date),
			query.Lte("created_at", clock.EndOfToday(s.clock)),
		),
	}

	start := time.Now()
	sales, err := s.store.ListBookingSales(ctx, q)
	s.observe("ListBookingsCreatedAfter", start, err)
	if err != nil {
		return nil, ErrBookingsNotLoaded
	}
	return sales, nil
}

// ListStaysStartingAfter はdateから当日までに開始した滞在を返します
// dateはtime.Time、*time.Time、またはRFC3339・日付のみ形式の文字列です
func (s *BookingService) ListStaysStartingAfter(ctx context.Context, date any) ([]model.Stay, error) {
	const op = "ListStaysStartingAfter"

	from, err := parseDate(date)
	if err != nil {
		metrics.RecordValidationError(op)
		return nil, err
	}

	q := query.Query{
		Where: query.AllOf(
			query.Gte("startDate", from),
			query.Lte("startDate", clock.Today(s.clock)),
		),
	}

	start := time.Now()
	stays, err := s.store.ListStays(ctx, q)
	s.observe(op, start, err)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrBookingsNotLoaded, err.Error())
	}
	return stays, nil
}

// ListTodayActivity は当日チェックイン予定(未確認で当日開始)と
// チェックアウト予定(チェックイン済みで当日終了)の予約を作成日時の昇順で返します
func (s *BookingService) ListTodayActivity(ctx context.Context) ([]model.Activity, error) {
	today := clock.Today(s.clock)
	q := query.Query{
		Where: query.AnyOf(
			query.AllOf(
				query.Eq("status", model.BookingStatusUnconfirmed),
				query.Eq("startDate", today),
			),
			query.AllOf(
				query.Eq("status", model.BookingStatusCheckedIn),
				query.Eq("endDate", today),
			),
		),
		Order: []query.Order{{Field: "created_at", Ascending: true}},
	}

	start := time.Now()
	activities, err := s.store.ListActivity(ctx, q)
	s.observe("ListTodayActivity", start, err)
	if err != nil {
		return nil, ErrBookingsNotLoaded
	}
	return activities, nil
}

// UpdateBooking は予約を部分更新し、更新後の予約を返します
func (s *BookingService) UpdateBooking(ctx context.Context, id int64, patch model.BookingPatch) (*model.Booking, error) {
	const op = "UpdateBooking"

	if patch.IsEmpty() {
		metrics.RecordValidationError(op)
		return nil, &ValidationError{Message: "no booking fields to update"}
	}
	if patch.Status != nil && !patch.Status.Valid() {
		metrics.RecordValidationError(op)
		return nil, &ValidationError{Message: fmt.Sprintf("invalid booking status %q", *patch.Status)}
	}

	start := time.Now()
	booking, err := s.store.UpdateBooking(ctx, id, patch)
	s.observe(op, start, err)
	if err != nil {
		return nil, ErrBookingNotUpdated
	}
	return booking, nil
}

// DeleteBooking は予約を削除します。存在しない予約の削除はエラーになりません
func (s *BookingService) DeleteBooking(ctx context.Context, id int64) error {
	start := time.Now()
	err := s.store.DeleteBooking(ctx, id)
	s.observe("DeleteBooking", start, err)
	if err != nil {
		return ErrBookingNotDeleted
	}
	return nil
}

// observe はストアの呼び出し結果をメトリクスに記録し、失敗時は元のエラーをログに出力します
func (s *BookingService) observe(op string, start time.Time, err error) {
	metrics.RecordStoreRequest(op, err, time.Since(start).Seconds())
	if err != nil {
		log.Error().Err(err).Str("operation", op).Msg("booking store request failed")
	}
}

func filterPredicate(f Filter) (query.Predicate, error) {
	if !model.IsBookingColumn(f.Field) {
		return nil, unknownField(f.Field)
	}
	op, err := query.ParseOp(f.Method)
	if err != nil {
		return nil, &ValidationError{Message: fmt.Sprintf("unsupported filter method %q", f.Method)}
	}
	return query.Compare{Field: f.Field, Op: op, Value: f.Value}, nil
}

func unknownField(field string) error {
	return &ValidationError{Message: fmt.Sprintf("unknown booking field %q", field)}
}

func parseDate(v any) (time.Time, error) {
	switch d := v.(type) {
	case time.Time:
		return d, nil
	case *time.Time:
		if d != nil {
			return *d, nil
		}
	case string:
		if t, err := query.ParseTime(strings.TrimSpace(d)); err == nil {
			return t, nil
		}
	}
	return time.Time{}, ErrInvalidDate
}
