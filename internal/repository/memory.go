package repository

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/uma-arai/sbcntr-booking/internal/model"
	"github.com/uma-arai/sbcntr-booking/internal/query"
)

// MemoryBookingStore はプロセス内に予約を保持するBookingStoreの実装です
// ローカルでの動作確認とテストに利用します
type MemoryBookingStore struct {
	mu       sync.RWMutex
	bookings []model.BookingDetail
}

// NewMemoryBookingStore は与えられた予約で初期化したストアを作成します
func NewMemoryBookingStore(seed ...model.BookingDetail) *MemoryBookingStore {
	bookings := make([]model.BookingDetail, len(seed))
	copy(bookings, seed)
	return &MemoryBookingStore{bookings: bookings}
}

// ListBookings は一覧用の予約と総件数を取得します
func (s *MemoryBookingStore) ListBookings(ctx context.Context, q query.Query) ([]model.BookingListItem, int, error) {
	rows, count, err := s.find(ctx, q)
	if err != nil {
		return nil, 0, err
	}

	items := make([]model.BookingListItem, len(rows))
	for i, row := range rows {
		items[i] = model.BookingListItem{
			ID:         row.ID,
			CreatedAt:  row.CreatedAt,
			StartDate:  row.StartDate,
			EndDate:    row.EndDate,
			NumNights:  row.NumNights,
			NumGuests:  row.NumGuests,
			Status:     row.Status,
			TotalPrice: row.TotalPrice,
		}
		if row.Cabin != nil {
			items[i].Cabin = &model.CabinName{Name: row.Cabin.Name}
		}
		if row.Guest != nil {
			items[i].Guest = &model.GuestContact{FullName: row.Guest.FullName, Email: row.Guest.Email}
		}
	}
	return items, count, nil
}

// GetBooking は主キーで予約を1件取得します
func (s *MemoryBookingStore) GetBooking(ctx context.Context, id int64) (*model.BookingDetail, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexOf(id)
	if i < 0 {
		return nil, fmt.Errorf("booking %d: %w", id, ErrRowNotFound)
	}
	detail := s.bookings[i]
	return &detail, nil
}

// ListBookingSales は売上集計用の列を取得します
func (s *MemoryBookingStore) ListBookingSales(ctx context.Context, q query.Query) ([]model.BookingSale, error) {
	rows, _, err := s.find(ctx, q)
	if err != nil {
		return nil, err
	}

	sales := make([]model.BookingSale, len(rows))
	for i, row := range rows {
		sales[i] = model.BookingSale{CreatedAt: row.CreatedAt, TotalPrice: row.TotalPrice, ExtrasPrice: row.ExtrasPrice}
	}
	return sales, nil
}

// ListStays はゲスト名付きの予約を取得します
func (s *MemoryBookingStore) ListStays(ctx context.Context, q query.Query) ([]model.Stay, error) {
	rows, _, err := s.find(ctx, q)
	if err != nil {
		return nil, err
	}

	stays := make([]model.Stay, len(rows))
	for i, row := range rows {
		stays[i] = model.Stay{Booking: row.Booking}
		if row.Guest != nil {
			stays[i].Guest = &model.GuestName{FullName: row.Guest.FullName}
		}
	}
	return stays, nil
}

// ListActivity はゲストの国籍情報付きの予約を取得します
func (s *MemoryBookingStore) ListActivity(ctx context.Context, q query.Query) ([]model.Activity, error) {
	rows, _, err := s.find(ctx, q)
	if err != nil {
		return nil, err
	}

	activities := make([]model.Activity, len(rows))
	for i, row := range rows {
		activities[i] = model.Activity{Booking: row.Booking}
		if row.Guest != nil {
			activities[i].Guest = &model.GuestOrigin{
				FullName:    row.Guest.FullName,
				Nationality: row.Guest.Nationality,
				CountryFlag: row.Guest.CountryFlag,
			}
		}
	}
	return activities, nil
}

// UpdateBooking は指定されたフィールドのみ更新し、更新後の行を返します
func (s *MemoryBookingStore) UpdateBooking(ctx context.Context, id int64, patch model.BookingPatch) (*model.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return nil, ErrEmptyPatch
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return nil, fmt.Errorf("booking %d: %w", id, ErrRowNotFound)
	}
	patch.Apply(&s.bookings[i].Booking)
	updated := s.bookings[i].Booking
	return &updated, nil
}

// DeleteBooking は予約を削除します
func (s *MemoryBookingStore) DeleteBooking(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.bookings = slices.DeleteFunc(s.bookings, func(b model.BookingDetail) bool { return b.ID == id })
	return nil
}

// find は条件に合う予約を並べ替えて範囲で切り出し、範囲適用前の件数とともに返します
func (s *MemoryBookingStore) find(ctx context.Context, q query.Query) ([]model.BookingDetail, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	if err := validateFields(q); err != nil {
		return nil, 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []model.BookingDetail
	for _, b := range s.bookings {
		ok, err := query.Match(q.Where, b.Field)
		if err != nil {
			return nil, 0, err
		}
		if ok {
			rows = append(rows, b)
		}
	}

	if err := sortBookings(rows, q.Order); err != nil {
		return nil, 0, err
	}

	count := len(rows)
	if q.Range != nil {
		from, to := min(max(q.Range.From, 0), count), count
		if q.Range.To < count {
			to = q.Range.To + 1
		}
		if to < from {
			to = from
		}
		rows = rows[from:to]
	}
	return rows, count, nil
}

func (s *MemoryBookingStore) indexOf(id int64) int {
	return slices.IndexFunc(s.bookings, func(b model.BookingDetail) bool { return b.ID == id })
}

// sortBookings は並び順に従って安定ソートします
// NULLは昇順では末尾、降順では先頭になります
func sortBookings(rows []model.BookingDetail, orders []query.Order) error {
	if len(orders) == 0 {
		return nil
	}

	var sortErr error
	slices.SortStableFunc(rows, func(a, b model.BookingDetail) int {
		for _, o := range orders {
			av, _ := a.Field(o.Field)
			bv, _ := b.Field(o.Field)
			c, err := compareNullable(av, bv)
			if err != nil {
				if sortErr == nil {
					sortErr = err
				}
				return 0
			}
			if c == 0 {
				continue
			}
			if !o.Ascending {
				c = -c
			}
			return c
		}
		return 0
	})
	return sortErr
}

func compareNullable(a, b any) (int, error) {
	an, bn := isNullValue(a), isNullValue(b)
	switch {
	case an && bn:
		return 0, nil
	case an:
		return 1, nil
	case bn:
		return -1, nil
	}
	return query.CompareValues(a, b)
}

func isNullValue(v any) bool {
	if s, ok := v.(*string); ok {
		return s == nil
	}
	return v == nil
}
