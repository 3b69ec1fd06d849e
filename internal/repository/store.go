package repository

import (
	"context"
	"errors"

	"github.com/uma-arai/sbcntr-booking/internal/model"
	"github.com/uma-arai/sbcntr-booking/internal/query"
)

var (
	// ErrRowNotFound は単一行の取得・更新で対象が1行に特定できなかったことを表します
	ErrRowNotFound = errors.New("row not found")
	// ErrUnknownField は問い合わせがbookingテーブルに存在しないフィールドを参照したことを表します
	ErrUnknownField = errors.New("unknown booking field")
	// ErrEmptyPatch は更新内容が空であることを表します
	ErrEmptyPatch = errors.New("empty booking patch")
)

// BookingStore は予約テーブルへの問い合わせを担当するインターフェースです
// 各メソッドはリモートへの1回の問い合わせに対応します
type BookingStore interface {
	// ListBookings は一覧用の予約と、ページングを無視した総件数を返します
	ListBookings(ctx context.Context, q query.Query) ([]model.BookingListItem, int, error)
	// GetBooking はキャビンとゲストの詳細を含む予約を返します
	GetBooking(ctx context.Context, id int64) (*model.BookingDetail, error)
	// ListBookingSales は売上集計用の列のみを返します
	ListBookingSales(ctx context.Context, q query.Query) ([]model.BookingSale, error)
	// ListStays はゲスト名を含む予約を返します
	ListStays(ctx context.Context, q query.Query) ([]model.Stay, error)
	// ListActivity はゲストの氏名・国籍を含む予約を返します
	ListActivity(ctx context.Context, q query.Query) ([]model.Activity, error)
	// UpdateBooking は予約を部分更新し、更新後の行を返します
	UpdateBooking(ctx context.Context, id int64, patch model.BookingPatch) (*model.Booking, error)
	// DeleteBooking は予約を削除します。対象がなくてもエラーにはしません
	DeleteBooking(ctx context.Context, id int64) error
}

// validateFields は問い合わせが参照するフィールドがbookingテーブルのカラムかを検証します
func validateFields(q query.Query) error {
	for _, f := range q.Fields() {
		if !model.IsBookingColumn(f) {
			return &FieldError{Field: f}
		}
	}
	return nil
}

// FieldError は不正なフィールド名を保持します
type FieldError struct {
	Field string
}

func (e *FieldError) Error() string {
	return ErrUnknownField.Error() + ": " + e.Field
}

func (e *FieldError) Unwrap() error {
	return ErrUnknownField
}
