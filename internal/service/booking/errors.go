package booking

import "errors"

// 呼び出し元(画面)にそのまま表示できる固定のメッセージを持つエラーです
// ストアの元のエラーはログにのみ出力します
var (
	ErrBookingsNotLoaded = errors.New("bookings could not be loaded")
	ErrBookingNotFound   = errors.New("booking not found")
	ErrBookingNotUpdated = errors.New("booking could not be updated")
	ErrBookingNotDeleted = errors.New("booking could not be deleted")

	// ErrValidation は入力値が不正なことを表します。ストアへの問い合わせは行われません
	ErrValidation = errors.New("invalid booking request")
	// ErrInvalidDate は日付として解釈できない値が渡されたことを表します
	ErrInvalidDate = &ValidationError{Message: "invalid date format, please provide a valid date"}
)

// ValidationError は入力検証の失敗です。errors.Is(err, ErrValidation)で判定できます
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
