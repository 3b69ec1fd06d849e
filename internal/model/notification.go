package model

import (
	"errors"
	"fmt"
	"time"
)

// NotificationType は通知の種類を表します
type NotificationType string

const (
	// NotificationTypeCheckIn は当日チェックイン予定の通知を表します
	NotificationTypeCheckIn NotificationType = "check-in"
	// NotificationTypeCheckOut は当日チェックアウト予定の通知を表します
	NotificationTypeCheckOut NotificationType = "check-out"
)

var ErrNoActivity = errors.New("booking has no activity for today")

// ActivityEvent は当日のチェックイン・チェックアウトを表すイベントです
type ActivityEvent struct {
	BookingID   int64     `json:"booking_id"`
	GuestName   string    `json:"guest_name"`
	Nationality string    `json:"nationality"`
	CountryFlag string    `json:"country_flag"`
	NumGuests   int       `json:"num_guests"`
	NumNights   int       `json:"num_nights"`
	Date        time.Time `json:"date"`
}

// Notification はStep Functionsへ渡す通知の定義です
type Notification struct {
	Type      NotificationType `json:"type"`
	CreatedAt time.Time        `json:"created_at"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Data      ActivityEvent    `json:"data"`
}

// NewActivityNotification は当日アクティビティの予約から通知を作成します
// 未確認の予約はチェックイン、チェックイン済みの予約はチェックアウトとして扱います
func NewActivityNotification(a Activity, createdAt time.Time) (Notification, error) {
	event := ActivityEvent{
		BookingID: a.ID,
		NumGuests: a.NumGuests,
		NumNights: a.NumNights,
	}
	if a.Guest != nil {
		event.GuestName = a.Guest.FullName
		event.Nationality = a.Guest.Nationality
		event.CountryFlag = a.Guest.CountryFlag
	}

	var n Notification
	switch a.Status {
	case BookingStatusUnconfirmed:
		event.Date = a.StartDate
		n = Notification{
			Type:  NotificationTypeCheckIn,
			Title: "本日チェックイン予定の予約があります",
		}
	case BookingStatusCheckedIn:
		event.Date = a.EndDate
		n = Notification{
			Type:  NotificationTypeCheckOut,
			Title: "本日チェックアウト予定の予約があります",
		}
	default:
		return Notification{}, fmt.Errorf("%w: booking %d is %s", ErrNoActivity, a.ID, a.Status)
	}

	n.CreatedAt = createdAt
	n.Data = event
	n.Message = fmt.Sprintf(`予約番号: %d
ゲスト: %s (%s)
人数: %d名 / %d泊`, event.BookingID, event.GuestName, event.Nationality, event.NumGuests, event.NumNights)

	return n, nil
}
