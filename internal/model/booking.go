package model

import (
	"slices"
	"time"
)

// BookingStatus は予約の状態です
type BookingStatus string

const (
	BookingStatusUnconfirmed BookingStatus = "unconfirmed"
	BookingStatusCheckedIn   BookingStatus = "checked-in"
	BookingStatusCheckedOut  BookingStatus = "checked-out"
)

// Valid は定義済みの状態かを返します
func (s BookingStatus) Valid() bool {
	switch s {
	case BookingStatusUnconfirmed, BookingStatusCheckedIn, BookingStatusCheckedOut:
		return true
	}
	return false
}

// Booking はbookingテーブルの1行です
// カラム名はホスティング先のテーブル定義(キャメルケース)に合わせています
type Booking struct {
	ID           int64         `db:"id" json:"id"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
	StartDate    time.Time     `db:"startDate" json:"startDate"`
	EndDate      time.Time     `db:"endDate" json:"endDate"`
	NumNights    int           `db:"numNights" json:"numNights"`
	NumGuests    int           `db:"numGuests" json:"numGuests"`
	CabinPrice   float64       `db:"cabinPrice" json:"cabinPrice"`
	ExtrasPrice  float64       `db:"extrasPrice" json:"extrasPrice"`
	TotalPrice   float64       `db:"totalPrice" json:"totalPrice"`
	Status       BookingStatus `db:"status" json:"status"`
	HasBreakfast bool          `db:"hasBreakfast" json:"hasBreakfast"`
	IsPaid       bool          `db:"isPaid" json:"isPaid"`
	Observations *string       `db:"observations" json:"observations"`
	CabinID      int64         `db:"cabinId" json:"cabinId"`
	GuestID      int64         `db:"guestId" json:"guestId"`
}

// BookingColumns はbookingテーブルのカラム名です。SELECTの列順もこの順です
var BookingColumns = []string{
	"id",
	"created_at",
	"startDate",
	"endDate",
	"numNights",
	"numGuests",
	"cabinPrice",
	"extrasPrice",
	"totalPrice",
	"status",
	"hasBreakfast",
	"isPaid",
	"observations",
	"cabinId",
	"guestId",
}

// IsBookingColumn はbookingテーブルに存在するカラムかを返します
func IsBookingColumn(name string) bool {
	return slices.Contains(BookingColumns, name)
}

// Field はカラム名に対応する値を返します
func (b *Booking) Field(name string) (any, bool) {
	switch name {
	case "id":
		return b.ID, true
	case "created_at":
		return b.CreatedAt, true
	case "startDate":
		return b.StartDate, true
	case "endDate":
		return b.EndDate, true
	case "numNights":
		return b.NumNights, true
	case "numGuests":
		return b.NumGuests, true
	case "cabinPrice":
		return b.CabinPrice, true
	case "extrasPrice":
		return b.ExtrasPrice, true
	case "totalPrice":
		return b.TotalPrice, true
	case "status":
		return b.Status, true
	case "hasBreakfast":
		return b.HasBreakfast, true
	case "isPaid":
		return b.IsPaid, true
	case "observations":
		return b.Observations, true
	case "cabinId":
		return b.CabinID, true
	case "guestId":
		return b.GuestID, true
	}
	return nil, false
}

// Cabin はcabinsテーブルの1行です
type Cabin struct {
	ID           int64     `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	Name         string    `json:"name"`
	MaxCapacity  int       `json:"maxCapacity"`
	RegularPrice float64   `json:"regularPrice"`
	Discount     float64   `json:"discount"`
	Description  string    `json:"description"`
	Image        string    `json:"image"`
}

// Guest はguestsテーブルの1行です
type Guest struct {
	ID          int64     `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	FullName    string    `json:"fullName"`
	Email       string    `json:"email"`
	NationalID  string    `json:"nationalID"`
	Nationality string    `json:"nationality"`
	CountryFlag string    `json:"countryFlag"`
}

type CabinName struct {
	Name string `json:"name"`
}

type GuestContact struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

type GuestName struct {
	FullName string `json:"fullName"`
}

type GuestOrigin struct {
	FullName    string `json:"fullName"`
	Nationality string `json:"nationality"`
	CountryFlag string `json:"countryFlag"`
}

// BookingListItem は予約一覧の1行です
type BookingListItem struct {
	ID         int64         `db:"id" json:"id"`
	CreatedAt  time.Time     `db:"created_at" json:"created_at"`
	StartDate  time.Time     `db:"startDate" json:"startDate"`
	EndDate    time.Time     `db:"endDate" json:"endDate"`
	NumNights  int           `db:"numNights" json:"numNights"`
	NumGuests  int           `db:"numGuests" json:"numGuests"`
	Status     BookingStatus `db:"status" json:"status"`
	TotalPrice float64       `db:"totalPrice" json:"totalPrice"`
	Cabin      *CabinName    `db:"-" json:"cabins"`
	Guest      *GuestContact `db:"-" json:"guests"`
}

// BookingDetail は予約詳細です。キャビンとゲストの全項目を含みます
type BookingDetail struct {
	Booking
	Cabin *Cabin `db:"-" json:"cabins"`
	Guest *Guest `db:"-" json:"guests"`
}

// BookingSale は売上集計用の予約です
type BookingSale struct {
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	TotalPrice  float64   `db:"totalPrice" json:"totalPrice"`
	ExtrasPrice float64   `db:"extrasPrice" json:"extrasPrice"`
}

// Stay は滞在(開始日で絞り込んだ予約)です
type Stay struct {
	Booking
	Guest *GuestName `db:"-" json:"guests"`
}

// Activity は当日のチェックインまたはチェックアウト対象の予約です
type Activity struct {
	Booking
	Guest *GuestOrigin `db:"-" json:"guests"`
}
