package repository

import (
	"time"

	"github.com/uma-arai/sbcntr-booking/internal/common/clock"
	"github.com/uma-arai/sbcntr-booking/internal/model"
)

// SampleBookings はローカル確認用の予約データを返します
// 日付はcの当日を基準に決まるため、当日のチェックイン・チェックアウト対象が必ず含まれます
func SampleBookings(c clock.Clock) []model.BookingDetail {
	today := clock.Today(c)
	day := func(n int) time.Time { return today.AddDate(0, 0, n) }

	cabins := []model.Cabin{
		{ID: 1, CreatedAt: day(-90), Name: "001", MaxCapacity: 2, RegularPrice: 250, Discount: 0, Description: "Cozy cabin for two"},
		{ID: 2, CreatedAt: day(-90), Name: "002", MaxCapacity: 4, RegularPrice: 350, Discount: 25, Description: "Family cabin"},
		{ID: 3, CreatedAt: day(-90), Name: "003", MaxCapacity: 6, RegularPrice: 500, Discount: 50, Description: "Large cabin"},
	}
	guests := []model.Guest{
		{ID: 1, CreatedAt: day(-60), FullName: "Jonas Schmedtmann", Email: "hello@jonas.io", NationalID: "3525436345", Nationality: "Portugal", CountryFlag: "https://flagcdn.com/pt.svg"},
		{ID: 2, CreatedAt: day(-60), FullName: "Jonathan Smith", Email: "johnsmith@test.eu", NationalID: "4534593454", Nationality: "Great Britain", CountryFlag: "https://flagcdn.com/gb.svg"},
		{ID: 3, CreatedAt: day(-60), FullName: "Maria Gomez", Email: "maria@example.com", NationalID: "9374074454", Nationality: "Spain", CountryFlag: "https://flagcdn.com/es.svg"},
		{ID: 4, CreatedAt: day(-60), FullName: "Emma Watson", Email: "emma@example.com", NationalID: "1234578901", Nationality: "United Kingdom", CountryFlag: "https://flagcdn.com/gb.svg"},
	}

	type sample struct {
		created, start, nights, guests int
		cabin, guest                   int
		status                         model.BookingStatus
		breakfast, paid                bool
		observations                   string
	}
	samples := []sample{
		{created: -20, start: -10, nights: 3, guests: 2, cabin: 1, guest: 1, status: model.BookingStatusCheckedOut, breakfast: true, paid: true},
		{created: -10, start: -2, nights: 2, guests: 3, cabin: 2, guest: 2, status: model.BookingStatusCheckedIn, paid: true},
		{created: -5, start: 0, nights: 4, guests: 4, cabin: 3, guest: 3, status: model.BookingStatusUnconfirmed, breakfast: true, observations: "Late arrival"},
		{created: -3, start: -1, nights: 5, guests: 1, cabin: 1, guest: 4, status: model.BookingStatusCheckedIn, paid: true},
		{created: -1, start: 7, nights: 2, guests: 2, cabin: 2, guest: 1, status: model.BookingStatusUnconfirmed},
	}

	bookings := make([]model.BookingDetail, len(samples))
	for i, s := range samples {
		cabin := cabins[s.cabin-1]
		guest := guests[s.guest-1]

		cabinPrice := float64(s.nights) * (cabin.RegularPrice - cabin.Discount)
		extrasPrice := 0.0
		if s.breakfast {
			extrasPrice = float64(s.nights*s.guests) * 15
		}
		var observations *string
		if s.observations != "" {
			obs := s.observations
			observations = &obs
		}

		bookings[i] = model.BookingDetail{
			Booking: model.Booking{
				ID:           int64(i + 1),
				CreatedAt:    day(s.created).Add(9 * time.Hour),
				StartDate:    day(s.start),
				EndDate:      day(s.start + s.nights),
				NumNights:    s.nights,
				NumGuests:    s.guests,
				CabinPrice:   cabinPrice,
				ExtrasPrice:  extrasPrice,
				TotalPrice:   cabinPrice + extrasPrice,
				Status:       s.status,
				HasBreakfast: s.breakfast,
				IsPaid:       s.paid,
				Observations: observations,
				CabinID:      cabin.ID,
				GuestID:      guest.ID,
			},
			Cabin: &cabin,
			Guest: &guest,
		}
	}
	return bookings
}
