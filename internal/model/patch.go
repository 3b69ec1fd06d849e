package model

import "time"

// BookingPatch は予約の部分更新です。nilのフィールドは更新しません
type BookingPatch struct {
	Status       *BookingStatus `json:"status,omitempty"`
	IsPaid       *bool          `json:"isPaid,omitempty"`
	HasBreakfast *bool          `json:"hasBreakfast,omitempty"`
	ExtrasPrice  *float64       `json:"extrasPrice,omitempty"`
	TotalPrice   *float64       `json:"totalPrice,omitempty"`
	Observations *string        `json:"observations,omitempty"`
	NumGuests    *int           `json:"numGuests,omitempty"`
	NumNights    *int           `json:"numNights,omitempty"`
	StartDate    *time.Time     `json:"startDate,omitempty"`
	EndDate      *time.Time     `json:"endDate,omitempty"`
}

// FieldValue は更新するカラムと値の組です
type FieldValue struct {
	Field string
	Value any
}

// Values は設定されているフィールドを固定の順序で返します
func (p BookingPatch) Values() []FieldValue {
	var values []FieldValue
	if p.Status != nil {
		values = append(values, FieldValue{"status", string(*p.Status)})
	}
	if p.IsPaid != nil {
		values = append(values, FieldValue{"isPaid", *p.IsPaid})
	}
	if p.HasBreakfast != nil {
		values = append(values, FieldValue{"hasBreakfast", *p.HasBreakfast})
	}
	if p.ExtrasPrice != nil {
		values = append(values, FieldValue{"extrasPrice", *p.ExtrasPrice})
	}
	if p.TotalPrice != nil {
		values = append(values, FieldValue{"totalPrice", *p.TotalPrice})
	}
	if p.Observations != nil {
		values = append(values, FieldValue{"observations", *p.Observations})
	}
	if p.NumGuests != nil {
		values = append(values, FieldValue{"numGuests", *p.NumGuests})
	}
	if p.NumNights != nil {
		values = append(values, FieldValue{"numNights", *p.NumNights})
	}
	if p.StartDate != nil {
		values = append(values, FieldValue{"startDate", *p.StartDate})
	}
	if p.EndDate != nil {
		values = append(values, FieldValue{"endDate", *p.EndDate})
	}
	return values
}

// IsEmpty は更新対象のフィールドがないかを返します
func (p BookingPatch) IsEmpty() bool {
	return len(p.Values()) == 0
}

// Apply は設定されているフィールドをbに反映します
func (p BookingPatch) Apply(b *Booking) {
	if p.Status != nil {
		b.Status = *p.Status
	}
	if p.IsPaid != nil {
		b.IsPaid = *p.IsPaid
	}
	if p.HasBreakfast != nil {
		b.HasBreakfast = *p.HasBreakfast
	}
	if p.ExtrasPrice != nil {
		b.ExtrasPrice = *p.ExtrasPrice
	}
	if p.TotalPrice != nil {
		b.TotalPrice = *p.TotalPrice
	}
	if p.Observations != nil {
		obs := *p.Observations
		b.Observations = &obs
	}
	if p.NumGuests != nil {
		b.NumGuests = *p.NumGuests
	}
	if p.NumNights != nil {
		b.NumNights = *p.NumNights
	}
	if p.StartDate != nil {
		b.StartDate = *p.StartDate
	}
	if p.EndDate != nil {
		b.EndDate = *p.EndDate
	}
}
