package clock

import "time"

// Clock は現在時刻の取得元です。テストでは固定時刻に差し替えます
type Clock interface {
	Now() time.Time
}

// System はシステム時刻を返します
type System struct{}

func (System) Now() time.Time {
	return time.Now()
}

// Fixed は常に同じ時刻を返します
type Fixed time.Time

func (f Fixed) Now() time.Time {
	return time.Time(f)
}

// Today はUTCでの当日0時を返します
func Today(c Clock) time.Time {
	now := c.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// EndOfToday はUTCでの当日23:59:59.999を返します
func EndOfToday(c Clock) time.Time {
	return Today(c).Add(24*time.Hour - time.Millisecond)
}
