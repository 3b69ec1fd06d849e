package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestToday(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)

	tests := []struct {
		name    string
		now     time.Time
		wantDay time.Time
	}{
		{
			name:    "UTCの日中",
			now:     time.Date(2026, 10, 18, 15, 30, 0, 0, time.UTC),
			wantDay: time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC),
		},
		{
			name:    "JSTの早朝はUTCでは前日",
			now:     time.Date(2026, 10, 18, 6, 0, 0, 0, tokyo),
			wantDay: time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Fixed(tt.now)
			assert.True(t, Today(c).Equal(tt.wantDay), "Today() = %v, want %v", Today(c), tt.wantDay)
			assert.True(t, EndOfToday(c).Equal(tt.wantDay.Add(24*time.Hour-time.Millisecond)))
		})
	}
}

func TestSystem(t *testing.T) {
	before := time.Now()
	got := System{}.Now()
	assert.False(t, got.Before(before))
}
