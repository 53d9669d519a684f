package calc

import (
	"testing"
	"time"

	"github.com/polytrack/polytrack/internal/domain"
)

func etTime(t *testing.T, value string) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	ts, err := time.ParseInLocation("2006-01-02 15:04", value, loc)
	if err != nil {
		t.Fatalf("parse %q: %v", value, err)
	}
	return ts
}

func TestMarketStatusAt(t *testing.T) {
	// 2026-08-31 is a Monday.
	tests := []struct {
		name string
		at   string
		want domain.MarketSession
	}{
		{"weekday before pre-market", "2026-08-31 03:59", domain.SessionClosed},
		{"pre-market start", "2026-08-31 04:00", domain.SessionPreMarket},
		{"just before open", "2026-08-31 09:29", domain.SessionPreMarket},
		{"open bell", "2026-08-31 09:30", domain.SessionOpen},
		{"mid session", "2026-08-31 13:00", domain.SessionOpen},
		{"closing bell", "2026-08-31 16:00", domain.SessionAfterHours},
		{"late after-hours", "2026-08-31 19:59", domain.SessionAfterHours},
		{"evening closed", "2026-08-31 20:00", domain.SessionClosed},
		{"saturday midday", "2026-09-05 13:00", domain.SessionClosed},
		{"sunday midday", "2026-09-06 13:00", domain.SessionClosed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MarketStatusAt(etTime(t, tt.at)); got != tt.want {
				t.Errorf("MarketStatusAt = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsMarketHoursAt(t *testing.T) {
	if !IsMarketHoursAt(etTime(t, "2026-08-31 10:00")) {
		t.Error("expected regular session on Monday morning")
	}
	if IsMarketHoursAt(etTime(t, "2026-08-31 08:00")) {
		t.Error("pre-market is not regular hours")
	}
}
