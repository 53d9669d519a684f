package calc

import (
	"time"

	"github.com/polytrack/polytrack/internal/domain"
)

// US equity sessions in Eastern time, minutes from midnight.
const (
	preMarketStart = 4 * 60
	openStart      = 9*60 + 30
	openEnd        = 16 * 60
	afterHoursEnd  = 20 * 60
)

var eastern = mustLoadEastern()

func mustLoadEastern() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		// Fall back to a fixed offset when tzdata is unavailable.
		return time.FixedZone("EST", -5*60*60)
	}
	return loc
}

// MarketStatusAt returns the US equity session active at t.
func MarketStatusAt(t time.Time) domain.MarketSession {
	et := t.In(eastern)

	switch et.Weekday() {
	case time.Saturday, time.Sunday:
		return domain.SessionClosed
	}

	minutes := et.Hour()*60 + et.Minute()
	switch {
	case minutes >= preMarketStart && minutes < openStart:
		return domain.SessionPreMarket
	case minutes >= openStart && minutes < openEnd:
		return domain.SessionOpen
	case minutes >= openEnd && minutes < afterHoursEnd:
		return domain.SessionAfterHours
	default:
		return domain.SessionClosed
	}
}

// IsMarketHoursAt reports whether the regular session is active at t.
func IsMarketHoursAt(t time.Time) bool {
	return MarketStatusAt(t) == domain.SessionOpen
}

// IsMarketHours reports whether the regular session is active now.
func IsMarketHours() bool {
	return IsMarketHoursAt(time.Now())
}
