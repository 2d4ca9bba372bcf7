package util

import (
	"time"
)

// nyLocation is resolved once; US equity sessions are defined in Eastern time.
var nyLocation = func() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		panic("tzdata: " + err.Error())
	}
	return loc
}()

const (
	sessionOpenHour   = 9
	sessionOpenMinute = 30
	sessionCloseHour  = 16
)

// TradingCalendar answers market-hours questions for the US equity session
// (NYSE/Nasdaq regular hours, 9:30-16:00 ET, Monday through Friday).
// Exchange holidays are not modeled; callers polling on a closed holiday
// simply fetch no new bars.
type TradingCalendar struct{}

// NewTradingCalendar creates a TradingCalendar.
func NewTradingCalendar() *TradingCalendar {
	return &TradingCalendar{}
}

// IsMarketOpen reports whether the regular session is open at time t.
func (tc *TradingCalendar) IsMarketOpen(t time.Time) bool {
	et := t.In(nyLocation)
	if et.Weekday() == time.Saturday || et.Weekday() == time.Sunday {
		return false
	}
	open := time.Date(et.Year(), et.Month(), et.Day(), sessionOpenHour, sessionOpenMinute, 0, 0, nyLocation)
	close := time.Date(et.Year(), et.Month(), et.Day(), sessionCloseHour, 0, 0, 0, nyLocation)
	return !et.Before(open) && et.Before(close)
}

// NextOpen returns the next session open at or after t.
func (tc *TradingCalendar) NextOpen(t time.Time) time.Time {
	et := t.In(nyLocation)
	for {
		open := time.Date(et.Year(), et.Month(), et.Day(), sessionOpenHour, sessionOpenMinute, 0, 0, nyLocation)
		if et.Weekday() != time.Saturday && et.Weekday() != time.Sunday && !open.Before(et) {
			return open
		}
		et = time.Date(et.Year(), et.Month(), et.Day(), 0, 0, 0, 0, nyLocation).AddDate(0, 0, 1)
	}
}

// NextClose returns the next session close at or after t.
func (tc *TradingCalendar) NextClose(t time.Time) time.Time {
	et := t.In(nyLocation)
	for {
		close := time.Date(et.Year(), et.Month(), et.Day(), sessionCloseHour, 0, 0, 0, nyLocation)
		if et.Weekday() != time.Saturday && et.Weekday() != time.Sunday && !close.Before(et) {
			return close
		}
		et = time.Date(et.Year(), et.Month(), et.Day(), 0, 0, 0, 0, nyLocation).AddDate(0, 0, 1)
	}
}
