// Package calendar converts between calendar dates, decimal day-of-year values and
// hour/minute/second clock triples for the shading engine.
package calendar

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidDate is returned when a month falls outside 1-12.
var ErrInvalidDate = errors.New("invalid date")

var (
	daysPerMonth     = [12]int{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}
	daysPerMonthLeap = [12]int{31, 29, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}
)

// Timestamp is a fully resolved sampling instant.
type Timestamp struct {
	Year      int
	Month     int
	Day       int
	Hour      int
	Minute    int
	Second    int
	DayOfYear int

	// Decimal is the decimal day-of-year value the clock fields were derived from
	Decimal float64

	// UTCOffset is the local standard time offset from UTC in hours
	UTCOffset float64
}

// IsLeapYear applies the Gregorian leap year rule.
func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// DayOfYear returns the 1-based day count of the given date. The day itself is not
// checked against the length of the month.
func DayOfYear(year, month, day int) (int, error) {
	if month < 1 || month > 12 {
		return 0, fmt.Errorf("%w: month %d", ErrInvalidDate, month)
	}

	table := daysPerMonth
	if IsLeapYear(year) {
		table = daysPerMonthLeap
	}

	doy := day
	for _, n := range table[:month-1] {
		doy += n
	}
	return doy, nil
}

// DecimalTimeToClock splits the fractional part of a decimal day into hours, minutes
// and seconds. Every stage truncates, so the seconds can come out one low.
func DecimalTimeToClock(dectime float64) (hour, minute, second int) {
	dh := dectime - math.Floor(dectime)
	hour = int(24 * dh)

	dm := 24*dh - float64(hour)
	minute = int(60 * dm)

	ds := 60*dm - float64(minute)
	second = int(60 * ds)

	return hour, minute, second
}

// ResolveTimestamp turns a local date and clock time into a Timestamp. The DST offset
// (hours) is removed from the clock before the decimal day is formed; a result before
// Jan 1 00:00 rolls back to Dec 31 of the previous year. The UTC offset is carried
// along for the solar position lookup and does not shift the decimal day.
func ResolveTimestamp(year, month, day, hour, minute int, utcOffset, dst float64) (Timestamp, error) {
	doy, err := DayOfYear(year, month, day)
	if err != nil {
		return Timestamp{}, err
	}

	ut := float64(doy) - 1.0 + (float64(hour)-dst)/24.0 + float64(minute)/(60.0*24.0)

	if ut < 0 {
		year--
		month = 12
		day = 31
		doy, err = DayOfYear(year, month, day)
		if err != nil {
			return Timestamp{}, err
		}
		ut += float64(doy) - 1
	}

	h, m, s := DecimalTimeToClock(ut)

	// A truncated :59 second is the top of the next minute.
	if s == 59 {
		s = 0
		m++
		if m == 60 {
			m = 0
			h++
			if h == 24 {
				h = 0
			}
		}
	}

	return Timestamp{
		Year:      year,
		Month:     month,
		Day:       day,
		Hour:      h,
		Minute:    m,
		Second:    s,
		DayOfYear: doy,
		Decimal:   ut,
		UTCOffset: utcOffset,
	}, nil
}

// Location returns a fixed zone for the timestamp's UTC offset.
func (ts Timestamp) Location() *time.Location {
	secs := int(math.Round(ts.UTCOffset * 3600))
	if secs == 0 {
		return time.UTC
	}
	return time.FixedZone(fmt.Sprintf("UTC%+g", ts.UTCOffset), secs)
}

// Time returns the corrected clock as a time.Time in the timestamp's zone.
func (ts Timestamp) Time() time.Time {
	return time.Date(ts.Year, time.Month(ts.Month), ts.Day, ts.Hour, ts.Minute, ts.Second, 0, ts.Location())
}

// SolarTime returns the truncated clock, before the :59 correction, which is the
// instant the sun position is evaluated at.
func (ts Timestamp) SolarTime() time.Time {
	h, m, s := DecimalTimeToClock(ts.Decimal)
	return time.Date(ts.Year, time.Month(ts.Month), ts.Day, h, m, s, 0, ts.Location())
}

// Stamp formats the timestamp the way per-step raster names expect (YYYYMMDD_HHMM).
func (ts Timestamp) Stamp() string {
	return fmt.Sprintf("%04d%02d%02d_%02d%02d", ts.Year, ts.Month, ts.Day, ts.Hour, ts.Minute)
}
