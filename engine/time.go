package engine

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// DAY - Calendar day without time of day
// =============================================================================

// Day is a calendar date. The wrapped time is always midnight UTC so that
// differences between days are exact multiples of 24h.
type Day struct {
	Time time.Time
}

const dayLayout = "2006-01-02"

func NewDay(year int, month time.Month, day int) Day {
	return Day{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DayOf truncates t to its calendar day in t's own location.
func DayOf(t time.Time) Day {
	return NewDay(t.Year(), t.Month(), t.Day())
}

// Today returns the current calendar day as seen from loc.
func Today(loc *time.Location) Day {
	if loc == nil {
		loc = time.UTC
	}
	return DayOf(time.Now().In(loc))
}

func ParseDay(s string) (Day, error) {
	t, err := time.Parse(dayLayout, strings.TrimSpace(s))
	if err != nil {
		return Day{}, err
	}
	return DayOf(t), nil
}

// Comparison
func (d Day) Before(other Day) bool { return d.Time.Before(other.Time) }
func (d Day) Equal(other Day) bool  { return d.Time.Equal(other.Time) }
func (d Day) After(other Day) bool  { return d.Time.After(other.Time) }

// Arithmetic
func (d Day) AddDays(n int) Day { return DayOf(d.Time.AddDate(0, 0, n)) }

// Properties
func (d Day) Year() int          { return d.Time.Year() }
func (d Day) Month() time.Month  { return d.Time.Month() }
func (d Day) Day() int           { return d.Time.Day() }
func (d Day) IsZero() bool       { return d.Time.IsZero() }
func (d Day) String() string     { return d.Time.Format(dayLayout) }
func (d Day) MonthDay() MonthDay { return MonthDay{Month: d.Month(), Day: d.Day()} }

// DaysBetween returns the whole days from -> to (negative if to is earlier).
func DaysBetween(from, to Day) int {
	return int(to.Time.Sub(from.Time).Hours() / 24)
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// =============================================================================
// MONTH DAY - A recurring annual date
// =============================================================================

// MonthDay is a (month, day) pair that recurs every year.
type MonthDay struct {
	Month time.Month
	Day   int
}

// maxDays is the longest each month can be. February allows 29 so that
// leap-day birthdays are representable.
var maxDays = [...]int{0, 31, 29, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

// NewMonthDay validates the pair against month lengths.
func NewMonthDay(month time.Month, day int) (MonthDay, error) {
	if month < time.January || month > time.December {
		return MonthDay{}, &InvalidDateError{Value: fmt.Sprintf("%02d-%02d", int(month), day), Reason: "month out of range"}
	}
	if day < 1 || day > maxDays[month] {
		return MonthDay{}, &InvalidDateError{Value: fmt.Sprintf("%02d-%02d", int(month), day), Reason: "day out of range for month"}
	}
	return MonthDay{Month: month, Day: day}, nil
}

// In returns the concrete date in year. Feb 29 falls on Feb 28 in common years.
func (md MonthDay) In(year int) Day {
	if md.Month == time.February && md.Day == 29 && !isLeap(year) {
		return NewDay(year, time.February, 28)
	}
	return NewDay(year, md.Month, md.Day)
}

func (md MonthDay) String() string { return fmt.Sprintf("%02d-%02d", int(md.Month), md.Day) }

// birthDateLayouts are tried in order. Every layout must consume the whole
// input; trailing text is an error.
var birthDateLayouts = []string{
	dayLayout,
	"2006-01-02T15:04:05", // timestamps from the hosted store
	time.RFC3339,
	"02/01/2006",
}

// ParseBirthDate extracts the recurring month/day from a stored birth date.
// Accepted forms: YYYY-MM-DD, DD/MM/YYYY and MM-DD. Feb 29 is only valid
// with a leap year or without a year.
func ParseBirthDate(raw string) (MonthDay, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return MonthDay{}, &InvalidDateError{Value: raw, Reason: "missing"}
	}

	if len(s) == len("01-02") {
		// 2000 is a leap year, so 02-29 parses.
		t, err := time.Parse(dayLayout, "2000-"+s)
		if err != nil {
			return MonthDay{}, &InvalidDateError{Value: raw, Reason: "expected MM-DD"}
		}
		return MonthDay{Month: t.Month(), Day: t.Day()}, nil
	}

	for _, layout := range birthDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return MonthDay{Month: t.Month(), Day: t.Day()}, nil
		}
	}
	return MonthDay{}, &InvalidDateError{Value: raw, Reason: "expected YYYY-MM-DD or DD/MM/YYYY"}
}

// =============================================================================
// OCCURRENCE - Next concrete date of a recurring MonthDay
// =============================================================================

// Occurrence is the next concrete date of a recurring MonthDay.
type Occurrence struct {
	Date      Day
	DaysUntil int
}

// NextOccurrence returns this year's occurrence, or next year's when this
// year's is strictly before today. DaysUntil is never negative; it is 0 when
// today is the occurrence.
func NextOccurrence(md MonthDay, today Day) Occurrence {
	today = DayOf(today.Time)
	date := md.In(today.Year())
	if date.Before(today) {
		date = md.In(today.Year() + 1)
	}
	return Occurrence{Date: date, DaysUntil: DaysBetween(today, date)}
}

// =============================================================================
// HUMAN FORMAT
// =============================================================================

var spanishMonths = [...]string{"", "enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre"}

// HumanDate formats a day the way the emails show it, e.g. "15 de marzo de 2026".
func HumanDate(d Day) string {
	return fmt.Sprintf("%d de %s de %d", d.Day(), spanishMonths[d.Month()], d.Year())
}
