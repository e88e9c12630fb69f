// Package term encodes billing periods as sortable YYYYMMDDHH integers.
package term

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Frequency is the billing period length of a lease.
type Frequency string

const (
	Hours  Frequency = "hours"
	Days   Frequency = "days"
	Weeks  Frequency = "weeks"
	Months Frequency = "months"
	Years  Frequency = "years"
)

// ErrInvalidFrequency is returned for frequencies outside the known set.
var ErrInvalidFrequency = errors.New("invalid frequency")

// ErrInvalidTerm is returned when a term does not encode a real hour.
var ErrInvalidTerm = errors.New("invalid term")

// OrDefault returns Months when f is empty.
func (f Frequency) OrDefault() Frequency {
	if f == "" {
		return Months
	}
	return f
}

// Validate reports whether f is one of the known frequencies. Empty is accepted.
func (f Frequency) Validate() error {
	switch f.OrDefault() {
	case Hours, Days, Weeks, Months, Years:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidFrequency, string(f))
}

// Term identifies the start hour of a billing period, e.g. 2024020100.
type Term int64

// Of returns the term of the period enclosing t.
func Of(t time.Time, f Frequency) Term {
	return encode(periodStart(t, f))
}

// Bounds returns the first and the last hour of the period enclosing t.
func Bounds(t time.Time, f Frequency) (Term, Term) {
	start := periodStart(t, f)
	end := nextStart(start, f).Add(-time.Hour)
	return encode(start), encode(end)
}

// Next returns the term of the period following tm.
func Next(tm Term, f Frequency) (Term, error) {
	t, err := Parse(tm)
	if err != nil {
		return 0, err
	}
	return encode(nextStart(periodStart(t, f), f)), nil
}

// FromYearMonth returns the monthly term for the given calendar month.
func FromYearMonth(year, month int) (Term, error) {
	if year < 1 || year > 9999 {
		return 0, fmt.Errorf("%w: year %d", ErrInvalidTerm, year)
	}
	if month < 1 || month > 12 {
		return 0, fmt.Errorf("%w: month %d", ErrInvalidTerm, month)
	}
	return Term(int64(year)*1000000 + int64(month)*10000 + 100), nil
}

// IsFuture reports whether the period of t starts after the period of now.
func IsFuture(t, now time.Time, f Frequency) bool {
	return Of(t, f) > Of(now.In(t.Location()), f)
}

// Parse decodes tm into a UTC time.
func Parse(tm Term) (time.Time, error) {
	v := int64(tm)
	if v < 1000010100 || v > 9999123123 {
		return time.Time{}, fmt.Errorf("%w: %d", ErrInvalidTerm, v)
	}
	hour := int(v % 100)
	day := int(v / 100 % 100)
	month := int(v / 10000 % 100)
	year := int(v / 1000000)

	t := time.Date(year, time.Month(month), day, hour, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day || t.Hour() != hour {
		return time.Time{}, fmt.Errorf("%w: %d", ErrInvalidTerm, v)
	}
	return t, nil
}

// ParseString decodes a textual term such as "2024020100".
func ParseString(s string) (Term, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTerm, s)
	}
	tm := Term(v)
	if _, err := Parse(tm); err != nil {
		return 0, err
	}
	return tm, nil
}

// Time decodes tm, returning the zero time when it is not valid.
func (tm Term) Time() time.Time {
	t, _ := Parse(tm)
	return t
}

// In decodes tm as a wall-clock hour in loc.
func (tm Term) In(loc *time.Location) time.Time {
	t := tm.Time()
	if t.IsZero() {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, loc)
}

// Year returns the calendar year encoded in tm.
func (tm Term) Year() int {
	return int(int64(tm) / 1000000)
}

// Month returns the calendar month encoded in tm.
func (tm Term) Month() time.Month {
	return time.Month(int64(tm) / 10000 % 100)
}

func (tm Term) String() string {
	return strconv.FormatInt(int64(tm), 10)
}

func encode(t time.Time) Term {
	return Term(int64(t.Year())*1000000 +
		int64(t.Month())*10000 +
		int64(t.Day())*100 +
		int64(t.Hour()))
}

func periodStart(t time.Time, f Frequency) time.Time {
	loc := t.Location()
	switch f.OrDefault() {
	case Hours:
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, loc)
	case Days:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	case Weeks:
		// ISO weeks start on Monday.
		offset := (int(t.Weekday()) + 6) % 7
		return time.Date(t.Year(), t.Month(), t.Day()-offset, 0, 0, 0, 0, loc)
	case Years:
		return time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, loc)
	default:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
	}
}

func nextStart(start time.Time, f Frequency) time.Time {
	loc := start.Location()
	switch f.OrDefault() {
	case Hours:
		return time.Date(start.Year(), start.Month(), start.Day(), start.Hour()+1, 0, 0, 0, loc)
	case Days:
		return time.Date(start.Year(), start.Month(), start.Day()+1, 0, 0, 0, 0, loc)
	case Weeks:
		return time.Date(start.Year(), start.Month(), start.Day()+7, 0, 0, 0, 0, loc)
	case Years:
		return time.Date(start.Year()+1, time.January, 1, 0, 0, 0, 0, loc)
	default:
		return time.Date(start.Year(), start.Month()+1, 1, 0, 0, 0, 0, loc)
	}
}
