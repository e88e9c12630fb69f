package term

import (
	"errors"
	"testing"
	"time"
)

func TestOf(t *testing.T) {
	at := time.Date(2024, time.February, 14, 17, 35, 0, 0, time.UTC) // Wednesday

	tests := []struct {
		name string
		freq Frequency
		want Term
	}{
		{"hours", Hours, 2024021417},
		{"days", Days, 2024021400},
		{"weeks start on monday", Weeks, 2024021200},
		{"months", Months, 2024020100},
		{"empty means months", "", 2024020100},
		{"years", Years, 2024010100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Of(at, tt.freq); got != tt.want {
				t.Errorf("Of() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestOf_WeekCrossesMonth(t *testing.T) {
	sunday := time.Date(2024, time.March, 3, 9, 0, 0, 0, time.UTC)
	if got := Of(sunday, Weeks); got != 2024022600 {
		t.Errorf("Of(sunday) = %d, want 2024022600", got)
	}
}

func TestBounds(t *testing.T) {
	tests := []struct {
		name      string
		at        time.Time
		freq      Frequency
		wantStart Term
		wantEnd   Term
	}{
		{"leap february", time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC), Months, 2024020100, 2024022923},
		{"common february", time.Date(2023, 2, 10, 0, 0, 0, 0, time.UTC), Months, 2023020100, 2023022823},
		{"april", time.Date(2024, 4, 30, 23, 0, 0, 0, time.UTC), Months, 2024040100, 2024043023},
		{"december", time.Date(2024, 12, 5, 0, 0, 0, 0, time.UTC), Months, 2024120100, 2024123123},
		{"day", time.Date(2024, 2, 29, 12, 0, 0, 0, time.UTC), Days, 2024022900, 2024022923},
		{"hour", time.Date(2024, 2, 29, 12, 30, 0, 0, time.UTC), Hours, 2024022912, 2024022912},
		{"week", time.Date(2024, 2, 29, 12, 0, 0, 0, time.UTC), Weeks, 2024022600, 2024030323},
		{"year", time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), Years, 2024010100, 2024123123},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := Bounds(tt.at, tt.freq)
			if start != tt.wantStart || end != tt.wantEnd {
				t.Errorf("Bounds() = (%d, %d), want (%d, %d)", start, end, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestNext(t *testing.T) {
	tests := []struct {
		in   Term
		freq Frequency
		want Term
	}{
		{2024010100, Months, 2024020100},
		{2024120100, Months, 2025010100},
		{2024022800, Days, 2024022900},
		{2024022600, Weeks, 2024030400},
		{2024123123, Hours, 2025010100},
		{2024010100, Years, 2025010100},
	}

	for _, tt := range tests {
		got, err := Next(tt.in, tt.freq)
		if err != nil {
			t.Fatalf("Next(%d) error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("Next(%d, %s) = %d, want %d", tt.in, tt.freq, got, tt.want)
		}
	}
}

func TestParse(t *testing.T) {
	got, err := Parse(2024022913)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	want := time.Date(2024, 2, 29, 13, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Parse() = %v, want %v", got, want)
	}

	invalid := []Term{0, 2023022900, 2024130100, 2024010124, 2024000100, 99}
	for _, tm := range invalid {
		if _, err := Parse(tm); !errors.Is(err, ErrInvalidTerm) {
			t.Errorf("Parse(%d) error = %v, want ErrInvalidTerm", tm, err)
		}
	}
}

func TestParseString(t *testing.T) {
	tm, err := ParseString("2024030100")
	if err != nil {
		t.Fatalf("ParseString() error: %v", err)
	}
	if tm != 2024030100 {
		t.Errorf("ParseString() = %d", tm)
	}
	if _, err := ParseString("march"); !errors.Is(err, ErrInvalidTerm) {
		t.Errorf("expected ErrInvalidTerm, got %v", err)
	}
}

func TestRoundTrip(t *testing.T) {
	for _, freq := range []Frequency{Hours, Days, Weeks, Months, Years} {
		at := time.Date(2025, 11, 19, 6, 0, 0, 0, time.UTC)
		tm := Of(at, freq)
		if again := Of(tm.Time(), freq); again != tm {
			t.Errorf("%s: Of(Of(t).Time()) = %d, want %d", freq, again, tm)
		}
	}
}

func TestFromYearMonth(t *testing.T) {
	tm, err := FromYearMonth(2024, 3)
	if err != nil {
		t.Fatalf("FromYearMonth() error: %v", err)
	}
	if tm != 2024030100 {
		t.Errorf("FromYearMonth() = %d, want 2024030100", tm)
	}
	if tm.Year() != 2024 || tm.Month() != time.March {
		t.Errorf("Year/Month = %d/%d", tm.Year(), tm.Month())
	}
	if _, err := FromYearMonth(2024, 13); err == nil {
		t.Error("expected error for month 13")
	}
}

func TestIsFuture(t *testing.T) {
	now := time.Date(2024, 3, 31, 23, 0, 0, 0, time.UTC)
	if IsFuture(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), now, Months) {
		t.Error("current month reported as future")
	}
	if !IsFuture(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), now, Months) {
		t.Error("next month not reported as future")
	}
	if IsFuture(time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC), now, Months) {
		t.Error("past month reported as future")
	}
}

func TestFrequencyValidate(t *testing.T) {
	for _, f := range []Frequency{"", Hours, Days, Weeks, Months, Years} {
		if err := f.Validate(); err != nil {
			t.Errorf("Validate(%q) = %v", f, err)
		}
	}
	if err := Frequency("fortnights").Validate(); !errors.Is(err, ErrInvalidFrequency) {
		t.Errorf("expected ErrInvalidFrequency, got %v", err)
	}
}
