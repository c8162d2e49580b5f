package calendar_test

import (
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagetally/internal/calendar"
)

func TestParseRoundTrip(t *testing.T) {
	inputs := []string{
		"2024", "0001", "9999",
		"2024-01", "2024-12",
		"2024-W01", "2020-W53", "2026-W53",
		"2024-02-29", "2023-12-31", "2000-02-29",
	}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			v, err := calendar.Parse(in)
			require.NoError(t, err)
			assert.Equal(t, in, v.String())
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		in   string
		want error
	}{
		{"", calendar.ErrMalformedDate},
		{"24-01", calendar.ErrMalformedDate},
		{"2024-1", calendar.ErrMalformedDate},
		{"2024/01/01", calendar.ErrMalformedDate},
		{"2024-w01", calendar.ErrMalformedDate},
		{"2024-01-01T00:00", calendar.ErrMalformedDate},
		{"2024-13", calendar.ErrIllegalMonth},
		{"2024-00-10", calendar.ErrIllegalMonth},
		{"2023-02-29", calendar.ErrIllegalDay},
		{"1900-02-29", calendar.ErrIllegalDay},
		{"2024-04-31", calendar.ErrIllegalDay},
		{"2024-W00", calendar.ErrIllegalWeek},
		{"2021-W53", calendar.ErrIllegalWeek},
		{"0000", calendar.ErrOutOfRangeYear},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			_, err := calendar.Parse(tt.in)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			var calErr *calendar.Error
			require.ErrorAs(t, err, &calErr)
			assert.NotEmpty(t, calErr.Value)
		})
	}
}

func TestLeapYearsAndMonthLengths(t *testing.T) {
	assert.True(t, calendar.IsLeapYear(2000))
	assert.True(t, calendar.IsLeapYear(2024))
	assert.False(t, calendar.IsLeapYear(1900))
	assert.False(t, calendar.IsLeapYear(2023))

	assert.Equal(t, 29, calendar.DaysInMonth(2024, 2))
	assert.Equal(t, 28, calendar.DaysInMonth(2100, 2))
	assert.Equal(t, 30, calendar.DaysInMonth(2024, 11))
	assert.Equal(t, 31, calendar.DaysInMonth(2024, 12))
}

func TestWeeksInYear(t *testing.T) {
	long := map[int]bool{1992: true, 1998: true, 2004: true, 2009: true, 2015: true, 2020: true, 2026: true, 2032: true, 2037: true}
	for year := 1990; year <= 2040; year++ {
		weeks := calendar.WeeksInYear(year)
		assert.Contains(t, []int{52, 53}, weeks, "year %d", year)
		assert.Equal(t, long[year], weeks == 53, "year %d", year)

		_, lastWeek := time.Date(year, 12, 28, 0, 0, 0, 0, time.UTC).ISOWeek()
		assert.Equal(t, lastWeek, weeks, "year %d", year)
	}
}

func TestFirstWeekStartsOnMonday(t *testing.T) {
	for year := 1990; year <= 2040; year++ {
		w1, err := calendar.NewWeek(year, 1)
		require.NoError(t, err)
		day := w1.ConvertTo(calendar.Day)
		assert.Equal(t, 0, day.Weekday(), "year %d", year)
	}
}

func TestDayToWeekMatchesISO(t *testing.T) {
	start := time.Date(2018, 12, 1, 0, 0, 0, 0, time.UTC)
	for d := 0; d < 3*366; d++ {
		ts := start.AddDate(0, 0, d)
		year, week := ts.ISOWeek()
		got := calendar.FromTime(ts, calendar.Week)
		assert.Equal(t, year, got.Year(), ts.Format(time.DateOnly))
		assert.Equal(t, week, got.Week(), ts.Format(time.DateOnly))
	}
}

func TestConvertTo(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		unit  calendar.Unit
		start string
		end   string
	}{
		{"week 1 of 2024 starts on new year", "2024-W01", calendar.Day, "2024-01-01", "2024-01-07"},
		{"week 1 of 2025 starts in december", "2025-W01", calendar.Day, "2024-12-30", "2025-01-05"},
		{"week 1 of 2025 belongs to january", "2025-W01", calendar.Month, "2025-01", "2025-01"},
		{"week 53 of 2020 belongs to 2020", "2020-W53", calendar.Year, "2020", "2020"},
		{"day in last week of previous year", "2021-01-01", calendar.Week, "2020-W53", "2020-W53"},
		{"day in first week of next year", "2024-12-30", calendar.Week, "2025-W01", "2025-W01"},
		{"day to month", "2024-02-29", calendar.Month, "2024-02", "2024-02"},
		{"day to year", "2024-02-29", calendar.Year, "2024", "2024"},
		{"year to months", "2024", calendar.Month, "2024-01", "2024-12"},
		{"year to days", "2024", calendar.Day, "2024-01-01", "2024-12-31"},
		{"year to owned weeks", "2021", calendar.Week, "2021-W01", "2021-W52"},
		{"month to owned weeks", "2024-09", calendar.Week, "2024-W36", "2024-W39"},
		{"month to days", "2024-02", calendar.Day, "2024-02-01", "2024-02-29"},
		{"month to year", "2024-07", calendar.Year, "2024", "2024"},
		{"same unit", "2024-07", calendar.Month, "2024-07", "2024-07"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := calendar.MustParse(tt.in)
			assert.Equal(t, tt.start, v.ConvertTo(tt.unit).String())
			assert.Equal(t, tt.end, v.ConvertToEnd(tt.unit).String())
		})
	}
}

func TestConvertToIsIdempotent(t *testing.T) {
	values := []string{"2024", "2021-01", "2020-W53", "2021-01-01", "2024-12-30"}
	units := []calendar.Unit{calendar.Day, calendar.Week, calendar.Month, calendar.Year}
	for _, in := range values {
		for _, u := range units {
			v := calendar.MustParse(in)
			once := v.ConvertTo(u)
			assert.Equal(t, once, once.ConvertTo(u), "%s to %s", in, u)
		}
	}
}

func TestAdvancedBy(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"2024", 1, "2025"},
		{"2024", -24, "2000"},
		{"2024-11", 3, "2025-02"},
		{"2024-01", -1, "2023-12"},
		{"2024-01", -25, "2021-12"},
		{"2020-W52", 1, "2020-W53"},
		{"2020-W53", 1, "2021-W01"},
		{"2021-W01", -1, "2020-W53"},
		{"2024-02-28", 1, "2024-02-29"},
		{"2024-03-01", -1, "2024-02-29"},
		{"2024-12-31", 1, "2025-01-01"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := calendar.MustParse(tt.in).AdvancedBy(tt.n)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}

	_, err := calendar.MustParse("9999-12").AdvancedBy(1)
	assert.ErrorIs(t, err, calendar.ErrOutOfRangeYear)
}

func TestEachIsRestartable(t *testing.T) {
	month := calendar.MustParse("2024-02")
	first := slices.Collect(month.Each(calendar.Day))
	second := slices.Collect(month.Each(calendar.Day))

	require.Len(t, first, 29)
	assert.Equal(t, first, second)
	assert.Equal(t, "2024-02-01", first[0].String())
	assert.Equal(t, "2024-02-29", first[28].String())

	weeks := slices.Collect(calendar.MustParse("2020").Each(calendar.Week))
	assert.Len(t, weeks, 53)
}

func TestUnitText(t *testing.T) {
	for _, u := range []calendar.Unit{calendar.Day, calendar.Week, calendar.Month, calendar.Year} {
		parsed, err := calendar.ParseUnit(u.String())
		require.NoError(t, err)
		assert.Equal(t, u, parsed)
	}
	_, err := calendar.ParseUnit("quarter")
	assert.ErrorIs(t, err, calendar.ErrUnknownUnit)
}
