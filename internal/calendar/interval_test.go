package calendar_test

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagetally/internal/calendar"
)

func TestParseInterval(t *testing.T) {
	tests := []struct {
		in       string
		want     string
		singular bool
		err      error
	}{
		{in: "2024-03", want: "2024-03", singular: true},
		{in: "2024-03:2024-03", want: "2024-03", singular: true},
		{in: "2024-01:2024-04", want: "2024-01:2024-04"},
		{in: "2023-W50:2024-W02", want: "2023-W50:2024-W02"},
		{in: "2024-01:2024-W05", err: calendar.ErrAsymmetricUnits},
		{in: "2024-03:2024-01", err: calendar.ErrEndBeforeStart},
		{in: "2024-03:", err: calendar.ErrMalformedDate},
		{in: "2024-02-30:2024-03-01", err: calendar.ErrIllegalDay},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := calendar.ParseInterval(tt.in)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
			assert.Equal(t, tt.singular, got.IsSingular())
		})
	}
}

func TestIntervalAdvancedByKeepsWidth(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"2024-01:2024-04", -1, "2023-09:2023-12"},
		{"2024-01:2024-04", 1, "2024-05:2024-08"},
		{"2024-03-01:2024-03-07", 1, "2024-03-08:2024-03-14"},
		{"2020-W52:2020-W53", 1, "2021-W01:2021-W02"},
		{"2024", -1, "2023"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			i := calendar.MustParseInterval(tt.in)
			got, err := i.AdvancedBy(tt.n)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
			assert.Equal(t, i.Len(), got.Len())
		})
	}
}

func TestIntervalEnumeration(t *testing.T) {
	i := calendar.MustParseInterval("2024-01-30:2024-03-02")

	days := slices.Collect(i.Days())
	require.Len(t, days, 33)
	assert.Equal(t, "2024-01-30", days[0].String())
	assert.Equal(t, "2024-03-02", days[32].String())

	var months []string
	for m := range i.MonthRange() {
		months = append(months, m.String())
	}
	assert.Equal(t, []string{"2024-01", "2024-02", "2024-03"}, months)

	weeks := calendar.MustParseInterval("2024-01:2024-02").ConvertTo(calendar.Week)
	assert.Equal(t, "2024-W01:2024-W09", weeks.String())
}

func TestComparisons(t *testing.T) {
	year := calendar.MustParse("2024")
	march := calendar.MustParse("2024-03")
	q1 := calendar.MustParseInterval("2024-01:2024-03")
	w1 := calendar.MustParse("2024-W01")
	w1of2025 := calendar.MustParse("2025-W01")

	assert.True(t, calendar.Singular(march).Equals(march))
	assert.True(t, march.Equals(calendar.Singular(march)))
	assert.False(t, march.Equals(calendar.MustParse("2024-03-01")))

	assert.True(t, year.Contains(q1))
	assert.True(t, q1.Contains(march))
	assert.True(t, year.Contains(w1))
	assert.False(t, year.Contains(w1of2025))
	assert.True(t, year.Overlaps(w1of2025))

	assert.True(t, w1.IsBefore(calendar.MustParse("2024-01-08")))
	assert.False(t, w1.IsBefore(calendar.MustParse("2024-01-07")))
	assert.False(t, q1.IsBefore(march))
	assert.True(t, march.IsAfter(calendar.MustParse("2024-02-29")))
}

func TestContainsIsReflexiveAndTransitive(t *testing.T) {
	ranges := []calendar.Range{
		calendar.MustParse("2024"),
		calendar.MustParseInterval("2024-01:2024-06"),
		calendar.MustParse("2024-02"),
		calendar.MustParse("2024-W07"),
		calendar.MustParse("2024-02-14"),
	}
	for _, r := range ranges {
		assert.True(t, calendar.Contains(r, r), r.String())
		assert.False(t, calendar.Before(r, r), r.String())
	}
	for _, a := range ranges {
		for _, b := range ranges {
			for _, c := range ranges {
				if calendar.Contains(a, b) && calendar.Contains(b, c) {
					assert.True(t, calendar.Contains(a, c), "%s ⊇ %s ⊇ %s", a, b, c)
				}
				if calendar.Before(a, b) && calendar.Before(b, c) {
					assert.True(t, calendar.Before(a, c))
				}
			}
		}
	}
}

func TestIntervalText(t *testing.T) {
	var i calendar.Interval
	require.NoError(t, i.UnmarshalText([]byte("2023-W50:2024-W02")))
	out, err := i.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "2023-W50:2024-W02", string(out))
	assert.Equal(t, 5, i.Len())
}
