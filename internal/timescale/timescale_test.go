package timescale

import (
	"testing"
	"time"
)

type fixedEOP float64

func (f fixedEOP) DUT1(time.Time) float64 { return float64(f) }

// driftingEOP changes DUT1 by rate seconds per day from base at 2020-01-01.
type driftingEOP struct{ base, rate float64 }

func (d driftingEOP) DUT1(utc time.Time) float64 {
	days := utc.Sub(date(2020, time.January, 1)).Hours() / 24
	return d.base + d.rate*days
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestLeapSeconds_Table(t *testing.T) {
	table := DefaultLeapTable()

	tests := []struct {
		name string
		at   time.Time
		want int
	}{
		{"before table", date(1960, time.March, 1), 10},
		{"first entry", date(1972, time.January, 1), 10},
		{"mid 1972", date(1972, time.June, 30), 10},
		{"july 1972", date(1972, time.July, 1), 11},
		{"2016", date(2016, time.June, 1), 36},
		{"day before 2017", time.Date(2016, time.December, 31, 23, 59, 59, 0, time.UTC), 36},
		{"2017", date(2017, time.January, 1), 37},
		{"far future", date(2030, time.January, 1), 37},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := table.LeapSeconds(tt.at); got != tt.want {
				t.Errorf("LeapSeconds(%s) = %d, want %d", tt.at.Format(time.DateOnly), got, tt.want)
			}
		})
	}
}

func TestNewLeapTable_RejectsBadInput(t *testing.T) {
	if _, err := NewLeapTable(nil); err != ErrEmptyLeapTable {
		t.Errorf("NewLeapTable(nil) error = %v, want ErrEmptyLeapTable", err)
	}
	_, err := NewLeapTable([]LeapSecond{
		{Effective: date(2000, time.January, 1), Offset: 32},
		{Effective: date(1999, time.January, 1), Offset: 33},
	})
	if err == nil {
		t.Error("NewLeapTable accepted unsorted rows")
	}
}

func TestUTCToTAI_MatchesLeapCount(t *testing.T) {
	c := NewConverter(nil, nil)
	table := DefaultLeapTable()

	for d := date(1972, time.January, 1); d.Before(date(2025, time.January, 1)); d = d.AddDate(0, 0, 97) {
		diff := c.UTCToTAI(d).Sub(d)
		want := time.Duration(table.LeapSeconds(d)) * time.Second
		if diff != want {
			t.Fatalf("UTCToTAI(%s) - d = %v, want %v", d.Format(time.DateOnly), diff, want)
		}
	}
}

func TestUTCToTT_IsTAIPlusFixedOffset(t *testing.T) {
	c := NewConverter(nil, fixedEOP(0.1))
	for _, d := range []time.Time{
		date(1975, time.May, 3),
		date(2000, time.January, 1),
		time.Date(2016, time.December, 31, 23, 59, 50, 0, time.UTC),
		date(2024, time.February, 29),
	} {
		if got := c.UTCToTT(d).Sub(c.UTCToTAI(d)); got != 32184*time.Millisecond {
			t.Errorf("TT - TAI at %s = %v, want 32.184s", d, got)
		}
	}
}

func TestConvert_IdentityForEveryScale(t *testing.T) {
	c := NewConverter(nil, fixedEOP(-0.2))
	now := time.Date(2021, time.March, 4, 5, 6, 7, 8, time.UTC)

	for _, s := range Scales {
		t.Run(s.String(), func(t *testing.T) {
			in := At(s, now)
			out := c.Convert(in, s)
			if out != in {
				t.Errorf("Convert(%v, %v) = %v", in, s, out)
			}
		})
	}
}

func TestConvert_RoundTrip(t *testing.T) {
	c := NewConverter(nil, fixedEOP(0.3))
	instants := []time.Time{
		date(1980, time.January, 1),
		time.Date(2016, time.December, 31, 23, 59, 30, 0, time.UTC),
		time.Date(2017, time.January, 1, 0, 0, 5, 0, time.UTC),
		time.Date(2023, time.August, 14, 12, 0, 0, 123456789, time.UTC),
	}

	for _, u := range instants {
		for _, s := range Scales {
			there := c.Convert(At(UTC, u), s)
			back := c.Convert(there, UTC)
			diff := back.Time.Sub(u)
			if diff < 0 {
				diff = -diff
			}
			// TDB and UT1 evaluate their correction on the far side of the hop.
			if diff > time.Microsecond {
				t.Errorf("UTC->%v->UTC at %s drifted by %v", s, u, diff)
			}
		}
	}
}

func TestTAIToUTC_ExactRoundTrip(t *testing.T) {
	c := NewConverter(nil, nil)
	for _, u := range []time.Time{
		time.Date(2016, time.December, 31, 23, 59, 23, 0, time.UTC),
		time.Date(2016, time.December, 31, 23, 59, 59, 0, time.UTC),
		date(2017, time.January, 1),
		date(1990, time.June, 6),
	} {
		if got := c.TAIToUTC(c.UTCToTAI(u)); !got.Equal(u) {
			t.Errorf("TAIToUTC(UTCToTAI(%s)) = %s", u, got)
		}
	}
}

func TestUT1ToUTC_RoundTripWithDriftingDUT1(t *testing.T) {
	c := NewConverter(nil, driftingEOP{base: 0.3, rate: -0.002})
	for _, u := range []time.Time{
		date(2020, time.January, 1),
		time.Date(2021, time.July, 9, 3, 4, 5, 600, time.UTC),
		time.Date(2019, time.March, 2, 23, 59, 59, 999999999, time.UTC),
	} {
		back := c.UT1ToUTC(c.UTCToUT1(u))
		diff := back.Sub(u)
		if diff < 0 {
			diff = -diff
		}
		if diff > time.Nanosecond {
			t.Errorf("UT1ToUTC(UTCToUT1(%s)) off by %v", u, diff)
		}
	}
}

func TestConvert_PanicsOnInvalidScale(t *testing.T) {
	c := NewConverter(nil, nil)
	bad := Scale(200)
	if bad.Valid() {
		t.Fatal("Scale(200) reports valid")
	}
	cases := []struct {
		name string
		in   Instant
		to   Scale
	}{
		{"source", Instant{Scale: bad, Time: date(2020, time.January, 1)}, UTC},
		{"target", At(UTC, date(2020, time.January, 1)), bad},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("Convert did not panic")
				}
			}()
			c.Convert(tc.in, tc.to)
		})
	}
}

func TestConvert_KnownOffsets(t *testing.T) {
	c := NewConverter(nil, fixedEOP(-0.25))
	u := date(2020, time.June, 1)

	tests := []struct {
		to   Scale
		want time.Duration
	}{
		{TAI, 37 * time.Second},
		{TT, 37*time.Second + 32184*time.Millisecond},
		{GPS, 18 * time.Second},
		{UT1, -250 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.to.String(), func(t *testing.T) {
			got := c.Convert(At(UTC, u), tt.to).Time.Sub(u)
			if got != tt.want {
				t.Errorf("offset = %v, want %v", got, tt.want)
			}
		})
	}

	tdb := c.Convert(At(UTC, u), TDB).Time.Sub(c.UTCToTT(u))
	if tdb > 2*time.Millisecond || tdb < -2*time.Millisecond {
		t.Errorf("TDB - TT = %v, want within 2ms", tdb)
	}
}

func TestParseScale(t *testing.T) {
	for _, s := range Scales {
		got, err := ParseScale(s.String())
		if err != nil || got != s {
			t.Errorf("ParseScale(%q) = %v, %v", s.String(), got, err)
		}
	}
	if got, err := ParseScale(" tdb "); err != nil || got != TDB {
		t.Errorf("ParseScale lower case = %v, %v", got, err)
	}
	if _, err := ParseScale("TCB"); err == nil {
		t.Error("ParseScale(TCB) succeeded")
	}
}

func TestJulianDate(t *testing.T) {
	j2000 := time.Date(2000, time.January, 1, 12, 0, 0, 0, time.UTC)
	if got := JulianDate(j2000); got != J2000 {
		t.Errorf("JulianDate(J2000) = %f", got)
	}
	if got := ModifiedJulianDate(date(1858, time.November, 17)); got != 0 {
		t.Errorf("MJD epoch = %f", got)
	}
	back := FromJulianDate(JulianDate(j2000.Add(90 * time.Minute)))
	if d := back.Sub(j2000.Add(90 * time.Minute)); d > time.Millisecond || d < -time.Millisecond {
		t.Errorf("FromJulianDate drifted by %v", d)
	}
}
