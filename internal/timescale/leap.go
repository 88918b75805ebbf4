package timescale

import (
	"errors"
	"fmt"
	"time"
)

// LeapSecond is one row of the IERS leap second table.
type LeapSecond struct {
	Effective time.Time // UTC date the offset takes effect
	Offset    int       // TAI - UTC in whole seconds
}

// LeapSource reports TAI - UTC for a UTC instant.
type LeapSource interface {
	LeapSeconds(utc time.Time) int
}

// LeapTable is a sorted leap second table.
type LeapTable struct {
	entries []LeapSecond
}

// ErrEmptyLeapTable is returned when a table has no rows.
var ErrEmptyLeapTable = errors.New("leap second table is empty")

// NewLeapTable validates and copies entries. Rows must be strictly increasing by date.
func NewLeapTable(entries []LeapSecond) (*LeapTable, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyLeapTable
	}
	rows := make([]LeapSecond, len(entries))
	for i, e := range entries {
		rows[i] = LeapSecond{Effective: e.Effective.UTC(), Offset: e.Offset}
		if i > 0 && !rows[i].Effective.After(rows[i-1].Effective) {
			return nil, fmt.Errorf("leap second table not sorted at row %d (%s)", i, rows[i].Effective.Format(time.DateOnly))
		}
	}
	return &LeapTable{entries: rows}, nil
}

// DefaultLeapTable returns the built-in table, current through the 2017-01-01 leap second.
func DefaultLeapTable() *LeapTable {
	return &LeapTable{entries: defaultLeapSeconds()}
}

func defaultLeapSeconds() []LeapSecond {
	rows := []struct {
		y      int
		m      time.Month
		offset int
	}{
		{1972, time.January, 10},
		{1972, time.July, 11},
		{1973, time.January, 12},
		{1974, time.January, 13},
		{1975, time.January, 14},
		{1976, time.January, 15},
		{1977, time.January, 16},
		{1978, time.January, 17},
		{1979, time.January, 18},
		{1980, time.January, 19},
		{1981, time.July, 20},
		{1982, time.July, 21},
		{1983, time.July, 22},
		{1985, time.July, 23},
		{1988, time.January, 24},
		{1990, time.January, 25},
		{1991, time.January, 26},
		{1992, time.July, 27},
		{1993, time.July, 28},
		{1994, time.July, 29},
		{1996, time.January, 30},
		{1997, time.July, 31},
		{1999, time.January, 32},
		{2006, time.January, 33},
		{2009, time.January, 34},
		{2012, time.July, 35},
		{2015, time.July, 36},
		{2017, time.January, 37},
	}
	out := make([]LeapSecond, len(rows))
	for i, r := range rows {
		out[i] = LeapSecond{Effective: time.Date(r.y, r.m, 1, 0, 0, 0, 0, time.UTC), Offset: r.offset}
	}
	return out
}

// LeapSeconds returns the offset of the last row whose date is not after utc.
// Instants before the first row get the first row's offset.
func (t *LeapTable) LeapSeconds(utc time.Time) int {
	offset := t.entries[0].Offset
	for _, e := range t.entries {
		if e.Effective.After(utc) {
			break
		}
		offset = e.Offset
	}
	return offset
}

// Entries returns a copy of the table rows.
func (t *LeapTable) Entries() []LeapSecond {
	out := make([]LeapSecond, len(t.entries))
	copy(out, t.entries)
	return out
}

// Latest returns the most recent row.
func (t *LeapTable) Latest() LeapSecond {
	return t.entries[len(t.entries)-1]
}
