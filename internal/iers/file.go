package iers

import (
	"fmt"
	"os"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/talgya/metaverse/internal/timescale"
)

// fileFormat is the on-disk layout of an IERS data file:
//
//	source = "Bulletin A excerpt"
//
//	[[leap_second]]
//	effective = 2017-01-01
//	tai_minus_utc = 37
//
//	[[observation]]
//	date = 2024-01-01
//	dut1 = 0.0105
//	xp = 0.091
//	yp = 0.18
type fileFormat struct {
	Source      string      `toml:"source"`
	LeapSeconds []leapRow   `toml:"leap_second"`
	Observation []observRow `toml:"observation"`
}

type leapRow struct {
	Effective   toml.LocalDate `toml:"effective"`
	TAIMinusUTC int            `toml:"tai_minus_utc"`
}

type observRow struct {
	Date toml.LocalDate `toml:"date"`
	DUT1 float64        `toml:"dut1"`
	XP   float64        `toml:"xp"`
	YP   float64        `toml:"yp"`
}

// Data is a parsed IERS data set. Sections missing from a file fall back to
// the compiled-in defaults.
type Data struct {
	Source string
	Leaps  *timescale.LeapTable
	EOP    *Table
}

// Defaults returns the compiled-in data set.
func Defaults() Data {
	return Data{Source: "built-in", Leaps: timescale.DefaultLeapTable(), EOP: DefaultTable()}
}

// LoadFile reads and parses a TOML data file.
func LoadFile(path string) (Data, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Data{}, fmt.Errorf("read iers file: %w", err)
	}
	return Parse(raw)
}

// Parse decodes a TOML data set.
func Parse(raw []byte) (Data, error) {
	var f fileFormat
	if err := toml.Unmarshal(raw, &f); err != nil {
		return Data{}, fmt.Errorf("parse iers file: %w", err)
	}

	data := Defaults()
	data.Source = f.Source
	if data.Source == "" {
		data.Source = "file"
	}

	if len(f.LeapSeconds) > 0 {
		rows := make([]timescale.LeapSecond, len(f.LeapSeconds))
		for i, r := range f.LeapSeconds {
			rows[i] = timescale.LeapSecond{Effective: r.Effective.AsTime(time.UTC), Offset: r.TAIMinusUTC}
		}
		leaps, err := timescale.NewLeapTable(rows)
		if err != nil {
			return Data{}, fmt.Errorf("leap_second: %w", err)
		}
		data.Leaps = leaps
	}

	if len(f.Observation) > 0 {
		rows := make([]Observation, len(f.Observation))
		for i, r := range f.Observation {
			rows[i] = Observation{
				Date:   r.Date.AsTime(time.UTC),
				Params: Params{DUT1: r.DUT1, XP: r.XP, YP: r.YP},
			}
			if r.DUT1 < -0.9 || r.DUT1 > 0.9 {
				return Data{}, fmt.Errorf("observation %d: dut1 %.4f outside +/-0.9s", i, r.DUT1)
			}
		}
		eop, err := NewTable(rows)
		if err != nil {
			return Data{}, fmt.Errorf("observation: %w", err)
		}
		data.EOP = eop
	}

	return data, nil
}
