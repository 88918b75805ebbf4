package iers

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleFile = `
source = "test bulletin"

[[leap_second]]
effective = 2012-07-01
tai_minus_utc = 35

[[leap_second]]
effective = 2015-07-01
tai_minus_utc = 36

[[observation]]
date = 2024-01-01
dut1 = 0.0
xp = 0.1
yp = 0.2

[[observation]]
date = 2024-01-11
dut1 = 0.01
xp = 0.2
yp = 0.4
`

func TestTable_AtInterpolates(t *testing.T) {
	d0 := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	table, err := NewTable([]Observation{
		{Date: d0, Params: Params{DUT1: 0, XP: 0.1, YP: 0.2}},
		{Date: d0.AddDate(0, 0, 10), Params: Params{DUT1: 0.01, XP: 0.2, YP: 0.4}},
	})
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}

	tests := []struct {
		name string
		at   time.Time
		want Params
	}{
		{"before", d0.AddDate(-1, 0, 0), Params{DUT1: 0, XP: 0.1, YP: 0.2}},
		{"midpoint", d0.AddDate(0, 0, 5), Params{DUT1: 0.005, XP: 0.15, YP: 0.3}},
		{"after", d0.AddDate(1, 0, 0), Params{DUT1: 0.01, XP: 0.2, YP: 0.4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := table.At(tt.at)
			if math.Abs(got.DUT1-tt.want.DUT1) > 1e-12 ||
				math.Abs(got.XP-tt.want.XP) > 1e-12 ||
				math.Abs(got.YP-tt.want.YP) > 1e-12 {
				t.Errorf("At = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestNewTable_RejectsUnsorted(t *testing.T) {
	d0 := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	_, err := NewTable([]Observation{{Date: d0}, {Date: d0}})
	if err == nil {
		t.Error("NewTable accepted duplicate dates")
	}
}

func TestParse(t *testing.T) {
	data, err := Parse([]byte(sampleFile))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if data.Source != "test bulletin" {
		t.Errorf("Source = %q", data.Source)
	}
	if got := data.Leaps.LeapSeconds(time.Date(2016, time.June, 1, 0, 0, 0, 0, time.UTC)); got != 36 {
		t.Errorf("LeapSeconds = %d, want 36", got)
	}
	if got := data.EOP.At(time.Date(2024, time.January, 6, 0, 0, 0, 0, time.UTC)).XP; math.Abs(got-0.15) > 1e-12 {
		t.Errorf("XP = %f, want 0.15", got)
	}
}

func TestParse_MissingSectionsUseDefaults(t *testing.T) {
	data, err := Parse([]byte(`source = "empty"`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if data.Leaps.Latest().Offset != 37 {
		t.Errorf("default leap table not used")
	}
	if len(data.EOP.Rows()) != len(DefaultTable().Rows()) {
		t.Errorf("default EOP table not used")
	}
}

func TestParse_RejectsBadData(t *testing.T) {
	bad := []string{
		`[[observation]]
date = 2024-01-01
dut1 = 1.5`,
		`[[leap_second]]
effective = 2017-01-01
tai_minus_utc = 37
[[leap_second]]
effective = 2015-07-01
tai_minus_utc = 36`,
		`not toml at all = = =`,
	}
	for i, raw := range bad {
		if _, err := Parse([]byte(raw)); err == nil {
			t.Errorf("case %d: Parse succeeded", i)
		}
	}
}

func TestProvider_BuiltIn(t *testing.T) {
	p, err := NewProvider("")
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	if got := p.LeapSeconds(time.Date(2016, time.June, 1, 0, 0, 0, 0, time.UTC)); got != 36 {
		t.Errorf("LeapSeconds = %d, want 36", got)
	}
	conv := p.Converter()
	utc := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	if d := conv.UTCToUT1(utc).Sub(utc); d != 10500*time.Microsecond {
		t.Errorf("UT1 - UTC = %v, want 10.5ms", d)
	}
}

func TestProvider_ReloadKeepsOldDataOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "iers.toml")
	if err := os.WriteFile(path, []byte(sampleFile), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := NewProvider(path)
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	if err := os.WriteFile(path, []byte("garbage = = ="), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := p.Reload(); err == nil {
		t.Fatal("Reload accepted garbage")
	}
	if p.Data().Source != "test bulletin" {
		t.Errorf("data replaced after failed reload: %q", p.Data().Source)
	}
}

func TestProvider_WatchPicksUpChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "iers.toml")
	if err := os.WriteFile(path, []byte(sampleFile), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := NewProvider(path)
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := p.Watch(ctx); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	updated := `source = "second bulletin"`
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if p.Data().Source == "second bulletin" {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("watch did not reload, source = %q", p.Data().Source)
}
