package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/talgya/metaverse/internal/timescale"
)

var convertCmd = &cobra.Command{
	Use:   "convert <RFC3339 time>",
	Short: "Express an instant on other time scales",
	Example: "  metaverse convert 2016-06-01T00:00:00Z\n" +
		"  metaverse convert 2024-01-01T00:01:09.184Z --from TT --to UTC,TAI",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		provider, err := loadIERS(cfg)
		if err != nil {
			return err
		}

		t, err := time.Parse(time.RFC3339Nano, args[0])
		if err != nil {
			return fmt.Errorf("time: %w", err)
		}
		fromName, _ := cmd.Flags().GetString("from")
		from, err := timescale.ParseScale(fromName)
		if err != nil {
			return err
		}
		targets, err := parseScales(cmd)
		if err != nil {
			return err
		}

		conv := provider.Converter()
		in := timescale.At(from, t)
		out := cmd.OutOrStdout()
		for _, sc := range targets {
			fmt.Fprintf(out, "%-4s %s\n", sc, conv.Convert(in, sc).Time.Format(time.RFC3339Nano))
		}
		utc := conv.Convert(in, timescale.UTC).Time
		fmt.Fprintf(out, "TAI-UTC %ds  DUT1 %+.4fs  JD(TT) %.6f\n",
			conv.LeapSeconds(utc), conv.DUT1(utc), conv.Convert(in, timescale.TT).JD())
		return nil
	},
}

func parseScales(cmd *cobra.Command) ([]timescale.Scale, error) {
	names, _ := cmd.Flags().GetStringSlice("to")
	if len(names) == 0 {
		return timescale.Scales, nil
	}
	out := make([]timescale.Scale, 0, len(names))
	for _, name := range names {
		sc, err := timescale.ParseScale(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, nil
}

func init() {
	convertCmd.Flags().String("from", "UTC", "scale the input is read on")
	convertCmd.Flags().StringSlice("to", nil, "target scales (default all)")
	rootCmd.AddCommand(convertCmd)
}
