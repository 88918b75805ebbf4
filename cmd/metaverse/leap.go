package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var leapCmd = &cobra.Command{
	Use:   "leap [date]",
	Short: "Show TAI-UTC at a date, or the whole leap second table",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		provider, err := loadIERS(cfg)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		if len(args) == 1 {
			d, err := time.Parse(time.DateOnly, args[0])
			if err != nil {
				if d, err = time.Parse(time.RFC3339Nano, args[0]); err != nil {
					return fmt.Errorf("date: %w", err)
				}
			}
			fmt.Fprintf(out, "%d\n", provider.LeapSeconds(d))
			return nil
		}

		data := provider.Data()
		fmt.Fprintf(out, "# %s\n", data.Source)
		for _, e := range data.Leaps.Entries() {
			fmt.Fprintf(out, "%s  %2d\n", e.Effective.Format(time.DateOnly), e.Offset)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(leapCmd)
}
