package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/talgya/metaverse/internal/celestial"
	"github.com/talgya/metaverse/internal/contract"
	"github.com/talgya/metaverse/internal/timescale"
)

var transformCmd = &cobra.Command{
	Use:   "transform <x> <y> <z>",
	Short: "Re-express a position in another reference frame",
	Example: "  metaverse transform 6378137 0 0 --frame ECEF --to ECI --at 2024-03-20T12:00:00Z\n" +
		"  metaverse transform 0 0 1 --frame ECI --scale TT --to TOPOCENTRIC",
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		provider, err := loadIERS(cfg)
		if err != nil {
			return err
		}

		var r celestial.Vec3
		for i, dst := range []*float64{&r.X, &r.Y, &r.Z} {
			if *dst, err = strconv.ParseFloat(args[i], 64); err != nil {
				return fmt.Errorf("coordinate %d: %w", i+1, err)
			}
		}

		flags := cmd.Flags()
		frameName, _ := flags.GetString("frame")
		scaleName, _ := flags.GetString("scale")
		datumName, _ := flags.GetString("datum")
		toName, _ := flags.GetString("to")
		atStr, _ := flags.GetString("at")
		strict, _ := flags.GetBool("strict")

		c, err := contract.Parse(frameName, scaleName, datumName, nil)
		if err != nil {
			return err
		}
		to, err := contract.ParseFrame(toName)
		if err != nil {
			return err
		}
		at := time.Now().UTC()
		if atStr != "" {
			if at, err = time.Parse(time.RFC3339Nano, atStr); err != nil {
				return fmt.Errorf("at: %w", err)
			}
		}

		opts, err := cfg.TransformOptions()
		if err != nil {
			return err
		}
		mode, _ := cfg.VerifyMode()
		if strict {
			mode = contract.ModeStrict
		}
		site := celestial.Geodetic{Lat: cfg.Site.Lat, Lon: cfg.Site.Lon}
		site.Height = celestial.GeoidUndulation(site.Lat, site.Lon)
		tr := celestial.NewTransformer(provider.Converter(), provider, opts, site)

		out, err := tr.Transform(contract.NewContext(mode, nil), celestial.Position{R: r, Contract: c}, to,
			timescale.At(c.Scale(), at))
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%s\n", out.Contract)
		fmt.Fprintf(w, "x %.6f\ny %.6f\nz %.6f\n|r| %.6f\n", out.R.X, out.R.Y, out.R.Z, out.R.Norm())
		switch to {
		case contract.Topocentric:
			h := celestial.HorizontalFromENU(out.R)
			fmt.Fprintf(w, "azimuth %.4f°  elevation %.4f°  range %.3f m\n", h.Azimuth, h.Elevation, h.Range)
		case contract.ECEF:
			g := celestial.GeodeticFromECEF(out.R)
			fmt.Fprintf(w, "lat %.6f°  lon %.6f°  h %.3f m (ellipsoid)\n", g.Lat, g.Lon, g.Height)
		}
		return nil
	},
}

func init() {
	f := transformCmd.Flags()
	f.String("frame", "ECEF", "frame of the input position")
	f.String("scale", "UTC", "time scale of --at")
	f.String("datum", "", "height datum of the input, if any")
	f.String("to", "ECI", "target frame")
	f.String("at", "", "instant of the transform (RFC3339, default now)")
	f.Bool("strict", false, "fail on contract mismatches instead of warning")
	rootCmd.AddCommand(transformCmd)
}
