package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"geojournal/core/coords"

	"github.com/spf13/cobra"
)

var coordsCmd = &cobra.Command{
	Use:   "coords",
	Short: "Parse and format coordinates",
}

var coordsParseCmd = &cobra.Command{
	Use:   "parse <text>",
	Short: "Parse a coordinate pair such as \"[51.50851, -0.12572]\"",
	Args:  cobra.MinimumNArgs(1),

	// negative numbers are arguments, not flags
	DisableFlagParsing: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := coords.Parse(strings.Join(args, " "))
		if err != nil {
			return fmt.Errorf("%s: %w", coords.KindOf(err), err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "latitude:  %v\nlongitude: %v\nformatted: %s\n", c.Latitude, c.Longitude, c)
		return nil
	},
}

var coordsFormatCmd = &cobra.Command{
	Use:   "format <lat> <lon>",
	Short: "Format a latitude and longitude to five decimals",
	Args:  cobra.ExactArgs(2),

	DisableFlagParsing: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		lat, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("latitude %q is not a number", args[0])
		}
		lon, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("longitude %q is not a number", args[1])
		}
		c, err := coords.New(lat, lon)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), c)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(coordsCmd)
	coordsCmd.AddCommand(coordsParseCmd, coordsFormatCmd)
}
