package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/olablt/gio-pipmap/geo"
)

var locateCmd = &cobra.Command{
	Use:   "locate [latitude longitude]",
	Short: "Print the area name of a point",
	Long: `Resolve a point to a place name with Nominatim and print it. Without
arguments the configured focus point is used. The answer is cached in
the location cache file; lookups that fail print the default name.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 0 && len(args) != 2 {
			return fmt.Errorf("expected no arguments or latitude and longitude, got %d", len(args))
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		point := cfg.Map.Focus()
		if len(args) == 2 {
			lat, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("latitude: %w", err)
			}
			lng, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("longitude: %w", err)
			}
			point = geo.LatLng{Lat: lat, Lng: lng}
		}

		name := newResolver(cfg, logger).Resolve(cmd.Context(), point)
		fmt.Fprintln(cmd.OutOrStdout(), name)
		return nil
	},
}
