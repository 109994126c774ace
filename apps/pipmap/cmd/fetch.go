package cmd

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	fetchWorld  bool
	fetchCached bool
	fetchOut    string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Load the map without a window and save it as PNG",
	Long: `Run a complete map load session headless and write the final surface
to a PNG file. A successful download also refreshes the map cache used by
LOAD_CACHED_MAP.

Examples:
  # Download the local map and save it
  pipmap fetch --out local.png

  # Render the world map from the cache
  pipmap fetch --world --cached --out world.png`,
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().BoolVar(&fetchWorld, "world", false, "use the world map radius")
	fetchCmd.Flags().BoolVar(&fetchCached, "cached", false, "render the cached payload instead of downloading")
	fetchCmd.Flags().StringVarP(&fetchOut, "out", "o", "map.png", "output PNG file")
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if fetchCached {
		cfg.Map.LoadCached = true
	}
	radius := cfg.Map.LocalRadius
	if fetchWorld {
		radius = cfg.Map.WorldRadius
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	serveMetrics(ctx, cfg.Metrics.Addr, logger)

	ctl, err := newController(cfg, logger)
	if err != nil {
		return err
	}
	if !startSession(ctl, cfg, radius) {
		return fmt.Errorf("could not start map session for radius %g", radius)
	}

	done := make(chan struct{})
	go func() {
		ctl.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
	ctl.Close()

	st := ctl.State()
	surface := ctl.Surface()
	if surface == nil {
		if st.Err != nil {
			return fmt.Errorf("load map: %w", st.Err)
		}
		return fmt.Errorf("load map: %w", context.Canceled)
	}
	if st.Err != nil {
		logger.Warn().Err(st.Err).Float64("radius", st.CurrentRadius).Msg("saving partial map")
	}

	if err := writePNG(fetchOut, surface); err != nil {
		return err
	}
	logger.Info().
		Str("file", fetchOut).
		Stringer("stage", st.Stage).
		Float64("radius", st.CurrentRadius).
		Msg("map saved")
	fmt.Fprintln(cmd.OutOrStdout(), fetchOut)
	return nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode png: %w", err)
	}
	return f.Close()
}
