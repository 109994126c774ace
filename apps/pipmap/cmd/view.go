package cmd

import (
	"context"
	"image/color"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"gioui.org/app"
	"gioui.org/font/gofont"
	"gioui.org/io/system"
	"gioui.org/layout"
	"gioui.org/op"
	"gioui.org/op/paint"
	"gioui.org/text"
	"gioui.org/unit"
	"gioui.org/widget/material"
	"github.com/spf13/cobra"

	"github.com/olablt/gio-pipmap/mapctl"
	"github.com/olablt/gio-pipmap/mapview"
	"github.com/olablt/gio-pipmap/render"
)

var worldMap bool

var viewCmd = &cobra.Command{
	Use:   "view",
	Short: "Open the map window",
	Long: `Open a window showing the map around the configured focus point.

Drag or use the arrow keys to pan, scroll or press +/- to zoom.

Examples:
  # Local map around the default focus point
  pipmap view

  # Wider world map, loaded from the last cached download
  LOAD_CACHED_MAP=true pipmap view --world`,
	RunE: runView,
}

func init() {
	viewCmd.Flags().BoolVar(&worldMap, "world", false, "show the world map (wider radius) instead of the local map")
}

func runView(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	radius, title := cfg.Map.LocalRadius, "Local Map"
	if worldMap {
		radius, title = cfg.Map.WorldRadius, "World Map"
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	serveMetrics(ctx, cfg.Metrics.Addr, logger)

	refresh := make(chan struct{}, 1)
	invalidate := func() {
		select {
		case refresh <- struct{}{}:
		default:
		}
	}

	ctl, err := newController(cfg, logger, mapctl.WithOnUpdate(invalidate))
	if err != nil {
		stop()
		return err
	}
	if !startSession(ctl, cfg, radius) {
		logger.Warn().Float64("radius", radius).Msg("map session not started")
	}

	var area atomic.Value
	area.Store(cfg.Geocode.DefaultName)
	go func() {
		area.Store(newResolver(cfg, logger).Resolve(ctx, cfg.Map.Focus()))
		invalidate()
	}()

	go func() {
		w := new(app.Window)
		w.Option(
			app.Title("PipMap - "+title),
			app.Size(unit.Dp(float32(cfg.Map.Display.Width)), unit.Dp(float32(cfg.Map.Display.Height+40))),
		)
		go func() {
			for {
				select {
				case <-refresh:
					w.Invalidate()
				case <-ctx.Done():
					w.Perform(system.ActionClose)
					return
				}
			}
		}()

		err := loop(w, ctl, title, &area)
		ctl.Close()
		stop()
		if err != nil {
			logger.Error().Err(err).Msg("window error")
			os.Exit(1)
		}
		os.Exit(0)
	}()
	app.Main()
	return nil
}

var headerColor = color.NRGBA{R: render.LabelColor.R, G: render.LabelColor.G, B: render.LabelColor.B, A: 255}

func loop(w *app.Window, ctl *mapctl.Controller, title string, area *atomic.Value) error {
	th := material.NewTheme()
	th.Shaper = text.NewShaper(text.WithCollection(gofont.Collection()))
	mv := mapview.New(ctl)

	var ops op.Ops
	for {
		switch e := w.Event().(type) {
		case app.DestroyEvent:
			return e.Err
		case app.FrameEvent:
			gtx := app.NewContext(&ops, e)
			paint.Fill(gtx.Ops, color.NRGBA{A: 255})

			layout.Flex{Axis: layout.Vertical}.Layout(gtx,
				layout.Rigid(func(gtx layout.Context) layout.Dimensions {
					return layout.UniformInset(unit.Dp(8)).Layout(gtx, func(gtx layout.Context) layout.Dimensions {
						lbl := material.H6(th, title+" - "+area.Load().(string))
						lbl.Color = headerColor
						return lbl.Layout(gtx)
					})
				}),
				layout.Rigid(mv.Layout),
			)
			e.Frame(gtx.Ops)
		}
	}
}
