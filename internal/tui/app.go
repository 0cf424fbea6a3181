package tui

import (
	"context"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rs/zerolog"

	"github.com/cxd309/drive-engine/internal/vehicle"
)

// App ties a screen to the driver: keys go into the input source and every
// consumed frame is drawn on the next redraw.
type App struct {
	screen   tcell.Screen
	controls *Controls
	view     *View
	cfg      Config
	log      zerolog.Logger
}

// New creates an App on an initialised screen.
func New(screen tcell.Screen, src *vehicle.InputSource, cfg Config, log zerolog.Logger) *App {
	return &App{
		screen:   screen,
		controls: NewControls(src, cfg.HoldWindow),
		view:     NewView(cfg),
		cfg:      cfg,
		log:      log,
	}
}

// View returns the app's view.
func (a *App) View() *View { return a.view }

// Consume implements the driver's pose sink.
func (a *App) Consume(_ context.Context, f vehicle.Frame) error {
	a.view.Push(f)
	return nil
}

// Run handles input and redraws until the user quits or ctx is done.
func (a *App) Run(ctx context.Context) error {
	events := make(chan tcell.Event, 100)
	go func() {
		for {
			ev := a.screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	ticker := time.NewTicker(a.cfg.FrameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			switch ev := ev.(type) {
			case *tcell.EventKey:
				if a.controls.HandleKey(ev, time.Now()) {
					a.log.Info().Msg("quit requested")
					return nil
				}
			case *tcell.EventResize:
				a.screen.Sync()
			}
		case now := <-ticker.C:
			a.controls.Refresh(now)
			a.view.Draw(a.screen)
			a.screen.Show()
		}
	}
}
