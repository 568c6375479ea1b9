package tui

import (
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"linesign/config"
	"linesign/poller"
)

// App is the full-screen signage display. It shows the current counters
// large enough for the floor and flags stale readings instead of blanking
// them.
type App struct {
	app    *tview.Application
	line   string
	poller *poller.Poller

	counters *tview.TextView
	product  *tview.TextView
	status   *tview.TextView

	stopChan chan struct{}
	onQuit   func()
}

// NewApp creates the signage application.
func NewApp(cfg config.UIConfig, line string, p *poller.Poller) *App {
	a := &App{
		app:      tview.NewApplication(),
		line:     line,
		poller:   p,
		stopChan: make(chan struct{}),
	}
	a.setupUI(cfg)
	return a
}

// SetOnQuit registers a callback fired when the operator quits the view.
func (a *App) SetOnQuit(fn func()) {
	a.onQuit = fn
}

func (a *App) setupUI(cfg config.UIConfig) {
	a.counters = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	a.counters.SetBorder(true).SetTitle(fmt.Sprintf(" Line %s ", a.line))

	a.product = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	a.product.SetBorder(true).SetTitle(" Product ")

	a.status = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)

	if cfg.ASCIIMode {
		tview.Borders.Horizontal = '-'
		tview.Borders.Vertical = '|'
		tview.Borders.TopLeft = '+'
		tview.Borders.TopRight = '+'
		tview.Borders.BottomLeft = '+'
		tview.Borders.BottomRight = '+'
	}

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.counters, 0, 3, false).
		AddItem(a.product, 0, 2, false).
		AddItem(a.status, 1, 0, false)

	a.app.SetRoot(flex, true)
	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Rune() == 'q' || event.Key() == tcell.KeyEscape || event.Key() == tcell.KeyCtrlC {
			a.Stop()
			if a.onQuit != nil {
				a.onQuit()
			}
			return nil
		}
		return event
	})
}

// Run starts the display loop and blocks until Stop.
func (a *App) Run() error {
	a.poller.OnUpdate(func(u poller.Update) {
		a.app.QueueUpdateDraw(func() {
			a.render(u)
		})
	})

	if u, ok := a.poller.Last(); ok {
		a.render(u)
	}

	go a.refreshClock()
	return a.app.Run()
}

// Stop halts the display.
func (a *App) Stop() {
	select {
	case <-a.stopChan:
	default:
		close(a.stopChan)
	}
	a.app.Stop()
}

// refreshClock repaints the status line once a second so the last-capture
// age stays current between polls.
func (a *App) refreshClock() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-a.stopChan:
			return
		case <-ticker.C:
			a.app.QueueUpdateDraw(func() {
				if u, ok := a.poller.Last(); ok {
					a.renderStatus(u)
				}
			})
		}
	}
}

func (a *App) render(u poller.Update) {
	snap := u.Snapshot

	counterColor := "white"
	if u.Stale {
		counterColor = "yellow"
	}
	a.counters.SetText(fmt.Sprintf(
		"\n[%s]Plan      %6d\nActual    %6d\nRemaining %6d[-]",
		counterColor, snap.Plan, snap.Actual, snap.Remaining()))

	if u.ProductKnown {
		a.product.SetText(fmt.Sprintf(
			"\n[white]%s[-]\n\n[aqua]Pallets left: %d    Minutes left: %.0f[-]",
			u.Product.Name, u.RemainPallets, u.RemainMinutes))
	} else {
		a.product.SetText(fmt.Sprintf(
			"\n[yellow]Unknown product (code %d)[-]", snap.ProductType))
	}

	a.renderStatus(u)
}

func (a *App) renderStatus(u poller.Update) {
	st := a.poller.Status()

	indicator := StatusIndicatorLive
	label := "live"
	switch {
	case st.Mode == "sim":
		indicator = StatusIndicatorSim
		label = "simulated"
	case u.Stale:
		indicator = StatusIndicatorStale
		label = "STALE"
	case u.Err != nil:
		indicator = StatusIndicatorDown
		label = "no data"
	}

	age := ""
	if !u.Snapshot.CapturedAt.IsZero() {
		age = fmt.Sprintf("  captured %s ago", time.Since(u.Snapshot.CapturedAt).Round(time.Second))
	}
	a.status.SetText(fmt.Sprintf(" %s %s%s   [gray](q to quit)[-]", indicator, label, age))
}
