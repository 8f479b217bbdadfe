package risonanza

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"gonum.org/v1/gonum/floats"

	Ri "github.com/maroda/risonanza/instrument"
	Ro "github.com/maroda/risonanza/obvy"
	Rp "github.com/maroda/risonanza/plugin"
	Rt "github.com/maroda/risonanza/types"
)

const (
	screenGutter   = 4
	defaultRefresh = 500 * time.Millisecond
	headlessBars   = 256
)

// View is updated by whatever the Session or the archive produces
type View struct {
	MU         sync.Mutex        // State locks to read data
	Session    *Ri.Session       // live acquisition state, nil when browsing an archive
	Archive    Rp.OutputAdapter  // queryable run store, nil when live only
	Output     Rp.OutputAdapter  // optional live output plugin, e.g. MIDI
	Screen     tcell.Screen      // the screen itself, nil in headless mode
	Stats      *Ro.StatsInternal // Internal status for prometheus
	Supervisor *PollSupervisor
	Refresh    time.Duration // redraw period, 500ms when zero
	SelectCol  int           // Selected spectrum column with MouseClick
	ShowFreq   bool          // Display the frequency readout
	server     *http.Server  // data and metrics server
	lastEvent  Rt.RunEvent
	frame      *SpectrumFrame
	lastStamp  time.Time
}

// GetTTY initializes the terminal for drawing
func GetTTY() (tcell.Screen, error) {
	defStyle := tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorPink)

	s, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if err := s.Init(); err != nil {
		return nil, err
	}
	s.SetStyle(defStyle)
	s.EnableMouse()
	s.Clear()

	return s, nil
}

var barRunes = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// RuneForLevel maps a fraction of full height to an eighth block rune
func RuneForLevel(frac float64) rune {
	if frac <= 0 {
		return ' '
	}
	if frac >= 1 {
		return '█'
	}
	return barRunes[int(frac*8)]
}

func styleForLevel(frac float64) tcell.Style {
	var color tcell.Color
	switch {
	case frac < 0.125:
		color = tcell.ColorSeaGreen
	case frac < 0.25:
		color = tcell.ColorMediumSeaGreen
	case frac < 0.375:
		color = tcell.ColorLightSeaGreen
	case frac < 0.5:
		color = tcell.ColorDarkTurquoise
	case frac < 0.625:
		color = tcell.ColorMediumTurquoise
	case frac < 0.75:
		color = tcell.ColorTurquoise
	case frac < 0.875:
		color = tcell.ColorLightGreen
	default:
		color = tcell.ColorAquaMarine
	}
	return tcell.StyleDefault.Foreground(color)
}

// DrawSpectrumBars renders magnitudes as vertical bars filling the box
// (x1, y1) to (x2, y2), the tallest point reaching the full height
func (v *View) DrawSpectrumBars(x1, y1, x2, y2 int, points []float64) {
	width := x2 - x1
	height := y2 - y1
	if width <= 0 || height <= 0 || len(points) == 0 {
		return
	}

	top := floats.Max(points)
	if top <= 0 {
		top = 1
	}

	for col := 0; col < width && col < len(points); col++ {
		frac := points[col] / top
		cells := frac * float64(height)
		full := int(cells)
		style := styleForLevel(frac)

		for row := 0; row < full; row++ {
			v.Screen.SetContent(x1+col, y2-1-row, '█', nil, style)
		}
		if r := RuneForLevel(cells - float64(full)); r != ' ' && full < height {
			v.Screen.SetContent(x1+col, y2-1-full, r, nil, style)
		}
	}
}

// DrawRunMarker places a state colored dot along the top border,
// one column per run of the session
func (v *View) DrawRunMarker(ev Rt.RunEvent) {
	var color tcell.Color
	switch ev.State {
	case Rt.RunActive:
		color = tcell.ColorYellow
	case Rt.RunDone:
		color = tcell.ColorGreen
	case Rt.RunFailed:
		color = tcell.ColorRed
	default:
		return
	}
	style := tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(color)
	v.Screen.SetContent(1+ev.Seq, 1, '●', nil, style)
}

// DrawText displays the text string at the given (x1, y1) with box size (x2, y2)
func (v *View) DrawText(x1, y1, x2, y2 int, text string) {
	row := y1
	col := x1
	style := tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorLightSteelBlue)
	for _, r := range text {
		v.Screen.SetContent(col, row, r, nil, style)
		col++
		if col >= x2 {
			row++
			col = x1
		}
		if row > y2 {
			break
		}
	}
}

// DrawViewBorder displays the outline of the View
func (v *View) DrawViewBorder(width, height int) {
	hvStyle := tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorPink)
	v.Screen.SetContent(0, 0, tcell.RuneULCorner, nil, hvStyle)
	for i := 1; i < width; i++ {
		v.Screen.SetContent(i, 0, tcell.RuneHLine, nil, hvStyle)
	}
	v.Screen.SetContent(width, 0, tcell.RuneURCorner, nil, hvStyle)

	for i := 1; i < height; i++ {
		v.Screen.SetContent(0, i, tcell.RuneVLine, nil, hvStyle)
	}

	v.Screen.SetContent(0, height, tcell.RuneLLCorner, nil, hvStyle)

	for i := 1; i < height; i++ {
		v.Screen.SetContent(width, i, tcell.RuneVLine, nil, hvStyle)
	}

	v.Screen.SetContent(width, height, tcell.RuneLRCorner, nil, hvStyle)

	for i := 1; i < width; i++ {
		v.Screen.SetContent(i, height, tcell.RuneHLine, nil, hvStyle)
	}
}

// DrawRunView draws the acquisition console itself with tcell
func (v *View) DrawRunView() {
	width, height := v.GetScreenSize()

	// Obtain a lock and grab needed display data
	v.MU.Lock()
	ev := v.lastEvent
	frame := v.frame
	showFreq := v.ShowFreq
	selectCol := v.SelectCol
	v.MU.Unlock()

	v.DrawViewBorder(width-2, height-1)

	if frame != nil {
		head := fmt.Sprintf("%s | %s | %s", frame.Sample, frame.Label, frame.Pulse)
		v.DrawText(1, 1, width-2, 2, head)
		v.DrawText(1, 2, width-2, 3, frame.Timestamp.Format(time.RFC3339))
		v.DrawSpectrumBars(1, screenGutter, width-2, height-2, frame.Points)
	} else {
		v.DrawText(1, 1, width-2, 2, "waiting for the first run...")
	}

	if ev.Total > 0 {
		prog := fmt.Sprintf("run %d/%d %s %s", ev.Seq, ev.Total, ev.State, ev.Message)
		v.DrawText(1, 3, width-2, 4, prog)
		v.DrawRunMarker(ev)
	}

	// A MouseClick has happened on the graph, show the frequency there
	if showFreq && frame != nil && selectCol >= 0 && selectCol < len(frame.Points) {
		hz := frame.FreqLow + float64(selectCol)*frame.FreqStep
		readout := fmt.Sprintf("... %.1f Hz  |S| %.3g ...", hz, frame.Points[selectCol])
		v.DrawText(4, height-2, width-2, height-2, readout)
	}

	v.DrawText(1, height-1, width, height+10, "/click/ for frequency | /ESC/ to quit")
	v.DrawText(width-11, height-1, width, height+10, "RISONANZA")
}

// Exit cleanly
func (v *View) exit() {
	if v.Supervisor != nil {
		v.Supervisor.Stop()
	}
	v.MU.Lock()
	defer v.MU.Unlock()
	v.Screen.Fini()
	os.Exit(0)
}

// Running Loop to handle events
func (v *View) handleKeyBoardEvent() {
	for {
		ev := v.Screen.PollEvent()
		switch ev := ev.(type) {
		case *tcell.EventResize:
			v.ResizeScreen()
		case *tcell.EventKey:
			// Catch quit and exit
			if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC {
				v.exit()
			}

			// Redraw from scratch
			if ev.Key() == tcell.KeyCtrlL {
				v.Screen.Sync()
			}

		case *tcell.EventMouse:
			// Button1 is Left Mouse Button
			if ev.Buttons() == tcell.Button1 {
				v.HandleMouseClick(ev.Position())
			}
		}
	}
}

// HandleMouseClick selects the spectrum column under the pointer
func (v *View) HandleMouseClick(x, y int) {
	width, height := v.GetScreenSize()

	// Lock display for updates
	v.MU.Lock()
	defer v.MU.Unlock()

	// Assume there is no selection so the last one is cleared.
	v.ShowFreq = false

	// Clicks inside the bar region select, anywhere else clears
	if y >= screenGutter && y <= height-2 && x >= 1 && x <= width-2 {
		v.SelectCol = x - 1
		v.ShowFreq = true
	}
}

// GetScreenSize provides the terminal size for drawing
func (v *View) GetScreenSize() (int, int) {
	width, height := v.Screen.Size()
	return width, height
}

// ResizeScreen resizes the console after terminal changes
func (v *View) ResizeScreen() {
	v.Screen.Sync()
	v.UpdateScreen()
}

func (v *View) UpdateScreen() {
	v.Screen.Clear()
	v.DrawRunView()
	v.Screen.Show()
}

// RespWriter is a wrapper with StatsMiddleware, used for Prometheus
type RespWriter struct {
	http.ResponseWriter
	Status int
}

// WriteHeader is a helper for StatsMiddleware, used for Prometheus
func (w *RespWriter) WriteHeader(status int) {
	w.Status = status
	w.ResponseWriter.WriteHeader(status)
}

// Write is a helper for StatsMiddleware, used for Prometheus
func (w *RespWriter) Write(b []byte) (int, error) {
	return w.ResponseWriter.Write(b)
}

func (v *View) StatsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wrapped := &RespWriter{
			ResponseWriter: w,
			Status:         200,
		}
		next.ServeHTTP(wrapped, r)

		v.Stats.RecWWW(strconv.Itoa(wrapped.Status), r.Method)
	})
}

// NewView creates the tcell screen that displays the run console.
// A live Session shares its prometheus registry with the display.
func NewView(sess *Ri.Session, archive Rp.OutputAdapter) (*View, error) {
	screen, err := GetTTY()
	if err != nil {
		slog.Error("Could not get new screen", slog.Any("Error", err))
		return nil, err
	}

	stats := Ro.NewStatsInternal()
	if sess != nil {
		stats = sess.Stats
	}

	view := &View{
		Session: sess,
		Archive: archive,
		Screen:  screen,
		Stats:   stats,
	}

	view.UpdateScreen()

	return view, nil
}

// StartViewer is called by main to run the full terminal console.
// This also starts up the /metrics endpoint that is populated by prometheus.
func StartViewer(cfg *Ri.Config, sess *Ri.Session, archive Rp.OutputAdapter) error {
	view, err := NewView(sess, archive)
	if err != nil {
		slog.Error("Could not start the run console", slog.Any("Error", err))
		return err
	}
	view.Refresh = time.Duration(cfg.Display.RefreshMS) * time.Millisecond

	if cfg.Display.MIDIPort >= 0 {
		// Sonification is optional, the console works without it
		InitMIDIOutput(view, cfg.Display.MIDIPort)
	}

	// Server for data and stats endpoints
	view.server = &http.Server{
		Addr:    cfg.Display.Addr,
		Handler: otelhttp.NewHandler(view.SetupMux(), "risonanza-display"),
	}

	sup := view.NewPollSupervisor()
	sup.Start()

	// Run data endpoint
	go func() {
		slog.Info("Starting risonanza data server...", slog.String("Addr", cfg.Display.Addr))
		if err := view.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Could not start data server", slog.Any("Error", err))
		}
	}()

	view.handleKeyBoardEvent()

	return nil
}

// StartWebNoTUI serves data and metrics without a terminal,
// blocking until the context is cancelled
func StartWebNoTUI(ctx context.Context, cfg *Ri.Config, sess *Ri.Session, archive Rp.OutputAdapter) error {
	stats := Ro.NewStatsInternal()
	if sess != nil {
		stats = sess.Stats
	}

	// Create View without tcell screen
	view := &View{
		Session: sess,
		Archive: archive,
		Stats:   stats,
		Refresh: time.Duration(cfg.Display.RefreshMS) * time.Millisecond,
	}

	if cfg.Display.MIDIPort >= 0 {
		InitMIDIOutput(view, cfg.Display.MIDIPort)
	}

	// Server for data and stats endpoints
	view.server = &http.Server{
		Addr:    cfg.Display.Addr,
		Handler: otelhttp.NewHandler(view.SetupMux(), "risonanza-display"),
	}

	sup := view.NewPollSupervisor()
	sup.Start()
	defer sup.Stop()

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := view.server.Shutdown(shutCtx); err != nil {
			slog.Error("Data server shutdown", slog.Any("Error", err))
		}
	}()

	// Run data endpoint (blocks)
	slog.Info("Starting risonanza data server...", slog.String("Addr", cfg.Display.Addr))
	if err := view.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Could not start data server", slog.Any("Error", err))
		return err
	}

	return nil
}
