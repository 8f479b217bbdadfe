package risonanza

import (
	"log/slog"
	"sync"
	"time"

	Rf "github.com/maroda/risonanza/fid"
	Ri "github.com/maroda/risonanza/instrument"
	Rp "github.com/maroda/risonanza/plugin"
	Rt "github.com/maroda/risonanza/types"
)

type PollSupervisor struct {
	View     *View
	Ticker   *time.Ticker
	StopChan chan struct{}
	WG       sync.WaitGroup
}

// NewPollSupervisor is a wrapper around the View that manages the refresh goroutine
// They are strongly coupled, one knows about the other
func (v *View) NewPollSupervisor() *PollSupervisor {
	ps := &PollSupervisor{
		View: v,
	}
	v.Supervisor = ps
	return ps
}

// Retarget swaps the data sources under the View.
// The supervisor is held stopped for the swap.
func (v *View) Retarget(sess *Ri.Session, archive Rp.OutputAdapter) {
	v.Supervisor.Stop()

	v.MU.Lock()
	v.Session = sess
	v.Archive = archive
	v.lastEvent = Rt.RunEvent{}
	v.frame = nil
	v.lastStamp = time.Time{}
	v.MU.Unlock()

	v.Supervisor.Start()
}

// Start the PollSupervisor
func (p *PollSupervisor) Start() {
	p.StopChan = make(chan struct{})
	p.Ticker = time.NewTicker(p.View.refreshOr())

	p.WG.Add(1)
	go func() {
		defer p.WG.Done()
		defer p.Ticker.Stop()

		for {
			select {
			case <-p.Ticker.C:
				p.View.RefreshData()
			case <-p.StopChan:
				return
			}
		}
	}()
}

// Stop the PollSupervisor
func (p *PollSupervisor) Stop() {
	if p.StopChan != nil {
		close(p.StopChan)
		p.WG.Wait()
	}
}

// Restart the PollSupervisor
func (p *PollSupervisor) Restart() {
	p.Stop()
	p.Start()
}

// RefreshData drains session progress and picks up the newest run.
// The error return is currently set to /nil/
// so that refresh misses are only logged, not fatal (and blocking)
func (v *View) RefreshData() error {
	start := time.Now()

	if v.Session != nil {
		v.drainEvents()
	}

	if f := v.latestRun(); f != nil {
		v.MU.Lock()
		known := v.lastStamp
		v.MU.Unlock()

		if !f.Timestamp.Equal(known) {
			v.adoptRun(f)
		}
	}

	v.Stats.RecRefreshTimer(time.Since(start).Seconds())

	if v.Screen != nil {
		v.UpdateScreen()
	}

	return nil
}

func (v *View) drainEvents() {
	for {
		select {
		case ev := <-v.Session.Events:
			v.MU.Lock()
			v.lastEvent = ev
			v.MU.Unlock()
		default:
			return
		}
	}
}

// latestRun finds the newest stored acquisition
func (v *View) latestRun() *Rf.FID1D {
	if v.Session != nil {
		return v.Session.LastFID()
	}
	if v.Archive != nil {
		now := time.Now()
		fids, err := v.Archive.QueryRange(now.Add(-24*time.Hour), now)
		if err != nil {
			// Only log the error, keep going otherwise
			slog.Error("Failed to query the archive", slog.Any("Error", err))
			return nil
		}
		if len(fids) == 0 {
			return nil
		}
		return fids[len(fids)-1]
	}
	return nil
}

// adoptRun renders the new run and feeds the optional output plugin
func (v *View) adoptRun(f *Rf.FID1D) {
	bars := headlessBars
	if v.Screen != nil {
		if w, _ := v.GetScreenSize(); w > screenGutter {
			bars = w - screenGutter
		}
	}

	frame, err := BuildSpectrumFrame(f, bars)
	if err != nil {
		slog.Error("Could not build spectrum frame", slog.Any("Error", err))
		return
	}

	v.MU.Lock()
	v.frame = frame
	v.lastStamp = f.Timestamp
	out := v.Output
	v.MU.Unlock()

	if out != nil {
		if err := out.WriteRun(f); err != nil {
			slog.Error("Output plugin failed",
				slog.String("type", out.Type()),
				slog.Any("Error", err))
		}
	}
}

// LastEvent is the most recent session progress report
func (v *View) LastEvent() Rt.RunEvent {
	v.MU.Lock()
	defer v.MU.Unlock()
	return v.lastEvent
}

// LastFrame is the rendered spectrum of the newest run, nil before the first
func (v *View) LastFrame() *SpectrumFrame {
	v.MU.Lock()
	defer v.MU.Unlock()
	return v.frame
}

func (v *View) refreshOr() time.Duration {
	if v.Refresh > 0 {
		return v.Refresh
	}
	return defaultRefresh
}
