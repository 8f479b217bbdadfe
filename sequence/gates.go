package risonanza

import "sort"

// Window is a span of time in microseconds.
type Window struct {
	Start float64
	End   float64
}

// PulseWindows derives the maximal spans of nonzero transmit power
// from the change points. A power level of zero is assumed before
// the first event, so a pulse starting there is still detected.
// Power changes inside a pulse, such as a phase flip, do not split
// the window.
func (s Sequence) PulseWindows() []Window {
	var (
		ws    []Window
		start float64
		open  bool
	)
	prev := complex128(0)
	for i, p := range s.txPowers {
		if prev == 0 && p != 0 {
			start = s.txTimes[i]
			open = true
		}
		if prev != 0 && p == 0 && open {
			ws = append(ws, Window{Start: start, End: s.txTimes[i]})
			open = false
		}
		prev = p
	}
	return ws
}

// RXWindows pairs up the receive boundaries. The receiver is on
// inside each window and off between them.
func (s Sequence) RXWindows() []Window {
	ws := make([]Window, 0, len(s.rxTimes)/2)
	for i := 0; i+1 < len(s.rxTimes); i += 2 {
		ws = append(ws, Window{Start: s.rxTimes[i], End: s.rxTimes[i+1]})
	}
	return ws
}

// TXGates is the transmit gate timeline: every pulse window padded
// by GuardUS on each side, with windows then closer than GuardUS
// collapsed into one so the gate never chatters between pulses.
func (s Sequence) TXGates() []Window {
	pulses := s.PulseWindows()
	padded := make([]Window, len(pulses))
	for i, p := range pulses {
		padded[i] = Window{Start: p.Start - GuardUS, End: p.End + GuardUS}
	}
	return MergeWindows(padded, GuardUS)
}

// MergeWindows sorts windows by start and collapses every pair whose
// gap is not larger than guardUS. Each input window must have
// Start < End. The result is ordered with every remaining gap
// strictly larger than guardUS.
func MergeWindows(ws []Window, guardUS float64) []Window {
	if len(ws) == 0 {
		return nil
	}
	sorted := append([]Window(nil), ws...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	merged := sorted[:1]
	for _, w := range sorted[1:] {
		last := &merged[len(merged)-1]
		if w.Start <= last.End+guardUS {
			if w.End > last.End {
				last.End = w.End
			}
			continue
		}
		merged = append(merged, w)
	}
	return merged
}
