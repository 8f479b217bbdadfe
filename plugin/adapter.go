package plugin

/*

	The Adapter sits aside /risonanza/
	Contains core interfaces for Plugin

*/

import (
	"errors"
	"time"

	Rf "github.com/maroda/risonanza/fid"
)

// ErrQueryUnsupported is returned by QueryRange on adapters that only
// write, like files on disk or a MIDI port.
var ErrQueryUnsupported = errors.New("output adapter cannot be queried")

// SampleTransformer mutates the raw complex samples of a run before
// they are stored, for example phase correction or baseline removal.
// Transformers run in registration order and each sees the output of
// the previous one. A Type that is descriptive of what it does.
type SampleTransformer interface {
	Transform(data []complex128) ([]complex128, error)
	Type() string // Unique ID for the transformer
}

// OutputAdapter can be used to define a place for finished runs to
// go, one by one or in batches if supported by the output type.
type OutputAdapter interface {
	WriteRun(f *Rf.FID1D) error                           // Write a single finished run
	WriteBatch(fids []*Rf.FID1D) error                    // Write batches of runs
	QueryRange(start, end time.Time) ([]*Rf.FID1D, error) // Time range query tool
	Flush() error                                         // Flush any buffered data
	Close() error                                         // Close the adapter and release resources
	Type() string                                         // ID for output
}
