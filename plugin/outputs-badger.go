package plugin

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	Rf "github.com/maroda/risonanza/fid"
)

type BadgerOutput struct {
	MU        sync.Mutex
	DB        *badger.DB
	BatchSize int
	Buffer    []*Rf.FID1D
}

func NewBadgerOutput(path string, batchSize int) (*BadgerOutput, error) {
	opts := badger.DefaultOptions(path).
		WithCompression(options.ZSTD).
		WithNumVersionsToKeep(1)

	db, err := badger.Open(opts)
	if err != nil {
		slog.Error("BadgerOutput failed to open archive", slog.Any("error", err))
		return nil, fmt.Errorf("archive error: %w", err)
	}

	slog.Info("BadgerOutput opened",
		slog.String("path", path),
		slog.Int("batchSize", batchSize))

	return &BadgerOutput{
		DB:        db,
		BatchSize: batchSize,
		Buffer:    make([]*Rf.FID1D, 0, batchSize),
	}, nil
}

// NewBadgerOutputInMemory holds the archive in memory only,
// for tests and throwaway sessions.
func NewBadgerOutputInMemory(batchSize int) (*BadgerOutput, error) {
	opts := badger.DefaultOptions("").
		WithInMemory(true).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("archive error: %w", err)
	}

	return &BadgerOutput{
		DB:        db,
		BatchSize: batchSize,
		Buffer:    make([]*Rf.FID1D, 0, batchSize),
	}, nil
}

// WriteRun queues up a batch of runs,
// when batchsize is reached, it calls Flush()
// which calls WriteBatch() with the new batch
func (bo *BadgerOutput) WriteRun(f *Rf.FID1D) error {
	bo.MU.Lock()
	defer bo.MU.Unlock()

	bo.Buffer = append(bo.Buffer, f)
	if len(bo.Buffer) >= bo.BatchSize {
		return bo.flushLocked() // private Flush that does not lock
	}
	return nil
}

// WriteBatch performs the key/value creation to be stored
// and actually calls BadgerDB to write the data
func (bo *BadgerOutput) WriteBatch(fids []*Rf.FID1D) error {
	wb := bo.DB.NewWriteBatch()
	defer wb.Cancel()

	for _, f := range fids {
		k := RunKey(f)
		v, err := RunEncode(f)
		if err != nil {
			slog.Error("BadgerOutput failed to encode run",
				slog.Any("error", err),
				slog.Time("runTime", f.Timestamp),
				slog.String("label", f.Label))
			return fmt.Errorf("run encode error: %w", err)
		}
		if err := wb.Set(k, v); err != nil {
			slog.Error("BadgerOutput failed to set key in batch",
				slog.Any("error", err),
				slog.Time("runTime", f.Timestamp),
				slog.String("label", f.Label))
			return fmt.Errorf("write batch error: %w", err)
		}
	}

	if err := wb.Flush(); err != nil {
		slog.Error("BadgerOutput failed to flush batch", slog.Any("error", err))
		return fmt.Errorf("batch flush error: %w", err)
	}

	return nil
}

// Flush is the public method that blocks,
// it sends data to WriteBatch and then clears the buffer
func (bo *BadgerOutput) Flush() error {
	bo.MU.Lock()
	defer bo.MU.Unlock()

	if len(bo.Buffer) == 0 {
		return nil
	}

	err := bo.WriteBatch(bo.Buffer) // Delegate to WriteBatch
	bo.Buffer = bo.Buffer[:0]       // Clear but keep capacity
	return err
}

// flushLocked mimics Flush without locking, called by WriteRun
func (bo *BadgerOutput) flushLocked() error {
	err := bo.WriteBatch(bo.Buffer) // Delegate to WriteBatch
	bo.Buffer = bo.Buffer[:0]       // Clear but keep capacity
	return err
}

// Close returns a Flush error but still attempts to close
func (bo *BadgerOutput) Close() error {
	slog.Info("BadgerOutput closing, flushing buffer",
		slog.Int("bufferSize", len(bo.Buffer)))
	flushErr := bo.Flush()
	closeErr := bo.DB.Close()

	if flushErr != nil {
		slog.Error("BadgerOutput failed to flush on close", slog.Any("error", flushErr))
		return fmt.Errorf("flush failed, close may have failed: %v", flushErr)
	}

	if closeErr != nil {
		slog.Error("BadgerOutput failed to close archive", slog.Any("error", closeErr))
		return fmt.Errorf("close failed: %v", closeErr)
	}

	slog.Info("BadgerOutput closed successfully")
	return nil
}

func (bo *BadgerOutput) Type() string { return "BadgerDB" }

// RunKey creates a composite key
// timestamp + label, so a range scan comes back in time order
func RunKey(f *Rf.FID1D) []byte {
	label := f.Label
	if len(label) > Rf.MaxLabelLen {
		label = label[:Rf.MaxLabelLen]
	}
	key := make([]byte, 8+len(label))

	// Using positive BigEndian integer to convert timestamp
	// so keys can be sorted chronologically by BadgerDB
	binary.BigEndian.PutUint64(key[0:8], uint64(f.Timestamp.UnixNano()))
	copy(key[8:], label)

	return key
}

// RunEncode serializes the run for data storage. Gob handles the
// complex sample slice natively.
func RunEncode(f *Rf.FID1D) ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RunDecode deserializes the run data
func RunDecode(data []byte) (*Rf.FID1D, error) {
	var f Rf.FID1D
	buf := bytes.NewBuffer(data)
	dec := gob.NewDecoder(buf)
	err := dec.Decode(&f)
	return &f, err
}

// QueryRange retrieves runs within a time range
func (bo *BadgerOutput) QueryRange(start, end time.Time) ([]*Rf.FID1D, error) {
	var fids []*Rf.FID1D

	// db.View() callback
	// BadgerDB provides a transaction in which to get item.Value()
	err := bo.DB.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()

			// item.Value() callback
			// BadgerDB passes bytes to the anon func
			err := item.Value(func(val []byte) error {
				f, err := RunDecode(val)
				if err != nil {
					slog.Error("BadgerOutput failed to decode run", slog.Any("error", err))
					return fmt.Errorf("run decode error: %w", err)
				}

				// Filter by time range
				if f.Timestamp.After(start) && f.Timestamp.Before(end) {
					fids = append(fids, f)
				}

				return nil
			})
			if err != nil {
				slog.Error("BadgerOutput callback failure", slog.Any("error", err))
				return fmt.Errorf("item data error: %w", err)
			}
		}
		return nil
	})

	slog.Info("BadgerOutput QueryRange successful", slog.Int("count", len(fids)))

	return fids, err
}
