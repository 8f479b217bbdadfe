package plugin

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	Rf "github.com/maroda/risonanza/fid"
)

// FileOutput writes each finished run as a standalone .fid file in
// Dir. Files are never overwritten, repeats of the same name get a
// counter suffix from the codec.
type FileOutput struct {
	Dir string
}

func NewFileOutput(dir string) (*FileOutput, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		slog.Error("Could not create FID directory", slog.String("dir", dir), slog.Any("error", err))
		return nil, fmt.Errorf("creating FID directory: %w", err)
	}
	return &FileOutput{Dir: dir}, nil
}

func (fo *FileOutput) WriteRun(f *Rf.FID1D) error {
	path, err := Rf.WriteFile(filepath.Join(fo.Dir, runFileName(f)), f)
	if err != nil {
		return fmt.Errorf("writing FID file: %w", err)
	}

	slog.Debug("Run written", slog.String("path", path))
	return nil
}

func (fo *FileOutput) WriteBatch(fids []*Rf.FID1D) error {
	for _, f := range fids {
		if err := fo.WriteRun(f); err != nil {
			return err
		}
	}
	return nil
}

func (fo *FileOutput) QueryRange(start, end time.Time) ([]*Rf.FID1D, error) {
	return nil, fmt.Errorf("fidfile: %w", ErrQueryUnsupported)
}

func (fo *FileOutput) Flush() error { return nil }

func (fo *FileOutput) Close() error { return nil }

func (fo *FileOutput) Type() string { return "fidfile" }

// runFileName builds "20060102-150405-sample-label-pulse" from the
// run metadata. Path separators in metadata become underscores.
func runFileName(f *Rf.FID1D) string {
	parts := []string{
		f.Timestamp.Format("20060102-150405"),
		f.Sample,
		f.Label,
		f.Pulse,
	}
	for i, p := range parts {
		p = strings.ReplaceAll(p, "/", "_")
		p = strings.ReplaceAll(p, string(os.PathSeparator), "_")
		parts[i] = strings.TrimSpace(p)
	}
	return strings.Join(parts, "-")
}
