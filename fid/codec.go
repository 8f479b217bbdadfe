package fid

/*

	The .fid file format.

	A fixed ASCII header, every field left justified and space
	padded so offsets never move:

	    bytes    field
	    0-5      magic "RSNF1D"
	    6-7      format version
	    8-19     sample count
	    20-43    spectral width, Hz
	    44-67    carrier frequency, Hz
	    68-91    observation frequency, Hz
	    92-99    label
	    100-131  spectrometer
	    132-191  sample
	    192-351  pulse description
	    352-363  unix timestamp, seconds UTC

	The samples follow as little endian float32 pairs, real then
	imaginary.

*/

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	Magic   = "RSNF1D"
	Version = "1"

	headerSize = 364

	// maxSamples keeps a corrupt header from asking for gigabytes.
	maxSamples = 1 << 26
)

var (
	ErrBadMagic   = errors.New("not a risonanza FID file")
	ErrBadVersion = errors.New("unsupported FID file version")
)

// Write encodes f onto w.
func Write(w io.Writer, f *FID1D) error {
	if len(f.Data) == 0 {
		return ErrNoData
	}
	if len(f.Data) > maxSamples {
		return fmt.Errorf("%d samples exceed the format limit of %d", len(f.Data), maxSamples)
	}
	if err := checkMeta(f.Label, f.Sample, f.Pulse, f.Spectrometer); err != nil {
		return err
	}

	header := fmt.Sprintf("%s%-2s%-12d%-24s%-24s%-24s%-8s%-32s%-60s%-160s%-12d",
		Magic, Version, len(f.Data),
		formatFreq(f.SpectralWidth), formatFreq(f.CarrierFreq), formatFreq(f.ObservationFreq),
		f.Label, f.Spectrometer, f.Sample, f.Pulse,
		f.Timestamp.UTC().Unix())
	if len(header) != headerSize {
		return fmt.Errorf("header came out %d bytes, want %d", len(header), headerSize)
	}
	if _, err := io.WriteString(w, header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	samples := make([]float32, 0, len(f.Data)*2)
	for _, c := range f.Data {
		samples = append(samples, float32(real(c)), float32(imag(c)))
	}
	if err := binary.Write(w, binary.LittleEndian, samples); err != nil {
		return fmt.Errorf("writing samples: %w", err)
	}
	return nil
}

// Read decodes one record from r.
func Read(r io.Reader) (*FID1D, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	if string(header[:6]) != Magic {
		return nil, fmt.Errorf("%w: got magic %q", ErrBadMagic, header[:6])
	}
	if v := field(header, 6, 2); v != Version {
		return nil, fmt.Errorf("%w: %q", ErrBadVersion, v)
	}

	count, err := strconv.Atoi(field(header, 8, 12))
	if err != nil {
		return nil, fmt.Errorf("parsing sample count: %w", err)
	}
	if count <= 0 || count > maxSamples {
		return nil, fmt.Errorf("sample count %d out of range", count)
	}
	sw, err := parseFreq(header, 20, "spectral width")
	if err != nil {
		return nil, err
	}
	carrier, err := parseFreq(header, 44, "carrier frequency")
	if err != nil {
		return nil, err
	}
	obs, err := parseFreq(header, 68, "observation frequency")
	if err != nil {
		return nil, err
	}
	unix, err := strconv.ParseInt(field(header, 352, 12), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing timestamp: %w", err)
	}

	samples := make([]float32, count*2)
	if err := binary.Read(r, binary.LittleEndian, samples); err != nil {
		return nil, fmt.Errorf("reading %d samples: %w", count, err)
	}
	data := make([]complex128, count)
	for i := range data {
		data[i] = complex(float64(samples[2*i]), float64(samples[2*i+1]))
	}

	return NewFID1D(data, sw, carrier, obs,
		field(header, 92, 8),
		field(header, 132, 60),
		field(header, 192, 160),
		field(header, 100, 32),
		time.Unix(unix, 0).UTC())
}

func formatFreq(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func parseFreq(header []byte, off int, name string) (float64, error) {
	v, err := strconv.ParseFloat(field(header, off, freqWidth), 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", name, err)
	}
	return v, nil
}

const freqWidth = 24

func field(header []byte, off, width int) string {
	return strings.TrimRight(string(header[off:off+width]), " ")
}

// WriteFile writes f under path, appending the .fid extension when
// missing and never overwriting: an existing file gets a numeric
// suffix instead. It returns the path actually written.
func WriteFile(path string, f *FID1D) (string, error) {
	if filepath.Ext(path) != ".fid" {
		path += ".fid"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	stem := strings.TrimSuffix(path, ".fid")
	candidate := path
	for i := 1; ; i++ {
		w, err := os.OpenFile(candidate, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			werr := Write(w, f)
			cerr := w.Close()
			if werr != nil {
				return "", werr
			}
			if cerr != nil {
				return "", fmt.Errorf("closing %s: %w", candidate, cerr)
			}
			return candidate, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("creating %s: %w", candidate, err)
		}
		candidate = fmt.Sprintf("%s%d.fid", stem, i)
	}
}

// ReadFile loads one .fid file.
func ReadFile(path string) (*FID1D, error) {
	r, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	f, err := Read(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}
