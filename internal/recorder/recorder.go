// Package recorder writes sampled frames to CSV, one row per entity per frame.
package recorder

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/signalsfoundry/star-system-simulator/model"
)

// Row is one sampled entity in one frame.
type Row struct {
	Frame    uint64  `csv:"frame"`
	ElapsedS float64 `csv:"elapsed_s"`
	ID       string  `csv:"id"`
	Kind     string  `csv:"kind"`
	X        float64 `csv:"x"`
	Y        float64 `csv:"y"`
	Radius   float64 `csv:"radius"`
}

// Recorder appends frames to a CSV stream. A nil *Recorder is a valid
// disabled recorder.
type Recorder struct {
	w             io.Writer
	closer        io.Closer
	frame         uint64
	headerWritten bool
}

// New writes rows to w.
func New(w io.Writer) *Recorder {
	return &Recorder{w: w}
}

// Create opens path for writing, creating parent directories. An empty path
// returns a nil recorder.
func Create(path string) (*Recorder, error) {
	if path == "" {
		return nil, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating record directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", path, err)
	}
	return &Recorder{w: f, closer: f}, nil
}

// Record writes one row per sprite. elapsed is the wall time since the
// recording started.
func (r *Recorder) Record(elapsed time.Duration, sprites []model.Sprite) error {
	if r == nil {
		return nil
	}
	r.frame++
	if len(sprites) == 0 {
		return nil
	}

	rows := make([]Row, 0, len(sprites))
	for _, s := range sprites {
		rows = append(rows, Row{
			Frame:    r.frame,
			ElapsedS: elapsed.Seconds(),
			ID:       s.ID,
			Kind:     s.Kind.String(),
			X:        s.Position.X,
			Y:        s.Position.Y,
			Radius:   s.Radius,
		})
	}

	if !r.headerWritten {
		if err := gocsv.Marshal(rows, r.w); err != nil {
			return fmt.Errorf("writing frame %d: %w", r.frame, err)
		}
		r.headerWritten = true
		return nil
	}
	if err := gocsv.MarshalWithoutHeaders(rows, r.w); err != nil {
		return fmt.Errorf("writing frame %d: %w", r.frame, err)
	}
	return nil
}

// Frames returns how many frames have been recorded.
func (r *Recorder) Frames() uint64 {
	if r == nil {
		return 0
	}
	return r.frame
}

// Close closes the underlying file when the recorder owns one.
func (r *Recorder) Close() error {
	if r == nil || r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// ReadRows parses a recording produced by Record.
func ReadRows(in io.Reader) ([]Row, error) {
	var rows []Row
	if err := gocsv.Unmarshal(in, &rows); err != nil {
		return nil, fmt.Errorf("reading rows: %w", err)
	}
	return rows, nil
}
