package recorder

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/signalsfoundry/star-system-simulator/model"
)

func sprites(x float64) []model.Sprite {
	return []model.Sprite{
		{ID: "star", Kind: model.KindCentralBody, Position: model.V(x, 300), Radius: 25},
		{ID: "planet-1", Kind: model.KindSatellite, Position: model.V(x+50, 300), Radius: 8},
	}
}

func TestRecordWritesHeaderOnce(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf)

	if err := r.Record(0, sprites(400)); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := r.Record(500*time.Millisecond, sprites(500)); err != nil {
		t.Fatalf("Record: %v", err)
	}

	out := buf.String()
	if n := strings.Count(out, "frame,elapsed_s,id,kind,x,y,radius"); n != 1 {
		t.Fatalf("header written %d times:\n%s", n, out)
	}
	if lines := strings.Count(strings.TrimSpace(out), "\n") + 1; lines != 5 {
		t.Fatalf("got %d lines, want 5:\n%s", lines, out)
	}

	rows, err := ReadRows(strings.NewReader(out))
	if err != nil {
		t.Fatalf("ReadRows: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("rows = %d, want 4", len(rows))
	}
	last := rows[3]
	if last.Frame != 2 || last.ID != "planet-1" || last.Kind != "satellite" || last.X != 550 || last.ElapsedS != 0.5 {
		t.Fatalf("last row = %+v", last)
	}
	if r.Frames() != 2 {
		t.Fatalf("Frames = %d, want 2", r.Frames())
	}
}

func TestNilRecorderIsDisabled(t *testing.T) {
	r, err := Create("")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if r != nil {
		t.Fatalf("Create(\"\") = %v, want nil", r)
	}
	if err := r.Record(time.Second, sprites(0)); err != nil {
		t.Fatalf("nil Record: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("nil Close: %v", err)
	}
}

func TestCreateWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs", "frames.csv")
	r, err := Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := r.Record(0, sprites(1)); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()
	rows, err := ReadRows(f)
	if err != nil {
		t.Fatalf("ReadRows: %v", err)
	}
	if len(rows) != 2 || rows[0].ID != "star" {
		t.Fatalf("rows = %+v", rows)
	}
}
