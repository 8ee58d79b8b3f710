package scene

import (
	"errors"
	"image/color"
	"testing"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/star-system-simulator/model"
)

func TestEncodeDecodeSnapshot(t *testing.T) {
	in := Snapshot{
		Sprites: []model.Sprite{
			{ID: "star", Kind: model.KindCentralBody, Position: model.V(400, 300), Radius: 25, Color: color.RGBA{R: 0xfd, G: 0xf9, A: 0xff}},
			{ID: "planet-1", Kind: model.KindSatellite, Position: model.V(450.5, -12.25), Radius: 8, Color: color.RGBA{R: 0x70, G: 0x1f, B: 0x7e, A: 0xff}},
		},
		Input: model.InputState{Up: true, Right: true},
	}

	st, err := EncodeSnapshot(in)
	if err != nil {
		t.Fatalf("EncodeSnapshot: %v", err)
	}
	if n := len(st.GetFields()["sprites"].GetListValue().GetValues()); n != 2 {
		t.Fatalf("encoded %d sprites, want 2", n)
	}

	out, err := DecodeSnapshot(st)
	if err != nil {
		t.Fatalf("DecodeSnapshot: %v", err)
	}
	if out.Input != in.Input {
		t.Fatalf("input = %+v, want %+v", out.Input, in.Input)
	}
	for i := range in.Sprites {
		if out.Sprites[i] != in.Sprites[i] {
			t.Fatalf("sprite %d = %+v, want %+v", i, out.Sprites[i], in.Sprites[i])
		}
	}
}

func TestDecodeSnapshotRejectsBadColor(t *testing.T) {
	st, err := structpb.NewStruct(map[string]any{
		"sprites": []any{map[string]any{"id": "x", "color": "red"}},
	})
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}
	if _, err := DecodeSnapshot(st); !errors.Is(err, ErrMalformedSnapshot) {
		t.Fatalf("DecodeSnapshot err = %v, want ErrMalformedSnapshot", err)
	}
	if _, err := DecodeSnapshot(nil); !errors.Is(err, ErrMalformedSnapshot) {
		t.Fatalf("DecodeSnapshot(nil) err = %v, want ErrMalformedSnapshot", err)
	}
}

func TestDecodeEmptySnapshot(t *testing.T) {
	out, err := DecodeSnapshot(&structpb.Struct{})
	if err != nil {
		t.Fatalf("DecodeSnapshot: %v", err)
	}
	if len(out.Sprites) != 0 || out.Input.Any() {
		t.Fatalf("empty struct decoded to %+v", out)
	}
}
