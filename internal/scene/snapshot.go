package scene

import (
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/star-system-simulator/model"
)

// Snapshot is one sampled frame as seen by a remote observer.
type Snapshot struct {
	Sprites []model.Sprite
	Input   model.InputState
}

// EncodeSnapshot converts a snapshot to a protobuf Struct:
//
//	{"sprites": [{"id", "kind", "x", "y", "radius", "color"}...],
//	 "input": {"up", "down", "left", "right"}}
func EncodeSnapshot(s Snapshot) (*structpb.Struct, error) {
	sprites := make([]any, 0, len(s.Sprites))
	for _, sp := range s.Sprites {
		sprites = append(sprites, map[string]any{
			"id":     sp.ID,
			"kind":   sp.Kind.String(),
			"x":      sp.Position.X,
			"y":      sp.Position.Y,
			"radius": sp.Radius,
			"color":  model.FormatColor(sp.Color),
		})
	}
	return structpb.NewStruct(map[string]any{
		"sprites": sprites,
		"input": map[string]any{
			"up":    s.Input.Up,
			"down":  s.Input.Down,
			"left":  s.Input.Left,
			"right": s.Input.Right,
		},
	})
}

// DecodeSnapshot is the inverse of EncodeSnapshot.
func DecodeSnapshot(st *structpb.Struct) (Snapshot, error) {
	if st == nil {
		return Snapshot{}, fmt.Errorf("%w: nil snapshot", ErrMalformedSnapshot)
	}
	var out Snapshot

	if in := st.GetFields()["input"].GetStructValue(); in != nil {
		f := in.GetFields()
		out.Input = model.InputState{
			Up:    f["up"].GetBoolValue(),
			Down:  f["down"].GetBoolValue(),
			Left:  f["left"].GetBoolValue(),
			Right: f["right"].GetBoolValue(),
		}
	}

	for i, v := range st.GetFields()["sprites"].GetListValue().GetValues() {
		f := v.GetStructValue().GetFields()
		if f == nil {
			return Snapshot{}, fmt.Errorf("%w: sprite %d is not an object", ErrMalformedSnapshot, i)
		}
		c, err := model.ParseColor(f["color"].GetStringValue())
		if err != nil {
			return Snapshot{}, fmt.Errorf("%w: sprite %d: %v", ErrMalformedSnapshot, i, err)
		}
		out.Sprites = append(out.Sprites, model.Sprite{
			ID:       f["id"].GetStringValue(),
			Kind:     parseKind(f["kind"].GetStringValue()),
			Position: model.V(f["x"].GetNumberValue(), f["y"].GetNumberValue()),
			Radius:   f["radius"].GetNumberValue(),
			Color:    c,
		})
	}
	return out, nil
}

func parseKind(s string) model.Kind {
	switch s {
	case model.KindCentralBody.String():
		return model.KindCentralBody
	case model.KindSatellite.String():
		return model.KindSatellite
	default:
		return model.KindUnknown
	}
}
