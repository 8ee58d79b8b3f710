package model

import "strings"

// InputState is one snapshot of the four directional keys. Keys are
// independent; opposing keys cancel when converted to a direction.
type InputState struct {
	Up    bool
	Down  bool
	Left  bool
	Right bool
}

// Direction maps the snapshot to a step vector by adding ±1 per active key.
// The result is not normalised, so a diagonal is longer than an axis move.
func (in InputState) Direction() Vec2 {
	var d Vec2
	if in.Up {
		d.Y -= 1
	}
	if in.Down {
		d.Y += 1
	}
	if in.Left {
		d.X -= 1
	}
	if in.Right {
		d.X += 1
	}
	return d
}

// Any reports whether at least one key is held.
func (in InputState) Any() bool { return in.Up || in.Down || in.Left || in.Right }

// String renders the held keys as a comma separated list, e.g. "up,right".
func (in InputState) String() string {
	keys := make([]string, 0, 4)
	if in.Up {
		keys = append(keys, "up")
	}
	if in.Down {
		keys = append(keys, "down")
	}
	if in.Left {
		keys = append(keys, "left")
	}
	if in.Right {
		keys = append(keys, "right")
	}
	return strings.Join(keys, ",")
}

// ParseInputState is the inverse of InputState.String. Unknown key names are
// reported as an error; empty input yields the zero snapshot.
func ParseInputState(s string) (InputState, error) {
	var in InputState
	for _, raw := range strings.Split(s, ",") {
		switch strings.ToLower(strings.TrimSpace(raw)) {
		case "":
		case "up":
			in.Up = true
		case "down":
			in.Down = true
		case "left":
			in.Left = true
		case "right":
			in.Right = true
		default:
			return InputState{}, &UnknownKeyError{Key: raw}
		}
	}
	return in, nil
}

// UnknownKeyError is returned by ParseInputState for an unrecognised key.
type UnknownKeyError struct {
	Key string
}

func (e *UnknownKeyError) Error() string {
	return "unknown input key " + strings.TrimSpace(e.Key)
}
