package flow

import "errors"

// A Mode tags a step result with the measurement mode that produced it.
type Mode int

// The three measurement modes.
const (
	Navigation = Mode(iota) // One full page load
	Timespan                // An arbitrary caller-bounded interval
	Snapshot                // The page state at a single instant
)

// ErrInvalidMode indicates the serialized mode is invalid.
var ErrInvalidMode = errors.New("invalid step mode")

const (
	navigationString = "navigation"
	timespanString   = "timespan"
	snapshotString   = "snapshot"
)

// MarshalText serializes a Mode as a human readable string.
func (m Mode) MarshalText() ([]byte, error) {
	switch m {
	case Navigation:
		return []byte(navigationString), nil
	case Timespan:
		return []byte(timespanString), nil
	case Snapshot:
		return []byte(snapshotString), nil
	default:
		return nil, ErrInvalidMode
	}
}

// MarshalJSON serializes a Mode as a JSON string.
func (m Mode) MarshalJSON() ([]byte, error) {
	txt, err := m.MarshalText()
	if err != nil {
		return nil, err
	}
	return []byte(`"` + string(txt) + `"`), nil
}

// UnmarshalText deserializes a Mode from a string representation.
func (m *Mode) UnmarshalText(data []byte) error {
	switch string(data) {
	case navigationString:
		*m = Navigation
	case timespanString:
		*m = Timespan
	case snapshotString:
		*m = Snapshot
	default:
		return ErrInvalidMode
	}
	return nil
}

// UnmarshalJSON deserializes a Mode from a JSON string.
func (m *Mode) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return ErrInvalidMode
	}
	return m.UnmarshalText(data[1 : len(data)-1])
}

func (m Mode) String() string {
	switch m {
	case Navigation:
		return navigationString
	case Timespan:
		return timespanString
	case Snapshot:
		return snapshotString
	default:
		return "[INVALID]"
	}
}
