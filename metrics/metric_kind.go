package metrics

import "errors"

// A Kind specifies how a metric observes the page.
type Kind int

// Possible values for Kind.
const (
	Moment = Kind(iota) // A point on the page-load timeline (e.g. FCP)
	Range               // An aggregate over a bounded interval (e.g. TBT)
	State               // A property of the page state at capture time
)

// ErrInvalidKind indicates the serialized metric kind is invalid.
var ErrInvalidKind = errors.New("invalid metric kind")

const (
	momentString = "moment"
	rangeString  = "range"
	stateString  = "state"

	defaultString = "default"
	timeString    = "time"
	countString   = "count"
)

// MarshalJSON serializes a Kind as a human readable string.
func (k Kind) MarshalJSON() ([]byte, error) {
	txt, err := k.MarshalText()
	if err != nil {
		return nil, err
	}
	return []byte(`"` + string(txt) + `"`), nil
}

// MarshalText serializes a Kind as a human readable string.
func (k Kind) MarshalText() ([]byte, error) {
	switch k {
	case Moment:
		return []byte(momentString), nil
	case Range:
		return []byte(rangeString), nil
	case State:
		return []byte(stateString), nil
	default:
		return nil, ErrInvalidKind
	}
}

// UnmarshalText deserializes a Kind from a string representation.
func (k *Kind) UnmarshalText(data []byte) error {
	switch string(data) {
	case momentString:
		*k = Moment
	case rangeString:
		*k = Range
	case stateString:
		*k = State
	default:
		return ErrInvalidKind
	}
	return nil
}

// UnmarshalJSON deserializes a Kind from a JSON string.
func (k *Kind) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return ErrInvalidKind
	}
	return k.UnmarshalText(data[1 : len(data)-1])
}

func (k Kind) String() string {
	switch k {
	case Moment:
		return momentString
	case Range:
		return rangeString
	case State:
		return stateString
	default:
		return "[INVALID]"
	}
}

// A ValueType specifies the unit of values a metric contains.
type ValueType int

// Possible values for ValueType.
const (
	Default = ValueType(iota) // Values are presented as-is
	Time                      // Values are milliseconds
	Count                     // Values are element/entity counts
)

// ErrInvalidValueType indicates the serialized value type is invalid.
var ErrInvalidValueType = errors.New("invalid value type")

// MarshalText serializes a ValueType as a human readable string.
func (t ValueType) MarshalText() ([]byte, error) {
	switch t {
	case Default:
		return []byte(defaultString), nil
	case Time:
		return []byte(timeString), nil
	case Count:
		return []byte(countString), nil
	default:
		return nil, ErrInvalidValueType
	}
}

// MarshalJSON serializes a ValueType as a JSON string.
func (t ValueType) MarshalJSON() ([]byte, error) {
	txt, err := t.MarshalText()
	if err != nil {
		return nil, err
	}
	return []byte(`"` + string(txt) + `"`), nil
}

// UnmarshalText deserializes a ValueType from a string representation.
func (t *ValueType) UnmarshalText(data []byte) error {
	switch string(data) {
	case defaultString:
		*t = Default
	case timeString:
		*t = Time
	case countString:
		*t = Count
	default:
		return ErrInvalidValueType
	}
	return nil
}

// UnmarshalJSON deserializes a ValueType from a JSON string.
func (t *ValueType) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return ErrInvalidValueType
	}
	return t.UnmarshalText(data[1 : len(data)-1])
}

func (t ValueType) String() string {
	switch t {
	case Default:
		return defaultString
	case Time:
		return timeString
	case Count:
		return countString
	default:
		return "[INVALID]"
	}
}
