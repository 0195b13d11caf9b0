package channel

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Arg is one named command argument. Only Value travels on the wire; Name
// and Unit are kept for logs, the command journal and published events.
type Arg struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
	Unit  string `json:"unit,omitempty"`
}

// String renders the argument for logs, e.g. "Volume=2.5 mL".
func (a Arg) String() string {
	s := a.Name + "=" + a.Wire()
	if a.Unit != "" {
		s += " " + a.Unit
	}
	return s
}

// Wire returns the value as written to the command file. Booleans become
// 1 or 0 and floats use the shortest representation that round-trips.
func (a Arg) Wire() string {
	switch v := a.Value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		if v {
			return "1"
		}
		return "0"
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case uint:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// validateValue rejects NaN and infinite floats, which the controller
// cannot parse and the journal cannot encode.
func validateValue(a Arg) error {
	var f float64
	switch v := a.Value.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("%w: argument %s is not a finite number (%g)", ErrInvalidArgument, a.Name, f)
	}
	return nil
}

// validateToken rejects values that would corrupt the record layout.
func validateToken(what, s string) error {
	if strings.ContainsAny(s, delimiter+"\r\n") {
		return fmt.Errorf("%w: %s %q contains a delimiter or line break", ErrInvalidArgument, what, s)
	}
	return nil
}

// encodeCommand renders the two command records:
//
//	1,<name>
//	<v1>,<v2>,...,<vn>,end
func encodeCommand(name string, args []Arg) ([]byte, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: command name is required", ErrInvalidArgument)
	}
	if err := validateToken("command name", name); err != nil {
		return nil, err
	}

	values := make([]string, len(args))
	for i, a := range args {
		if err := validateValue(a); err != nil {
			return nil, err
		}
		v := a.Wire()
		if err := validateToken("argument "+a.Name, v); err != nil {
			return nil, err
		}
		values[i] = v
	}

	var b strings.Builder
	b.WriteString(flagSet + delimiter + name + "\n")
	b.WriteString(strings.Join(values, delimiter) + delimiter + endSentinel + "\n")
	return []byte(b.String()), nil
}

// formatArgs renders args for the execution log line.
func formatArgs(args []Arg) string {
	values := make([]string, len(args))
	for i, a := range args {
		values[i] = a.Wire()
	}
	return strings.Join(values, ", ")
}
