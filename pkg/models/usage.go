package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// UsageKind tags which numeric form a Usage holds
type UsageKind uint8

const (
	UsageInt   UsageKind = iota // Counts from table sections
	UsageFloat                  // Percentages from progress indicators
)

// Usage is a tagged integer-or-float popularity value.
// Floats always encode with a fractional part so the kind survives a JSON round trip.
type Usage struct {
	kind UsageKind
	i    int64
	f    float64
}

// IntUsage returns an integer usage
func IntUsage(n int64) Usage { return Usage{kind: UsageInt, i: n} }

// FloatUsage returns a float usage
func FloatUsage(f float64) Usage { return Usage{kind: UsageFloat, f: f} }

// Kind returns the variant tag
func (u Usage) Kind() UsageKind { return u.kind }

// IsFloat reports whether the usage holds a float
func (u Usage) IsFloat() bool { return u.kind == UsageFloat }

// Int returns the integer value, truncating floats
func (u Usage) Int() int64 {
	if u.kind == UsageFloat {
		return int64(u.f)
	}
	return u.i
}

// Float returns the value as float64
func (u Usage) Float() float64 {
	if u.kind == UsageFloat {
		return u.f
	}
	return float64(u.i)
}

// String implements fmt.Stringer
func (u Usage) String() string {
	if u.kind == UsageFloat {
		return formatFloat(u.f)
	}
	return strconv.FormatInt(u.i, 10)
}

func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return s
	}
	if !bytes.ContainsAny([]byte(s), ".eE") {
		s += ".0"
	}
	return s
}

// MarshalJSON encodes integers bare and floats with a fractional part
func (u Usage) MarshalJSON() ([]byte, error) {
	if u.kind == UsageFloat {
		if math.IsInf(u.f, 0) || math.IsNaN(u.f) {
			return nil, fmt.Errorf("usage: unsupported float value %v", u.f)
		}
		return []byte(formatFloat(u.f)), nil
	}
	return []byte(strconv.FormatInt(u.i, 10)), nil
}

// UnmarshalJSON picks the variant from the literal: '.', 'e' or 'E' means float
func (u *Usage) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*u = Usage{}
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("usage: %w", err)
	}
	lit := num.String()
	if bytes.ContainsAny([]byte(lit), ".eE") {
		f, err := strconv.ParseFloat(lit, 64)
		if err != nil {
			return fmt.Errorf("usage: %w", err)
		}
		*u = FloatUsage(f)
		return nil
	}
	n, err := strconv.ParseInt(lit, 10, 64)
	if err != nil {
		return fmt.Errorf("usage: %w", err)
	}
	*u = IntUsage(n)
	return nil
}
