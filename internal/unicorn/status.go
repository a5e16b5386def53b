package unicorn

import (
	"encoding/json"
	"math"
	"strings"
)

// Status is the age class of a unicorn.
type Status string

const (
	StatusBaby    Status = "baby"
	StatusMature  Status = "mature"
	StatusOld     Status = "old"
	StatusUnknown Status = "unknown"
)

// Display labels returned by Classify.
const (
	LabelBaby    = "👶 Baby Unicorn"
	LabelMature  = "🦄 Mature Unicorn"
	LabelOld     = "👴 Old Unicorn"
	LabelUnknown = "Unknown"
)

var labels = map[Status]string{
	StatusBaby:    LabelBaby,
	StatusMature:  LabelMature,
	StatusOld:     LabelOld,
	StatusUnknown: LabelUnknown,
}

// Label returns the display label for the status.
func (s Status) Label() string {
	if l, ok := labels[s]; ok {
		return l
	}
	return LabelUnknown
}

// Classify maps an age to its display label.
// Unparsable and negative input maps to LabelUnknown; it never fails.
func Classify(age any) string {
	return StatusOf(age).Label()
}

// StatusOf maps an age to its class.
func StatusOf(age any) Status {
	n, ok := toInt(age)
	switch {
	case !ok || n < 0:
		return StatusUnknown
	case n <= 8:
		return StatusBaby
	case n <= 25:
		return StatusMature
	default:
		return StatusOld
	}
}

// ParseAge parses the leading integer of s: optional surrounding whitespace,
// an optional sign, then decimal digits. Anything after the digits is ignored,
// so "12 years" parses as 12.
func ParseAge(s string) (int, bool) {
	s = strings.TrimLeft(s, " \t\n\r\v\f")
	if s == "" {
		return 0, false
	}

	neg := false
	switch s[0] {
	case '+':
		s = s[1:]
	case '-':
		neg = true
		s = s[1:]
	}

	n, digits := 0, 0
	for digits < len(s) && s[digits] >= '0' && s[digits] <= '9' {
		if n > (math.MaxInt32-9)/10 {
			// Saturate; any value this large is already "old".
			n = math.MaxInt32
		} else {
			n = n*10 + int(s[digits]-'0')
		}
		digits++
	}
	if digits == 0 {
		return 0, false
	}
	if neg {
		n = -n
	}
	return n, true
}

func toInt(v any) (int, bool) {
	switch x := v.(type) {
	case nil:
		return 0, false
	case Age:
		return int(x), true
	case int:
		return x, true
	case int8:
		return int(x), true
	case int16:
		return int(x), true
	case int32:
		return int(x), true
	case int64:
		return clampInt64(x), true
	case uint:
		return clampUint64(uint64(x)), true
	case uint8:
		return int(x), true
	case uint16:
		return int(x), true
	case uint32:
		return clampUint64(uint64(x)), true
	case uint64:
		return clampUint64(x), true
	case float32:
		return floatToInt(float64(x))
	case float64:
		return floatToInt(x)
	case json.Number:
		return ParseAge(x.String())
	case string:
		return ParseAge(x)
	case []byte:
		return ParseAge(string(x))
	default:
		return 0, false
	}
}

func floatToInt(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	f = math.Trunc(f)
	if f > math.MaxInt32 {
		return math.MaxInt32, true
	}
	if f < math.MinInt32 {
		return math.MinInt32, true
	}
	return int(f), true
}

func clampInt64(n int64) int {
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	if n < math.MinInt32 {
		return math.MinInt32
	}
	return int(n)
}

func clampUint64(n uint64) int {
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(n)
}
