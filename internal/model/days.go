package model

import (
	"bytes"
	"encoding/json"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/manav03panchal/timely/internal/errors"
	"github.com/manav03panchal/timely/internal/logging"
)

// Days is a canonical weekday set: ascending integers, 0 = Sunday.
// Decoding drops values outside 0..6; a set built in code may still carry
// them, and they never match a calendar day.
type Days []int

// RawDaysKind tags the wire shape a days field arrived in.
type RawDaysKind int

const (
	RawDaysNull RawDaysKind = iota
	RawDaysArray
	RawDaysJSONString
	RawDaysUnknown
)

func (k RawDaysKind) String() string {
	switch k {
	case RawDaysNull:
		return "null"
	case RawDaysArray:
		return "array"
	case RawDaysJSONString:
		return "json-string"
	default:
		return "unknown"
	}
}

// RawDays is a days field as received, before normalization.
type RawDays struct {
	Kind  RawDaysKind
	Array []json.RawMessage
	Text  string
	Raw   json.RawMessage
}

// DecodeRawDays classifies a JSON value. It never fails: anything that is
// not null, an array or a string is RawDaysUnknown.
func DecodeRawDays(data []byte) RawDays {
	trimmed := bytes.TrimSpace(data)
	raw := RawDays{Raw: append(json.RawMessage(nil), trimmed...)}

	switch {
	case len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")):
		raw.Kind = RawDaysNull
	case trimmed[0] == '[':
		if err := json.Unmarshal(trimmed, &raw.Array); err != nil {
			raw.Kind = RawDaysUnknown
		} else {
			raw.Kind = RawDaysArray
		}
	case trimmed[0] == '"':
		if err := json.Unmarshal(trimmed, &raw.Text); err != nil {
			raw.Kind = RawDaysUnknown
		} else {
			raw.Kind = RawDaysJSONString
		}
	default:
		raw.Kind = RawDaysUnknown
	}
	return raw
}

// Normalize converts the raw value to a canonical set. Malformed input
// yields an empty set and a diagnostic log line, which callers treat the
// same as "no days selected".
func (r RawDays) Normalize() Days {
	switch r.Kind {
	case RawDaysNull:
		return Days{}
	case RawDaysArray:
		days, ok := intElements(r.Array)
		if !ok {
			logging.Warn("days array has non-integer elements, treating as one-time",
				logging.KeyDays, string(r.Raw))
			return Days{}
		}
		valid := days.Valid()
		if len(valid) != len(days.Canonical()) {
			logging.Warn("days array has out-of-range weekdays, dropping them",
				logging.KeyDays, string(r.Raw))
		}
		return valid
	case RawDaysJSONString:
		text := strings.TrimSpace(r.Text)
		if text == "" || text == "null" || text == `""` {
			return Days{}
		}
		inner := DecodeRawDays([]byte(text))
		if inner.Kind != RawDaysArray {
			logging.Warn("days string is not a JSON array, treating as one-time",
				logging.KeyDays, r.Text)
			return Days{}
		}
		return inner.Normalize()
	default:
		logging.Warn("days has unexpected type, treating as one-time",
			logging.KeyDays, string(r.Raw))
		return Days{}
	}
}

func intElements(elems []json.RawMessage) (Days, bool) {
	out := make(Days, 0, len(elems))
	for _, e := range elems {
		e = bytes.TrimSpace(e)
		if len(e) == 0 || e[0] == '"' {
			return nil, false
		}
		var n json.Number
		if err := json.Unmarshal(e, &n); err != nil {
			return nil, false
		}
		if i, err := n.Int64(); err == nil {
			out = append(out, int(i))
			continue
		}
		f, err := n.Float64()
		if err != nil || f != math.Trunc(f) {
			return nil, false
		}
		out = append(out, int(f))
	}
	return out, true
}

// DecodeDays normalizes any JSON encoding of a days field.
func DecodeDays(data []byte) Days {
	return DecodeRawDays(data).Normalize()
}

// UnmarshalJSON decodes every wire shape once at ingestion.
func (d *Days) UnmarshalJSON(data []byte) error {
	*d = DecodeDays(data)
	return nil
}

// MarshalJSON always emits an array, never null.
func (d Days) MarshalJSON() ([]byte, error) {
	if d == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]int(d))
}

// Canonical returns the set sorted ascending without duplicates.
func (d Days) Canonical() Days {
	out := d.Clone()
	if out == nil {
		out = Days{}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Clone returns a copy of d.
func (d Days) Clone() Days {
	if d == nil {
		return nil
	}
	return slices.Clone(d)
}

// Contains reports whether weekday wd is in the set.
func (d Days) Contains(wd time.Weekday) bool {
	return slices.Contains(d, int(wd))
}

// Valid returns only the entries that name a real weekday, ascending.
func (d Days) Valid() Days {
	out := make(Days, 0, len(d))
	for _, v := range d.Canonical() {
		if v >= 0 && v <= 6 {
			out = append(out, v)
		}
	}
	return out
}

var dayAbbrev = [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// String renders the set for humans: "Mon Wed Fri", "Weekdays", "Once".
func (d Days) String() string {
	valid := d.Valid()
	switch {
	case len(valid) == 0:
		return "Once"
	case len(valid) == 7:
		return "Daily"
	case slices.Equal(valid, Days{1, 2, 3, 4, 5}):
		return "Weekdays"
	case slices.Equal(valid, Days{0, 6}):
		return "Weekends"
	}
	names := make([]string, len(valid))
	for i, v := range valid {
		names[i] = dayAbbrev[v]
	}
	return strings.Join(names, " ")
}

var dayNames = map[string]int{
	"sun": 0, "sunday": 0,
	"mon": 1, "monday": 1,
	"tue": 2, "tues": 2, "tuesday": 2,
	"wed": 3, "wednesday": 3,
	"thu": 4, "thur": 4, "thurs": 4, "thursday": 4,
	"fri": 5, "friday": 5,
	"sat": 6, "saturday": 6,
}

// ParseDaysFlag parses CLI input such as "mon,wed,fri", "1,3,5",
// "weekdays", "weekends", "daily" or "once". Unlike the wire decoder it
// rejects bad input.
func ParseDaysFlag(s string) (Days, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", "once", "none":
		return Days{}, nil
	case "daily", "everyday", "all":
		return Days{0, 1, 2, 3, 4, 5, 6}, nil
	case "weekdays":
		return Days{1, 2, 3, 4, 5}, nil
	case "weekends":
		return Days{0, 6}, nil
	}

	var out Days
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' }) {
		if n, err := strconv.Atoi(part); err == nil {
			if n < 0 || n > 6 {
				return nil, errors.NewUserErrorWithField(errors.ErrInvalidDays, "days", part,
					"weekday out of range", "")
			}
			out = append(out, n)
			continue
		}
		n, ok := dayNames[part]
		if !ok {
			return nil, errors.NewUserErrorWithField(errors.ErrInvalidDays, "days", part,
				"unknown weekday", "")
		}
		out = append(out, n)
	}
	return out.Canonical(), nil
}
