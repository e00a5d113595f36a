package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/iliyamo/hotel-reservation/internal/apperr"
)

var errNotWhole = errors.New("must be a whole number")

// flexInt accepts 3, "3" and "3h".  Set is false when the field was absent
// or null.
type flexInt struct {
	Value int
	Set   bool
}

func (f *flexInt) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		v, err := strconv.ParseFloat(n.String(), 64)
		if err != nil {
			return err
		}
		if v != math.Trunc(v) || math.Abs(v) > math.MaxInt32 {
			return errNotWhole
		}
		f.Value, f.Set = int(v), true
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := parseHours(s)
	if err != nil {
		return err
	}
	f.Value, f.Set = v, true
	return nil
}

// flexID accepts a numeric id as a number or a string.  Anything else,
// such as the "walk_in" placeholder, leaves it unset.
type flexID struct {
	Value uint64
	Set   bool
}

func (f *flexID) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case float64:
		if v > 0 && v == math.Trunc(v) {
			f.Value, f.Set = uint64(v), true
		}
	case string:
		if n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64); err == nil && n > 0 {
			f.Value, f.Set = n, true
		}
	}
	return nil
}

func (f flexID) ptr() *uint64 {
	if !f.Set {
		return nil
	}
	v := f.Value
	return &v
}

// flexAges accepts child ages as [7, 10], ["7", "10"], ["7,10"], "7,10" or
// a single number.  Entries that are not integers are dropped.
type flexAges []int

func (a *flexAges) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	var parts []string
	switch v := raw.(type) {
	case nil:
		return nil
	case float64:
		parts = []string{strconv.FormatFloat(v, 'f', -1, 64)}
	case string:
		parts = strings.Split(v, ",")
	case []any:
		for _, item := range v {
			switch x := item.(type) {
			case float64:
				parts = append(parts, strconv.FormatFloat(x, 'f', -1, 64))
			case string:
				parts = append(parts, strings.Split(x, ",")...)
			}
		}
	}
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		if n, err := strconv.Atoi(strings.TrimSpace(p)); err == nil {
			out = append(out, n)
		}
	}
	*a = out
	return nil
}

// flexAmount is a client-side peso total, as a number or numeric string,
// kept in centavos.
type flexAmount struct {
	Cents int64
	Set   bool
}

func (f *flexAmount) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	var pesos float64
	switch v := raw.(type) {
	case float64:
		pesos = v
	case string:
		p, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil
		}
		pesos = p
	default:
		return nil
	}
	f.Cents, f.Set = int64(math.Round(pesos*100)), true
	return nil
}

func (f flexAmount) ptr() *int64 {
	if !f.Set {
		return nil
	}
	v := f.Cents
	return &v
}

// parseHours reads a stay length such as "3h", "3" or "12H".
func parseHours(s string) (int, error) {
	s = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "h")
	return strconv.Atoi(s)
}

// parseCheckIn combines a YYYY-MM-DD date and an HH:MM time in the hotel's
// time zone.
func parseCheckIn(date, clock string, loc *time.Location) (time.Time, error) {
	verr := apperr.Validation("invalid check-in")
	date, clock = strings.TrimSpace(date), strings.TrimSpace(clock)
	if date == "" {
		verr.AddField("checkInDate", "is required")
	}
	if clock == "" {
		verr.AddField("checkInTime", "is required")
	}
	if len(verr.Fields) > 0 {
		return time.Time{}, verr
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", date+" "+clock, loc)
	if err != nil {
		verr.AddField("checkIn", "expected checkInDate YYYY-MM-DD and checkInTime HH:MM")
		return time.Time{}, verr
	}
	return t, nil
}

func parseID(raw, field string) (uint64, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		verr := apperr.Validationf("invalid %s", field)
		verr.AddField(field, "must be a positive integer")
		return 0, verr
	}
	return id, nil
}
