package laptime

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Placeholder is displayed wherever a lap time has not been recorded yet.
const Placeholder = "---"

var ErrBadFormat = errors.New("laptime: malformed MM:SS:CC string")

// LapTime is a duration in milliseconds with an explicit unset state.
// It renders as MM:SS:CC (minutes, seconds, centiseconds) on the wire and
// in every display, matching the track-side clocks.
type LapTime struct {
	millis int64
	valid  bool
}

// Unset returns the placeholder lap time.
func Unset() LapTime { return LapTime{} }

// FromMillis returns a set lap time. Negative values are legal and are used
// for signed time differences.
func FromMillis(ms int64) LapTime { return LapTime{millis: ms, valid: true} }

// FromDuration truncates d to millisecond precision.
func FromDuration(d time.Duration) LapTime { return FromMillis(d.Milliseconds()) }

func (t LapTime) IsSet() bool   { return t.valid }
func (t LapTime) Millis() int64 { return t.millis }

func (t LapTime) Duration() time.Duration {
	return time.Duration(t.millis) * time.Millisecond
}

// Parse converts an MM:SS:CC string into a LapTime. The placeholder parses
// to the unset value. A leading '-' marks a negative difference.
func Parse(s string) (LapTime, error) {
	if s == Placeholder {
		return Unset(), nil
	}

	negative := strings.HasPrefix(s, "-")
	if negative {
		s = s[1:]
	}

	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return Unset(), ErrBadFormat
	}

	fields := make([]int64, 3)
	for i, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil || n < 0 {
			return Unset(), ErrBadFormat
		}
		fields[i] = n
	}

	ms := fields[0]*60_000 + fields[1]*1_000 + fields[2]*10
	if negative {
		ms = -ms
	}
	return FromMillis(ms), nil
}

// Format renders the lap time as MM:SS:CC, zero-padding each field.
// Sub-centisecond precision is dropped. The unset value formats to the
// placeholder.
func (t LapTime) Format() string {
	if !t.valid {
		return Placeholder
	}

	ms := t.millis
	negative := ms < 0
	if negative {
		ms = -ms
	}

	minutes := ms / 60_000
	ms %= 60_000
	seconds := ms / 1_000
	ms %= 1_000
	centis := ms / 10

	out := fmt.Sprintf("%02d:%02d:%02d", minutes, seconds, centis)
	if negative {
		out = "-" + out
	}
	return out
}

func (t LapTime) String() string { return t.Format() }

// MarshalJSON emits the display string so every client renders the exact
// same text without reformatting.
func (t LapTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Format())
}

func (t *LapTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
