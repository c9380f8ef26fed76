package laptime

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormatRoundTrip(t *testing.T) {
	cases := []string{
		"00:00:00",
		"00:05:00",
		"01:23:45",
		"09:59:99",
		"99:00:01",
	}

	for _, s := range cases {
		parsed, err := Parse(s)
		require.NoError(t, err, s)
		assert.Equal(t, s, parsed.Format())
	}
}

func TestFormatParseRoundTripMillis(t *testing.T) {
	for _, ms := range []int64{0, 10, 990, 60_000, 83_450, 5_999_990} {
		lt := FromMillis(ms)
		parsed, err := Parse(lt.Format())
		require.NoError(t, err)
		assert.Equal(t, ms, parsed.Millis())
	}
}

func TestParsePlaceholder(t *testing.T) {
	lt, err := Parse(Placeholder)
	require.NoError(t, err)
	assert.False(t, lt.IsSet())
	assert.Equal(t, Placeholder, lt.Format())
}

func TestParseMalformed(t *testing.T) {
	for _, s := range []string{"", "1:2", "aa:bb:cc", "00:00", "00:00:00:00", "0x:00:00", " 00:00:00"} {
		_, err := Parse(s)
		assert.ErrorIs(t, err, ErrBadFormat, "input %q", s)
	}
}

func TestNegativeFormatting(t *testing.T) {
	lt := FromMillis(-61_230)
	assert.Equal(t, "-01:01:23", lt.Format())

	parsed, err := Parse("-01:01:23")
	require.NoError(t, err)
	assert.Equal(t, int64(-61_230), parsed.Millis())
}

func TestJSONRoundTrip(t *testing.T) {
	type wrapper struct {
		Fastest LapTime `json:"fastestLap"`
		Diff    LapTime `json:"timeDifference"`
	}

	in := wrapper{Fastest: FromMillis(72_340), Diff: Unset()}

	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"fastestLap":"01:12:34","timeDifference":"---"}`, string(data))

	var out wrapper
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}
