package race

import (
	"testing"

	"github.com/beachside/racetrack/go/internal/laptime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRankOrdersByFastestLap(t *testing.T) {
	roster := []Driver{
		{ID: "Car_1", Name: "Mika", FastestLap: laptime.FromMillis(62_000)},
		{ID: "Car_2", Name: "Kimi", FastestLap: laptime.FromMillis(58_500)},
		{ID: "Car_3", Name: "Valtteri", FastestLap: laptime.FromMillis(71_200)},
	}

	ranked := Rank(roster)

	require.Len(t, ranked, 3)
	assert.Equal(t, "Kimi", ranked[0].Name)
	assert.Equal(t, "Mika", ranked[1].Name)
	assert.Equal(t, "Valtteri", ranked[2].Name)
}

func TestRankUnsetLapsSortLastInOriginalOrder(t *testing.T) {
	roster := []Driver{
		{ID: "Car_1", Name: "A"},
		{ID: "Car_2", Name: "B", FastestLap: laptime.FromMillis(60_000)},
		{ID: "Car_3", Name: "C"},
		{ID: "Car_4", Name: "D"},
	}

	ranked := Rank(roster)

	assert.Equal(t, "B", ranked[0].Name)
	assert.Equal(t, []string{"A", "C", "D"}, []string{ranked[1].Name, ranked[2].Name, ranked[3].Name})
}

func TestRankIsStableAndPure(t *testing.T) {
	roster := []Driver{
		{ID: "Car_1", Name: "A", FastestLap: laptime.FromMillis(60_000)},
		{ID: "Car_2", Name: "B"},
		{ID: "Car_3", Name: "C", FastestLap: laptime.FromMillis(55_000)},
	}
	original := append([]Driver(nil), roster...)

	first := Rank(roster)
	second := Rank(roster)

	assert.Equal(t, first, second)
	assert.Equal(t, original, roster, "input roster must not be mutated")
}
