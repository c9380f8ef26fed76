package race

import "sort"

// Rank orders a roster for the leaderboard: drivers with a recorded fastest
// lap ascend by that time, drivers without one sort after them in their
// original relative order. The input roster is never mutated.
func Rank(roster []Driver) []Driver {
	ranked := append([]Driver(nil), roster...)

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i].FastestLap, ranked[j].FastestLap
		switch {
		case a.IsSet() && b.IsSet():
			return a.Millis() < b.Millis()
		case a.IsSet():
			return true
		default:
			return false
		}
	})

	return ranked
}
