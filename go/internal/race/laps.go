package race

import (
	"errors"

	"github.com/beachside/racetrack/go/internal/laptime"
)

// ErrLapTooFast rejects a lap-line crossing that arrives before the minimum
// plausible lap time has passed since the driver's last boundary.
var ErrLapTooFast = errors.New("race: lap under minimum lap time")

// recordLap applies one lap-line crossing at the given race-clock reading.
//
// The first crossing only opens the driver's lap count; timing starts from
// the race clock zero, so the first timed lap spans from the race start to
// the second crossing. PreviousLap stores the race-clock reading of the
// last boundary, CurrentLap the latest completed lap, FastestLap the best
// one, and TimeDifference the signed gap between the latest lap and the
// fastest lap held before it.
func recordLap(d *Driver, elapsedMillis, minLapMillis int64) error {
	if d.LapCount >= 1 {
		boundary := int64(0)
		if d.PreviousLap.IsSet() {
			boundary = d.PreviousLap.Millis()
		}

		lapMillis := elapsedMillis - boundary
		if lapMillis < minLapMillis {
			return ErrLapTooFast
		}

		previousFastest := d.FastestLap

		d.PreviousLap = laptime.FromMillis(elapsedMillis)
		d.CurrentLap = laptime.FromMillis(lapMillis)

		if !d.FastestLap.IsSet() || lapMillis < d.FastestLap.Millis() {
			d.FastestLap = laptime.FromMillis(lapMillis)
		}

		reference := int64(0)
		if previousFastest.IsSet() {
			reference = previousFastest.Millis()
		}
		d.TimeDifference = laptime.FromMillis(lapMillis - reference)
	}

	d.LapCount++
	return nil
}
