package store

import (
	"github.com/beachside/racetrack/go/internal/race"
)

// Store persists the full race state between process restarts. Load must
// always yield a usable state: an empty or unreadable snapshot falls back
// to the documented default rather than failing startup.
type Store interface {
	Load() (race.State, error)
	Save(state race.State) error
	Close() error
}
