package race

import (
	"fmt"
	"time"

	"github.com/beachside/racetrack/go/internal/laptime"
)

// Flag is the track-wide safety signal shown on every display.
type Flag string

const (
	FlagRed    Flag = "red"
	FlagYellow Flag = "yellow"
	FlagGreen  Flag = "green"
	FlagFinish Flag = "finish"
)

// ParseFlag validates a client-supplied flag value.
func ParseFlag(s string) (Flag, bool) {
	switch Flag(s) {
	case FlagRed, FlagYellow, FlagGreen, FlagFinish:
		return Flag(s), true
	default:
		return "", false
	}
}

// Driver occupies one fixed roster slot. A driver whose name is the
// placeholder is an empty slot and never races.
type Driver struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	FastestLap     laptime.LapTime `json:"fastestLap"`
	PreviousLap    laptime.LapTime `json:"previousLap"`
	CurrentLap     laptime.LapTime `json:"currentLap"`
	TimeDifference laptime.LapTime `json:"timeDifference"`
	LapCount       int             `json:"lapCount"`
}

// NewDriver returns a driver with no recorded laps in the given slot.
func NewDriver(slot, name string) Driver {
	return Driver{ID: slot, Name: name}
}

func (d Driver) IsPlaceholder() bool {
	return d.Name == "" || d.Name == laptime.Placeholder
}

// SlotID returns the fixed slot key for a roster position, 1-based.
func SlotID(position int) string {
	return fmt.Sprintf("Car_%d", position)
}

// Session is one race: an identity plus its roster, ordered by slot id.
type Session struct {
	ID     string   `json:"id"`
	Roster []Driver `json:"roster"`
}

func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := &Session{ID: s.ID}
	out.Roster = append([]Driver(nil), s.Roster...)
	return out
}

func (s *Session) driver(id string) *Driver {
	if s == nil {
		return nil
	}
	for i := range s.Roster {
		if s.Roster[i].ID == id {
			return &s.Roster[i]
		}
	}
	return nil
}

// Buttons carries the flag plus the session lifecycle booleans. The seven
// *Button fields are views derived from the canonical fields; they are
// recomputed on every transition and never set directly.
type Buttons struct {
	Flag              Flag `json:"flag"`
	SessionStarted    bool `json:"sessionStarted"`
	RaceInProgress    bool `json:"raceInProgress"`
	IsSessionFinished bool `json:"isSessionFinished"`

	SafeButton       bool `json:"safeButton"`
	HazardButton     bool `json:"hazardButton"`
	DangerButton     bool `json:"dangerButton"`
	FinishButton     bool `json:"finishButton"`
	NewSessionButton bool `json:"newSessionButton"`
	StartRaceButton  bool `json:"startRaceButton"`
	EndSessionButton bool `json:"endSessionButton"`
}

// State is the single authoritative race state. It is owned by the hub and
// only ever mutated through Apply.
type State struct {
	Buttons          Buttons    `json:"buttons"`
	ActiveRace       *Session   `json:"activeRaceData"`
	RosterIndex      int        `json:"rosterIndex"`
	NextSession      *Session   `json:"nextSession"`
	UpcomingSessions Queue      `json:"upcomingSessions"`
	UpcomingCount    int        `json:"upcomingSessionsNumber"`
	SessionStartTime *time.Time `json:"sessionStartTime"`
}

// DefaultState is the documented empty state: red flag, nothing queued,
// roster labels starting at 1.
func DefaultState() State {
	s := State{
		Buttons:          Buttons{Flag: FlagRed},
		RosterIndex:      1,
		UpcomingSessions: Queue{},
	}
	s.Recompute()
	return s
}

// Clone deep-copies the state so a transition can be applied atomically.
func (s State) Clone() State {
	out := s
	out.ActiveRace = s.ActiveRace.Clone()
	out.NextSession = s.NextSession.Clone()
	out.UpcomingSessions = s.UpcomingSessions.Clone()
	if s.SessionStartTime != nil {
		t := *s.SessionStartTime
		out.SessionStartTime = &t
	}
	return out
}

// NewSessionAvailable reports whether the safety official may promote the
// next queued session right now.
func (s *State) NewSessionAvailable() bool {
	return s.UpcomingSessions.Count() > 0 &&
		s.NextSession != nil &&
		!s.Buttons.RaceInProgress &&
		s.Buttons.Flag != FlagFinish
}

// Recompute re-derives every *Button field and the queue mirrors from the
// canonical fields. Called after every mutation so views can never drift.
func (s *State) Recompute() {
	s.UpcomingCount = s.UpcomingSessions.Count()
	s.NextSession = s.UpcomingSessions.Head()

	b := &s.Buttons
	flagControls := s.ActiveRace != nil && !b.IsSessionFinished

	b.SafeButton = flagControls
	b.HazardButton = flagControls
	b.DangerButton = flagControls
	b.FinishButton = flagControls && b.SessionStarted
	b.StartRaceButton = b.SessionStarted && b.Flag == FlagGreen &&
		!b.RaceInProgress && !b.IsSessionFinished
	b.EndSessionButton = b.IsSessionFinished
	b.NewSessionButton = !b.SessionStarted && s.NewSessionAvailable()
}
