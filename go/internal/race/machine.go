package race

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrGuardRejected marks an intent that is legal in shape but illegal in
	// the current state. Duplicate and late intents are expected under
	// concurrent multi-role operation, so callers treat this as a no-op.
	ErrGuardRejected = errors.New("race: rejected by state guard")

	// ErrValidation marks a malformed intent payload. It is reported back to
	// the originating client and never mutates state.
	ErrValidation = errors.New("race: invalid payload")
)

// Rules are the fixed parameters of an event day.
type Rules struct {
	RosterSize   int
	MinLapMillis int64
}

// DefaultRules mirrors the track configuration: eight kart slots and a five
// second minimum lap.
func DefaultRules() Rules {
	return Rules{RosterSize: 8, MinLapMillis: 5000}
}

// RosterEntry is one submitted roster line: a slot key plus a driver name.
type RosterEntry struct {
	SlotID string
	Name   string
}

// Command is the closed set of state-mutating intents.
type Command interface{ isCommand() }

type SubmitRoster struct{ Entries []RosterEntry }

// NewSession promotes the queue head onto the track.
type NewSession struct{}

type RemoveSession struct{ SessionID string }

// SetFlag switches between red, yellow and green while a session is active.
// The finish flag is only reachable through FinishRace.
type SetFlag struct{ Flag Flag }

type StartRace struct{ At time.Time }

type FinishRace struct{}

type EndSession struct{}

type RecordLap struct {
	DriverID      string
	ElapsedMillis int64
}

func (SubmitRoster) isCommand()  {}
func (NewSession) isCommand()    {}
func (RemoveSession) isCommand() {}
func (SetFlag) isCommand()       {}
func (StartRace) isCommand()     {}
func (FinishRace) isCommand()    {}
func (EndSession) isCommand()    {}
func (RecordLap) isCommand()     {}

// EventType names a state change produced by Apply. The hub maps each one
// onto a broadcast to the connected clients.
type EventType string

const (
	EvtQueueChanged        EventType = "QueueChanged"
	EvtSessionStarted      EventType = "SessionStarted"
	EvtFlagChanged         EventType = "FlagChanged"
	EvtRaceStarted         EventType = "RaceStarted"
	EvtRaceFinished        EventType = "RaceFinished"
	EvtSessionEnded        EventType = "SessionEnded"
	EvtLeaderboardUpdated  EventType = "LeaderboardUpdated"
	EvtAvailabilityChanged EventType = "AvailabilityChanged"
)

type Event struct {
	Type EventType
}

// Apply validates cmd against the current state and returns the produced
// events plus the next state. On any error the input state is returned
// unchanged: a transition either fully applies or not at all.
func Apply(s State, rules Rules, cmd Command) ([]Event, State, error) {
	next := s.Clone()

	switch c := cmd.(type) {
	case SubmitRoster:
		session, err := buildSession(c.Entries, rules, next.RosterIndex)
		if err != nil {
			return nil, s, err
		}
		next.RosterIndex++
		next.UpcomingSessions.Enqueue(session)
		next.Recompute()
		return events(EvtQueueChanged, EvtAvailabilityChanged), next, nil

	case NewSession:
		if next.Buttons.SessionStarted || !next.NewSessionAvailable() {
			return nil, s, ErrGuardRejected
		}
		promoted, _ := next.UpcomingSessions.Promote()
		next.ActiveRace = &promoted
		next.Buttons.Flag = FlagRed
		next.Buttons.SessionStarted = true
		next.Recompute()
		return events(EvtSessionStarted, EvtQueueChanged, EvtFlagChanged, EvtAvailabilityChanged), next, nil

	case RemoveSession:
		if next.Buttons.RaceInProgress {
			return nil, s, ErrGuardRejected
		}
		if !next.UpcomingSessions.Remove(c.SessionID) {
			return nil, s, ErrGuardRejected
		}
		next.Recompute()
		return events(EvtQueueChanged, EvtAvailabilityChanged), next, nil

	case SetFlag:
		if c.Flag != FlagRed && c.Flag != FlagYellow && c.Flag != FlagGreen {
			return nil, s, fmt.Errorf("%w: flag %q not settable", ErrValidation, c.Flag)
		}
		if !next.Buttons.SessionStarted || next.Buttons.IsSessionFinished {
			return nil, s, ErrGuardRejected
		}
		next.Buttons.Flag = c.Flag
		next.Recompute()
		return events(EvtFlagChanged, EvtAvailabilityChanged), next, nil

	case StartRace:
		b := next.Buttons
		if !b.SessionStarted || b.Flag != FlagGreen || b.RaceInProgress || b.IsSessionFinished {
			return nil, s, ErrGuardRejected
		}
		at := c.At
		next.Buttons.RaceInProgress = true
		next.SessionStartTime = &at
		next.Recompute()
		return events(EvtRaceStarted, EvtAvailabilityChanged), next, nil

	case FinishRace:
		if !next.Buttons.SessionStarted || next.Buttons.IsSessionFinished {
			return nil, s, ErrGuardRejected
		}
		next.Buttons.Flag = FlagFinish
		next.Buttons.IsSessionFinished = true
		next.SessionStartTime = nil
		next.Recompute()
		return events(EvtRaceFinished, EvtFlagChanged, EvtAvailabilityChanged), next, nil

	case EndSession:
		if !next.Buttons.IsSessionFinished {
			return nil, s, ErrGuardRejected
		}
		next.ActiveRace = nil
		next.SessionStartTime = nil
		next.Buttons.Flag = FlagRed
		next.Buttons.SessionStarted = false
		next.Buttons.RaceInProgress = false
		next.Buttons.IsSessionFinished = false
		next.Recompute()
		return events(EvtSessionEnded, EvtFlagChanged, EvtAvailabilityChanged), next, nil

	case RecordLap:
		b := next.Buttons
		if !b.SessionStarted || !b.RaceInProgress || b.IsSessionFinished || next.ActiveRace == nil {
			return nil, s, ErrGuardRejected
		}
		driver := next.ActiveRace.driver(c.DriverID)
		if driver == nil {
			return nil, s, fmt.Errorf("%w: unknown driver %q", ErrValidation, c.DriverID)
		}
		if err := recordLap(driver, c.ElapsedMillis, rules.MinLapMillis); err != nil {
			return nil, s, fmt.Errorf("%w: %s", ErrGuardRejected, err)
		}
		return events(EvtLeaderboardUpdated), next, nil

	default:
		return nil, s, fmt.Errorf("%w: unsupported command %T", ErrValidation, cmd)
	}
}

func events(types ...EventType) []Event {
	out := make([]Event, len(types))
	for i, t := range types {
		out[i] = Event{Type: t}
	}
	return out
}

// buildSession turns submitted roster lines into a queued session. Empty and
// placeholder names are dropped, the rest must be unique, and every slot has
// to come from the fixed pool. The result keeps slot order.
func buildSession(entries []RosterEntry, rules Rules, rosterIndex int) (Session, error) {
	bySlot := make(map[string]string, len(entries))
	seenNames := make(map[string]bool, len(entries))

	for _, e := range entries {
		name := strings.TrimSpace(e.Name)
		if name == "" || name == "---" {
			continue
		}
		if seenNames[name] {
			return Session{}, fmt.Errorf("%w: duplicate driver name %q", ErrValidation, name)
		}
		if _, dup := bySlot[e.SlotID]; dup {
			return Session{}, fmt.Errorf("%w: duplicate slot %q", ErrValidation, e.SlotID)
		}
		if !slotInPool(e.SlotID, rules.RosterSize) {
			return Session{}, fmt.Errorf("%w: unknown slot %q", ErrValidation, e.SlotID)
		}
		seenNames[name] = true
		bySlot[e.SlotID] = name
	}

	if len(bySlot) == 0 {
		return Session{}, fmt.Errorf("%w: roster has no drivers", ErrValidation)
	}

	session := Session{ID: fmt.Sprintf("Session %d", rosterIndex)}
	for pos := 1; pos <= rules.RosterSize; pos++ {
		slot := SlotID(pos)
		if name, ok := bySlot[slot]; ok {
			session.Roster = append(session.Roster, NewDriver(slot, name))
		}
	}
	return session, nil
}

func slotInPool(slot string, size int) bool {
	for pos := 1; pos <= size; pos++ {
		if SlotID(pos) == slot {
			return true
		}
	}
	return false
}
