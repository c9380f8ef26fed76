package hub

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/beachside/racetrack/go/internal/race"
)

// EventType enumerates every broadcast the hub can fan out. Clients derive
// their entire view from these events and nothing else.
type EventType string

const (
	EventTypeStateSnapshot       EventType = "StateSnapshot"
	EventTypeFlagChanged         EventType = "FlagChanged"
	EventTypeTimerTick           EventType = "TimerTick"
	EventTypeLeaderboardUpdated  EventType = "LeaderboardUpdated"
	EventTypeQueueChanged        EventType = "QueueChanged"
	EventTypeSessionStarted      EventType = "SessionStarted"
	EventTypeRaceStarted         EventType = "RaceStarted"
	EventTypeRaceFinished        EventType = "RaceFinished"
	EventTypeSessionEnded        EventType = "SessionEnded"
	EventTypeSessionAvailability EventType = "SessionAvailability"
	EventTypeError               EventType = "Error"
)

// Event is the wire envelope for every server-to-client message.
type Event struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// StateSnapshotPayload carries everything a freshly connected client needs
// to render its view without further round-trips.
type StateSnapshotPayload struct {
	State         race.State `json:"state"`
	ElapsedMillis int64      `json:"elapsedMillis"`
	DevMode       bool       `json:"devMode"`
}

type FlagChangedPayload struct {
	Flag race.Flag `json:"flag"`
}

type TimerTickPayload struct {
	ElapsedMillis int64 `json:"elapsedMillis"`
}

// LeaderboardPayload carries the active session plus its ranked standings,
// so every display shows the identical ordering.
type LeaderboardPayload struct {
	Session   *race.Session `json:"session"`
	Standings []race.Driver `json:"standings"`
}

type QueueChangedPayload struct {
	Count    int           `json:"count"`
	Next     *race.Session `json:"next"`
	Sessions race.Queue    `json:"sessions"`
}

type SessionStartedPayload struct {
	Session *race.Session `json:"session"`
}

type RaceStartedPayload struct {
	StartedAt time.Time `json:"startedAt"`
}

type SessionAvailabilityPayload struct {
	Available bool `json:"available"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewEvent wraps a payload into the broadcast envelope.
func NewEvent(t EventType, at time.Time, payload any) Event {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(t)).Msg("failed to marshal event payload")
		data = []byte("{}")
	}
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		Timestamp: at,
		Data:      data,
	}
}

// NewErrorEvent builds the per-client rejection event.
func NewErrorEvent(at time.Time, code, message string) Event {
	return NewEvent(EventTypeError, at, ErrorPayload{Code: code, Message: message})
}
