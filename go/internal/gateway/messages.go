package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/beachside/racetrack/go/internal/race"
)

// Client message types accepted over the WebSocket.
const (
	MsgSubmitRoster  = "submit-roster"
	MsgNewSession    = "new-session"
	MsgRemoveSession = "remove-session"
	MsgSetFlag       = "set-flag"
	MsgStartRace     = "start-race"
	MsgFinishRace    = "finish-race"
	MsgEndSession    = "end-session"
	MsgRecordLap     = "record-lap"
	MsgRequestState  = "request-state"
)

// ClientMessage is the inbound wire envelope.
type ClientMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type rosterEntryPayload struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type submitRosterPayload struct {
	Roster []rosterEntryPayload `json:"roster"`
}

type removeSessionPayload struct {
	SessionID string `json:"sessionId"`
}

type setFlagPayload struct {
	Flag string `json:"flag"`
}

type recordLapPayload struct {
	DriverID      string `json:"driverId"`
	ElapsedMillis int64  `json:"elapsedMillis"`
}

// DecodedMessage is a parsed client message: either a state request or a
// command for the hub.
type DecodedMessage struct {
	StateRequest bool
	Command      race.Command
}

// DecodeClientMessage parses an inbound message into a hub command. Shape
// errors are caught here; state guards are not, those belong to the hub.
func DecodeClientMessage(raw []byte) (DecodedMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return DecodedMessage{}, fmt.Errorf("malformed message: %w", err)
	}

	switch msg.Type {
	case MsgRequestState:
		return DecodedMessage{StateRequest: true}, nil

	case MsgSubmitRoster:
		var p submitRosterPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return DecodedMessage{}, fmt.Errorf("malformed roster payload: %w", err)
		}
		entries := make([]race.RosterEntry, len(p.Roster))
		for i, e := range p.Roster {
			entries[i] = race.RosterEntry{SlotID: e.ID, Name: e.Name}
		}
		return DecodedMessage{Command: race.SubmitRoster{Entries: entries}}, nil

	case MsgNewSession:
		return DecodedMessage{Command: race.NewSession{}}, nil

	case MsgRemoveSession:
		var p removeSessionPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return DecodedMessage{}, fmt.Errorf("malformed remove-session payload: %w", err)
		}
		if p.SessionID == "" {
			return DecodedMessage{}, fmt.Errorf("remove-session requires a sessionId")
		}
		return DecodedMessage{Command: race.RemoveSession{SessionID: p.SessionID}}, nil

	case MsgSetFlag:
		var p setFlagPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return DecodedMessage{}, fmt.Errorf("malformed set-flag payload: %w", err)
		}
		flag, ok := race.ParseFlag(p.Flag)
		if !ok {
			return DecodedMessage{}, fmt.Errorf("unknown flag %q", p.Flag)
		}
		return DecodedMessage{Command: race.SetFlag{Flag: flag}}, nil

	case MsgStartRace:
		// The start timestamp is assigned by the hub, never by the client.
		return DecodedMessage{Command: race.StartRace{}}, nil

	case MsgFinishRace:
		return DecodedMessage{Command: race.FinishRace{}}, nil

	case MsgEndSession:
		return DecodedMessage{Command: race.EndSession{}}, nil

	case MsgRecordLap:
		var p recordLapPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return DecodedMessage{}, fmt.Errorf("malformed record-lap payload: %w", err)
		}
		if p.DriverID == "" {
			return DecodedMessage{}, fmt.Errorf("record-lap requires a driverId")
		}
		if p.ElapsedMillis < 0 {
			return DecodedMessage{}, fmt.Errorf("record-lap elapsedMillis must not be negative")
		}
		return DecodedMessage{Command: race.RecordLap{DriverID: p.DriverID, ElapsedMillis: p.ElapsedMillis}}, nil

	default:
		return DecodedMessage{}, fmt.Errorf("unknown message type %q", msg.Type)
	}
}
