package hub

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/beachside/racetrack/go/internal/auth"
	"github.com/beachside/racetrack/go/internal/race"
	"github.com/beachside/racetrack/go/internal/store"
)

// Broadcaster delivers hub events to connected clients. The websocket
// connection manager is the production implementation.
type Broadcaster interface {
	Broadcast(ev Event)
	SendTo(connID string, ev Event)
}

// Config holds the fixed runtime parameters of the hub.
type Config struct {
	TickInterval    time.Duration
	FinishThreshold time.Duration
	DevMode         bool
	Rules           race.Rules
}

func DefaultConfig() Config {
	return Config{
		TickInterval:    10 * time.Millisecond,
		FinishThreshold: 10 * time.Minute,
		Rules:           race.DefaultRules(),
	}
}

// View is a consistent read of the hub state for HTTP handlers and tests.
type View struct {
	State         race.State
	ElapsedMillis int64
	Version       uint64
	DevMode       bool
}

type fuseState int

const (
	fuseNotArmed fuseState = iota
	fuseArmed
	fuseFired
)

type message interface{ isHubMessage() }

type intentMessage struct {
	connID string
	role   auth.Role
	cmd    race.Command
}

type stateRequestMessage struct {
	connID string
}

type viewRequestMessage struct {
	reply chan View
}

func (intentMessage) isHubMessage()       {}
func (stateRequestMessage) isHubMessage() {}
func (viewRequestMessage) isHubMessage()  {}

type savePoint struct {
	version uint64
	state   race.State
}

// Hub owns the authoritative race state. Every mutation, timer tick and
// broadcast goes through its single Run loop, so no locking is needed on
// the state itself.
type Hub struct {
	cfg   Config
	clock clockwork.Clock
	store store.Store
	bcast Broadcaster

	inbox chan message
	saves chan savePoint

	state   race.State
	version uint64
	elapsed time.Duration
	ticker  clockwork.Ticker
	fuse    fuseState
}

// New loads the persisted state and prepares the hub. Run must be called
// before clients connect.
func New(cfg Config, st store.Store, bcast Broadcaster, clock clockwork.Clock) *Hub {
	state, err := st.Load()
	if err != nil {
		log.Error().Err(err).Msg("failed to load persisted state, starting from default")
		state = race.DefaultState()
	}

	h := &Hub{
		cfg:   cfg,
		clock: clock,
		store: st,
		bcast: bcast,
		inbox: make(chan message, 64),
		saves: make(chan savePoint, 1),
		state: state,
	}
	h.recover()
	return h
}

// recover reconciles a restored state with the wall clock. A race that was
// in progress resumes with the elapsed time recomputed from its recorded
// start; a snapshot that claims a running race but has no start timestamp
// is unrecoverable, so the race is marked not started rather than guessing.
func (h *Hub) recover() {
	if !h.state.Buttons.RaceInProgress {
		return
	}

	start := h.state.SessionStartTime
	if start == nil || h.clock.Now().Before(*start) {
		log.Warn().Msg("persisted state has a running race without a usable start time, clearing it")
		h.state.Buttons.RaceInProgress = false
		h.state.SessionStartTime = nil
		h.state.Recompute()
		h.version++
		h.queueSave()
		return
	}

	h.elapsed = h.clock.Since(*start)
	h.fuse = fuseArmed
	log.Info().
		Int64("elapsed_ms", h.elapsed.Milliseconds()).
		Msg("resuming race timer from persisted state")
}

// Run executes the hub loop until ctx is cancelled. It must be called
// exactly once.
func (h *Hub) Run(ctx context.Context) {
	go h.persistLoop(ctx)

	if h.state.Buttons.RaceInProgress {
		h.startTicker()
	}

	log.Info().
		Dur("tick_interval", h.cfg.TickInterval).
		Dur("finish_threshold", h.cfg.FinishThreshold).
		Bool("dev_mode", h.cfg.DevMode).
		Msg("hub started")

	for {
		select {
		case <-ctx.Done():
			h.stopTicker()
			if err := h.store.Save(h.state); err != nil {
				log.Error().Err(err).Msg("final snapshot save failed")
			}
			log.Info().Msg("hub stopped")
			return
		case m := <-h.inbox:
			switch msg := m.(type) {
			case intentMessage:
				h.handleIntent(msg)
			case stateRequestMessage:
				h.bcast.SendTo(msg.connID, h.snapshotEvent())
			case viewRequestMessage:
				msg.reply <- View{
					State:         h.state.Clone(),
					ElapsedMillis: h.elapsed.Milliseconds(),
					Version:       h.version,
					DevMode:       h.cfg.DevMode,
				}
			}
		case <-h.tickChan():
			h.handleTick()
		}
	}
}

// SubmitIntent queues a client command for the hub loop.
func (h *Hub) SubmitIntent(connID string, role auth.Role, cmd race.Command) {
	h.inbox <- intentMessage{connID: connID, role: role, cmd: cmd}
}

// RequestState asks the hub to send a full snapshot to one connection.
func (h *Hub) RequestState(connID string) {
	h.inbox <- stateRequestMessage{connID: connID}
}

// Snapshot returns a consistent view of the current state. Because the
// inbox is FIFO, a snapshot also acts as a barrier for previously
// submitted intents.
func (h *Hub) Snapshot(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	select {
	case h.inbox <- viewRequestMessage{reply: reply}:
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}

func (h *Hub) handleIntent(m intentMessage) {
	cmd := m.cmd

	// Race start time is assigned here, not by the client.
	if _, ok := cmd.(race.StartRace); ok {
		cmd = race.StartRace{At: h.clock.Now()}
	}

	if !auth.Allows(m.role, cmd) {
		log.Warn().
			Str("conn_id", m.connID).
			Str("role", string(m.role)).
			Msgf("rejected %T, role not permitted", cmd)
		h.bcast.SendTo(m.connID, NewErrorEvent(h.clock.Now(), "forbidden", "your role may not perform this action"))
		return
	}

	h.apply(cmd, m.connID)
}

// apply runs one transition. Guard rejections are dropped silently,
// validation errors go back to the sender, and successful transitions
// update timers, queue a snapshot save and fan out broadcasts.
func (h *Hub) apply(cmd race.Command, connID string) {
	evts, next, err := race.Apply(h.state, h.cfg.Rules, cmd)
	if err != nil {
		if errors.Is(err, race.ErrValidation) && connID != "" {
			h.bcast.SendTo(connID, NewErrorEvent(h.clock.Now(), "validation", err.Error()))
		}
		log.Debug().Err(err).Msgf("%T not applied", cmd)
		return
	}

	h.state = next
	h.version++
	h.runTimerEffects(evts)
	h.queueSave()
	h.publish(evts)
}

// runTimerEffects starts, stops and resets the race timer in lockstep
// with the lifecycle transitions that produced the events.
func (h *Hub) runTimerEffects(evts []race.Event) {
	for _, ev := range evts {
		switch ev.Type {
		case race.EvtRaceStarted:
			h.elapsed = 0
			h.fuse = fuseArmed
			h.startTicker()
		case race.EvtRaceFinished:
			h.stopTicker()
		case race.EvtSessionEnded:
			h.stopTicker()
			h.elapsed = 0
			h.fuse = fuseNotArmed
			h.bcast.Broadcast(NewEvent(EventTypeTimerTick, h.clock.Now(), TimerTickPayload{ElapsedMillis: 0}))
		}
	}
}

func (h *Hub) startTicker() {
	if h.ticker != nil {
		return
	}
	h.ticker = h.clock.NewTicker(h.cfg.TickInterval)
}

func (h *Hub) stopTicker() {
	if h.ticker == nil {
		return
	}
	h.ticker.Stop()
	h.ticker = nil
}

func (h *Hub) tickChan() <-chan time.Time {
	if h.ticker == nil {
		return nil
	}
	return h.ticker.Chan()
}

// handleTick advances the race clock and fires the finish fuse exactly
// once when the race duration is reached.
func (h *Hub) handleTick() {
	if start := h.state.SessionStartTime; start != nil {
		h.elapsed = h.clock.Since(*start)
	} else {
		h.elapsed += h.cfg.TickInterval
	}

	h.bcast.Broadcast(NewEvent(EventTypeTimerTick, h.clock.Now(), TimerTickPayload{
		ElapsedMillis: h.elapsed.Milliseconds(),
	}))

	if h.fuse == fuseArmed && h.elapsed >= h.cfg.FinishThreshold {
		h.fuse = fuseFired
		log.Info().
			Int64("elapsed_ms", h.elapsed.Milliseconds()).
			Msg("race duration reached, finishing race")
		h.apply(race.FinishRace{}, "")
	}
}

// publish maps transition events onto client broadcasts built from the
// post-transition state.
func (h *Hub) publish(evts []race.Event) {
	now := h.clock.Now()

	for _, ev := range evts {
		switch ev.Type {
		case race.EvtQueueChanged:
			h.bcast.Broadcast(NewEvent(EventTypeQueueChanged, now, QueueChangedPayload{
				Count:    h.state.UpcomingCount,
				Next:     h.state.NextSession,
				Sessions: h.state.UpcomingSessions,
			}))
		case race.EvtSessionStarted:
			h.bcast.Broadcast(NewEvent(EventTypeSessionStarted, now, SessionStartedPayload{
				Session: h.state.ActiveRace,
			}))
		case race.EvtFlagChanged:
			h.bcast.Broadcast(NewEvent(EventTypeFlagChanged, now, FlagChangedPayload{
				Flag: h.state.Buttons.Flag,
			}))
		case race.EvtRaceStarted:
			h.bcast.Broadcast(NewEvent(EventTypeRaceStarted, now, RaceStartedPayload{
				StartedAt: *h.state.SessionStartTime,
			}))
		case race.EvtRaceFinished:
			h.bcast.Broadcast(NewEvent(EventTypeRaceFinished, now, struct{}{}))
		case race.EvtSessionEnded:
			h.bcast.Broadcast(NewEvent(EventTypeSessionEnded, now, struct{}{}))
		case race.EvtLeaderboardUpdated:
			var standings []race.Driver
			if h.state.ActiveRace != nil {
				standings = race.Rank(h.state.ActiveRace.Roster)
			}
			h.bcast.Broadcast(NewEvent(EventTypeLeaderboardUpdated, now, LeaderboardPayload{
				Session:   h.state.ActiveRace,
				Standings: standings,
			}))
		case race.EvtAvailabilityChanged:
			h.bcast.Broadcast(NewEvent(EventTypeSessionAvailability, now, SessionAvailabilityPayload{
				Available: h.state.NewSessionAvailable(),
			}))
		}
	}
}

func (h *Hub) snapshotEvent() Event {
	return NewEvent(EventTypeStateSnapshot, h.clock.Now(), StateSnapshotPayload{
		State:         h.state.Clone(),
		ElapsedMillis: h.elapsed.Milliseconds(),
		DevMode:       h.cfg.DevMode,
	})
}

// queueSave hands the current state to the persister without blocking the
// loop. Only the newest pending snapshot is kept: intermediate versions
// are safe to skip because each snapshot is complete.
func (h *Hub) queueSave() {
	sp := savePoint{version: h.version, state: h.state.Clone()}
	for {
		select {
		case h.saves <- sp:
			return
		default:
		}
		select {
		case <-h.saves:
		default:
		}
	}
}

// persistLoop writes queued snapshots to the store. A failed save is
// logged and dropped; the state lives in memory and the next transition
// queues a fresh snapshot.
func (h *Hub) persistLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case sp := <-h.saves:
			if err := h.store.Save(sp.state); err != nil {
				log.Error().Err(err).Uint64("version", sp.version).Msg("snapshot save failed")
			}
		}
	}
}
