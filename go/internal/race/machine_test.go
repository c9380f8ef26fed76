package race

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func submitTwoDrivers(t *testing.T, s State) State {
	t.Helper()
	_, next, err := Apply(s, DefaultRules(), SubmitRoster{Entries: []RosterEntry{
		{SlotID: "Car_1", Name: "Mika"},
		{SlotID: "Car_2", Name: "Kimi"},
	}})
	require.NoError(t, err)
	return next
}

func startedRace(t *testing.T) State {
	t.Helper()
	s := submitTwoDrivers(t, DefaultState())

	_, s, err := Apply(s, DefaultRules(), NewSession{})
	require.NoError(t, err)

	_, s, err = Apply(s, DefaultRules(), SetFlag{Flag: FlagGreen})
	require.NoError(t, err)

	_, s, err = Apply(s, DefaultRules(), StartRace{At: time.Unix(1000, 0)})
	require.NoError(t, err)
	return s
}

func TestSubmitRosterQueuesSession(t *testing.T) {
	s := submitTwoDrivers(t, DefaultState())

	assert.Equal(t, 1, s.UpcomingCount)
	require.NotNil(t, s.NextSession)
	assert.Equal(t, "Session 1", s.NextSession.ID)
	assert.Equal(t, 2, s.RosterIndex)
	require.Len(t, s.NextSession.Roster, 2)
	assert.Equal(t, "Car_1", s.NextSession.Roster[0].ID)
	assert.True(t, s.Buttons.NewSessionButton)
}

func TestSubmitRosterValidation(t *testing.T) {
	rules := DefaultRules()

	cases := map[string][]RosterEntry{
		"empty roster":     {},
		"only placeholder": {{SlotID: "Car_1", Name: "---"}},
		"duplicate name":   {{SlotID: "Car_1", Name: "Mika"}, {SlotID: "Car_2", Name: "Mika"}},
		"duplicate slot":   {{SlotID: "Car_1", Name: "Mika"}, {SlotID: "Car_1", Name: "Kimi"}},
		"unknown slot":     {{SlotID: "Car_99", Name: "Mika"}},
	}

	for name, entries := range cases {
		before := DefaultState()
		_, after, err := Apply(before, rules, SubmitRoster{Entries: entries})
		assert.ErrorIs(t, err, ErrValidation, name)
		assert.Equal(t, before, after, name)
	}
}

func TestStartRaceGuardIsNoOp(t *testing.T) {
	before := DefaultState()

	_, after, err := Apply(before, DefaultRules(), StartRace{At: time.Unix(1000, 0)})

	assert.ErrorIs(t, err, ErrGuardRejected)
	assert.Equal(t, before, after, "guard rejection must leave state identical")
}

func TestNewSessionRequiresQueuedSession(t *testing.T) {
	_, _, err := Apply(DefaultState(), DefaultRules(), NewSession{})
	assert.ErrorIs(t, err, ErrGuardRejected)
}

func TestNewSessionPromotesHead(t *testing.T) {
	s := submitTwoDrivers(t, DefaultState())
	s = submitTwoDriversNamed(t, s, "Ayrton", "Alain")

	_, s, err := Apply(s, DefaultRules(), NewSession{})
	require.NoError(t, err)

	require.NotNil(t, s.ActiveRace)
	assert.Equal(t, "Session 1", s.ActiveRace.ID)
	require.NotNil(t, s.NextSession)
	assert.Equal(t, "Session 2", s.NextSession.ID)
	assert.Equal(t, 1, s.UpcomingCount)
	assert.Equal(t, FlagRed, s.Buttons.Flag)
	assert.True(t, s.Buttons.SessionStarted)
	assert.False(t, s.Buttons.NewSessionButton)
	assert.True(t, s.Buttons.SafeButton)
	assert.True(t, s.Buttons.FinishButton)
}

func submitTwoDriversNamed(t *testing.T, s State, a, b string) State {
	t.Helper()
	_, next, err := Apply(s, DefaultRules(), SubmitRoster{Entries: []RosterEntry{
		{SlotID: "Car_1", Name: a},
		{SlotID: "Car_2", Name: b},
	}})
	require.NoError(t, err)
	return next
}

func TestSetFlagGuards(t *testing.T) {
	// No session yet: every flag change is a no-op.
	_, _, err := Apply(DefaultState(), DefaultRules(), SetFlag{Flag: FlagGreen})
	assert.ErrorIs(t, err, ErrGuardRejected)

	// Finish is not reachable through SetFlag at all.
	s := startedRace(t)
	_, _, err = Apply(s, DefaultRules(), SetFlag{Flag: FlagFinish})
	assert.ErrorIs(t, err, ErrValidation)

	// Red and yellow remain selectable during the race.
	_, s, err = Apply(s, DefaultRules(), SetFlag{Flag: FlagYellow})
	require.NoError(t, err)
	assert.Equal(t, FlagYellow, s.Buttons.Flag)
	assert.False(t, s.Buttons.StartRaceButton)
}

func TestSafeFlagEnablesStartRace(t *testing.T) {
	s := submitTwoDrivers(t, DefaultState())
	_, s, err := Apply(s, DefaultRules(), NewSession{})
	require.NoError(t, err)

	assert.False(t, s.Buttons.StartRaceButton)

	_, s, err = Apply(s, DefaultRules(), SetFlag{Flag: FlagGreen})
	require.NoError(t, err)
	assert.True(t, s.Buttons.StartRaceButton)
}

func TestStartRaceCapturesStartTime(t *testing.T) {
	s := startedRace(t)

	assert.True(t, s.Buttons.RaceInProgress)
	require.NotNil(t, s.SessionStartTime)
	assert.Equal(t, time.Unix(1000, 0), *s.SessionStartTime)
	assert.False(t, s.Buttons.StartRaceButton)
	assert.False(t, s.Buttons.NewSessionButton)
	assert.True(t, s.Buttons.FinishButton)

	// A duplicate start is swallowed.
	_, after, err := Apply(s, DefaultRules(), StartRace{At: time.Unix(2000, 0)})
	assert.ErrorIs(t, err, ErrGuardRejected)
	assert.Equal(t, s, after)
}

func TestFinishRace(t *testing.T) {
	s := startedRace(t)

	evts, s, err := Apply(s, DefaultRules(), FinishRace{})
	require.NoError(t, err)

	assert.Equal(t, FlagFinish, s.Buttons.Flag)
	assert.True(t, s.Buttons.IsSessionFinished)
	assert.True(t, s.Buttons.EndSessionButton)
	assert.Nil(t, s.SessionStartTime)
	assert.False(t, s.Buttons.SafeButton)

	var types []EventType
	for _, e := range evts {
		types = append(types, e.Type)
	}
	assert.Contains(t, types, EvtRaceFinished)
	assert.Contains(t, types, EvtFlagChanged)

	// Finishing twice is a no-op.
	_, after, err := Apply(s, DefaultRules(), FinishRace{})
	assert.ErrorIs(t, err, ErrGuardRejected)
	assert.Equal(t, s, after)
}

func TestEndSessionResets(t *testing.T) {
	s := startedRace(t)
	s = submitTwoDriversNamed(t, s, "Ayrton", "Alain")

	_, s, err := Apply(s, DefaultRules(), FinishRace{})
	require.NoError(t, err)

	_, s, err = Apply(s, DefaultRules(), EndSession{})
	require.NoError(t, err)

	assert.Nil(t, s.ActiveRace)
	assert.Equal(t, FlagRed, s.Buttons.Flag)
	assert.False(t, s.Buttons.SessionStarted)
	assert.False(t, s.Buttons.RaceInProgress)
	assert.False(t, s.Buttons.IsSessionFinished)
	assert.True(t, s.Buttons.NewSessionButton, "one session is still queued")

	// End again: guard rejects.
	_, _, err = Apply(s, DefaultRules(), EndSession{})
	assert.ErrorIs(t, err, ErrGuardRejected)
}

func TestEndSessionWithEmptyQueueDisablesNewSession(t *testing.T) {
	s := startedRace(t)

	_, s, err := Apply(s, DefaultRules(), FinishRace{})
	require.NoError(t, err)
	_, s, err = Apply(s, DefaultRules(), EndSession{})
	require.NoError(t, err)

	assert.False(t, s.Buttons.NewSessionButton)
	assert.Nil(t, s.NextSession)
}

func TestRemoveSessionGuards(t *testing.T) {
	s := submitTwoDrivers(t, DefaultState())
	s = submitTwoDriversNamed(t, s, "Ayrton", "Alain")

	_, s, err := Apply(s, DefaultRules(), RemoveSession{SessionID: "Session 1"})
	require.NoError(t, err)
	assert.Equal(t, 1, s.UpcomingCount)
	assert.Equal(t, "Session 2", s.NextSession.ID)

	// Unknown id: no-op.
	_, _, err = Apply(s, DefaultRules(), RemoveSession{SessionID: "Session 1"})
	assert.ErrorIs(t, err, ErrGuardRejected)
}

func TestRecordLapLifecycle(t *testing.T) {
	rules := DefaultRules()
	s := startedRace(t)

	// First crossing only opens the count.
	_, s, err := Apply(s, rules, RecordLap{DriverID: "Car_1", ElapsedMillis: 1_000})
	require.NoError(t, err)
	d := s.ActiveRace.driver("Car_1")
	assert.Equal(t, 1, d.LapCount)
	assert.False(t, d.FastestLap.IsSet())

	// Second crossing completes the first timed lap.
	_, s, err = Apply(s, rules, RecordLap{DriverID: "Car_1", ElapsedMillis: 63_000})
	require.NoError(t, err)
	d = s.ActiveRace.driver("Car_1")
	assert.Equal(t, 2, d.LapCount)
	assert.Equal(t, int64(63_000), d.FastestLap.Millis())
	assert.Equal(t, int64(63_000), d.CurrentLap.Millis())

	// A faster lap replaces the fastest and yields a negative difference.
	_, s, err = Apply(s, rules, RecordLap{DriverID: "Car_1", ElapsedMillis: 120_000})
	require.NoError(t, err)
	d = s.ActiveRace.driver("Car_1")
	assert.Equal(t, int64(57_000), d.FastestLap.Millis())
	assert.Equal(t, int64(-6_000), d.TimeDifference.Millis())
	assert.Equal(t, 3, d.LapCount)
}

func TestRecordLapUnderMinimumIsRejected(t *testing.T) {
	rules := DefaultRules()
	s := startedRace(t)

	_, s, err := Apply(s, rules, RecordLap{DriverID: "Car_1", ElapsedMillis: 1_000})
	require.NoError(t, err)

	before := s
	_, after, err := Apply(s, rules, RecordLap{DriverID: "Car_1", ElapsedMillis: 4_500})
	assert.ErrorIs(t, err, ErrGuardRejected)
	assert.Equal(t, before, after, "lap count must not increment")
}

func TestRecordLapValidation(t *testing.T) {
	s := startedRace(t)

	_, _, err := Apply(s, DefaultRules(), RecordLap{DriverID: "Car_9", ElapsedMillis: 10_000})
	assert.ErrorIs(t, err, ErrValidation)

	// No race running: guard rejection.
	_, _, err = Apply(DefaultState(), DefaultRules(), RecordLap{DriverID: "Car_1", ElapsedMillis: 10_000})
	assert.ErrorIs(t, err, ErrGuardRejected)
}

func TestLeaderboardUsesLowerOfTwoLaps(t *testing.T) {
	rules := DefaultRules()
	s := startedRace(t)

	for _, elapsed := range []int64{0, 61_000, 119_500} {
		var err error
		_, s, err = Apply(s, rules, RecordLap{DriverID: "Car_1", ElapsedMillis: elapsed})
		require.NoError(t, err)
	}

	ranked := Rank(s.ActiveRace.Roster)
	assert.Equal(t, "Car_1", ranked[0].ID)
	assert.Equal(t, int64(58_500), ranked[0].FastestLap.Millis())
	assert.Equal(t, "Car_2", ranked[1].ID, "driver without laps ranks last")
}
