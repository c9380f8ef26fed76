package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beachside/racetrack/go/internal/race"
)

func testKeys() Keys {
	return Keys{Receptionist: "front", Observer: "lap", Safety: "flag"}
}

func TestLoginIssuesScopedToken(t *testing.T) {
	svc := NewService(testKeys())

	token, err := svc.Login("flag", RoleSafety)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	role, err := svc.Authorize(token)
	require.NoError(t, err)
	assert.Equal(t, RoleSafety, role)
}

func TestLoginRejectsWrongKey(t *testing.T) {
	svc := NewService(testKeys())

	_, err := svc.Login("flag", RoleReceptionist)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login("", RoleObserver)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login("anything", RoleSpectator)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthorize(t *testing.T) {
	svc := NewService(testKeys())

	role, err := svc.Authorize("")
	require.NoError(t, err)
	assert.Equal(t, RoleSpectator, role)

	_, err = svc.Authorize("bogus")
	assert.ErrorIs(t, err, ErrUnknownToken)
}

func TestAllowsRoleCapabilities(t *testing.T) {
	cases := []struct {
		cmd  race.Command
		role Role
	}{
		{race.SubmitRoster{}, RoleReceptionist},
		{race.RemoveSession{}, RoleReceptionist},
		{race.RecordLap{}, RoleObserver},
		{race.NewSession{}, RoleSafety},
		{race.SetFlag{}, RoleSafety},
		{race.StartRace{}, RoleSafety},
		{race.FinishRace{}, RoleSafety},
		{race.EndSession{}, RoleSafety},
	}

	roles := []Role{RoleReceptionist, RoleObserver, RoleSafety, RoleSpectator}

	for _, tc := range cases {
		for _, role := range roles {
			got := Allows(role, tc.cmd)
			assert.Equal(t, role == tc.role, got, "%T as %s", tc.cmd, role)
		}
	}
}

func TestKeysValidate(t *testing.T) {
	assert.NoError(t, testKeys().Validate())
	assert.Error(t, Keys{Receptionist: "front"}.Validate())
}
