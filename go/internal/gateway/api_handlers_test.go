package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beachside/racetrack/go/internal/auth"
	"github.com/beachside/racetrack/go/internal/hub"
	"github.com/beachside/racetrack/go/internal/race"
)

type fixedSnapshotter struct {
	view hub.View
}

func (f fixedSnapshotter) Snapshot(ctx context.Context) (hub.View, error) {
	return f.view, nil
}

func newTestAPIHandler() (*APIHandler, *auth.Service) {
	svc := auth.NewService(auth.Keys{Receptionist: "front", Observer: "lap", Safety: "flag"})
	state := race.DefaultState()
	h := NewAPIHandler(svc, fixedSnapshotter{view: hub.View{State: state, ElapsedMillis: 1500, DevMode: true}})
	return h, svc
}

func TestHandleLogin(t *testing.T) {
	h, svc := newTestAPIHandler()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"key":"flag","role":"safety"}`))
	h.HandleLogin(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp loginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "safety", resp.Role)

	role, err := svc.Authorize(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleSafety, role)
}

func TestHandleLoginRejections(t *testing.T) {
	h, _ := newTestAPIHandler()

	cases := map[string]struct {
		body string
		code int
	}{
		"wrong key":    {`{"key":"nope","role":"safety"}`, http.StatusForbidden},
		"unknown role": {`{"key":"flag","role":"driver"}`, http.StatusBadRequest},
		"bad json":     {`{`, http.StatusBadRequest},
	}

	for name, tc := range cases {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(tc.body))
		h.HandleLogin(rec, req)
		assert.Equal(t, tc.code, rec.Code, name)
	}
}

func TestHandleState(t *testing.T) {
	h, _ := newTestAPIHandler()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	h.HandleState(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		State         race.State `json:"state"`
		ElapsedMillis int64      `json:"elapsedMillis"`
		DevMode       bool       `json:"devMode"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, race.FlagRed, resp.State.Buttons.Flag)
	assert.Equal(t, int64(1500), resp.ElapsedMillis)
	assert.True(t, resp.DevMode)
}
