package auth

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/beachside/racetrack/go/internal/race"
)

// Role scopes a connection to the intents its view may submit.
type Role string

const (
	RoleReceptionist Role = "receptionist"
	RoleObserver     Role = "observer"
	RoleSafety       Role = "safety"
	RoleSpectator    Role = "spectator"
)

var (
	ErrInvalidCredentials = errors.New("auth: invalid key or role")
	ErrUnknownToken       = errors.New("auth: unknown token")
)

func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleReceptionist, RoleObserver, RoleSafety:
		return Role(s), true
	default:
		return "", false
	}
}

// Keys holds the per-role access keys, loaded from the environment.
type Keys struct {
	Receptionist string
	Observer     string
	Safety       string
}

// Validate reports whether every role key is configured. The server refuses
// to launch otherwise.
func (k Keys) Validate() error {
	if k.Receptionist == "" || k.Observer == "" || k.Safety == "" {
		return errors.New("auth: missing role key in environment")
	}
	return nil
}

// Service checks presented credentials and issues runtime tokens. Tokens
// live for the process lifetime, like the original runtime key registry.
type Service struct {
	keys Keys

	mu     sync.RWMutex
	tokens map[string]Role
}

func NewService(keys Keys) *Service {
	return &Service{
		keys:   keys,
		tokens: make(map[string]Role),
	}
}

// Login verifies a key against the requested role and returns a session
// token scoped to that role.
func (s *Service) Login(key string, role Role) (string, error) {
	var expected string
	switch role {
	case RoleReceptionist:
		expected = s.keys.Receptionist
	case RoleObserver:
		expected = s.keys.Observer
	case RoleSafety:
		expected = s.keys.Safety
	default:
		return "", ErrInvalidCredentials
	}

	if key == "" || key != expected {
		return "", ErrInvalidCredentials
	}

	token := uuid.NewString()

	s.mu.Lock()
	s.tokens[token] = role
	s.mu.Unlock()

	log.Info().Str("role", string(role)).Msg("login accepted")
	return token, nil
}

// Authorize resolves a token back to its role. Spectator displays connect
// without a token and get the read-only role.
func (s *Service) Authorize(token string) (Role, error) {
	if token == "" {
		return RoleSpectator, nil
	}

	s.mu.RLock()
	role, ok := s.tokens[token]
	s.mu.RUnlock()

	if !ok {
		return "", ErrUnknownToken
	}
	return role, nil
}

// Allows maps a role to the commands its view is permitted to submit:
// receptionist handles rosters and the session queue, observer records
// laps, safety controls flags, the race and session lifecycle.
func Allows(role Role, cmd race.Command) bool {
	switch cmd.(type) {
	case race.SubmitRoster, race.RemoveSession:
		return role == RoleReceptionist
	case race.RecordLap:
		return role == RoleObserver
	case race.NewSession, race.SetFlag, race.StartRace, race.FinishRace, race.EndSession:
		return role == RoleSafety
	default:
		return false
	}
}
