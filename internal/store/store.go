// Package store is the in-memory room catalog. It owns every live room,
// the player and connection indexes, and the process-lifetime global
// leaderboard. Lock order is always store mutex first, then room mutex.
package store

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dealroom/internal/rules"
	"dealroom/internal/state"
)

// Error messages double as the client-facing ack reasons, hence the casing.
var (
	ErrRoomNotFound    = errors.New("Room not found")
	ErrBadPassword     = errors.New("Incorrect password")
	ErrGameInProgress  = errors.New("Game already in progress")
	ErrRoomFull        = errors.New("Room is full")
	ErrNameRequired    = errors.New("Player name is required")
	ErrCodeRequired    = errors.New("Room code is required")
	ErrPlayerNotFound  = errors.New("Player not found")
	ErrNotHost         = errors.New("Only the host can change the password")
	ErrNotWaiting      = errors.New("Password can only be changed in the lobby")
	ErrPasswordTooLong = errors.New("Password is too long")
)

// TTLConfig sets how long idle rooms survive before the sweeper removes them.
type TTLConfig struct {
	Waiting   time.Duration
	Selection time.Duration
	Finished  time.Duration
}

// DefaultTTLs returns the stock sweep thresholds.
func DefaultTTLs() TTLConfig {
	return TTLConfig{
		Waiting:   rules.WaitingTTL,
		Selection: rules.SelectionTTL,
		Finished:  rules.FinishedTTL,
	}
}

type Store struct {
	mu sync.Mutex

	rooms      map[string]*state.Room // code -> room
	playerRoom map[string]string      // player id -> room code
	connPlayer map[string]string      // connection id -> player id

	global    map[string]*globalRecord // player id -> lifetime record
	globalSeq int

	ttl TTLConfig
	rng *rules.RNG
	log *zap.Logger

	startedAt time.Time
}

func New(rng *rules.RNG, ttl TTLConfig, log *zap.Logger) *Store {
	return &Store{
		rooms:      make(map[string]*state.Room),
		playerRoom: make(map[string]string),
		connPlayer: make(map[string]string),
		global:     make(map[string]*globalRecord),
		ttl:        ttl,
		rng:        rng,
		log:        log,
		startedAt:  time.Now(),
	}
}

// Create builds a new waiting room with the caller as host contestant.
func (s *Store) Create(connectionID, name string, now time.Time) (*state.Room, *state.Player, error) {
	name = rules.SanitizeName(name)
	if name == "" {
		return nil, nil, ErrNameRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	code := s.rng.RoomCode()
	for _, taken := s.rooms[code]; taken; _, taken = s.rooms[code] {
		code = s.rng.RoomCode()
	}

	room := state.NewRoom(code, now, s.rng)
	playerID := uuid.NewString()
	host := &state.Player{
		ID:           playerID,
		ConnectionID: connectionID,
		Name:         name,
		IsHost:       true,
		Role:         state.RoleContestant,
		IsConnected:  true,
	}
	room.HostID = playerID
	room.AddPlayer(host)

	s.rooms[code] = room
	s.playerRoom[playerID] = code
	s.connPlayer[connectionID] = playerID

	s.log.Info("room created",
		zap.String("room", code), zap.String("player", playerID))
	return room, host, nil
}

// Join adds a player to an existing room. Contestants need a free seat and
// a room still in its lobby; selection is accepted alongside waiting on
// purpose, since the lobby is open for joining until start-game regardless
// of which of the two pre-game phases the room reports. Spectators join in
// any phase and are marked ready and dealt so every contestant check passes
// them over.
func (s *Store) Join(code, connectionID, name, password string, asSpectator bool) (*state.Room, *state.Player, error) {
	if code == "" {
		return nil, nil, ErrCodeRequired
	}
	name = rules.SanitizeName(name)
	if name == "" {
		return nil, nil, ErrNameRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[code]
	if !ok {
		return nil, nil, ErrRoomNotFound
	}

	room.Lock()
	defer room.Unlock()

	if room.Password != "" && room.Password != password {
		return nil, nil, ErrBadPassword
	}
	if !asSpectator {
		if room.Phase != state.PhaseWaiting && room.Phase != state.PhaseSelection {
			return nil, nil, ErrGameInProgress
		}
		if len(room.Contestants()) >= rules.MaxContestants {
			return nil, nil, ErrRoomFull
		}
	}

	playerID := uuid.NewString()
	p := &state.Player{
		ID:           playerID,
		ConnectionID: connectionID,
		Name:         name,
		Role:         state.RoleContestant,
		IsConnected:  true,
	}
	if asSpectator {
		p.Role = state.RoleSpectator
		p.IsReady = true
		p.HasDealt = true
	}
	room.AddPlayer(p)

	s.playerRoom[playerID] = code
	s.connPlayer[connectionID] = playerID

	s.log.Info("player joined",
		zap.String("room", code), zap.String("player", playerID),
		zap.Bool("spectator", asSpectator))
	return room, p, nil
}

// Disconnect marks the connection's player as offline and drops the
// connection index. The player stays resident so a reconnect can claim it.
func (s *Store) Disconnect(connectionID string) (*state.Room, *state.Player, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	playerID, ok := s.connPlayer[connectionID]
	if !ok {
		return nil, nil, false
	}
	delete(s.connPlayer, connectionID)

	room, ok := s.rooms[s.playerRoom[playerID]]
	if !ok {
		return nil, nil, false
	}

	room.Lock()
	defer room.Unlock()
	p, ok := room.Players[playerID]
	if !ok {
		return nil, nil, false
	}
	// Only clear if this connection is still the player's current binding;
	// a reconnect may already have superseded it.
	if p.ConnectionID == connectionID {
		p.IsConnected = false
		p.ConnectionID = ""
	}
	return room, p, true
}

// Reconnect rebinds a resident player to a fresh connection.
func (s *Store) Reconnect(playerID, connectionID string) (*state.Room, *state.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	code, ok := s.playerRoom[playerID]
	if !ok {
		return nil, nil, ErrPlayerNotFound
	}
	room, ok := s.rooms[code]
	if !ok {
		return nil, nil, ErrPlayerNotFound
	}

	room.Lock()
	defer room.Unlock()
	p, ok := room.Players[playerID]
	if !ok {
		return nil, nil, ErrPlayerNotFound
	}

	if p.ConnectionID != "" {
		delete(s.connPlayer, p.ConnectionID)
	}
	p.ConnectionID = connectionID
	p.IsConnected = true
	s.connPlayer[connectionID] = playerID

	s.log.Info("player reconnected",
		zap.String("room", code), zap.String("player", playerID))
	return room, p, nil
}

// SetPassword sets or clears the room password. Host only, lobby only,
// and the password must fit the stored bound.
func (s *Store) SetPassword(code, playerID, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[code]
	if !ok {
		return ErrRoomNotFound
	}

	room.Lock()
	defer room.Unlock()
	if room.HostID != playerID {
		return ErrNotHost
	}
	if room.Phase != state.PhaseWaiting {
		return ErrNotWaiting
	}
	if len([]rune(password)) > rules.MaxPasswordLen {
		return ErrPasswordTooLong
	}
	room.Password = password
	return nil
}

// ResolveConn maps a connection to its player and room. The returned room
// is unlocked; callers lock it before touching state.
func (s *Store) ResolveConn(connectionID string) (*state.Room, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	playerID, ok := s.connPlayer[connectionID]
	if !ok {
		return nil, "", false
	}
	room, ok := s.rooms[s.playerRoom[playerID]]
	if !ok {
		return nil, "", false
	}
	return room, playerID, true
}

// Room looks up a live room by code.
func (s *Store) Room(code string) (*state.Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[code]
	return room, ok
}

// Counts reports live room and resident player totals plus process uptime.
func (s *Store) Counts() (rooms, players int, uptime time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms), len(s.playerRoom), time.Since(s.startedAt)
}
