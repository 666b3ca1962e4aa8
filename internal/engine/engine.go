// Package engine drives the per-room state machine: lobby setup, turn
// rotation, banker offers, settlement, and the personalised fan-out that
// follows every mutation. All mutation happens under the room mutex;
// network pushes and global-leaderboard writes are deferred until the
// lock is released.
package engine

import (
	"time"

	"go.uber.org/zap"

	"dealroom/internal/rules"
	"dealroom/internal/state"
	"dealroom/internal/store"
)

// Broadcaster delivers one server push to one connection. Implementations
// must be non-blocking; a slow or dead connection drops frames rather than
// stalling the engine.
type Broadcaster interface {
	Push(connectionID, event string, payload any)
}

// Config carries the tunable deadlines. Tests shrink them; production uses
// Defaults.
type Config struct {
	TurnTimeout  time.Duration
	OfferTimeout time.Duration
	OfferDelay   time.Duration
}

func Defaults() Config {
	return Config{
		TurnTimeout:  rules.TurnTimeout,
		OfferTimeout: rules.OfferTimeout,
		OfferDelay:   rules.OfferDelay,
	}
}

type Engine struct {
	store *store.Store
	rng   *rules.RNG
	cfg   Config
	bc    Broadcaster
	log   *zap.Logger
}

func New(st *store.Store, rng *rules.RNG, cfg Config, bc Broadcaster, log *zap.Logger) *Engine {
	return &Engine{store: st, rng: rng, cfg: cfg, bc: bc, log: log}
}

// push is one outbound frame captured under the room lock and sent after it
// is released.
type push struct {
	conn    string
	event   string
	payload any
}

type globalUpdate struct {
	playerID string
	name     string
	points   int
}

// effects is everything a locked operation wants done once the lock drops.
type effects struct {
	pushes  []push
	globals []globalUpdate
}

func (fx *effects) pushTo(conn, event string, payload any) {
	if conn == "" {
		return
	}
	fx.pushes = append(fx.pushes, push{conn, event, payload})
}

func (e *Engine) apply(fx effects) {
	for _, g := range fx.globals {
		e.store.UpdateGlobal(g.playerID, g.name, g.points)
	}
	for _, p := range fx.pushes {
		e.bc.Push(p.conn, p.event, p.payload)
	}
}

// broadcastStateLocked queues a personalised snapshot for every connected
// member of the room. Caller holds the room lock.
func (e *Engine) broadcastStateLocked(r *state.Room, fx *effects, recently *state.OpenedBox) {
	for _, p := range r.PlayersInOrder() {
		if !p.IsConnected {
			continue
		}
		fx.pushTo(p.ConnectionID, "game-state-update", r.SnapshotFor(p.ID, recently))
	}
}

// SelectBox lets a lobby contestant pick (or re-pick) their personal box.
func (e *Engine) SelectBox(r *state.Room, playerID string, boxNumber int) {
	r.Lock()
	var fx effects

	p := r.Players[playerID]
	if p == nil || p.Role != state.RoleContestant || p.IsReady ||
		(r.Phase != state.PhaseWaiting && r.Phase != state.PhaseSelection) {
		r.Unlock()
		return
	}
	box := r.Box(boxNumber)
	if box == nil || box.IsOpened {
		r.Unlock()
		return
	}
	if owner := r.BoxOwner(boxNumber); owner != nil && owner.ID != playerID {
		r.Unlock()
		return
	}

	p.BoxNumber = boxNumber
	e.broadcastStateLocked(r, &fx, nil)
	r.Unlock()
	e.apply(fx)
}

// ToggleReady flips a contestant's ready flag. Requires a chosen box.
func (e *Engine) ToggleReady(r *state.Room, playerID string) {
	r.Lock()
	var fx effects

	p := r.Players[playerID]
	if p == nil || p.Role != state.RoleContestant || p.BoxNumber == 0 ||
		(r.Phase != state.PhaseWaiting && r.Phase != state.PhaseSelection) {
		r.Unlock()
		return
	}

	p.IsReady = !p.IsReady
	e.broadcastStateLocked(r, &fx, nil)
	r.Unlock()
	e.apply(fx)
}

// StartGame moves the room into play: snapshots each contestant's hidden
// box value, builds the rotation, and arms the first turn at a random seat.
func (e *Engine) StartGame(r *state.Room, playerID string) {
	r.Lock()
	var fx effects

	if r.HostID != playerID ||
		(r.Phase != state.PhaseWaiting && r.Phase != state.PhaseSelection) {
		r.Unlock()
		return
	}
	contestants := r.Contestants()
	if len(contestants) < rules.MinContestantsToStart {
		r.Unlock()
		return
	}
	for _, c := range contestants {
		if !c.IsReady || c.BoxNumber == 0 {
			r.Unlock()
			return
		}
	}

	now := time.Now()
	r.Phase = state.PhasePlaying
	r.StartedAt = now
	r.CurrentRound = 1
	r.BoxesOpenedThisRound = nil
	r.TurnOrder = r.TurnOrder[:0]
	for _, c := range contestants {
		c.BoxValue = r.Box(c.BoxNumber).Value
		r.TurnOrder = append(r.TurnOrder, c.ID)
	}
	r.CurrentTurnIndex = e.rng.Intn(len(r.TurnOrder))

	e.log.Info("game started",
		zap.String("room", r.Code), zap.Int("contestants", len(contestants)))

	e.beginTurnCycleLocked(r, &fx)
	e.broadcastStateLocked(r, &fx, nil)
	r.Unlock()
	e.apply(fx)
}

// AfterJoin broadcasts the newcomer to the room and hands the joining
// connection a leaderboard snapshot so a late arrival never misses the
// terminal event.
func (e *Engine) AfterJoin(r *state.Room, playerID string) {
	r.Lock()
	var fx effects
	e.broadcastStateLocked(r, &fx, nil)
	e.leaderboardSnapshotLocked(r, playerID, &fx)
	r.Unlock()
	e.apply(fx)
}

// AfterReconnect mirrors AfterJoin for a rebound identity.
func (e *Engine) AfterReconnect(r *state.Room, playerID string) {
	e.AfterJoin(r, playerID)
}

// leaderboardSnapshotLocked sends the recipient the current standings:
// final if the game is over, provisional otherwise.
func (e *Engine) leaderboardSnapshotLocked(r *state.Room, playerID string, fx *effects) {
	p := r.Players[playerID]
	if p == nil || !p.IsConnected {
		return
	}
	if r.Phase == state.PhaseFinished {
		fx.pushTo(p.ConnectionID, "game-ended", leaderboardPayload{finalEntriesLocked(r)})
		return
	}
	if entries := provisionalEntriesLocked(r); len(entries) > 0 {
		fx.pushTo(p.ConnectionID, "leaderboard-update", leaderboardPayload{entries})
	}
}

// HandleDisconnect marks the player away and tells the room.
func (e *Engine) HandleDisconnect(connectionID string) {
	r, p, ok := e.store.Disconnect(connectionID)
	if !ok {
		return
	}

	r.Lock()
	var fx effects
	e.broadcastStateLocked(r, &fx, nil)
	for _, member := range r.PlayersInOrder() {
		if member.IsConnected {
			fx.pushTo(member.ConnectionID, "player-left", playerLeftPayload{p.ID})
		}
	}
	r.Unlock()
	e.apply(fx)

	e.log.Info("player disconnected",
		zap.String("room", r.Code), zap.String("player", p.ID))
}

type playerLeftPayload struct {
	PlayerID string `json:"playerId"`
}
