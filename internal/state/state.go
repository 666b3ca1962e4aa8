// Package state defines the authoritative room model. All mutation happens
// in the engine under the room's mutex; this package only provides the
// entities, constructors, and derived read helpers.
package state

import (
	"sync"
	"time"

	"dealroom/internal/rules"
)

type Phase string

const (
	PhaseWaiting   Phase = "waiting"
	PhaseSelection Phase = "selection"
	PhasePlaying   Phase = "playing"
	PhaseOffer     Phase = "offer"
	PhaseFinished  Phase = "finished"
)

type Role string

const (
	RoleContestant Role = "contestant"
	RoleSpectator  Role = "spectator"
)

// Player is one participant. The ID is stable across reconnects; the
// ConnectionID tracks the current transport binding and may change.
type Player struct {
	ID           string `json:"id"`
	ConnectionID string `json:"-"`
	Name         string `json:"name"`
	IsHost       bool   `json:"isHost"`
	Role         Role   `json:"role"`
	IsReady      bool   `json:"isReady"`
	IsConnected  bool   `json:"isConnected"`

	// Contestant-only fields. BoxNumber 0 means "not picked yet".
	BoxNumber      int     `json:"boxNumber,omitempty"`
	HasDealt       bool    `json:"hasDealt"`
	DealAmount     float64 `json:"dealAmount,omitempty"`
	BoxValue       float64 `json:"-"`
	RoundDealt     int     `json:"roundDealt,omitempty"`
	IsLastStanding bool    `json:"isLastStanding,omitempty"`
	TimeoutCount   int     `json:"timeoutCount,omitempty"`
	Points         int     `json:"points,omitempty"`
}

// Box is one of the 20 sealed boxes. Value stays hidden until opened.
type Box struct {
	Number   int     `json:"number"`
	Value    float64 `json:"-"`
	IsOpened bool    `json:"isOpened"`
	OpenedBy string  `json:"openedBy,omitempty"`
}

type ChatMessage struct {
	ID          string `json:"id"`
	SenderID    string `json:"senderId"`
	SenderName  string `json:"senderName"`
	Content     string `json:"content"`
	TimestampMs int64  `json:"timestampMs"`
}

// Room is the unit of serialisation: every read and write goes through its
// embedded mutex. Timer handles live on the room so arming a new deadline
// can cancel the previous one.
type Room struct {
	sync.Mutex

	Code       string
	HostID     string
	Password   string
	CreatedAt  time.Time
	StartedAt  time.Time
	FinishedAt time.Time

	Phase Phase

	Players map[string]*Player
	Order   []string // player ids in insertion order; turn derivation uses it

	Boxes [rules.NumBoxes]*Box

	CurrentRound         int
	BoxesOpenedThisRound []int
	RemainingValues      []float64
	EliminatedValues     []float64

	// Offer sub-state; populated iff Phase == PhaseOffer.
	CurrentOffer   float64
	OfferExpiresAt time.Time
	OfferEligible  map[string]bool
	OfferResponses map[string]bool

	// Turn sub-state.
	TurnOrder           []string
	CurrentTurnIndex    int
	CurrentTurnPlayerID string
	TurnExpiresAt       time.Time

	Chat []ChatMessage

	// One-shot timer handles; at most one of each class per room.
	TurnTimer  *time.Timer
	OfferTimer *time.Timer
	DelayTimer *time.Timer
}

// NewRoom builds a waiting room with a freshly shuffled box grid.
func NewRoom(code string, now time.Time, rng *rules.RNG) *Room {
	values := rules.Ladder()
	rng.Shuffle(values)

	r := &Room{
		Code:            code,
		CreatedAt:       now,
		Phase:           PhaseWaiting,
		Players:         make(map[string]*Player),
		RemainingValues: rules.Ladder(),
	}
	for i := range r.Boxes {
		r.Boxes[i] = &Box{Number: i + 1, Value: values[i]}
	}
	return r
}

// AddPlayer registers a player and records insertion order.
func (r *Room) AddPlayer(p *Player) {
	r.Players[p.ID] = p
	r.Order = append(r.Order, p.ID)
}

// PlayersInOrder returns players in insertion order.
func (r *Room) PlayersInOrder() []*Player {
	out := make([]*Player, 0, len(r.Order))
	for _, id := range r.Order {
		if p, ok := r.Players[id]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Contestants returns contestants in insertion order.
func (r *Room) Contestants() []*Player {
	out := make([]*Player, 0, len(r.Order))
	for _, p := range r.PlayersInOrder() {
		if p.Role == RoleContestant {
			out = append(out, p)
		}
	}
	return out
}

// ActiveContestants returns contestants holding a box who have not dealt,
// in insertion order. These are exactly the players eligible for turns and
// offers.
func (r *Room) ActiveContestants() []*Player {
	out := []*Player{}
	for _, p := range r.Contestants() {
		if p.BoxNumber != 0 && !p.HasDealt {
			out = append(out, p)
		}
	}
	return out
}

// Box returns the box with the given 1-based number, or nil.
func (r *Room) Box(number int) *Box {
	if number < 1 || number > rules.NumBoxes {
		return nil
	}
	return r.Boxes[number-1]
}

// BoxOwner returns the contestant whose personal box is number, or nil.
func (r *Room) BoxOwner(number int) *Player {
	for _, p := range r.Players {
		if p.Role == RoleContestant && p.BoxNumber == number {
			return p
		}
	}
	return nil
}

// HasOpenableBox reports whether any box is still closed and not reserved
// as a contestant's personal box.
func (r *Room) HasOpenableBox() bool {
	for _, b := range r.Boxes {
		if !b.IsOpened && r.BoxOwner(b.Number) == nil {
			return true
		}
	}
	return false
}

// AppendChat pushes a message onto the bounded chat ring.
func (r *Room) AppendChat(m ChatMessage) {
	r.Chat = append(r.Chat, m)
	if len(r.Chat) > rules.ChatHistoryLimit {
		r.Chat = r.Chat[len(r.Chat)-rules.ChatHistoryLimit:]
	}
}

// EliminateValue moves one instance of v from the remaining multiset to the
// eliminated one.
func (r *Room) EliminateValue(v float64) {
	for i, rv := range r.RemainingValues {
		if rv == v {
			r.RemainingValues = append(r.RemainingValues[:i], r.RemainingValues[i+1:]...)
			break
		}
	}
	r.EliminatedValues = append(r.EliminatedValues, v)
}

// StopTimers stops every pending timer handle. Fired callbacks re-check
// their guards, so a lost race here is benign.
func (r *Room) StopTimers() {
	if r.TurnTimer != nil {
		r.TurnTimer.Stop()
		r.TurnTimer = nil
	}
	if r.OfferTimer != nil {
		r.OfferTimer.Stop()
		r.OfferTimer = nil
	}
	if r.DelayTimer != nil {
		r.DelayTimer.Stop()
		r.DelayTimer = nil
	}
}
