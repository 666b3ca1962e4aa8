package state

import (
	"time"

	"dealroom/internal/rules"
)

// PlayerView is the public projection of a player. Hidden box values never
// appear here.
type PlayerView struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	IsHost         bool    `json:"isHost"`
	Role           Role    `json:"role"`
	IsReady        bool    `json:"isReady"`
	IsConnected    bool    `json:"isConnected"`
	BoxNumber      int     `json:"boxNumber,omitempty"`
	HasDealt       bool    `json:"hasDealt"`
	DealAmount     float64 `json:"dealAmount,omitempty"`
	IsLastStanding bool    `json:"isLastStanding,omitempty"`
	IsActive       bool    `json:"isActive"`
}

// BoxView is the projection of a box for one recipient. Value is present
// only once the box is opened.
type BoxView struct {
	Number      int      `json:"number"`
	IsOpened    bool     `json:"isOpened"`
	Value       *float64 `json:"value,omitempty"`
	IsPlayerBox bool     `json:"isPlayerBox"`
	OwnerID     string   `json:"ownerId,omitempty"`
}

// OpenedBox is piggybacked on the broadcast that first reveals a box.
type OpenedBox struct {
	BoxNumber int     `json:"boxNumber"`
	Value     float64 `json:"value"`
}

// Snapshot is the personalised game-state-update payload.
type Snapshot struct {
	Phase                Phase        `json:"phase"`
	Players              []PlayerView `json:"players"`
	Boxes                []BoxView    `json:"boxes"`
	CurrentRound         int          `json:"currentRound"`
	BoxesToOpenThisRound int          `json:"boxesToOpenThisRound"`
	BoxesOpenedThisRound []int        `json:"boxesOpenedThisRound"`
	RemainingValues      []float64    `json:"remainingValues"`
	EliminatedValues     []float64    `json:"eliminatedValues"`
	CurrentOffer         *float64     `json:"currentOffer,omitempty"`
	OfferExpiresAt       int64        `json:"offerExpiresAt,omitempty"`
	CurrentTurnPlayerID  string       `json:"currentTurnPlayerId,omitempty"`
	TurnExpiresAt        int64        `json:"turnExpiresAt,omitempty"`
	RecentlyOpenedBox    *OpenedBox   `json:"recentlyOpenedBox,omitempty"`
}

// SnapshotFor projects the room for one recipient. Read-only and idempotent;
// the caller must hold the room lock.
func (r *Room) SnapshotFor(recipientID string, recently *OpenedBox) Snapshot {
	recipient := r.Players[recipientID]

	players := make([]PlayerView, 0, len(r.Order))
	for _, p := range r.PlayersInOrder() {
		players = append(players, PlayerView{
			ID:             p.ID,
			Name:           p.Name,
			IsHost:         p.IsHost,
			Role:           p.Role,
			IsReady:        p.IsReady,
			IsConnected:    p.IsConnected,
			BoxNumber:      p.BoxNumber,
			HasDealt:       p.HasDealt,
			DealAmount:     p.DealAmount,
			IsLastStanding: p.IsLastStanding,
			IsActive:       p.Role == RoleContestant && p.BoxNumber != 0 && !p.HasDealt,
		})
	}

	boxes := make([]BoxView, 0, rules.NumBoxes)
	for _, b := range r.Boxes {
		view := BoxView{Number: b.Number, IsOpened: b.IsOpened}
		if b.IsOpened {
			v := b.Value
			view.Value = &v
		}
		if owner := r.BoxOwner(b.Number); owner != nil {
			view.OwnerID = owner.ID
		}
		if recipient != nil && recipient.BoxNumber == b.Number {
			view.IsPlayerBox = true
		}
		boxes = append(boxes, view)
	}

	snap := Snapshot{
		Phase:                r.Phase,
		Players:              players,
		Boxes:                boxes,
		CurrentRound:         r.CurrentRound,
		BoxesToOpenThisRound: rules.BoxesToOpen(r.CurrentRound),
		BoxesOpenedThisRound: append([]int{}, r.BoxesOpenedThisRound...),
		RemainingValues:      append([]float64{}, r.RemainingValues...),
		EliminatedValues:     append([]float64{}, r.EliminatedValues...),
		CurrentTurnPlayerID:  r.CurrentTurnPlayerID,
		RecentlyOpenedBox:    recently,
	}
	if r.Phase == PhaseOffer {
		offer := r.CurrentOffer
		snap.CurrentOffer = &offer
		snap.OfferExpiresAt = epochMs(r.OfferExpiresAt)
	}
	if !r.TurnExpiresAt.IsZero() && r.CurrentTurnPlayerID != "" {
		snap.TurnExpiresAt = epochMs(r.TurnExpiresAt)
	}
	return snap
}

func epochMs(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
