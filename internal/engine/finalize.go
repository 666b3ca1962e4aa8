package engine

import (
	"time"

	"go.uber.org/zap"

	"dealroom/internal/scoring"
	"dealroom/internal/state"
)

type leaderboardPayload struct {
	Leaderboard []scoring.Entry `json:"leaderboard"`
}

// finalizeLocked ends the game: scores every contestant, persists points,
// queues the lifetime-leaderboard updates, and emits the terminal push.
func (e *Engine) finalizeLocked(r *state.Room, fx *effects) {
	r.Phase = state.PhaseFinished
	r.FinishedAt = time.Now()
	r.CurrentOffer = 0
	r.OfferExpiresAt = time.Time{}
	r.OfferEligible = nil
	r.OfferResponses = nil
	r.StopTimers()
	clearTurnLocked(r)

	contestants := seatedContestantsLocked(r)
	maxDeal := 0.0
	for _, p := range contestants {
		if p.DealAmount > maxDeal {
			maxDeal = p.DealAmount
		}
	}
	for _, p := range contestants {
		p.Points = scoring.Points(scoring.Outcome{
			FinalWinnings:     p.DealAmount,
			FinalBoxValue:     p.BoxValue,
			RoundDealt:        p.RoundDealt,
			IsLastStanding:    p.IsLastStanding,
			IsHighestWinnings: p.DealAmount == maxDeal,
			TimeoutCount:      p.TimeoutCount,
		})
		fx.globals = append(fx.globals, globalUpdate{p.ID, p.Name, p.Points})
	}

	entries := finalEntriesLocked(r)
	e.broadcastStateLocked(r, fx, nil)
	for _, p := range r.PlayersInOrder() {
		if p.IsConnected {
			fx.pushTo(p.ConnectionID, "game-ended", leaderboardPayload{entries})
		}
	}

	e.log.Info("game ended",
		zap.String("room", r.Code), zap.Int("contestants", len(contestants)))
}

// seatedContestantsLocked returns contestants who held a box this game.
func seatedContestantsLocked(r *state.Room) []*state.Player {
	out := []*state.Player{}
	for _, p := range r.Contestants() {
		if p.BoxNumber != 0 {
			out = append(out, p)
		}
	}
	return out
}

// finalEntriesLocked builds the ranked final leaderboard from persisted
// player fields. Safe to call again for late joiners.
func finalEntriesLocked(r *state.Room) []scoring.Entry {
	entries := []scoring.Entry{}
	for _, p := range seatedContestantsLocked(r) {
		entries = append(entries, scoring.Entry{
			PlayerID:    p.ID,
			PlayerName:  p.Name,
			Amount:      p.DealAmount,
			Points:      p.Points,
			WasBoxValue: p.IsLastStanding,
		})
	}
	return scoring.Rank(entries)
}

// provisionalEntriesLocked ranks the contestants settled so far, scoring
// them as if the game ended now.
func provisionalEntriesLocked(r *state.Room) []scoring.Entry {
	settled := []*state.Player{}
	maxDeal := 0.0
	for _, p := range seatedContestantsLocked(r) {
		if !p.HasDealt {
			continue
		}
		settled = append(settled, p)
		if p.DealAmount > maxDeal {
			maxDeal = p.DealAmount
		}
	}

	entries := []scoring.Entry{}
	for _, p := range settled {
		entries = append(entries, scoring.Entry{
			PlayerID:   p.ID,
			PlayerName: p.Name,
			Amount:     p.DealAmount,
			Points: scoring.Points(scoring.Outcome{
				FinalWinnings:     p.DealAmount,
				FinalBoxValue:     p.BoxValue,
				RoundDealt:        p.RoundDealt,
				IsLastStanding:    p.IsLastStanding,
				IsHighestWinnings: p.DealAmount == maxDeal,
				TimeoutCount:      p.TimeoutCount,
			}),
			WasBoxValue: p.IsLastStanding,
		})
	}
	return scoring.Rank(entries)
}

// broadcastProvisionalLocked pushes the in-progress standings to everyone.
func (e *Engine) broadcastProvisionalLocked(r *state.Room, fx *effects) {
	entries := provisionalEntriesLocked(r)
	if len(entries) == 0 {
		return
	}
	for _, p := range r.PlayersInOrder() {
		if p.IsConnected {
			fx.pushTo(p.ConnectionID, "leaderboard-update", leaderboardPayload{entries})
		}
	}
}
