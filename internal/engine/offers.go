package engine

import (
	"time"

	"go.uber.org/zap"

	"dealroom/internal/banker"
	"dealroom/internal/state"
)

// beginOfferLocked moves the room into the offer phase: computes the
// banker's number, freezes the eligible set, and starts the response clock.
// Caller holds the room lock and broadcasts afterwards.
func (e *Engine) beginOfferLocked(r *state.Room, fx *effects) {
	clearTurnLocked(r)

	active := r.ActiveContestants()
	if len(active) == 0 {
		// Everyone settled mid-round; nothing to offer.
		e.finalizeLocked(r, fx)
		return
	}

	round := r.CurrentRound
	r.Phase = state.PhaseOffer
	r.CurrentOffer = banker.Offer(r.RemainingValues, round, e.rng)
	r.OfferExpiresAt = time.Now().Add(e.cfg.OfferTimeout)
	r.OfferEligible = make(map[string]bool, len(active))
	r.OfferResponses = make(map[string]bool, len(active))
	for _, p := range active {
		r.OfferEligible[p.ID] = true
	}

	if r.OfferTimer != nil {
		r.OfferTimer.Stop()
	}
	r.OfferTimer = time.AfterFunc(e.cfg.OfferTimeout, func() {
		e.onOfferTimeout(r, round)
	})

	e.log.Info("offer made",
		zap.String("room", r.Code), zap.Int("round", round),
		zap.Float64("offer", r.CurrentOffer), zap.Int("eligible", len(active)))
}

// DealResponse records one eligible contestant's accept or reject.
// Acceptance settles the player immediately; the offer resolves once every
// eligible player has answered.
func (e *Engine) DealResponse(r *state.Room, playerID string, accepted bool) {
	r.Lock()
	var fx effects

	if r.Phase != state.PhaseOffer || !r.OfferEligible[playerID] {
		r.Unlock()
		return
	}
	if _, responded := r.OfferResponses[playerID]; responded {
		r.Unlock()
		return
	}
	r.OfferResponses[playerID] = accepted

	if accepted {
		e.settleDealLocked(r, r.Players[playerID])
	}

	if len(r.OfferResponses) >= len(r.OfferEligible) {
		e.resolveOfferLocked(r, &fx)
	} else {
		e.broadcastStateLocked(r, &fx, nil)
		e.broadcastProvisionalLocked(r, &fx)
	}

	r.Unlock()
	e.apply(fx)
}

// settleDealLocked locks in the current offer for one contestant: marks
// them dealt, reveals their personal box, and drops them from the rotation.
func (e *Engine) settleDealLocked(r *state.Room, p *state.Player) {
	p.HasDealt = true
	p.DealAmount = r.CurrentOffer
	p.RoundDealt = r.CurrentRound

	if box := r.Box(p.BoxNumber); box != nil && !box.IsOpened {
		box.IsOpened = true
		box.OpenedBy = p.ID
		r.EliminateValue(box.Value)
	}
	removeFromRotationLocked(r, p.ID)

	e.log.Info("deal accepted",
		zap.String("room", r.Code), zap.String("player", p.ID),
		zap.Float64("amount", p.DealAmount), zap.Int("round", p.RoundDealt))
}

// removeFromRotationLocked drops a settled player from turnOrder, shifting
// the index so the next round resumes on the same neighbour.
func removeFromRotationLocked(r *state.Room, playerID string) {
	for i, id := range r.TurnOrder {
		if id != playerID {
			continue
		}
		r.TurnOrder = append(r.TurnOrder[:i], r.TurnOrder[i+1:]...)
		if i <= r.CurrentTurnIndex {
			r.CurrentTurnIndex--
			if r.CurrentTurnIndex < 0 {
				r.CurrentTurnIndex = 0
			}
		}
		return
	}
}

// onOfferTimeout fires when the response window closes. Non-responders are
// treated as rejecting and charged a timeout.
func (e *Engine) onOfferTimeout(r *state.Room, round int) {
	r.Lock()
	var fx effects

	if r.Phase != state.PhaseOffer || r.CurrentRound != round {
		r.Unlock()
		return
	}
	for id := range r.OfferEligible {
		if _, responded := r.OfferResponses[id]; responded {
			continue
		}
		r.OfferResponses[id] = false
		if p := r.Players[id]; p != nil {
			p.TimeoutCount++
			e.log.Info("offer timed out",
				zap.String("room", r.Code), zap.String("player", id))
		}
	}
	e.resolveOfferLocked(r, &fx)

	r.Unlock()
	e.apply(fx)
}

// resolveOfferLocked ends the offer phase: finishes the game when at most
// one contestant remains undealt, otherwise starts the next round.
func (e *Engine) resolveOfferLocked(r *state.Room, fx *effects) {
	if r.OfferTimer != nil {
		r.OfferTimer.Stop()
		r.OfferTimer = nil
	}

	undealt := r.ActiveContestants()
	switch len(undealt) {
	case 0:
		e.finalizeLocked(r, fx)
	case 1:
		e.settleLastStandingLocked(r, undealt[0])
		e.finalizeLocked(r, fx)
	default:
		r.CurrentRound++
		r.BoxesOpenedThisRound = nil
		r.CurrentOffer = 0
		r.OfferExpiresAt = time.Time{}
		r.OfferEligible = nil
		r.OfferResponses = nil
		r.Phase = state.PhasePlaying
		e.beginTurnCycleLocked(r, fx)
		e.broadcastStateLocked(r, fx, nil)
		e.broadcastProvisionalLocked(r, fx)
	}
}

// settleLastStandingLocked reveals the final contestant's personal box as
// their winnings. The reveal records no opener.
func (e *Engine) settleLastStandingLocked(r *state.Room, p *state.Player) {
	if box := r.Box(p.BoxNumber); box != nil && !box.IsOpened {
		box.IsOpened = true
		r.EliminateValue(box.Value)
	}
	p.HasDealt = true
	p.DealAmount = p.BoxValue
	p.RoundDealt = r.CurrentRound
	p.IsLastStanding = true
	removeFromRotationLocked(r, p.ID)

	e.log.Info("last standing revealed",
		zap.String("room", r.Code), zap.String("player", p.ID),
		zap.Float64("amount", p.DealAmount))
}
