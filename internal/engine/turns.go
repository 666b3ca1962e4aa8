package engine

import (
	"time"

	"go.uber.org/zap"

	"dealroom/internal/rules"
	"dealroom/internal/state"
)

// beginTurnCycleLocked arms a turn for the contestant at the current
// rotation index, or routes straight to an offer when no openable box
// remains. Caller holds the room lock.
func (e *Engine) beginTurnCycleLocked(r *state.Room, fx *effects) {
	if !r.HasOpenableBox() {
		e.beginOfferLocked(r, fx)
		return
	}
	if !e.seekActiveLocked(r, r.CurrentTurnIndex) {
		e.beginOfferLocked(r, fx)
		return
	}
	e.armTurnLocked(r)
}

// seekActiveLocked moves CurrentTurnIndex to the first undealt contestant
// at or after the given index, wrapping once. Reports whether one exists.
func (e *Engine) seekActiveLocked(r *state.Room, from int) bool {
	n := len(r.TurnOrder)
	if n == 0 {
		return false
	}
	for i := 0; i < n; i++ {
		idx := (from + i) % n
		if p := r.Players[r.TurnOrder[idx]]; p != nil && !p.HasDealt {
			r.CurrentTurnIndex = idx
			return true
		}
	}
	return false
}

// armTurnLocked sets the turn deadline and schedules the skip timer,
// replacing any prior one.
func (e *Engine) armTurnLocked(r *state.Room) {
	playerID := r.TurnOrder[r.CurrentTurnIndex]
	r.CurrentTurnPlayerID = playerID
	r.TurnExpiresAt = time.Now().Add(e.cfg.TurnTimeout)

	if r.TurnTimer != nil {
		r.TurnTimer.Stop()
	}
	r.TurnTimer = time.AfterFunc(e.cfg.TurnTimeout, func() {
		e.onTurnTimeout(r, playerID)
	})
}

// clearTurnLocked drops the turn fields and cancels the skip timer.
func clearTurnLocked(r *state.Room) {
	r.CurrentTurnPlayerID = ""
	r.TurnExpiresAt = time.Time{}
	if r.TurnTimer != nil {
		r.TurnTimer.Stop()
		r.TurnTimer = nil
	}
}

// OpenBox handles the current turn player revealing a box. Completing the
// round quota (or exhausting openable boxes) hands off to the banker after
// a short pause.
func (e *Engine) OpenBox(r *state.Room, playerID string, boxNumber int) {
	r.Lock()
	var fx effects

	if r.Phase != state.PhasePlaying || r.CurrentTurnPlayerID != playerID {
		r.Unlock()
		return
	}
	box := r.Box(boxNumber)
	if box == nil || box.IsOpened || r.BoxOwner(boxNumber) != nil {
		r.Unlock()
		return
	}

	clearTurnLocked(r)
	box.IsOpened = true
	box.OpenedBy = playerID
	r.EliminateValue(box.Value)
	r.BoxesOpenedThisRound = append(r.BoxesOpenedThisRound, boxNumber)
	recently := &state.OpenedBox{BoxNumber: boxNumber, Value: box.Value}

	e.log.Info("box opened",
		zap.String("room", r.Code), zap.String("player", playerID),
		zap.Int("box", boxNumber), zap.Float64("value", box.Value))

	if len(r.BoxesOpenedThisRound) >= rules.BoxesToOpen(r.CurrentRound) || !r.HasOpenableBox() {
		// Round complete. Park the rotation on the next seat so the
		// following round resumes fairly, then pause before the call.
		e.seekActiveLocked(r, r.CurrentTurnIndex+1)
		e.broadcastStateLocked(r, &fx, recently)
		e.scheduleOfferLocked(r)
	} else {
		e.seekActiveLocked(r, r.CurrentTurnIndex+1)
		e.armTurnLocked(r)
		e.broadcastStateLocked(r, &fx, recently)
	}

	r.Unlock()
	e.apply(fx)
}

// scheduleOfferLocked arms the cosmetic pause between the last reveal of a
// round and the banker's call.
func (e *Engine) scheduleOfferLocked(r *state.Room) {
	if r.DelayTimer != nil {
		r.DelayTimer.Stop()
	}
	r.DelayTimer = time.AfterFunc(e.cfg.OfferDelay, func() {
		e.offerAfterDelay(r)
	})
}

// offerAfterDelay fires after the cosmetic pause. Only acts if the room is
// still awaiting the banker.
func (e *Engine) offerAfterDelay(r *state.Room) {
	r.Lock()
	var fx effects
	if r.Phase != state.PhasePlaying || r.CurrentTurnPlayerID != "" {
		r.Unlock()
		return
	}
	e.beginOfferLocked(r, &fx)
	e.broadcastStateLocked(r, &fx, nil)
	r.Unlock()
	e.apply(fx)
}

// onTurnTimeout fires when a turn deadline lapses. No box is auto-opened;
// the player is charged a timeout and the rotation moves on.
func (e *Engine) onTurnTimeout(r *state.Room, expectedPlayerID string) {
	r.Lock()
	var fx effects

	if r.Phase != state.PhasePlaying || r.CurrentTurnPlayerID != expectedPlayerID {
		r.Unlock()
		return
	}
	if p := r.Players[expectedPlayerID]; p != nil {
		p.TimeoutCount++
	}
	e.log.Info("turn timed out",
		zap.String("room", r.Code), zap.String("player", expectedPlayerID))

	clearTurnLocked(r)
	if !r.HasOpenableBox() || !e.seekActiveLocked(r, r.CurrentTurnIndex+1) {
		e.beginOfferLocked(r, &fx)
	} else {
		e.armTurnLocked(r)
	}
	e.broadcastStateLocked(r, &fx, nil)
	r.Unlock()
	e.apply(fx)
}
