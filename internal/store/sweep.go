package store

import (
	"time"

	"go.uber.org/zap"

	"dealroom/internal/state"
)

// Sweep deletes rooms past their idle TTL and returns how many it removed.
// Rooms in playing or offer are never swept; their timers are live and the
// engine owns them.
func (s *Store) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for code, room := range s.rooms {
		room.Lock()
		phase := room.Phase
		expired := false
		switch room.Phase {
		case state.PhaseWaiting:
			expired = now.Sub(room.CreatedAt) > s.ttl.Waiting
		case state.PhaseSelection:
			expired = now.Sub(room.CreatedAt) > s.ttl.Selection
		case state.PhaseFinished:
			expired = !room.FinishedAt.IsZero() && now.Sub(room.FinishedAt) > s.ttl.Finished
		}
		if !expired {
			room.Unlock()
			continue
		}

		room.StopTimers()
		for id, p := range room.Players {
			delete(s.playerRoom, id)
			if p.ConnectionID != "" {
				delete(s.connPlayer, p.ConnectionID)
			}
		}
		room.Unlock()

		delete(s.rooms, code)
		removed++
		s.log.Info("room swept",
			zap.String("room", code), zap.String("phase", string(phase)))
	}
	return removed
}
