package store

import (
	"sort"
	"strings"

	"dealroom/internal/rules"
)

// GlobalEntry is one row of the process-lifetime leaderboard as sent to
// clients. PublicID hides the raw player id behind a name#XXXX handle.
type GlobalEntry struct {
	Rank        int    `json:"rank"`
	PublicID    string `json:"publicId"`
	PlayerName  string `json:"playerName"`
	TotalPoints int    `json:"totalPoints"`
	GamesPlayed int    `json:"gamesPlayed"`
}

type globalRecord struct {
	playerID    string
	name        string
	totalPoints int
	gamesPlayed int
	seq         int // first-seen order, breaks point ties
}

// UpdateGlobal accumulates one finished game into a player's lifetime record.
func (s *Store) UpdateGlobal(playerID, name string, pointsEarned int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.global[playerID]
	if !ok {
		rec = &globalRecord{playerID: playerID, seq: s.globalSeq}
		s.globalSeq++
		s.global[playerID] = rec
	}
	rec.name = name
	rec.totalPoints += pointsEarned
	rec.gamesPlayed++
}

// TopGlobal returns the lifetime leaderboard ranked by total points, capped
// at the top 100. Ties keep first-seen order.
func (s *Store) TopGlobal() []GlobalEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs := make([]*globalRecord, 0, len(s.global))
	for _, rec := range s.global {
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].seq < recs[j].seq })
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].totalPoints > recs[j].totalPoints })

	if len(recs) > rules.GlobalLeaderboardTop {
		recs = recs[:rules.GlobalLeaderboardTop]
	}

	out := make([]GlobalEntry, 0, len(recs))
	for i, rec := range recs {
		out = append(out, GlobalEntry{
			Rank:        i + 1,
			PublicID:    publicID(rec.name, rec.playerID),
			PlayerName:  rec.name,
			TotalPoints: rec.totalPoints,
			GamesPlayed: rec.gamesPlayed,
		})
	}
	return out
}

func publicID(name, playerID string) string {
	tail := playerID
	if len(tail) > 4 {
		tail = tail[len(tail)-4:]
	}
	return name + "#" + strings.ToUpper(tail)
}
