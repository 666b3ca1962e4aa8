// Package scoring maps per-player game outcomes to points and ranks
// leaderboards. Everything here is pure.
package scoring

import (
	"math"
	"sort"
)

// Outcome captures everything the scoring formula needs about one contestant.
type Outcome struct {
	FinalWinnings     float64
	FinalBoxValue     float64
	RoundDealt        int
	IsLastStanding    bool
	IsHighestWinnings bool
	TimeoutCount      int
}

const (
	winningsCap       = 3000
	smartDealBonus    = 200 // dealt above the value hiding in their own box
	gutsBonus         = 150 // held out to round 4 or later
	earlyExitPenalty  = 50  // dealt in round 1 or 2
	lastStandingBonus = 200
	highestBonus      = 200
	timeoutPenalty    = 50
)

// Points computes the score for one outcome. Never negative.
func Points(o Outcome) int {
	pts := int(math.Floor(o.FinalWinnings / 100))
	if pts > winningsCap {
		pts = winningsCap
	}
	if o.FinalWinnings > o.FinalBoxValue {
		pts += smartDealBonus
	}
	if o.RoundDealt >= 4 {
		pts += gutsBonus
	}
	if o.RoundDealt <= 2 {
		pts -= earlyExitPenalty
	}
	if o.IsLastStanding {
		pts += lastStandingBonus
	}
	if o.IsHighestWinnings {
		pts += highestBonus
	}
	pts -= timeoutPenalty * o.TimeoutCount
	if pts < 0 {
		pts = 0
	}
	return pts
}

// Entry is one leaderboard row as sent to clients.
type Entry struct {
	PlayerID    string  `json:"playerId"`
	PlayerName  string  `json:"playerName"`
	Amount      float64 `json:"amount"`
	Points      int     `json:"points"`
	WasBoxValue bool    `json:"wasBoxValue"`
	Rank        int     `json:"rank"`
}

// Rank sorts entries by points descending (stable, so ties keep their
// insertion order) and assigns ranks 1..N.
func Rank(entries []Entry) []Entry {
	out := make([]Entry, len(entries))
	copy(out, entries)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Points > out[j].Points })
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}
