// Package rules holds the fixed game constants shared by every room:
// the box value ladder, round quotas, deadlines, and player limits.
package rules

import "time"

// NumBoxes is the size of the value ladder and the box grid.
const NumBoxes = 20

// ValueLadder is the ordered multiset of monetary values distributed across
// the boxes at room creation. Identical for all rooms.
var ValueLadder = [NumBoxes]float64{
	0.01, 0.10, 0.50, 1, 5,
	10, 50, 100, 250, 500,
	750, 1000, 3000, 5000, 10000,
	15000, 25000, 50000, 75000, 100000,
}

// TopPrize is the largest value on the ladder.
const TopPrize = 100000

const (
	MaxContestants        = 6
	MinContestantsToStart = 2
	MaxNameLen            = 16
	MaxPasswordLen        = 64
	MaxChatLen            = 500
	ChatHistoryLimit      = 100
	GlobalLeaderboardTop  = 100
)

const (
	TurnTimeout     = 20 * time.Second
	OfferTimeout    = 20 * time.Second
	OfferDelay      = 1500 * time.Millisecond
	CleanupInterval = 10 * time.Minute

	WaitingTTL   = 12 * time.Hour
	SelectionTTL = 12 * time.Hour
	FinishedTTL  = 2 * time.Hour
)

// RoomCodeLen and RoomCodeAlphabet define the 6-character room codes.
// The alphabet excludes 0, 1, I and O.
const (
	RoomCodeLen      = 6
	RoomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// BoxesToOpen returns the number of boxes that must be opened in the given
// round before the banker calls: 5, 4, 3, 2, then 1 per round from round 5 on.
func BoxesToOpen(round int) int {
	switch round {
	case 1:
		return 5
	case 2:
		return 4
	case 3:
		return 3
	case 4:
		return 2
	default:
		if round < 1 {
			return 0
		}
		return 1
	}
}

// Ladder returns a fresh copy of the value ladder as a slice.
func Ladder() []float64 {
	out := make([]float64, NumBoxes)
	copy(out, ValueLadder[:])
	return out
}
