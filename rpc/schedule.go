package rpc

import (
	"errors"

	"github.com/blockberries/tower-sdk/types"
)

// ErrSkipped marks a call that was not sent because an earlier call for the
// same account failed.
var ErrSkipped = errors.New("skipped after an earlier failure on the same account")

// Level is a set of calls that share no account and may be sent together.
type Level struct {
	// Level is the position of the calls within their account's lane.
	Level int

	// Calls are indexes into the batch, ascending.
	Calls []int
}

// Schedule groups calls into levels for ModeLanes. Calls for the same account
// conflict, since each consumes the account's next nonce: the n-th call of
// every account lands in level n, so every account keeps its batch order.
func Schedule(calls []Call) []Level {
	var levels []Level
	seen := make(map[types.AccountID]int)
	for i, c := range calls {
		account := types.NormalizeAccount(string(c.Account))
		n := seen[account]
		seen[account] = n + 1
		if n == len(levels) {
			levels = append(levels, Level{Level: n})
		}
		levels[n].Calls = append(levels[n].Calls, i)
	}
	return levels
}

// Parallelism returns the average number of calls per level, the best-case
// speedup over sequential dispatch.
func Parallelism(levels []Level) float64 {
	if len(levels) == 0 {
		return 1
	}
	total := 0
	for _, l := range levels {
		total += len(l.Calls)
	}
	return float64(total) / float64(len(levels))
}
