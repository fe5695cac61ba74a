package relay

import (
	"github.com/Rican7/retry"
	"github.com/Rican7/retry/strategy"
)

// attempt calls fn until it returns nil or limit calls have been made.
// fn receives the 1-based attempt number. There is no wait between
// attempts, every call is already bounded by the fetch deadline.
func attempt(limit int, fn func(n int) error) error {
	if limit < 1 {
		limit = 1
	}
	used := 0
	var budget strategy.Strategy = func(uint) bool {
		return used < limit
	}
	return retry.Retry(func(uint) error {
		used++
		return fn(used)
	}, budget)
}
