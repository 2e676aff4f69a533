package ident

import (
	"fmt"

	"github.com/avast/retry-go/v4"

	"go.hopcount.dev/overbench/spec/overlay"
)

const mintAttempts = 5

// Mint derives a node identifier from label, re-hashing with a
// disambiguating suffix when the candidate collides with a taken id. After
// mintAttempts collisions the duplicate is surfaced as fatal.
func Mint(label string, taken func(uint64) bool) (uint64, error) {
	var (
		id      uint64
		attempt int
	)
	err := retry.Do(func() error {
		candidate := label
		if attempt > 0 {
			candidate = fmt.Sprintf("%s#%d", label, attempt)
		}
		attempt++
		next := HashString(candidate)
		if taken(next) {
			return overlay.ErrDuplicateID
		}
		id = next
		return nil
	},
		retry.Attempts(mintAttempts),
		retry.Delay(0),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return 0, err
	}
	return id, nil
}
