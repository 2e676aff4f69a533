package ident

import (
	"github.com/zeebo/xxh3"

	"go.hopcount.dev/overbench/spec/overlay"
)

const (
	// Also known as m in the Chord paper
	MaxBits = 48
	// Width of one prefix digit, also known as b in the Pastry paper
	DigitBits = 4

	Digits = MaxBits / DigitBits
	Radix  = 1 << DigitBits

	MaxIdentifier uint64 = 1 << MaxBits
)

// Hash derives a stable identifier from b. Stable across runs and platforms
// so that a fixed seed reproduces the same overlay.
func Hash(b []byte) uint64 {
	return xxh3.Hash(b) % MaxIdentifier
}

func HashString(key string) uint64 {
	return Hash([]byte(key))
}

// Validate rejects identifiers wider than the configured space.
func Validate(ids ...uint64) error {
	for _, id := range ids {
		if id >= MaxIdentifier {
			return overlay.ErrIdFormat
		}
	}
	return nil
}

func ModuloSum(x, y uint64) uint64 {
	// split (x + y) % m into (x % m + y % m) % m to avoid overflow
	return (x%MaxIdentifier + y%MaxIdentifier) % MaxIdentifier
}

// RingDistance is the forward distance from a to b on the ring.
func RingDistance(a, b uint64) uint64 {
	// unsigned wrap then mask, MaxIdentifier is a power of two
	return (b - a) & (MaxIdentifier - 1)
}

// NumericDistance is the shorter way around the ring between a and b.
func NumericDistance(a, b uint64) uint64 {
	d := RingDistance(a, b)
	if r := MaxIdentifier - d; r < d {
		return r
	}
	return d
}

// target IN [low, high)
func BetweenInclusiveLow(low, target, high uint64) bool {
	if high > low {
		return low <= target && target < high
	}
	return low <= target || target < high
}

// target IN (low, high]
func BetweenInclusiveHigh(low, target, high uint64) bool {
	if high > low {
		return low < target && target <= high
	}
	return low < target || target <= high
}

// target IN (low, high)
func BetweenStrict(low, target, high uint64) bool {
	if high > low {
		return low < target && target < high
	}
	return low < target || target < high
}

// Digit extracts the row-th base-2^DigitBits digit of id, most significant
// first.
func Digit(id uint64, row int) (int, error) {
	if err := Validate(id); err != nil {
		return 0, err
	}
	if row < 0 || row >= Digits {
		return 0, overlay.ErrIdFormat
	}
	shift := uint(MaxBits - DigitBits*(row+1))
	return int(id >> shift & (Radix - 1)), nil
}

// SharedPrefixLen counts the leading digits a and b have in common.
func SharedPrefixLen(a, b uint64) int {
	x := (a ^ b) % MaxIdentifier
	if x == 0 {
		return Digits
	}
	n := 0
	for shift := MaxBits - DigitBits; shift >= 0; shift -= DigitBits {
		if x>>uint(shift)&(Radix-1) != 0 {
			break
		}
		n++
	}
	return n
}
