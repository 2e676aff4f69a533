package pastry

import (
	"errors"

	"go.uber.org/zap"
)

type Config struct {
	Logger *zap.Logger
	// Leaf set size, split evenly below and above the node
	LeafEntries int
	// Upper bound on repair rounds per maintenance barrier
	MaxBarrierRounds int
}

const (
	DefaultLeafEntries   = 16
	DefaultBarrierRounds = 64
)

func (c *Config) Validate() error {
	if c == nil {
		return errors.New("nil Config")
	}
	if c.Logger == nil {
		return errors.New("nil Logger")
	}
	if c.LeafEntries < 2 || c.LeafEntries%2 != 0 {
		return errors.New("invalid LeafEntries, must be positive and even")
	}
	if c.MaxBarrierRounds < 1 {
		return errors.New("invalid MaxBarrierRounds, must be at least 1")
	}
	return nil
}

func DefaultConfig(logger *zap.Logger) Config {
	return Config{
		Logger:           logger,
		LeafEntries:      DefaultLeafEntries,
		MaxBarrierRounds: DefaultBarrierRounds,
	}
}
