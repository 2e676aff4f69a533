package chord

import (
	"errors"

	"go.uber.org/zap"
)

type Config struct {
	Logger *zap.Logger
	// Length of the successor list, also known as r in the second paper
	SuccessorEntries int
	// Upper bound on stabilization rounds per maintenance barrier
	MaxBarrierRounds int
}

const (
	DefaultSuccessorEntries = 3
	DefaultBarrierRounds    = 64
)

func (c *Config) Validate() error {
	if c == nil {
		return errors.New("nil Config")
	}
	if c.Logger == nil {
		return errors.New("nil Logger")
	}
	if c.SuccessorEntries < 1 {
		return errors.New("invalid SuccessorEntries, must be at least 1")
	}
	if c.MaxBarrierRounds < 1 {
		return errors.New("invalid MaxBarrierRounds, must be at least 1")
	}
	return nil
}

func DefaultConfig(logger *zap.Logger) Config {
	return Config{
		Logger:           logger,
		SuccessorEntries: DefaultSuccessorEntries,
		MaxBarrierRounds: DefaultBarrierRounds,
	}
}
