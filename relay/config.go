package relay

import (
	"time"

	"github.com/TEENet-io/btcrelay/offchain"
)

type Config struct {
	// Run on host blocks whose number is a multiple of Interval.
	Interval uint64

	HeaderAttempts         int
	ConfirmedBlockAttempts int
	PrevTxAttempts         int

	LockExpiry     time.Duration
	PrevTxCacheTTL time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		Interval:               2,
		HeaderAttempts:         6,
		ConfirmedBlockAttempts: 5,
		PrevTxAttempts:         5,
		LockExpiry:             offchain.DefaultLockExpiry,
		PrevTxCacheTTL:         time.Minute,
	}
}
