package offchain

import (
	"encoding/binary"
)

const CheckpointKey = "btcrelay::confirmed"

// Checkpoint is the last confirmed bitcoin height whose transactions were
// fully relayed. It only moves forward.
type Checkpoint struct {
	store Storage
	key   []byte
}

func NewCheckpoint(store Storage) *Checkpoint {
	return &Checkpoint{store: store, key: []byte(CheckpointKey)}
}

// Get returns false when nothing has been relayed yet.
func (c *Checkpoint) Get() (uint32, bool, error) {
	value, found, err := c.store.Get(c.key)
	if err != nil || !found {
		return 0, false, err
	}
	if len(value) != 4 {
		return 0, false, ErrCorrupt(c.key, len(value))
	}
	return binary.BigEndian.Uint32(value), true, nil
}

// Advance stores height. Equal heights are a no-op, lower ones are refused.
// Callers must hold the relay's StorageLock.
func (c *Checkpoint) Advance(height uint32) error {
	current, found, err := c.Get()
	if err != nil {
		return err
	}
	if found {
		if height == current {
			return nil
		}
		if height < current {
			return ErrRegress(current, height)
		}
	}

	value := make([]byte, 4)
	binary.BigEndian.PutUint32(value, height)
	return c.store.Set(c.key, value)
}
