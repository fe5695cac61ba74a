package offchain

import (
	"errors"
	"fmt"
)

var (
	ErrStorageClosed     = errors.New("offchain storage closed")
	ErrUnknownBackend    = errors.New("unknown offchain storage backend")
	ErrLockNotHeld       = errors.New("storage lock no longer held")
	ErrCorruptValue      = errors.New("corrupt offchain value")
	ErrCheckpointRegress = errors.New("checkpoint cannot move backwards")
)

func ErrCorrupt(key []byte, got int) error {
	return fmt.Errorf("%w: key=%s, len=%d", ErrCorruptValue, key, got)
}

func ErrRegress(current, next uint32) error {
	return fmt.Errorf("%w: current=%d, next=%d", ErrCheckpointRegress, current, next)
}
