/*
Package offchain is the node-local persistent storage used by the relay.

Nothing stored here is part of consensus. Several relay processes on one
node may share a store, so every mutation that matters for coordination
goes through CompareAndSet.
*/
package offchain

// Storage is a byte-keyed store with an atomic compare-and-set.
type Storage interface {
	// Get returns false when key is absent.
	Get(key []byte) ([]byte, bool, error)

	Set(key, value []byte) error

	// CompareAndSet replaces the value of key with new only if the current
	// value equals old. A nil old expects key to be absent, a nil new
	// deletes key. Returns false, without error, when the comparison fails.
	CompareAndSet(key, old, new []byte) (bool, error)

	Close() error
}
