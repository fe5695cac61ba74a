package offchain

import (
	"bytes"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketOffchain = []byte("offchain")

// BoltStorage keeps the offchain values in a single bbolt bucket. bbolt
// holds an exclusive file lock, so processes sharing it are serialised by
// Open's timeout rather than per call.
type BoltStorage struct {
	db *bolt.DB
}

func NewBoltStorage(path string) (*BoltStorage, error) {
	bdb, err := bolt.Open(path, 0o600, &bolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("open bbolt: %w", err)
	}

	if err := bdb.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketOffchain); err != nil {
			return fmt.Errorf("create bucket %s: %w", string(bucketOffchain), err)
		}
		return nil
	}); err != nil {
		_ = bdb.Close()
		return nil, err
	}
	return &BoltStorage{db: bdb}, nil
}

func (s *BoltStorage) Get(key []byte) ([]byte, bool, error) {
	var value []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketOffchain).Get(key)
		if v != nil {
			// bbolt memory is only valid inside the transaction
			value = append([]byte{}, v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return value, value != nil, nil
}

func (s *BoltStorage) Set(key, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketOffchain).Put(key, value)
	})
}

func (s *BoltStorage) CompareAndSet(key, old, new []byte) (bool, error) {
	swapped := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketOffchain)
		current := b.Get(key)
		if (old == nil) != (current == nil) || (old != nil && !bytes.Equal(current, old)) {
			return nil
		}
		swapped = true
		if new == nil {
			return b.Delete(key)
		}
		return b.Put(key, new)
	})
	if err != nil {
		return false, err
	}
	return swapped, nil
}

func (s *BoltStorage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
