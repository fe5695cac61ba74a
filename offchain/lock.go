package offchain

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"time"

	logger "github.com/sirupsen/logrus"
)

const (
	LockKey = "btcrelay::lock"

	DefaultLockExpiry = 60 * time.Second
)

// StorageLock is an advisory, node-local mutex over a Storage key.
//
// Acquisition never blocks: TryLock either takes the lock or reports that
// somebody else holds it. A holder that dies leaves the lock to expire. It
// is not a distributed lock and gives no fencing.
type StorageLock struct {
	store  Storage
	key    []byte
	expiry time.Duration
	now    func() time.Time
}

func NewStorageLock(store Storage, key string, expiry time.Duration) *StorageLock {
	if expiry <= 0 {
		expiry = DefaultLockExpiry
	}
	return &StorageLock{
		store:  store,
		key:    []byte(key),
		expiry: expiry,
		now:    time.Now,
	}
}

// Guard is the proof of holding a StorageLock.
type Guard struct {
	lock  *StorageLock
	value []byte
}

// value layout: deadline unix nano (8 bytes, big endian) || random token (8 bytes)
func (l *StorageLock) newValue() ([]byte, error) {
	v := make([]byte, 16)
	binary.BigEndian.PutUint64(v[:8], uint64(l.now().Add(l.expiry).UnixNano()))
	if _, err := rand.Read(v[8:]); err != nil {
		return nil, err
	}
	return v, nil
}

func deadlineOf(value []byte) int64 {
	return int64(binary.BigEndian.Uint64(value[:8]))
}

func (l *StorageLock) expired(value []byte) bool {
	if len(value) != 16 {
		// unreadable holder, treat as stale
		return true
	}
	return l.now().UnixNano() >= deadlineOf(value)
}

// TryLock returns a Guard when the lock was free or expired, and nil when
// another holder's lock is still live.
func (l *StorageLock) TryLock() (*Guard, error) {
	current, found, err := l.store.Get(l.key)
	if err != nil {
		return nil, err
	}
	if found && !l.expired(current) {
		return nil, nil
	}

	value, err := l.newValue()
	if err != nil {
		return nil, err
	}

	var old []byte
	if found {
		old = current
		logger.WithField("key", string(l.key)).Debug("taking over expired storage lock")
	}
	ok, err := l.store.CompareAndSet(l.key, old, value)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &Guard{lock: l, value: value}, nil
}

// Release frees the lock if this guard still holds it. A lock taken over
// after expiry is left to its new holder and ErrLockNotHeld is returned.
func (g *Guard) Release() error {
	if g == nil || g.value == nil {
		return nil
	}
	ok, err := g.lock.store.CompareAndSet(g.lock.key, g.value, nil)
	if err != nil {
		return err
	}
	g.value = nil
	if !ok {
		return ErrLockNotHeld
	}
	return nil
}

// Held reports whether the guard's lock is still in place and unexpired.
func (g *Guard) Held() (bool, error) {
	if g == nil || g.value == nil {
		return false, nil
	}
	current, found, err := g.lock.store.Get(g.lock.key)
	if err != nil {
		return false, err
	}
	return found && bytes.Equal(current, g.value) && !g.lock.expired(current), nil
}

// Renew pushes the deadline one expiry past now. It fails with
// ErrLockNotHeld once the lock expired or was taken over, the caller must
// then stop acting on the lock's behalf.
func (g *Guard) Renew() error {
	if g == nil || g.value == nil {
		return ErrLockNotHeld
	}
	current, found, err := g.lock.store.Get(g.lock.key)
	if err != nil {
		return err
	}
	if !found || !bytes.Equal(current, g.value) || g.lock.expired(current) {
		return ErrLockNotHeld
	}

	value := make([]byte, 16)
	binary.BigEndian.PutUint64(value[:8], uint64(g.lock.now().Add(g.lock.expiry).UnixNano()))
	copy(value[8:], g.value[8:])
	ok, err := g.lock.store.CompareAndSet(g.lock.key, g.value, value)
	if err != nil {
		return err
	}
	if !ok {
		return ErrLockNotHeld
	}
	g.value = value
	return nil
}

// Stale reports whether half of the guard's time is used up.
func (g *Guard) Stale() bool {
	if g == nil || g.value == nil {
		return true
	}
	return g.lock.now().UnixNano() >= deadlineOf(g.value)-int64(g.lock.expiry/2)
}
