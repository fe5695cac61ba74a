package offchain

import (
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStores(t *testing.T) map[string]Storage {
	dir := t.TempDir()

	sqlite, err := NewSQLiteStorage(filepath.Join(dir, "offchain.sqlite"))
	require.NoError(t, err)
	bolt, err := NewBoltStorage(filepath.Join(dir, "offchain.bolt"))
	require.NoError(t, err)

	stores := map[string]Storage{
		BackendSQLite: sqlite,
		BackendBolt:   bolt,
		BackendMemory: NewMemStorage(),
	}
	t.Cleanup(func() {
		for _, s := range stores {
			_ = s.Close()
		}
	})
	return stores
}

func TestStorageCompareAndSet(t *testing.T) {
	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			key := []byte("k")

			_, found, err := s.Get(key)
			require.NoError(t, err)
			assert.False(t, found)

			ok, err := s.CompareAndSet(key, nil, nil)
			require.NoError(t, err)
			assert.True(t, ok, "absent key matches nil")

			ok, err = s.CompareAndSet(key, nil, []byte("a"))
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = s.CompareAndSet(key, nil, []byte("b"))
			require.NoError(t, err)
			assert.False(t, ok, "key already present")

			ok, err = s.CompareAndSet(key, []byte("x"), []byte("b"))
			require.NoError(t, err)
			assert.False(t, ok)

			ok, err = s.CompareAndSet(key, []byte("a"), []byte("b"))
			require.NoError(t, err)
			assert.True(t, ok)

			v, found, err := s.Get(key)
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, []byte("b"), v)

			ok, err = s.CompareAndSet(key, []byte("a"), nil)
			require.NoError(t, err)
			assert.False(t, ok)

			ok, err = s.CompareAndSet(key, []byte("b"), nil)
			require.NoError(t, err)
			assert.True(t, ok)

			_, found, err = s.Get(key)
			require.NoError(t, err)
			assert.False(t, found)

			require.NoError(t, s.Set(key, []byte("c")))
			require.NoError(t, s.Set(key, []byte("d")))
			v, _, err = s.Get(key)
			require.NoError(t, err)
			assert.Equal(t, []byte("d"), v)
		})
	}
}

func TestStorageLock(t *testing.T) {
	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			now := time.Unix(1_700_000_000, 0)
			a := NewStorageLock(s, LockKey, 10*time.Second)
			b := NewStorageLock(s, LockKey, 10*time.Second)
			a.now = func() time.Time { return now }
			b.now = func() time.Time { return now }

			ga, err := a.TryLock()
			require.NoError(t, err)
			require.NotNil(t, ga)

			gb, err := b.TryLock()
			require.NoError(t, err)
			assert.Nil(t, gb, "lock is held")

			held, err := ga.Held()
			require.NoError(t, err)
			assert.True(t, held)

			require.NoError(t, ga.Release())
			require.NoError(t, ga.Release(), "second release is a no-op")

			gb, err = b.TryLock()
			require.NoError(t, err)
			require.NotNil(t, gb)

			// a stale holder gets taken over
			now = now.Add(11 * time.Second)
			ga, err = a.TryLock()
			require.NoError(t, err)
			require.NotNil(t, ga)

			assert.ErrorIs(t, gb.Release(), ErrLockNotHeld)
			held, err = ga.Held()
			require.NoError(t, err)
			assert.True(t, held)
			require.NoError(t, ga.Release())
		})
	}
}

func TestStorageLockRenew(t *testing.T) {
	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			now := time.Unix(1_700_000_000, 0)
			a := NewStorageLock(s, LockKey, 10*time.Second)
			b := NewStorageLock(s, LockKey, 10*time.Second)
			a.now = func() time.Time { return now }
			b.now = func() time.Time { return now }

			ga, err := a.TryLock()
			require.NoError(t, err)
			require.NotNil(t, ga)
			assert.False(t, ga.Stale())

			now = now.Add(6 * time.Second)
			assert.True(t, ga.Stale())
			require.NoError(t, ga.Renew())
			assert.False(t, ga.Stale())

			// past the first deadline, still held thanks to the renewal
			now = now.Add(6 * time.Second)
			gb, err := b.TryLock()
			require.NoError(t, err)
			assert.Nil(t, gb)
			held, err := ga.Held()
			require.NoError(t, err)
			assert.True(t, held)

			// let it lapse, b takes over and a can no longer renew
			now = now.Add(11 * time.Second)
			assert.ErrorIs(t, ga.Renew(), ErrLockNotHeld)
			gb, err = b.TryLock()
			require.NoError(t, err)
			require.NotNil(t, gb)
			assert.ErrorIs(t, ga.Renew(), ErrLockNotHeld)
			held, err = gb.Held()
			require.NoError(t, err)
			assert.True(t, held)
			require.NoError(t, gb.Release())
		})
	}
}

func TestStorageLockAcrossConnections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.sqlite")

	const workers = 8
	stores := make([]*SQLiteStorage, workers)
	for i := range stores {
		s, err := NewSQLiteStorage(path)
		require.NoError(t, err)
		defer s.Close()
		stores[i] = s
	}

	var (
		wg       sync.WaitGroup
		acquired int32
		start    = make(chan struct{})
	)
	guards := make([]*Guard, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			g, err := NewStorageLock(stores[i], LockKey, time.Minute).TryLock()
			assert.NoError(t, err)
			if g != nil {
				atomic.AddInt32(&acquired, 1)
				guards[i] = g
			}
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), acquired)
	for _, g := range guards {
		if g != nil {
			assert.NoError(t, g.Release())
		}
	}
}

func TestCheckpoint(t *testing.T) {
	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			cp := NewCheckpoint(s)

			_, found, err := cp.Get()
			require.NoError(t, err)
			assert.False(t, found)

			require.NoError(t, cp.Advance(100))
			require.NoError(t, cp.Advance(100))
			require.NoError(t, cp.Advance(101))
			assert.ErrorIs(t, cp.Advance(99), ErrCheckpointRegress)

			h, found, err := cp.Get()
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, uint32(101), h)

			// persisted layout is a 4 byte big endian height
			raw, _, err := s.Get([]byte(CheckpointKey))
			require.NoError(t, err)
			assert.Equal(t, []byte{0, 0, 0, 101}, raw)

			require.NoError(t, s.Set([]byte(CheckpointKey), []byte{1}))
			_, _, err = cp.Get()
			assert.ErrorIs(t, err, ErrCorruptValue)
		})
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	for _, backend := range []string{BackendSQLite, BackendBolt, BackendMemory} {
		s, err := Open(&Config{Backend: backend, Path: filepath.Join(dir, backend+".db")})
		require.NoError(t, err, backend)
		require.NoError(t, s.Close())
	}

	_, err := Open(&Config{Backend: "redis"})
	assert.ErrorIs(t, err, ErrUnknownBackend)
}
