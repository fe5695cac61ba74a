package signers

import (
	"sort"
	"sync"
)

// KeyTypeID scopes keys in the keystore to one purpose.
type KeyTypeID [4]byte

func (k KeyTypeID) String() string {
	return string(k[:])
}

// RelayKeyType is the key type of relay submission identities.
var RelayKeyType = KeyTypeID{'b', 't', 'c', 'r'}

// Keystore holds the node's local signing keys.
type Keystore struct {
	mu   sync.RWMutex
	keys map[KeyTypeID]map[AuthorityID]*LocalSigner
}

func NewKeystore() *Keystore {
	return &Keystore{keys: make(map[KeyTypeID]map[AuthorityID]*LocalSigner)}
}

func (ks *Keystore) Insert(kt KeyTypeID, s *LocalSigner) {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	if ks.keys[kt] == nil {
		ks.keys[kt] = make(map[AuthorityID]*LocalSigner)
	}
	ks.keys[kt][s.ID()] = s
}

// InsertHex loads hex encoded private keys. Nothing is inserted if any key
// fails to parse.
func (ks *Keystore) InsertHex(kt KeyTypeID, hexKeys []string) error {
	parsed := make([]*LocalSigner, 0, len(hexKeys))
	for _, k := range hexKeys {
		s, err := NewLocalSignerFromHex(k)
		if err != nil {
			return err
		}
		parsed = append(parsed, s)
	}
	for _, s := range parsed {
		ks.Insert(kt, s)
	}
	return nil
}

// Public lists the identities of kt in ascending order.
func (ks *Keystore) Public(kt KeyTypeID) []AuthorityID {
	ks.mu.RLock()
	defer ks.mu.RUnlock()

	ids := make([]AuthorityID, 0, len(ks.keys[kt]))
	for id := range ks.keys[kt] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
	return ids
}

func (ks *Keystore) Signer(kt KeyTypeID, id AuthorityID) (*LocalSigner, bool) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()

	s, ok := ks.keys[kt][id]
	return s, ok
}
