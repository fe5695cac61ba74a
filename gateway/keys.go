package gateway

import (
	"sort"

	"github.com/TEENet-io/btcrelay/signers"
	logger "github.com/sirupsen/logrus"
)

func normalizeKeys(sets ...[]signers.AuthorityID) []signers.AuthorityID {
	seen := make(map[signers.AuthorityID]struct{})
	out := make([]signers.AuthorityID, 0)
	for _, set := range sets {
		for _, k := range set {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// OnGenesis installs the initial key set. An empty input is ignored, a
// second initialisation is refused.
func (m *Module) OnGenesis(keys []signers.AuthorityID) error {
	if len(keys) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.keys) != 0 {
		return ErrKeysAlreadyInitialized
	}
	m.keys = normalizeKeys(keys)
	logger.WithField("count", len(m.keys)).Info("relay keys initialized")
	return nil
}

// OnRotate replaces the key set by the union of the current and queued
// validators when the validator set changed.
func (m *Module) OnRotate(changed bool, current, queued []signers.AuthorityID) {
	if !changed {
		return
	}
	next := normalizeKeys(current, queued)

	m.mu.Lock()
	m.keys = next
	m.mu.Unlock()

	logger.WithField("count", len(next)).Info("relay keys rotated")
}
