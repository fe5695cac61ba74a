/*
Package merkle builds and checks Bitcoin partial merkle trees.

A partial merkle tree proves that a chosen subset of a block's transactions
is committed to by the block's merkle root while omitting the hashes of the
unrelated branches. The traversal and encoding follow the format carried by
the BIP-37 "merkleblock" message, so a proof can travel as a wire.MsgMerkleBlock.
*/
package merkle

import (
	"errors"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

var (
	ErrNoTransactions = errors.New("merkle: no transactions")
	ErrMaskLength     = errors.New("merkle: mask length differs from hash count")
	ErrTooManyHashes  = errors.New("merkle: more hashes than transactions")
	ErrNotEnoughBits  = errors.New("merkle: fewer flag bits than hashes")
	ErrOverflow       = errors.New("merkle: proof consumed more data than provided")
	ErrTrailingData   = errors.New("merkle: proof contains unused hashes or flag bits")
	ErrDuplicateChild = errors.New("merkle: identical left and right children")
)

// maxTxPerBlock bounds the tx count accepted by Extract. A transaction can't be
// smaller than 60 bytes, which gives the upper bound on a 4MB block.
const maxTxPerBlock = wire.MaxBlockPayload / 60

// PartialMerkleTree is the compact inclusion proof for a subset of a block's
// transactions.
type PartialMerkleTree struct {
	TxCount uint32
	Hashes  []chainhash.Hash
	Flags   []bool
}

type builder struct {
	txids   []chainhash.Hash
	matches []bool
	tree    *PartialMerkleTree
}

func treeWidth(txCount uint32, height uint) uint32 {
	return (txCount + (1 << height) - 1) >> height
}

func hashPair(left, right *chainhash.Hash) chainhash.Hash {
	var buf [chainhash.HashSize * 2]byte
	copy(buf[:chainhash.HashSize], left[:])
	copy(buf[chainhash.HashSize:], right[:])
	return chainhash.DoubleHashH(buf[:])
}

func (b *builder) calcHash(height uint, pos uint32) chainhash.Hash {
	if height == 0 {
		return b.txids[pos]
	}
	left := b.calcHash(height-1, pos*2)
	right := left
	if pos*2+1 < treeWidth(b.tree.TxCount, height-1) {
		right = b.calcHash(height-1, pos*2+1)
	}
	return hashPair(&left, &right)
}

func (b *builder) traverseAndBuild(height uint, pos uint32) {
	parentOfMatch := false
	begin := pos << height
	end := (pos + 1) << height
	for p := begin; p < end && p < b.tree.TxCount; p++ {
		if b.matches[p] {
			parentOfMatch = true
			break
		}
	}
	b.tree.Flags = append(b.tree.Flags, parentOfMatch)

	if height == 0 || !parentOfMatch {
		b.tree.Hashes = append(b.tree.Hashes, b.calcHash(height, pos))
		return
	}
	b.traverseAndBuild(height-1, pos*2)
	if pos*2+1 < treeWidth(b.tree.TxCount, height-1) {
		b.traverseAndBuild(height-1, pos*2+1)
	}
}

func rootHeight(txCount uint32) uint {
	var height uint
	for treeWidth(txCount, height) > 1 {
		height++
	}
	return height
}

// Build constructs the proof for the transactions flagged in matches.
// txids must be in block order and matches must be the same length.
func Build(txids []chainhash.Hash, matches []bool) (*PartialMerkleTree, error) {
	if len(txids) == 0 {
		return nil, ErrNoTransactions
	}
	if len(txids) != len(matches) {
		return nil, ErrMaskLength
	}

	b := &builder{
		txids:   txids,
		matches: matches,
		tree:    &PartialMerkleTree{TxCount: uint32(len(txids))},
	}
	b.traverseAndBuild(rootHeight(b.tree.TxCount), 0)
	return b.tree, nil
}

type extractor struct {
	tree     *PartialMerkleTree
	bitsUsed int
	hashUsed int
	matched  []chainhash.Hash
	indexes  []uint32
}

func (e *extractor) traverseAndExtract(height uint, pos uint32) (chainhash.Hash, error) {
	if e.bitsUsed >= len(e.tree.Flags) {
		return chainhash.Hash{}, ErrOverflow
	}
	parentOfMatch := e.tree.Flags[e.bitsUsed]
	e.bitsUsed++

	if height == 0 || !parentOfMatch {
		if e.hashUsed >= len(e.tree.Hashes) {
			return chainhash.Hash{}, ErrOverflow
		}
		hash := e.tree.Hashes[e.hashUsed]
		e.hashUsed++
		if height == 0 && parentOfMatch {
			e.matched = append(e.matched, hash)
			e.indexes = append(e.indexes, pos)
		}
		return hash, nil
	}

	left, err := e.traverseAndExtract(height-1, pos*2)
	if err != nil {
		return chainhash.Hash{}, err
	}
	right := left
	if pos*2+1 < treeWidth(e.tree.TxCount, height-1) {
		right, err = e.traverseAndExtract(height-1, pos*2+1)
		if err != nil {
			return chainhash.Hash{}, err
		}
		// CVE-2012-2459: a duplicated right branch would let two different
		// transaction lists share one root.
		if right.IsEqual(&left) {
			return chainhash.Hash{}, ErrDuplicateChild
		}
	}
	return hashPair(&left, &right), nil
}

// Extract walks the proof and returns the merkle root it commits to, the
// matched transaction hashes and their positions in the block.
func (t *PartialMerkleTree) Extract() (chainhash.Hash, []chainhash.Hash, []uint32, error) {
	if t.TxCount == 0 {
		return chainhash.Hash{}, nil, nil, ErrNoTransactions
	}
	if t.TxCount > maxTxPerBlock {
		return chainhash.Hash{}, nil, nil, ErrTooManyHashes
	}
	if uint32(len(t.Hashes)) > t.TxCount {
		return chainhash.Hash{}, nil, nil, ErrTooManyHashes
	}
	if len(t.Flags) < len(t.Hashes) {
		return chainhash.Hash{}, nil, nil, ErrNotEnoughBits
	}

	e := &extractor{tree: t}
	root, err := e.traverseAndExtract(rootHeight(t.TxCount), 0)
	if err != nil {
		return chainhash.Hash{}, nil, nil, err
	}
	// flags are padded to whole bytes on the wire
	if (e.bitsUsed+7)/8 != (len(t.Flags)+7)/8 || e.hashUsed != len(t.Hashes) {
		return chainhash.Hash{}, nil, nil, ErrTrailingData
	}
	return root, e.matched, e.indexes, nil
}

// Verify reports whether the proof commits to merkleRoot and includes txid.
func (t *PartialMerkleTree) Verify(merkleRoot *chainhash.Hash, txid *chainhash.Hash) bool {
	root, matched, _, err := t.Extract()
	if err != nil || !root.IsEqual(merkleRoot) {
		return false
	}
	for i := range matched {
		if matched[i].IsEqual(txid) {
			return true
		}
	}
	return false
}

// FlagBytes packs the flag bits little-endian within each byte.
func (t *PartialMerkleTree) FlagBytes() []byte {
	out := make([]byte, (len(t.Flags)+7)/8)
	for i, f := range t.Flags {
		if f {
			out[i/8] |= 1 << (uint(i) % 8)
		}
	}
	return out
}

// ToMsgMerkleBlock wraps the proof together with its block header.
func (t *PartialMerkleTree) ToMsgMerkleBlock(header *wire.BlockHeader) *wire.MsgMerkleBlock {
	msg := wire.NewMsgMerkleBlock(header)
	msg.Transactions = t.TxCount
	for i := range t.Hashes {
		h := t.Hashes[i]
		_ = msg.AddTxHash(&h)
	}
	msg.Flags = t.FlagBytes()
	return msg
}

// FromMsgMerkleBlock is the inverse of ToMsgMerkleBlock. Padding bits of the
// last flag byte are kept, Extract tolerates them.
func FromMsgMerkleBlock(msg *wire.MsgMerkleBlock) *PartialMerkleTree {
	t := &PartialMerkleTree{TxCount: msg.Transactions}
	for _, h := range msg.Hashes {
		t.Hashes = append(t.Hashes, *h)
	}
	for i := 0; i < len(msg.Flags)*8; i++ {
		t.Flags = append(t.Flags, msg.Flags[i/8]&(1<<(uint(i)%8)) != 0)
	}
	return t
}
