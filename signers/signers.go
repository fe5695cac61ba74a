// This file contains
// LocalSigner: a single btcec key producing BIP-340 schnorr signatures,
// identified on the ledger by its x-only public key (AuthorityID).
package signers

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/TEENet-io/btcrelay/common"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

// AuthorityID is the 32-byte x-only public key of a relay identity.
type AuthorityID [32]byte

func (id AuthorityID) String() string {
	return hex.EncodeToString(id[:])
}

func (id AuthorityID) Less(other AuthorityID) bool {
	return bytes.Compare(id[:], other[:]) < 0
}

func AuthorityIDFromPubKey(pk *btcec.PublicKey) AuthorityID {
	var id AuthorityID
	copy(id[:], schnorr.SerializePubKey(pk))
	return id
}

func ParseAuthorityID(hexStr string) (AuthorityID, error) {
	var id AuthorityID
	b, err := hex.DecodeString(common.Trim0xPrefix(hexStr))
	if err != nil {
		return id, err
	}
	if len(b) != 32 {
		return id, fmt.Errorf("authority id must be 32 bytes, got %d", len(b))
	}
	if _, err := schnorr.ParsePubKey(b); err != nil {
		return id, err
	}
	copy(id[:], b)
	return id, nil
}

// Signature is a serialized BIP-340 signature.
type Signature [schnorr.SignatureSize]byte

// Local schnorr signer, backed by one single private key.
type LocalSigner struct {
	sk *btcec.PrivateKey
	id AuthorityID
}

// If user provides a 256-bit (32byte) private key, we can create a signer.
func NewLocalSigner(privkey []byte) (*LocalSigner, error) {
	if len(privkey) != 32 {
		return nil, fmt.Errorf("private key must be 32 bytes, got %d", len(privkey))
	}
	sk, pk := btcec.PrivKeyFromBytes(privkey)
	return &LocalSigner{sk: sk, id: AuthorityIDFromPubKey(pk)}, nil
}

// NewLocalSignerFromHex accepts a hex private key with or without 0x.
func NewLocalSignerFromHex(hexKey string) (*LocalSigner, error) {
	if !common.IsHexString(hexKey) {
		return nil, fmt.Errorf("private key is not a hex string")
	}
	return NewLocalSigner(common.HexStrToByteSlice(hexKey))
}

// If user choose to randomly generate a signer.
func NewRandomLocalSigner() (*LocalSigner, error) {
	sk, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, err
	}
	return &LocalSigner{sk: sk, id: AuthorityIDFromPubKey(sk.PubKey())}, nil
}

func (s *LocalSigner) ID() AuthorityID {
	return s.id
}

// PrivateKeyHex is only meant for key generation output.
func (s *LocalSigner) PrivateKeyHex() string {
	return hex.EncodeToString(s.sk.Serialize())
}

// Sign signs a 32-byte digest.
func (s *LocalSigner) Sign(hash []byte) (Signature, error) {
	var out Signature
	sig, err := schnorr.Sign(s.sk, hash)
	if err != nil {
		return out, err
	}
	copy(out[:], sig.Serialize())
	return out, nil
}

// Verify checks sig over hash against the x-only key id.
func Verify(id AuthorityID, hash []byte, sig Signature) bool {
	pk, err := schnorr.ParsePubKey(id[:])
	if err != nil {
		return false
	}
	parsed, err := schnorr.ParseSignature(sig[:])
	if err != nil {
		return false
	}
	return parsed.Verify(hash, pk)
}
