// Package validatorkeys generates the key material a validator record
// stores (spec §3: consensus key, Ethereum hot/cold keys), adapted
// from the teacher's crypto/key.go GenerateKeyPair/GenerateWalletKeys
// pair — the stealth-address/ring-signature machinery around it is
// dropped (see DESIGN.md) since it has no PoS analog.
package validatorkeys

import (
	"crypto/rand"

	"golang.org/x/crypto/ed25519"

	"github.com/rashidovich/namada/postypes"
)

// KeyPair is a generated identity: a signing key plus the public key
// in the fixed-size shape the PoS core stores.
type KeyPair struct {
	PrivateKey ed25519.PrivateKey
	PublicKey  postypes.ConsensusKey
}

// Generate creates a new Ed25519 keypair for use as a validator's
// consensus key.
func Generate() (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	var pk postypes.ConsensusKey
	copy(pk[:], pub)
	return &KeyPair{PrivateKey: priv, PublicKey: pk}, nil
}

// ValidatorIdentity bundles the three key material slots a validator
// record carries: the Tendermint-visible consensus key and the
// Ethereum hot/cold keys used by the (out-of-scope) bridge layer.
type ValidatorIdentity struct {
	Consensus *KeyPair
	EthHot    postypes.EthKey
	EthCold   postypes.EthKey
}

// GenerateIdentity creates a fresh consensus keypair and placeholder
// Ethereum hot/cold keys (random bytes — real derivation is the
// bridge's concern, out of scope here).
func GenerateIdentity() (*ValidatorIdentity, error) {
	consensus, err := Generate()
	if err != nil {
		return nil, err
	}
	id := &ValidatorIdentity{Consensus: consensus}
	if _, err := rand.Read(id.EthHot[:]); err != nil {
		return nil, err
	}
	if _, err := rand.Read(id.EthCold[:]); err != nil {
		return nil, err
	}
	return id, nil
}

// Sign signs msg with the consensus private key.
func (kp *KeyPair) Sign(msg []byte) []byte {
	return ed25519.Sign(kp.PrivateKey, msg)
}

// Verify checks a signature against a stored consensus key.
func Verify(pub postypes.ConsensusKey, msg, sig []byte) bool {
	return ed25519.Verify(ed25519.PublicKey(pub[:]), msg, sig)
}
