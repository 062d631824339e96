// Package wallet manages custodial wallets for bot users.
//
// Keys derive from a BIP-39 mnemonic held by the bot on the user's behalf.
// Addresses are the base58 encoding of a versioned SHA3-256 digest of the
// ed25519 public key.
package wallet

import (
	"crypto/ed25519"
	"fmt"

	"github.com/mr-tron/base58"
	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/sha3"
)

// Key derivation parameters.
const (
	// EntropyBits sizes the mnemonic entropy; 128 bits yields 12 words.
	EntropyBits = 128
	// AddressVersion prefixes the address digest so wallets from other
	// networks fail to parse.
	AddressVersion = 0x52
)

// Keypair holds a derived wallet: the mnemonic that recovers it, the signing
// key and the public address.
type Keypair struct {
	Mnemonic string
	Address  string
	priv     ed25519.PrivateKey
}

// Generate creates a fresh wallet from new random entropy.
func Generate() (*Keypair, error) {
	entropy, err := bip39.NewEntropy(EntropyBits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return nil, fmt.Errorf("failed to derive mnemonic: %w", err)
	}
	return FromMnemonic(mnemonic)
}

// FromMnemonic deterministically rebuilds a wallet from its mnemonic.
func FromMnemonic(mnemonic string) (*Keypair, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, fmt.Errorf("invalid mnemonic")
	}
	seed := bip39.NewSeed(mnemonic, "")
	priv := ed25519.NewKeyFromSeed(seed[:ed25519.SeedSize])
	pub := priv.Public().(ed25519.PublicKey)
	return &Keypair{
		Mnemonic: mnemonic,
		Address:  AddressFromPublicKey(pub),
		priv:     priv,
	}, nil
}

// AddressFromPublicKey derives the wallet address for an ed25519 public key.
func AddressFromPublicKey(pub ed25519.PublicKey) string {
	digest := sha3.Sum256(pub)
	payload := append([]byte{AddressVersion}, digest[:]...)
	return base58.Encode(payload)
}

// Sign signs a transaction payload with the wallet's private key.
func (k *Keypair) Sign(payload []byte) []byte {
	return ed25519.Sign(k.priv, payload)
}
