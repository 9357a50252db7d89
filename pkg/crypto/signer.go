// Package crypto provides secp256k1 key management and EIP-712 typed-data
// signing for exchange intents. Signatures authenticate the sender of an
// order without any on-chain interaction: the API recovers the address from
// the intent digest and uses it as the order owner.
package crypto

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer wraps one secp256k1 key pair and its derived address.
type Signer struct {
	priv *ecdsa.PrivateKey
	addr common.Address
}

// GenerateKey creates a Signer around a fresh random key pair.
func GenerateKey() (*Signer, error) {
	priv, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return &Signer{priv: priv, addr: crypto.PubkeyToAddress(priv.PublicKey)}, nil
}

// FromPrivateKeyHex loads a Signer from a hex private key, with or without
// the 0x prefix.
func FromPrivateKeyHex(hexKey string) (*Signer, error) {
	if len(hexKey) >= 2 && hexKey[:2] == "0x" {
		hexKey = hexKey[2:]
	}
	priv, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return &Signer{priv: priv, addr: crypto.PubkeyToAddress(priv.PublicKey)}, nil
}

// Address returns the address derived from the public key.
func (s *Signer) Address() common.Address { return s.addr }

// PrivateKeyHex returns the raw private key hex, without 0x prefix.
// Never log this.
func (s *Signer) PrivateKeyHex() string {
	return fmt.Sprintf("%x", crypto.FromECDSA(s.priv))
}

// Sign produces a 65-byte [R || S || V] signature over a 32-byte digest.
func (s *Signer) Sign(digest []byte) ([]byte, error) {
	if len(digest) != 32 {
		return nil, fmt.Errorf("digest must be 32 bytes, got %d", len(digest))
	}
	sig, err := crypto.Sign(digest, s.priv)
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}
	return sig, nil
}

// RecoverAddress returns the address that signed digest.
func RecoverAddress(digest, sig []byte) (common.Address, error) {
	if len(sig) != 65 {
		return common.Address{}, fmt.Errorf("invalid signature length: %d", len(sig))
	}
	if len(digest) != 32 {
		return common.Address{}, fmt.Errorf("invalid digest length: %d", len(digest))
	}
	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("recover: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// VerifySignature reports whether sig over digest was produced by addr.
func VerifySignature(addr common.Address, digest, sig []byte) bool {
	got, err := RecoverAddress(digest, sig)
	return err == nil && got == addr
}
