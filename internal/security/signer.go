// Package security signs outbound snapshots so receivers can check where they
// came from and that they were not altered in transit.
//
// Signatures use the Ethereum scheme: the Keccak-256 hash of the payload is
// signed with a secp256k1 key, and receivers recover the signer address.
package security

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"
)

// Signer holds the secp256k1 key used for snapshot signatures
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewSigner loads a hex-encoded private key (with or without 0x). An empty key
// generates an ephemeral one, which is fine for development but means the
// signer address changes on every restart.
func NewSigner(hexKey string) (*Signer, error) {
	var (
		key *ecdsa.PrivateKey
		err error
	)
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		key, err = crypto.GenerateKey()
		if err != nil {
			return nil, fmt.Errorf("failed to generate signing key: %w", err)
		}
		logrus.Warn("No signing key configured, using an ephemeral key")
	} else {
		key, err = crypto.HexToECDSA(hexKey)
		if err != nil {
			return nil, fmt.Errorf("invalid signing key: %w", err)
		}
	}

	s := &Signer{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}
	logrus.Infof("Snapshot signer initialized with address %s", s.address.Hex())
	return s, nil
}

// Address returns the checksummed signer address
func (s *Signer) Address() string {
	return s.address.Hex()
}

// Sign returns the 0x-prefixed 65-byte signature over keccak256(payload)
func (s *Signer) Sign(payload []byte) (string, error) {
	hash := crypto.Keccak256Hash(payload)
	sig, err := crypto.Sign(hash.Bytes(), s.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign payload: %w", err)
	}
	return hexutil.Encode(sig), nil
}

// Verify reports whether signature is a valid signature of payload by the
// given address.
func Verify(payload []byte, signature, address string) (bool, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return false, fmt.Errorf("failed to decode signature: %w", err)
	}
	if len(sig) != crypto.SignatureLength {
		return false, fmt.Errorf("invalid signature length: %d", len(sig))
	}
	if !common.IsHexAddress(address) {
		return false, fmt.Errorf("invalid signer address: %q", address)
	}

	hash := crypto.Keccak256Hash(payload)
	pub, err := crypto.SigToPub(hash.Bytes(), sig)
	if err != nil {
		return false, fmt.Errorf("failed to recover public key: %w", err)
	}
	if crypto.PubkeyToAddress(*pub) != common.HexToAddress(address) {
		return false, nil
	}

	// The recovery id is not part of the compact form.
	return crypto.VerifySignature(crypto.FromECDSAPub(pub), hash.Bytes(), sig[:64]), nil
}
