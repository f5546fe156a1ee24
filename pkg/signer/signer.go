// Package signer provides the primitives producing the signature attached to
// every outgoing request parameter set.
package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/schnorr"
)

// Signer produces a deterministic proof over a canonical payload, bound to the
// caller identity token.
type Signer interface {
	Sign(payload []byte, identity string) (string, error)
}

// Func adapts an ordinary function to the Signer interface.
type Func func(payload []byte, identity string) (string, error)

// Sign implements Signer.
func (f Func) Sign(payload []byte, identity string) (string, error) {
	return f(payload, identity)
}

type identitySigner struct {
	apiKey []byte
}

// NewIdentitySigner returns a Signer that authenticates the payload with
// HMAC-SHA256 keyed by the given api key. A leading "Apikey " scheme is
// stripped from the key.
func NewIdentitySigner(apiKey string) (Signer, error) {
	apiKey = strings.TrimSpace(strings.TrimPrefix(apiKey, "Apikey "))
	if len(apiKey) <= 0 {
		return nil, ErrMissingAPIKey
	}
	return &identitySigner{[]byte(apiKey)}, nil
}

func (s *identitySigner) Sign(payload []byte, identity string) (string, error) {
	mac := hmac.New(sha256.New, s.apiKey)
	mac.Write(message(payload, identity))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

type ecdsaSigner struct {
	key *btcec.PrivateKey
}

// NewECDSASigner returns a Signer producing DER encoded secp256k1 ECDSA
// signatures over the double SHA256 of the payload. Nonces are derived as
// per RFC6979, hence signatures are deterministic.
func NewECDSASigner(key *btcec.PrivateKey) (Signer, error) {
	if key == nil {
		return nil, ErrNullKey
	}
	return &ecdsaSigner{key}, nil
}

func (s *ecdsaSigner) Sign(payload []byte, identity string) (string, error) {
	digest := chainhash.DoubleHashB(message(payload, identity))
	sig := ecdsa.Sign(s.key, digest)
	return hex.EncodeToString(sig.Serialize()), nil
}

type schnorrSigner struct {
	key *btcec.PrivateKey
}

// NewSchnorrSigner returns a Signer producing EC-Schnorr-DCRv0 signatures over
// the double SHA256 of the payload.
func NewSchnorrSigner(key *btcec.PrivateKey) (Signer, error) {
	if key == nil {
		return nil, ErrNullKey
	}
	return &schnorrSigner{key}, nil
}

func (s *schnorrSigner) Sign(payload []byte, identity string) (string, error) {
	digest := chainhash.DoubleHashB(message(payload, identity))
	sig, err := schnorr.Sign(s.key, digest)
	if err != nil {
		return "", fmt.Errorf("schnorr sign: %w", err)
	}
	return hex.EncodeToString(sig.Serialize()), nil
}

// message binds the identity to the payload so that the same parameters
// signed for two different sessions never share a signature.
func message(payload []byte, identity string) []byte {
	msg := make([]byte, 0, len(identity)+1+len(payload))
	msg = append(msg, identity...)
	msg = append(msg, '\n')
	return append(msg, payload...)
}
