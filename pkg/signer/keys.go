package signer

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/tyler-smith/go-bip32"
	"github.com/tyler-smith/go-bip39"
)

// DefaultDerivationPath is the BIP-44 path of the first ethereum account.
const DefaultDerivationPath = "m/44'/60'/0'/0/0"

// KeyFromMnemonic derives the private key at the given BIP-32 path from a
// BIP-39 mnemonic and optional passphrase.
func KeyFromMnemonic(mnemonic, passphrase, path string) (*btcec.PrivateKey, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}
	indexes, err := ParseDerivationPath(path)
	if err != nil {
		return nil, err
	}

	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, passphrase)
	if err != nil {
		return nil, fmt.Errorf("seed from mnemonic: %w", err)
	}
	key, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, fmt.Errorf("master key: %w", err)
	}
	for _, i := range indexes {
		if key, err = key.NewChildKey(i); err != nil {
			return nil, fmt.Errorf("derive child %d: %w", i, err)
		}
	}

	raw := key.Key
	if len(raw) == 33 && raw[0] == 0 {
		raw = raw[1:]
	}
	priv, _ := btcec.PrivKeyFromBytes(raw)
	return priv, nil
}

// KeyFromHex parses a 32 bytes hex encoded private key.
func KeyFromHex(str string) (*btcec.PrivateKey, error) {
	buf, err := hex.DecodeString(strings.TrimPrefix(str, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	if len(buf) != 32 {
		return nil, fmt.Errorf("private key must be 32 bytes, got %d", len(buf))
	}
	priv, _ := btcec.PrivKeyFromBytes(buf)
	return priv, nil
}

// ParseDerivationPath parses a path like m/44'/60'/0'/0/0 into child indexes.
// Both ' and h are accepted as hardened markers.
func ParseDerivationPath(path string) ([]uint32, error) {
	parts := strings.Split(strings.TrimSuffix(strings.TrimSpace(path), "/"), "/")
	if len(parts) < 1 || parts[0] != "m" {
		return nil, ErrInvalidDerivationPath
	}

	indexes := make([]uint32, 0, len(parts)-1)
	for _, p := range parts[1:] {
		hardened := strings.HasSuffix(p, "'") || strings.HasSuffix(p, "h")
		p = strings.TrimRight(p, "'h")
		i, err := strconv.ParseUint(p, 10, 31)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidDerivationPath, path)
		}
		index := uint32(i)
		if hardened {
			index += bip32.FirstHardenedChild
		}
		indexes = append(indexes, index)
	}
	return indexes, nil
}

// PublicKeyHex returns the hex encoded compressed public key of key.
func PublicKeyHex(key *btcec.PrivateKey) string {
	return hex.EncodeToString(key.PubKey().SerializeCompressed())
}

// SignHash signs a 32 bytes hex encoded hash and returns the 65 bytes
// R || S || V signature, hex encoded, where V is the recovery id.
func SignHash(key *btcec.PrivateKey, hashHex string) (string, error) {
	hash, err := hex.DecodeString(strings.TrimPrefix(hashHex, "0x"))
	if err != nil || len(hash) != 32 {
		return "", ErrInvalidHash
	}

	compact, err := ecdsa.SignCompact(key, hash, true)
	if err != nil {
		return "", err
	}

	// compact is [27 + 4 + recid][R][S]
	sig := make([]byte, 65)
	copy(sig, compact[1:])
	sig[64] = compact[0] - 31
	return hex.EncodeToString(sig), nil
}
