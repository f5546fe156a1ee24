package cryptoless

import (
	"encoding/hex"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/0xfullStack/Cryptoless/pkg/apierror"
	"github.com/0xfullStack/Cryptoless/pkg/signer"
)

// CoSign signs every required signing of tx that key is a signer of and
// returns the signatures to pass to SignTransaction.
func CoSign(tx Transaction, key *btcec.PrivateKey) ([]Signature, error) {
	if key == nil {
		return nil, apierror.Configuration("missing signing key")
	}
	if len(tx.RequiredSignings) <= 0 {
		return nil, apierror.Configuration("transaction %s has no required signings", tx.ID)
	}

	pubkeys := map[string]struct{}{
		hex.EncodeToString(key.PubKey().SerializeCompressed()):   {},
		hex.EncodeToString(key.PubKey().SerializeUncompressed()): {},
	}

	signatures := make([]Signature, 0, len(tx.RequiredSignings))
	for _, signing := range tx.RequiredSignings {
		pubkey, ok := findPubkey(signing.PublicKeys, pubkeys)
		if !ok {
			continue
		}
		sig, err := signer.SignHash(key, signing.Hash)
		if err != nil {
			return nil, apierror.Signing(err)
		}
		signatures = append(signatures, Signature{
			Hash:      signing.Hash,
			PublicKey: pubkey,
			Signature: sig,
		})
	}

	if len(signatures) <= 0 {
		return nil, apierror.Configuration(
			"key %s is not a signer of transaction %s", signer.PublicKeyHex(key), tx.ID,
		)
	}
	return signatures, nil
}

// findPubkey returns the entry of list matching one of pubkeys, as listed.
func findPubkey(list []string, pubkeys map[string]struct{}) (string, bool) {
	for _, pk := range list {
		normalized := strings.ToLower(strings.TrimPrefix(pk, "0x"))
		if _, ok := pubkeys[normalized]; ok {
			return pk, true
		}
	}
	return "", false
}
