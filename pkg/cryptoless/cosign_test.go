package cryptoless

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/require"

	"github.com/0xfullStack/Cryptoless/pkg/apierror"
)

func TestCoSign(t *testing.T) {
	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	other, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	pubkey := "0x" + strings.ToUpper(hex.EncodeToString(key.PubKey().SerializeCompressed()))
	otherPubkey := hex.EncodeToString(other.PubKey().SerializeCompressed())
	hash := chainhash.HashB([]byte("tx"))

	tx := Transaction{
		ID: "tx1",
		RequiredSignings: []Signing{
			{Hash: hex.EncodeToString(hash), PublicKeys: []string{otherPubkey, pubkey}, Threshold: 1},
			{Hash: hex.EncodeToString(hash), PublicKeys: []string{otherPubkey}, Threshold: 1},
		},
	}

	signatures, err := CoSign(tx, key)
	require.NoError(t, err)
	require.Len(t, signatures, 1)
	require.Equal(t, pubkey, signatures[0].PublicKey)
	require.Equal(t, tx.RequiredSignings[0].Hash, signatures[0].Hash)

	sig, err := hex.DecodeString(signatures[0].Signature)
	require.NoError(t, err)
	require.Len(t, sig, 65)
	compact := append([]byte{sig[64] + 31}, sig[:64]...)
	recovered, _, err := ecdsa.RecoverCompact(compact, hash)
	require.NoError(t, err)
	require.True(t, recovered.IsEqual(key.PubKey()))

	_, err = CoSign(Transaction{
		ID:               "tx2",
		RequiredSignings: []Signing{{Hash: hex.EncodeToString(hash), PublicKeys: []string{otherPubkey}}},
	}, key)
	require.ErrorIs(t, err, apierror.ErrConfiguration)

	_, err = CoSign(Transaction{ID: "tx3"}, key)
	require.ErrorIs(t, err, apierror.ErrConfiguration)

	_, err = CoSign(Transaction{
		ID:               "tx4",
		RequiredSignings: []Signing{{Hash: "zz", PublicKeys: []string{pubkey}}},
	}, key)
	require.ErrorIs(t, err, apierror.ErrSigning)
}
