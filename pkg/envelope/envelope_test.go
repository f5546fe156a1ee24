package envelope_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/0xfullStack/Cryptoless/pkg/apierror"
	"github.com/0xfullStack/Cryptoless/pkg/envelope"
	"github.com/0xfullStack/Cryptoless/pkg/signer"
)

const identity = "web3-token"

func newTestSigner(t *testing.T) signer.Signer {
	s, err := signer.NewIdentitySigner("test-api-key")
	require.NoError(t, err)
	return s
}

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name     string
		params   envelope.Params
		expected string
	}{
		{
			name:     "empty",
			params:   nil,
			expected: `{}`,
		},
		{
			name: "sorted keys",
			params: envelope.Params{
				"limit":  "10000",
				"filter": "updatedTime:0..",
			},
			expected: `{"filter":"updatedTime:0..","limit":"10000"}`,
		},
		{
			name: "nested values",
			params: envelope.Params{
				"threshold":  2,
				"publicKeys": []string{"b", "a"},
				"nested":     map[string]interface{}{"z": 1.5, "a": true},
			},
			expected: `{"nested":{"a":true,"z":1.5},"publicKeys":["b","a"],"threshold":2}`,
		},
		{
			name: "structs",
			params: envelope.Params{
				"signatures": []struct {
					PublicKey string `json:"publicKey"`
					Hash      string `json:"hash"`
				}{{"pk", "h"}},
			},
			expected: `{"signatures":[{"hash":"h","publicKey":"pk"}]}`,
		},
		{
			name:     "no html escaping",
			params:   envelope.Params{"to": "<a&b>"},
			expected: `{"to":"<a&b>"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, err := envelope.Canonicalize(tt.params)
			require.NoError(t, err)
			require.Equal(t, tt.expected, string(buf))
		})
	}
}

func TestBuild(t *testing.T) {
	s := newTestSigner(t)
	params := envelope.Params{
		"networkCode": "eth",
		"amount":      "0.001",
		"publicKeys":  []string{"a", "b"},
	}

	env1, err := envelope.Build(params, identity, s)
	require.NoError(t, err)
	env2, err := envelope.Build(params, identity, s)
	require.NoError(t, err)

	require.NotEmpty(t, env1.Signature())
	require.Equal(t, env1.Signature(), env2.Signature())
	require.Len(t, env1, len(params)+1)
	require.Equal(t, params, env1.Params())

	// Input is never mutated.
	_, ok := params[envelope.SignatureKey]
	require.False(t, ok)

	valid, err := envelope.Verify(env1, identity, s)
	require.NoError(t, err)
	require.True(t, valid)

	env1["amount"] = "1000"
	valid, err = envelope.Verify(env1, identity, s)
	require.NoError(t, err)
	require.False(t, valid)
}

func TestBuildFails(t *testing.T) {
	s := newTestSigner(t)
	signingErr := errors.New("malformed key material")
	failing := signer.Func(func([]byte, string) (string, error) {
		return "", signingErr
	})

	tests := []struct {
		name     string
		params   envelope.Params
		identity string
		signer   signer.Signer
		kind     error
	}{
		{
			name:     "reserved key",
			params:   envelope.Params{envelope.SignatureKey: "forged"},
			identity: identity,
			signer:   s,
			kind:     apierror.ErrConfiguration,
		},
		{
			name:     "missing identity",
			params:   envelope.Params{},
			identity: "",
			signer:   s,
			kind:     apierror.ErrConfiguration,
		},
		{
			name:     "missing signer",
			params:   envelope.Params{},
			identity: identity,
			signer:   nil,
			kind:     apierror.ErrConfiguration,
		},
		{
			name:     "not encodable",
			params:   envelope.Params{"ch": make(chan int)},
			identity: identity,
			signer:   s,
			kind:     apierror.ErrConfiguration,
		},
		{
			name:     "signer failure",
			params:   envelope.Params{"a": "b"},
			identity: identity,
			signer:   failing,
			kind:     apierror.ErrSigning,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := envelope.Build(tt.params, tt.identity, tt.signer)
			require.Nil(t, env)
			require.ErrorIs(t, err, tt.kind)
		})
	}

	_, err := envelope.Build(envelope.Params{}, identity, failing)
	require.ErrorIs(t, err, signingErr)
}
