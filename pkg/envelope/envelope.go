// Package envelope builds the signed parameter set sent with every request.
package envelope

import (
	"bytes"
	"encoding/json"

	"github.com/0xfullStack/Cryptoless/pkg/apierror"
	"github.com/0xfullStack/Cryptoless/pkg/signer"
)

// SignatureKey is the reserved parameter key carrying the signature.
const SignatureKey = "signature"

// Params are the per call request parameters. Values are scalars, slices or
// nested maps, anything encoding/json can marshal.
type Params map[string]interface{}

// Envelope is Params plus the SignatureKey entry.
type Envelope map[string]interface{}

// Signature returns the signature carried by the envelope.
func (e Envelope) Signature() string {
	sig, _ := e[SignatureKey].(string)
	return sig
}

// Params returns a copy of the envelope without the signature entry.
func (e Envelope) Params() Params {
	params := make(Params, len(e))
	for k, v := range e {
		if k == SignatureKey {
			continue
		}
		params[k] = v
	}
	return params
}

// Canonicalize returns the canonical encoding of params: compact JSON with
// object keys sorted lexicographically at every depth and no HTML escaping.
// Numbers keep their literal representation.
func Canonicalize(params Params) ([]byte, error) {
	if params == nil {
		params = Params{}
	}
	raw, err := marshal(params)
	if err != nil {
		return nil, err
	}

	// Round trip through a generic value so that struct values nested in
	// params get their fields sorted like any other object.
	var generic interface{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return nil, err
	}
	return marshal(generic)
}

// Build copies params, signs their canonical encoding for identity with s
// and returns the resulting envelope.
func Build(params Params, identity string, s signer.Signer) (Envelope, error) {
	if s == nil {
		return nil, apierror.Configuration("signer must not be null")
	}
	if len(identity) <= 0 {
		return nil, apierror.Configuration("identity token must not be empty")
	}
	if _, ok := params[SignatureKey]; ok {
		return nil, apierror.Configuration(
			"params must not contain the reserved key %q", SignatureKey,
		)
	}

	env := make(Envelope, len(params)+1)
	for k, v := range params {
		env[k] = v
	}

	payload, err := Canonicalize(params)
	if err != nil {
		return nil, apierror.Configuration("params are not encodable: %s", err)
	}

	sig, err := s.Sign(payload, identity)
	if err != nil {
		return nil, apierror.Signing(err)
	}

	env[SignatureKey] = sig
	return env, nil
}

// Verify recomputes the signature of env with s and reports whether it
// matches the carried one.
func Verify(env Envelope, identity string, s signer.Signer) (bool, error) {
	payload, err := Canonicalize(env.Params())
	if err != nil {
		return false, apierror.Configuration("params are not encodable: %s", err)
	}
	sig, err := s.Sign(payload, identity)
	if err != nil {
		return false, apierror.Signing(err)
	}
	return sig == env.Signature(), nil
}

func marshal(v interface{}) ([]byte, error) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
