package httputil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Encoding is the way the parameter set of a Request is transmitted.
type Encoding int

const (
	// FormEncoding sends params url-encoded, in the query string for GET,
	// HEAD and DELETE, in the body otherwise.
	FormEncoding Encoding = iota
	// JSONEncoding sends params as a JSON object in the body.
	JSONEncoding
)

func (e Encoding) String() string {
	switch e {
	case FormEncoding:
		return "form"
	case JSONEncoding:
		return "json"
	default:
		return "unknown"
	}
}

func encodeJSON(params map[string]interface{}) ([]byte, error) {
	if params == nil {
		params = map[string]interface{}{}
	}
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(params); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// encodeForm url-encodes params with sorted keys. Nested values use the
// bracket notation: arrays as key[]=v, objects as key[sub]=v.
func encodeForm(params map[string]interface{}) (string, error) {
	if len(params) <= 0 {
		return "", nil
	}

	raw, err := json.Marshal(params)
	if err != nil {
		return "", err
	}
	var generic map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return "", err
	}

	keys := make([]string, 0, len(generic))
	for k := range generic {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	components := make([]string, 0, len(keys))
	for _, k := range keys {
		components = append(components, queryComponents(k, generic[k])...)
	}
	return strings.Join(components, "&"), nil
}

func queryComponents(key string, value interface{}) []string {
	switch v := value.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		components := make([]string, 0, len(keys))
		for _, k := range keys {
			components = append(components, queryComponents(fmt.Sprintf("%s[%s]", key, k), v[k])...)
		}
		return components
	case []interface{}:
		components := make([]string, 0, len(v))
		for _, item := range v {
			components = append(components, queryComponents(key+"[]", item)...)
		}
		return components
	case nil:
		return []string{url.QueryEscape(key) + "="}
	default:
		return []string{url.QueryEscape(key) + "=" + url.QueryEscape(fmt.Sprint(v))}
	}
}
