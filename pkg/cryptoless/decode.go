package cryptoless

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/0xfullStack/Cryptoless/pkg/apierror"
)

// checkResponse returns body for 2xx status codes. Otherwise it returns a
// *apierror.DomainError if body is a {code, message} object, or a
// *apierror.StatusCodeError.
func checkResponse(status int, body []byte) ([]byte, error) {
	if status >= http.StatusOK && status < http.StatusMultipleChoices {
		return body, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err == nil {
		_, hasCode := fields["code"]
		_, hasMessage := fields["message"]
		if hasCode && hasMessage {
			domainErr := &apierror.DomainError{StatusCode: status}
			if err := json.Unmarshal(body, domainErr); err == nil {
				return nil, domainErr
			}
		}
	}
	return nil, &apierror.StatusCodeError{StatusCode: status, Body: string(body)}
}

func decodeObject(body []byte, v interface{}) error {
	if err := json.Unmarshal(body, v); err != nil {
		return apierror.Decode(err)
	}
	return nil
}

// decodeList unwraps the {data: [...]} envelope of list responses into v.
// A missing or null data decodes as an empty list. A bare array is accepted
// as well.
func decodeList(body []byte, v interface{}) error {
	data := bytes.TrimSpace(body)
	if len(data) > 0 && data[0] != '[' {
		var wrapper struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(data, &wrapper); err != nil {
			return apierror.Decode(err)
		}
		data = wrapper.Data
	}
	if len(data) <= 0 || string(data) == "null" {
		data = []byte("[]")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return apierror.Decode(err)
	}
	return nil
}
