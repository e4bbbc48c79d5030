package server

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"strings"

	json "github.com/goccy/go-json"
)

// Query returns the decoded query string parameters. The map is built on
// first use and owned by the caller's request cycle.
func (r *Request) Query() map[string]string {
	if r.query == nil {
		r.query = parseKeyValuePairsFromBytes(r.RawQuery())
	}
	return r.query
}

// Form reads the body and decodes it as JSON when the Content-Type says so,
// as URL-encoded pairs otherwise. Nested JSON values are formatted with %v.
func (r *Request) Form() (map[string]string, error) {
	body, err := r.Body()
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return map[string]string{}, nil
	}
	if ct, _ := r.Header("Content-Type"); strings.Contains(ct, "application/json") {
		return parseJSONBodyFromBytes(body)
	}
	return parseKeyValuePairsFromBytes(body), nil
}

// DecodeJSON reads the body and unmarshals it into v.
func (r *Request) DecodeJSON(v any) error {
	body, err := r.Body()
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return newError(KindOption, "decode json", errors.New("empty body"))
	}
	if err := json.Unmarshal(body, v); err != nil {
		return newError(KindBuildReq, "decode json", err)
	}
	return nil
}

// parseKeyValuePairsFromBytes parses URL-encoded key-value pairs
func parseKeyValuePairsFromBytes(data []byte) map[string]string {
	resultMap := make(map[string]string, 8)
	for len(data) > 0 {
		var pair []byte
		if i := bytes.IndexByte(data, '&'); i >= 0 {
			pair, data = data[:i], data[i+1:]
		} else {
			pair, data = data, nil
		}
		eq := bytes.IndexByte(pair, '=')
		if eq < 0 {
			continue
		}
		resultMap[safeURLDecode(string(pair[:eq]))] = safeURLDecode(string(pair[eq+1:]))
	}
	return resultMap
}

// parseJSONBodyFromBytes parses a JSON object body into a string map
func parseJSONBodyFromBytes(bodyData []byte) (map[string]string, error) {
	var jsonData map[string]any
	if err := json.Unmarshal(bodyData, &jsonData); err != nil {
		return nil, newError(KindBuildReq, "parse json body", err)
	}

	result := make(map[string]string, len(jsonData))
	for key, value := range jsonData {
		result[key] = fmt.Sprintf("%v", value)
	}
	return result, nil
}

// safeURLDecode decodes a URL-encoded string, returning original on error
func safeURLDecode(encoded string) string {
	decoded, err := url.QueryUnescape(encoded)
	if err != nil {
		return encoded
	}
	return decoded
}

// detectBrowser determines browser from User-Agent header
func detectBrowser(userAgent string) string {
	switch {
	case strings.Contains(userAgent, "Chrome"):
		return "Chrome"
	case strings.Contains(userAgent, "Firefox"):
		return "Firefox"
	case strings.Contains(userAgent, "Safari"):
		return "Safari"
	default:
		return "Unknown Browser"
	}
}
