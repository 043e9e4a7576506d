package adapter

import (
	"context"
	"encoding/json"
	"strconv"
)

type Method string

const (
	MethodGet  Method = "GET"
	MethodPost Method = "POST"
)

// Payload is a JSON request body (query string for GET).
type Payload map[string]any

// Response is a decoded billing API body. Numbers stay json.Number.
type Response struct {
	Body map[string]any
	Raw  []byte
}

// Code is the status code as text; the API sends it as string or number.
func (r Response) Code() string { return Stringify(r.Body["code"]) }

func (r Response) Message() string { return Stringify(r.Body["message"]) }

// Info returns the INFO object of check responses.
func (r Response) Info() (map[string]any, bool) {
	m, ok := r.Body["INFO"].(map[string]any)
	return m, ok && m != nil
}

// Path walks nested objects, e.g. Path("meta_data", "original", "token").
func (r Response) Path(keys ...string) (any, bool) {
	var cur any = r.Body
	for _, k := range keys {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[k]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// Str is Path followed by Stringify; missing keys give "".
func (r Response) Str(keys ...string) string {
	v, _ := r.Path(keys...)
	return Stringify(v)
}

func (r Response) String() string { return string(r.Raw) }

// Stringify renders scalar JSON values as text. Objects and arrays are
// re-encoded; nil gives "".
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

type CallOptions struct {
	Bearer string
}

type CallOption func(*CallOptions)

func WithBearer(token string) CallOption {
	return func(o *CallOptions) { o.Bearer = token }
}

// BillingClient talks to the telecom billing API.
type BillingClient interface {
	// Call retries transport failures and returns *domain.APIError once attempts run out.
	// Bodies come back opaque; callers interpret codes themselves.
	Call(ctx context.Context, endpoint string, payload Payload, method Method, opts ...CallOption) (Response, error)
}
