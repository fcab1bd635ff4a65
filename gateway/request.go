package gateway

import (
	"encoding/json"
	"net/http"
)

// Request describes one protected API call. Body is opaque to the gateway and is kept as
// bytes so the call can be sent again after a silent re-login.
type Request struct {
	Method   string
	Resource string // absolute URL, or a path joined to the gateway base URL
	Header   http.Header
	Body     []byte
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

func (r *Response) DecodeJSON(v any) error {
	return json.Unmarshal(r.Body, v)
}
