package mcp

import "net/http"

// headerRoundTripper adds fixed headers to every request it forwards.
type headerRoundTripper struct {
	base    http.RoundTripper
	headers http.Header
}

func (t *headerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, vs := range t.headers {
		req.Header[k] = append([]string(nil), vs...)
	}
	return t.base.RoundTrip(req)
}

// newHeaderClient returns an HTTP client sending headers with each request,
// or nil, which the SDK transports treat as http.DefaultClient, when there
// are none.
func newHeaderClient(headers map[string]string) *http.Client {
	h := headerValues(headers)
	if h == nil {
		return nil
	}
	return &http.Client{Transport: &headerRoundTripper{base: http.DefaultTransport, headers: h}}
}

func headerValues(headers map[string]string) http.Header {
	if len(headers) == 0 {
		return nil
	}
	h := make(http.Header, len(headers))
	for k, v := range headers {
		h.Set(k, v)
	}
	return h
}
