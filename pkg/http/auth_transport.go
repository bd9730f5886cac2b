package http

import "net/http"

type authTransport struct {
	header    string
	value     string
	transport http.RoundTripper
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	reqCopy := req.Clone(req.Context())

	if t.value != "" {
		reqCopy.Header.Set(t.header, t.value)
	}

	return t.transport.RoundTrip(reqCopy)
}

// WithAPIKeyHeader sets a provider-specific API key header, e.g. "Api-Key".
func WithAPIKeyHeader(header, key string) HttpOpts {
	return WithHeaderValue(header, key)
}

// WithHeaderValue sets a static header on every request. Empty values are skipped.
func WithHeaderValue(header, value string) HttpOpts {
	return WithTransport(func(rt http.RoundTripper) http.RoundTripper {
		return &authTransport{
			header:    header,
			value:     value,
			transport: rt,
		}
	})
}
