package log

import (
	"net/http"
	"time"
)

// Transport is an http.RoundTripper that logs every outbound call with the
// logger found in the request context.
type Transport struct {
	// Name identifies the upstream in log lines ("pubmed", "chembl", ...).
	Name string
	// Base is the wrapped transport. Nil means http.DefaultTransport.
	Base http.RoundTripper
}

// NewTransport wraps base with upstream call logging.
func NewTransport(name string, base http.RoundTripper) *Transport {
	return &Transport{Name: name, Base: base}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	start := time.Now()
	resp, err := base.RoundTrip(req)

	l := Ctx(req.Context())
	latency := float64(time.Since(start).Milliseconds())

	if err != nil {
		l.Warn().
			Err(err).
			Str(FieldUpstream, t.Name).
			Str(FieldUpstreamHost, req.URL.Host).
			Str(FieldPath, req.URL.Path).
			Float64(FieldLatency, latency).
			Msg("upstream call failed")
		return nil, err
	}

	l.Debug().
		Str(FieldUpstream, t.Name).
		Str(FieldUpstreamHost, req.URL.Host).
		Str(FieldMethod, req.Method).
		Str(FieldPath, req.URL.Path).
		Int(FieldStatus, resp.StatusCode).
		Float64(FieldLatency, latency).
		Msg("upstream call completed")

	return resp, nil
}
