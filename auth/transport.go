package auth

import "net/http"

// TokenSource returns the current bearer token, or "" when signed out.
type TokenSource func() string

// Transport is an http.RoundTripper that adds the session's bearer token.
//
// Usage:
//
//	client := &http.Client{Transport: &auth.Transport{Token: session.Token}}
type Transport struct {
	// Base is the underlying transport. Default: http.DefaultTransport.
	Base http.RoundTripper

	// Token supplies the bearer token per request.
	Token TokenSource
}

// RoundTrip sets Authorization when a token is available and the request
// has none, then delegates to Base.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if t.Token == nil || req.Header.Get("Authorization") != "" {
		return base.RoundTrip(req)
	}

	token := t.Token()
	if token == "" {
		return base.RoundTrip(req)
	}

	// RoundTrippers must not modify the caller's request.
	r := req.Clone(req.Context())
	r.Header.Set("Authorization", "Bearer "+token)
	return base.RoundTrip(r)
}
