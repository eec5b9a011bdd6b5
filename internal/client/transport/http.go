// Package transport connects a vibbin client to the server: the signaling websocket and the
// basic-auth HTTP client used for the REST routes.
package transport

import (
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Credentials identify the account a client acts as
type Credentials struct {
	BaseURL,
	Username,
	Password string
}

// Transport adds the server's base url and basic auth to each request sent by an http.Client
// that uses it
type Transport struct {
	Credentials
	Base http.RoundTripper
}

// RoundTrip adds upon the normal http.Transport.RoundTrip() behavior to add basic auth and a base url to each request.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	baseURL := strings.TrimSuffix(t.BaseURL, "/")
	path := "/" + strings.TrimPrefix(req.URL.RequestURI(), "/")
	newURL, err := req.URL.Parse(baseURL + path)
	if err != nil {
		return nil, err
	}

	// RoundTrippers must not modify the caller's request
	req = req.Clone(req.Context())
	req.URL = newURL
	req.Host = newURL.Host
	req.SetBasicAuth(t.Username, t.Password)
	logrus.WithFields(logrus.Fields{"method": req.Method, "url": newURL.Redacted()}).Debug("request to vibbin server")

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}

// NewClient provides an http.Client for REST requests to the vibbin server. Request paths are
// relative to the configured base url.
func NewClient(c Credentials) *http.Client {
	return &http.Client{
		Timeout:   10 * time.Second,
		Transport: &Transport{Credentials: c},
	}
}
