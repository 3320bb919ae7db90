// Package client drives the Stagegate identity provider's server-side
// flow state machines: login, signup, migrate-login, MFA update, account
// deletion and ticket recovery. Every state value owns the permit for
// exactly one next transition; performing a transition consumes it.
package client

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"golang.org/x/net/publicsuffix"

	log "github.com/sirupsen/logrus"
)

const defaultTimeout = 60 * time.Second

// Routes exposed by the identity provider.
const (
	routeSignup  = "signup"
	routeLogin   = "login"
	routeRefresh = "refresh"
	routeRevoke  = "revoke"
	routeHealth  = "health"
	routeDelete  = "delete"
	routeMLogin  = "mLogin"
	routeUpMfa   = "upMfa"
	routeRecover = "recover"
)

// Options tune a Client. The zero value is usable.
type Options struct {
	// HTTPClient replaces the default http client when supplied.
	HTTPClient *http.Client

	// Timeout overrides the default 60s request timeout.
	Timeout *time.Duration

	// StateKey, when set, seals serialized flow states with an
	// HMAC-SHA256 tag and verifies it on resume. The provider validates
	// permits regardless; the seal catches corruption early.
	StateKey []byte
}

// Client is a process-wide handle bound to one identity provider. It is
// safe to share across concurrently progressing flow instances; the state
// values it hands out are not.
type Client struct {
	baseURL  *url.URL
	client   http.Client
	stateKey []byte
}

// NewClient builds a Client for the provider at host:port.
func NewClient(host string, port int, opts *Options) (*Client, error) {
	if opts == nil {
		opts = &Options{}
	}

	base, err := url.Parse(fmt.Sprintf("https://%s:%d", host, port))
	if err != nil {
		return nil, fmt.Errorf("invalid provider address: %w", err)
	}

	var httpClient http.Client
	if opts.HTTPClient != nil {
		httpClient = *opts.HTTPClient
	} else {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("unable to create cookie jar: %w", err)
		}

		timeout := defaultTimeout
		if opts.Timeout != nil {
			timeout = *opts.Timeout
		}

		httpClient = http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				ForceAttemptHTTP2:   true,
				TLSHandshakeTimeout: timeout,
			},
			Timeout: timeout,
			Jar:     jar,
		}
	}

	log.Debug("provider base URL: ", base.String())
	return &Client{
		baseURL:  base,
		client:   httpClient,
		stateKey: append([]byte(nil), opts.StateKey...),
	}, nil
}

// HTTPClient exposes the underlying http client so tests can intercept it.
func (c *Client) HTTPClient() *http.Client {
	return &c.client
}

// BaseURL returns the provider base URL.
func (c *Client) BaseURL() *url.URL {
	return c.baseURL
}
