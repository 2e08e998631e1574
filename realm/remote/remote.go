// Package remote provides a realm that validates third-party access tokens
// against the issuing platform's verification endpoint.
//
// The realm never retries on its own: provider rejections map to
// ErrAuthenticationFailed, network failures and timeouts to
// ErrRealmUnavailable, and the coordinator decides what to do next.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	websec "github.com/halcyonsec/websec-go"
)

// DefaultTimeout bounds one provider call when no timeout is configured.
const DefaultTimeout = 5 * time.Second

// Config holds the provider endpoints and the per-call timeout.
type Config struct {
	// Endpoints maps each supported platform to its token verification URL.
	Endpoints map[websec.Platform]string

	// Timeout bounds one provider call. Default: 5 seconds.
	Timeout time.Duration
}

// Realm validates RemoteToken credentials against provider endpoints.
type Realm struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

var _ websec.Realm = (*Realm)(nil)

// Option configures the Realm.
type Option func(*Realm)

// WithHTTPClient sets a custom HTTP client for provider calls.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Realm) { r.httpClient = c }
}

// WithLogger sets a structured logger for the realm.
func WithLogger(l *slog.Logger) Option {
	return func(r *Realm) { r.logger = l }
}

// New creates a remote-provider realm.
func New(cfg Config, opts ...Option) *Realm {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	r := &Realm{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
	for _, o := range opts {
		o(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Kinds reports that this realm handles third-party tokens.
func (r *Realm) Kinds() []websec.CredentialKind {
	return []websec.CredentialKind{websec.KindRemote}
}

// verifyResponse is the provider's answer for a valid token.
type verifyResponse struct {
	OpenID string   `json:"open_id"`
	Name   string   `json:"name"`
	Roles  []string `json:"roles"`
}

// Authenticate forwards the access token to the platform's verification
// endpoint and maps the answer to a principal.
func (r *Realm) Authenticate(ctx context.Context, cred websec.Credential) (*websec.AuthInfo, error) {
	token, ok := cred.(websec.RemoteToken)
	if !ok {
		return nil, fmt.Errorf("remote: unsupported credential kind %q", cred.Kind())
	}

	endpoint, ok := r.cfg.Endpoints[token.Platform()]
	if !ok {
		return nil, fmt.Errorf("remote: no endpoint for platform %s: %w", token.Platform(), websec.ErrRealmUnavailable)
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	form := url.Values{"access_token": {token.AccessToken()}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("remote: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		// Includes context deadline: the provider did not answer in time.
		return nil, fmt.Errorf("remote: %s provider: %v: %w", token.Platform(), err, websec.ErrRealmUnavailable)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("remote: %s provider: read response: %v: %w", token.Platform(), err, websec.ErrRealmUnavailable)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		// fallthrough to decode
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("remote: %s provider rejected token: %w", token.Platform(), websec.ErrAuthenticationFailed)
	default:
		return nil, fmt.Errorf("remote: %s provider returned status %d: %w", token.Platform(), resp.StatusCode, websec.ErrRealmUnavailable)
	}

	var vr verifyResponse
	if err := json.Unmarshal(body, &vr); err != nil {
		return nil, fmt.Errorf("remote: %s provider: decode response: %v: %w", token.Platform(), err, websec.ErrRealmUnavailable)
	}
	if vr.OpenID == "" {
		return nil, fmt.Errorf("remote: %s provider returned no open_id: %w", token.Platform(), websec.ErrAuthenticationFailed)
	}

	principal := &websec.Principal{
		ID:   token.Platform().String() + ":" + vr.OpenID,
		Name: vr.Name,
		Attributes: map[string]string{
			"platform": token.Platform().String(),
			"open_id":  vr.OpenID,
		},
	}
	return &websec.AuthInfo{Principal: principal, Roles: vr.Roles}, nil
}
