// Package keycloak keeps the external identity provider's per-subject
// record in sync with locally owned authorization state. All provider
// failure modes funnel through this package's error translation: a missing
// subject, an under-privileged service account, and everything else stay
// distinct error kinds.
package keycloak

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"identity-service/internal/apperr"
)

// Representation is the provider's per-subject record as exposed by the
// admin API: core profile fields plus an open string-keyed multi-valued
// attribute map.
type Representation struct {
	Email      string              `json:"email,omitempty"`
	FirstName  string              `json:"firstName,omitempty"`
	LastName   string              `json:"lastName,omitempty"`
	Attributes map[string][]string `json:"attributes,omitempty"`
}

// Client is the synchronous gateway to the provider's subject records.
type Client interface {
	GetUser(ctx context.Context, sub string) (*Representation, error)
	UpdateUser(ctx context.Context, sub string, rep *Representation) error
	Logout(ctx context.Context, sub string) error
	Delete(ctx context.Context, sub string) error
}

// ClientConfig configures the admin REST client. The client authenticates
// with a service-account via the client-credentials grant.
type ClientConfig struct {
	BaseURL      string
	Realm        string
	ClientID     string
	ClientSecret string
}

// HTTPClient implements Client against the Keycloak admin REST API.
type HTTPClient struct {
	base  string
	realm string
	httpc *http.Client
}

// NewHTTPClient builds an admin client whose transport injects
// service-account tokens. The token source refreshes transparently.
func NewHTTPClient(ctx context.Context, cfg ClientConfig) *HTTPClient {
	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token", cfg.BaseURL, cfg.Realm),
	}
	httpc := cc.Client(ctx)
	httpc.Timeout = 10 * time.Second
	return &HTTPClient{base: cfg.BaseURL, realm: cfg.Realm, httpc: httpc}
}

// GetUser fetches the subject's current record.
func (c *HTTPClient) GetUser(ctx context.Context, sub string) (*Representation, error) {
	resp, err := c.do(ctx, http.MethodGet, c.userURL(sub), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := c.classify(resp, sub, "view-users"); err != nil {
		return nil, err
	}
	var rep Representation
	if err := json.NewDecoder(resp.Body).Decode(&rep); err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, err, "decoding subject record for %s", sub)
	}
	return &rep, nil
}

// UpdateUser replaces the subject's record with the fully merged
// representation. Callers pass the complete desired state; the provider
// treats this as a full replace, never delete-then-recreate.
func (c *HTTPClient) UpdateUser(ctx context.Context, sub string, rep *Representation) error {
	body, err := json.Marshal(rep)
	if err != nil {
		return err
	}
	resp, err := c.do(ctx, http.MethodPut, c.userURL(sub), body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.classify(resp, sub, "manage-users")
}

// Logout invalidates all of the subject's sessions.
func (c *HTTPClient) Logout(ctx context.Context, sub string) error {
	resp, err := c.do(ctx, http.MethodPost, c.userURL(sub)+"/logout", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.classify(resp, sub, "manage-users")
}

// Delete removes the subject's record.
func (c *HTTPClient) Delete(ctx context.Context, sub string) error {
	resp, err := c.do(ctx, http.MethodDelete, c.userURL(sub), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.classify(resp, sub, "manage-users")
}

func (c *HTTPClient) userURL(sub string) string {
	return fmt.Sprintf("%s/admin/realms/%s/users/%s", c.base, c.realm, sub)
}

func (c *HTTPClient) do(ctx context.Context, method, url string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, err, "identity provider unreachable")
	}
	return resp, nil
}

// classify maps admin API status codes onto the error taxonomy. Response
// bodies are intentionally dropped so upstream error detail never leaks to
// callers.
func (c *HTTPClient) classify(resp *http.Response, sub, permission string) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return apperr.New(apperr.KindNotFound, "subject not found: %s", sub)
	case resp.StatusCode == http.StatusForbidden:
		return apperr.New(apperr.KindAccessDenied, "service account lacks permission (need realm-management: %s)", permission)
	default:
		return apperr.New(apperr.KindUpstream, "identity provider request failed (%d)", resp.StatusCode)
	}
}
