package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"home-setup/internal/domain"
	"home-setup/internal/infra"
)

const (
	DefaultSetupPath   = "/api/user/setup"
	DefaultProfilePath = "/api/auth/profile"

	roleHeader = "X-User-Role"
)

type Client struct {
	baseURL     string
	setupPath   string
	profilePath string
	httpClient  *http.Client
	retry       infra.RetryConfig
}

type Option func(*Client)

func WithPaths(setupPath, profilePath string) Option {
	return func(c *Client) {
		if setupPath != "" {
			c.setupPath = setupPath
		}
		if profilePath != "" {
			c.profilePath = profilePath
		}
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithRetryConfig(cfg infra.RetryConfig) Option {
	return func(c *Client) { c.retry = cfg }
}

// NewClient talks to the platform REST backend. The default HTTP client has no
// timeout: a setup submission waits until the backend answers or the context ends.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		setupPath:   DefaultSetupPath,
		profilePath: DefaultProfilePath,
		httpClient:  &http.Client{},
		retry:       infra.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type errorBody struct {
	Message string `json:"message"`
}

// SubmitSetup posts the wizard payload once. It is never retried since the
// backend does not deduplicate setups.
func (c *Client) SubmitSetup(ctx context.Context, identity domain.Identity, payload domain.SetupPayload) (*domain.SetupReceipt, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling setup: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.setupPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	c.setIdentityHeaders(req, identity)
	req.Header.Set("Content-Type", "application/json")

	respBody, status, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, rejection(status, respBody)
	}

	receipt := &domain.SetupReceipt{}
	if len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, receipt); err != nil {
			// The setup is stored; an odd confirmation body is not worth failing over.
			receipt.Message = string(respBody)
		}
	}
	return receipt, nil
}

// FetchProfile loads the stored profile of identity, retrying transient failures.
func (c *Client) FetchProfile(ctx context.Context, identity domain.Identity) (*domain.Profile, error) {
	endpoint := c.baseURL + c.profilePath + "?" + url.Values{"id": {strconv.Itoa(identity.UserID)}}.Encode()

	var profile domain.Profile
	err := infra.WithRetry(ctx, c.retry, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return infra.Permanent(fmt.Errorf("creating request: %w", err))
		}
		c.setIdentityHeaders(req, identity)

		respBody, status, err := c.do(req)
		if err != nil {
			return err
		}
		if infra.IsRetryableHTTPStatus(status) {
			return rejection(status, respBody)
		}
		if status >= 400 {
			return infra.Permanent(rejection(status, respBody))
		}
		if err := json.Unmarshal(respBody, &profile); err != nil {
			return infra.Permanent(fmt.Errorf("parsing profile: %w", err))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetching profile: %w", err)
	}
	return &profile, nil
}

func (c *Client) setIdentityHeaders(req *http.Request, identity domain.Identity) {
	req.Header.Set(roleHeader, string(identity.EffectiveRole()))
	if identity.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+identity.AuthToken)
	}
}

func (c *Client) do(req *http.Request) ([]byte, int, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, 0, err
		}
		return nil, 0, fmt.Errorf("%w: %w", domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: reading response: %w", domain.ErrNetwork, err)
	}
	return respBody, resp.StatusCode, nil
}

func rejection(status int, body []byte) error {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && eb.Message != "" {
		return &domain.RejectedError{StatusCode: status, Message: eb.Message}
	}
	return &domain.RejectedError{StatusCode: status}
}
