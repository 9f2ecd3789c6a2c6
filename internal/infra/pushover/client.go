package pushover

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"home-setup/internal/domain"
)

const defaultEndpoint = "https://api.pushover.net/1/messages.json"

// Client pushes completed setups to an installer's phone through Pushover.
type Client struct {
	token      string
	userKey    string
	endpoint   string
	priority   int
	httpClient *http.Client
}

type Option func(*Client)

// WithPriority sets the Pushover priority, clamped to -2..1.
// Emergency priority (2) needs retry parameters and is not used.
func WithPriority(p int) Option {
	return func(c *Client) {
		c.priority = min(max(p, -2), 1)
	}
}

func WithEndpoint(endpoint string) Option {
	return func(c *Client) { c.endpoint = endpoint }
}

func NewClient(token, userKey string, opts ...Option) *Client {
	c := &Client{
		token:      token,
		userKey:    userKey,
		endpoint:   defaultEndpoint,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Notify(ctx context.Context, setup domain.SetupCompleted) error {
	if c.token == "" || c.userKey == "" {
		return nil
	}

	data := url.Values{}
	data.Set("token", c.token)
	data.Set("user", c.userKey)
	data.Set("title", title(setup))
	data.Set("message", message(setup))
	data.Set("priority", strconv.Itoa(c.priority))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("pushover error: %s", resp.Status)
	}

	return nil
}

func title(setup domain.SetupCompleted) string {
	if setup.SetupID != 0 {
		return fmt.Sprintf("Home setup #%d", setup.SetupID)
	}
	return "Home setup"
}

func message(setup domain.SetupCompleted) string {
	var b strings.Builder
	b.WriteString(setup.Summary())
	if !setup.HasFloorplan {
		b.WriteString("\nNo floorplan uploaded.")
	}
	return b.String()
}
