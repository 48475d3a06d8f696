package profilepic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/samber/lo"

	"instantsaver/internal/logging"
	"instantsaver/internal/metrics"
)

const (
	// DefaultBaseURL is the platform's public web origin.
	DefaultBaseURL = "https://www.instagram.com"
	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 4 << 20
)

var (
	// ErrNotFound means the endpoint answered but carried no picture URL.
	ErrNotFound = errors.New("profile picture not found")
	// ErrUpstream means the endpoint could not be reached or refused us.
	ErrUpstream = errors.New("profile endpoint unavailable")

	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9._]{1,30}$`)
)

// Options configures a Client.
type Options struct {
	BaseURL string
	Timeout time.Duration
	// HTTPClient overrides the fingerprinted default.
	HTTPClient *http.Client
}

// Client looks up profile pictures through the platform's undocumented
// JSON view of a profile page. The endpoint may change without notice;
// callers must treat every failure as "not found".
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client.
func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout, Transport: NewTransport()}
	}
	return &Client{baseURL: opts.BaseURL, http: client}
}

type userPayload struct {
	ProfilePicURLHD string `json:"profile_pic_url_hd"`
	ProfilePicURL   string `json:"profile_pic_url"`
}

type profileResponse struct {
	GraphQL struct {
		User *userPayload `json:"user"`
	} `json:"graphql"`
	Data struct {
		User *userPayload `json:"user"`
	} `json:"data"`
}

// Fetch returns the highest resolution profile picture URL for username.
func (c *Client) Fetch(ctx context.Context, username string) (string, error) {
	picURL, err := c.fetch(ctx, username)

	status := "success"
	switch {
	case errors.Is(err, ErrNotFound):
		status = "not_found"
	case err != nil:
		status = "error"
	}
	metrics.ProfileLookupsTotal.WithLabelValues(status).Inc()

	return picURL, err
}

func (c *Client) fetch(ctx context.Context, username string) (string, error) {
	if !usernamePattern.MatchString(username) {
		return "", fmt.Errorf("%w: invalid username %q", ErrNotFound, username)
	}

	endpoint := c.baseURL + "/" + url.PathEscape(username) + "/?__a=1&__d=dis"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", BrowserUserAgent)
	req.Header.Set("Accept", "application/json,text/html;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	log := logging.With(logging.Fields{"component": "profilepic", "username": username})

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", ErrNotFound
	case resp.StatusCode != http.StatusOK:
		log.Debugf("profile endpoint returned %d", resp.StatusCode)
		return "", fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	var payload profileResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&payload); err != nil {
		// Login walls come back as HTML with a 200.
		log.Debugf("profile endpoint returned non-JSON body: %v", err)
		return "", fmt.Errorf("%w: unexpected response body", ErrNotFound)
	}

	user := lo.CoalesceOrEmpty(payload.GraphQL.User, payload.Data.User)
	if user == nil {
		return "", ErrNotFound
	}
	picURL := lo.CoalesceOrEmpty(user.ProfilePicURLHD, user.ProfilePicURL)
	if picURL == "" {
		return "", ErrNotFound
	}
	return picURL, nil
}
