package seed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"text/tabwriter"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"

	"github.com/okian/circle/internal/domain/types"
)

// ErrRequest is returned when the server answers with a non-success status.
var ErrRequest = errors.New("circle request failed")

// Client reads a running Circle server.
type Client struct {
	http        *resty.Client
	maxAttempts int
	initial     time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.http.SetTimeout(d)
		}
	}
}

// WithRetries sets how many attempts are made for transport failures and
// 5xx answers, and the first backoff interval.
func WithRetries(attempts int, initial time.Duration) ClientOption {
	return func(c *Client) {
		if attempts > 0 {
			c.maxAttempts = attempts
		}
		if initial > 0 {
			c.initial = initial
		}
	}
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetHeader("Accept", "application/json").
			SetTimeout(10 * time.Second),
		maxAttempts: 3,
		initial:     200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Reconnect fetches the user's contacts in reconnect order. A non-positive
// limit leaves the server default.
func (c *Client) Reconnect(ctx context.Context, userID string, limit int) ([]types.ContactView, error) {
	req := func() (*resty.Response, error) {
		r := c.http.R().
			SetContext(ctx).
			SetQueryParam("reconnect", "true").
			SetQueryParam("userId", userID)
		if limit > 0 {
			r.SetQueryParam("limit", strconv.Itoa(limit))
		}
		return r.Get("/api/contacts")
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.initial
	exp.Multiplier = 2
	exp.Reset()
	policy := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(c.maxAttempts-1)), ctx)

	var views []types.ContactView
	err := backoff.Retry(func() error {
		resp, err := req()
		if err != nil {
			return fmt.Errorf("reconnect request: %w", err)
		}
		if resp.StatusCode() != http.StatusOK {
			err := statusError(resp)
			if resp.StatusCode() < http.StatusInternalServerError {
				return backoff.Permanent(err)
			}
			return err
		}
		if err := json.Unmarshal(resp.Body(), &views); err != nil {
			return backoff.Permanent(fmt.Errorf("decode response: %w", err))
		}
		return nil
	}, policy)
	if err != nil {
		return nil, err
	}
	return views, nil
}

func statusError(resp *resty.Response) error {
	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if json.Unmarshal(resp.Body(), &body) == nil && body.Message != "" {
		return fmt.Errorf("%w: status %d: %s", ErrRequest, resp.StatusCode(), body.Message)
	}
	return fmt.Errorf("%w: status %d", ErrRequest, resp.StatusCode())
}

// WriteReconnect prints views as an aligned table.
func WriteReconnect(w io.Writer, views []types.ContactView) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "#\tNAME\tLAST CONTACT\tSCORE\tLABEL")
	for i, v := range views {
		last := "never"
		if v.DaysSince != nil {
			last = strconv.Itoa(*v.DaysSince) + "d ago"
		}
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n", i+1, v.Name, last, v.Score, v.Label)
	}
	return tw.Flush()
}
