package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/hpungsan/unicorns/internal/config"
	"github.com/hpungsan/unicorns/internal/errors"
	"github.com/hpungsan/unicorns/internal/logger"
	"github.com/hpungsan/unicorns/internal/unicorn"
)

// Client talks to one collection endpoint of a CRUD REST backend.
// Every call is a single attempt: no retries, no client-side timeout.
type Client struct {
	http     *resty.Client
	endpoint string
	log      logger.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient makes the client send requests through hc.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = newResty(resty.NewWithClient(hc))
	}
}

// WithLogger sets the logger used for per-request debug output.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

// New creates a client for the collection at endpoint,
// e.g. https://crudcrud.com/api/<id>/unicorns.
func New(endpoint string, opts ...Option) *Client {
	c := &Client{
		http:     newResty(resty.New()),
		endpoint: strings.TrimRight(endpoint, "/"),
		log:      logger.GetDefault(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFromConfig creates a client for cfg.Endpoint().
func NewFromConfig(cfg *config.Config, opts ...Option) *Client {
	return New(cfg.Endpoint(), opts...)
}

func newResty(r *resty.Client) *resty.Client {
	return r.
		SetHeader("Accept", "application/json").
		SetRetryCount(0)
}

// Endpoint returns the collection URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

func (c *Client) itemURL(id string) string {
	return c.endpoint + "/" + url.PathEscape(id)
}

// List fetches the whole collection.
func (c *Client) List(ctx context.Context) ([]unicorn.Unicorn, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		Get(c.endpoint)
	if err := c.check("list", resp, err, errors.MsgAPIError); err != nil {
		return nil, err
	}

	var items []unicorn.Unicorn
	if body := resp.Body(); len(body) > 0 {
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, fmt.Errorf("decode unicorns: %w", err)
		}
	}
	if items == nil {
		items = []unicorn.Unicorn{}
	}
	return items, nil
}

// Create posts a new record. The remote assigns the identifier; the returned
// record carries it when the backend echoes the created body.
func (c *Client) Create(ctx context.Context, u unicorn.Unicorn) (unicorn.Unicorn, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(u).
		Post(c.endpoint)
	if err := c.check("create", resp, err, errors.MsgSaveFailed); err != nil {
		return unicorn.Unicorn{}, err
	}

	created := u
	if body := resp.Body(); len(body) > 0 {
		// Best effort: not every backend echoes the created record.
		_ = json.Unmarshal(body, &created)
	}
	return created, nil
}

// Replace overwrites the record at id with u. The identifier travels in the
// URL path only, never in the body.
func (c *Client) Replace(ctx context.Context, id string, u unicorn.Unicorn) error {
	body := u
	body.ID = ""

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Put(c.itemURL(id))
	return c.check("replace", resp, err, errors.MsgSaveFailed)
}

// Remove deletes the record at id.
func (c *Client) Remove(ctx context.Context, id string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		Delete(c.itemURL(id))
	return c.check("remove", resp, err, errors.MsgDeleteFailed)
}

// check records the outcome of a request and maps a non-success status to a
// remote error with the operation's fixed message. Transport errors are
// returned unchanged.
func (c *Client) check(op string, resp *resty.Response, err error, failMsg string) error {
	if err != nil {
		observe(op, outcomeTransportError)
		c.log.Debug("remote request failed", "op", op, "error", err)
		return err
	}
	status := resp.StatusCode()
	c.log.Debug("remote request", "op", op, "method", resp.Request.Method, "url", resp.Request.URL,
		"status", status, "duration", resp.Time())
	if !resp.IsSuccess() {
		observe(op, outcomeHTTPError)
		return errors.NewRemote(failMsg, status)
	}
	observe(op, outcomeOK)
	return nil
}
