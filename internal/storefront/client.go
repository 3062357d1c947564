// Package storefront is the HTTP transport to the storefront: the cart
// service (/cart.js, /cart/{add,change}.js), collection product pages and
// the published campaign document.
package storefront

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"

	"github.com/rafaeljc/gefjon/internal/campaign"
	"github.com/rafaeljc/gefjon/internal/cart"
	"github.com/rafaeljc/gefjon/internal/collection"
	"github.com/rafaeljc/gefjon/internal/config"
	"github.com/rafaeljc/gefjon/internal/logger"
	"github.com/rafaeljc/gefjon/internal/observability"
)

// cartCookie is the session cookie the storefront binds a cart to.
const cartCookie = "cart"

// ErrUnexpectedStatus is matched by every *StatusError.
var ErrUnexpectedStatus = errors.New("unexpected storefront response")

// StatusError is returned for non-2xx responses. Description carries the
// storefront's own message when it sent one (e.g. "sold out").
type StatusError struct {
	Method      string
	Path        string
	Code        int
	Description string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Code)
	if e.Description != "" {
		msg += ": " + e.Description
	}
	return msg
}

func (e *StatusError) Is(target error) bool {
	return target == ErrUnexpectedStatus
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default client (tests use httptest servers).
// Its Jar is replaced by the client's own cart session jar.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// Client talks to one storefront cart. Every request carries the same cart
// session cookie, so snapshots always read the cart the mutations changed.
// It implements cart.Client, collection.Resolver and observability.Checker.
type Client struct {
	logger   *slog.Logger
	base     *url.URL
	http     *http.Client
	jar      *cookiejar.Jar
	pageSize int
	maxPages int
}

var (
	_ cart.Client            = (*Client)(nil)
	_ collection.Resolver    = (*Client)(nil)
	_ collection.PageFetcher = (*Client)(nil)
	_ campaign.Source        = (*CampaignSource)(nil)
)

// New creates a client from the storefront configuration.
func New(log *slog.Logger, cfg *config.StorefrontConfig, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("storefront config cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid storefront base URL: %w", err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	if cfg.CartToken != "" {
		jar.SetCookies(base, []*http.Cookie{{Name: cartCookie, Value: cfg.CartToken, Path: "/"}})
	}

	c := &Client{
		logger:   log.With(slog.String("component", "storefront")),
		base:     base,
		http:     &http.Client{Timeout: cfg.Timeout},
		jar:      jar,
		pageSize: cfg.CollectionPageSize,
		maxPages: cfg.CollectionMaxPages,
	}
	for _, opt := range opts {
		opt(c)
	}
	h := *c.http
	h.Jar = jar
	c.http = &h

	if c.pageSize <= 0 {
		c.pageSize = 250
	}
	if c.maxPages <= 0 {
		c.maxPages = 40
	}
	return c, nil
}

// Fetch reads the cart (GET /cart.js).
func (c *Client) Fetch(ctx context.Context) (*cart.Snapshot, error) {
	var snap cart.Snapshot
	if err := c.do(ctx, http.MethodGet, "/cart.js", nil, nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Mutate posts one add or change (POST /cart/{action}.js).
func (c *Client) Mutate(ctx context.Context, m cart.Mutation) error {
	body, err := json.Marshal(m.Payload())
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", m, err)
	}
	return c.do(ctx, http.MethodPost, "/cart/"+string(m.Action)+".js", nil, body, nil)
}

type productPage struct {
	Products []struct {
		ID int64 `json:"id"`
	} `json:"products"`
}

// FetchPage reads one page of a collection's products.
func (c *Client) FetchPage(ctx context.Context, handle string, page, limit int) ([]int64, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	query.Set("page", strconv.Itoa(page))

	var out productPage
	err := c.do(ctx, http.MethodGet, "/collections/"+url.PathEscape(handle)+"/products.json", query, nil, &out)
	if err != nil {
		observability.CollectionPagesTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	observability.CollectionPagesTotal.WithLabelValues("success").Inc()

	ids := make([]int64, 0, len(out.Products))
	for _, p := range out.Products {
		ids = append(ids, p.ID)
	}
	return ids, nil
}

// Resolve pages through a collection with the configured page size and cap.
func (c *Client) Resolve(ctx context.Context, handle string) ([]int64, error) {
	ids, err := collection.FetchAll(ctx, c, handle, c.pageSize, c.maxPages)
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Debug("collection resolved",
		slog.String("handle", handle),
		slog.Int("products", len(ids)),
	)
	return ids, nil
}

// CartToken returns the cart session the client is bound to, empty until
// the storefront has assigned one.
func (c *Client) CartToken() string {
	for _, ck := range c.jar.Cookies(c.base) {
		if ck.Name == cartCookie {
			return ck.Value
		}
	}
	return ""
}

// Name identifies the storefront in readiness probes.
func (c *Client) Name() string {
	return "storefront"
}

// Check reads the cart endpoint; any 2xx answer means the storefront is up.
func (c *Client) Check(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/cart.js", nil, nil, nil)
}

// Campaigns returns a campaign.Source reading the document at path.
func (c *Client) Campaigns(path string) *CampaignSource {
	return &CampaignSource{client: c, path: path}
}

// CampaignSource reads the published campaign document over HTTP.
type CampaignSource struct {
	client *Client
	path   string
}

// Name identifies the source in logs.
func (s *CampaignSource) Name() string {
	return "http"
}

// Fetch returns the raw document. It is not parsed here, so a malformed
// document reaches the store as such rather than as a transport failure.
func (s *CampaignSource) Fetch(ctx context.Context) ([]byte, error) {
	var raw []byte
	if err := s.client.do(ctx, http.MethodGet, s.path, nil, nil, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// do issues one request. out, when non-nil, receives the decoded JSON body;
// a *[]byte receives the body as is.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte, out any) error {
	u := c.base.JoinPath(path)
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("failed to build request %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-store")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		serr := &StatusError{Method: method, Path: path, Code: resp.StatusCode, Description: describe(resp.Body)}
		c.logger.Debug("storefront request rejected", slog.String("error", serr.Error()))
		return serr
	}

	switch dst := out.(type) {
	case nil:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	case *[]byte:
		if *dst, err = io.ReadAll(resp.Body); err != nil {
			return fmt.Errorf("failed to read %s %s: %w", method, path, err)
		}
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s: %w", method, path, err)
	}
	return nil
}

// describe extracts the storefront error message, if any.
func describe(r io.Reader) string {
	var payload struct {
		Message     string `json:"message"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(io.LimitReader(r, 64<<10)).Decode(&payload); err != nil {
		return ""
	}
	if payload.Description != "" {
		return payload.Description
	}
	return payload.Message
}
