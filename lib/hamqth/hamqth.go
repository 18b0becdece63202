// Package hamqth is a client for the hamqth.com XML callsign database.
package hamqth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"qthlookup/lib/credentials"
	"qthlookup/lib/restyutil"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	Version = "0.1.0"
	// Agent identifies this client to hamqth, the application label given
	// in ClientOptions is prepended to it.
	Agent = "qthlookup-go/" + Version

	DefaultBaseUrl     = "https://www.hamqth.com"
	DefaultMaxAttempts = 3
	DefaultTimeout     = 30 * time.Second
)

type Client struct {
	BaseUrl     *url.URL
	Http        *resty.Client
	AppID       string
	MaxAttempts int

	session Session
	// nil when credentials are only kept in memory
	store *credentials.Store
	cache Cache
}

type ClientOptions struct {
	// defaults to DefaultBaseUrl
	BaseUrl  string
	AppLabel string
	// attempts per login or query, defaults to DefaultMaxAttempts
	MaxAttempts int
	// per request timeout, a timed out request counts as a failed attempt
	Timeout time.Duration

	// where credentials are persisted, nil keeps them in memory
	Store *credentials.Store
	// when false, any file at Store is removed and nothing is written to it
	PersistCredentials bool

	Cache      Cache
	HttpOutput restyutil.InstrumentOutput
}

func NewClient(opts ClientOptions) (*Client, error) {
	if opts.BaseUrl == "" {
		opts.BaseUrl = DefaultBaseUrl
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseUrl)
	client.SetTimeout(opts.Timeout)
	client.SetHeader("user-agent", Agent)
	restyutil.InstrumentClient(client, restyutil.Options{
		Tracer: tracer,
		Output: opts.HttpOutput,
		Redact: []string{"p"},
	})

	c := &Client{
		BaseUrl:     baseUrl,
		Http:        client,
		AppID:       opts.AppLabel + ":" + Agent,
		MaxAttempts: opts.MaxAttempts,
		cache:       opts.Cache,
	}

	if opts.Store != nil {
		if opts.PersistCredentials {
			c.store = opts.Store
			if creds, ok := c.store.Load(); ok {
				c.session = Session{creds: creds}
			}
		} else {
			err = opts.Store.Clear()
			if err != nil {
				return nil, err
			}
		}
	}

	return c, nil
}

// get makes a single request, failures wrapped in errTransient may succeed
// when attempted again.
func (c *Client) get(ctx context.Context, endpoint string, params map[string]string) ([]byte, error) {
	attemptCounter.Add(ctx, 1)

	res, err := c.Http.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(endpoint)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errTransient, err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("%w: %s returned status %d", errTransient, endpoint, res.StatusCode())
	}
	return res.Body(), nil
}

func isTransient(err error) bool {
	return errors.Is(err, errTransient)
}

func logRetry(ctx context.Context, attempt, max int, err error) {
	slog.WarnContext(ctx, "attempt failed", "attempt", attempt, "max_attempts", max, "err", err)
}
