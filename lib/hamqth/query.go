package hamqth

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"qthlookup/lib/xmlsection"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

type QueryKind int

const (
	ProfileLookup QueryKind = iota
	Biography
	RecentActivity
)

func (k QueryKind) String() string {
	switch k {
	case ProfileLookup:
		return "profile"
	case Biography:
		return "bio"
	case RecentActivity:
		return "activity"
	}
	return fmt.Sprintf("QueryKind(%d)", int(k))
}

// Result holds the leaves of a search response, the set of keys depends on
// the kind of query.
type Result map[string]string

// request returns the endpoint and query parameters of a query, the
// credentials themselves are never part of them.
func (c *Client) request(kind QueryKind, token, callsign string) (string, map[string]string, error) {
	params := map[string]string{
		"id":       token,
		"callsign": callsign,
	}
	switch kind {
	case ProfileLookup:
		params["prg"] = c.AppID
		return "/xml.php", params, nil
	case Biography:
		params["strip_html"] = "1"
		return "/xml_bio.php", params, nil
	case RecentActivity:
		params["rec_activity"] = "1"
		params["log_activity"] = "1"
		params["logbook"] = "1"
		return "/xml_recactivity.php", params, nil
	}
	return "", nil, fmt.Errorf("unknown query kind %s", kind)
}

// Query fetches one kind of information about a callsign. An expired session
// is renewed once, any other service error is returned as is.
func (c *Client) Query(ctx context.Context, callsign string, kind QueryKind) (Result, error) {
	ctx, span := tracer.Start(ctx, "client:Query")
	defer span.End()
	span.SetAttributes(
		attribute.String("hamqth.callsign", callsign),
		attribute.String("hamqth.kind", kind.String()),
	)

	if c.session.Token() == "" {
		_, err := c.Authenticate(ctx)
		if err != nil {
			return nil, fail(span, err)
		}
	}

	reauthenticated := false
	var lastErr error
	for attempt := 1; attempt <= c.MaxAttempts; attempt++ {
		endpoint, params, err := c.request(kind, c.session.Token(), callsign)
		if err != nil {
			return nil, fail(span, err)
		}

		body, err := c.get(ctx, endpoint, params)
		if isTransient(err) {
			logRetry(ctx, attempt, c.MaxAttempts, err)
			lastErr = err
			continue
		}
		if err != nil {
			return nil, fail(span, err)
		}

		doc, err := xmlsection.Parse(body, "search", "session")
		if err != nil {
			slog.ErrorContext(ctx, "failed to parse query response", "callsign", callsign, "kind", kind.String(), "err", err)
			return nil, fail(span, fmt.Errorf("%w: %w", ErrMalformedResponse, err))
		}

		if search, ok := doc.Section("search"); ok {
			return Result(search), nil
		}

		session, ok := doc.Section("session")
		if !ok {
			return nil, fail(span, fmt.Errorf("%w: neither search nor session in response", ErrProtocol))
		}
		message, ok := session["error"]
		if !ok {
			return nil, fail(span, fmt.Errorf("%w: session element without error in query response", ErrProtocol))
		}

		switch message {
		case msgCallsignNotFound:
			return nil, fail(span, fmt.Errorf("%w: %s", ErrCallsignNotFound, callsign))
		case msgSessionExpired:
			if reauthenticated {
				return nil, fail(span, fmt.Errorf("%w: session expired right after logging in", ErrProtocol))
			}
			reauthenticated = true
			c.session.Invalidate()
			lastErr = fmt.Errorf("session expired on attempt %d", attempt)
			if attempt == c.MaxAttempts {
				continue
			}
			slog.DebugContext(ctx, "session expired, logging in again")
			_, err := c.Authenticate(ctx)
			if err != nil {
				return nil, fail(span, err)
			}
		default:
			return nil, fail(span, fmt.Errorf("%w: %s", ErrProtocol, message))
		}
	}

	return nil, fail(span, fmt.Errorf("%w: query: %w", ErrRetryExhausted, lastErr))
}

type LookupOptions struct {
	Profile  bool
	Bio      bool
	Activity bool
}

func (o LookupOptions) kinds() []QueryKind {
	var kinds []QueryKind
	if o.Profile {
		kinds = append(kinds, ProfileLookup)
	}
	if o.Bio {
		kinds = append(kinds, Biography)
	}
	if o.Activity {
		kinds = append(kinds, RecentActivity)
	}
	return kinds
}

// Lookup runs the requested queries in the order profile, bio, activity and
// merges their results, later queries overwrite shared keys.
func (c *Client) Lookup(ctx context.Context, callsign string, opts LookupOptions) (Result, error) {
	ctx, span := tracer.Start(ctx, "client:Lookup")
	defer span.End()

	merged := Result{}
	for _, kind := range opts.kinds() {
		res, err := c.cachedQuery(ctx, callsign, kind)
		if err != nil {
			return nil, fail(span, err)
		}
		maps.Copy(merged, res)
	}
	return merged, nil
}

func (c *Client) cachedQuery(ctx context.Context, callsign string, kind QueryKind) (Result, error) {
	if c.cache == nil {
		return c.Query(ctx, callsign, kind)
	}

	key := CacheKey(callsign, kind)
	if cached, ok := c.cache.Get(ctx, key); ok {
		slog.DebugContext(ctx, "lookup cache hit", "key", key)
		return Result(cached), nil
	}

	res, err := c.Query(ctx, callsign, kind)
	if err != nil {
		return nil, err
	}
	c.cache.Put(ctx, key, res)
	return res, nil
}

// Cache stores query results between lookups.
type Cache interface {
	Get(ctx context.Context, key string) (map[string]string, bool)
	Put(ctx context.Context, key string, fields map[string]string)
}

func CacheKey(callsign string, kind QueryKind) string {
	return kind.String() + ":" + strings.ToUpper(callsign)
}
