package hamqth

import (
	"context"
	"fmt"
	"log/slog"
	"qthlookup/lib/credentials"
	"qthlookup/lib/xmlsection"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Session is the login state of a client: the credentials and the session
// id hamqth handed out for them, if any.
type Session struct {
	creds credentials.Credentials
}

func (s Session) Credentials() credentials.Credentials {
	return s.creds
}

func (s Session) Token() string {
	return s.creds.SessionID
}

func (s *Session) SetToken(token string) {
	s.creds.SessionID = token
}

// Invalidate forces a new login on the next query.
func (s *Session) Invalidate() {
	s.creds.SessionID = ""
}

// Session returns a copy of the current session state.
func (c *Client) Session() Session {
	return c.session
}

func (c *Client) HasLoginInfo() bool {
	return c.session.creds.Complete()
}

// SetLoginInfo replaces the credentials, dropping any session id obtained
// with the previous ones.
func (c *Client) SetLoginInfo(username, password string) error {
	creds := credentials.Credentials{Username: username, Password: password}
	if !creds.Complete() {
		return credentials.ErrInvalidInput
	}
	c.session = Session{creds: creds}
	if c.store == nil {
		return nil
	}
	return c.store.Save(creds)
}

// Logout forgets the credentials and removes them from disk.
func (c *Client) Logout() error {
	c.session = Session{}
	if c.store == nil {
		return nil
	}
	return c.store.Clear()
}

func (c *Client) persist(ctx context.Context) {
	if c.store == nil {
		return
	}
	err := c.store.Save(c.session.creds)
	if err != nil {
		slog.WarnContext(ctx, "failed to persist session id", "path", c.store.Path(), "err", err)
	}
}

// Authenticate exchanges the username and password for a session id, which
// is kept for subsequent queries and persisted when a store is configured.
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	ctx, span := tracer.Start(ctx, "client:Authenticate")
	defer span.End()

	creds := c.session.creds
	if !creds.Complete() {
		return "", fail(span, ErrNoCredentials)
	}
	span.SetAttributes(attribute.String("hamqth.username", creds.Username))

	params := map[string]string{
		"u": creds.Username,
		"p": creds.Password,
	}

	var lastErr error
	for attempt := 1; attempt <= c.MaxAttempts; attempt++ {
		body, err := c.get(ctx, "/xml.php", params)
		if isTransient(err) {
			logRetry(ctx, attempt, c.MaxAttempts, err)
			lastErr = err
			continue
		}
		if err != nil {
			return "", fail(span, err)
		}

		token, err := parseLogin(ctx, span, body)
		if err != nil {
			return "", fail(span, err)
		}

		c.session.SetToken(token)
		c.persist(ctx)
		loginCounter.Add(ctx, 1)
		slog.DebugContext(ctx, "obtained session id", "username", creds.Username)
		return token, nil
	}

	return "", fail(span, fmt.Errorf("%w: login: %w", ErrRetryExhausted, lastErr))
}

func parseLogin(ctx context.Context, span trace.Span, body []byte) (string, error) {
	doc, err := xmlsection.Parse(body, "session")
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse login response", "err", err)
		return "", fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	session, ok := doc.Section("session")
	if !ok {
		return "", fmt.Errorf("%w: no session element in login response", ErrProtocol)
	}
	if token, ok := session["session_id"]; ok {
		return token, nil
	}
	if message, ok := session["error"]; ok {
		span.AddEvent("login rejected", trace.WithAttributes(attribute.String("hamqth.error", message)))
		return "", fmt.Errorf("%w: %s", ErrAuthenticationFailed, message)
	}
	return "", fmt.Errorf("%w: session element has neither session_id nor error", ErrProtocol)
}
