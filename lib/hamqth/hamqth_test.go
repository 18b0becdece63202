package hamqth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"qthlookup/lib/credentials"
	"qthlookup/lib/telemetry"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

const (
	testToken = "09b0ae90050be03c452ad235a1f2915ad684393c"

	loginOk = `<?xml version="1.0"?>
<HamQTH version="2.7" xmlns="https://www.hamqth.com">
<session>
<session_id>` + testToken + `</session_id>
</session>
</HamQTH>`
	loginRejected = `<?xml version="1.0"?>
<HamQTH version="2.7" xmlns="https://www.hamqth.com">
<session>
<error>Wrong user name or password</error>
</session>
</HamQTH>`
	searchW1AW = `<?xml version="1.0"?>
<HamQTH version="2.7" xmlns="https://www.hamqth.com">
<search>
<callsign>W1AW</callsign>
<nick>W1AW</nick>
<grid>FN31</grid>
</search>
</HamQTH>`
	notFound = `<?xml version="1.0"?>
<HamQTH version="2.7" xmlns="https://www.hamqth.com">
<session>
<error>Callsign not found</error>
</session>
</HamQTH>`
	expired = `<?xml version="1.0"?>
<HamQTH version="2.7" xmlns="https://www.hamqth.com">
<session>
<error>Session does not exist or expired</error>
</session>
</HamQTH>`
)

type response struct {
	status int
	body   string
}

func ok(body string) response {
	return response{status: http.StatusOK, body: body}
}

// fakeService stands in for hamqth.com, login requests go to /xml.php with
// a "u" parameter, everything else is a query.
type fakeService struct {
	lock    sync.Mutex
	logins  int
	queries map[string]int
	params  []url.Values

	login func(n int, q url.Values) response
	query func(path string, n int, q url.Values) response
}

func (f *fakeService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.lock.Lock()
	q := r.URL.Query()
	f.params = append(f.params, q)

	var res response
	if r.URL.Path == "/xml.php" && q.Has("u") {
		f.logins++
		n := f.logins
		f.lock.Unlock()
		res = f.login(n, q)
	} else {
		f.queries[r.URL.Path]++
		n := f.queries[r.URL.Path]
		f.lock.Unlock()
		res = f.query(r.URL.Path, n, q)
	}

	w.WriteHeader(res.status)
	fmt.Fprint(w, res.body)
}

func (f *fakeService) totalQueries() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	total := 0
	for _, n := range f.queries {
		total += n
	}
	return total
}

func newFakeService(t testing.TB) (*fakeService, *httptest.Server) {
	f := &fakeService{
		queries: map[string]int{},
		login: func(int, url.Values) response {
			return ok(loginOk)
		},
		query: func(string, int, url.Values) response {
			return ok(searchW1AW)
		},
	}
	server := httptest.NewServer(f)
	t.Cleanup(server.Close)
	return f, server
}

func newTestClient(t testing.TB, server *httptest.Server, maxAttempts int) *Client {
	cleanup := telemetry.SetupForTesting("test:hamqth")
	t.Cleanup(cleanup)

	client, err := NewClient(ClientOptions{
		BaseUrl:     server.URL,
		AppLabel:    "test",
		MaxAttempts: maxAttempts,
		Timeout:     time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}
	require.NoError(t, client.SetLoginInfo("ok1xyz", "hunter2"))
	return client
}

func TestAuthenticatePersistsSession(t *testing.T) {
	f, server := newFakeService(t)
	store := credentials.NewStore(filepath.Join(t.TempDir(), ".qthlookup-test"))

	client, err := NewClient(ClientOptions{
		BaseUrl:            server.URL,
		Store:              &store,
		PersistCredentials: true,
	})
	require.NoError(t, err)
	require.NoError(t, client.SetLoginInfo("ok1xyz", "hunter2"))

	token, err := client.Authenticate(context.Background())
	require.NoError(t, err)
	require.Equal(t, testToken, token)
	require.Equal(t, 1, f.logins)
	require.Equal(t, "ok1xyz", f.params[0].Get("u"))
	require.Equal(t, "hunter2", f.params[0].Get("p"))

	stored, found := store.Load()
	require.True(t, found)
	require.Equal(t, credentials.Credentials{
		Username:  "ok1xyz",
		Password:  "hunter2",
		SessionID: testToken,
	}, stored)

	// a new client picks the session back up without logging in
	restored, err := NewClient(ClientOptions{
		BaseUrl:            server.URL,
		Store:              &store,
		PersistCredentials: true,
	})
	require.NoError(t, err)
	require.True(t, restored.HasLoginInfo())
	require.Equal(t, testToken, restored.Session().Token())

	_, err = restored.Query(context.Background(), "W1AW", ProfileLookup)
	require.NoError(t, err)
	require.Equal(t, 1, f.logins)
}

func TestNewClientWithoutPersistenceClearsStore(t *testing.T) {
	_, server := newFakeService(t)
	store := credentials.NewStore(filepath.Join(t.TempDir(), ".qthlookup-test"))
	require.NoError(t, store.Save(credentials.Credentials{Username: "ok1xyz", Password: "hunter2"}))

	client, err := NewClient(ClientOptions{BaseUrl: server.URL, Store: &store})
	require.NoError(t, err)
	require.False(t, client.HasLoginInfo())

	_, found := store.Load()
	require.False(t, found)
}

func TestAuthenticateRejected(t *testing.T) {
	f, server := newFakeService(t)
	f.login = func(int, url.Values) response { return ok(loginRejected) }
	client := newTestClient(t, server, 3)

	_, err := client.Authenticate(context.Background())
	require.ErrorIs(t, err, ErrAuthenticationFailed)
	require.Contains(t, err.Error(), "Wrong user name or password")
	require.Equal(t, 1, f.logins)
}

func TestAuthenticateProtocolError(t *testing.T) {
	testCases := []string{
		`<HamQTH><search><nick>W1AW</nick></search></HamQTH>`,
		`<HamQTH><session><other>x</other></session></HamQTH>`,
	}

	for _, body := range testCases {
		f, server := newFakeService(t)
		f.login = func(int, url.Values) response { return ok(body) }
		client := newTestClient(t, server, 3)

		_, err := client.Authenticate(context.Background())
		require.ErrorIs(t, err, ErrProtocol)
		require.Equal(t, 1, f.logins)
	}
}

func TestAuthenticateMalformed(t *testing.T) {
	f, server := newFakeService(t)
	f.login = func(int, url.Values) response { return ok(`<html><body>maintenance`) }
	client := newTestClient(t, server, 3)

	_, err := client.Authenticate(context.Background())
	require.ErrorIs(t, err, ErrMalformedResponse)
	require.Equal(t, 1, f.logins)
}

func TestAuthenticateNoCredentials(t *testing.T) {
	f, server := newFakeService(t)
	client, err := NewClient(ClientOptions{BaseUrl: server.URL})
	require.NoError(t, err)

	_, err = client.Authenticate(context.Background())
	require.ErrorIs(t, err, ErrNoCredentials)

	_, err = client.Query(context.Background(), "W1AW", ProfileLookup)
	require.ErrorIs(t, err, ErrNoCredentials)
	require.Equal(t, 0, f.logins)
	require.Equal(t, 0, f.totalQueries())
}

func TestAuthenticateRetries(t *testing.T) {
	f, server := newFakeService(t)
	f.login = func(n int, _ url.Values) response {
		if n == 1 {
			return response{status: http.StatusBadGateway, body: "bad gateway"}
		}
		return ok(loginOk)
	}
	client := newTestClient(t, server, 3)

	token, err := client.Authenticate(context.Background())
	require.NoError(t, err)
	require.Equal(t, testToken, token)
	require.Equal(t, 2, f.logins)
}

func TestAuthenticateRetryExhausted(t *testing.T) {
	f, server := newFakeService(t)
	f.login = func(int, url.Values) response {
		return response{status: http.StatusInternalServerError, body: "oops"}
	}
	client := newTestClient(t, server, 3)

	_, err := client.Authenticate(context.Background())
	require.ErrorIs(t, err, ErrRetryExhausted)
	require.Equal(t, 3, f.logins)
}

func TestQuerySearch(t *testing.T) {
	f, server := newFakeService(t)
	client := newTestClient(t, server, 3)

	res, err := client.Query(context.Background(), "W1AW/P", ProfileLookup)
	require.NoError(t, err)
	diff := cmp.Diff(Result{"callsign": "W1AW", "nick": "W1AW", "grid": "FN31"}, res)
	require.Empty(t, diff)

	require.Equal(t, 1, f.logins)
	require.Equal(t, 1, f.queries["/xml.php"])

	query := f.params[len(f.params)-1]
	require.Equal(t, testToken, query.Get("id"))
	require.Equal(t, "W1AW/P", query.Get("callsign"))
	require.Equal(t, "test:"+Agent, query.Get("prg"))
	require.False(t, query.Has("u"))
	require.False(t, query.Has("p"))
}

func TestQueryEndpoints(t *testing.T) {
	f, server := newFakeService(t)
	client := newTestClient(t, server, 3)
	client.session.SetToken(testToken)

	_, err := client.Query(context.Background(), "W1AW", Biography)
	require.NoError(t, err)
	_, err = client.Query(context.Background(), "W1AW", RecentActivity)
	require.NoError(t, err)

	require.Equal(t, 0, f.logins)
	require.Equal(t, 1, f.queries["/xml_bio.php"])
	require.Equal(t, 1, f.queries["/xml_recactivity.php"])
	require.Equal(t, "1", f.params[0].Get("strip_html"))
	require.Equal(t, "1", f.params[1].Get("rec_activity"))
	require.Equal(t, "1", f.params[1].Get("log_activity"))
	require.Equal(t, "1", f.params[1].Get("logbook"))
}

func TestQueryCallsignNotFound(t *testing.T) {
	f, server := newFakeService(t)
	f.query = func(string, int, url.Values) response { return ok(notFound) }
	client := newTestClient(t, server, 3)

	_, err := client.Query(context.Background(), "N0CALL", ProfileLookup)
	require.ErrorIs(t, err, ErrCallsignNotFound)
	require.Equal(t, 1, f.totalQueries())
	require.Equal(t, 1, f.logins)
}

func TestQuerySessionExpired(t *testing.T) {
	f, server := newFakeService(t)
	f.query = func(_ string, _ int, q url.Values) response {
		if q.Get("id") != testToken {
			return ok(expired)
		}
		return ok(searchW1AW)
	}
	client := newTestClient(t, server, 3)
	client.session.SetToken("stale")

	res, err := client.Query(context.Background(), "W1AW", ProfileLookup)
	require.NoError(t, err)
	require.Equal(t, "FN31", res["grid"])

	require.Equal(t, 1, f.logins)
	require.Equal(t, 2, f.totalQueries())
	require.Equal(t, testToken, client.Session().Token())
}

func TestQuerySessionExpiredTwice(t *testing.T) {
	f, server := newFakeService(t)
	f.query = func(string, int, url.Values) response { return ok(expired) }
	client := newTestClient(t, server, 5)
	client.session.SetToken("stale")

	_, err := client.Query(context.Background(), "W1AW", ProfileLookup)
	require.ErrorIs(t, err, ErrProtocol)
	require.Equal(t, 1, f.logins)
	require.Equal(t, 2, f.totalQueries())
}

func TestQuerySessionExpiredOnLastAttempt(t *testing.T) {
	f, server := newFakeService(t)
	f.query = func(_ string, n int, _ url.Values) response {
		if n == 1 {
			return response{status: http.StatusBadGateway, body: "bad gateway"}
		}
		return ok(expired)
	}
	client := newTestClient(t, server, 2)

	_, err := client.Query(context.Background(), "W1AW", ProfileLookup)
	require.ErrorIs(t, err, ErrRetryExhausted)
	require.Contains(t, err.Error(), "session expired")
	require.Equal(t, 1, f.logins)
	require.Equal(t, 2, f.totalQueries())
	require.Empty(t, client.Session().Token())
}

func TestQuerySessionExpiredSingleAttempt(t *testing.T) {
	f, server := newFakeService(t)
	f.query = func(string, int, url.Values) response { return ok(expired) }
	client := newTestClient(t, server, 1)
	client.session.SetToken("stale")

	_, err := client.Query(context.Background(), "W1AW", ProfileLookup)
	require.ErrorIs(t, err, ErrRetryExhausted)
	require.NotContains(t, err.Error(), "%!w")
	require.Equal(t, 0, f.logins)
	require.Equal(t, 1, f.totalQueries())
}

func TestQueryOtherServiceError(t *testing.T) {
	f, server := newFakeService(t)
	f.query = func(string, int, url.Values) response {
		return ok(`<HamQTH><session><error>Too many requests</error></session></HamQTH>`)
	}
	client := newTestClient(t, server, 3)

	_, err := client.Query(context.Background(), "W1AW", ProfileLookup)
	require.ErrorIs(t, err, ErrProtocol)
	require.Contains(t, err.Error(), "Too many requests")
	require.Equal(t, 1, f.totalQueries())
}

func TestQueryMalformed(t *testing.T) {
	f, server := newFakeService(t)
	f.query = func(string, int, url.Values) response { return ok(`<HamQTH><search><nick>W1AW`) }
	client := newTestClient(t, server, 3)

	_, err := client.Query(context.Background(), "W1AW", ProfileLookup)
	require.ErrorIs(t, err, ErrMalformedResponse)
	require.Equal(t, 1, f.totalQueries())
}

func TestQueryRetryExhausted(t *testing.T) {
	f, server := newFakeService(t)
	f.query = func(string, int, url.Values) response {
		return response{status: http.StatusServiceUnavailable, body: "down"}
	}
	client := newTestClient(t, server, 4)

	_, err := client.Query(context.Background(), "W1AW", ProfileLookup)
	require.ErrorIs(t, err, ErrRetryExhausted)
	require.Equal(t, 4, f.totalQueries())
	require.Equal(t, 1, f.logins)
}

func TestQueryTimeoutIsRetried(t *testing.T) {
	f, server := newFakeService(t)
	f.query = func(_ string, n int, _ url.Values) response {
		if n == 1 {
			time.Sleep(300 * time.Millisecond)
		}
		return ok(searchW1AW)
	}
	client := newTestClient(t, server, 3)
	client.Http.SetTimeout(100 * time.Millisecond)

	res, err := client.Query(context.Background(), "W1AW", ProfileLookup)
	require.NoError(t, err)
	require.Equal(t, "W1AW", res["nick"])
	require.Equal(t, 2, f.totalQueries())
}

func TestLookupMerges(t *testing.T) {
	f, server := newFakeService(t)
	f.query = func(path string, _ int, _ url.Values) response {
		switch path {
		case "/xml_bio.php":
			return ok(`<HamQTH><search><callsign>w1aw</callsign><bio>ARRL HQ station</bio></search></HamQTH>`)
		case "/xml_recactivity.php":
			return ok(`<HamQTH><search><activity><act><band>20m</band></act></activity></search></HamQTH>`)
		}
		return ok(searchW1AW)
	}
	client := newTestClient(t, server, 3)

	res, err := client.Lookup(context.Background(), "W1AW", LookupOptions{
		Profile:  true,
		Bio:      true,
		Activity: true,
	})
	require.NoError(t, err)
	expected := Result{
		"callsign": "w1aw",
		"nick":     "W1AW",
		"grid":     "FN31",
		"bio":      "ARRL HQ station",
		"band":     "20m",
	}
	require.Empty(t, cmp.Diff(expected, res))
	require.Equal(t, 3, f.totalQueries())

	res, err = client.Lookup(context.Background(), "W1AW", LookupOptions{})
	require.NoError(t, err)
	require.Empty(t, res)
	require.Equal(t, 3, f.totalQueries())
}

func TestLookupStopsOnError(t *testing.T) {
	f, server := newFakeService(t)
	f.query = func(string, int, url.Values) response { return ok(notFound) }
	client := newTestClient(t, server, 3)

	_, err := client.Lookup(context.Background(), "N0CALL", LookupOptions{Profile: true, Bio: true})
	require.ErrorIs(t, err, ErrCallsignNotFound)
	require.Equal(t, 1, f.totalQueries())
}

type memoryCache map[string]map[string]string

func (m memoryCache) Get(_ context.Context, key string) (map[string]string, bool) {
	fields, ok := m[key]
	return fields, ok
}

func (m memoryCache) Put(_ context.Context, key string, fields map[string]string) {
	m[key] = fields
}

func TestLookupUsesCache(t *testing.T) {
	f, server := newFakeService(t)
	cache := memoryCache{}

	client, err := NewClient(ClientOptions{BaseUrl: server.URL, Cache: cache})
	require.NoError(t, err)
	require.NoError(t, client.SetLoginInfo("ok1xyz", "hunter2"))

	first, err := client.Lookup(context.Background(), "w1aw", LookupOptions{Profile: true})
	require.NoError(t, err)
	second, err := client.Lookup(context.Background(), "W1AW", LookupOptions{Profile: true})
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Equal(t, 1, f.totalQueries())
	require.Contains(t, cache, "profile:W1AW")
}

func TestConnectionRefusedIsRetried(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()
	client := newTestClient(t, server, 2)

	_, err := client.Authenticate(context.Background())
	require.ErrorIs(t, err, ErrRetryExhausted)
	require.NotErrorIs(t, err, ErrProtocol)

	client.session.SetToken(testToken)
	_, err = client.Query(context.Background(), "W1AW", ProfileLookup)
	require.ErrorIs(t, err, ErrRetryExhausted)
	require.Equal(t, testToken, client.Session().Token())
}
