package fetch

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/osukit/scoresws/history"
	"github.com/osukit/scoresws/score"
)

// fakeDoer implements Doer so tests run without outbound requests.
type fakeDoer struct {
	t         testing.TB
	responses []*http.Response
	requests  []*http.Request
}

func newFakeDoer(t testing.TB, responses ...*http.Response) *fakeDoer {
	return &fakeDoer{
		t:         t,
		responses: append([]*http.Response(nil), responses...),
	}
}

func (f *fakeDoer) Do(req *http.Request) (*http.Response, error) {
	f.requests = append(f.requests, req)
	if len(f.responses) == 0 {
		f.t.Fatalf("fake http client has no responses left for %s %s", req.Method, req.URL)
	}

	resp := f.responses[0]
	f.responses = f.responses[1:]

	return resp, nil
}

func stringResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

var _ Doer = (*fakeDoer)(nil)

const tokenBody = `{"access_token": "token-abc", "expires_in": 86400, "token_type": "Bearer"}`

func testConfig() Config {
	return Config{
		ScoresURL:    "https://api.example.test/scores",
		TokenURL:     "https://api.example.test/oauth/token",
		ClientID:     "42",
		ClientSecret: "secret",
		Interval:     time.Second,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFetchOnce_PublishesNewScores(t *testing.T) {
	doer := newFakeDoer(t,
		stringResponse(http.StatusOK, tokenBody),
		stringResponse(http.StatusOK, `{"scores": [{"id": 123}, {"id":456, "user": {"id": 2}}], "cursor": {"id": 456}}`),
	)

	hist := history.New()
	out := make(chan score.Score, 8)
	f := New(doer, testConfig(), hist, out, discardLogger())

	require.NoError(t, f.FetchOnce(context.Background()))

	require.Equal(t, 2, hist.Len())
	require.Len(t, out, 2)

	first := <-out
	require.Equal(t, uint64(123), first.ID())
	require.Equal(t, `{"id": 123}`, string(first.Raw()))

	reqs := doer.requests
	require.Len(t, reqs, 2)

	// Token request first, then the authenticated page request.
	require.Equal(t, http.MethodPost, reqs[0].Method)
	require.Equal(t, http.MethodGet, reqs[1].Method)
	require.Equal(t, "Bearer token-abc", reqs[1].Header.Get("Authorization"))
}

func TestFetchOnce_CursorFromOldestID(t *testing.T) {
	doer := newFakeDoer(t,
		stringResponse(http.StatusOK, tokenBody),
		// The API's cursor carries the newest id (789); the fetcher must use
		// the oldest one instead.
		stringResponse(http.StatusOK, `{"scores": [{"id": 789}, {"id": 123}], "cursor": {"id": 789}}`),
		stringResponse(http.StatusOK, `{"scores": []}`),
	)

	f := New(doer, testConfig(), history.New(), nil, discardLogger())

	require.NoError(t, f.FetchOnce(context.Background()))
	require.NoError(t, f.FetchOnce(context.Background()))

	reqs := doer.requests
	require.Len(t, reqs, 3)
	require.Empty(t, reqs[1].URL.RawQuery)
	require.Equal(t, "cursor%5Bid%5D=123", reqs[2].URL.RawQuery)
}

func TestFetchOnce_DedupAcrossPages(t *testing.T) {
	doer := newFakeDoer(t,
		stringResponse(http.StatusOK, tokenBody),
		stringResponse(http.StatusOK, `{"scores": [{"id": 1}, {"id": 2}]}`),
		stringResponse(http.StatusOK, `{"scores": [{"id": 2}, {"id": 3}]}`),
	)

	hist := history.New()
	out := make(chan score.Score, 8)
	f := New(doer, testConfig(), hist, out, discardLogger())

	require.NoError(t, f.FetchOnce(context.Background()))
	require.NoError(t, f.FetchOnce(context.Background()))

	// Score 2 appears on both pages but is published once.
	require.Equal(t, 3, hist.Len())
	require.Len(t, out, 3)
}

func TestFetchOnce_TokenReuse(t *testing.T) {
	doer := newFakeDoer(t,
		stringResponse(http.StatusOK, tokenBody),
		stringResponse(http.StatusOK, `{"scores": []}`),
		stringResponse(http.StatusOK, `{"scores": []}`),
	)

	f := New(doer, testConfig(), history.New(), nil, discardLogger())

	require.NoError(t, f.FetchOnce(context.Background()))
	require.NoError(t, f.FetchOnce(context.Background()))

	// Three requests total: one token request, two page requests.
	require.Len(t, doer.requests, 3)
}

func TestFetchOnce_MalformedPageIsDiscarded(t *testing.T) {
	doer := newFakeDoer(t,
		stringResponse(http.StatusOK, tokenBody),
		stringResponse(http.StatusOK, `{"results": []}`),
		stringResponse(http.StatusOK, `{"scores": [{"id": 7}]}`),
	)

	hist := history.New()
	f := New(doer, testConfig(), hist, nil, discardLogger())

	err := f.FetchOnce(context.Background())
	require.Error(t, err)
	require.Equal(t, 0, hist.Len())

	// Polling continues: the next page succeeds.
	require.NoError(t, f.FetchOnce(context.Background()))
	require.Equal(t, 1, hist.Len())
}

func TestFetchOnce_UnauthorizedDropsToken(t *testing.T) {
	doer := newFakeDoer(t,
		stringResponse(http.StatusOK, tokenBody),
		stringResponse(http.StatusUnauthorized, ""),
		stringResponse(http.StatusOK, tokenBody),
		stringResponse(http.StatusOK, `{"scores": []}`),
	)

	f := New(doer, testConfig(), history.New(), nil, discardLogger())

	require.Error(t, f.FetchOnce(context.Background()))

	// The next poll re-authenticates.
	require.NoError(t, f.FetchOnce(context.Background()))
	require.Len(t, doer.requests, 4)
}

func TestFetchOnce_PublishedScoresOutliveBuffer(t *testing.T) {
	doer := newFakeDoer(t,
		stringResponse(http.StatusOK, tokenBody),
		stringResponse(http.StatusOK, `{"scores": [{"id": 11, "pp": 300.25}]}`),
		stringResponse(http.StatusOK, `{"scores": [{"id": 12, "pp": 1.05}]}`),
	)

	hist := history.New()
	out := make(chan score.Score, 8)
	f := New(doer, testConfig(), hist, out, discardLogger())

	require.NoError(t, f.FetchOnce(context.Background()))
	first := <-out

	// A second fetch reuses the pooled body buffer; the published score
	// must not be affected.
	require.NoError(t, f.FetchOnce(context.Background()))
	require.Equal(t, `{"id": 11, "pp": 300.25}`, string(first.Raw()))
}

func TestSetCursor(t *testing.T) {
	doer := newFakeDoer(t,
		stringResponse(http.StatusOK, tokenBody),
		stringResponse(http.StatusOK, `{"scores": []}`),
	)

	f := New(doer, testConfig(), history.New(), nil, discardLogger())
	f.SetCursor(999)

	require.NoError(t, f.FetchOnce(context.Background()))
	require.Equal(t, "cursor%5Bid%5D=999", doer.requests[1].URL.RawQuery)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	// Interval long enough that no second poll runs before the cancel below,
	// since the fake doer has responses for a single poll only.
	cfg := testConfig()
	cfg.Interval = 300 * time.Millisecond

	doer := newFakeDoer(t,
		stringResponse(http.StatusOK, tokenBody),
		stringResponse(http.StatusOK, `{"scores": [{"id": 1}]}`),
	)

	hist := history.New()
	f := New(doer, cfg, hist, nil, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()

	require.Eventually(t, func() bool { return hist.Len() == 1 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("fetcher did not stop after cancel")
	}
}
