// Package fetch polls the scores API and feeds newly seen scores into the
// history window and the live broadcast channel.
//
// The fetcher owns the outer retry policy: a page that fails to scan is
// logged with its body and discarded, and polling continues. The scanner
// itself never retries.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/osukit/scoresws/history"
	"github.com/osukit/scoresws/internal/pool"
	"github.com/osukit/scoresws/scan"
	"github.com/osukit/scoresws/score"
)

// Doer captures the subset of *http.Client the fetcher relies on, so tests
// can inject fake implementations and run without outbound requests.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config holds the API endpoints and credentials of one fetcher.
type Config struct {
	// ScoresURL is the scores listing endpoint.
	ScoresURL string

	// TokenURL is the OAuth token endpoint used for the client-credentials
	// grant.
	TokenURL string

	ClientID     string
	ClientSecret string

	// Interval between polls.
	Interval time.Duration
}

// Fetcher polls the scores API on a fixed interval.
//
// Each page is scanned with the zero-copy scanner; scores whose id has not
// been seen before are recorded in the history and published to the out
// channel. The pagination cursor for the next poll is derived from the
// OLDEST id of the current page: the API's own cursor fields carry the
// newest id and are ignored by the scanner.
type Fetcher struct {
	client Doer
	cfg    Config
	hist   *history.History
	out    chan<- score.Score
	log    *slog.Logger

	intervalNs atomic.Int64

	cursor uint64

	token       string
	tokenExpiry time.Time
}

// New creates a Fetcher. The out channel receives each newly seen score,
// already detached from the fetch buffer; it may be nil if only the history
// should be populated.
func New(client Doer, cfg Config, hist *history.History, out chan<- score.Score, log *slog.Logger) *Fetcher {
	f := &Fetcher{
		client: client,
		cfg:    cfg,
		hist:   hist,
		out:    out,
		log:    log,
	}
	f.intervalNs.Store(int64(cfg.Interval))

	return f
}

// SetCursor seeds the pagination cursor, typically with the newest id of a
// restored snapshot so polling resumes where the previous process stopped.
func (f *Fetcher) SetCursor(id uint64) {
	f.cursor = id
}

// SetInterval changes the polling interval; the new value takes effect
// after the next poll. Safe to call concurrently with Run.
func (f *Fetcher) SetInterval(d time.Duration) {
	if d > 0 {
		f.intervalNs.Store(int64(d))
	}
}

// Run polls until ctx is canceled. Poll failures are logged, never fatal.
func (f *Fetcher) Run(ctx context.Context) error {
	timer := time.NewTimer(f.interval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		if err := f.FetchOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			f.log.Error("fetch failed", "err", err)
		}

		timer.Reset(f.interval())
	}
}

func (f *Fetcher) interval() time.Duration {
	return time.Duration(f.intervalNs.Load())
}

// FetchOnce performs a single poll: fetch one page, scan it, publish new
// scores and advance the cursor.
func (f *Fetcher) FetchOnce(ctx context.Context) error {
	token, err := f.accessToken(ctx)
	if err != nil {
		return fmt.Errorf("acquire access token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.pageURL(), nil)
	if err != nil {
		return fmt.Errorf("build scores request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("request scores page: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized {
		// Token may have been revoked before its announced expiry.
		f.token = ""
		return fmt.Errorf("scores request unauthorized, dropping cached token")
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("scores request returned status %d", resp.StatusCode)
	}

	buf := pool.GetBodyBuffer()
	defer pool.PutBodyBuffer(buf)

	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return fmt.Errorf("read scores body: %w", err)
	}

	return f.publish(buf.Bytes())
}

// publish scans body and forwards every previously unseen score.
//
// body may be recycled after publish returns; every retained or published
// score is detached from it first.
func (f *Fetcher) publish(body []byte) error {
	set := score.NewSet(64)
	if err := scan.New(body).Scan(set); err != nil {
		return fmt.Errorf("scan scores page: %w", err)
	}

	published := 0
	for sc := range set.All() {
		if !f.hist.Add(sc) {
			continue
		}

		published++
		if f.out != nil {
			f.out <- sc.Clone()
		}
	}

	if oldest, ok := set.Oldest(); ok {
		f.cursor = oldest.ID()
	}

	f.log.Debug("fetched scores page",
		"scanned", set.Len(),
		"new", published,
		"cursor", f.cursor,
	)

	return nil
}

func (f *Fetcher) pageURL() string {
	if f.cursor == 0 {
		return f.cfg.ScoresURL
	}

	sep := "?"
	if strings.Contains(f.cfg.ScoresURL, "?") {
		sep = "&"
	}

	return f.cfg.ScoresURL + sep + "cursor%5Bid%5D=" + strconv.FormatUint(f.cursor, 10)
}

// accessToken returns a cached token or requests a fresh one via the OAuth
// client-credentials grant.
//
// The token response is small trusted JSON, decoded with encoding/json;
// the zero-copy scanner is reserved for the scores hot path.
func (f *Fetcher) accessToken(ctx context.Context) (string, error) {
	if f.token != "" && time.Now().Before(f.tokenExpiry) {
		return f.token, nil
	}

	form := url.Values{
		"client_id":     {f.cfg.ClientID},
		"client_secret": {f.cfg.ClientSecret},
		"grant_type":    {"client_credentials"},
		"scope":         {"public"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request token: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request returned status %d", resp.StatusCode)
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}

	if tok.AccessToken == "" {
		return "", fmt.Errorf("token response carries no access token")
	}

	f.token = tok.AccessToken
	// Refresh slightly early so an expiring token is never sent.
	f.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - 30*time.Second)

	return f.token, nil
}
