package xtream

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/iptvdeck/iptv-deck/internal/catalog"
	"github.com/iptvdeck/iptv-deck/internal/epg"
	"github.com/iptvdeck/iptv-deck/internal/metrics"
)

const (
	clientMaxRetries     = 3
	clientInitialBackoff = 2 * time.Second
	clientMaxBackoff     = 60 * time.Second
	clientPaceInterval   = 200 * time.Millisecond // min gap between player_api calls
)

// Kind names one content kind for category listing and metrics labels.
type Kind string

const (
	KindLive   Kind = "live"
	KindVOD    Kind = "vod"
	KindSeries Kind = "series"
)

func (k Kind) categoriesAction() string {
	switch k {
	case KindVOD:
		return "get_vod_categories"
	case KindSeries:
		return "get_series_categories"
	default:
		return "get_live_categories"
	}
}

// Client fetches player_api.php responses and hands raw payloads to the
// normalizers. It is the transport collaborator the core parsers never
// see; all of its failures degrade to empty per-kind results downstream.
type Client struct {
	Account Account
	HTTP    *http.Client

	limiter *rate.Limiter
	log     *logrus.Logger
}

// NewClient builds a client for one panel account. Successive API calls
// are paced so category fans-outs don't trip panel rate limits.
func NewClient(acct Account, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Client{
		Account: acct,
		HTTP:    &http.Client{Timeout: 90 * time.Second},
		limiter: rate.NewLimiter(rate.Every(clientPaceInterval), 1),
		log:     logger,
	}
}

func (c *Client) apiURL(action string, params url.Values) string {
	base := c.Account.ServerURL + "/player_api.php?username=" + url.QueryEscape(c.Account.Username) +
		"&password=" + url.QueryEscape(c.Account.Password)
	if action != "" {
		base += "&action=" + action
	}
	if len(params) > 0 {
		base += "&" + params.Encode()
	}
	return base
}

// Authenticate performs the credential handshake. Some panels return
// canonical credentials in user_info; those override what the caller
// supplied, the panel being authoritative.
func (c *Client) Authenticate() error {
	body, err := c.get(c.apiURL("", nil))
	if err != nil {
		return fmt.Errorf("xtream: auth: %w", err)
	}
	var auth struct {
		UserInfo *struct {
			Username string `json:"username"`
			Password string `json:"password"`
		} `json:"user_info"`
	}
	if err := json.Unmarshal(body, &auth); err != nil {
		return fmt.Errorf("xtream: auth: %w", err)
	}
	if auth.UserInfo != nil {
		if auth.UserInfo.Username != "" {
			c.Account.Username = auth.UserInfo.Username
		}
		if auth.UserInfo.Password != "" {
			c.Account.Password = auth.UserInfo.Password
		}
	}
	return nil
}

// Categories lists the categories for one content kind.
func (c *Client) Categories(kind Kind) ([]Category, error) {
	body, err := c.get(c.apiURL(kind.categoriesAction(), nil))
	if err != nil {
		return nil, err
	}
	return ParseCategories(body)
}

// LiveByCategory fetches and normalizes one live category.
func (c *Client) LiveByCategory(cat Category) ([]catalog.Channel, error) {
	body, err := c.get(c.apiURL("get_live_streams", url.Values{"category_id": {cat.ID}}))
	if err != nil {
		return nil, err
	}
	return NormalizeLive(c.Account, cat.Name, body)
}

// MoviesByCategory fetches and normalizes one VOD category.
func (c *Client) MoviesByCategory(cat Category) ([]catalog.Movie, error) {
	body, err := c.get(c.apiURL("get_vod_streams", url.Values{"category_id": {cat.ID}}))
	if err != nil {
		return nil, err
	}
	return NormalizeMovies(c.Account, cat.Name, body)
}

// SeriesByCategory fetches and normalizes one series category.
func (c *Client) SeriesByCategory(cat Category) ([]catalog.SeriesSummary, error) {
	body, err := c.get(c.apiURL("get_series", url.Values{"category_id": {cat.ID}}))
	if err != nil {
		return nil, err
	}
	return NormalizeSeries(cat.Name, body)
}

// SeriesInfo fetches the raw get_series_info payload for one series.
// Callers pass it to ResolveSeasons / PopulateSeason.
func (c *Client) SeriesInfo(seriesID string) ([]byte, error) {
	return c.get(c.apiURL("get_series_info", url.Values{"series_id": {seriesID}}))
}

// ShortEPG fetches the Xtream guide for one stream and parses its
// epg_listings shape.
func (c *Client) ShortEPG(streamID string) (catalog.Guide, error) {
	body, err := c.get(c.apiURL("get_simple_data_table", url.Values{"stream_id": {streamID}}))
	if err != nil {
		return nil, err
	}
	guide, stats, err := epg.ParseXtreamEPG(body)
	if err != nil {
		return nil, err
	}
	if stats.Skipped > 0 {
		c.log.WithFields(logrus.Fields{"stream_id": streamID, "skipped": stats.Skipped}).
			Warn("xtream EPG listings skipped")
	}
	return guide, nil
}

// IndexResult is a wholesale per-kind fetch outcome. A kind whose fetch
// or decode failed is present as an empty slice: fail closed, never
// half-populated, and one kind's failure never contaminates another.
type IndexResult struct {
	Channels []catalog.Channel
	Movies   []catalog.Movie
	Series   []catalog.SeriesSummary
}

// IndexCategories fetches every category of every kind and aggregates
// the normalized records.
func (c *Client) IndexCategories() IndexResult {
	res := IndexResult{
		Channels: []catalog.Channel{},
		Movies:   []catalog.Movie{},
		Series:   []catalog.SeriesSummary{},
	}

	if cats, err := c.Categories(KindLive); err != nil {
		c.failKind(KindLive, err)
	} else {
		for _, cat := range cats {
			channels, err := c.LiveByCategory(cat)
			if err != nil {
				c.failKind(KindLive, err)
				res.Channels = res.Channels[:0]
				break
			}
			res.Channels = append(res.Channels, channels...)
		}
	}

	if cats, err := c.Categories(KindVOD); err != nil {
		c.failKind(KindVOD, err)
	} else {
		for _, cat := range cats {
			movies, err := c.MoviesByCategory(cat)
			if err != nil {
				c.failKind(KindVOD, err)
				res.Movies = res.Movies[:0]
				break
			}
			res.Movies = append(res.Movies, movies...)
		}
	}

	if cats, err := c.Categories(KindSeries); err != nil {
		c.failKind(KindSeries, err)
	} else {
		for _, cat := range cats {
			series, err := c.SeriesByCategory(cat)
			if err != nil {
				c.failKind(KindSeries, err)
				res.Series = res.Series[:0]
				break
			}
			res.Series = append(res.Series, series...)
		}
	}

	return res
}

func (c *Client) failKind(kind Kind, err error) {
	metrics.FetchFailures.WithLabelValues(string(kind)).Inc()
	c.log.WithFields(logrus.Fields{"kind": string(kind), "error": err}).
		Warn("category fetch failed; kind degrades to empty")
}

// retryableStatus reports whether we may retry after backoff.
func retryableStatus(code int) bool {
	if code == http.StatusTooManyRequests || code == http.StatusLocked || code == http.StatusRequestTimeout {
		return true
	}
	return code >= 500 && code < 600
}

// parseRetryAfter parses Retry-After (seconds or HTTP-date); 0 if missing
// or invalid.
func parseRetryAfter(resp *http.Response) time.Duration {
	s := resp.Header.Get("Retry-After")
	if s == "" {
		return 0
	}
	if sec, err := strconv.Atoi(s); err == nil && sec > 0 {
		d := time.Duration(sec) * time.Second
		if d > clientMaxBackoff {
			return clientMaxBackoff
		}
		return d
	}
	if t, err := http.ParseTime(s); err == nil {
		d := time.Until(t)
		if d < 0 {
			return clientInitialBackoff
		}
		if d > clientMaxBackoff {
			return clientMaxBackoff
		}
		return d
	}
	return 0
}

// get performs a paced GET with retries on 408/423/429/5xx, honoring
// Retry-After and falling back to exponential backoff. Responses are
// decompressed for gzip and brotli. Errors and log lines carry the URL
// once, with the panel password scrubbed.
func (c *Client) get(reqURL string) ([]byte, error) {
	var lastErr error
	backoff := clientInitialBackoff
	for attempt := 0; attempt <= clientMaxRetries; attempt++ {
		if err := c.limiter.Wait(context.Background()); err != nil {
			return nil, err
		}
		req, err := http.NewRequest(http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", "IPTVDeck/1.0")
		req.Header.Set("Accept-Encoding", "gzip, br")
		resp, err := c.HTTP.Do(req)
		if err != nil {
			// url.Error embeds the full request URL; keep only the cause
			// so the final wrap carries the URL once, scrubbed.
			var uerr *url.Error
			if errors.As(err, &uerr) {
				lastErr = uerr.Err
			} else {
				lastErr = err
			}
			if attempt < clientMaxRetries {
				time.Sleep(backoff)
				if backoff < clientMaxBackoff {
					backoff *= 2
				}
			}
			continue
		}
		body, readErr := readBody(resp)
		resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			if attempt < clientMaxRetries {
				time.Sleep(backoff)
				if backoff < clientMaxBackoff {
					backoff *= 2
				}
			}
			continue
		}
		if resp.StatusCode == http.StatusOK {
			return body, nil
		}
		lastErr = fmt.Errorf("status %s", resp.Status)
		if !retryableStatus(resp.StatusCode) || attempt == clientMaxRetries {
			return nil, fmt.Errorf("get %s: %w", c.scrubCreds(reqURL), lastErr)
		}
		wait := parseRetryAfter(resp)
		if wait == 0 {
			wait = backoff
			if backoff < clientMaxBackoff {
				backoff *= 2
			}
		}
		c.log.WithFields(logrus.Fields{"url": c.scrubCreds(reqURL), "status": resp.StatusCode, "wait": wait}).
			Debug("retrying panel request")
		time.Sleep(wait)
	}
	return nil, fmt.Errorf("get %s: %w", c.scrubCreds(reqURL), lastErr)
}

// scrubCreds masks the panel password in text destined for errors and
// logs.
func (c *Client) scrubCreds(s string) string {
	if c.Account.Password == "" {
		return s
	}
	for _, secret := range []string{url.QueryEscape(c.Account.Password), c.Account.Password} {
		s = strings.ReplaceAll(s, secret, "xxxxx")
	}
	return s
}

func readBody(resp *http.Response) ([]byte, error) {
	var r io.Reader = resp.Body
	switch resp.Header.Get("Content-Encoding") {
	case "br":
		r = brotli.NewReader(resp.Body)
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		r = gz
	}
	return io.ReadAll(r)
}
