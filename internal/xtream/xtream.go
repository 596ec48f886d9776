// Package xtream normalizes Xtream-Codes player_api JSON (categories,
// live/VOD/series stream lists, series-info payloads) into catalog
// records. Upstream panels are loose with types (ids arrive as numbers or
// strings, numbers as strings), so every scalar read goes through a
// flexible decode.
package xtream

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/iptvdeck/iptv-deck/internal/catalog"
)

// Account describes an authenticated panel. It is supplied by the
// transport caller; this package never constructs credentials.
type Account struct {
	ServerURL string // e.g. http://panel.example.com:8080, no trailing slash
	Username  string
	Password  string
}

// LiveStreamURL builds the playback URL for a live stream id.
func (a Account) LiveStreamURL(streamID string) string {
	return fmt.Sprintf("%s/live/%s/%s/%s.m3u8",
		strings.TrimSuffix(a.ServerURL, "/"),
		url.PathEscape(a.Username), url.PathEscape(a.Password), url.PathEscape(streamID))
}

// MovieStreamURL builds the playback URL for a VOD stream id.
func (a Account) MovieStreamURL(streamID, ext string) string {
	return fmt.Sprintf("%s/movie/%s/%s/%s.%s",
		strings.TrimSuffix(a.ServerURL, "/"),
		url.PathEscape(a.Username), url.PathEscape(a.Password), url.PathEscape(streamID), url.PathEscape(ext))
}

// EpisodeStreamURL builds the playback URL for a series episode id.
func (a Account) EpisodeStreamURL(episodeID, ext string) string {
	if ext == "" {
		ext = "mp4"
	}
	return fmt.Sprintf("%s/series/%s/%s/%s.%s",
		strings.TrimSuffix(a.ServerURL, "/"),
		url.PathEscape(a.Username), url.PathEscape(a.Password), url.PathEscape(episodeID), url.PathEscape(ext))
}

// Category is one entry of get_live_categories / get_vod_categories /
// get_series_categories.
type Category struct {
	ID   string
	Name string
}

// ParseCategories decodes a category list response.
func ParseCategories(raw []byte) ([]Category, error) {
	var list []struct {
		CategoryID   json.RawMessage `json:"category_id"`
		CategoryName string          `json:"category_name"`
	}
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("xtream: categories: %w", err)
	}
	out := make([]Category, 0, len(list))
	for _, c := range list {
		id := flexString(c.CategoryID)
		if id == "" {
			continue
		}
		out = append(out, Category{ID: id, Name: c.CategoryName})
	}
	return out, nil
}

// NormalizeLive converts a get_live_streams response into channels. The
// category name is the active selection at fetch time; it is not embedded
// in the per-item payload. A decode failure yields an empty slice (fail
// closed for the whole kind, never half-populated).
func NormalizeLive(acct Account, categoryName string, raw []byte) ([]catalog.Channel, error) {
	var streams []struct {
		StreamID     json.RawMessage `json:"stream_id"`
		Name         string          `json:"name"`
		StreamIcon   string          `json:"stream_icon"`
		EPGChannelID json.RawMessage `json:"epg_channel_id"`
	}
	if err := json.Unmarshal(raw, &streams); err != nil {
		return nil, fmt.Errorf("xtream: live streams: %w", err)
	}
	channels := make([]catalog.Channel, 0, len(streams))
	for _, s := range streams {
		sid := flexString(s.StreamID)
		if sid == "" {
			continue
		}
		channels = append(channels, catalog.Channel{
			Name:         s.Name,
			URL:          acct.LiveStreamURL(sid),
			Logo:         s.StreamIcon,
			Category:     categoryName,
			EPGChannelID: flexString(s.EPGChannelID),
		})
	}
	return channels, nil
}

// NormalizeMovies converts a get_vod_streams response into movies.
func NormalizeMovies(acct Account, categoryName string, raw []byte) ([]catalog.Movie, error) {
	var streams []struct {
		StreamID           json.RawMessage `json:"stream_id"`
		Name               string          `json:"name"`
		StreamIcon         string          `json:"stream_icon"`
		ContainerExtension string          `json:"container_extension"`
		Plot               string          `json:"plot"`
		Year               json.RawMessage `json:"year"`
		Rating5            json.RawMessage `json:"rating_5based"`
	}
	if err := json.Unmarshal(raw, &streams); err != nil {
		return nil, fmt.Errorf("xtream: vod streams: %w", err)
	}
	movies := make([]catalog.Movie, 0, len(streams))
	for _, s := range streams {
		sid := flexString(s.StreamID)
		if sid == "" {
			continue
		}
		ext := s.ContainerExtension
		if ext == "" {
			ext = "mp4"
		}
		movies = append(movies, catalog.Movie{
			Name:     s.Name,
			URL:      acct.MovieStreamURL(sid, ext),
			Logo:     s.StreamIcon,
			Category: categoryName,
			Plot:     s.Plot,
			Year:     flexString(s.Year),
			Rating:   flexFloat(s.Rating5),
		})
	}
	return movies, nil
}

// NormalizeSeries converts a get_series response into series summaries.
func NormalizeSeries(categoryName string, raw []byte) ([]catalog.SeriesSummary, error) {
	var list []struct {
		SeriesID json.RawMessage `json:"series_id"`
		Name     string          `json:"name"`
		Cover    string          `json:"cover"`
		Plot     string          `json:"plot"`
		Year     json.RawMessage `json:"year"`
		Rating5  json.RawMessage `json:"rating_5based"`
	}
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("xtream: series list: %w", err)
	}
	series := make([]catalog.SeriesSummary, 0, len(list))
	for _, s := range list {
		sid := flexString(s.SeriesID)
		if sid == "" {
			continue
		}
		series = append(series, catalog.SeriesSummary{
			SeriesID: sid,
			Name:     s.Name,
			Logo:     s.Cover,
			Category: categoryName,
			Plot:     s.Plot,
			Year:     flexString(s.Year),
			Rating:   flexFloat(s.Rating5),
		})
	}
	return series, nil
}

// flexString decodes a scalar that may arrive as a JSON string or number.
// null, objects, and empty input read as "".
func flexString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		if f == float64(int64(f)) {
			return strconv.FormatInt(int64(f), 10)
		}
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return ""
}

// flexFloat decodes a numeric scalar that may arrive as a JSON number or
// a numeric string. Anything else reads as 0.
func flexFloat(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f
		}
	}
	return 0
}

// flexInt decodes an integer scalar that may arrive as a JSON number or a
// numeric string. ok is false when nothing parses.
func flexInt(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return int(f), true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return n, true
		}
	}
	return 0, false
}
