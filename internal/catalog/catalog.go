package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Channel is a single live channel from an M3U playlist or an Xtream
// get_live_streams response. Identified within a session by URL.
// EPGChannelID joins the channel to its guide programs by string equality
// (a weak reference, never ownership).
type Channel struct {
	Name         string `json:"name"`
	URL          string `json:"url"`
	Logo         string `json:"logo,omitempty"`
	Category     string `json:"category,omitempty"`
	EPGChannelID string `json:"epg_channel_id,omitempty"`
}

// Movie is a VOD entry from an Xtream get_vod_streams response.
type Movie struct {
	Name     string  `json:"name"`
	URL      string  `json:"url"`
	Logo     string  `json:"logo,omitempty"`
	Category string  `json:"category,omitempty"`
	Plot     string  `json:"plot,omitempty"`
	Year     string  `json:"year,omitempty"`
	Rating   float64 `json:"rating,omitempty"`
}

// SeriesSummary is a lightweight series catalog entry; it carries no
// episodes. Seasons are resolved separately from get_series_info.
type SeriesSummary struct {
	SeriesID string  `json:"series_id"`
	Name     string  `json:"name"`
	Logo     string  `json:"logo,omitempty"`
	Category string  `json:"category,omitempty"`
	Plot     string  `json:"plot,omitempty"`
	Year     string  `json:"year,omitempty"`
	Rating   float64 `json:"rating,omitempty"`
}

// Season holds per-season metadata plus its episodes. Episodes may be
// empty while EpisodeCount > 0: a metadata-only season pending lazy load.
// Seasons within a series are unique by Number, kept sorted ascending.
type Season struct {
	Number       int       `json:"number"`
	Name         string    `json:"name"`
	EpisodeCount int       `json:"episode_count"`
	AirDate      string    `json:"air_date,omitempty"`
	Overview     string    `json:"overview,omitempty"`
	CoverURL     string    `json:"cover_url,omitempty"`
	Episodes     []Episode `json:"episodes"`
}

// Episode is a single episode. Episodes within a season are unique by
// Number and kept sorted ascending.
type Episode struct {
	ID                 string `json:"id"`
	Number             int    `json:"number"`
	Title              string `json:"title"`
	Plot               string `json:"plot,omitempty"`
	DurationText       string `json:"duration,omitempty"`
	DurationSeconds    int    `json:"duration_secs,omitempty"`
	Rating             string `json:"rating,omitempty"`
	ReleaseDate        string `json:"release_date,omitempty"`
	QualityInfo        string `json:"quality_info,omitempty"`
	ContainerExtension string `json:"container_extension,omitempty"`
	SeasonNumber       int    `json:"season_number"`
	URL                string `json:"url"`
}

// Program is one guide entry for a channel.
type Program struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Start       time.Time `json:"start"`
	Stop        time.Time `json:"stop"`
}

// Guide maps an EPG channel id to that channel's programs. Program order
// is the order of arrival in the source document; the usual XMLTV feed is
// already chronological and the parsers do not re-sort.
type Guide map[string][]Program

// Catalog holds the current normalized snapshot of every content kind.
// Parsers and normalizers return fresh slices; callers hand whole slices
// to Replace* so a new parse discards the previous state for that kind.
type Catalog struct {
	mu       sync.RWMutex
	Channels []Channel       `json:"channels"`
	Movies   []Movie         `json:"movies"`
	Series   []SeriesSummary `json:"series"`
	Guide    Guide           `json:"guide,omitempty"`
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{}
}

// ReplaceChannels swaps in a new channel list wholesale.
func (c *Catalog) ReplaceChannels(channels []Channel) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Channels = channels
}

// ReplaceMovies swaps in a new movie list wholesale.
func (c *Catalog) ReplaceMovies(movies []Movie) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Movies = movies
}

// ReplaceSeries swaps in a new series list wholesale.
func (c *Catalog) ReplaceSeries(series []SeriesSummary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Series = series
}

// ReplaceGuide swaps in a new guide wholesale.
func (c *Catalog) ReplaceGuide(g Guide) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Guide = g
}

// SnapshotChannels returns a copy of the channel list for read-only use.
func (c *Catalog) SnapshotChannels() []Channel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Channel, len(c.Channels))
	copy(out, c.Channels)
	return out
}

// SnapshotMovies returns a copy of the movie list.
func (c *Catalog) SnapshotMovies() []Movie {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Movie, len(c.Movies))
	copy(out, c.Movies)
	return out
}

// SnapshotSeries returns a copy of the series list.
func (c *Catalog) SnapshotSeries() []SeriesSummary {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]SeriesSummary, len(c.Series))
	copy(out, c.Series)
	return out
}

// SnapshotGuide returns a copy of the whole guide.
func (c *Catalog) SnapshotGuide() Guide {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(Guide, len(c.Guide))
	for id, programs := range c.Guide {
		cp := make([]Program, len(programs))
		copy(cp, programs)
		out[id] = cp
	}
	return out
}

// Programs returns a copy of the program list for one guide channel id.
func (c *Catalog) Programs(channelID string) []Program {
	c.mu.RLock()
	defer c.mu.RUnlock()
	src := c.Guide[channelID]
	out := make([]Program, len(src))
	copy(out, src)
	return out
}

// Save writes the catalog to path as JSON using a temp-file-then-rename
// strategy so readers never see a partially-written file.
func (c *Catalog) Save(path string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(filepath.Clean(path))
	tmp, err := os.CreateTemp(dir, ".catalog-*.json.tmp")
	if err != nil {
		return fmt.Errorf("catalog save: create temp: %w", err)
	}
	tmpName := tmp.Name()
	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil || closeErr != nil {
		os.Remove(tmpName)
		if writeErr != nil {
			return fmt.Errorf("catalog save: write: %w", writeErr)
		}
		return fmt.Errorf("catalog save: close: %w", closeErr)
	}
	if err := os.Chmod(tmpName, 0600); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("catalog save: chmod: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("catalog save: rename: %w", err)
	}
	return nil
}

// Load replaces the catalog with the contents of path (JSON).
func (c *Catalog) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var out struct {
		Channels []Channel       `json:"channels"`
		Movies   []Movie         `json:"movies"`
		Series   []SeriesSummary `json:"series"`
		Guide    Guide           `json:"guide"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Channels = out.Channels
	c.Movies = out.Movies
	c.Series = out.Series
	c.Guide = out.Guide
	return nil
}
