package xtream

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/iptvdeck/iptv-deck/internal/catalog"
	"github.com/iptvdeck/iptv-deck/internal/timefmt"
)

// seasonShape tags which of the known get_series_info encodings a payload
// carries. Detected once up front; each shape has one typed branch.
type seasonShape int

const (
	shapeUnrecognized   seasonShape = iota
	shapeSeasonMetadata             // top-level "seasons" array of metadata objects
	shapeEpisodesByKey              // "episodes" keyed by season number; values are arrays or maps
)

// Stats counts what a resolve kept and what it dropped.
type Stats struct {
	Seasons  int
	Episodes int
	Skipped  int
}

type seriesInfoPayload struct {
	Seasons  json.RawMessage            `json:"seasons"`
	Episodes map[string]json.RawMessage `json:"episodes"`
}

type rawSeasonMeta struct {
	SeasonNumber json.RawMessage `json:"season_number"`
	Name         string          `json:"name"`
	EpisodeCount json.RawMessage `json:"episode_count"`
	AirDate      string          `json:"air_date"`
	Overview     string          `json:"overview"`
	Cover        string          `json:"cover"`
	CoverBig     string          `json:"cover_big"`
}

type rawEpisodeInfo struct {
	SeasonName   string          `json:"season_name"`
	Plot         string          `json:"plot"`
	Duration     json.RawMessage `json:"duration"`
	DurationSecs json.RawMessage `json:"duration_secs"`
	Rating       json.RawMessage `json:"rating"`
	ReleaseDate  string          `json:"releasedate"`
	ReleaseDate2 string          `json:"release_date"`
	Video        *rawVideoInfo   `json:"video"`
}

type rawVideoInfo struct {
	Width   json.RawMessage `json:"width"`
	Height  json.RawMessage `json:"height"`
	BitRate json.RawMessage `json:"bit_rate"`
}

type rawEpisode struct {
	ID                 json.RawMessage `json:"id"`
	StreamID           json.RawMessage `json:"stream_id"`
	EpisodeNum         json.RawMessage `json:"episode_num"`
	Episode            json.RawMessage `json:"episode"`
	EpisodeNumber      json.RawMessage `json:"episodeNumber"`
	Title              string          `json:"title"`
	Name               string          `json:"name"`
	Plot               string          `json:"plot"`
	Description        string          `json:"description"`
	Duration           json.RawMessage `json:"duration"`
	Rating             json.RawMessage `json:"rating"`
	Added              json.RawMessage `json:"added"`
	ContainerExtension string          `json:"container_extension"`
	Info               rawEpisodeInfo  `json:"info"`
}

func detectShape(info *seriesInfoPayload) (seasonShape, []rawSeasonMeta) {
	if len(info.Seasons) > 0 {
		var metas []rawSeasonMeta
		if err := json.Unmarshal(info.Seasons, &metas); err == nil && len(metas) > 0 {
			return shapeSeasonMetadata, metas
		}
	}
	if len(info.Episodes) > 0 {
		return shapeEpisodesByKey, nil
	}
	return shapeUnrecognized, nil
}

// ResolveSeasons normalizes a get_series_info payload into seasons sorted
// ascending by number. The payload presents seasons in one of two shapes:
// a top-level "seasons" metadata array (authoritative when present;
// episodes stay empty for lazy loading via PopulateSeason), or an
// "episodes" object keyed by season number whose values are either arrays
// or maps of episode objects. A payload matching neither yields an empty
// slice and nil error: "no seasons available" is a valid outcome, not a
// failure. Malformed individual entries are skipped and counted, never
// aborting siblings.
func ResolveSeasons(acct Account, payload []byte) ([]catalog.Season, Stats, error) {
	var stats Stats
	var info seriesInfoPayload
	if err := json.Unmarshal(payload, &info); err != nil {
		return nil, stats, fmt.Errorf("xtream: series info: %w", err)
	}

	shape, metas := detectShape(&info)
	switch shape {
	case shapeSeasonMetadata:
		seasons := seasonsFromMetadata(metas, &stats)
		stats.Seasons = len(seasons)
		return seasons, stats, nil
	case shapeEpisodesByKey:
		seasons := seasonsFromEpisodes(acct, info.Episodes, &stats)
		stats.Seasons = len(seasons)
		return seasons, stats, nil
	default:
		return []catalog.Season{}, stats, nil
	}
}

func seasonsFromMetadata(metas []rawSeasonMeta, stats *Stats) []catalog.Season {
	seasons := make([]catalog.Season, 0, len(metas))
	seen := make(map[int]bool, len(metas))
	for _, m := range metas {
		num, ok := flexInt(m.SeasonNumber)
		if !ok || num < 1 || seen[num] {
			stats.Skipped++
			continue
		}
		seen[num] = true
		name := m.Name
		if name == "" {
			name = "Season " + strconv.Itoa(num)
		}
		count, _ := flexInt(m.EpisodeCount)
		cover := m.Cover
		if cover == "" {
			cover = m.CoverBig
		}
		seasons = append(seasons, catalog.Season{
			Number:       num,
			Name:         name,
			EpisodeCount: count,
			AirDate:      m.AirDate,
			Overview:     m.Overview,
			CoverURL:     cover,
			Episodes:     []catalog.Episode{},
		})
	}
	sort.Slice(seasons, func(i, j int) bool { return seasons[i].Number < seasons[j].Number })
	return seasons
}

func seasonsFromEpisodes(acct Account, byKey map[string]json.RawMessage, stats *Stats) []catalog.Season {
	// Keys are walked in sorted order so that colliding keys ("01" and
	// "1" both name season 1) resolve the same way on every run.
	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	seasons := make([]catalog.Season, 0, len(byKey))
	seen := make(map[int]bool, len(byKey))
	for _, key := range keys {
		num, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil || num < 1 || seen[num] {
			stats.Skipped++
			continue
		}
		rawEpisodes := decodeSeasonEpisodes(byKey[key])
		if rawEpisodes == nil {
			stats.Skipped++
			continue
		}
		seen[num] = true
		season := catalog.Season{
			Number:   num,
			Name:     "Season " + strconv.Itoa(num),
			Episodes: []catalog.Episode{},
		}
		backfillSeasonMeta(&season, rawEpisodes)
		season.Episodes = normalizeSeasonEpisodes(acct, rawEpisodes, num, stats)
		// Never trust a stale external count once actual episodes are known.
		season.EpisodeCount = len(season.Episodes)
		if season.AirDate == "" {
			season.AirDate = earliestReleaseDate(season.Episodes)
		}
		seasons = append(seasons, season)
	}
	sort.Slice(seasons, func(i, j int) bool { return seasons[i].Number < seasons[j].Number })
	return seasons
}

// normalizeSeasonEpisodes converts raw episode objects in arrival order.
// Malformed entries and duplicate episode numbers are skipped and counted
// (first occurrence wins); the survivors come back sorted ascending.
func normalizeSeasonEpisodes(acct Account, rawEpisodes []json.RawMessage, seasonNumber int, stats *Stats) []catalog.Episode {
	episodes := make([]catalog.Episode, 0, len(rawEpisodes))
	seen := make(map[int]bool, len(rawEpisodes))
	for _, re := range rawEpisodes {
		ep, err := normalizeEpisode(acct, re, seasonNumber)
		if err != nil || seen[ep.Number] {
			stats.Skipped++
			continue
		}
		seen[ep.Number] = true
		episodes = append(episodes, ep)
		stats.Episodes++
	}
	sort.Slice(episodes, func(i, j int) bool { return episodes[i].Number < episodes[j].Number })
	return episodes
}

// decodeSeasonEpisodes handles the two sub-shapes under one season key:
// an ordered array of episode objects, or a map of episode objects.
// Returns nil when the value is neither.
func decodeSeasonEpisodes(raw json.RawMessage) []json.RawMessage {
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err == nil {
		return arr
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err == nil {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]json.RawMessage, 0, len(m))
		for _, k := range keys {
			out = append(out, m[k])
		}
		return out
	}
	return nil
}

// backfillSeasonMeta pulls season name and air date from the first
// episode's nested info when the season was synthesized without metadata.
func backfillSeasonMeta(season *catalog.Season, rawEpisodes []json.RawMessage) {
	if len(rawEpisodes) == 0 {
		return
	}
	var first rawEpisode
	if err := json.Unmarshal(rawEpisodes[0], &first); err != nil {
		return
	}
	if first.Info.SeasonName != "" {
		season.Name = first.Info.SeasonName
	}
	if first.Info.ReleaseDate != "" {
		season.AirDate = first.Info.ReleaseDate
	}
}

func earliestReleaseDate(episodes []catalog.Episode) string {
	earliest := ""
	for _, ep := range episodes {
		if ep.ReleaseDate == "" {
			continue
		}
		if earliest == "" || ep.ReleaseDate < earliest {
			earliest = ep.ReleaseDate
		}
	}
	return earliest
}

// PopulateSeason fills a metadata-only season's episodes from the same
// series-info payload (the lazy half of the two-phase resolve). Safe to
// call twice: a season that already has episodes is returned untouched.
// A payload with no episodes for the season leaves it empty; callers
// render that as "no episodes available".
func PopulateSeason(acct Account, payload []byte, season *catalog.Season) (Stats, error) {
	var stats Stats
	if len(season.Episodes) > 0 {
		return stats, nil
	}
	var info seriesInfoPayload
	if err := json.Unmarshal(payload, &info); err != nil {
		return stats, fmt.Errorf("xtream: series info: %w", err)
	}
	raw, ok := info.Episodes[strconv.Itoa(season.Number)]
	if !ok {
		return stats, nil
	}
	rawEpisodes := decodeSeasonEpisodes(raw)
	if rawEpisodes == nil {
		return stats, nil
	}
	episodes := normalizeSeasonEpisodes(acct, rawEpisodes, season.Number, &stats)
	season.Episodes = episodes
	if len(episodes) > 0 {
		season.EpisodeCount = len(episodes)
	}
	return stats, nil
}

// normalizeEpisode converts one raw episode object in a season context.
// Field precedence, in order tried:
//
//	number:      episode_num, episode, episodeNumber; default 1
//	title:       title, name; default "Episode {number}"
//	plot:        info.plot, plot, description
//	duration:    info.duration, duration
//	rating:      info.rating, rating
//	releaseDate: added (epoch sec), info.releasedate, info.release_date
func normalizeEpisode(acct Account, raw json.RawMessage, seasonNumber int) (catalog.Episode, error) {
	var re rawEpisode
	if err := json.Unmarshal(raw, &re); err != nil {
		return catalog.Episode{}, fmt.Errorf("xtream: episode: %w", err)
	}
	id := firstNonEmpty(flexString(re.ID), flexString(re.StreamID))
	if id == "" {
		return catalog.Episode{}, fmt.Errorf("xtream: episode without id")
	}

	number := 1
	for _, raw := range []json.RawMessage{re.EpisodeNum, re.Episode, re.EpisodeNumber} {
		if n, ok := flexInt(raw); ok && n >= 1 {
			number = n
			break
		}
	}

	title := firstNonEmpty(re.Title, re.Name)
	if title == "" {
		title = "Episode " + strconv.Itoa(number)
	}
	title = stripEpisodePrefix(title, seasonNumber, number)

	ext := re.ContainerExtension
	if ext == "" {
		ext = "mp4"
	}
	durationSecs, _ := flexInt(re.Info.DurationSecs)

	return catalog.Episode{
		ID:                 id,
		Number:             number,
		Title:              title,
		Plot:               firstNonEmpty(re.Info.Plot, re.Plot, re.Description),
		DurationText:       firstNonEmpty(flexString(re.Info.Duration), flexString(re.Duration)),
		DurationSeconds:    durationSecs,
		Rating:             firstNonEmpty(flexString(re.Info.Rating), flexString(re.Rating)),
		ReleaseDate:        episodeReleaseDate(re),
		QualityInfo:        qualityInfo(re.Info.Video),
		ContainerExtension: ext,
		SeasonNumber:       seasonNumber,
		URL:                acct.EpisodeStreamURL(id, ext),
	}, nil
}

// stripEpisodePrefix removes a redundant "Show - SxxEyy - " prefix some
// providers duplicate into every episode title.
func stripEpisodePrefix(title string, season, episode int) string {
	marker := fmt.Sprintf("S%02dE%02d", season, episode)
	if !strings.Contains(title, " - ") || !strings.Contains(title, marker) {
		return title
	}
	parts := strings.Split(title, " - ")
	if len(parts) < 3 {
		return title
	}
	return parts[len(parts)-1]
}

// episodeReleaseDate formats the release date as YYYY-MM-DD. The "added"
// epoch wins over the info date strings; an unparseable value reads as
// absent rather than failing the episode.
func episodeReleaseDate(re rawEpisode) string {
	if s := flexString(re.Added); s != "" {
		if t, err := timefmt.ParseEpochString(s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	for _, s := range []string{re.Info.ReleaseDate, re.Info.ReleaseDate2} {
		if s == "" {
			continue
		}
		if t, err := timefmt.ParseCalendarDate(s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return ""
}

// qualityInfo renders "{width}x{height}" plus " • {mbps} Mbps" when a
// bit rate is present (bit_rate / 1e6, rounded to two decimals).
func qualityInfo(v *rawVideoInfo) string {
	if v == nil {
		return ""
	}
	w, wok := flexInt(v.Width)
	h, hok := flexInt(v.Height)
	if !wok || !hok || w <= 0 || h <= 0 {
		return ""
	}
	out := fmt.Sprintf("%dx%d", w, h)
	if b, ok := flexInt(v.BitRate); ok && b > 0 {
		mbps := math.Round(float64(b)/1e6*100) / 100
		out += " • " + strconv.FormatFloat(mbps, 'f', -1, 64) + " Mbps"
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
