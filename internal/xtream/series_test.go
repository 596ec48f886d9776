package xtream

import (
	"reflect"
	"testing"
	"time"
)

var testAcct = Account{ServerURL: "http://panel.example.com", Username: "u", Password: "p"}

func TestResolveSeasons_metadataShape(t *testing.T) {
	payload := `{
		"seasons": [
			{"season_number": 2, "episode_count": 8, "name": "Book Two", "air_date": "2013-09-13", "cover": "http://img/s2.jpg"},
			{"season_number": 1, "episode_count": 10, "overview": "The beginning"}
		]
	}`
	seasons, stats, err := ResolveSeasons(testAcct, []byte(payload))
	if err != nil {
		t.Fatal(err)
	}
	if len(seasons) != 2 || stats.Seasons != 2 {
		t.Fatalf("seasons = %d, stats = %+v", len(seasons), stats)
	}
	if seasons[0].Number != 1 || seasons[1].Number != 2 {
		t.Errorf("order = [%d, %d], want [1, 2]", seasons[0].Number, seasons[1].Number)
	}
	if seasons[0].EpisodeCount != 10 || seasons[1].EpisodeCount != 8 {
		t.Errorf("counts = [%d, %d]", seasons[0].EpisodeCount, seasons[1].EpisodeCount)
	}
	// Metadata path leaves episodes empty for lazy loading.
	if len(seasons[0].Episodes) != 0 || len(seasons[1].Episodes) != 0 {
		t.Errorf("episodes should be empty: %+v", seasons)
	}
	if seasons[0].Name != "Season 1" {
		t.Errorf("default name = %q", seasons[0].Name)
	}
	if seasons[1].Name != "Book Two" || seasons[1].AirDate != "2013-09-13" || seasons[1].CoverURL != "http://img/s2.jpg" {
		t.Errorf("season 2 = %+v", seasons[1])
	}
}

func TestResolveSeasons_metadataTakesPrecedenceOverEpisodes(t *testing.T) {
	payload := `{
		"seasons": [{"season_number": 1, "episode_count": 5}],
		"episodes": {"1": [{"id": 11, "episode_num": 1}]}
	}`
	seasons, _, err := ResolveSeasons(testAcct, []byte(payload))
	if err != nil {
		t.Fatal(err)
	}
	if len(seasons) != 1 || len(seasons[0].Episodes) != 0 || seasons[0].EpisodeCount != 5 {
		t.Errorf("seasons = %+v", seasons)
	}
}

func TestResolveSeasons_episodesByKeyArray(t *testing.T) {
	payload := `{
		"episodes": {
			"1": [
				{"id": "102", "episode_num": 2, "title": "Second"},
				{"id": "101", "episode_num": 1, "title": "First"}
			]
		}
	}`
	seasons, stats, err := ResolveSeasons(testAcct, []byte(payload))
	if err != nil {
		t.Fatal(err)
	}
	if len(seasons) != 1 {
		t.Fatalf("seasons = %d, want 1", len(seasons))
	}
	s := seasons[0]
	if s.Number != 1 || s.Name != "Season 1" || s.EpisodeCount != 2 {
		t.Errorf("season = %+v", s)
	}
	if len(s.Episodes) != 2 || s.Episodes[0].Number != 1 || s.Episodes[1].Number != 2 {
		t.Errorf("episodes = %+v", s.Episodes)
	}
	if s.Episodes[0].URL != "http://panel.example.com/series/u/p/101.mp4" {
		t.Errorf("url = %q", s.Episodes[0].URL)
	}
	if stats.Episodes != 2 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestResolveSeasons_episodesByKeyObject(t *testing.T) {
	payload := `{
		"episodes": {
			"3": {
				"a": {"id": 301, "episode_num": 1, "title": "Opener"},
				"b": {"id": 302, "episode_num": 2, "title": "Closer"}
			}
		}
	}`
	seasons, _, err := ResolveSeasons(testAcct, []byte(payload))
	if err != nil {
		t.Fatal(err)
	}
	if len(seasons) != 1 || seasons[0].Number != 3 {
		t.Fatalf("seasons = %+v", seasons)
	}
	got := []string{seasons[0].Episodes[0].Title, seasons[0].Episodes[1].Title}
	if !reflect.DeepEqual(got, []string{"Opener", "Closer"}) {
		t.Errorf("titles = %v", got)
	}
}

func TestResolveSeasons_backfillFromFirstEpisodeInfo(t *testing.T) {
	payload := `{
		"episodes": {
			"1": [
				{"id": 1, "episode_num": 1, "info": {"season_name": "Origins", "releasedate": "2019-04-01"}},
				{"id": 2, "episode_num": 2}
			]
		}
	}`
	seasons, _, err := ResolveSeasons(testAcct, []byte(payload))
	if err != nil {
		t.Fatal(err)
	}
	if seasons[0].Name != "Origins" || seasons[0].AirDate != "2019-04-01" {
		t.Errorf("season = %+v", seasons[0])
	}
}

func TestResolveSeasons_emptyPayload(t *testing.T) {
	for _, payload := range []string{`{}`, `{"seasons": [], "episodes": {}}`, `{"info": {"name": "Metadata only"}}`} {
		seasons, _, err := ResolveSeasons(testAcct, []byte(payload))
		if err != nil {
			t.Fatalf("%s: %v", payload, err)
		}
		if seasons == nil || len(seasons) != 0 {
			t.Errorf("%s: seasons = %#v, want empty non-nil", payload, seasons)
		}
	}
}

func TestResolveSeasons_malformedSiblingSkipped(t *testing.T) {
	payload := `{
		"episodes": {
			"1": [
				{"title": "No id at all", "episode_num": 1},
				{"id": 42, "episode_num": 2, "title": "Survivor"}
			],
			"zero": [{"id": 9, "episode_num": 1}]
		}
	}`
	seasons, stats, err := ResolveSeasons(testAcct, []byte(payload))
	if err != nil {
		t.Fatal(err)
	}
	if len(seasons) != 1 || len(seasons[0].Episodes) != 1 {
		t.Fatalf("seasons = %+v", seasons)
	}
	if seasons[0].Episodes[0].Title != "Survivor" {
		t.Errorf("episode = %+v", seasons[0].Episodes[0])
	}
	if stats.Skipped != 2 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestResolveSeasons_duplicateEpisodeNumbersDropped(t *testing.T) {
	payload := `{
		"episodes": {"1": [
			{"id": "10", "episode_num": 2, "title": "Kept"},
			{"id": "11", "episode_num": 2, "title": "Duplicate"}
		]}
	}`
	seasons, stats, err := ResolveSeasons(testAcct, []byte(payload))
	if err != nil {
		t.Fatal(err)
	}
	if len(seasons) != 1 {
		t.Fatalf("seasons = %+v", seasons)
	}
	// Episodes are unique by number; the first arrival wins.
	eps := seasons[0].Episodes
	if len(eps) != 1 || eps[0].ID != "10" || eps[0].Title != "Kept" {
		t.Errorf("episodes = %+v", eps)
	}
	if seasons[0].EpisodeCount != 1 {
		t.Errorf("episode count = %d", seasons[0].EpisodeCount)
	}
	if stats.Episodes != 1 || stats.Skipped != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestResolveSeasons_collidingSeasonKeysCollapsed(t *testing.T) {
	// "01" and "1" both name season 1; only one Season may come out.
	payload := `{
		"episodes": {
			"01": [{"id": "1", "episode_num": 1}],
			"1":  [{"id": "2", "episode_num": 1}]
		}
	}`
	seasons, stats, err := ResolveSeasons(testAcct, []byte(payload))
	if err != nil {
		t.Fatal(err)
	}
	if len(seasons) != 1 || seasons[0].Number != 1 {
		t.Fatalf("seasons = %+v", seasons)
	}
	// Keys resolve in sorted order, so "01" wins deterministically.
	if len(seasons[0].Episodes) != 1 || seasons[0].Episodes[0].ID != "1" {
		t.Errorf("episodes = %+v", seasons[0].Episodes)
	}
	if stats.Skipped != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestPopulateSeason_duplicateEpisodeNumbersDropped(t *testing.T) {
	payload := []byte(`{
		"seasons": [{"season_number": 1, "episode_count": 2}],
		"episodes": {"1": [
			{"id": "10", "episode_num": 1, "title": "Kept"},
			{"id": "11", "episode_num": 1, "title": "Duplicate"}
		]}
	}`)
	seasons, _, err := ResolveSeasons(testAcct, payload)
	if err != nil {
		t.Fatal(err)
	}
	season := &seasons[0]
	stats, err := PopulateSeason(testAcct, payload, season)
	if err != nil {
		t.Fatal(err)
	}
	if len(season.Episodes) != 1 || season.Episodes[0].ID != "10" {
		t.Errorf("episodes = %+v", season.Episodes)
	}
	if season.EpisodeCount != 1 {
		t.Errorf("episode count = %d", season.EpisodeCount)
	}
	if stats.Episodes != 1 || stats.Skipped != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestPopulateSeason_lazyAndIdempotent(t *testing.T) {
	payload := []byte(`{
		"seasons": [{"season_number": 1, "episode_count": 2}],
		"episodes": {"1": [{"id": 11, "episode_num": 2, "title": "B"}, {"id": 10, "episode_num": 1, "title": "A"}]}
	}`)
	seasons, _, err := ResolveSeasons(testAcct, payload)
	if err != nil {
		t.Fatal(err)
	}
	season := &seasons[0]
	if len(season.Episodes) != 0 {
		t.Fatalf("expected metadata-only season; got %+v", season)
	}

	if _, err := PopulateSeason(testAcct, payload, season); err != nil {
		t.Fatal(err)
	}
	if len(season.Episodes) != 2 || season.Episodes[0].Title != "A" || season.Episodes[1].Title != "B" {
		t.Fatalf("episodes = %+v", season.Episodes)
	}
	first := append([]string(nil), season.Episodes[0].ID, season.Episodes[1].ID)

	// Second call must short-circuit: no duplicates, identical output.
	if _, err := PopulateSeason(testAcct, payload, season); err != nil {
		t.Fatal(err)
	}
	if len(season.Episodes) != 2 {
		t.Fatalf("second populate appended: %+v", season.Episodes)
	}
	second := []string{season.Episodes[0].ID, season.Episodes[1].ID}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("ids changed: %v -> %v", first, second)
	}
}

func TestPopulateSeason_missingKeyLeavesEmpty(t *testing.T) {
	payload := []byte(`{"seasons": [{"season_number": 4, "episode_count": 6}], "episodes": {"1": []}}`)
	seasons, _, err := ResolveSeasons(testAcct, payload)
	if err != nil {
		t.Fatal(err)
	}
	season := &seasons[0]
	if _, err := PopulateSeason(testAcct, payload, season); err != nil {
		t.Fatal(err)
	}
	if len(season.Episodes) != 0 {
		t.Errorf("episodes = %+v", season.Episodes)
	}
	// The stale metadata count survives; no realized episodes to correct it.
	if season.EpisodeCount != 6 {
		t.Errorf("episode count = %d", season.EpisodeCount)
	}
}

func TestNormalizeEpisode_titlePrefixStripped(t *testing.T) {
	payload := `{
		"episodes": {"1": [{"id": 7, "episode_num": 2, "title": "Show Name - S01E02 - The Big Reveal"}]}
	}`
	seasons, _, err := ResolveSeasons(testAcct, []byte(payload))
	if err != nil {
		t.Fatal(err)
	}
	if got := seasons[0].Episodes[0].Title; got != "The Big Reveal" {
		t.Errorf("title = %q, want %q", got, "The Big Reveal")
	}
}

func TestNormalizeEpisode_titleWithoutMarkerKept(t *testing.T) {
	payload := `{
		"episodes": {"1": [{"id": 7, "episode_num": 2, "title": "Alpha - Beta - Gamma"}]}
	}`
	seasons, _, err := ResolveSeasons(testAcct, []byte(payload))
	if err != nil {
		t.Fatal(err)
	}
	// No SxxEyy marker: the dashes belong to the title.
	if got := seasons[0].Episodes[0].Title; got != "Alpha - Beta - Gamma" {
		t.Errorf("title = %q", got)
	}
}

func TestNormalizeEpisode_fallbacksAndQuality(t *testing.T) {
	payload := `{
		"episodes": {"2": [{
			"stream_id": "555",
			"episode": "3",
			"name": "Named Not Titled",
			"description": "sibling plot",
			"added": "1340150400",
			"container_extension": "mkv",
			"info": {
				"duration": "00:42:00",
				"duration_secs": 2520,
				"rating": 8.1,
				"video": {"width": 1920, "height": 1080, "bit_rate": 5500000}
			}
		}]}
	}`
	seasons, _, err := ResolveSeasons(testAcct, []byte(payload))
	if err != nil {
		t.Fatal(err)
	}
	ep := seasons[0].Episodes[0]
	if ep.ID != "555" || ep.Number != 3 || ep.SeasonNumber != 2 {
		t.Errorf("episode = %+v", ep)
	}
	if ep.Title != "Named Not Titled" {
		t.Errorf("title = %q", ep.Title)
	}
	if ep.Plot != "sibling plot" {
		t.Errorf("plot = %q", ep.Plot)
	}
	if ep.DurationText != "00:42:00" || ep.DurationSeconds != 2520 {
		t.Errorf("duration = %q / %d", ep.DurationText, ep.DurationSeconds)
	}
	if ep.Rating != "8.1" {
		t.Errorf("rating = %q", ep.Rating)
	}
	if want := time.Unix(1340150400, 0).Format("2006-01-02"); ep.ReleaseDate != want {
		t.Errorf("release date = %q, want %q", ep.ReleaseDate, want)
	}
	if ep.QualityInfo != "1920x1080 • 5.5 Mbps" {
		t.Errorf("quality = %q", ep.QualityInfo)
	}
	if ep.URL != "http://panel.example.com/series/u/p/555.mkv" {
		t.Errorf("url = %q", ep.URL)
	}
}

func TestNormalizeEpisode_defaults(t *testing.T) {
	payload := `{"episodes": {"1": [{"id": 1}]}}`
	seasons, _, err := ResolveSeasons(testAcct, []byte(payload))
	if err != nil {
		t.Fatal(err)
	}
	ep := seasons[0].Episodes[0]
	if ep.Number != 1 || ep.Title != "Episode 1" || ep.ContainerExtension != "mp4" {
		t.Errorf("episode = %+v", ep)
	}
	if ep.QualityInfo != "" || ep.ReleaseDate != "" {
		t.Errorf("episode = %+v", ep)
	}
}

func TestResolveSeasons_airDateFromEarliestEpisode(t *testing.T) {
	payload := `{
		"episodes": {"1": [
			{"id": 2, "episode_num": 2, "info": {"release_date": "2020-05-01"}},
			{"id": 1, "episode_num": 1, "info": {"release_date": "2020-01-01"}}
		]}
	}`
	seasons, _, err := ResolveSeasons(testAcct, []byte(payload))
	if err != nil {
		t.Fatal(err)
	}
	// Earliest episode date wins when the season has no air date of its own.
	if seasons[0].AirDate != "2020-01-01" {
		t.Errorf("air date = %q", seasons[0].AirDate)
	}
}
