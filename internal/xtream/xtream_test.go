package xtream

import (
	"encoding/json"
	"testing"
)

func TestParseCategories(t *testing.T) {
	raw := `[
		{"category_id": "4", "category_name": "News"},
		{"category_id": 7, "category_name": "Sports"},
		{"category_name": "No ID"}
	]`
	cats, err := ParseCategories([]byte(raw))
	if err != nil {
		t.Fatal(err)
	}
	if len(cats) != 2 {
		t.Fatalf("cats = %+v", cats)
	}
	if cats[0].ID != "4" || cats[0].Name != "News" || cats[1].ID != "7" {
		t.Errorf("cats = %+v", cats)
	}
}

func TestNormalizeLive(t *testing.T) {
	raw := `[
		{"stream_id": 42, "name": "BBC One", "stream_icon": "http://img/bbc.png", "epg_channel_id": "bbc1"},
		{"stream_id": "43", "name": "ITV", "epg_channel_id": 99},
		{"name": "no stream id"}
	]`
	channels, err := NormalizeLive(testAcct, "UK", []byte(raw))
	if err != nil {
		t.Fatal(err)
	}
	if len(channels) != 2 {
		t.Fatalf("channels = %+v", channels)
	}
	ch := channels[0]
	if ch.Name != "BBC One" || ch.URL != "http://panel.example.com/live/u/p/42.m3u8" {
		t.Errorf("channels[0] = %+v", ch)
	}
	if ch.Logo != "http://img/bbc.png" || ch.Category != "UK" || ch.EPGChannelID != "bbc1" {
		t.Errorf("channels[0] = %+v", ch)
	}
	// Numeric epg_channel_id still joins as a string key.
	if channels[1].EPGChannelID != "99" {
		t.Errorf("channels[1] = %+v", channels[1])
	}
}

func TestNormalizeLive_failClosed(t *testing.T) {
	channels, err := NormalizeLive(testAcct, "UK", []byte(`{"not": "an array"}`))
	if err == nil {
		t.Fatal("expected error")
	}
	if len(channels) != 0 {
		t.Errorf("channels = %+v, want empty", channels)
	}
}

func TestNormalizeMovies(t *testing.T) {
	raw := `[
		{"stream_id": 9, "name": "Heat", "container_extension": "mkv", "plot": "Crime epic", "year": 1995, "rating_5based": "4.5"},
		{"stream_id": 10, "name": "Ronin"}
	]`
	movies, err := NormalizeMovies(testAcct, "Action", []byte(raw))
	if err != nil {
		t.Fatal(err)
	}
	if len(movies) != 2 {
		t.Fatalf("movies = %+v", movies)
	}
	m := movies[0]
	if m.URL != "http://panel.example.com/movie/u/p/9.mkv" {
		t.Errorf("url = %q", m.URL)
	}
	if m.Category != "Action" || m.Plot != "Crime epic" || m.Year != "1995" || m.Rating != 4.5 {
		t.Errorf("movie = %+v", m)
	}
	// Missing container extension defaults to mp4.
	if movies[1].URL != "http://panel.example.com/movie/u/p/10.mp4" {
		t.Errorf("url = %q", movies[1].URL)
	}
}

func TestNormalizeSeries(t *testing.T) {
	raw := `[
		{"series_id": 77, "name": "Elementary", "cover": "http://img/e.jpg", "plot": "Holmes in NYC", "year": "2012", "rating_5based": 4.1}
	]`
	series, err := NormalizeSeries("Crime", []byte(raw))
	if err != nil {
		t.Fatal(err)
	}
	if len(series) != 1 {
		t.Fatalf("series = %+v", series)
	}
	s := series[0]
	if s.SeriesID != "77" || s.Name != "Elementary" || s.Logo != "http://img/e.jpg" {
		t.Errorf("series = %+v", s)
	}
	if s.Category != "Crime" || s.Year != "2012" || s.Rating != 4.1 {
		t.Errorf("series = %+v", s)
	}
}

func TestFlexScalars(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{`"abc"`, "abc"},
		{`12`, "12"},
		{`12.5`, "12.5"},
		{`null`, ""},
		{`{"x":1}`, ""},
	}
	for _, tc := range cases {
		if got := flexString(json.RawMessage(tc.raw)); got != tc.want {
			t.Errorf("flexString(%s) = %q, want %q", tc.raw, got, tc.want)
		}
	}
	if got := flexFloat(json.RawMessage(`"3.25"`)); got != 3.25 {
		t.Errorf("flexFloat = %v", got)
	}
	if n, ok := flexInt(json.RawMessage(`"08"`)); !ok || n != 8 {
		t.Errorf("flexInt = %d, %v", n, ok)
	}
	if _, ok := flexInt(json.RawMessage(`"eight"`)); ok {
		t.Error("flexInt should fail on non-numeric string")
	}
}

func TestEpisodeStreamURL_escapesCredentials(t *testing.T) {
	acct := Account{ServerURL: "http://host", Username: "us er", Password: "p/w"}
	got := acct.EpisodeStreamURL("5", "")
	if got != "http://host/series/us%20er/p%2Fw/5.mp4" {
		t.Errorf("url = %q", got)
	}
}
