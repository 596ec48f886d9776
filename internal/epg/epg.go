// Package epg parses electronic program guide data: XMLTV documents and
// the Xtream epg_listings JSON shape. Both produce a catalog.Guide keyed
// by EPG channel id, programs in arrival order per channel.
package epg

import (
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"

	"golang.org/x/net/html/charset"

	"github.com/iptvdeck/iptv-deck/internal/catalog"
	"github.com/iptvdeck/iptv-deck/internal/timefmt"
)

// Stats counts what a parse kept and what it dropped. Skipped covers
// programmes missing a required channel/start/stop attribute as well as
// ones with malformed timestamps.
type Stats struct {
	Programs int
	Skipped  int
}

type xmlProgramme struct {
	Channel string   `xml:"channel,attr"`
	Start   string   `xml:"start,attr"`
	Stop    string   `xml:"stop,attr"`
	Titles  []string `xml:"title"`
	Descs   []string `xml:"desc"`
}

// ParseXMLTV reads an XMLTV document and groups its programmes by channel
// id. Programmes missing a required attribute or carrying a malformed
// timestamp are skipped and counted; a skipped entry never aborts its
// siblings. Feeds in non-UTF-8 encodings are handled via the declared
// charset.
func ParseXMLTV(r io.Reader) (catalog.Guide, Stats, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charset.NewReaderLabel

	guide := catalog.Guide{}
	var stats Stats
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, stats, fmt.Errorf("epg: xml token: %w", err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "programme" {
			continue
		}
		var raw xmlProgramme
		if err := dec.DecodeElement(&raw, &se); err != nil {
			stats.Skipped++
			continue
		}
		if raw.Channel == "" || raw.Start == "" || raw.Stop == "" {
			stats.Skipped++
			continue
		}
		start, err := timefmt.ParseXMLTVTime(raw.Start)
		if err != nil {
			stats.Skipped++
			continue
		}
		stop, err := timefmt.ParseXMLTVTime(raw.Stop)
		if err != nil {
			stats.Skipped++
			continue
		}
		p := catalog.Program{Start: start, Stop: stop}
		if len(raw.Titles) > 0 {
			p.Title = raw.Titles[0]
		}
		if len(raw.Descs) > 0 {
			p.Description = raw.Descs[0]
		}
		guide[raw.Channel] = append(guide[raw.Channel], p)
		stats.Programs++
	}
	return guide, stats, nil
}

// xtreamListing is one entry under epg_listings. Timestamps arrive as
// epoch-second strings; some panels send bare numbers, so the fields are
// RawMessage and decoded flexibly.
type xtreamListing struct {
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	StartTimestamp json.RawMessage `json:"start_timestamp"`
	StopTimestamp  json.RawMessage `json:"stop_timestamp"`
}

// ParseXtreamEPG parses the alternate Xtream EPG payload:
// {"epg_listings": {"<channel id>": [ {title, description,
// start_timestamp, stop_timestamp}, ... ]}}. Listings with malformed
// timestamps are skipped and counted.
func ParseXtreamEPG(data []byte) (catalog.Guide, Stats, error) {
	var payload struct {
		EPGListings map[string][]xtreamListing `json:"epg_listings"`
	}
	var stats Stats
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, stats, fmt.Errorf("epg: xtream payload: %w", err)
	}
	guide := catalog.Guide{}
	for channelID, listings := range payload.EPGListings {
		for _, l := range listings {
			start, err := epochValue(l.StartTimestamp)
			if err != nil {
				stats.Skipped++
				continue
			}
			stop, err := epochValue(l.StopTimestamp)
			if err != nil {
				stats.Skipped++
				continue
			}
			guide[channelID] = append(guide[channelID], catalog.Program{
				Title:       l.Title,
				Description: l.Description,
				Start:       timefmt.ParseEpochSeconds(start),
				Stop:        timefmt.ParseEpochSeconds(stop),
			})
			stats.Programs++
		}
	}
	return guide, stats, nil
}

func epochValue(raw json.RawMessage) (int64, error) {
	if len(raw) == 0 {
		return 0, timefmt.ErrMalformedTimestamp
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		t, err := timefmt.ParseEpochString(s)
		if err != nil {
			return 0, err
		}
		return t.Unix(), nil
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	return 0, timefmt.ErrMalformedTimestamp
}
