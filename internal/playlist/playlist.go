// Package playlist parses M3U/M3U8 playlist text into channel records.
package playlist

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/iptvdeck/iptv-deck/internal/catalog"
)

const maxLineSize = 1 << 20 // 1 MiB per line

var (
	// ErrDanglingEntry is returned in strict mode when the input ends with
	// an #EXTINF line that has no URL line.
	ErrDanglingEntry = errors.New("playlist: #EXTINF without URL at end of input")
	// ErrOverwrittenEntry is returned in strict mode when a new #EXTINF
	// appears before the previous one received its URL.
	ErrOverwrittenEntry = errors.New("playlist: #EXTINF without URL for previous entry")
)

// Options controls parse behavior. The zero value is the tolerant mode:
// an unflushed pending entry is silently replaced by the next #EXTINF and
// a dangling tail entry is dropped. Strict turns both into errors.
type Options struct {
	Strict bool
}

var (
	nameRe  = regexp.MustCompile(`,([^,]*)$`)
	logoRe  = regexp.MustCompile(`tvg-logo="([^"]+)"`)
	groupRe = regexp.MustCompile(`group-title="([^"]+)"`)
	tvgIDRe = regexp.MustCompile(`tvg-id="([^"]+)"`)
)

// Parse scans r line by line and returns the channels in input order.
// Each #EXTINF line opens a pending channel; the next non-comment,
// non-blank line is its URL and finalizes it. Attributes are optional and
// independent; malformed attribute syntax reads as "attribute absent".
func Parse(r io.Reader, opts Options) ([]catalog.Channel, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(nil, maxLineSize)

	channels := []catalog.Channel{}
	var pending *catalog.Channel
	lineNum := 0
	for sc.Scan() {
		lineNum++
		line := strings.TrimSpace(sc.Text())
		switch {
		case strings.HasPrefix(line, "#EXTINF:"):
			if pending != nil && opts.Strict {
				return nil, fmt.Errorf("%w (line %d)", ErrOverwrittenEntry, lineNum)
			}
			pending = parseExtinf(line)
		case line != "" && !strings.HasPrefix(line, "#") && pending != nil:
			pending.URL = line
			channels = append(channels, *pending)
			pending = nil
		}
		// Blank lines, unrecognized comments, and bare URLs with no
		// pending entry are ignored.
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("playlist: scan: %w", err)
	}
	if pending != nil && opts.Strict {
		return nil, ErrDanglingEntry
	}
	return channels, nil
}

// ParseBytes parses a playlist held in memory.
func ParseBytes(data []byte, opts Options) ([]catalog.Channel, error) {
	return Parse(bytes.NewReader(data), opts)
}

func parseExtinf(line string) *catalog.Channel {
	ch := &catalog.Channel{}
	if m := nameRe.FindStringSubmatch(line); m != nil {
		ch.Name = strings.TrimSpace(m[1])
	}
	if m := logoRe.FindStringSubmatch(line); m != nil {
		ch.Logo = m[1]
	}
	if m := groupRe.FindStringSubmatch(line); m != nil {
		ch.Category = m[1]
	}
	if m := tvgIDRe.FindStringSubmatch(line); m != nil {
		ch.EPGChannelID = m[1]
	}
	return ch
}
