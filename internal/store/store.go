// Package store persists catalog snapshots in SQLite so a restart can
// serve the last indexed state without re-fetching the provider. Each
// kind is replaced wholesale inside one transaction, mirroring the
// rebuild-on-every-fetch lifecycle of the in-memory catalog.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/iptvdeck/iptv-deck/internal/catalog"
)

const schema = `
CREATE TABLE IF NOT EXISTS channels (
	pos INTEGER NOT NULL,
	name TEXT NOT NULL,
	url TEXT NOT NULL,
	logo TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT '',
	epg_channel_id TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS movies (
	pos INTEGER NOT NULL,
	name TEXT NOT NULL,
	url TEXT NOT NULL,
	logo TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT '',
	plot TEXT NOT NULL DEFAULT '',
	year TEXT NOT NULL DEFAULT '',
	rating REAL NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS series (
	pos INTEGER NOT NULL,
	series_id TEXT NOT NULL,
	name TEXT NOT NULL,
	logo TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT '',
	plot TEXT NOT NULL DEFAULT '',
	year TEXT NOT NULL DEFAULT '',
	rating REAL NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS programs (
	channel_id TEXT NOT NULL,
	pos INTEGER NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	start_unix INTEGER NOT NULL,
	stop_unix INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_programs_channel ON programs(channel_id, pos);
`

// Store wraps the SQLite database holding catalog snapshots.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the snapshot database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// ReplaceChannels swaps the persisted channel list wholesale.
func (s *Store) ReplaceChannels(channels []catalog.Channel) error {
	return s.replace("channels", func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`INSERT INTO channels (pos, name, url, logo, category, epg_channel_id) VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for i, c := range channels {
			if _, err := stmt.Exec(i, c.Name, c.URL, c.Logo, c.Category, c.EPGChannelID); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReplaceMovies swaps the persisted movie list wholesale.
func (s *Store) ReplaceMovies(movies []catalog.Movie) error {
	return s.replace("movies", func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`INSERT INTO movies (pos, name, url, logo, category, plot, year, rating) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for i, m := range movies {
			if _, err := stmt.Exec(i, m.Name, m.URL, m.Logo, m.Category, m.Plot, m.Year, m.Rating); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReplaceSeries swaps the persisted series list wholesale.
func (s *Store) ReplaceSeries(series []catalog.SeriesSummary) error {
	return s.replace("series", func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`INSERT INTO series (pos, series_id, name, logo, category, plot, year, rating) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for i, sr := range series {
			if _, err := stmt.Exec(i, sr.SeriesID, sr.Name, sr.Logo, sr.Category, sr.Plot, sr.Year, sr.Rating); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReplaceGuide swaps the persisted guide wholesale.
func (s *Store) ReplaceGuide(g catalog.Guide) error {
	return s.replace("programs", func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`INSERT INTO programs (channel_id, pos, title, description, start_unix, stop_unix) VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for channelID, programs := range g {
			for i, p := range programs {
				if _, err := stmt.Exec(channelID, i, p.Title, p.Description, p.Start.Unix(), p.Stop.Unix()); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func (s *Store) replace(table string, insert func(*sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()
	if _, err := tx.Exec("DELETE FROM " + table); err != nil {
		return fmt.Errorf("store: clear %s: %w", table, err)
	}
	if err := insert(tx); err != nil {
		return fmt.Errorf("store: insert %s: %w", table, err)
	}
	return tx.Commit()
}

// Channels loads the persisted channel list in stored order.
func (s *Store) Channels() ([]catalog.Channel, error) {
	rows, err := s.db.Query(`SELECT name, url, logo, category, epg_channel_id FROM channels ORDER BY pos`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []catalog.Channel
	for rows.Next() {
		var c catalog.Channel
		if err := rows.Scan(&c.Name, &c.URL, &c.Logo, &c.Category, &c.EPGChannelID); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Movies loads the persisted movie list in stored order.
func (s *Store) Movies() ([]catalog.Movie, error) {
	rows, err := s.db.Query(`SELECT name, url, logo, category, plot, year, rating FROM movies ORDER BY pos`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []catalog.Movie
	for rows.Next() {
		var m catalog.Movie
		if err := rows.Scan(&m.Name, &m.URL, &m.Logo, &m.Category, &m.Plot, &m.Year, &m.Rating); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Series loads the persisted series list in stored order.
func (s *Store) Series() ([]catalog.SeriesSummary, error) {
	rows, err := s.db.Query(`SELECT series_id, name, logo, category, plot, year, rating FROM series ORDER BY pos`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []catalog.SeriesSummary
	for rows.Next() {
		var sr catalog.SeriesSummary
		if err := rows.Scan(&sr.SeriesID, &sr.Name, &sr.Logo, &sr.Category, &sr.Plot, &sr.Year, &sr.Rating); err != nil {
			return nil, err
		}
		out = append(out, sr)
	}
	return out, rows.Err()
}

// Guide loads the persisted guide, preserving per-channel program order.
func (s *Store) Guide() (catalog.Guide, error) {
	rows, err := s.db.Query(`SELECT channel_id, title, description, start_unix, stop_unix FROM programs ORDER BY channel_id, pos`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	guide := catalog.Guide{}
	for rows.Next() {
		var channelID string
		var p catalog.Program
		var start, stop int64
		if err := rows.Scan(&channelID, &p.Title, &p.Description, &start, &stop); err != nil {
			return nil, err
		}
		p.Start = time.Unix(start, 0)
		p.Stop = time.Unix(stop, 0)
		guide[channelID] = append(guide[channelID], p)
	}
	return guide, rows.Err()
}
