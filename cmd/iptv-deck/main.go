// Command iptv-deck ingests IPTV provider data and serves the
// normalized catalog.
//
//	index  Fetch the provider lineup (Xtream panel or M3U), normalize, save catalog
//	epg    Fetch the XMLTV guide, parse, merge into the catalog
//	serve  Serve the catalog over the HTTP API
//	run    index + epg + serve in one process, with optional refresh interval
package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iptvdeck/iptv-deck/internal/catalog"
	"github.com/iptvdeck/iptv-deck/internal/config"
	"github.com/iptvdeck/iptv-deck/internal/epg"
	"github.com/iptvdeck/iptv-deck/internal/metrics"
	"github.com/iptvdeck/iptv-deck/internal/playlist"
	"github.com/iptvdeck/iptv-deck/internal/server"
	"github.com/iptvdeck/iptv-deck/internal/store"
	"github.com/iptvdeck/iptv-deck/internal/xtream"
)

var log = logrus.New()

func main() {
	_ = config.LoadEnvFile(".env")
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	indexCmd := flag.NewFlagSet("index", flag.ExitOnError)
	indexM3U := indexCmd.String("m3u", "", "M3U URL (default: IPTV_DECK_M3U_URL; overrides the Xtream panel)")
	indexCatalog := indexCmd.String("catalog", "", "Catalog JSON path (default: IPTV_DECK_CATALOG)")

	epgCmd := flag.NewFlagSet("epg", flag.ExitOnError)
	epgURL := epgCmd.String("url", "", "XMLTV URL (default: IPTV_DECK_EPG_URL)")
	epgCatalog := epgCmd.String("catalog", "", "Catalog JSON path (default: IPTV_DECK_CATALOG)")

	serveCmd := flag.NewFlagSet("serve", flag.ExitOnError)
	serveCatalog := serveCmd.String("catalog", "", "Catalog JSON path (default: IPTV_DECK_CATALOG)")
	serveAddr := serveCmd.String("addr", "", "Listen address (default: IPTV_DECK_LISTEN)")

	runCmd := flag.NewFlagSet("run", flag.ExitOnError)
	runAddr := runCmd.String("addr", "", "Listen address (default: IPTV_DECK_LISTEN)")
	runRefresh := runCmd.Duration("refresh", 0, "Refresh interval (e.g. 6h); 0 = only at startup")

	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <index|epg|serve|run> [flags]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  index  Fetch provider lineup, save catalog\n")
		fmt.Fprintf(os.Stderr, "  epg    Fetch XMLTV guide, merge into catalog\n")
		fmt.Fprintf(os.Stderr, "  serve  Serve the catalog HTTP API\n")
		fmt.Fprintf(os.Stderr, "  run    index + epg + serve in one process\n")
		os.Exit(1)
	}

	cfg := config.Load()

	switch os.Args[1] {
	case "index":
		_ = indexCmd.Parse(os.Args[2:])
		path := orDefault(*indexCatalog, cfg.CatalogPath)
		m3u := orDefault(*indexM3U, cfg.M3UURL)
		cat := catalog.New()
		if err := runIndex(cfg, cat, m3u); err != nil {
			log.WithError(err).Fatal("index failed")
		}
		saveCatalog(cfg, cat, path)

	case "epg":
		_ = epgCmd.Parse(os.Args[2:])
		path := orDefault(*epgCatalog, cfg.CatalogPath)
		u := orDefault(*epgURL, cfg.EPGURL)
		if u == "" {
			log.Fatal("no EPG URL configured (set IPTV_DECK_EPG_URL or pass -url)")
		}
		cat := catalog.New()
		if err := cat.Load(path); err != nil {
			log.WithError(err).Warn("starting from empty catalog")
		}
		if err := runEPG(cfg, cat, u); err != nil {
			log.WithError(err).Fatal("epg failed")
		}
		saveCatalog(cfg, cat, path)

	case "serve":
		_ = serveCmd.Parse(os.Args[2:])
		path := orDefault(*serveCatalog, cfg.CatalogPath)
		addr := orDefault(*serveAddr, cfg.ListenAddr)
		cat := catalog.New()
		if err := loadCatalog(cfg, cat, path); err != nil {
			log.WithError(err).Warn("serving with empty catalog")
		}
		serve(cfg, cat, addr)

	case "run":
		_ = runCmd.Parse(os.Args[2:])
		addr := orDefault(*runAddr, cfg.ListenAddr)
		cat := catalog.New()
		refresh := func() {
			if err := runIndex(cfg, cat, cfg.M3UURL); err != nil {
				log.WithError(err).Error("index failed")
			}
			if cfg.EPGURL != "" {
				if err := runEPG(cfg, cat, cfg.EPGURL); err != nil {
					log.WithError(err).Error("epg failed")
				}
			}
			saveCatalog(cfg, cat, cfg.CatalogPath)
		}
		refresh()
		if *runRefresh > 0 {
			go func() {
				for range time.Tick(*runRefresh) {
					refresh()
				}
			}()
		}
		serve(cfg, cat, addr)

	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n", os.Args[1])
		os.Exit(1)
	}
}

func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

// runIndex fetches the lineup and replaces the catalog's channels,
// movies, and series. An explicit M3U source wins over the panel; a
// panel with no M3U override walks every category of every kind.
func runIndex(cfg *config.Config, cat *catalog.Catalog, m3uURL string) error {
	switch {
	case m3uURL != "":
		channels, err := fetchPlaylist(cfg, m3uURL)
		if err != nil {
			return err
		}
		metrics.EntriesParsed.WithLabelValues("playlist").Add(float64(len(channels)))
		cat.ReplaceChannels(channels)
		log.WithField("channels", len(channels)).Info("indexed playlist")
	case cfg.HasXtream():
		client := xtream.NewClient(xtream.Account{
			ServerURL: cfg.ProviderURL,
			Username:  cfg.ProviderUser,
			Password:  cfg.ProviderPass,
		}, log)
		client.HTTP.Timeout = cfg.FetchTimeout
		if err := client.Authenticate(); err != nil {
			return err
		}
		res := client.IndexCategories()
		metrics.EntriesParsed.WithLabelValues("live").Add(float64(len(res.Channels)))
		metrics.EntriesParsed.WithLabelValues("vod").Add(float64(len(res.Movies)))
		metrics.EntriesParsed.WithLabelValues("series").Add(float64(len(res.Series)))
		cat.ReplaceChannels(res.Channels)
		cat.ReplaceMovies(res.Movies)
		cat.ReplaceSeries(res.Series)
		log.WithFields(logrus.Fields{
			"channels": len(res.Channels),
			"movies":   len(res.Movies),
			"series":   len(res.Series),
		}).Info("indexed panel")
	default:
		return fmt.Errorf("no provider configured (set IPTV_DECK_PROVIDER_URL or IPTV_DECK_M3U_URL)")
	}
	return nil
}

func fetchPlaylist(cfg *config.Config, m3uURL string) ([]catalog.Channel, error) {
	client := &http.Client{Timeout: cfg.FetchTimeout}
	resp, err := client.Get(m3uURL)
	if err != nil {
		return nil, fmt.Errorf("fetch playlist: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch playlist: status %d", resp.StatusCode)
	}
	return playlist.Parse(resp.Body, playlist.Options{Strict: cfg.StrictPlaylist})
}

// runEPG fetches the XMLTV feed and replaces the guide.
func runEPG(cfg *config.Config, cat *catalog.Catalog, epgURL string) error {
	client := &http.Client{Timeout: cfg.FetchTimeout}
	resp, err := client.Get(epgURL)
	if err != nil {
		return fmt.Errorf("fetch epg: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("fetch epg: status %d", resp.StatusCode)
	}
	guide, stats, err := epg.ParseXMLTV(resp.Body)
	if err != nil {
		return err
	}
	metrics.EntriesParsed.WithLabelValues("epg").Add(float64(stats.Programs))
	metrics.EntriesSkipped.WithLabelValues("epg").Add(float64(stats.Skipped))
	cat.ReplaceGuide(guide)
	log.WithFields(logrus.Fields{
		"channels": len(guide),
		"programs": stats.Programs,
		"skipped":  stats.Skipped,
	}).Info("parsed guide")
	return nil
}

// saveCatalog writes the JSON snapshot and, when a DB path is
// configured, mirrors the catalog into SQLite.
func saveCatalog(cfg *config.Config, cat *catalog.Catalog, path string) {
	if err := cat.Save(path); err != nil {
		log.WithError(err).Fatal("save catalog failed")
	}
	log.WithField("path", path).Info("saved catalog")
	if cfg.DBPath == "" {
		return
	}
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.WithError(err).Error("open store failed")
		return
	}
	defer st.Close()
	for name, fn := range map[string]func() error{
		"channels": func() error { return st.ReplaceChannels(cat.SnapshotChannels()) },
		"movies":   func() error { return st.ReplaceMovies(cat.SnapshotMovies()) },
		"series":   func() error { return st.ReplaceSeries(cat.SnapshotSeries()) },
		"programs": func() error { return st.ReplaceGuide(cat.SnapshotGuide()) },
	} {
		if err := fn(); err != nil {
			log.WithError(err).WithField("table", name).Error("store write failed")
		}
	}
}

// loadCatalog prefers the SQLite store when configured, falling back to
// the JSON snapshot.
func loadCatalog(cfg *config.Config, cat *catalog.Catalog, path string) error {
	if cfg.DBPath != "" {
		err := loadFromStore(cfg.DBPath, cat)
		if err == nil {
			return nil
		}
		log.WithError(err).Warn("store unavailable; falling back to JSON snapshot")
	}
	return cat.Load(path)
}

func loadFromStore(dbPath string, cat *catalog.Catalog) error {
	st, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()
	channels, err := st.Channels()
	if err != nil {
		return err
	}
	movies, err := st.Movies()
	if err != nil {
		return err
	}
	series, err := st.Series()
	if err != nil {
		return err
	}
	guide, err := st.Guide()
	if err != nil {
		return err
	}
	cat.ReplaceChannels(channels)
	cat.ReplaceMovies(movies)
	cat.ReplaceSeries(series)
	cat.ReplaceGuide(guide)
	return nil
}

func serve(cfg *config.Config, cat *catalog.Catalog, addr string) {
	srv := &server.Server{Catalog: cat, Log: log}
	if cfg.HasXtream() {
		srv.Xtream = xtream.NewClient(xtream.Account{
			ServerURL: cfg.ProviderURL,
			Username:  cfg.ProviderUser,
			Password:  cfg.ProviderPass,
		}, log)
	}
	log.WithField("addr", addr).Info("serving catalog API")
	if err := http.ListenAndServe(addr, srv.Router()); err != nil {
		log.WithError(err).Fatal("server exited")
	}
}
