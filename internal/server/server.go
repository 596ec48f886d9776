// Package server exposes the normalized catalog over a read-only HTTP
// API for the rendering and player collaborators.
package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/iptvdeck/iptv-deck/internal/catalog"
	"github.com/iptvdeck/iptv-deck/internal/xtream"
)

// Server serves catalog snapshots. Xtream is optional; when nil the
// series-detail endpoints respond 503 (M3U-only deployments have no
// series info source).
type Server struct {
	Catalog *catalog.Catalog
	Xtream  *xtream.Client
	Log     *logrus.Logger
}

// Router builds the chi router for the API.
func (s *Server) Router() http.Handler {
	if s.Log == nil {
		s.Log = logrus.StandardLogger()
	}
	r := chi.NewRouter()
	r.Use(s.requestLog)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("ok\n"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/channels", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, s.Catalog.SnapshotChannels())
		})
		r.Get("/movies", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, s.Catalog.SnapshotMovies())
		})
		r.Get("/series", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, s.Catalog.SnapshotSeries())
		})
		r.Get("/series/{seriesID}/seasons", s.handleSeasons)
		r.Get("/series/{seriesID}/seasons/{number}/episodes", s.handleSeasonEpisodes)
		r.Get("/guide/{channelID}", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, s.Catalog.Programs(chi.URLParam(r, "channelID")))
		})
	})
	return r
}

// handleSeasons resolves the season list for one series on demand.
// An empty list is a valid response ("no seasons available"), not an
// error.
func (s *Server) handleSeasons(w http.ResponseWriter, r *http.Request) {
	if s.Xtream == nil {
		http.Error(w, "no series source configured", http.StatusServiceUnavailable)
		return
	}
	seriesID := chi.URLParam(r, "seriesID")
	payload, err := s.Xtream.SeriesInfo(seriesID)
	if err != nil {
		s.Log.WithFields(logrus.Fields{"series_id": seriesID, "error": err}).Warn("series info fetch failed")
		http.Error(w, "series info unavailable", http.StatusBadGateway)
		return
	}
	seasons, stats, err := xtream.ResolveSeasons(s.Xtream.Account, payload)
	if err != nil {
		s.Log.WithFields(logrus.Fields{"series_id": seriesID, "error": err}).Warn("series info unreadable")
		http.Error(w, "series info unavailable", http.StatusBadGateway)
		return
	}
	if stats.Skipped > 0 {
		s.Log.WithFields(logrus.Fields{"series_id": seriesID, "skipped": stats.Skipped}).
			Warn("series entries skipped")
	}
	writeJSON(w, seasons)
}

// handleSeasonEpisodes materializes one season's episodes, the lazy half
// of the two-phase resolve: metadata-only seasons get their episodes
// filled from the same payload at selection time.
func (s *Server) handleSeasonEpisodes(w http.ResponseWriter, r *http.Request) {
	if s.Xtream == nil {
		http.Error(w, "no series source configured", http.StatusServiceUnavailable)
		return
	}
	seriesID := chi.URLParam(r, "seriesID")
	number, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil || number < 1 {
		http.Error(w, "bad season number", http.StatusBadRequest)
		return
	}
	payload, err := s.Xtream.SeriesInfo(seriesID)
	if err != nil {
		http.Error(w, "series info unavailable", http.StatusBadGateway)
		return
	}
	seasons, _, err := xtream.ResolveSeasons(s.Xtream.Account, payload)
	if err != nil {
		http.Error(w, "series info unavailable", http.StatusBadGateway)
		return
	}
	for i := range seasons {
		if seasons[i].Number != number {
			continue
		}
		if _, err := xtream.PopulateSeason(s.Xtream.Account, payload, &seasons[i]); err != nil {
			http.Error(w, "series info unavailable", http.StatusBadGateway)
			return
		}
		writeJSON(w, seasons[i].Episodes)
		return
	}
	http.Error(w, "season not found", http.StatusNotFound)
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.Log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start),
		}).Debug("request")
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
