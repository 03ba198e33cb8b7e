package app

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/seanblong/orgsearch/internal/search"
	"github.com/seanblong/orgsearch/internal/session"
	"github.com/seanblong/orgsearch/pkg/models"
)

type analyzeResponse struct {
	RunID        string  `json:"run_id"`
	Repositories int     `json:"repositories"`
	Files        int     `json:"files"`
	Lines        int     `json:"lines"`
	Documents    int     `json:"documents"`
	Seconds      float64 `json:"seconds"`
}

// Handler serves the HTTP API with request and access logging through logger.
func (a *App) Handler(logger zerolog.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := a.Healthy(r.Context()); err != nil {
			writeError(w, r, http.StatusServiceUnavailable, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("GET /status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusOK, a.Session.Status())
	})

	mux.HandleFunc("POST /analyze", func(w http.ResponseWriter, r *http.Request) {
		stats, err := a.Analyze(r.Context())
		if err != nil {
			writeError(w, r, statusFor(err), err)
			return
		}
		st := a.Session.Status()
		writeJSON(w, r, http.StatusOK, analyzeResponse{
			RunID:        st.RunID,
			Repositories: stats.Repositories,
			Files:        stats.Files,
			Lines:        stats.Lines,
			Documents:    stats.Documents,
			Seconds:      stats.Duration.Seconds(),
		})
	})

	mux.HandleFunc("GET /ask", func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		q := r.URL.Query().Get("q")
		res, err := a.Ask(r.Context(), q)
		if err != nil {
			writeError(w, r, statusFor(err), err)
			return
		}
		writeJSON(w, r, http.StatusOK, res)
		hlog.FromRequest(r).Info().Str("path", "/ask").Str("q", q).Int("sources", len(res.Sources)).Dur("dur", time.Since(start)).Msg("served")
	})

	mux.HandleFunc("GET /search", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		k := 0
		if v := r.URL.Query().Get("k"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				k = n
			}
		}
		idx, err := a.Session.Current()
		if err != nil {
			writeError(w, r, statusFor(err), err)
			return
		}
		res, err := a.Search.Query(r.Context(), idx, q, k)
		if err != nil {
			writeError(w, r, statusFor(err), err)
			return
		}
		if res == nil {
			res = []models.SearchResult{}
		}
		for i := range res {
			if math.IsNaN(res[i].Score) || math.IsInf(res[i].Score, 0) {
				res[i].Score = 0
			}
		}
		writeJSON(w, r, http.StatusOK, res)
	})

	return hlog.NewHandler(logger)(
		hlog.AccessHandler(func(r *http.Request, status, size int, dur time.Duration) {
			logger.Info().Str("method", r.Method).Str("path", r.URL.Path).Int("status", status).Int("size", size).Dur("dur", dur).Msg("http")
		})(mux),
	)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, search.ErrEmptyQuery):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNotIndexed), errors.Is(err, session.ErrRunInProgress):
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	writeJSON(w, r, status, map[string]string{"error": err.Error()})
}
