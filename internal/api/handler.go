package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/pkgdex/pkgdex/internal/domain"
	"github.com/pkgdex/pkgdex/internal/search"
)

// Handler is the thin HTTP boundary over the search engine. Parameter
// parsing is forgiving: an unparsable page number defaults to 0.
type Handler struct {
	log      zerolog.Logger
	searcher search.Service
}

func NewHandler(log zerolog.Logger, searcher search.Service) *Handler {
	return &Handler{
		log:      log.With().Str("module", "api").Logger(),
		searcher: searcher,
	}
}

// Routes builds the router for the API surface.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(h.requestLogger)

	r.Get("/api/search", h.search)
	r.Get("/api/healthz", h.healthz)

	return r
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	page := 0
	if p := r.URL.Query().Get("p"); p != "" {
		if parsed, err := strconv.Atoi(p); err == nil {
			page = parsed
		}
	}

	result, err := h.searcher.Search(r.Context(), query, page)
	if err != nil {
		h.log.Error().Err(err).Str("query", query).Msg("Error searching")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	// No candidates at all: an explicit empty list, not an empty page.
	if result == nil {
		h.writeJSON(w, []domain.PackageMetadata{})
		return
	}

	h.writeJSON(w, result)
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error().Err(err).Msg("failed to encode response")
	}
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		h.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}
