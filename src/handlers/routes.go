package handlers

import (
	"net/http"
	"strings"
	"time"

	"hbnb/src/logger"
	"hbnb/src/token"
)

const apiPrefix = "/api/v1"

// NewRouter mounts the place API under /api/v1. Mutating routes go through
// auth.Middleware.
func NewRouter(h *Handler, auth *token.Issuer, lggr logger.Logger) http.Handler {
	mux := http.NewServeMux()
	protect := func(fn http.HandlerFunc) http.Handler { return auth.Middleware(fn) }

	mux.HandleFunc("GET "+apiPrefix+"/status", h.HandleStatus)
	mux.HandleFunc("POST "+apiPrefix+"/auth/token", auth.GetToken)

	mux.HandleFunc("GET "+apiPrefix+"/cities/{city_id}/places", h.HandleGetCityPlaces)
	mux.Handle("POST "+apiPrefix+"/cities/{city_id}/places", protect(h.HandleCreatePlace))
	mux.HandleFunc("GET "+apiPrefix+"/places/{place_id}", h.HandleGetPlace)
	mux.Handle("PUT "+apiPrefix+"/places/{place_id}", protect(h.HandleUpdatePlace))
	mux.Handle("DELETE "+apiPrefix+"/places/{place_id}", protect(h.HandleDeletePlace))
	mux.HandleFunc("GET "+apiPrefix+"/places/{place_id}/amenities", h.HandleGetPlaceAmenities)
	mux.HandleFunc("POST "+apiPrefix+"/places_search", h.HandleSearchPlaces)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, msgNotFound)
	})

	return accessLog(lggr.Named("http"), trimTrailingSlash(mux))
}

// trimTrailingSlash lets "/places/x/" reach the "/places/x" route.
func trimTrailingSlash(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p := r.URL.Path; len(p) > 1 && strings.HasSuffix(p, "/") {
			r2 := r.Clone(r.Context())
			r2.URL.Path = strings.TrimRight(p, "/")
			r2.URL.RawPath = ""
			r = r2
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func accessLog(lggr logger.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		lggr.Infow("Request served",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}
