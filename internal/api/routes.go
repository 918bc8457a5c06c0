package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yegors/co-wx/internal/config"
	"github.com/yegors/co-wx/pkg/logger"
)

// Router holds the HTTP handlers mounted by Routes
type Router struct {
	handler   *Handler
	websocket http.HandlerFunc
	static    http.Handler
	metrics   http.Handler
	config    *config.Config
	logger    *logger.Logger
}

// NewRouter creates a new API router. wsHandler may be nil to disable /ws.
func NewRouter(weatherService WeatherProvider, wsHandler http.HandlerFunc, cfg *config.Config, log *logger.Logger) *Router {
	r := &Router{
		handler:   NewHandler(weatherService, cfg, log),
		websocket: wsHandler,
		metrics:   promhttp.Handler(),
		config:    cfg,
		logger:    log.Named("api-router"),
	}
	if cfg.Server.StaticDir != "" {
		r.static = NewStaticFileHandler(cfg.Server.StaticDir, log)
	}
	return r
}

// Routes returns the root handler
func (rt *Router) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(rt.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(rt.cors)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", rt.handler.GetHealth)
		r.Post("/metar/decode", rt.handler.DecodeMETAR)

		r.Route("/wx", func(r chi.Router) {
			r.Get("/", rt.handler.GetAllObservations)
			r.Get("/{station}", rt.handler.GetObservation)
			r.Get("/{station}/history", rt.handler.GetObservationHistory)
			r.Post("/{station}/refresh", rt.handler.RefreshStation)
		})
	})

	if rt.websocket != nil {
		r.Get("/ws", rt.websocket)
	}
	r.Handle("/metrics", rt.metrics)

	if rt.static != nil {
		r.Handle("/*", rt.static)
	}

	return r
}

// requestLogger logs each request once it completes
func (rt *Router) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		rt.logger.Debug("HTTP request",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", ww.Status()),
			logger.Int("bytes", ww.BytesWritten()),
			logger.Duration("duration", time.Since(start)),
			logger.String("request_id", middleware.GetReqID(r.Context())))
	})
}

// cors applies the configured allowed origins
func (rt *Router) cors(next http.Handler) http.Handler {
	allowed := make(map[string]bool, len(rt.config.Server.CORSAllowedOrigins))
	wildcard := false
	for _, origin := range rt.config.Server.CORSAllowedOrigins {
		if origin == "*" {
			wildcard = true
		}
		allowed[strings.TrimRight(origin, "/")] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (wildcard || allowed[origin]) {
			if wildcard {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			} else {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}

		if r.Method == http.MethodOptions && origin != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
