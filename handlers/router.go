package handlers

import (
	"bufio"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"traffic-sensor-stream/metrics"
)

const unmatchedEndpoint = "unmatched"

type RouterConfig struct {
	// BasePath prefixes the sensor routes, e.g. "/api". Empty by default.
	BasePath       string
	AllowedOrigins []string
	Sensors        *SensorHandler
	// Live serves the WebSocket endpoint; nil disables it.
	Live http.Handler
	// AccessLog receives Apache combined log lines; nil disables it.
	AccessLog io.Writer
	Started   time.Time
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Started.IsZero() {
		cfg.Started = time.Now()
	}
	sensors := cfg.BasePath + "/sensors"

	r := mux.NewRouter()
	r.Use(instrument)

	api := func(path string, fn http.HandlerFunc) *mux.Route {
		return r.Handle(sensors+path, handlers.CompressHandler(fn))
	}
	api("", cfg.Sensors.Ingest).Methods(http.MethodPost)
	api("/latest", cfg.Sensors.Latest).Methods(http.MethodGet)
	api("/readings", cfg.Sensors.Readings).Methods(http.MethodGet)
	api("/analytics", cfg.Sensors.Analytics).Methods(http.MethodGet)
	api("/chart-data", cfg.Sensors.ChartData).Methods(http.MethodGet)
	api("/range", cfg.Sensors.Range).Methods(http.MethodGet)
	api("/export", cfg.Sensors.Export).Methods(http.MethodGet)
	api("/report", cfg.Sensors.Report).Methods(http.MethodGet)

	if cfg.Live != nil {
		r.Handle("/ws", cfg.Live).Methods(http.MethodGet)
	}
	r.HandleFunc("/health", healthCheck(cfg.Started)).Methods(http.MethodGet)
	r.HandleFunc("/", info(sensors)).Methods(http.MethodGet)
	r.Path("/metrics").Handler(promhttp.Handler())

	unmatched := instrumentAs(unmatchedEndpoint, http.HandlerFunc(notFound))
	r.NotFoundHandler = unmatched
	r.MethodNotAllowedHandler = unmatched

	var h http.Handler = r
	corsOpts := []handlers.CORSOption{
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	}
	if len(cfg.AllowedOrigins) > 0 {
		corsOpts = append(corsOpts, handlers.AllowedOrigins(cfg.AllowedOrigins), handlers.AllowCredentials())
	}
	h = handlers.CORS(corsOpts...)(h)
	if cfg.AccessLog != nil {
		h = handlers.CombinedLoggingHandler(cfg.AccessLog, h)
	}
	return h
}

// instrument labels requests with the matched route template so path
// parameters do not explode metric cardinality.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		endpoint := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tpl
			}
		}
		instrumentAs(endpoint, next).ServeHTTP(w, r)
	})
}

func instrumentAs(endpoint string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		defer func() {
			metrics.RequestDurationSeconds.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(rec.status)).Inc()
		}()

		next.ServeHTTP(rec, r)
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

// Hijack lets the WebSocket upgrader take over the connection.
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	s.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func (s *statusRecorder) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

type notFoundBody struct {
	Error     string `json:"error"`
	Path      string `json:"path"`
	Method    string `json:"method"`
	Timestamp string `json:"timestamp"`
}

func notFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, notFoundBody{
		Error:     "route not found",
		Path:      r.URL.RequestURI(),
		Method:    r.Method,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

type healthBody struct {
	Status    string  `json:"status"`
	Timestamp string  `json:"timestamp"`
	Uptime    float64 `json:"uptime"`
}

func healthCheck(started time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, healthBody{
			Status:    "OK",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Uptime:    time.Since(started).Seconds(),
		})
	}
}

func info(sensors string) http.HandlerFunc {
	body := map[string]any{
		"message": "Traffic sensor backend - API v1.0",
		"health":  "/health",
		"endpoints": map[string]string{
			"sensors":   sensors,
			"latest":    sensors + "/latest",
			"readings":  sensors + "/readings",
			"analytics": sensors + "/analytics",
			"chartData": sensors + "/chart-data",
			"range":     sensors + "/range",
			"export":    sensors + "/export",
			"report":    sensors + "/report",
			"live":      "/ws",
			"metrics":   "/metrics",
		},
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, body)
	}
}
