package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/relvacode/iso8601"

	"traffic-sensor-stream/models"
)

const (
	maxBodyBytes = 1 << 20

	defaultAnalyticsHours = 24
	defaultChartHours     = 1
	defaultReportHours    = 24
)

// Sensors is the service surface the HTTP layer depends on.
type Sensors interface {
	Ingest(ctx context.Context, raw map[string]any) (models.StoredReading, error)
	Latest(ctx context.Context) (models.StoredReading, error)
	Readings(ctx context.Context, limit int) ([]models.StoredReading, error)
	Range(ctx context.Context, from, to time.Time) ([]models.StoredReading, error)
	Analytics(ctx context.Context, hours int, t models.Thresholds) (models.WindowStats, error)
	ChartData(ctx context.Context, hours int) ([]models.ChartPoint, error)
	Thresholds() models.Thresholds
}

type SensorHandler struct {
	sensors Sensors
	log     *slog.Logger
}

func NewSensorHandler(sensors Sensors, log *slog.Logger) *SensorHandler {
	if log == nil {
		log = slog.Default()
	}
	return &SensorHandler{sensors: sensors, log: log.With(slog.String("component", "http"))}
}

// Ingest handles POST /sensors.
func (h *SensorHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil || raw == nil {
		badRequest(w, "invalid JSON body")
		return
	}

	stored, err := h.sensors.Ingest(r.Context(), raw)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{Success: true, Data: stored, Message: "reading stored"})
}

func (h *SensorHandler) Latest(w http.ResponseWriter, r *http.Request) {
	reading, err := h.sensors.Latest(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(reading))
}

func (h *SensorHandler) Readings(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", 0)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	readings, err := h.sensors.Readings(r.Context(), limit)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, okList(readings, len(readings)))
}

// Analytics handles GET /sensors/analytics?hours=&min=&max=.
func (h *SensorHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	hours, err := intParam(r, "hours", defaultAnalyticsHours)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	t := h.sensors.Thresholds()
	if t.Min, err = floatParam(r, "min", t.Min); err != nil {
		badRequest(w, err.Error())
		return
	}
	if t.Max, err = floatParam(r, "max", t.Max); err != nil {
		badRequest(w, err.Error())
		return
	}

	stats, err := h.sensors.Analytics(r.Context(), hours, t)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(stats))
}

func (h *SensorHandler) ChartData(w http.ResponseWriter, r *http.Request) {
	hours, err := intParam(r, "hours", defaultChartHours)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	points, err := h.sensors.ChartData(r.Context(), hours)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, okList(points, len(points)))
}

type rangeBounds struct {
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
}

// Range handles GET /sensors/range?startDate=&endDate=.
func (h *SensorHandler) Range(w http.ResponseWriter, r *http.Request) {
	bounds, valid := parseBounds(w, r)
	if !valid {
		return
	}
	readings, err := h.sensors.Range(r.Context(), bounds.StartDate, bounds.EndDate)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	n := len(readings)
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: readings, Count: &n, Range: bounds})
}

// Export streams the readings of a date range as an XLSX workbook.
func (h *SensorHandler) Export(w http.ResponseWriter, r *http.Request) {
	bounds, valid := parseBounds(w, r)
	if !valid {
		return
	}
	readings, err := h.sensors.Range(r.Context(), bounds.StartDate, bounds.EndDate)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	body, err := BuildReadingsXLSX(readings, models.Window{From: bounds.StartDate, To: bounds.EndDate})
	if err != nil {
		writeError(w, h.log, fmt.Errorf("build xlsx: %w", err))
		return
	}
	name := fmt.Sprintf("readings-%s-%s.xlsx", bounds.StartDate.Format("20060102T150405"), bounds.EndDate.Format("20060102T150405"))
	writeAttachment(w, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", name, body)
}

// Report renders the analytics of the last hours as a PDF.
func (h *SensorHandler) Report(w http.ResponseWriter, r *http.Request) {
	hours, err := intParam(r, "hours", defaultReportHours)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	t := h.sensors.Thresholds()
	stats, err := h.sensors.Analytics(r.Context(), hours, t)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	body, err := BuildReportPDF(stats, t)
	if err != nil {
		writeError(w, h.log, fmt.Errorf("build pdf: %w", err))
		return
	}
	writeAttachment(w, "application/pdf", fmt.Sprintf("sensor-report-%dh.pdf", hours), body)
}

func writeAttachment(w http.ResponseWriter, contentType, name string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func parseBounds(w http.ResponseWriter, r *http.Request) (rangeBounds, bool) {
	q := r.URL.Query()
	start, end := q.Get("startDate"), q.Get("endDate")
	if start == "" || end == "" {
		badRequest(w, "startDate and endDate are required")
		return rangeBounds{}, false
	}
	from, err := iso8601.ParseString(start)
	if err != nil {
		badRequest(w, "invalid date format")
		return rangeBounds{}, false
	}
	to, err := iso8601.ParseString(end)
	if err != nil {
		badRequest(w, "invalid date format")
		return rangeBounds{}, false
	}
	return rangeBounds{StartDate: from.UTC(), EndDate: to.UTC()}, true
}

func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return n, nil
}

func floatParam(r *http.Request, name string, def float64) (float64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%s must be a number", name)
	}
	return f, nil
}
