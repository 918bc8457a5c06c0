package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/yegors/co-wx/internal/config"
	"github.com/yegors/co-wx/internal/metar"
	"github.com/yegors/co-wx/internal/weather"
	"github.com/yegors/co-wx/pkg/logger"
)

// Upper bound on a decode request body
const maxDecodeBodyBytes = 16 * 1024

var stationRegex = regexp.MustCompile(`^[A-Z0-9]{4}$`)

// WeatherProvider is the part of weather.Service the handlers use
type WeatherProvider interface {
	Decode(raw string) (metar.Report, error)
	GetObservation(station string) (*weather.Observation, error)
	GetAllObservations() []*weather.Observation
	GetHistory(station string, limit int) ([]*weather.Observation, error)
	GetCacheStats() map[string]interface{}
	RefreshNow(station string)
	Stations() []string
	Ready() <-chan struct{}
}

// Handler contains the API handlers
type Handler struct {
	weatherService WeatherProvider
	config         *config.Config
	logger         *logger.Logger
}

// NewHandler creates a new API handler
func NewHandler(weatherService WeatherProvider, cfg *config.Config, log *logger.Logger) *Handler {
	return &Handler{
		weatherService: weatherService,
		config:         cfg,
		logger:         log.Named("api-handler"),
	}
}

// DecodeRequest is the body of POST /api/v1/metar/decode
type DecodeRequest struct {
	Raw string `json:"raw"`
}

// DecodeResponse is returned for a successful decode
type DecodeResponse struct {
	Report    metar.Report `json:"report"`
	Canonical string       `json:"canonical"`
}

// ErrorResponse is returned for failed requests; decode failures fill the kind specific fields
type ErrorResponse struct {
	Error    string   `json:"error"`
	Kind     string   `json:"kind,omitempty"`
	Position *int     `json:"position,omitempty"` // malformed_input
	Expected []string `json:"expected,omitempty"` // malformed_input
	Found    *string  `json:"found,omitempty"`    // malformed_input
	Field    string   `json:"field,omitempty"`    // missing_element
	Group    string   `json:"group,omitempty"`    // decode_error
	Text     string   `json:"text,omitempty"`     // decode_error
}

// GetHealth returns the health status of the API
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	ready := false
	select {
	case <-h.weatherService.Ready():
		ready = true
	default:
	}

	response := map[string]interface{}{
		"status":   "ok",
		"ready":    ready,
		"stations": h.weatherService.Stations(),
		"cache":    h.weatherService.GetCacheStats(),
	}

	WriteJSON(w, http.StatusOK, response)
}

// DecodeMETAR decodes the raw METAR in the request body
func (h *Handler) DecodeMETAR(w http.ResponseWriter, r *http.Request) {
	var req DecodeRequest
	body := http.MaxBytesReader(w, r.Body, maxDecodeBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	report, err := h.weatherService.Decode(req.Raw)
	if err != nil {
		h.logger.Debug("Decode request rejected",
			logger.String("raw", req.Raw),
			logger.Error(err))
		WriteJSON(w, http.StatusUnprocessableEntity, decodeErrorResponse(err))
		return
	}

	WriteJSON(w, http.StatusOK, DecodeResponse{
		Report:    report,
		Canonical: report.String(),
	})
}

// GetAllObservations returns the latest observation of every tracked station
func (h *Handler) GetAllObservations(w http.ResponseWriter, r *http.Request) {
	observations := h.weatherService.GetAllObservations()

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"observations": observations,
		"count":        len(observations),
	})
}

// GetObservation returns the latest observation of one station
func (h *Handler) GetObservation(w http.ResponseWriter, r *http.Request) {
	station, ok := stationParam(w, r)
	if !ok {
		return
	}

	obs, err := h.weatherService.GetObservation(station)
	if errors.Is(err, weather.ErrNoObservation) {
		WriteError(w, http.StatusNotFound, "no observation for "+station)
		return
	}
	if err != nil {
		h.logger.Error("Failed to get observation",
			logger.String("station", station),
			logger.Error(err))
		WriteError(w, http.StatusInternalServerError, "failed to load observation")
		return
	}

	WriteJSON(w, http.StatusOK, obs)
}

// GetObservationHistory returns stored observations of one station, newest first
func (h *Handler) GetObservationHistory(w http.ResponseWriter, r *http.Request) {
	station, ok := stationParam(w, r)
	if !ok {
		return
	}

	maxLimit := h.config.Storage.MaxHistoryInAPI
	limit := maxLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			WriteError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if maxLimit <= 0 || n < maxLimit {
			limit = n
		}
	}

	history, err := h.weatherService.GetHistory(station, limit)
	if err != nil {
		h.logger.Error("Failed to get observation history",
			logger.String("station", station),
			logger.Error(err))
		WriteError(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"station":      station,
		"observations": history,
		"count":        len(history),
	})
}

// RefreshStation triggers an immediate fetch of one station
func (h *Handler) RefreshStation(w http.ResponseWriter, r *http.Request) {
	station, ok := stationParam(w, r)
	if !ok {
		return
	}

	h.weatherService.RefreshNow(station)

	WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"status":  "refresh_scheduled",
		"station": station,
	})
}

// stationParam reads and validates the {station} URL parameter
func stationParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	station := strings.ToUpper(chi.URLParam(r, "station"))
	if !stationRegex.MatchString(station) {
		WriteError(w, http.StatusBadRequest, "invalid station code: "+chi.URLParam(r, "station"))
		return "", false
	}
	return station, true
}

// decodeErrorResponse maps a metar.Decode error to its JSON body
func decodeErrorResponse(err error) ErrorResponse {
	resp := ErrorResponse{Error: err.Error()}

	var malformed *metar.MalformedInputError
	var missing *metar.MissingElementError
	var decodeErr *metar.DecodeError

	switch {
	case errors.As(err, &malformed):
		resp.Kind = "malformed_input"
		pos := malformed.Pos
		resp.Position = &pos
		found := malformed.Found
		resp.Found = &found
		for _, k := range malformed.Expected {
			resp.Expected = append(resp.Expected, k.String())
		}
	case errors.As(err, &missing):
		resp.Kind = "missing_element"
		resp.Field = missing.Field
	case errors.As(err, &decodeErr):
		resp.Kind = "decode_error"
		resp.Group = decodeErr.Kind.String()
		resp.Text = decodeErr.Text
	default:
		resp.Kind = "decode_error"
	}

	return resp
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// WriteError writes a JSON error response
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorResponse{Error: message})
}
