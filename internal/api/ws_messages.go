package api

import (
	"errors"
	"fmt"
	"strings"

	"github.com/yegors/co-wx/internal/weather"
	"github.com/yegors/co-wx/internal/websocket"
	"github.com/yegors/co-wx/pkg/logger"
)

// Client message types handled on top of subscriptions
const (
	MessageTypeLatest  = "latest"  // Send the current observation for a station, or for every subscribed station
	MessageTypeRefresh = "refresh" // Trigger a fetch; the result arrives as a metar_update
)

// WebSocketMessageHandler answers observation requests sent over the websocket
type WebSocketMessageHandler struct {
	weatherService WeatherProvider
	logger         *logger.Logger
}

// NewWebSocketMessageHandler creates a handler to install with websocket.Server.SetMessageHandler
func NewWebSocketMessageHandler(weatherService WeatherProvider, log *logger.Logger) *WebSocketMessageHandler {
	return &WebSocketMessageHandler{
		weatherService: weatherService,
		logger:         log.Named("ws-messages"),
	}
}

// HandleMessage implements websocket.MessageHandler
func (h *WebSocketMessageHandler) HandleMessage(client *websocket.Client, messageType string, data map[string]any) error {
	switch messageType {
	case MessageTypeLatest:
		return h.sendLatest(client, data)

	case MessageTypeRefresh:
		station, err := messageStation(data)
		if err != nil {
			return err
		}
		if station == "" {
			return fmt.Errorf("refresh requires a station")
		}
		h.logger.Debug("Refresh requested over websocket", logger.String("station", station))
		h.weatherService.RefreshNow(station)
		return nil
	}

	return fmt.Errorf("unknown message type: %s", messageType)
}

// sendLatest replies with one metar_update per requested station that has an observation
func (h *WebSocketMessageHandler) sendLatest(client *websocket.Client, data map[string]any) error {
	station, err := messageStation(data)
	if err != nil {
		return err
	}

	var stations []string
	filters := client.GetFilters()
	switch {
	case station != "":
		stations = []string{station}
	case filters != nil:
		stations = filters.List()
	default:
		stations = h.weatherService.Stations()
	}

	for _, st := range stations {
		obs, err := h.weatherService.GetObservation(st)
		if errors.Is(err, weather.ErrNoObservation) {
			if station != "" {
				return fmt.Errorf("no observation available for %s", st)
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to get observation for %s: %w", st, err)
		}
		client.SendMessage(&websocket.Message{
			Type: weather.MessageTypeMETARUpdate,
			Data: map[string]any{"station": st, "observation": obs},
		})
	}
	return nil
}

// messageStation reads an optional "station" field
func messageStation(data map[string]any) (string, error) {
	raw, ok := data["station"]
	if !ok || raw == nil {
		return "", nil
	}
	station, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("station must be a string, got %T", raw)
	}
	station = strings.ToUpper(strings.TrimSpace(station))
	if station != "" && !stationRegex.MatchString(station) {
		return "", fmt.Errorf("invalid station code: %s", station)
	}
	return station, nil
}
