package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yegors/co-wx/internal/observability"
	"github.com/yegors/co-wx/pkg/logger"
)

// Message types exchanged with clients
const (
	MessageTypeSubscribe   = "subscribe"   // Client limits pushes to a set of stations
	MessageTypeUnsubscribe = "unsubscribe" // Client clears its station filter
	MessageTypeSubscribed  = "subscribed"  // Server acknowledges the active filter
	MessageTypeError       = "error"
)

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 256
)

// Message represents a WebSocket message
type Message struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// MessageHandler defines the interface for handling incoming WebSocket messages
// that the server does not handle itself
type MessageHandler interface {
	HandleMessage(client *Client, messageType string, data map[string]any) error
}

// ClientFilters represents the active filters for a WebSocket client
type ClientFilters struct {
	Stations map[string]bool `json:"stations"` // station -> subscribed
}

// Client represents a WebSocket client
type Client struct {
	conn      *websocket.Conn
	send      chan *Message
	server    *Server
	mu        sync.Mutex
	closed    bool
	closeChan chan struct{}
	filters   *ClientFilters // Active filters for this client, nil receives everything
}

// Server represents a WebSocket server
type Server struct {
	clients        map[*Client]bool
	register       chan *Client
	unregister     chan *Client
	broadcast      chan *Message
	upgrader       websocket.Upgrader
	metrics        *observability.Metrics
	logger         *logger.Logger
	mu             sync.RWMutex
	messageHandler MessageHandler // Handler for incoming messages
	done           chan struct{}  // Closed when Run returns
	doneOnce       sync.Once
}

// NewServer creates a new WebSocket server. metrics may be nil.
func NewServer(metrics *observability.Metrics, log *logger.Logger) *Server {
	return &Server{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message, sendBufferSize),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins
			},
		},
		metrics: metrics,
		logger:  log.Named("web-socket"),
		done:    make(chan struct{}),
	}
}

// SetMessageHandler sets the message handler for incoming WebSocket messages
func (s *Server) SetMessageHandler(handler MessageHandler) {
	s.messageHandler = handler
}

// ClientCount returns the number of connected clients
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Run starts the WebSocket hub and blocks until ctx is done
func (s *Server) Run(ctx context.Context) {
	s.logger.Info("Starting WebSocket server")

	for {
		select {
		case <-ctx.Done():
			s.doneOnce.Do(func() { close(s.done) })
			s.closeAll()
			s.logger.Info("WebSocket server stopped")
			return

		case client := <-s.register:
			s.mu.Lock()
			s.clients[client] = true
			clientCount := len(s.clients)
			s.mu.Unlock()
			s.metrics.SetWSClients(clientCount)
			s.logger.Debug("Client registered", logger.Int("client_count", clientCount))

		case client := <-s.unregister:
			s.mu.Lock()
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				s.closeSend(client)
			}
			clientCount := len(s.clients)
			s.mu.Unlock()
			s.metrics.SetWSClients(clientCount)
			s.logger.Debug("Client unregistered", logger.Int("client_count", clientCount))

		case message := <-s.broadcast:
			s.deliver(message)
		}
	}
}

// deliver sends a broadcast message to every client whose filters match
func (s *Server) deliver(message *Message) {
	s.mu.RLock()
	clientsToRemove := make([]*Client, 0)
	for client := range s.clients {
		// Check if client is still valid before sending
		client.mu.Lock()
		if client.closed {
			clientsToRemove = append(clientsToRemove, client)
			client.mu.Unlock()
			continue
		}
		client.mu.Unlock()

		if !s.shouldSendToClient(client, message) {
			continue
		}

		select {
		case client.send <- message:
			// Message sent successfully
		default:
			// Channel is full, mark for removal
			clientsToRemove = append(clientsToRemove, client)
		}
	}
	s.mu.RUnlock()

	// Clean up failed clients
	if len(clientsToRemove) > 0 {
		s.mu.Lock()
		for _, client := range clientsToRemove {
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				s.closeSend(client)
			}
		}
		clientCount := len(s.clients)
		s.mu.Unlock()
		s.metrics.SetWSClients(clientCount)
	}
}

// closeSend marks the client closed and closes its send channel once
func (s *Server) closeSend(client *Client) {
	client.mu.Lock()
	defer client.mu.Unlock()
	if !client.closed {
		client.closed = true
	}
	if client.send != nil {
		close(client.send)
		client.send = nil
	}
}

func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for client := range s.clients {
		delete(s.clients, client)
		s.closeSend(client)
		client.Close()
	}
	s.metrics.SetWSClients(0)
}

// HandleConnection handles a WebSocket connection
func (s *Server) HandleConnection(w http.ResponseWriter, r *http.Request) {
	s.logger.Info("Handling new WebSocket connection request",
		logger.String("remote_addr", r.RemoteAddr),
		logger.String("user_agent", r.UserAgent()))

	// Upgrade HTTP connection to WebSocket
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection",
			logger.Error(err),
			logger.String("remote_addr", r.RemoteAddr))
		return
	}

	// Create client
	client := &Client{
		conn:      conn,
		send:      make(chan *Message, sendBufferSize),
		server:    s,
		closeChan: make(chan struct{}),
	}

	// Optional initial filter from the query string, e.g. /ws?stations=KTTA,KBOS
	if stations := r.URL.Query().Get("stations"); stations != "" {
		client.UpdateFilters(newStationFilters(strings.Split(stations, ",")))
	}

	// Register client
	send := client.send
	select {
	case s.register <- client:
	case <-s.done:
		conn.Close()
		return
	}

	// Start client goroutines
	go client.readPump()
	go client.writePump(send)
}

// Publish sends an update about a station to every subscribed client
func (s *Server) Publish(station string, messageType string, data interface{}) {
	s.Broadcast(&Message{
		Type: messageType,
		Data: map[string]any{
			"station":     station,
			"observation": data,
		},
	})
}

// Broadcast sends a message to all connected clients
func (s *Server) Broadcast(message *Message) {
	s.logger.Debug("Broadcasting message to all clients",
		logger.String("message_type", message.Type),
		logger.Int("client_count", s.ClientCount()))

	select {
	case s.broadcast <- message:
	case <-s.done:
	}
}

// readPump pumps messages from the WebSocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		select {
		case c.server.unregister <- c:
		case <-c.server.done:
		}
		c.conn.Close()
	}()

	for {
		// Read message
		_, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.server.logger.Error("WebSocket read error", logger.Error(err))
			}
			break
		}

		// Parse incoming message
		var message Message
		if err := json.Unmarshal(messageBytes, &message); err != nil {
			c.server.logger.Error("Failed to parse WebSocket message", logger.Error(err))
			c.SendMessage(errorMessage("invalid message: " + err.Error()))
			continue
		}

		c.server.logger.Debug("Received WebSocket message",
			logger.String("type", message.Type),
			logger.String("client", c.conn.RemoteAddr().String()))

		if err := c.handleMessage(message); err != nil {
			c.server.logger.Error("Failed to handle WebSocket message",
				logger.Error(err),
				logger.String("type", message.Type))
			c.SendMessage(errorMessage(err.Error()))
		}
	}
}

// handleMessage applies subscription messages and hands the rest to the message handler
func (c *Client) handleMessage(message Message) error {
	switch message.Type {
	case MessageTypeSubscribe:
		raw, ok := message.Data["stations"].([]any)
		if !ok {
			return fmt.Errorf("subscribe requires a stations list")
		}
		stations := make([]string, 0, len(raw))
		for _, v := range raw {
			station, ok := v.(string)
			if !ok {
				return fmt.Errorf("station must be a string, got %T", v)
			}
			stations = append(stations, station)
		}
		filters := newStationFilters(stations)
		c.UpdateFilters(filters)
		c.SendMessage(&Message{
			Type: MessageTypeSubscribed,
			Data: map[string]any{"stations": filters.List()},
		})
		return nil

	case MessageTypeUnsubscribe:
		c.UpdateFilters(nil)
		c.SendMessage(&Message{
			Type: MessageTypeSubscribed,
			Data: map[string]any{"stations": []string{}},
		})
		return nil
	}

	if c.server.messageHandler != nil {
		return c.server.messageHandler.HandleMessage(c, message.Type, message.Data)
	}
	return fmt.Errorf("unknown message type: %s", message.Type)
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump(send <-chan *Message) {
	defer c.conn.Close()

	for {
		select {
		case message, ok := <-send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Channel closed
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// Marshal message to JSON
			data, err := json.Marshal(message)
			if err != nil {
				c.server.logger.Error("Failed to marshal message", logger.Error(err))
				continue
			}

			c.server.logger.Debug("Sending message to client",
				logger.String("message_type", message.Type),
				logger.Int("message_bytes", len(data)))

			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-c.closeChan:
			return
		}
	}
}

// Close stops the write pump and drops the connection, which ends the read pump
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.closeChan:
		return
	default:
	}

	c.closed = true
	close(c.closeChan)
	c.conn.Close()
}

// SendMessage sends a message to this specific client
func (c *Client) SendMessage(message *Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Check if client is closed
	if c.closed || c.send == nil {
		return false
	}

	// Try to send message with non-blocking select
	select {
	case c.send <- message:
		return true
	default:
		// Channel is full, drop message
		return false
	}
}

// UpdateFilters updates the client's active filters
func (c *Client) UpdateFilters(filters *ClientFilters) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filters = filters
}

// GetFilters returns a copy of the client's current filters
func (c *Client) GetFilters() *ClientFilters {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.filters == nil {
		return nil
	}
	// Return a copy to avoid race conditions
	filtersCopy := &ClientFilters{Stations: make(map[string]bool, len(c.filters.Stations))}
	for station, enabled := range c.filters.Stations {
		filtersCopy.Stations[station] = enabled
	}
	return filtersCopy
}

// MatchesStation checks if the client wants updates for the station
func (c *Client) MatchesStation(station string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.filters == nil {
		// No filters set, send everything
		return true
	}
	return c.filters.Stations[strings.ToUpper(station)]
}

// List returns the subscribed stations in sorted order
func (f *ClientFilters) List() []string {
	if f == nil {
		return []string{}
	}
	stations := make([]string, 0, len(f.Stations))
	for station, enabled := range f.Stations {
		if enabled {
			stations = append(stations, station)
		}
	}
	sort.Strings(stations)
	return stations
}

// shouldSendToClient determines if a message should be sent to a specific client based on their filters
func (s *Server) shouldSendToClient(client *Client, message *Message) bool {
	// Messages not tied to a station go to everyone
	station, ok := message.Data["station"].(string)
	if !ok || station == "" {
		return true
	}
	return client.MatchesStation(station)
}

// newStationFilters normalizes station codes. An empty set yields nil,
// which receives every station.
func newStationFilters(stations []string) *ClientFilters {
	filters := &ClientFilters{Stations: make(map[string]bool, len(stations))}
	for _, station := range stations {
		station = strings.ToUpper(strings.TrimSpace(station))
		if station != "" {
			filters.Stations[station] = true
		}
	}
	if len(filters.Stations) == 0 {
		return nil
	}
	return filters
}

func errorMessage(msg string) *Message {
	return &Message{Type: MessageTypeError, Data: map[string]any{"message": msg}}
}
