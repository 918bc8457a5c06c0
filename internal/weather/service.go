package weather

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/yegors/co-wx/internal/config"
	"github.com/yegors/co-wx/internal/metar"
	"github.com/yegors/co-wx/internal/observability"
	"github.com/yegors/co-wx/pkg/logger"
)

// Fetcher retrieves raw METAR text for a station
type Fetcher interface {
	FetchRawMETAR(ctx context.Context, station string) (string, error)
}

// Storage persists observations
type Storage interface {
	StoreObservation(obs *Observation) (int64, error)
	LatestObservation(station string) (*Observation, error)
	ObservationHistory(station string, limit int) ([]*Observation, error)
}

// Publisher pushes observation updates to subscribers of a station
type Publisher interface {
	Publish(station string, messageType string, data interface{})
}

// Service manages METAR fetching, decoding, and caching for the configured stations
type Service struct {
	config    config.WeatherConfig
	stations  map[string]config.StationConfig
	order     []string
	fetcher   Fetcher
	cache     *Cache
	storage   Storage
	publisher Publisher
	metrics   *observability.Metrics
	clock     clockwork.Clock
	logger    *logger.Logger

	// Service lifecycle
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	mu      sync.RWMutex

	// Initial data readiness
	initialDataReady chan struct{}
	initialDataOnce  sync.Once
}

// NewService creates a new weather service.
// storage, publisher, and metrics may be nil.
func NewService(
	cfg config.WeatherConfig,
	stations []config.StationConfig,
	fetcher Fetcher,
	storage Storage,
	publisher Publisher,
	metrics *observability.Metrics,
	clock clockwork.Clock,
	log *logger.Logger,
) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Service{
		config:           cfg,
		stations:         make(map[string]config.StationConfig, len(stations)),
		fetcher:          fetcher,
		cache:            NewCache(time.Duration(cfg.CacheExpiryMinutes)*time.Minute, clock, log),
		storage:          storage,
		publisher:        publisher,
		metrics:          metrics,
		clock:            clock,
		logger:           log.Named("weather-service"),
		ctx:              ctx,
		cancel:           cancel,
		initialDataReady: make(chan struct{}),
	}

	for _, st := range stations {
		if _, ok := s.stations[st.ICAO]; ok {
			continue
		}
		s.stations[st.ICAO] = st
		s.order = append(s.order, st.ICAO)
	}

	return s
}

// Start begins the weather service background operations
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil // Already started
	}

	if s.config.RefreshIntervalMinutes <= 0 {
		return fmt.Errorf("refresh_interval_minutes must be greater than 0")
	}

	s.logger.Info("Starting weather service",
		logger.Int("stations", len(s.order)),
		logger.Int("refresh_interval_minutes", s.config.RefreshIntervalMinutes))

	s.metrics.SetStationsTracked(len(s.order))

	// Perform initial fetch
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.performInitialFetch()
	}()

	// Start background refresh goroutine
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.backgroundRefresh()
	}()

	s.started = true
	return nil
}

// Stop gracefully shuts down the weather service
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil // Already stopped
	}

	s.logger.Info("Stopping weather service")

	// Cancel context to signal goroutines to stop
	s.cancel()

	// Wait for all goroutines to finish
	s.wg.Wait()

	s.started = false
	s.logger.Info("Weather service stopped")
	return nil
}

// IsStarted returns whether the service is currently running
func (s *Service) IsStarted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// Ready is closed once the initial fetch of every station has completed
func (s *Service) Ready() <-chan struct{} {
	return s.initialDataReady
}

// Stations returns the tracked station codes in configuration order
func (s *Service) Stations() []string {
	return append([]string(nil), s.order...)
}

// Tracks reports whether the station is refreshed by the service
func (s *Service) Tracks(station string) bool {
	_, ok := s.stations[station]
	return ok
}

// Decode decodes a raw METAR and records the outcome
func (s *Service) Decode(raw string) (metar.Report, error) {
	report, err := metar.Decode(raw)
	s.metrics.ObserveDecode(err)
	return report, err
}

// GetObservation returns the latest observation for the station,
// falling back to storage when the cache has none. Observations older than
// the cache expiry are returned with Stale set.
func (s *Service) GetObservation(station string) (*Observation, error) {
	if obs, _ := s.cache.Get(station); obs != nil {
		return obs, nil
	}

	if s.storage == nil {
		return nil, ErrNoObservation
	}

	obs, err := s.storage.LatestObservation(station)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest observation for %s: %w", station, err)
	}
	if obs == nil {
		return nil, ErrNoObservation
	}
	stored := *obs
	stored.Stale = !s.clock.Now().Before(stored.FetchedAt.Add(s.cacheExpiry()))
	return &stored, nil
}

func (s *Service) cacheExpiry() time.Duration {
	return time.Duration(s.config.CacheExpiryMinutes) * time.Minute
}

// GetAllObservations returns the cached observation of every station that has one
func (s *Service) GetAllObservations() []*Observation {
	return s.cache.All()
}

// GetHistory returns stored observations for the station, newest first
func (s *Service) GetHistory(station string, limit int) ([]*Observation, error) {
	if s.storage == nil {
		if obs, _ := s.cache.Get(station); obs != nil {
			return []*Observation{obs}, nil
		}
		return []*Observation{}, nil
	}
	return s.storage.ObservationHistory(station, limit)
}

// GetCacheStats returns cache statistics
func (s *Service) GetCacheStats() map[string]interface{} {
	return s.cache.GetStats()
}

// RefreshNow triggers an immediate refresh of the station in the background
func (s *Service) RefreshNow(station string) {
	s.logger.Info("Manual weather refresh triggered", logger.String("station", station))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if _, err := s.Refresh(s.ctx, station); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("Manual refresh failed",
				logger.String("station", station),
				logger.Error(err))
		}
	}()
}

// Refresh fetches, decodes, persists, caches, and publishes one station.
// The observation is complete before it is shared and is not modified afterwards.
// A decode failure is not an error: the observation is kept with its raw text.
func (s *Service) Refresh(ctx context.Context, station string) (*Observation, error) {
	start := s.clock.Now()
	raw, err := s.fetcher.FetchRawMETAR(ctx, station)
	s.metrics.ObserveFetch(err, s.clock.Since(start))
	if err != nil {
		return nil, err
	}

	obs := s.observe(station, raw)

	if s.storage != nil {
		id, err := s.storage.StoreObservation(obs)
		if err != nil {
			s.logger.Error("Failed to store observation",
				logger.String("station", station),
				logger.Error(err))
		} else {
			obs.ID = id
		}
	}

	s.cache.Set(obs)

	if s.publisher != nil {
		s.publisher.Publish(station, MessageTypeMETARUpdate, obs)
	}

	return obs, nil
}

// observe decodes raw text into an Observation
func (s *Service) observe(station, raw string) *Observation {
	now := s.clock.Now().UTC()
	obs := &Observation{
		Station:   station,
		Raw:       raw,
		FetchedAt: now,
	}

	report, err := s.Decode(raw)
	obs.DecodeOutcome = observability.DecodeOutcome(err)
	if err != nil {
		obs.DecodeError = err.Error()
		s.logger.Warn("Failed to decode METAR",
			logger.String("station", station),
			logger.String("raw", raw),
			logger.String("outcome", obs.DecodeOutcome),
			logger.Error(err))
		return obs
	}

	obs.Report = &report

	var location *config.StationConfig
	if st, ok := s.stations[station]; ok {
		location = &st
	}
	obs.Derived = deriveConditions(report, location, now)

	return obs
}

// performInitialFetch performs the first fetch on service start
func (s *Service) performInitialFetch() {
	s.logger.Info("Performing initial METAR fetch",
		logger.Int("stations", len(s.order)))

	s.refreshAll()

	// Signal that initial data is ready
	s.initialDataOnce.Do(func() {
		close(s.initialDataReady)
		s.logger.Info("Initial METAR fetch completed")
	})
}

// backgroundRefresh runs the periodic refresh
func (s *Service) backgroundRefresh() {
	refreshInterval := time.Duration(s.config.RefreshIntervalMinutes) * time.Minute
	ticker := s.clock.NewTicker(refreshInterval)
	defer ticker.Stop()

	s.logger.Info("Background weather refresh started",
		logger.String("interval", refreshInterval.String()))

	for {
		select {
		case <-s.ctx.Done():
			s.logger.Info("Background weather refresh stopped")
			return
		case <-ticker.Chan():
			s.logger.Debug("Periodic weather refresh triggered")
			s.refreshAll()
		}
	}
}

// refreshAll refreshes every tracked station concurrently
func (s *Service) refreshAll() {
	start := s.clock.Now()

	var (
		wg       sync.WaitGroup
		failedMu sync.Mutex
		failed   int
	)
	for _, station := range s.order {
		wg.Add(1)
		go func(station string) {
			defer wg.Done()
			if _, err := s.Refresh(s.ctx, station); err != nil {
				failedMu.Lock()
				failed++
				failedMu.Unlock()
				if !errors.Is(err, context.Canceled) {
					s.logger.Warn("Failed to refresh station",
						logger.String("station", station),
						logger.Error(err))
				}
			}
		}(station)
	}
	wg.Wait()

	s.logger.Info("METAR refresh completed",
		logger.Int("stations", len(s.order)),
		logger.Int("failed", failed),
		logger.Duration("duration", s.clock.Since(start)))
}
