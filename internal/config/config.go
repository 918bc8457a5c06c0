package config

import (
	"encoding/csv"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config represents the main application configuration structure
// containing all configuration sections
type Config struct {
	Server   ServerConfig    `toml:"server"`   // HTTP server settings
	Logging  LoggingConfig   `toml:"logging"`  // Application logging settings
	Storage  StorageConfig   `toml:"storage"`  // Observation persistence settings
	Weather  WeatherConfig   `toml:"wx"`       // METAR fetching and caching settings
	Stations []StationConfig `toml:"stations"` // Stations whose METARs are tracked
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port               int      `toml:"port"`                  // HTTP port for the server
	Host               string   `toml:"host"`                  // Host address to bind to (e.g., 127.0.0.1 for localhost only, 0.0.0.0 for all interfaces)
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`  // List of origins allowed for CORS requests (use ["*"] for all origins)
	ReadTimeoutSecs    int      `toml:"read_timeout_seconds"`  // Maximum duration for reading the entire request (0 = no timeout)
	WriteTimeoutSecs   int      `toml:"write_timeout_seconds"` // Maximum duration for writing the response (0 = no timeout)
	IdleTimeoutSecs    int      `toml:"idle_timeout_seconds"`  // Maximum duration to wait for the next request when keep-alives are enabled
	StaticDir          string   `toml:"static_dir"`            // Optional directory served at / (e.g., a status page)
}

// LoggingConfig contains application logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`  // Log level: "debug", "info", "warn", or "error"
	Format string `toml:"format"` // Log format: "json" (structured) or "console" (human-readable)
}

// StorageConfig contains data persistence configuration
type StorageConfig struct {
	SQLitePath      string `toml:"sqlite_path"`        // Path of the SQLite database file
	MaxHistoryInAPI int    `toml:"max_history_in_api"` // Maximum number of observations returned by the history endpoint
	RetentionDays   int    `toml:"retention_days"`     // Observations older than this are pruned (0 = keep forever)
}

// WeatherConfig contains METAR fetching and caching configuration
type WeatherConfig struct {
	APIBaseURL             string `toml:"api_base_url"`             // Base URL for the METAR API (e.g., https://aviationweather.gov/api/data)
	RefreshIntervalMinutes int    `toml:"refresh_interval_minutes"` // METAR refresh interval in minutes
	RequestTimeoutSeconds  int    `toml:"request_timeout_seconds"`  // HTTP request timeout in seconds
	MaxRetries             int    `toml:"max_retries"`              // Maximum number of retry attempts for failed requests
	CacheExpiryMinutes     int    `toml:"cache_expiry_minutes"`     // How long a cached observation is served before it is considered stale
	AirportsDBPath         string `toml:"airports_db_path"`         // Optional OurAirports CSV used to fill station coordinates
}

// StationConfig identifies a tracked station and its location
type StationConfig struct {
	ICAO          string  `toml:"icao"`         // ICAO code of the station (e.g., "KTTA")
	Latitude      float64 `toml:"latitude"`     // Latitude in decimal degrees
	Longitude     float64 `toml:"longitude"`    // Longitude in decimal degrees
	ElevationFeet int     `toml:"elevation_ft"` // Field elevation in feet
}

// HasLocation reports whether coordinates are known for the station
func (s StationConfig) HasLocation() bool {
	return s.Latitude != 0 || s.Longitude != 0
}

var icaoRegex = regexp.MustCompile(`^[A-Z0-9]{4}$`)

// Load loads the configuration from the specified file path
func Load(path string) (*Config, error) {
	var config Config

	// Check if the file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	// Read the config file
	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	// Fill missing station coordinates from airports.csv
	if config.Weather.AirportsDBPath != "" {
		if err := config.loadStationsFromCSV(); err != nil {
			return nil, fmt.Errorf("failed to load station details from CSV: %w", err)
		}
	}

	return &config, nil
}

// loadStationsFromCSV parses an OurAirports airports.csv to find station coordinates
func (c *Config) loadStationsFromCSV() error {
	file, err := os.Open(c.Weather.AirportsDBPath)
	if err != nil {
		return err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.LazyQuotes = true

	// Skip header
	if _, err := reader.Read(); err != nil {
		return err
	}

	records, err := reader.ReadAll()
	if err != nil {
		return err
	}

	byIdent := make(map[string][]string, len(records))
	for _, record := range records {
		if len(record) < 7 {
			continue
		}
		byIdent[record[1]] = record
	}

	for i := range c.Stations {
		station := &c.Stations[i]
		if station.HasLocation() {
			continue
		}

		record, ok := byIdent[strings.ToUpper(station.ICAO)]
		if !ok {
			return fmt.Errorf("airport code %s not found in %s", station.ICAO, c.Weather.AirportsDBPath)
		}

		// Parse latitude (index 4)
		lat, err := strconv.ParseFloat(record[4], 64)
		if err != nil {
			return fmt.Errorf("invalid latitude in CSV for %s: %w", station.ICAO, err)
		}
		station.Latitude = lat

		// Parse longitude (index 5)
		lon, err := strconv.ParseFloat(record[5], 64)
		if err != nil {
			return fmt.Errorf("invalid longitude in CSV for %s: %w", station.ICAO, err)
		}
		station.Longitude = lon

		// Elevation might be empty
		if record[6] != "" {
			if elev, err := strconv.ParseFloat(record[6], 64); err == nil {
				station.ElevationFeet = int(elev)
			}
		}
	}

	return nil
}

// LoadWithFallback loads the configuration by checking multiple locations in order of preference
func LoadWithFallback(preferredPath string) (*Config, error) {
	// List of paths to check in order of preference
	searchPaths := []string{
		preferredPath,         // User-specified path (if provided)
		"configs/config.toml", // configs/ folder
		"config.toml",         // Root directory
	}

	// Remove duplicates while preserving order
	uniquePaths := make([]string, 0, len(searchPaths))
	seen := make(map[string]bool)
	for _, path := range searchPaths {
		if path != "" && !seen[path] {
			uniquePaths = append(uniquePaths, path)
			seen[path] = true
		}
	}

	var lastErr error
	for _, path := range uniquePaths {
		if _, err := os.Stat(path); err == nil {
			config, err := Load(path)
			if err != nil {
				lastErr = fmt.Errorf("failed to load config from %s: %w", path, err)
				continue
			}
			return config, nil
		}
		lastErr = fmt.Errorf("config file not found: %s", path)
	}

	return nil, fmt.Errorf("config file not found in any of the expected locations: %v. Last error: %w", uniquePaths, lastErr)
}

// Default returns a configuration with every default applied and no stations
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Server.ReadTimeoutSecs == 0 {
		c.Server.ReadTimeoutSecs = 15
	}
	if c.Server.WriteTimeoutSecs == 0 {
		c.Server.WriteTimeoutSecs = 15
	}
	if c.Server.IdleTimeoutSecs == 0 {
		c.Server.IdleTimeoutSecs = 60
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = "data/metar.db"
	}
	if c.Storage.MaxHistoryInAPI == 0 {
		c.Storage.MaxHistoryInAPI = 100
	}
	if c.Weather.APIBaseURL == "" {
		c.Weather.APIBaseURL = "https://aviationweather.gov/api/data"
	}
	if c.Weather.RefreshIntervalMinutes == 0 {
		c.Weather.RefreshIntervalMinutes = 10
	}
	if c.Weather.RequestTimeoutSeconds == 0 {
		c.Weather.RequestTimeoutSeconds = 10
	}
	if c.Weather.CacheExpiryMinutes == 0 {
		c.Weather.CacheExpiryMinutes = 15
	}
}

// Validate fills defaults and validates the configuration
func (c *Config) Validate() error {
	c.applyDefaults()

	// Validate server config
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Storage.MaxHistoryInAPI < 0 {
		return fmt.Errorf("invalid max_history_in_api value: %d (must be >= 0)", c.Storage.MaxHistoryInAPI)
	}

	if c.Storage.RetentionDays < 0 {
		return fmt.Errorf("invalid retention_days value: %d (must be >= 0)", c.Storage.RetentionDays)
	}

	if err := c.ValidateWeather(); err != nil {
		return err
	}

	return c.ValidateStations()
}

// ValidateWeather validates the weather configuration
func (c *Config) ValidateWeather() error {
	// Validate refresh interval
	if c.Weather.RefreshIntervalMinutes <= 0 {
		return fmt.Errorf("weather refresh_interval_minutes must be greater than 0: %d", c.Weather.RefreshIntervalMinutes)
	}

	// Validate request timeout
	if c.Weather.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("weather request_timeout_seconds must be greater than 0: %d", c.Weather.RequestTimeoutSeconds)
	}

	// Validate max retries
	if c.Weather.MaxRetries < 0 {
		return fmt.Errorf("weather max_retries must be 0 or greater: %d", c.Weather.MaxRetries)
	}

	// Validate cache expiry
	if c.Weather.CacheExpiryMinutes <= 0 {
		return fmt.Errorf("weather cache_expiry_minutes must be greater than 0: %d", c.Weather.CacheExpiryMinutes)
	}

	// Validate API base URL
	if c.Weather.APIBaseURL == "" {
		return fmt.Errorf("weather api_base_url cannot be empty")
	}

	return nil
}

// ValidateStations normalizes station codes and rejects invalid or duplicate ones
func (c *Config) ValidateStations() error {
	seen := make(map[string]bool, len(c.Stations))
	for i := range c.Stations {
		code := strings.ToUpper(strings.TrimSpace(c.Stations[i].ICAO))
		if !icaoRegex.MatchString(code) {
			return fmt.Errorf("invalid station icao code: %q", c.Stations[i].ICAO)
		}
		if seen[code] {
			return fmt.Errorf("duplicate station configured: %s", code)
		}
		seen[code] = true
		c.Stations[i].ICAO = code

		if c.Stations[i].Latitude < -90 || c.Stations[i].Latitude > 90 {
			return fmt.Errorf("invalid latitude for %s: %f", code, c.Stations[i].Latitude)
		}
		if c.Stations[i].Longitude < -180 || c.Stations[i].Longitude > 180 {
			return fmt.Errorf("invalid longitude for %s: %f", code, c.Stations[i].Longitude)
		}
	}

	return nil
}

// StationCodes returns the configured ICAO codes in order
func (c *Config) StationCodes() []string {
	codes := make([]string, 0, len(c.Stations))
	for _, s := range c.Stations {
		codes = append(codes, s.ICAO)
	}
	return codes
}
