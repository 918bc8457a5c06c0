package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/yegors/co-wx/internal/metar"
	"github.com/yegors/co-wx/internal/weather"
	"github.com/yegors/co-wx/pkg/logger"
	_ "modernc.org/sqlite"
)

const timeLayout = "2006-01-02T15:04:05.000000Z"

// ObservationStorage is a SQLite-based storage for METAR observations
type ObservationStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewObservationStorage opens (creating if needed) the database at dbPath
func NewObservationStorage(dbPath string, log *logger.Logger) (*ObservationStorage, error) {
	storageLogger := log.Named("sqlite")

	storageLogger.Info("Initializing SQLite storage",
		logger.String("path", dbPath))

	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// Open the database
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set connection pool limits
	db.SetMaxOpenConns(1) // SQLite only supports one writer at a time
	db.SetMaxIdleConns(1)

	// Set pragmas for better performance and concurrency
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA cache_size=10000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set %q: %w", pragma, err)
		}
	}

	// Create tables if they don't exist
	if err := initDatabase(db, storageLogger); err != nil {
		db.Close()
		return nil, err
	}

	return &ObservationStorage{
		db:     db,
		logger: storageLogger,
	}, nil
}

// Close closes the database connection
func (s *ObservationStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// initDatabase initializes the database schema
func initDatabase(db *sql.DB, log *logger.Logger) error {
	log.Info("Initializing database schema")

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS observations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			station TEXT NOT NULL,
			raw TEXT NOT NULL,
			observation_time TEXT,       -- DDHHMMZ group, NULL when undecoded
			decode_outcome TEXT NOT NULL,
			decode_error TEXT,
			report TEXT,                 -- JSON encoded metar.Report
			derived TEXT,                -- JSON encoded weather.Conditions
			fetched_at TEXT NOT NULL    -- UTC, fixed width so text order is time order
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create observations table: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_observations_station ON observations(station, id)`)
	if err != nil {
		return fmt.Errorf("failed to create station index: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_observations_fetched_at ON observations(fetched_at)`)
	if err != nil {
		return fmt.Errorf("failed to create fetched_at index: %w", err)
	}

	return nil
}

// StoreObservation stores an observation and returns its ID
func (s *ObservationStorage) StoreObservation(obs *weather.Observation) (int64, error) {
	var observationTime, report, derived sql.NullString

	if obs.Report != nil {
		data, err := json.Marshal(obs.Report)
		if err != nil {
			return 0, fmt.Errorf("failed to encode report: %w", err)
		}
		report = sql.NullString{String: string(data), Valid: true}
		observationTime = sql.NullString{String: obs.Report.ObservationTime, Valid: true}
	}
	if obs.Derived != nil {
		data, err := json.Marshal(obs.Derived)
		if err != nil {
			return 0, fmt.Errorf("failed to encode derived conditions: %w", err)
		}
		derived = sql.NullString{String: string(data), Valid: true}
	}

	result, err := s.db.Exec(
		`INSERT INTO observations
		(station, raw, observation_time, decode_outcome, decode_error, report, derived, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		obs.Station,
		obs.Raw,
		observationTime,
		obs.DecodeOutcome,
		sql.NullString{String: obs.DecodeError, Valid: obs.DecodeError != ""},
		report,
		derived,
		obs.FetchedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert observation: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}

	s.logger.Debug("Observation stored",
		logger.String("station", obs.Station),
		logger.Int64("id", id))

	return id, nil
}

const observationColumns = `id, station, raw, decode_outcome, decode_error, report, derived, fetched_at`

// LatestObservation returns the most recent observation for the station, or nil if none
func (s *ObservationStorage) LatestObservation(station string) (*weather.Observation, error) {
	row := s.db.QueryRow(
		`SELECT `+observationColumns+`
		FROM observations
		WHERE station = ?
		ORDER BY id DESC
		LIMIT 1`,
		station,
	)

	obs, err := scanObservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return obs, nil
}

// ObservationHistory returns up to limit observations for the station, newest first
func (s *ObservationStorage) ObservationHistory(station string, limit int) ([]*weather.Observation, error) {
	rows, err := s.db.Query(
		`SELECT `+observationColumns+`
		FROM observations
		WHERE station = ?
		ORDER BY id DESC
		LIMIT ?`,
		station, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query observations: %w", err)
	}
	defer rows.Close()

	observations := []*weather.Observation{}
	for rows.Next() {
		obs, err := scanObservation(rows)
		if err != nil {
			return nil, err
		}
		observations = append(observations, obs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate observations: %w", err)
	}

	return observations, nil
}

// DeleteBefore removes observations fetched before the cutoff and returns how many were removed
func (s *ObservationStorage) DeleteBefore(cutoff time.Time) (int64, error) {
	result, err := s.db.Exec(
		`DELETE FROM observations WHERE fetched_at < ?`,
		cutoff.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete observations: %w", err)
	}
	return result.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanObservation(row scanner) (*weather.Observation, error) {
	var (
		obs                          weather.Observation
		decodeError, report, derived sql.NullString
		fetchedAt                    string
	)

	if err := row.Scan(
		&obs.ID,
		&obs.Station,
		&obs.Raw,
		&obs.DecodeOutcome,
		&decodeError,
		&report,
		&derived,
		&fetchedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan observation: %w", err)
	}

	var err error
	obs.FetchedAt, err = time.Parse(timeLayout, fetchedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse fetched_at: %w", err)
	}

	// Handle nullable fields
	if decodeError.Valid {
		obs.DecodeError = decodeError.String
	}
	if report.Valid {
		var r metar.Report
		if err := json.Unmarshal([]byte(report.String), &r); err != nil {
			return nil, fmt.Errorf("failed to decode stored report: %w", err)
		}
		obs.Report = &r
	}
	if derived.Valid {
		var c weather.Conditions
		if err := json.Unmarshal([]byte(derived.String), &c); err != nil {
			return nil, fmt.Errorf("failed to decode stored conditions: %w", err)
		}
		obs.Derived = &c
	}

	return &obs, nil
}
