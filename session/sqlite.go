package session

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/MrEthical07/geoAuth/geo"
	"github.com/MrEthical07/geoAuth/internal/notify"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS preferences (
	region TEXT NOT NULL,
	key    TEXT NOT NULL,
	value  TEXT NOT NULL,
	PRIMARY KEY (region, key)
)`

const sqliteUpsert = `
INSERT INTO preferences (region, key, value) VALUES (?, ?, ?)
ON CONFLICT (region, key) DO UPDATE SET value = excluded.value`

// SQLiteStore keeps the session region in a local SQLite database. Changes are
// broadcast to observers inside this process only.
type SQLiteStore struct {
	db      *sql.DB
	ownsDB  bool
	region  string
	logger  *slog.Logger
	changes *notify.Broadcaster[bool]
}

// OpenSQLite opens (or creates) the database at path and prepares the schema.
func OpenSQLite(ctx context.Context, path, region string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	store, err := NewSQLiteStore(ctx, db, region, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	store.ownsDB = true
	return store, nil
}

// NewSQLiteStore wraps an existing database handle. The caller keeps ownership of db.
func NewSQLiteStore(ctx context.Context, db *sql.DB, region string, logger *slog.Logger) (*SQLiteStore, error) {
	if region == "" {
		region = DefaultRegion
	}
	if logger == nil {
		logger = discardLogger()
	}
	// one writer at a time; SQLite serialises anyway and this avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return nil, fmt.Errorf("%w: create schema: %v", ErrStoreUnavailable, err)
	}
	return &SQLiteStore{
		db:      db,
		region:  region,
		logger:  logger.With(slog.String("store", "sqlite"), slog.String("region", region)),
		changes: notify.New[bool](),
	}, nil
}

// Login sets is_logged_in and both coordinate fields in one transaction.
func (s *SQLiteStore) Login(ctx context.Context, c geo.Coordinate) error {
	if !c.Valid() {
		return ErrInvalidCoordinate
	}
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for _, kv := range [][2]string{
			{FieldLoggedIn, formatBool(true)},
			{FieldLatitude, formatFloat(c.Latitude)},
			{FieldLongitude, formatFloat(c.Longitude)},
		} {
			if _, err := tx.ExecContext(ctx, sqliteUpsert, s.region, kv[0], kv[1]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.changes.Publish(true)
	return nil
}

// Logout clears is_logged_in and deletes the coordinate fields in one transaction.
func (s *SQLiteStore) Logout(ctx context.Context) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, sqliteUpsert, s.region, FieldLoggedIn, formatBool(false)); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`DELETE FROM preferences WHERE region = ? AND key IN (?, ?)`,
			s.region, FieldLatitude, FieldLongitude,
		)
		return err
	})
	if err != nil {
		return err
	}
	s.changes.Publish(false)
	return nil
}

func (s *SQLiteStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// LoggedIn reads the flag. Errors are logged and reported as false.
func (s *SQLiteStore) LoggedIn(ctx context.Context) bool {
	return s.State(ctx).LoggedIn
}

// LastKnownCoordinate reads the stored coordinate, or nil.
func (s *SQLiteStore) LastKnownCoordinate(ctx context.Context) *geo.Coordinate {
	return s.State(ctx).Coordinate
}

// State reads the whole region in one query.
func (s *SQLiteStore) State(ctx context.Context) State {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM preferences WHERE region = ?`, s.region)
	if err != nil {
		s.logger.WarnContext(ctx, "session state read failed", slog.Any("error", err))
		return State{}
	}
	defer rows.Close()

	fields := make(map[string]string, 3)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			s.logger.WarnContext(ctx, "session state scan failed", slog.Any("error", err))
			return State{}
		}
		fields[k] = v
	}
	if err := rows.Err(); err != nil {
		s.logger.WarnContext(ctx, "session state read failed", slog.Any("error", err))
		return State{}
	}

	lat, haveLat := fields[FieldLatitude]
	lon, haveLon := fields[FieldLongitude]
	return stateFromFields(fields[FieldLoggedIn], lat, lon, haveLat, haveLon)
}

// ObserveLoggedIn emits the current flag and then every change made through this
// store instance.
func (s *SQLiteStore) ObserveLoggedIn(ctx context.Context) <-chan bool {
	updates := s.changes.Subscribe(ctx)
	return observe(ctx, s.LoggedIn, updates)
}

// Close detaches observers and, when the store opened the database itself, closes it.
func (s *SQLiteStore) Close() error {
	s.changes.Close()
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}
