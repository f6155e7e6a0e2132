package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverSqlite   = "sqlite"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrWatchNotFound   = errors.New("watch not found")
)

// Store persists linked OAuth sessions and Gmail watch subscriptions.
type Store struct {
	db *sqlx.DB
}

// Open connects to the database and runs migrations. driver is "postgres" or
// "sqlite"; dsn is passed to the driver unchanged.
func Open(driver, dsn string) (*Store, error) {
	if driver != DriverPostgres && driver != DriverSqlite {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	if driver == DriverSqlite {
		// sqlite serializes writers; a single connection also keeps :memory: alive.
		db.SetMaxOpenConns(1)
	}

	err = db.Ping()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	slog.Info("Successfully connected to database", "driver", driver)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveSession inserts a session or replaces the one with the same client key.
func (s *Store) SaveSession(ctx context.Context, session Session) error {
	if session.ClientKey == "" {
		return fmt.Errorf("session client key is empty")
	}
	if session.CreatedOn.IsZero() {
		session.CreatedOn = time.Now().UTC()
	}
	upsert := s.db.Rebind(`insert into sessions
			(client_key, access_token, refresh_token, email, display_name, scope, token_type, expiry, created_on)
		values
			(?, ?, ?, ?, ?, ?, ?, ?, ?)
		on conflict (client_key) do update set
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			email = excluded.email,
			display_name = excluded.display_name,
			scope = excluded.scope,
			token_type = excluded.token_type,
			expiry = excluded.expiry`)
	_, err := s.db.ExecContext(ctx, upsert, session.ClientKey, session.AccessToken, session.RefreshToken,
		session.Email, substr(session.DisplayName, 100), session.Scope, session.TokenType,
		session.Expiry.UTC(), session.CreatedOn.UTC())
	if err != nil {
		return fmt.Errorf("failed to save session for client %s: %w", session.ClientKey, err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, clientKey string) (Session, error) {
	read_row := s.db.Rebind(`select client_key, access_token, refresh_token, email, display_name,
			scope, token_type, expiry, created_on
		from sessions
		where client_key = ?`)
	session := Session{}
	err := s.db.GetContext(ctx, &session, read_row, clientKey)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("failed to get session for client %s: %w", clientKey, err)
	}
	return session, nil
}

// DeleteSession removes the session and any watch recorded for it.
func (s *Store) DeleteSession(ctx context.Context, clientKey string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, tx.Rebind(`delete from watches where client_key = ?`), clientKey); err != nil {
		return fmt.Errorf("failed to delete watch for client %s: %w", clientKey, err)
	}
	res, err := tx.ExecContext(ctx, tx.Rebind(`delete from sessions where client_key = ?`), clientKey)
	if err != nil {
		return fmt.Errorf("failed to delete session for client %s: %w", clientKey, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrSessionNotFound
	}
	return tx.Commit()
}

// SaveWatch records the latest watch subscription of a session.
func (s *Store) SaveWatch(ctx context.Context, watch Watch) error {
	if watch.CreatedOn.IsZero() {
		watch.CreatedOn = time.Now().UTC()
	}
	upsert := s.db.Rebind(`insert into watches
			(client_key, email, topic, history_id, expiration, created_on)
		values
			(?, ?, ?, ?, ?, ?)
		on conflict (client_key) do update set
			email = excluded.email,
			topic = excluded.topic,
			history_id = excluded.history_id,
			expiration = excluded.expiration,
			created_on = excluded.created_on`)
	_, err := s.db.ExecContext(ctx, upsert, watch.ClientKey, watch.Email, watch.Topic,
		watch.HistoryId, watch.Expiration.UTC(), watch.CreatedOn.UTC())
	if err != nil {
		return fmt.Errorf("failed to save watch for client %s: %w", watch.ClientKey, err)
	}
	return nil
}

// GetWatch returns the recorded watch subscription of a session.
func (s *Store) GetWatch(ctx context.Context, clientKey string) (Watch, error) {
	read_row := s.db.Rebind(`select client_key, email, topic, history_id, expiration, created_on
		from watches
		where client_key = ?`)
	watch := Watch{}
	err := s.db.GetContext(ctx, &watch, read_row, clientKey)
	if errors.Is(err, sql.ErrNoRows) {
		return Watch{}, ErrWatchNotFound
	}
	if err != nil {
		return Watch{}, fmt.Errorf("failed to get watch for client %s: %w", clientKey, err)
	}
	return watch, nil
}

// ExpiringWatches returns the watches that expire before the given time,
// soonest first.
func (s *Store) ExpiringWatches(ctx context.Context, before time.Time) ([]Watch, error) {
	read_rows := s.db.Rebind(`select client_key, email, topic, history_id, expiration, created_on
		from watches
		where expiration < ?
		order by expiration`)
	watches := []Watch{}
	err := s.db.SelectContext(ctx, &watches, read_rows, before.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list expiring watches: %w", err)
	}
	return watches, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(create_version_table)
	if err != nil {
		return fmt.Errorf("failed to create version table: %w", err)
	}
	var version int
	err = s.db.Get(&version, `select coalesce(max(id), 0) from version`)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= version {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("failed to apply migration v%d (%s): %w", m.version, m.name, err)
		}
		if _, err := s.db.Exec(s.db.Rebind(`insert into version (id) values (?)`), m.version); err != nil {
			return fmt.Errorf("failed to record migration v%d: %w", m.version, err)
		}
		slog.Info("Applied migration", "version", m.version, "name", m.name)
	}
	return nil
}

var migrations = []struct {
	version int
	name    string
	sql     string
}{
	{1, "sessions", create_sessions_table},
	{2, "watches", create_watches_table},
}

const create_version_table string = `CREATE TABLE IF NOT EXISTS version (
		  id INT PRIMARY KEY
		)`

const create_sessions_table string = `CREATE TABLE IF NOT EXISTS sessions (
	client_key VARCHAR(100) PRIMARY KEY NOT NULL,
	access_token TEXT,
	refresh_token TEXT,
	email VARCHAR(320),
	display_name VARCHAR(100),
	scope VARCHAR(500),
	token_type VARCHAR(100),
	expiry TIMESTAMP,
	created_on TIMESTAMP NOT NULL
)`

const create_watches_table string = `CREATE TABLE IF NOT EXISTS watches (
	client_key VARCHAR(100) PRIMARY KEY NOT NULL,
	email VARCHAR(320),
	topic VARCHAR(500) NOT NULL,
	history_id BIGINT,
	expiration TIMESTAMP NOT NULL,
	created_on TIMESTAMP NOT NULL
)`

func substr(s string, end int) string {
	if len(s) < end {
		return s
	}
	counter := 0
	for i := range s {
		if counter == end {
			return s[0:i]
		}
		counter++
	}
	return s
}
