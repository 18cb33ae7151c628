package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kurihiro0119/github-compatibility/internal/domain"
	"github.com/kurihiro0119/github-compatibility/internal/storage"
)

// sqliteStorage implements the Storage interface for SQLite
type sqliteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (storage.Storage, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	s := &sqliteStorage{db: db}
	if err := s.Migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// Migrate runs database migrations
func (s *sqliteStorage) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		platform_id INTEGER PRIMARY KEY,
		username TEXT NOT NULL,
		access_token TEXT NOT NULL,
		avatar_url TEXT,
		last_updated TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_users_username ON users(username);

	CREATE TABLE IF NOT EXISTS compatibility_cache (
		pair_key TEXT PRIMARY KEY,
		results TEXT NOT NULL,
		timestamp TIMESTAMP NOT NULL
	);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// SaveUser inserts or updates an authenticated user
func (s *sqliteStorage) SaveUser(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (platform_id, username, access_token, avatar_url, last_updated)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(platform_id) DO UPDATE SET
			username = excluded.username,
			access_token = excluded.access_token,
			avatar_url = excluded.avatar_url,
			last_updated = excluded.last_updated
	`
	_, err := s.db.ExecContext(ctx, query,
		user.PlatformID,
		user.Username,
		user.AccessToken,
		user.AvatarURL,
		user.LastUpdated.UTC(),
	)
	return err
}

// GetUser retrieves the most recently updated user with the given username
func (s *sqliteStorage) GetUser(ctx context.Context, username string) (*domain.User, error) {
	var (
		u         domain.User
		avatarURL sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT platform_id, username, access_token, avatar_url, last_updated
		FROM users WHERE username = ?
		ORDER BY last_updated DESC LIMIT 1
	`, username).Scan(&u.PlatformID, &u.Username, &u.AccessToken, &avatarURL, &u.LastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.AvatarURL = avatarURL.String

	return &u, nil
}

// GetCompatibility retrieves the cached result for a pair key
func (s *sqliteStorage) GetCompatibility(ctx context.Context, pairKey string) (*domain.CacheEntry, error) {
	var (
		results   string
		timestamp time.Time
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT results, timestamp FROM compatibility_cache WHERE pair_key = ?
	`, pairKey).Scan(&results, &timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &domain.CacheEntry{
		PairKey:   pairKey,
		Results:   []byte(results),
		Timestamp: timestamp,
	}, nil
}

// UpsertCompatibility stores a cached result, replacing any previous entry
func (s *sqliteStorage) UpsertCompatibility(ctx context.Context, entry *domain.CacheEntry) error {
	query := `
		INSERT INTO compatibility_cache (pair_key, results, timestamp)
		VALUES (?, ?, ?)
		ON CONFLICT(pair_key) DO UPDATE SET
			results = excluded.results,
			timestamp = excluded.timestamp
	`
	_, err := s.db.ExecContext(ctx, query, entry.PairKey, string(entry.Results), entry.Timestamp.UTC())
	return err
}

// Close closes the database connection
func (s *sqliteStorage) Close() error {
	return s.db.Close()
}
