package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/lib/pq"

	"github.com/kurihiro0119/github-compatibility/internal/domain"
	"github.com/kurihiro0119/github-compatibility/internal/storage"
)

// postgresStorage implements the Storage interface for PostgreSQL
type postgresStorage struct {
	db *sql.DB
}

// NewPostgresStorage creates a new PostgreSQL storage instance
func NewPostgresStorage(connStr string) (storage.Storage, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// Test connection
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &postgresStorage{db: db}
	if err := s.Migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// Migrate runs database migrations
func (s *postgresStorage) Migrate(ctx context.Context) error {
	// results is TEXT rather than JSONB so cached payloads come back byte for byte
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		platform_id BIGINT PRIMARY KEY,
		username TEXT NOT NULL,
		access_token TEXT NOT NULL,
		avatar_url TEXT,
		last_updated TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_users_username ON users(username);

	CREATE TABLE IF NOT EXISTS compatibility_cache (
		pair_key TEXT PRIMARY KEY,
		results TEXT NOT NULL,
		timestamp TIMESTAMPTZ NOT NULL
	);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// SaveUser inserts or updates an authenticated user
func (s *postgresStorage) SaveUser(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (platform_id, username, access_token, avatar_url, last_updated)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (platform_id) DO UPDATE SET
			username = EXCLUDED.username,
			access_token = EXCLUDED.access_token,
			avatar_url = EXCLUDED.avatar_url,
			last_updated = EXCLUDED.last_updated
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
func (s *postgresStorage) GetUser(ctx context.Context, username string) (*domain.User, error) {
	var (
		u         domain.User
		avatarURL sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT platform_id, username, access_token, avatar_url, last_updated
		FROM users WHERE username = $1
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
func (s *postgresStorage) GetCompatibility(ctx context.Context, pairKey string) (*domain.CacheEntry, error) {
	var (
		results   string
		timestamp time.Time
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT results, timestamp FROM compatibility_cache WHERE pair_key = $1
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
func (s *postgresStorage) UpsertCompatibility(ctx context.Context, entry *domain.CacheEntry) error {
	query := `
		INSERT INTO compatibility_cache (pair_key, results, timestamp)
		VALUES ($1, $2, $3)
		ON CONFLICT (pair_key) DO UPDATE SET
			results = EXCLUDED.results,
			timestamp = EXCLUDED.timestamp
	`
	_, err := s.db.ExecContext(ctx, query, entry.PairKey, string(entry.Results), entry.Timestamp.UTC())
	return err
}

// Close closes the database connection
func (s *postgresStorage) Close() error {
	return s.db.Close()
}
