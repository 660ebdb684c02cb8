package identity

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/kozaktomas/face-gate/internal/config"
)

// Store resolves the known-identity set through a fallback chain:
// MySQL first, then the local cache file, then an empty set. A refresh
// never fails outright; the engine degrades to "no known faces" instead
// of aborting the capture loop.
type Store struct {
	cfg        config.DatabaseConfig
	cachePath  string
	cacheFirst bool
	driverName string

	db   *sql.DB
	dbMu sync.Mutex

	mu  sync.RWMutex
	set KnownSet
}

// NewStore creates a store. cacheFirst makes non-forced refreshes try
// the local cache before touching the database, for offline-leaning
// deployments.
func NewStore(cfg config.DatabaseConfig, cachePath string, cacheFirst bool) *Store {
	return &Store{
		cfg:        cfg,
		cachePath:  cachePath,
		cacheFirst: cacheFirst,
		driverName: "mysql",
	}
}

// Snapshot returns the current known set. The returned slice is never
// mutated after publication, so callers may hold it across frames.
func (s *Store) Snapshot() KnownSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.set
}

// Load performs the initial resolution of the known set. It is the same
// operation as a non-forced Refresh.
func (s *Store) Load(ctx context.Context) KnownSet {
	return s.Refresh(ctx, false)
}

// Refresh rebuilds the known set and publishes it atomically. With
// forceOnline the cache-first shortcut is skipped and the database is
// always attempted first. Errors are logged, never returned: the caller
// always gets a usable (possibly empty) set.
func (s *Store) Refresh(ctx context.Context, forceOnline bool) KnownSet {
	if !forceOnline && s.cacheFirst {
		if set, err := LoadCache(s.cachePath); err == nil {
			log.Printf("Loaded %d known face(s) from local cache", len(set))
			s.publish(set)
			return set
		}
	}

	set := s.loadOnline(ctx)
	s.publish(set)
	return set
}

// SyncOnline loads the known set straight from the database and
// rewrites the cache on success. Unlike Refresh, errors are returned
// instead of falling back, so callers can report what actually
// happened to the cache file.
func (s *Store) SyncOnline(ctx context.Context) (KnownSet, error) {
	if !s.cfg.Configured() {
		return nil, fmt.Errorf("database credentials are not fully configured")
	}

	set, err := s.queryIdentities(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading encodings from MySQL: %w", err)
	}

	s.publish(set)
	if len(set) == 0 {
		return set, nil
	}

	if err := SaveCache(s.cachePath, set); err != nil {
		return set, fmt.Errorf("saving face cache: %w", err)
	}
	return set, nil
}

// Close releases the database pool if one was opened.
func (s *Store) Close() error {
	s.dbMu.Lock()
	defer s.dbMu.Unlock()
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		if err != nil {
			return fmt.Errorf("closing database connection: %w", err)
		}
	}
	return nil
}

// publish swaps in a new snapshot. Readers holding the previous slice
// keep a fully consistent view.
func (s *Store) publish(set KnownSet) {
	s.mu.Lock()
	s.set = set
	s.mu.Unlock()
}

// loadOnline runs the database tier of the fallback chain, falling back
// to the cache and finally to an empty set.
func (s *Store) loadOnline(ctx context.Context) KnownSet {
	if !s.cfg.Configured() {
		log.Printf("Database credentials missing - attempting to use local cache")
		return s.loadCacheOrEmpty()
	}

	set, err := s.queryIdentities(ctx)
	if err != nil {
		log.Printf("Error loading encodings from MySQL: %v", err)
		return s.loadCacheOrEmpty()
	}

	log.Printf("Loaded %d known face(s) from MySQL", len(set))
	if len(set) > 0 {
		if err := SaveCache(s.cachePath, set); err != nil {
			log.Printf("Failed to save face cache: %v", err)
		}
	}
	return set
}

func (s *Store) loadCacheOrEmpty() KnownSet {
	set, err := LoadCache(s.cachePath)
	if err != nil {
		log.Printf("No local cache available; returning empty encoding set")
		return KnownSet{}
	}
	log.Printf("Loaded %d known face(s) from local cache", len(set))
	return set
}

// pool returns the connection pool, opening it on first use.
func (s *Store) pool(ctx context.Context) (*sql.DB, error) {
	s.dbMu.Lock()
	defer s.dbMu.Unlock()

	if s.db != nil {
		return s.db, nil
	}

	db, err := sql.Open(s.driverName, s.cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	s.db = db
	return s.db, nil
}

// queryIdentities reads every enrollment row and decodes its embedding
// blob. Rows with a malformed blob are skipped with a warning rather
// than failing the whole load.
func (s *Store) queryIdentities(ctx context.Context) (KnownSet, error) {
	db, err := s.pool(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT banner_id, first_name, last_name, encoding FROM users`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var set KnownSet
	for rows.Next() {
		var id string
		// Name columns are nullable in the enrollment table.
		var firstName, lastName sql.NullString
		var raw []byte
		if err := rows.Scan(&id, &firstName, &lastName, &raw); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		embedding, err := DecodeEmbedding(raw, config.EmbeddingDim)
		if err != nil {
			log.Printf("Skipping banner_id=%s due to invalid encoding: %v", id, err)
			continue
		}

		set = append(set, Identity{
			ID:          id,
			DisplayName: joinName(firstName.String, lastName.String),
			Embedding:   embedding,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return set, nil
}

func joinName(first, last string) string {
	switch {
	case first == "":
		return last
	case last == "":
		return first
	default:
		return first + " " + last
	}
}
