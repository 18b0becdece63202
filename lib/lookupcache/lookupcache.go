// Package lookupcache keeps hamqth query results in sqlite, fronted by an
// in-memory LRU.
package lookupcache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"qthlookup/lib/lookupcache/db"
	"qthlookup/lib/telemetry"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	_ "modernc.org/sqlite"
)

var tracer = telemetry.Tracer("qthlookup.lib.lookupcache")

const (
	DefaultTTL = 24 * time.Hour
	memorySize = 256
)

type Cache struct {
	db     *sql.DB
	memory *expirable.LRU[string, map[string]string]
	ttl    time.Duration
	now    func() time.Time
}

// Open opens (or creates) the cache database at path, ":memory:" keeps
// everything in memory.
func Open(path string, ttl time.Duration) (*Cache, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	sqlite, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// a single connection, otherwise every connection to ":memory:" gets its
	// own database
	sqlite.SetMaxOpenConns(1)
	if path != ":memory:" {
		_, err = sqlite.Exec("PRAGMA journal_mode=WAL")
		if err != nil {
			sqlite.Close()
			return nil, err
		}
	}
	_, err = sqlite.Exec(db.Schema)
	if err != nil {
		sqlite.Close()
		return nil, err
	}

	return &Cache{
		db:     sqlite,
		memory: expirable.NewLRU[string, map[string]string](memorySize, nil, ttl),
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}

// Get never fails, storage errors are logged and reported as a miss.
func (c *Cache) Get(ctx context.Context, key string) (map[string]string, bool) {
	ctx, span := tracer.Start(ctx, "cache:get")
	defer span.End()
	span.SetAttributes(attribute.String("lookupcache.key", key))

	if fields, hit := c.memory.Get(key); hit {
		span.SetAttributes(attribute.String("lookupcache.layer", "memory"))
		return fields, true
	}

	var serialized string
	var fetchedAt int64
	err := c.db.QueryRowContext(
		ctx,
		"select fields, fetched_at from lookup where key = ?",
		key,
	).Scan(&serialized, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read cached lookup")
		slog.WarnContext(ctx, "failed to read cached lookup", "key", key, "err", err)
		return nil, false
	}

	age := c.now().Sub(time.Unix(fetchedAt, 0))
	if age > c.ttl {
		return nil, false
	}

	var fields map[string]string
	err = json.Unmarshal([]byte(serialized), &fields)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to deserialize cached lookup")
		slog.WarnContext(ctx, "failed to deserialize cached lookup", "key", key, "err", err)
		return nil, false
	}

	span.SetAttributes(attribute.String("lookupcache.layer", "sqlite"))
	c.memory.Add(key, fields)
	return fields, true
}

func (c *Cache) Put(ctx context.Context, key string, fields map[string]string) {
	ctx, span := tracer.Start(ctx, "cache:put")
	defer span.End()
	span.SetAttributes(attribute.String("lookupcache.key", key))

	c.memory.Add(key, fields)

	serialized, err := json.Marshal(fields)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to serialize lookup")
		slog.WarnContext(ctx, "failed to serialize lookup", "key", key, "err", err)
		return
	}
	_, err = c.db.ExecContext(
		ctx,
		"insert or replace into lookup (key, fields, fetched_at) values (?, ?, ?)",
		key, string(serialized), c.now().Unix(),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to store lookup")
		slog.WarnContext(ctx, "failed to store lookup", "key", key, "err", err)
	}
}

// Purge removes every cached lookup.
func (c *Cache) Purge(ctx context.Context) error {
	c.memory.Purge()
	_, err := c.db.ExecContext(ctx, "delete from lookup")
	return err
}
