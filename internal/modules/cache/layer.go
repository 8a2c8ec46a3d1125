// Package cache implements the engine's two-tier Cache Layer: a hot
// in-process LRU backed by a persistent SQLite remote tier, values
// serialized with msgpack and compressed with zstd. Every failure in the
// remote tier is logged and treated as a cache miss rather than propagated,
// so a cache outage degrades the engine to recomputing factors, never to
// failing a backtest.
package cache

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/kr-backtest/internal/database"
	"github.com/aristath/kr-backtest/internal/domain"
)

// KeyForFactorTable builds the cache key for a strategy's computed factor
// table: namespaced by the requested theme universe and the strategy hash
// so two strategies that compute different factor sets (or over different
// universes) never collide, even if their hash inputs otherwise overlap.
// themes is the strategy's target_themes list; an empty list keys as "all".
func KeyForFactorTable(themes []string, strategyHash string) string {
	return fmt.Sprintf("factors:%s:%s", themeKey(themes), strategyHash)
}

// themeKey canonicalizes a target_themes list into its cache-key form: the
// sorted, comma-joined theme list, or "all" when unrestricted.
func themeKey(themes []string) string {
	if len(themes) == 0 {
		return "all"
	}
	sorted := append([]string(nil), themes...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}

// KeyForUniverse builds the cache key for a point-in-time universe snapshot.
func KeyForUniverse(market, asOf string) string {
	return fmt.Sprintf("universe:%s:%s", market, asOf)
}

// KeyForPriceWindow builds the cache key for one stock's loaded price
// window.
func KeyForPriceWindow(code, start, end string) string {
	return fmt.Sprintf("prices:%s:%s:%s", code, start, end)
}

type Layer struct {
	lru        *lru
	remote     *remoteTier
	encoder    *zstd.Encoder
	decoder    *zstd.Decoder
	log        zerolog.Logger
}

// Config controls the in-process tier's size; the remote tier's capacity is
// bounded only by disk.
type Config struct {
	LRUCapacity int
}

func New(db *database.DB, cfg Config, log zerolog.Logger) (*Layer, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return &Layer{
		lru:     newLRU(cfg.LRUCapacity),
		remote:  newRemoteTier(db),
		encoder: enc,
		decoder: dec,
		log:     log.With().Str("component", "cache").Logger(),
	}, nil
}

var _ domain.Cache = (*Layer)(nil)

// Get checks the LRU first, then the remote tier, decompressing and
// decoding into dest (a pointer) on a hit. Any remote-tier error is logged
// and reported as a miss.
func (l *Layer) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if raw, ok := l.lru.get(key); ok {
		if err := l.decode(raw, dest); err != nil {
			return false, nil
		}
		return true, nil
	}

	raw, ok, err := l.remote.get(ctx, key)
	if err != nil {
		l.log.Warn().Err(err).Str("key", key).Msg("remote cache tier read failed, treating as miss")
		return false, nil
	}
	if !ok {
		return false, nil
	}

	decompressed, err := l.decoder.DecodeAll(raw, nil)
	if err != nil {
		l.log.Warn().Err(err).Str("key", key).Msg("failed to decompress cache entry, treating as miss")
		return false, nil
	}
	if err := l.decode(decompressed, dest); err != nil {
		l.log.Warn().Err(err).Str("key", key).Msg("failed to decode cache entry, treating as miss")
		return false, nil
	}

	l.lru.set(key, decompressed)
	return true, nil
}

// Set encodes value with msgpack, compresses it with zstd, and writes it to
// both tiers. A remote-tier write failure is logged but does not fail the
// call; the value is still available from the in-process tier for this
// process's lifetime.
func (l *Layer) Set(ctx context.Context, key string, value interface{}, ttlSeconds int) error {
	encoded, err := msgpack.Marshal(value)
	if err != nil {
		return domain.WrapError(domain.ErrInternal, "cache_encode_failed", "failed to encode cache value", err)
	}

	l.lru.set(key, encoded)

	compressed := l.encoder.EncodeAll(encoded, nil)
	if err := l.remote.set(ctx, key, compressed, ttlSeconds); err != nil {
		l.log.Warn().Err(err).Str("key", key).Msg("remote cache tier write failed")
	}
	return nil
}

// Delete removes key from both tiers.
func (l *Layer) Delete(ctx context.Context, key string) error {
	l.lru.delete(key)
	if err := l.remote.delete(ctx, key); err != nil {
		l.log.Warn().Err(err).Str("key", key).Msg("remote cache tier delete failed")
	}
	return nil
}

func (l *Layer) decode(raw []byte, dest interface{}) error {
	return msgpack.NewDecoder(bytes.NewReader(raw)).Decode(dest)
}
