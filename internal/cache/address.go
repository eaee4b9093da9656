// Package cache provides a Redis read-through layer in front of an address
// repository. Redis failures never fail a request: they are logged and the
// call falls through to the wrapped store.
//
// Each address has a generation counter next to its entry. Writers bump it
// when they invalidate, and a reader only fills the cache if the counter is
// unchanged since before it read the store, so a slow reader cannot put back
// a row that a concurrent update already replaced.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/AddressBook/internal/domain"
	"github.com/utafrali/AddressBook/internal/geo"
	"github.com/utafrali/AddressBook/internal/repository"
)

const keyPrefix = "address:"

// Key returns the cache key for an address id.
func Key(id int64) string {
	return keyPrefix + strconv.FormatInt(id, 10)
}

// GenerationKey returns the key of the invalidation counter for an address id.
func GenerationKey(id int64) string {
	return Key(id) + ":gen"
}

// fillScript sets KEYS[1] only while KEYS[2] still holds ARGV[1] ("" when
// absent). ARGV[3] is the entry TTL in milliseconds.
var fillScript = redis.NewScript(`
local gen = redis.call("GET", KEYS[2]) or ""
if gen ~= ARGV[1] then
	return 0
end
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
return 1
`)

// AddressRepository decorates a repository.AddressRepository with a
// per-address Redis cache.
type AddressRepository struct {
	next   repository.AddressRepository
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

var _ repository.AddressRepository = (*AddressRepository)(nil)

// NewAddressRepository wraps next with a cache whose entries expire after ttl.
func NewAddressRepository(next repository.AddressRepository, client *redis.Client, ttl time.Duration, logger *slog.Logger) *AddressRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &AddressRepository{next: next, client: client, ttl: ttl, logger: logger}
}

// Create writes through and caches the new row unless it was already
// invalidated by the time the write returned.
func (r *AddressRepository) Create(ctx context.Context, a *domain.Address) error {
	if err := r.next.Create(ctx, a); err != nil {
		return err
	}
	r.fill(ctx, a, "")
	return nil
}

// GetByID serves from Redis when possible and populates it on a miss.
func (r *AddressRepository) GetByID(ctx context.Context, id int64) (*domain.Address, error) {
	if a, ok := r.load(ctx, id); ok {
		return a, nil
	}

	gen, genOK := r.generation(ctx, id)
	a, err := r.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if genOK {
		r.fill(ctx, a, gen)
	}
	return a, nil
}

func (r *AddressRepository) List(ctx context.Context, filter repository.AddressFilter) ([]domain.Address, int, error) {
	return r.next.List(ctx, filter)
}

func (r *AddressRepository) ListWithinBox(ctx context.Context, box geo.Box) ([]domain.Address, error) {
	return r.next.ListWithinBox(ctx, box)
}

func (r *AddressRepository) Update(ctx context.Context, a *domain.Address) error {
	err := r.next.Update(ctx, a)
	r.Invalidate(ctx, a.ID)
	return err
}

func (r *AddressRepository) Delete(ctx context.Context, id int64) error {
	err := r.next.Delete(ctx, id)
	r.Invalidate(ctx, id)
	return err
}

// Ping checks the wrapped store only; the cache is optional.
func (r *AddressRepository) Ping(ctx context.Context) error {
	return r.next.Ping(ctx)
}

// Invalidate bumps the generation of id and drops its cached entry. The
// counter lives as long as an entry would, which outlasts any in-flight fill.
func (r *AddressRepository) Invalidate(ctx context.Context, id int64) {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, GenerationKey(id))
		pipe.PExpire(ctx, GenerationKey(id), r.ttl)
		pipe.Del(ctx, Key(id))
		return nil
	})
	if err != nil {
		r.logger.WarnContext(ctx, "redis invalidate address failed",
			slog.Int64("address_id", id),
			slog.String("error", err.Error()),
		)
	}
}

func (r *AddressRepository) load(ctx context.Context, id int64) (*domain.Address, bool) {
	data, err := r.client.Get(ctx, Key(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.WarnContext(ctx, "redis get address failed",
				slog.Int64("address_id", id),
				slog.String("error", err.Error()),
			)
		}
		return nil, false
	}

	var a domain.Address
	if err := json.Unmarshal(data, &a); err != nil {
		r.logger.WarnContext(ctx, "discarding corrupt cache entry",
			slog.Int64("address_id", id),
			slog.String("error", err.Error()),
		)
		r.Invalidate(ctx, id)
		return nil, false
	}
	return &a, true
}

// generation returns the current counter for id, "" when none exists. The
// second result is false when Redis could not be read.
func (r *AddressRepository) generation(ctx context.Context, id int64) (string, bool) {
	gen, err := r.client.Get(ctx, GenerationKey(id)).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return "", true
	case err != nil:
		r.logger.WarnContext(ctx, "redis get generation failed",
			slog.Int64("address_id", id),
			slog.String("error", err.Error()),
		)
		return "", false
	}
	return gen, true
}

func (r *AddressRepository) fill(ctx context.Context, a *domain.Address, gen string) {
	data, err := json.Marshal(a)
	if err == nil {
		keys := []string{Key(a.ID), GenerationKey(a.ID)}
		err = fillScript.Run(ctx, r.client, keys, gen, data, r.ttl.Milliseconds()).Err()
	}
	if err != nil {
		r.logger.WarnContext(ctx, "redis set address failed",
			slog.Int64("address_id", a.ID),
			slog.String("error", err.Error()),
		)
	}
}
