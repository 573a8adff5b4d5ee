package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fieldservice/backend/internal/domain/shared"
	"github.com/fieldservice/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
)

// NewRedisClient connects to Redis and verifies the connection
func NewRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// RedisRecordStore implements shared.RecordStore with one string key per
// collection and a companion counter key holding the collection version.
type RedisRecordStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisRecordStore creates a record store on client. Keys are namespaced by keyPrefix.
func NewRedisRecordStore(client redis.UniversalClient, keyPrefix string) *RedisRecordStore {
	if keyPrefix == "" {
		keyPrefix = "fieldservice"
	}
	return &RedisRecordStore{client: client, keyPrefix: keyPrefix}
}

func (s *RedisRecordStore) dataKey(c shared.Collection) string {
	return s.keyPrefix + ":collection:" + string(c)
}

func (s *RedisRecordStore) versionKey(c shared.Collection) string {
	return s.keyPrefix + ":version:" + string(c)
}

// Load returns the collection payload, or nil when it was never saved
func (s *RedisRecordStore) Load(ctx context.Context, collection shared.Collection) (json.RawMessage, error) {
	raw, _, err := s.loadVersioned(ctx, collection)
	return raw, err
}

// loadVersioned reads payload and version atomically
func (s *RedisRecordStore) loadVersioned(ctx context.Context, collection shared.Collection) (json.RawMessage, int64, error) {
	var data, version *redis.StringCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		data = pipe.Get(ctx, s.dataKey(collection))
		version = pipe.Get(ctx, s.versionKey(collection))
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, 0, fmt.Errorf("load collection %s: %w", collection, err)
	}

	v, err := version.Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, 0, fmt.Errorf("load collection %s version: %w", collection, err)
	}
	raw, err := data.Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, v, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("load collection %s: %w", collection, err)
	}
	return json.RawMessage(raw), v, nil
}

// Save replaces the collection payload and bumps its version
func (s *RedisRecordStore) Save(ctx context.Context, collection shared.Collection, data json.RawMessage) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		s.queueWrite(ctx, pipe, collection, data)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save collection %s: %w", collection, err)
	}
	return nil
}

func (s *RedisRecordStore) queueWrite(ctx context.Context, pipe redis.Pipeliner, collection shared.Collection, data json.RawMessage) {
	pipe.Set(ctx, s.dataKey(collection), []byte(data), 0)
	pipe.Incr(ctx, s.versionKey(collection))
}

// RedisTransactionScope buffers the writes of a unit of work and flushes
// them in one MULTI/EXEC. Collections read during the unit of work are
// watched; if any changed meanwhile nothing is written and the scope
// returns CONCURRENCY_CONFLICT.
type RedisTransactionScope struct {
	store *RedisRecordStore
}

// NewRedisTransactionScope creates a scope over store
func NewRedisTransactionScope(store *RedisRecordStore) *RedisTransactionScope {
	return &RedisTransactionScope{store: store}
}

// Execute runs fn against a buffered view of the store and commits its writes atomically
func (s *RedisTransactionScope) Execute(ctx context.Context, fn func(tx shared.RecordStore) error) error {
	work := &redisUnitOfWork{
		store:    s.store,
		versions: make(map[shared.Collection]int64),
		writes:   make(map[shared.Collection]json.RawMessage),
	}
	if err := fn(work); err != nil {
		return err
	}
	if len(work.order) == 0 {
		return nil
	}
	return work.commit(ctx)
}

type redisUnitOfWork struct {
	store    *RedisRecordStore
	versions map[shared.Collection]int64
	writes   map[shared.Collection]json.RawMessage
	order    []shared.Collection
}

func (w *redisUnitOfWork) Load(ctx context.Context, collection shared.Collection) (json.RawMessage, error) {
	if raw, ok := w.writes[collection]; ok {
		return append(json.RawMessage(nil), raw...), nil
	}
	raw, version, err := w.store.loadVersioned(ctx, collection)
	if err != nil {
		return nil, err
	}
	if _, ok := w.versions[collection]; !ok {
		w.versions[collection] = version
	}
	return raw, nil
}

func (w *redisUnitOfWork) Save(_ context.Context, collection shared.Collection, data json.RawMessage) error {
	if _, ok := w.writes[collection]; !ok {
		w.order = append(w.order, collection)
	}
	w.writes[collection] = append(json.RawMessage(nil), data...)
	return nil
}

func (w *redisUnitOfWork) commit(ctx context.Context) error {
	watched := make([]string, 0, len(w.versions))
	for c := range w.versions {
		watched = append(watched, w.store.versionKey(c))
	}

	txf := func(tx *redis.Tx) error {
		for c, expected := range w.versions {
			current, err := tx.Get(ctx, w.store.versionKey(c)).Int64()
			if err != nil && !errors.Is(err, redis.Nil) {
				return fmt.Errorf("check collection %s version: %w", c, err)
			}
			if current != expected {
				return conflict(c)
			}
		}
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, c := range w.order {
				w.store.queueWrite(ctx, pipe, c, w.writes[c])
			}
			return nil
		})
		return err
	}

	err := w.store.client.Watch(ctx, txf, watched...)
	if errors.Is(err, redis.TxFailedErr) {
		return conflict(w.order[0])
	}
	return err
}

func conflict(collection shared.Collection) error {
	return shared.NewDomainError(shared.ErrConcurrencyConflict.Code,
		fmt.Sprintf("Collection %s was modified by another operation, retry the request", collection))
}

var (
	_ shared.RecordStore      = (*RedisRecordStore)(nil)
	_ shared.TransactionScope = (*RedisTransactionScope)(nil)
)
