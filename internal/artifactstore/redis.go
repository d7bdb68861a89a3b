package artifactstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/AdguardTeam/AdGuardCB/internal/blocker"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/redisutil"
	"github.com/gomodule/redigo/redis"
)

// Redis transaction commands.
const (
	cmdMULTI = "MULTI"
	cmdEXEC  = "EXEC"
)

// Redis is an [Interface] implementation that stores the conversion results in
// Redis, one key per category.  All keys of a save are set within a single
// transaction.
//
// Note that Redis, by convention, uses colon ":" character to delimit key
// namespaces.
type Redis struct {
	logger    *slog.Logger
	metrics   Metrics
	pool      redisutil.Pool
	keyPrefix string
}

// RedisConfig is the configuration structure for [Redis].
type RedisConfig struct {
	// Logger is used for logging the operations of the storage.  It must not
	// be nil.
	Logger *slog.Logger

	// Metrics is used for the collection of the storage statistics.  It must
	// not be nil.
	Metrics Metrics

	// Pool maintains a pool of Redis connections.  It must not be nil.
	Pool redisutil.Pool

	// KeyPrefix is the prefix of all keys.  It should not be empty.
	KeyPrefix string
}

// NewRedis returns a new properly initialized *Redis.  c must not be nil.
func NewRedis(c *RedisConfig) (s *Redis) {
	return &Redis{
		logger:    c.Logger,
		metrics:   c.Metrics,
		pool:      c.Pool,
		keyPrefix: c.KeyPrefix,
	}
}

// type check
var _ Interface = (*Redis)(nil)

// key returns the key for the category.
func (s *Redis) key(c blocker.Category) (k string) {
	return s.keyPrefix + ":artifact:" + c.String()
}

// Save implements the [Interface] interface for *Redis.
func (s *Redis) Save(ctx context.Context, results blocker.Results) (err error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveSave(ctx, time.Since(start).Seconds(), err)
		err = errors.Annotate(err, "saving artifacts: %w")
	}()

	cats := sortedCategories(results)
	if len(cats) == 0 {
		return nil
	}

	args := make([][]byte, 0, len(cats))
	for _, c := range cats {
		var b []byte
		b, err = json.Marshal(results[c])
		if err != nil {
			return fmt.Errorf("encoding %s: %w", c, err)
		}

		args = append(args, b)
	}

	conn, err := s.pool.Get(ctx)
	if err != nil {
		return fmt.Errorf("getting from pool: %w", err)
	}
	defer func() { err = errors.WithDeferred(err, conn.Close()) }()

	err = conn.Send(cmdMULTI)
	if err != nil {
		return fmt.Errorf("multi command: %w", err)
	}

	for i, c := range cats {
		err = conn.Send(redisutil.CmdSET, s.key(c), args[i])
		if err != nil {
			return fmt.Errorf("set command for %s: %w", c, err)
		}
	}

	_, err = conn.Do(cmdEXEC)
	if err != nil {
		return fmt.Errorf("exec command: %w", err)
	}

	s.logger.DebugContext(ctx, "saved artifacts", "categories", len(cats))

	return nil
}

// Load implements the [Interface] interface for *Redis.
func (s *Redis) Load(
	ctx context.Context,
	c blocker.Category,
) (res *blocker.ConversionResult, err error) {
	defer func() { err = errors.Annotate(err, "loading %s artifact: %w", c) }()

	conn, err := s.pool.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting from pool: %w", err)
	}
	defer func() { err = errors.WithDeferred(err, conn.Close()) }()

	b, err := redis.Bytes(conn.Do(redisutil.CmdGET, s.key(c)))
	switch {
	case err == nil:
		// Go on.
	case errors.Is(err, redis.ErrNil):
		return nil, ErrNotFound
	default:
		return nil, fmt.Errorf("get command: %w", err)
	}

	res = &blocker.ConversionResult{}
	err = json.Unmarshal(b, res)
	if err != nil {
		return nil, fmt.Errorf("decoding: %w", err)
	}

	return res, nil
}
