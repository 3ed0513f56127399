package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MrEthical07/geoAuth/geo"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the session region in a Redis hash. Every write runs in a
// MULTI/EXEC block together with a PUBLISH of the new flag, so observers on other
// connections see changes in commit order.
type RedisStore struct {
	client  redis.UniversalClient
	key     string
	channel string
	logger  *slog.Logger
}

// NewRedisStore creates a [RedisStore]. The hash lives at "<prefix>:<region>" and
// changes are published on "<prefix>:<region>:changes". The client is owned by the
// caller; Close does not close it.
func NewRedisStore(client redis.UniversalClient, prefix, region string, logger *slog.Logger) *RedisStore {
	if region == "" {
		region = DefaultRegion
	}
	if logger == nil {
		logger = discardLogger()
	}
	key := region
	if prefix != "" {
		key = prefix + ":" + region
	}
	return &RedisStore{
		client:  client,
		key:     key,
		channel: key + ":changes",
		logger:  logger.With(slog.String("store", "redis"), slog.String("region", key)),
	}
}

// Key returns the Redis hash key holding the region.
func (s *RedisStore) Key() string {
	return s.key
}

// Login sets is_logged_in and both coordinate fields in one transaction.
func (s *RedisStore) Login(ctx context.Context, c geo.Coordinate) error {
	if !c.Valid() {
		return ErrInvalidCoordinate
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.key,
			FieldLoggedIn, formatBool(true),
			FieldLatitude, formatFloat(c.Latitude),
			FieldLongitude, formatFloat(c.Longitude),
		)
		pipe.Publish(ctx, s.channel, formatBool(true))
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Logout clears is_logged_in and removes the coordinate fields in one transaction.
func (s *RedisStore) Logout(ctx context.Context) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.key, FieldLoggedIn, formatBool(false))
		pipe.HDel(ctx, s.key, FieldLatitude, FieldLongitude)
		pipe.Publish(ctx, s.channel, formatBool(false))
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// LoggedIn reads the flag. Errors are logged and reported as false.
func (s *RedisStore) LoggedIn(ctx context.Context) bool {
	v, err := s.client.HGet(ctx, s.key, FieldLoggedIn).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.WarnContext(ctx, "session flag read failed", slog.Any("error", err))
		}
		return false
	}
	return parseBool(v)
}

// LastKnownCoordinate reads the stored coordinate, or nil.
func (s *RedisStore) LastKnownCoordinate(ctx context.Context) *geo.Coordinate {
	return s.State(ctx).Coordinate
}

// State reads all three fields with one HMGET.
func (s *RedisStore) State(ctx context.Context) State {
	vals, err := s.client.HMGet(ctx, s.key, FieldLoggedIn, FieldLatitude, FieldLongitude).Result()
	if err != nil {
		s.logger.WarnContext(ctx, "session state read failed", slog.Any("error", err))
		return State{}
	}
	loggedIn, _ := vals[0].(string)
	lat, haveLat := vals[1].(string)
	lon, haveLon := vals[2].(string)
	return stateFromFields(loggedIn, lat, lon, haveLat, haveLon)
}

// ObserveLoggedIn subscribes to the change channel, then emits the current flag
// followed by every change. If the subscription cannot be established the current
// flag is still emitted once and the channel is closed.
func (s *RedisStore) ObserveLoggedIn(ctx context.Context) <-chan bool {
	ps := s.client.Subscribe(ctx, s.channel)
	if _, err := ps.Receive(ctx); err != nil {
		s.logger.WarnContext(ctx, "session change subscription failed", slog.Any("error", err))
		_ = ps.Close()
		closed := make(chan bool)
		close(closed)
		return observe(ctx, s.LoggedIn, closed)
	}

	msgs := ps.Channel()
	updates := make(chan bool)
	go func() {
		defer close(updates)
		defer ps.Close()
		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case updates <- parseBool(msg.Payload):
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return observe(ctx, s.LoggedIn, updates)
}

// Close is a no-op; the Redis client belongs to the caller.
func (s *RedisStore) Close() error {
	return nil
}
