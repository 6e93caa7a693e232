package quota

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix = "mediq:quota:"
	stateTTL       = 48 * time.Hour
	dateLayout     = "2006-01-02"
)

// RedisStore keeps one hash per user. Keys expire two days after the last
// write, by which point the daily counter would reset anyway.
type RedisStore struct {
	client redis.Cmdable
}

func NewRedisStore(client redis.Cmdable) *RedisStore {
	if client == nil {
		panic("quota: redis client required")
	}
	return &RedisStore{client: client}
}

func redisKey(userID uuid.UUID) string {
	return redisKeyPrefix + userID.String()
}

func (s *RedisStore) Load(ctx context.Context, userID uuid.UUID) (State, error) {
	fields, err := s.client.HGetAll(ctx, redisKey(userID)).Result()
	if err != nil {
		return State{}, fmt.Errorf("quota: redis load: %w", err)
	}
	var st State
	if len(fields) == 0 {
		return st, nil
	}
	st.DailyCount, _ = strconv.Atoi(fields["daily_count"])
	st.BurstCount, _ = strconv.Atoi(fields["burst_count"])
	if v := fields["last_reset_date"]; v != "" {
		if d, err := time.ParseInLocation(dateLayout, v, time.UTC); err == nil {
			st.LastResetDate = d
		}
	}
	if v := fields["burst_window_start"]; v != "" {
		if ts, err := time.Parse(time.RFC3339Nano, v); err == nil {
			st.BurstWindowStart = &ts
		}
	}
	return st, nil
}

func (s *RedisStore) Save(ctx context.Context, userID uuid.UUID, st State) error {
	key := redisKey(userID)
	values := map[string]any{
		"daily_count":        st.DailyCount,
		"burst_count":        st.BurstCount,
		"last_reset_date":    "",
		"burst_window_start": "",
	}
	if !st.LastResetDate.IsZero() {
		values["last_reset_date"] = st.LastResetDate.UTC().Format(dateLayout)
	}
	if st.BurstWindowStart != nil {
		values["burst_window_start"] = st.BurstWindowStart.UTC().Format(time.RFC3339Nano)
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, values)
		pipe.Expire(ctx, key, stateTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("quota: redis save: %w", err)
	}
	return nil
}
