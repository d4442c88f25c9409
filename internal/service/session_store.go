package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tuneedit/api/internal/model"
)

// Redis keys
const (
	sessionKeyPrefix = "session:"
	jobKeyPrefix     = "job:"
	maxUpdateRetries = 5
)

func sessionKey(id string) string    { return sessionKeyPrefix + id }
func submittingKey(id string) string { return sessionKeyPrefix + id + ":submitting" }
func pickKey(id string) string       { return sessionKeyPrefix + id + ":pick" }
func expandedKey(id string) string   { return sessionKeyPrefix + id + ":expanded" }
func jobKey(id string) string        { return jobKeyPrefix + id }

// RedisSessionStore keeps sessions, their flags and submission jobs in redis.
// Everything expires with the session TTL.
type RedisSessionStore struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewRedisSessionStore(redisClient *redis.Client, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{redis: redisClient, ttl: ttl}
}

// TTL is how long a session lives after its last write.
func (s *RedisSessionStore) TTL() time.Duration {
	return s.ttl
}

func (s *RedisSessionStore) Save(ctx context.Context, sess *model.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, sessionKey(sess.ID), data, s.ttl).Err()
}

func (s *RedisSessionStore) Load(ctx context.Context, id string) (*model.Session, error) {
	data, err := s.redis.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	var sess model.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &sess, nil
}

// Update applies fn to the stored session under optimistic locking. If fn
// returns an error nothing is written.
func (s *RedisSessionStore) Update(ctx context.Context, id string, fn func(*model.Session) error) (*model.Session, error) {
	return s.update(ctx, id, 0, fn)
}

// UpdateForPick is Update that only commits while pick is still the latest
// thumbnail pick of the session. Otherwise it returns ErrStaleValidation.
func (s *RedisSessionStore) UpdateForPick(ctx context.Context, id string, pick int64, fn func(*model.Session) error) (*model.Session, error) {
	return s.update(ctx, id, pick, fn)
}

func (s *RedisSessionStore) update(ctx context.Context, id string, pick int64, fn func(*model.Session) error) (*model.Session, error) {
	var result *model.Session

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, sessionKey(id)).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrSessionNotFound
			}
			return err
		}

		if pick > 0 {
			current, err := tx.Get(ctx, pickKey(id)).Int64()
			if err != nil && !errors.Is(err, redis.Nil) {
				return err
			}
			if current != pick {
				return ErrStaleValidation
			}
		}

		var sess model.Session
		if err := json.Unmarshal(data, &sess); err != nil {
			return fmt.Errorf("failed to unmarshal session: %w", err)
		}
		if err := fn(&sess); err != nil {
			return err
		}
		out, err := json.Marshal(&sess)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, sessionKey(id), out, s.ttl)
			return nil
		})
		if err == nil {
			result = &sess
		}
		return err
	}

	for i := 0; i < maxUpdateRetries; i++ {
		err := s.redis.Watch(ctx, txf, sessionKey(id), pickKey(id))
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	}
	return nil, fmt.Errorf("session %s: too much contention", id)
}

// NextPick starts a new thumbnail pick and returns its generation.
func (s *RedisSessionStore) NextPick(ctx context.Context, id string) (int64, error) {
	pipe := s.redis.TxPipeline()
	incr := pipe.Incr(ctx, pickKey(id))
	pipe.Expire(ctx, pickKey(id), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// AcquireSubmitting sets the submitting flag. It reports false when the flag
// is already held. hold must outlast the longest possible submission.
func (s *RedisSessionStore) AcquireSubmitting(ctx context.Context, id string, hold time.Duration) (bool, error) {
	return s.redis.SetNX(ctx, submittingKey(id), time.Now().Unix(), hold).Result()
}

func (s *RedisSessionStore) ReleaseSubmitting(ctx context.Context, id string) error {
	return s.redis.Del(ctx, submittingKey(id)).Err()
}

func (s *RedisSessionStore) IsSubmitting(ctx context.Context, id string) (bool, error) {
	n, err := s.redis.Exists(ctx, submittingKey(id)).Result()
	return n > 0, err
}

// MarkExpanded reports true the first time it is called for a session.
func (s *RedisSessionStore) MarkExpanded(ctx context.Context, id string) (bool, error) {
	return s.redis.SetNX(ctx, expandedKey(id), 1, s.ttl).Result()
}

func (s *RedisSessionStore) SaveJob(ctx context.Context, job *model.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, jobKey(job.ID), data, s.ttl).Err()
}

func (s *RedisSessionStore) LoadJob(ctx context.Context, jobID string) (*model.Job, error) {
	data, err := s.redis.Get(ctx, jobKey(jobID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}

	var job model.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// Ping checks the redis connection.
func (s *RedisSessionStore) Ping(ctx context.Context) error {
	return s.redis.Ping(ctx).Err()
}
