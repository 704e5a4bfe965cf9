package store

import (
	"context"
	"encoding/json"
	"time"

	"mytutor_backend/internal/model"
	"mytutor_backend/internal/util"

	"github.com/go-redis/redis/v8"
)

const (
	processingPrefix = "mytutor:processing:"
	trainingPrefix   = "mytutor:training:"
	busyPrefix       = "mytutor:busy:"

	sessionTTL = 24 * time.Hour
	busyTTL    = 5 * time.Minute
)

// RedisStore 跨实例共享的会话存储，互斥标志用 SET NX 实现
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (r *RedisStore) GetProcessing(ctx context.Context, id string) (*model.ProcessingSession, error) {
	data, err := r.rdb.Get(ctx, processingPrefix+id).Bytes()
	if err == redis.Nil {
		return nil, util.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	var s model.ProcessingSession
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *RedisStore) PutProcessing(ctx context.Context, s *model.ProcessingSession) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, processingPrefix+s.ID, data, sessionTTL).Err()
}

func (r *RedisStore) DeleteProcessing(ctx context.Context, id string) error {
	return r.rdb.Del(ctx, processingPrefix+id).Err()
}

func (r *RedisStore) GetTraining(ctx context.Context, id string) (*model.TrainingSession, error) {
	data, err := r.rdb.Get(ctx, trainingPrefix+id).Bytes()
	if err == redis.Nil {
		return nil, util.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	var s model.TrainingSession
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *RedisStore) PutTraining(ctx context.Context, s *model.TrainingSession) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, trainingPrefix+s.ID, data, sessionTTL).Err()
}

func (r *RedisStore) DeleteTraining(ctx context.Context, id string) error {
	return r.rdb.Del(ctx, trainingPrefix+id).Err()
}

func (r *RedisStore) TryAcquire(ctx context.Context, key string) (func(), error) {
	ok, err := r.rdb.SetNX(ctx, busyPrefix+key, "1", busyTTL).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, util.ErrOperationInFlight
	}
	release := func() {
		r.rdb.Del(context.Background(), busyPrefix+key)
	}
	return release, nil
}
