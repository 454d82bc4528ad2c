package store

import (
	"context"
	"encoding/json"

	"github.com/akolanti/PageIndexAPI/internal/config"
	"github.com/akolanti/PageIndexAPI/internal/data/redisStore"
	"github.com/akolanti/PageIndexAPI/internal/domain/jobModel"
	"github.com/akolanti/PageIndexAPI/pkg/logger_i"
)

const jobKeyPrefix = "pageindex:job:"

type RedisJobStore struct {
	store  *redisStore.Store
	logger *logger_i.Logger
}

func NewRedisJobStore(rs *redisStore.Store) *RedisJobStore {
	return &RedisJobStore{
		store:  rs,
		logger: logger_i.NewLogger("redis_job_store"),
	}
}

func (s *RedisJobStore) SaveJob(ctx context.Context, job jobModel.Job) error {
	log := s.logger.WithContext(ctx).With("job_id", job.Id)
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}

	if err = s.store.Set(ctx, jobKeyPrefix+job.Id, data, config.RedisJobStoreTTL); err != nil {
		log.Error("job_save_failed", "error", err)
		return err
	}
	log.Debug("job_saved", "status", job.Status, "step", job.CurrentStep)
	return nil
}

func (s *RedisJobStore) GetJob(ctx context.Context, jobId string) (jobModel.Job, bool) {
	var job jobModel.Job
	log := s.logger.WithContext(ctx).With("job_id", jobId)
	val, err := s.store.Get(ctx, jobKeyPrefix+jobId)
	if s.store.IsNil(err) {
		return job, false
	} else if err != nil {
		log.Error("job_get_failed", "error", err)
		return job, false
	}

	if err = json.Unmarshal([]byte(val), &job); err != nil {
		log.Error("job_unmarshal_failed", "error", err)
		return job, false
	}
	return job, true
}

func (s *RedisJobStore) DeleteJob(ctx context.Context, jobID string) {
	if err := s.store.Del(ctx, jobKeyPrefix+jobID); err != nil {
		s.logger.WithContext(ctx).Error("job_delete_failed", "job_id", jobID, "error", err)
		return
	}
	s.logger.WithContext(ctx).Debug("job_deleted", "job_id", jobID)
}
