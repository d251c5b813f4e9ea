package inmemory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/dvloznov/budget-tracker/internal/jobs"
)

// Store keeps job snapshots in a map. Callers never share memory with it.
type Store struct {
	mu   sync.RWMutex
	byID map[string]jobs.TrainModelJob
}

// NewStore creates an empty job store.
func NewStore() *Store {
	return &Store{byID: make(map[string]jobs.TrainModelJob)}
}

func (s *Store) SaveJob(ctx context.Context, job *jobs.TrainModelJob) error {
	if job.JobID == "" {
		return errors.New("SaveJob: job ID is required")
	}
	s.mu.Lock()
	s.byID[job.JobID] = *job
	s.mu.Unlock()
	return nil
}

func (s *Store) GetJob(ctx context.Context, jobID string) (*jobs.TrainModelJob, error) {
	s.mu.RLock()
	job, ok := s.byID[jobID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("GetJob: %w: %s", jobs.ErrJobNotFound, jobID)
	}
	return &job, nil
}

// ListJobs returns matching jobs, newest first, paged by filter.
func (s *Store) ListJobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.TrainModelJob, error) {
	s.mu.RLock()
	matched := make([]*jobs.TrainModelJob, 0, len(s.byID))
	for _, job := range s.byID {
		if filter.Matches(&job) {
			j := job
			matched = append(matched, &j)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(a, b int) bool {
		if ta, tb := matched[a].CreatedAt, matched[b].CreatedAt; !ta.Equal(tb) {
			return ta.After(tb)
		}
		return matched[a].JobID < matched[b].JobID
	})
	return filter.Page(matched), nil
}

func (s *Store) UpdateJobStatus(ctx context.Context, jobID string, status jobs.JobStatus, errorMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.byID[jobID]
	if !ok {
		return fmt.Errorf("UpdateJobStatus: %w: %s", jobs.ErrJobNotFound, jobID)
	}
	job.Status = status
	if errorMsg != "" {
		job.Error = errorMsg
	}
	s.byID[jobID] = job
	return nil
}

var _ jobs.JobStore = (*Store)(nil)
