package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/replypilot/pkg/models"
)

// ErrUnknownJob is returned when polling a call id that was never
// spawned.
var ErrUnknownJob = errors.New("unknown job call id")

// ResultStore records the lifecycle of spawned jobs: a pending row at
// spawn time, completed with a JSON payload by the worker.
type ResultStore interface {
	MarkPending(ctx context.Context, callID string) error
	Complete(ctx context.Context, callID string, result []byte) error
	Get(ctx context.Context, callID string) (models.JobResult, error)
}

// PostgresResultStore persists job results in the job_results table.
type PostgresResultStore struct {
	pool *pgxpool.Pool
}

func NewPostgresResultStore(pool *pgxpool.Pool) *PostgresResultStore {
	return &PostgresResultStore{pool: pool}
}

func (s *PostgresResultStore) MarkPending(ctx context.Context, callID string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO job_results (call_id, status) VALUES ($1, 'pending')
		 ON CONFLICT (call_id) DO NOTHING`, callID)
	if err != nil {
		return fmt.Errorf("failed to record pending job: %w", err)
	}
	return nil
}

func (s *PostgresResultStore) Complete(ctx context.Context, callID string, result []byte) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE job_results SET status = 'ready', result = $2, completed_at = $3
		 WHERE call_id = $1`, callID, result, time.Now())
	if err != nil {
		return fmt.Errorf("failed to record job result: %w", err)
	}
	return nil
}

func (s *PostgresResultStore) Get(ctx context.Context, callID string) (models.JobResult, error) {
	var jr models.JobResult
	jr.CallID = callID

	var status string
	err := s.pool.QueryRow(ctx,
		`SELECT status, result FROM job_results WHERE call_id = $1`, callID).
		Scan(&status, &jr.Result)
	if err == pgx.ErrNoRows {
		return jr, ErrUnknownJob
	}
	if err != nil {
		return jr, fmt.Errorf("failed to read job result: %w", err)
	}
	jr.Status = models.JobStatus(status)
	return jr, nil
}

// MemoryResultStore is an in-process ResultStore used in tests and the
// single-node development setup.
type MemoryResultStore struct {
	mu      sync.Mutex
	results map[string]models.JobResult
}

func NewMemoryResultStore() *MemoryResultStore {
	return &MemoryResultStore{results: make(map[string]models.JobResult)}
}

func (s *MemoryResultStore) MarkPending(ctx context.Context, callID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.results[callID]; !ok {
		s.results[callID] = models.JobResult{CallID: callID, Status: models.JobPending}
	}
	return nil
}

func (s *MemoryResultStore) Complete(ctx context.Context, callID string, result []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[callID] = models.JobResult{CallID: callID, Status: models.JobReady, Result: result}
	return nil
}

func (s *MemoryResultStore) Get(ctx context.Context, callID string) (models.JobResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	jr, ok := s.results[callID]
	if !ok {
		return models.JobResult{CallID: callID}, ErrUnknownJob
	}
	return jr, nil
}
