package worker

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/pranavmodi/salesbot-sub002/internal/pkg/distlock"
)

// Job kinds the scheduler dispatches.
const (
	JobResearchCompany = "research_company"
	JobLeadgenFetch    = "leadgen_fetch"
	JobSendCampaign    = "send_campaign"
)

// Job status constants
const (
	JobPending   = "pending"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

// Job is one scheduler_jobs row.
type Job struct {
	ID       int64           `json:"id"`
	TenantID uuid.UUID       `json:"tenant_id"`
	Kind     string          `json:"kind"`
	Payload  json.RawMessage `json:"payload"`
	Status   string          `json:"status"`
	RunAt    time.Time       `json:"run_at"`
}

// JobHandler executes one job. A returned error marks the job failed
// with the error text stored on the row.
type JobHandler func(ctx context.Context, job *Job) error

const (
	defaultPollInterval = 15 * time.Second
	jobBatchSize        = 20
	jobLockTTL          = 10 * time.Minute
)

// Scheduler polls scheduler_jobs and dispatches due jobs to registered
// handlers. A distributed lock per job keeps multiple server instances
// from running the same job twice.
type Scheduler struct {
	db           *sql.DB
	redisClient  *redis.Client
	pollInterval time.Duration
	handlers     map[string]JobHandler
}

// NewScheduler creates a scheduler worker.
func NewScheduler(db *sql.DB) *Scheduler {
	return &Scheduler{
		db:           db,
		pollInterval: defaultPollInterval,
		handlers:     map[string]JobHandler{},
	}
}

// SetRedisClient enables Redis-backed job locks. Without it the
// scheduler falls back to Postgres advisory locks.
func (s *Scheduler) SetRedisClient(client *redis.Client) {
	s.redisClient = client
}

// Handle registers the handler for a job kind.
func (s *Scheduler) Handle(kind string, h JobHandler) {
	s.handlers[kind] = h
}

// Enqueue inserts a new pending job.
func (s *Scheduler) Enqueue(ctx context.Context, tenantID uuid.UUID, kind string, payload any, runAt time.Time) (int64, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal job payload: %w", err)
	}
	if runAt.IsZero() {
		runAt = time.Now()
	}

	var id int64
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO scheduler_jobs (tenant_id, kind, payload, run_at)
		VALUES ($1, $2, $3, $4) RETURNING id`,
		tenantID, kind, data, runAt).Scan(&id)
	return id, err
}

// Start begins the polling loop. It blocks until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	log.Printf("[Scheduler] Starting (poll=%s, kinds=%d)", s.pollInterval, len(s.handlers))

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[Scheduler] Stopping")
			return
		case <-ticker.C:
			s.processDue(ctx)
		}
	}
}

func (s *Scheduler) processDue(ctx context.Context) {
	jobs, err := s.dueJobs(ctx)
	if err != nil {
		log.Printf("[Scheduler] Failed to load due jobs: %v", err)
		return
	}

	for _, job := range jobs {
		if ctx.Err() != nil {
			return
		}
		s.runJob(ctx, job)
	}
}

func (s *Scheduler) dueJobs(ctx context.Context) ([]*Job, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tenant_id, kind, payload, status, run_at
		FROM scheduler_jobs
		WHERE status = $1 AND run_at <= NOW()
		ORDER BY run_at LIMIT $2`,
		JobPending, jobBatchSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		j := &Job{}
		if err := rows.Scan(&j.ID, &j.TenantID, &j.Kind, &j.Payload, &j.Status, &j.RunAt); err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (s *Scheduler) runJob(ctx context.Context, job *Job) {
	handler, ok := s.handlers[job.Kind]
	if !ok {
		log.Printf("[Scheduler] No handler for job kind %q (job=%d), marking failed", job.Kind, job.ID)
		s.finishJob(ctx, job, fmt.Errorf("no handler for kind %q", job.Kind))
		return
	}

	lock := distlock.NewLock(s.redisClient, s.db, fmt.Sprintf("job:%d", job.ID), jobLockTTL)
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		log.Printf("[Scheduler] Lock error for job %d: %v", job.ID, err)
		return
	}
	if !acquired {
		return
	}
	defer lock.Release(ctx)

	claimed, err := s.claimJob(ctx, job.ID)
	if err != nil {
		log.Printf("[Scheduler] Failed to claim job %d: %v", job.ID, err)
		return
	}
	if !claimed {
		return
	}

	log.Printf("[Scheduler] Running job %d (kind=%s, tenant=%s)", job.ID, job.Kind, job.TenantID)
	s.finishJob(ctx, job, handler(ctx, job))
}

// claimJob flips a pending job to running. Returns false when another
// worker got there first.
func (s *Scheduler) claimJob(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE scheduler_jobs SET status = $1, started_at = NOW()
		WHERE id = $2 AND status = $3`,
		JobRunning, id, JobPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *Scheduler) finishJob(ctx context.Context, job *Job, runErr error) {
	status := JobCompleted
	errText := ""
	if runErr != nil {
		status = JobFailed
		errText = runErr.Error()
		log.Printf("[Scheduler] Job %d failed: %v", job.ID, runErr)
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE scheduler_jobs SET status = $1, error = $2, finished_at = NOW()
		WHERE id = $3`,
		status, errText, job.ID)
	if err != nil {
		log.Printf("[Scheduler] Failed to finish job %d: %v", job.ID, err)
	}
}
