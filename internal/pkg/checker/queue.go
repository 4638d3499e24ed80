package checker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/vigilohq/vigilo/app/models"
	"github.com/vigilohq/vigilo/internal/pkg/cache"
	"github.com/vigilohq/vigilo/internal/pkg/database"
	"github.com/vigilohq/vigilo/internal/pkg/integrations"
)

const (
	// Redis key prefixes
	ProbeKeyPrefix     = "probe:"
	ProbeQueueKey      = "probe_queue"
	ProbeProcessingKey = "probe_processing"
	ProbeStatsKey      = "probe_stats"

	// Probe job settings
	DefaultMaxRetries = 2
	ProbeJobTTL       = 1 * time.Hour
)

// Queue runs probe jobs pulled from Redis so several app instances can share
// the checking load without probing a monitor twice.
type Queue struct {
	client   *redis.Client
	prober   *Prober
	notifier *Notifier
	workers  int
	stopCh   chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool
}

// NewQueue creates a new probe queue
func NewQueue(workers int) *Queue {
	if workers <= 0 {
		workers = 3 // Default number of workers
	}

	return &Queue{
		client:   cache.GetClient(),
		prober:   NewProber(),
		notifier: NewNotifier(integrations.NewRepository(database.GetDB())),
		workers:  workers,
		stopCh:   make(chan struct{}),
	}
}

// Start starts the probe queue workers
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.running {
		return
	}

	q.running = true
	q.stopCh = make(chan struct{})
	log.Infof("[Checker] Starting %d probe workers", q.workers)

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
}

// Stop stops the probe queue workers
func (q *Queue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.running {
		return
	}

	log.Info("[Checker] Stopping probe workers...")
	close(q.stopCh)
	q.running = false
	q.wg.Wait()
	log.Info("[Checker] All probe workers stopped")
}

// worker processes probe jobs from the queue
func (q *Queue) worker(id int) {
	defer q.wg.Done()
	log.Infof("[Checker] Worker %d started", id)

	ctx := context.Background()

	for {
		select {
		case <-q.stopCh:
			log.Infof("[Checker] Worker %d stopping", id)
			return
		default:
			job, err := q.dequeueJob(ctx)
			if err != nil {
				if err != redis.Nil {
					log.Errorf("[Checker] Worker %d: Error dequeuing job: %v", id, err)
					time.Sleep(time.Second)
				}
				continue
			}
			if job != nil {
				q.processJob(ctx, job)
			}
		}
	}
}

// EnqueueProbe adds a probe job for a monitor to the queue
func (q *Queue) EnqueueProbe(monitorID uint) (*ProbeJob, error) {
	ctx := context.Background()

	job := &ProbeJob{
		ID:         uuid.New().String(),
		MonitorID:  monitorID,
		Status:     ProbeStatusPending,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
		RetryCount: 0,
		MaxRetries: DefaultMaxRetries,
	}

	jobData, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal probe job: %w", err)
	}

	jobKey := ProbeKeyPrefix + job.ID

	// Use a pipeline for atomic operations
	pipe := q.client.Pipeline()
	pipe.Set(ctx, jobKey, jobData, ProbeJobTTL)
	pipe.LPush(ctx, ProbeQueueKey, job.ID)
	pipe.HIncrBy(ctx, ProbeStatsKey, string(ProbeStatusPending), 1)

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to enqueue probe job: %w", err)
	}

	return job, nil
}

// dequeueJob gets the next probe job from the queue
func (q *Queue) dequeueJob(ctx context.Context) (*ProbeJob, error) {
	result, err := q.client.BRPopLPush(ctx, ProbeQueueKey, ProbeProcessingKey, time.Second).Result()
	if err != nil {
		return nil, err
	}

	jobID := result
	jobKey := ProbeKeyPrefix + jobID

	jobData, err := q.client.Get(ctx, jobKey).Result()
	if err != nil {
		q.client.LRem(ctx, ProbeProcessingKey, 1, jobID)
		return nil, fmt.Errorf("probe job data not found for ID %s", jobID)
	}

	var job ProbeJob
	if err := json.Unmarshal([]byte(jobData), &job); err != nil {
		q.client.LRem(ctx, ProbeProcessingKey, 1, jobID)
		return nil, fmt.Errorf("failed to unmarshal probe job %s: %w", jobID, err)
	}

	return &job, nil
}

// processJob runs one probe and records its outcome
func (q *Queue) processJob(ctx context.Context, job *ProbeJob) {
	job.MarkAsProcessing()
	q.updateJob(ctx, job)

	err := q.runProbe(ctx, job)
	if err != nil {
		log.Errorf("[Checker] Probe job %s failed: %v", job.ID, err)
		job.MarkAsFailed(err.Error())

		if job.IsRetryable() {
			job.MarkAsRetrying()
			q.updateJob(ctx, job)
			time.AfterFunc(time.Minute*time.Duration(job.RetryCount), func() {
				q.client.LPush(ctx, ProbeQueueKey, job.ID)
			})
		} else {
			q.updateJobStats(ctx, ProbeStatusFailed, 1)
		}
	} else {
		job.MarkAsCompleted()
		q.updateJobStats(ctx, ProbeStatusCompleted, 1)
		q.removeCompletedJob(ctx, job.ID)
	}

	if job.Status != ProbeStatusCompleted {
		q.updateJob(ctx, job)
	}
	q.removeFromProcessing(ctx, job.ID)
}

// runProbe loads the monitor, issues the check, persists the result and
// notifies on state transitions.
func (q *Queue) runProbe(ctx context.Context, job *ProbeJob) error {
	db := database.GetDB()

	var monitor models.Monitor
	if err := db.Preload("Alert").First(&monitor, job.MonitorID).Error; err != nil {
		return fmt.Errorf("monitor %d not loadable: %w", job.MonitorID, err)
	}
	if monitor.IsPaused() {
		return nil
	}

	previous := monitor.Status
	result := q.prober.Probe(ctx, monitor.URL)

	now := time.Now()
	monitor.Status = result.Status
	monitor.LastStatusCode = result.StatusCode
	monitor.LastCheckedAt = &now

	err := db.Model(&models.Monitor{}).Where("id = ?", monitor.ID).Updates(map[string]interface{}{
		"status":           monitor.Status,
		"last_status_code": monitor.LastStatusCode,
		"last_checked_at":  now,
	}).Error
	if err != nil {
		return fmt.Errorf("persist probe result: %w", err)
	}

	if ShouldNotify(previous, monitor.Status) {
		log.Infof("[Checker] Monitor %d transitioned %s -> %s", monitor.ID, previous, monitor.Status)
		for _, alert := range monitor.Alerts() {
			q.notifier.Notify(ctx, &monitor, alert, previous)
		}
	}
	return nil
}

// updateJob updates probe job data in Redis
func (q *Queue) updateJob(ctx context.Context, job *ProbeJob) {
	jobData, err := json.Marshal(job)
	if err != nil {
		log.Errorf("[Checker] Failed to marshal probe job %s: %v", job.ID, err)
		return
	}

	jobKey := ProbeKeyPrefix + job.ID
	if err := q.client.Set(ctx, jobKey, jobData, ProbeJobTTL).Err(); err != nil {
		log.Errorf("[Checker] Failed to update probe job %s: %v", job.ID, err)
	}
}

// removeFromProcessing removes a probe job from the processing queue
func (q *Queue) removeFromProcessing(ctx context.Context, jobID string) {
	if err := q.client.LRem(ctx, ProbeProcessingKey, 1, jobID).Err(); err != nil {
		log.Errorf("[Checker] Failed to remove probe job %s from processing queue: %v", jobID, err)
	}
}

// removeCompletedJob completely removes a completed probe job from Redis
func (q *Queue) removeCompletedJob(ctx context.Context, jobID string) {
	jobKey := ProbeKeyPrefix + jobID
	if err := q.client.Del(ctx, jobKey).Err(); err != nil {
		log.Errorf("[Checker] Failed to remove completed probe job %s from Redis: %v", jobID, err)
	}
}

// updateJobStats updates probe statistics
func (q *Queue) updateJobStats(ctx context.Context, status ProbeStatus, delta int64) {
	if err := q.client.HIncrBy(ctx, ProbeStatsKey, string(status), delta).Err(); err != nil {
		log.Errorf("[Checker] Failed to update probe stats: %v", err)
	}
}

// GetQueueSize returns the number of pending probe jobs
func (q *Queue) GetQueueSize(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, ProbeQueueKey).Result()
}
