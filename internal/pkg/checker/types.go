package checker

import "time"

// ProbeStatus represents the lifecycle state of a probe job.
type ProbeStatus string

const (
	ProbeStatusPending    ProbeStatus = "pending"
	ProbeStatusProcessing ProbeStatus = "processing"
	ProbeStatusCompleted  ProbeStatus = "completed"
	ProbeStatusFailed     ProbeStatus = "failed"
	ProbeStatusRetrying   ProbeStatus = "retrying"
)

// ProbeJob is one scheduled check of a monitor, persisted in Redis while it
// travels through the queue.
type ProbeJob struct {
	ID          string      `json:"id"`
	MonitorID   uint        `json:"monitor_id"`
	Status      ProbeStatus `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
	ProcessedAt *time.Time  `json:"processed_at,omitempty"`
	RetryCount  int         `json:"retry_count"`
	MaxRetries  int         `json:"max_retries"`
	ErrorMsg    string      `json:"error_msg,omitempty"`
}

// MarkAsProcessing marks the job as being processed
func (j *ProbeJob) MarkAsProcessing() {
	now := time.Now()
	j.Status = ProbeStatusProcessing
	j.ProcessedAt = &now
	j.UpdatedAt = now
}

// MarkAsCompleted marks the job as completed
func (j *ProbeJob) MarkAsCompleted() {
	j.Status = ProbeStatusCompleted
	j.UpdatedAt = time.Now()
}

// MarkAsFailed marks the job as failed and stores the error message
func (j *ProbeJob) MarkAsFailed(errorMsg string) {
	j.Status = ProbeStatusFailed
	j.ErrorMsg = errorMsg
	j.RetryCount++
	j.UpdatedAt = time.Now()
}

// MarkAsRetrying marks the job as queued for another attempt
func (j *ProbeJob) MarkAsRetrying() {
	j.Status = ProbeStatusRetrying
	j.UpdatedAt = time.Now()
}

// IsRetryable reports whether the job may be attempted again
func (j *ProbeJob) IsRetryable() bool {
	return j.RetryCount < j.MaxRetries
}
