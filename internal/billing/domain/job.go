package domain

import (
	"context"
	"time"
)

type JobState string

const (
	JobStatePending  JobState = "PENDING"
	JobStateProgress JobState = "PROGRESS"
	JobStateSuccess  JobState = "SUCCESS"
	JobStateFailure  JobState = "FAILURE"
)

// JobStatus is the pollable record of a background billing run.
type JobStatus struct {
	State     JobState          `json:"state"`
	Current   int               `json:"current"`
	Total     int               `json:"total"`
	Result    map[string]string `json:"result"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// PendingStatus is reported for queued and unknown job ids.
func PendingStatus() JobStatus {
	return JobStatus{State: JobStatePending, Current: 0, Total: 1}
}

// Task is the unit handed to a dispatcher.
type Task struct {
	ID    string `json:"id"`
	Month string `json:"month"`
}

type JobService interface {
	Submit(ctx context.Context, month string) (string, error)
	Status(ctx context.Context, id string) (JobStatus, error)
}

// Dispatcher hands a submitted task to whatever executes it.
type Dispatcher interface {
	Dispatch(ctx context.Context, task Task) error
}

const runLockKeyPrefix = "billing:run:lock:"

// MonthLocker serializes billing runs of the same month across the job and
// synchronous paths.
type MonthLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Release(ctx context.Context, key, token string) error
}

// RunLockKey is the lock key of a "YYYY-MM-01" month.
func RunLockKey(month string) string {
	return runLockKeyPrefix + month
}
