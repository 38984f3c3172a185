package queue

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/smallbiznis/housebill/internal/billing/domain"
)

var ErrInvalidMessage = errors.New("invalid_task_message")

// TaskMessage carries a billing job to the worker. Status lives in the job
// store, so the message holds only the identifiers.
type TaskMessage struct {
	TaskID     string    `json:"task_id"`
	Month      string    `json:"month"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

func NewTaskMessage(task domain.Task, now time.Time) *TaskMessage {
	return &TaskMessage{
		TaskID:     task.ID,
		Month:      task.Month,
		EnqueuedAt: now.UTC(),
	}
}

func (m *TaskMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func (m *TaskMessage) Task() domain.Task {
	return domain.Task{ID: m.TaskID, Month: m.Month}
}

// TaskMessageFromJSON decodes a message and rejects one without a task id or month.
func TaskMessageFromJSON(data []byte) (*TaskMessage, error) {
	var msg TaskMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if strings.TrimSpace(msg.TaskID) == "" || strings.TrimSpace(msg.Month) == "" {
		return nil, ErrInvalidMessage
	}
	return &msg, nil
}
