package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/briangreenhill/evelib/request"
)

const TaskRefreshResource = "refresh:resource"

// QueueRefresh is the queue refresh tasks are enqueued on.
const QueueRefresh = "refresh"

// API areas a refresh can target.
const (
	AreaEVEOnline = "eveonline"
	AreaCrest     = "evecrest"
)

// RefreshPayload names a resource to fetch live and record in the shared
// cache. The credential travels by key ID only; the worker looks up the
// verification code.
type RefreshPayload struct {
	Area   string          `json:"area"`
	Path   string          `json:"path"`
	Params []request.Param `json:"params,omitempty"`
	KeyID  string          `json:"key_id,omitempty"`
}

func (p RefreshPayload) validate() error {
	switch p.Area {
	case AreaEVEOnline, AreaCrest:
	default:
		return fmt.Errorf("unknown area %q", p.Area)
	}
	if p.Path == "" {
		return fmt.Errorf("path required")
	}
	return nil
}

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// NewRefreshTask encodes p as an asynq task.
func NewRefreshTask(p RefreshPayload) (*asynq.Task, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal refresh payload: %w", err)
	}
	return asynq.NewTask(TaskRefreshResource, payload), nil
}

// EnqueueRefresh queues a refresh with the retry policy the worker expects.
func EnqueueRefresh(ctx context.Context, q Enqueuer, p RefreshPayload) (*asynq.TaskInfo, error) {
	task, err := NewRefreshTask(p)
	if err != nil {
		return nil, err
	}
	return q.EnqueueContext(ctx, task,
		asynq.Queue(QueueRefresh),
		asynq.MaxRetry(3),
		asynq.Timeout(2*time.Minute),
	)
}
