package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"list-scheduler/internal/core/domain"
)

// JobEventMessage is the wire format published for a finished job run.
type JobEventMessage struct {
	Version    string `json:"version"`
	EventType  string `json:"event_type"`
	JobName    string `json:"job_name"`
	RunID      string `json:"run_id"`
	Status     string `json:"status"`
	StartedAt  string `json:"started_at"`  // RFC3339
	FinishedAt string `json:"finished_at"` // RFC3339
	Error      string `json:"error,omitempty"`
}

func newJobEventMessage(run domain.JobRun) JobEventMessage {
	eventType := "job-completed"
	if run.Status == domain.RunFailed {
		eventType = "job-failed"
	}

	return JobEventMessage{
		Version:    "v1",
		EventType:  eventType,
		JobName:    run.JobName,
		RunID:      run.ID,
		Status:     string(run.Status),
		StartedAt:  run.StartedAt.UTC().Format(time.RFC3339),
		FinishedAt: run.FinishedAt.UTC().Format(time.RFC3339),
		Error:      run.Error,
	}
}

// producer is the send surface KafkaNotifier needs, satisfied by KafkaProducer.
type producer interface {
	SendMessage(key string, value []byte, headers map[string]string) error
}

// KafkaNotifier publishes job run events to Kafka, keyed by job name so runs
// of the same job land on one partition in order.
type KafkaNotifier struct {
	producer producer
}

func NewKafkaNotifier(p *KafkaProducer) *KafkaNotifier {
	return &KafkaNotifier{producer: p}
}

func (n *KafkaNotifier) JobFinished(ctx context.Context, run domain.JobRun) error {
	message := newJobEventMessage(run)

	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal job event: %w", err)
	}

	headers := map[string]string{
		"event-type": message.EventType,
		"version":    message.Version,
	}
	return n.producer.SendMessage(run.JobName, payload, headers)
}

// NullNotifier drops every event. Used when Kafka is not configured.
type NullNotifier struct{}

func (NullNotifier) JobFinished(ctx context.Context, run domain.JobRun) error {
	return nil
}
