package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"cv-generator/internal/domain"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "cv:jobs:"

// Channel is the pub/sub channel carrying updates for one job.
func Channel(jobID string) string { return channelPrefix + jobID }

// Event is the payload published on every job write.
type Event struct {
	JobID           string                                      `json:"jobId"`
	Status          domain.JobStatus                            `json:"status"`
	CurrentStep     string                                      `json:"currentStep,omitempty"`
	Progress        int                                         `json:"progress"`
	FeatureTracking map[domain.FeatureID]domain.FeatureProgress `json:"featureTracking,omitempty"`
	UpdatedAt       time.Time                                   `json:"updatedAt"`
}

func NewEvent(j *domain.Job) Event {
	return Event{
		JobID:           j.ID,
		Status:          j.Status,
		CurrentStep:     j.CurrentStep,
		Progress:        j.Progress(),
		FeatureTracking: j.FeatureTracking,
		UpdatedAt:       j.UpdatedAt,
	}
}

// Terminal reports whether no further events follow this one.
func (e Event) Terminal() bool { return e.Status.Terminal() }

type RedisNotifier struct {
	rdb    redis.UniversalClient
	logger *slog.Logger
}

func NewRedisNotifier(rdb redis.UniversalClient, logger *slog.Logger) *RedisNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisNotifier{rdb: rdb, logger: logger}
}

// Connect opens a client for addr and verifies it with PING.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return rdb, nil
}

func (n *RedisNotifier) Notify(ctx context.Context, j *domain.Job) error {
	b, err := json.Marshal(NewEvent(j))
	if err != nil {
		return err
	}
	return n.rdb.Publish(ctx, Channel(j.ID), b).Err()
}

// Subscribe streams events for jobID until ctx ends. The returned channel is
// closed when the subscription ends.
func (n *RedisNotifier) Subscribe(ctx context.Context, jobID string) (<-chan Event, error) {
	sub := n.rdb.Subscribe(ctx, Channel(jobID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", Channel(jobID), err)
	}

	out := make(chan Event, 16)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
					n.logger.Debug("dropping malformed event", "channel", m.Channel, "error", err)
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
