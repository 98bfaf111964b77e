// Package live broadcasts job snapshots to connected observers.
//
// Delivery is fire-and-forget: publishers never block on observers and
// never report failure to the caller. Observers that connect late get no
// history and pull current state through the listing API instead.
package live

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/joshu-sajeev/jobtracker/internal/config"
	"github.com/joshu-sajeev/jobtracker/internal/dto"
	"github.com/joshu-sajeev/jobtracker/internal/models"
	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the Redis pub/sub channel job updates travel on
// between the worker and api processes.
const DefaultChannel = "jobtracker:jobUpdate"

// Publisher broadcasts a job snapshot after every state change.
type Publisher interface {
	Publish(ctx context.Context, job models.Job)
}

// Event is the envelope observers receive.
type Event struct {
	Event string             `json:"event"`
	Data  dto.JobResponseDTO `json:"data"`
}

// NewEvent wraps a job snapshot in a jobUpdate envelope.
func NewEvent(job models.Job) Event {
	return Event{Event: config.JobUpdateEvent, Data: dto.NewJobResponse(job)}
}

// Encode renders the event as a JSON text frame.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, job models.Job)

func (f PublisherFunc) Publish(ctx context.Context, job models.Job) { f(ctx, job) }

// Nop discards every event.
var Nop Publisher = PublisherFunc(func(context.Context, models.Job) {})

// RedisPublisher publishes events on a Redis channel.
type RedisPublisher struct {
	client  redis.Cmdable
	channel string
	logger  *slog.Logger
}

func NewRedisPublisher(client redis.Cmdable, channel string, logger *slog.Logger) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisPublisher{client: client, channel: channel, logger: logger}
}

// Publish sends the snapshot. Errors are logged and swallowed.
func (p *RedisPublisher) Publish(ctx context.Context, job models.Job) {
	payload, err := NewEvent(job).Encode()
	if err != nil {
		p.logger.Error("encode job update", slog.String("custom_id", job.CustomID), slog.String("error", err.Error()))
		return
	}

	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		p.logger.Warn("publish job update",
			slog.String("custom_id", job.CustomID),
			slog.String("status", job.Status),
			slog.String("error", err.Error()),
		)
	}
}
