// Package queue wraps asynq task publishing and worker setup.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// Task kinds processed by the worker binary.
const (
	TaskBookingPaymentStatus = "booking:payment-status"
	TaskBookingConfirmation  = "booking:confirmation"
)

// PaymentStatusPayload is carried by TaskBookingPaymentStatus tasks.
type PaymentStatusPayload struct {
	BookingID  string `json:"booking_id"`
	PrevStatus string `json:"prev_status"`
	NewStatus  string `json:"new_status"`
}

// ConfirmationPayload is carried by TaskBookingConfirmation tasks.
type ConfirmationPayload struct {
	BookingID string `json:"booking_id"`
}

// Client enqueues background tasks onto Redis.
type Client struct {
	inner *asynq.Client
}

// NewClient builds the enqueue side against the given Redis address.
func NewClient(redisURL string) (*Client, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, err
	}
	return &Client{inner: asynq.NewClient(opt)}, nil
}

// Close releases the underlying Redis connection.
func (c *Client) Close() error {
	if c == nil || c.inner == nil {
		return nil
	}
	return c.inner.Close()
}

// EnqueuePaymentStatus publishes a payment status change notification task.
// Tasks are deduplicated per booking and transition within a short window so
// a retried recalculation does not double-send.
func (c *Client) EnqueuePaymentStatus(ctx context.Context, p PaymentStatusPayload) error {
	if c == nil || c.inner == nil {
		return errors.New("queue: client not configured")
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	task := asynq.NewTask(TaskBookingPaymentStatus, raw)
	_, err = c.inner.EnqueueContext(ctx, task,
		asynq.TaskID(TaskBookingPaymentStatus+":"+p.BookingID+":"+p.NewStatus),
		asynq.MaxRetry(5),
		asynq.Timeout(30*time.Second),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

// EnqueueConfirmation publishes a booking confirmation email task.
func (c *Client) EnqueueConfirmation(ctx context.Context, p ConfirmationPayload) error {
	if c == nil || c.inner == nil {
		return errors.New("queue: client not configured")
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	task := asynq.NewTask(TaskBookingConfirmation, raw)
	_, err = c.inner.EnqueueContext(ctx, task,
		asynq.TaskID(TaskBookingConfirmation+":"+p.BookingID),
		asynq.MaxRetry(5),
		asynq.Timeout(30*time.Second),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

// ServerConfig parameterises the worker side.
type ServerConfig struct {
	RedisURL    string
	Concurrency int
	Logger      zerolog.Logger
}

// NewServer builds an asynq server for the worker binary.
func NewServer(cfg ServerConfig) (*asynq.Server, error) {
	opt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	logger := cfg.Logger
	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{"default": 1},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logger.Error().Err(err).Str("task", task.Type()).Msg("task failed")
		}),
	})
	return srv, nil
}
