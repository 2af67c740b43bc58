// Package jobs runs contract diff checks asynchronously. When Redis is
// configured the queue is a shared list consumed by a worker loop; without it
// tasks run inline so a single-node deployment still verifies contracts.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"outthedoor/backend/internal/reconcile"
)

const (
	queueKey    = "otd:contract_diff"
	maxAttempts = 3
	popTimeout  = 5 * time.Second
	retryDelay  = time.Second
)

// Checker runs a contract diff. Implemented by the contracts service.
type Checker interface {
	CheckContract(ctx context.Context, contractID string, claim reconcile.ContractClaim) error
}

// Task is one queued diff request.
type Task struct {
	ContractID string                  `json:"contract_id"`
	Claim      reconcile.ContractClaim `json:"claim"`
	Attempts   int                     `json:"attempts"`
}

// Queue dispatches contract diff tasks.
type Queue struct {
	rdb     *redis.Client
	checker Checker
}

// NewQueue builds a queue. redisURL may be empty, in which case tasks run
// inline on enqueue.
func NewQueue(redisURL string, checker Checker) (*Queue, error) {
	if checker == nil {
		return nil, errors.New("checker is nil")
	}
	q := &Queue{checker: checker}
	if redisURL == "" {
		logrus.Info("redis not configured; contract diff jobs will run inline")
		return q, nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	q.rdb = redis.NewClient(opts)
	return q, nil
}

// Enqueue schedules a diff run. Inline mode executes immediately in the
// calling goroutine's background; failures are logged, never returned, since
// verification is fire-and-forget from the uploader's point of view.
func (q *Queue) Enqueue(ctx context.Context, contractID string, claim reconcile.ContractClaim) error {
	task := Task{ContractID: contractID, Claim: claim}
	if q.rdb == nil {
		go q.run(context.Background(), task)
		return nil
	}
	payload, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return q.rdb.LPush(ctx, queueKey, payload).Err()
}

// Start consumes queued tasks until ctx is cancelled. No-op in inline mode.
func (q *Queue) Start(ctx context.Context) {
	if q.rdb == nil {
		return
	}
	go func() {
		logrus.Info("contract diff worker started")
		for {
			select {
			case <-ctx.Done():
				logrus.Info("contract diff worker stopped")
				return
			default:
			}

			res, err := q.rdb.BRPop(ctx, popTimeout, queueKey).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
					continue
				}
				logrus.WithError(err).Warn("pop contract diff task")
				time.Sleep(retryDelay)
				continue
			}
			if len(res) < 2 {
				continue
			}

			var task Task
			if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
				logrus.WithError(err).Warn("decode contract diff task")
				continue
			}
			q.run(ctx, task)
		}
	}()
}

func (q *Queue) run(ctx context.Context, task Task) {
	err := q.checker.CheckContract(ctx, task.ContractID, task.Claim)
	if err == nil {
		logrus.WithField("contract_id", task.ContractID).Info("contract diff job completed")
		return
	}

	task.Attempts++
	log := logrus.WithError(err).WithFields(logrus.Fields{
		"contract_id": task.ContractID,
		"attempts":    task.Attempts,
	})
	if q.rdb == nil || task.Attempts >= maxAttempts {
		log.Error("contract diff job failed")
		return
	}

	log.Warn("contract diff job failed; requeueing")
	payload, marshalErr := json.Marshal(task)
	if marshalErr != nil {
		log.WithError(marshalErr).Error("requeue contract diff task")
		return
	}
	time.Sleep(retryDelay * time.Duration(task.Attempts))
	if pushErr := q.rdb.LPush(ctx, queueKey, payload).Err(); pushErr != nil {
		log.WithError(pushErr).Error("requeue contract diff task")
	}
}

// Close releases the Redis connection.
func (q *Queue) Close() error {
	if q == nil || q.rdb == nil {
		return nil
	}
	return q.rdb.Close()
}
