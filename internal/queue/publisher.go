package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// Publisher 将判题任务写入 redis 列表队列
type Publisher struct {
	rdb       *redis.Client
	queueName string
}

func NewPublisher(rdb *redis.Client, queueName string) *Publisher {
	return &Publisher{rdb: rdb, queueName: queueName}
}

func (p *Publisher) Publish(ctx context.Context, job *GradingJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal grading job: %w", err)
	}
	if err := p.rdb.LPush(ctx, p.queueName, data).Err(); err != nil {
		return fmt.Errorf("enqueue grading job: %w", err)
	}
	return nil
}
