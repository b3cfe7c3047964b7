package queue

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"grading_backend/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Handler 处理一条判题任务。任务一经取出即视为已处理，不回投队列
type Handler interface {
	ProcessJob(ctx context.Context, job *GradingJob)
}

// Consumer 判题队列消费者：BRPOP 轮询，多 worker 并发，至少一次投递
type Consumer struct {
	rdb       *redis.Client
	queueName string
	handler   Handler
	workers   int
	wg        sync.WaitGroup
}

func NewConsumer(rdb *redis.Client, queueName string, workers int, handler Handler) *Consumer {
	if workers < 1 {
		workers = 1
	}
	return &Consumer{
		rdb:       rdb,
		queueName: queueName,
		handler:   handler,
		workers:   workers,
	}
}

// Start 启动消费循环，ctx 取消后各 worker 在当前任务结束时退出
func (c *Consumer) Start(ctx context.Context) {
	for i := 0; i < c.workers; i++ {
		c.wg.Add(1)
		go func(workerID int) {
			defer c.wg.Done()
			c.loop(ctx, workerID)
		}(i)
	}
	logger.Log.Info("Grading queue consumers started",
		zap.String("queue", c.queueName),
		zap.Int("workers", c.workers))
}

// Wait 阻塞直到所有 worker 退出
func (c *Consumer) Wait() {
	c.wg.Wait()
}

func (c *Consumer) loop(ctx context.Context, workerID int) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		// 带超时的阻塞弹出，保证停机信号能被及时观察到
		result, err := c.rdb.BRPop(ctx, 5*time.Second, c.queueName).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Log.Warn("Queue pop failed",
				zap.Int("worker", workerID),
				zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		var job GradingJob
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			logger.Log.Error("Malformed grading job, skipping message",
				zap.Int("worker", workerID),
				zap.Error(err))
			continue
		}

		c.handler.ProcessJob(ctx, &job)
	}
}
