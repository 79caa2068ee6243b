package service

import (
	"context"
	"errors"
	"time"
)

var ErrQueueFull = errors.New("处理队列已满，请稍后重试")

// Limiter 限制同时进行的图像处理数量，排队超时返回 ErrQueueFull
type Limiter struct {
	semaphore    chan struct{}
	queueTimeout time.Duration
}

// NewLimiter maxConcurrent 小于 1 时按 1 处理，queueTimeout 单位为秒
func NewLimiter(maxConcurrent, queueTimeout int) *Limiter {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Limiter{
		semaphore:    make(chan struct{}, maxConcurrent),
		queueTimeout: time.Duration(queueTimeout) * time.Second,
	}
}

// Acquire 获取处理名额，成功时返回释放函数
func (l *Limiter) Acquire(ctx context.Context) (func(), error) {
	release := func() { <-l.semaphore }

	select {
	case l.semaphore <- struct{}{}:
		return release, nil
	default:
	}

	ctx, cancel := context.WithTimeout(ctx, l.queueTimeout)
	defer cancel()

	select {
	case l.semaphore <- struct{}{}:
		return release, nil
	case <-ctx.Done():
		return nil, ErrQueueFull
	}
}
