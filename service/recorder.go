package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"download-counter-go/monitoring"

	"github.com/rs/zerolog/log"
)

const maxDeadLetters = 100

// DeadLetter 未能完成的计数任务
type DeadLetter struct {
	Key    string    `json:"key"`
	Reason string    `json:"reason"`
	Time   time.Time `json:"time"`
}

type incrementTask struct {
	ctx context.Context
	key string
}

// Recorder 在后台执行计数自增，不阻塞请求。
// 队列满或已关闭时任务被丢弃并记入死信；失败的任务同样记入死信，不会重试。
type Recorder struct {
	counter *CounterService
	timeout time.Duration
	queue   chan incrementTask

	mu     sync.Mutex
	closed bool

	workers sync.WaitGroup
	pending sync.WaitGroup

	deadMu      sync.Mutex
	deadLetters []DeadLetter
}

func NewRecorder(counter *CounterService, workers, queueSize int, timeout time.Duration) *Recorder {
	r := &Recorder{
		counter: counter,
		timeout: timeout,
		queue:   make(chan incrementTask, queueSize),
	}
	for i := 0; i < workers; i++ {
		r.workers.Add(1)
		go r.worker()
	}
	return r
}

// Schedule 提交一次自增。ctx 的取消不会传递给任务，但其中的值会保留
func (r *Recorder) Schedule(ctx context.Context, key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		r.drop(key, "recorder closed")
		return
	}

	r.pending.Add(1)
	select {
	case r.queue <- incrementTask{ctx: context.WithoutCancel(ctx), key: key}:
	default:
		r.pending.Done()
		r.drop(key, "queue full")
	}
}

// Wait 阻塞直到所有已提交的任务结束
func (r *Recorder) Wait() {
	r.pending.Wait()
}

// Close 停止接收新任务并等待队列清空
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.workers.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("recorder did not drain before shutdown: %w", ctx.Err())
	}
}

// DeadLetters 返回最近的死信，最新的在最后
func (r *Recorder) DeadLetters() []DeadLetter {
	r.deadMu.Lock()
	defer r.deadMu.Unlock()
	return append([]DeadLetter(nil), r.deadLetters...)
}

func (r *Recorder) worker() {
	defer r.workers.Done()
	for task := range r.queue {
		r.run(task)
		r.pending.Done()
	}
}

func (r *Recorder) run(task incrementTask) {
	ctx, cancel := context.WithTimeout(task.ctx, r.timeout)
	defer cancel()

	n, err := r.counter.Increment(ctx, task.key)
	if err != nil {
		monitoring.CounterIncrements.WithLabelValues(monitoring.IncrementFailed).Inc()
		log.Error().Err(err).Str("key", task.key).Msg("download counter increment failed")
		r.deadLetter(task.key, err.Error())
		return
	}
	monitoring.CounterIncrements.WithLabelValues(monitoring.IncrementOK).Inc()
	log.Debug().Str("key", task.key).Int64("count", n).Msg("download counted")
}

func (r *Recorder) drop(key, reason string) {
	monitoring.CounterIncrements.WithLabelValues(monitoring.IncrementDropped).Inc()
	log.Warn().Str("key", key).Str("reason", reason).Msg("download counter increment dropped")
	r.deadLetter(key, reason)
}

func (r *Recorder) deadLetter(key, reason string) {
	r.deadMu.Lock()
	defer r.deadMu.Unlock()

	r.deadLetters = append(r.deadLetters, DeadLetter{Key: key, Reason: reason, Time: time.Now()})
	if len(r.deadLetters) > maxDeadLetters {
		r.deadLetters = r.deadLetters[len(r.deadLetters)-maxDeadLetters:]
	}
}
