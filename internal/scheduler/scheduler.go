// Package scheduler 周期性后台任务，目前用于过期超时未付的支付
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultJobTimeout = 5 * time.Minute

// Job 周期任务，启动后立即执行一次，之后每 Every 执行一次
type Job struct {
	Name    string
	Every   time.Duration
	Timeout time.Duration // 单次执行超时，为 0 时取默认值
	Run     func(ctx context.Context) error
}

// Scheduler 每个任务一个 goroutine，同一任务不会并发执行
type Scheduler struct {
	mu      sync.Mutex
	jobs    []Job
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	logger  *zap.Logger
	running bool
}

// New 创建调度器
func New(log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{logger: log.Named("scheduler")}
}

// Register 注册任务，启动后注册的任务不会运行
func (s *Scheduler) Register(job Job) error {
	if job.Every <= 0 {
		return fmt.Errorf("job %s: interval must be positive, got %s", job.Name, job.Every)
	}
	if job.Run == nil {
		return fmt.Errorf("job %s: nil run func", job.Name)
	}
	if job.Timeout <= 0 {
		job.Timeout = defaultJobTimeout
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.Name == job.Name {
			return fmt.Errorf("job %s: already registered", job.Name)
		}
	}
	s.jobs = append(s.jobs, job)
	return nil
}

// Jobs 已注册任务的副本
func (s *Scheduler) Jobs() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Job(nil), s.jobs...)
}

// Start 启动全部任务，重复调用无效果
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.running = true

	s.logger.Info("Scheduler started", zap.Int("jobs", len(s.jobs)))
	for _, job := range s.jobs {
		s.wg.Add(1)
		go s.loop(ctx, job)
	}
}

// Stop 取消任务并等待执行中的一次结束
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("Scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	defer s.wg.Done()

	ticker := time.NewTicker(job.Every)
	defer ticker.Stop()

	for {
		s.runOnce(ctx, job)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// runOnce panic 只终止本次执行
func (s *Scheduler) runOnce(ctx context.Context, job Job) {
	ctx, cancel := context.WithTimeout(ctx, job.Timeout)
	defer cancel()
	log := s.logger.With(zap.String("job", job.Name))
	defer func() {
		if r := recover(); r != nil {
			log.Error("Job panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()

	start := time.Now()
	if err := job.Run(ctx); err != nil {
		log.Error("Job failed", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return
	}
	log.Debug("Job done", zap.Duration("elapsed", time.Since(start)))
}
