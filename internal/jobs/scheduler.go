package jobs

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Job is implemented by every scheduled background task.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Scheduler manages recurring background jobs on top of gocron.
type Scheduler struct {
	scheduler gocron.Scheduler
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	running   bool
	jobs      map[string]gocron.Job
}

// NewScheduler creates a scheduler pinned to UTC.
func NewScheduler() (*Scheduler, error) {
	scheduler, err := gocron.NewScheduler(
		gocron.WithLocation(time.UTC),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		scheduler: scheduler,
		ctx:       ctx,
		cancel:    cancel,
		jobs:      make(map[string]gocron.Job),
	}, nil
}

// RegisterInterval schedules a job to run every d.
func (s *Scheduler) RegisterInterval(job Job, d time.Duration) error {
	return s.register(job, gocron.DurationJob(d))
}

// RegisterCron schedules a job on a standard 5-field cron expression.
func (s *Scheduler) RegisterCron(job Job, expr string) error {
	return s.register(job, gocron.CronJob(expr, false))
}

func (s *Scheduler) register(job Job, def gocron.JobDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	gj, err := s.scheduler.NewJob(
		def,
		gocron.NewTask(func() {
			s.runJob(job)
		}),
		gocron.WithName(job.Name()),
	)
	if err != nil {
		return fmt.Errorf("failed to register job %s: %w", job.Name(), err)
	}

	s.jobs[job.Name()] = gj
	log.Printf("✅ [SCHEDULER] Registered job: %s", job.Name())
	return nil
}

func (s *Scheduler) runJob(job Job) {
	s.wg.Add(1)
	defer s.wg.Done()

	if s.ctx.Err() != nil {
		return
	}

	log.Printf("▶️  [SCHEDULER] Running job: %s", job.Name())
	startTime := time.Now()

	if err := job.Run(s.ctx); err != nil {
		log.Printf("❌ [SCHEDULER] Job '%s' failed: %v", job.Name(), err)
		return
	}

	log.Printf("✅ [SCHEDULER] Job '%s' completed in %v", job.Name(), time.Since(startTime))
}

// Start begins running all registered jobs.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}

	s.running = true
	s.scheduler.Start()
	log.Printf("🚀 [SCHEDULER] Started with %d jobs", len(s.jobs))
}

// RunNow triggers a registered job immediately, outside its schedule.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	gj, exists := s.jobs[name]
	s.mu.Unlock()

	if !exists {
		return fmt.Errorf("job %s not registered", name)
	}
	return gj.RunNow()
}

// Stop cancels the job context and waits for in-flight runs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	log.Println("🛑 [SCHEDULER] Stopping...")
	s.cancel()
	if err := s.scheduler.Shutdown(); err != nil {
		log.Printf("⚠️ [SCHEDULER] Shutdown error: %v", err)
	}
	s.wg.Wait()
	log.Println("✅ [SCHEDULER] Stopped")
}
