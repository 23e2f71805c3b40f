package jobs

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const defaultClassifierStartupDelay = 5 * time.Second

// HealthProber is implemented by the emotion classifier client
type HealthProber interface {
	CheckHealth(ctx context.Context) error
}

// AvailabilityRecorder receives the result of every check
type AvailabilityRecorder interface {
	SetClassifierAvailable(available bool)
}

// ClassifierHealthChecker periodically probes the emotion classifier so
// /api/status reflects its availability between image requests
type ClassifierHealthChecker struct {
	prober   HealthProber
	recorder AvailabilityRecorder
	interval time.Duration
	timeout  time.Duration
	clock    clockwork.Clock

	mu      sync.Mutex
	lastRun time.Time
}

// NewClassifierHealthChecker creates a new classifier health check job
func NewClassifierHealthChecker(prober HealthProber, recorder AvailabilityRecorder, interval, timeout time.Duration, clock clockwork.Clock) *ClassifierHealthChecker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &ClassifierHealthChecker{
		prober:   prober,
		recorder: recorder,
		interval: interval,
		timeout:  timeout,
		clock:    clock,
	}
}

// Run probes the classifier once
func (c *ClassifierHealthChecker) Run(ctx context.Context) error {
	c.mu.Lock()
	c.lastRun = c.clock.Now()
	c.mu.Unlock()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	err := c.prober.CheckHealth(ctx)
	if c.recorder != nil {
		c.recorder.SetClassifierAvailable(err == nil)
	}
	if err != nil {
		log.Printf("[HEALTH-JOB] Emotion classifier: FAILED (%v)", err)
		return err
	}

	log.Println("[HEALTH-JOB] Emotion classifier: healthy")
	return nil
}

// GetNextRunTime returns when the next health check should run
func (c *ClassifierHealthChecker) GetNextRunTime() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lastRun.IsZero() {
		// First run shortly after startup so status is accurate early
		return c.clock.Now().Add(defaultClassifierStartupDelay)
	}
	return c.lastRun.Add(c.interval)
}
