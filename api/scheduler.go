/*
scheduler.go - Automated overdue transition scheduler

PURPOSE:
  Periodically flips pending installments whose due date has passed to
  overdue, so dashboards and exports reflect payment delinquency without
  a manual trigger.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Compares due dates against the current UTC time
  - Idempotent: an installment already overdue is never touched again

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewOverdueScheduler(store)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: TriggerOverdue endpoint (manual transition)
  - billing/store.go: OverdueStore interface
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/campora/enrollment-engine/billing"
)

// OverdueScheduler handles the automated pending-to-overdue transition.
type OverdueScheduler struct {
	Store         billing.OverdueStore
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewOverdueScheduler creates a new scheduler.
func NewOverdueScheduler(store billing.OverdueStore) *OverdueScheduler {
	return &OverdueScheduler{
		Store:         store,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (os *OverdueScheduler) Start() {
	os.mu.Lock()
	defer os.mu.Unlock()

	if !os.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	os.ticker = time.NewTicker(os.CheckInterval)
	os.wg.Add(1)

	go os.run()

	log.Printf("[Scheduler] Started with check interval: %v", os.CheckInterval)
}

// Stop stops the scheduler.
func (os *OverdueScheduler) Stop() {
	os.mu.Lock()
	defer os.mu.Unlock()

	if os.ticker != nil {
		os.ticker.Stop()
		close(os.stop)
		os.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (os *OverdueScheduler) run() {
	defer os.wg.Done()

	// Run immediately on start
	os.checkAndMark()

	for {
		select {
		case <-os.ticker.C:
			os.checkAndMark()
		case <-os.stop:
			return
		}
	}
}

func (os *OverdueScheduler) checkAndMark() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := os.Store.MarkOverdue(ctx, time.Now().UTC())
	if err != nil {
		log.Printf("[Scheduler] Overdue check failed: %v", err)
		return
	}
	if n > 0 {
		log.Printf("[Scheduler] Marked %d installment(s) overdue", n)
	}
}
