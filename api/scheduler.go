/*
scheduler.go - Automated yukyu grant and expiry scheduler

PURPOSE:
  Periodically walks all employees, creates any milestone grant lots that
  have come due since the last check, and expires lots past their two-year
  retention window.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Grants are idempotent (keyed by employee and grant date), so a check
    that runs twice creates nothing twice
  - Expiry is a status flip; usable balance drops immediately

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewGrantScheduler(store, handler)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: GrantYukyu endpoint (manual trigger)
  - yukyu/grant.go: Milestone table and grant calculation
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/hakenworks/payroll-engine/engine"
	"github.com/hakenworks/payroll-engine/store/sqlite"
)

// GrantScheduler applies due milestone grants and expiry sweeps.
type GrantScheduler struct {
	Store         *sqlite.Store
	Handler       *Handler
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewGrantScheduler creates a new scheduler.
func NewGrantScheduler(store *sqlite.Store, handler *Handler) *GrantScheduler {
	return &GrantScheduler{
		Store:         store,
		Handler:       handler,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (gs *GrantScheduler) Start() {
	gs.mu.Lock()
	defer gs.mu.Unlock()

	if !gs.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	gs.ticker = time.NewTicker(gs.CheckInterval)
	gs.wg.Add(1)

	go gs.run()

	log.Printf("[Scheduler] Started with check interval: %v", gs.CheckInterval)
}

// Stop stops the scheduler.
func (gs *GrantScheduler) Stop() {
	gs.mu.Lock()
	defer gs.mu.Unlock()

	if gs.ticker != nil {
		gs.ticker.Stop()
		close(gs.stop)
		gs.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (gs *GrantScheduler) run() {
	defer gs.wg.Done()

	// Run immediately on start
	gs.checkAndProcess()

	for {
		select {
		case <-gs.ticker.C:
			gs.checkAndProcess()
		case <-gs.stop:
			return
		}
	}
}

func (gs *GrantScheduler) checkAndProcess() {
	ctx := context.Background()
	today := engine.DateOf(time.Now().UTC())

	employees, err := gs.Store.Employees(ctx)
	if err != nil {
		log.Printf("[Scheduler] Error listing employees: %v", err)
		return
	}

	granted := 0
	expired := 0

	for _, emp := range employees {
		if !emp.Active {
			continue
		}

		created, err := gs.Handler.Ledger.Grant(ctx, emp, today)
		if err != nil {
			log.Printf("[Scheduler] Error granting for %s: %v", emp.ID, err)
			continue
		}
		granted += len(created)

		swept, err := gs.Handler.Ledger.Sweep(ctx, emp.ID, today)
		if err != nil {
			log.Printf("[Scheduler] Error sweeping for %s: %v", emp.ID, err)
			continue
		}
		expired += len(swept)
	}

	if granted > 0 || expired > 0 {
		log.Printf("[Scheduler] Completed: %d lots granted, %d lots expired", granted, expired)
	}
}

// RunNow triggers an immediate check (for testing/admin).
func (gs *GrantScheduler) RunNow() {
	gs.checkAndProcess()
}

// GetNextRunTime returns when the next scheduled check will occur.
func (gs *GrantScheduler) GetNextRunTime() time.Time {
	return time.Now().Add(gs.CheckInterval)
}
