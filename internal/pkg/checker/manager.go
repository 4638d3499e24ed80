package checker

import (
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/vigilohq/vigilo/app/models"
	"github.com/vigilohq/vigilo/internal/pkg/database"
	"github.com/vigilohq/vigilo/internal/pkg/env"
)

const defaultSchedulerInterval = 15 * time.Second

// Manager manages the probe queue and the scheduler that feeds it
type Manager struct {
	queue           *Queue
	schedulerTicker *time.Ticker
	stopCh          chan struct{}
	wg              sync.WaitGroup
	mu              sync.Mutex
	running         bool
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// GetManager returns the global checker manager (singleton)
func GetManager() *Manager {
	managerOnce.Do(func() {
		workerCount := 5
		if raw := env.GetEnv("CHECKER_WORKER_COUNT", ""); raw != "" {
			if v, err := strconv.Atoi(raw); err == nil && v > 0 {
				workerCount = v
			}
		}

		globalManager = &Manager{
			queue:  NewQueue(workerCount),
			stopCh: make(chan struct{}),
		}
	})
	return globalManager
}

// GetQueue returns the managed probe queue
func (m *Manager) GetQueue() *Queue {
	return m.queue
}

// Start starts the probe queue and the scheduler
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel for each start cycle so manager can be restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[Checker Manager] Starting probe queue and scheduler")

	m.queue.Start()

	m.schedulerTicker = time.NewTicker(defaultSchedulerInterval)
	m.wg.Add(1)
	go m.schedulerWorker()

	log.Info("[Checker Manager] Started successfully")
}

// Stop stops the probe queue and the scheduler
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[Checker Manager] Stopping probe queue and scheduler...")

	if m.schedulerTicker != nil {
		m.schedulerTicker.Stop()
	}

	close(m.stopCh)
	m.running = false
	m.wg.Wait()

	m.queue.Stop()

	log.Info("[Checker Manager] Stopped successfully")
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// schedulerWorker periodically enqueues probes for monitors whose interval
// has elapsed
func (m *Manager) schedulerWorker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopCh:
			log.Info("[Checker Manager] Scheduler stopping")
			return
		case <-m.schedulerTicker.C:
			if err := m.scheduleDueProbesOnce(); err != nil {
				log.Errorf("[Checker Manager] Scheduling error: %v", err)
			}
		}
	}
}

// scheduleDueProbesOnce enqueues one probe per due monitor. A monitor is due
// when it was never checked or its interval has elapsed since the last check.
func (m *Manager) scheduleDueProbesOnce() error {
	var monitors []models.Monitor
	now := time.Now()
	err := database.GetDB().
		Where("status <> ?", models.MonitorStatusPaused).
		Where("last_checked_at IS NULL OR last_checked_at <= TIMESTAMPADD(SECOND, -interval_seconds, ?)", now).
		Find(&monitors).Error
	if err != nil {
		return err
	}

	for _, monitor := range monitors {
		if _, err := m.queue.EnqueueProbe(monitor.ID); err != nil {
			log.Errorf("[Checker Manager] Failed to enqueue probe for monitor %d: %v", monitor.ID, err)
		}
	}
	if len(monitors) > 0 {
		log.Debugf("[Checker Manager] Enqueued %d probes", len(monitors))
	}
	return nil
}
