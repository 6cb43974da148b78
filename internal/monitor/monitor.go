package monitor

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sabers-go/sabers/internal/logging"
	"github.com/sabers-go/sabers/internal/worker"
)

// DefaultInterval is used when Dependencies.Interval is not positive.
const DefaultInterval = time.Second

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	LogManager    *logging.SlogManager
	WorkerManager *worker.Manager
	// StatusPath is rewritten with the current status on every tick.
	// Empty disables the status file; status is then only logged at debug.
	StatusPath string
	Interval   time.Duration
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      sync.WaitGroup
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = DefaultInterval
	}
	return &Service{
		deps:     deps,
		stopChan: make(chan struct{}),
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetProgramStatus returns the current status and its indented JSON form
func (s *Service) GetProgramStatus() (output string, status worker.Status) {
	status = s.deps.WorkerManager.Status()

	raw, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		raw = []byte(fmt.Sprintf(`{"error": "%s"}`, err))
	}
	return string(raw), status
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}

	var statusFile *os.File
	if s.deps.StatusPath != "" {
		f, err := os.Create(s.deps.StatusPath)
		if err != nil {
			s.mu.Unlock()
			return fmt.Errorf("error creating status file: %w", err)
		}
		statusFile = f
	}

	s.isRunning = true
	s.stopChan = make(chan struct{})
	stop := s.stopChan
	s.mu.Unlock()

	s.done.Add(1)
	go func() {
		defer s.done.Done()
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()
		if statusFile != nil {
			defer statusFile.Close()
		}

		logger := s.deps.LogManager.Logger()
		logger.Debug("Starting status monitor goroutine", "function", "startStatusMonitor", "interval", s.deps.Interval)

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			// the final write after stop leaves the file with the closing counters
			select {
			case <-stop:
				s.write(statusFile)
				return
			case <-ticker.C:
				s.write(statusFile)
			}
		}
	}()

	return nil
}

func (s *Service) write(statusFile *os.File) {
	statusStr, status := s.GetProgramStatus()
	if statusFile == nil {
		s.deps.LogManager.Logger().Debug("Status",
			"run", status.RunID, "maps", status.Maps, "replays", status.Replays,
			"skipped", status.Skipped, "failures", status.Failures)
		return
	}

	if err := statusFile.Truncate(0); err != nil {
		s.deps.LogManager.WriteLog("statusMonitor", fmt.Sprintf("Error truncating status file: %v", err), "ERROR")
		return
	}
	if _, err := statusFile.WriteAt([]byte(statusStr+"\n"), 0); err != nil {
		s.deps.LogManager.WriteLog("statusMonitor", fmt.Sprintf("Error writing status file: %v", err), "ERROR")
	}
}

// Stop stops the status monitor and waits for its last write
func (s *Service) Stop() {
	s.mu.Lock()
	if s.isRunning {
		close(s.stopChan)
		s.isRunning = false
	}
	s.mu.Unlock()
	s.done.Wait()
}
