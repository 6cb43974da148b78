package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sabers-go/sabers/internal/cache"
	"github.com/sabers-go/sabers/internal/influx"
	"github.com/sabers-go/sabers/internal/logging"
	"github.com/sabers-go/sabers/internal/mapinfo"
	"github.com/sabers-go/sabers/internal/queue"
	"github.com/sabers-go/sabers/internal/storage"
	"github.com/sabers-go/sabers/pkg/core"
)

// Command names routed through the dispatcher.
const (
	CommandMap    = "map"
	CommandReplay = "replay"
)

// ErrNoRun is returned by EndRun when no run was started.
var ErrNoRun = fmt.Errorf("no ingest run in progress")

// Failure is a path that could not be ingested.
type Failure struct {
	Command string
	Path    string
	Err     error
	At      time.Time
}

// Outcome describes what happened to an ingested map.
type Outcome int

const (
	Failed Outcome = iota
	Stored
	Skipped
)

func (o Outcome) String() string {
	switch o {
	case Stored:
		return "stored"
	case Skipped:
		return "skipped"
	default:
		return "failed"
	}
}

// Dependencies holds all dependencies for the worker manager
type Dependencies struct {
	Loader     *mapinfo.Loader
	HashCache  *cache.HashCache
	LogManager *logging.SlogManager
	// Influx is optional; nil disables metrics points.
	Influx *influx.Manager

	SkipDuplicates bool
	// FailureLimit bounds the failure queue; zero keeps every failure.
	FailureLimit int
}

// Manager ingests maps and replays into a storage backend
type Manager struct {
	deps     Dependencies
	backend  storage.Backend
	failures *queue.Queue[Failure]

	maps    cache.SafeCounter
	replays cache.SafeCounter
	skipped cache.SafeCounter
	failed  cache.SafeCounter

	mu  sync.RWMutex
	run *core.IngestRun
}

// NewManager creates a new worker manager
func NewManager(deps Dependencies, backend storage.Backend) *Manager {
	if deps.HashCache == nil {
		deps.HashCache = cache.NewHashCache()
	}
	return &Manager{
		deps:     deps,
		backend:  backend,
		failures: queue.New[Failure](deps.FailureLimit),
	}
}

func (m *Manager) logger() *slog.Logger {
	if m.deps.LogManager == nil {
		return slog.Default()
	}
	return m.deps.LogManager.Logger()
}

// StartRun opens a new ingest run on the backend and resets the counters.
func (m *Manager) StartRun(ctx context.Context) (*core.IngestRun, error) {
	run := &core.IngestRun{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	if err := m.backend.StartRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to start run: %w", err)
	}

	m.maps.Set(0)
	m.replays.Set(0)
	m.skipped.Set(0)
	m.failed.Set(0)

	m.mu.Lock()
	m.run = run
	m.mu.Unlock()
	return run, nil
}

// EndRun stamps the counters onto the current run and closes it.
func (m *Manager) EndRun(ctx context.Context) (*core.IngestRun, error) {
	m.mu.Lock()
	run := m.run
	m.run = nil
	m.mu.Unlock()
	if run == nil {
		return nil, ErrNoRun
	}

	run.FinishedAt = time.Now().UTC()
	run.Maps = m.maps.Value()
	run.Replays = m.replays.Value()
	run.Skipped = m.skipped.Value()
	run.Failures = m.failed.Value()

	if err := m.backend.EndRun(ctx, run); err != nil {
		return run, fmt.Errorf("failed to end run: %w", err)
	}
	return run, nil
}

// RunID returns the id of the current run, or "" outside a run.
func (m *Manager) RunID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.run == nil {
		return ""
	}
	return m.run.ID
}

// LogContext supplies the current run id to every log record.
func (m *Manager) LogContext() []slog.Attr {
	if id := m.RunID(); id != "" {
		return []slog.Attr{slog.String("run", id)}
	}
	return nil
}

// Status is a point-in-time view of the current run.
type Status struct {
	Time            time.Time `json:"time"`
	RunID           string    `json:"runId"`
	Maps            uint      `json:"maps"`
	Replays         uint      `json:"replays"`
	Skipped         uint      `json:"skipped"`
	Failures        uint      `json:"failures"`
	QueuedFailures  int       `json:"queuedFailures"`
	DroppedFailures int       `json:"droppedFailures"`
	KnownHashes     int       `json:"knownHashes"`
}

// Status returns the current counters.
func (m *Manager) Status() Status {
	return Status{
		Time:            time.Now().UTC(),
		RunID:           m.RunID(),
		Maps:            m.maps.Value(),
		Replays:         m.replays.Value(),
		Skipped:         m.skipped.Value(),
		Failures:        m.failed.Value(),
		QueuedFailures:  m.failures.Len(),
		DroppedFailures: m.failures.Dropped(),
		KnownHashes:     m.deps.HashCache.Len(),
	}
}

// Failures returns the recorded failures, oldest first.
func (m *Manager) Failures() []Failure {
	return m.failures.Snapshot()
}

func (m *Manager) fail(command, path string, err error) error {
	m.failed.Inc()
	m.failures.Push(Failure{Command: command, Path: path, Err: err, At: time.Now().UTC()})
	return err
}
