package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"
	"github.com/sabers-go/sabers/internal/config"
	"github.com/sabers-go/sabers/pkg/core"
)

const (
	MeasurementDifficulty = "difficulty_stats"
	MeasurementReplay     = "replay_stats"

	retentionSeconds = 60 * 60 * 24 * 90 // 90 days
)

// Manager handles InfluxDB connections and writes. When the server cannot
// be reached, points are appended as line protocol to a gzip backup file.
type Manager struct {
	Client       influxdb2.Client
	Writer       influxdb2_api.WriteAPI
	BackupWriter *gzip.Writer
	IsValid      bool
	Logger       zerolog.Logger

	cfg        config.InfluxConfig
	backupFile *os.File
	mu         sync.Mutex
}

// NewManager creates a new InfluxDB manager.
func NewManager(log zerolog.Logger, cfg config.InfluxConfig) *Manager {
	return &Manager{
		IsValid: false,
		Logger:  log,
		cfg:     cfg,
	}
}

// Connect establishes a connection to InfluxDB, falling back to the backup
// file when the server does not answer a ping.
func (m *Manager) Connect(ctx context.Context) error {
	if !m.cfg.Enabled {
		return errors.New("influx.enabled is false")
	}

	m.Client = influxdb2.NewClientWithOptions(
		m.cfg.URL(),
		m.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(500).
			SetFlushInterval(1000),
	)

	running, err := m.Client.Ping(ctx)
	if err != nil || !running {
		m.IsValid = false
		m.Logger.Info().Str("backupPath", m.cfg.BackupPath).
			Msg("Failed to initialize InfluxDB client, writing to backup file")
		return m.openBackup()
	}

	if err := m.setupOrganizationAndBucket(ctx); err != nil {
		return err
	}
	m.createWriter()
	m.IsValid = true
	m.Logger.Info().Str("url", m.cfg.URL()).Msg("InfluxDB client initialized")
	return nil
}

func (m *Manager) openBackup() error {
	if m.BackupWriter != nil {
		return nil
	}
	file, err := os.OpenFile(m.cfg.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %w", err)
	}
	m.backupFile = file
	m.BackupWriter = gzip.NewWriter(file)
	return nil
}

func (m *Manager) setupOrganizationAndBucket(ctx context.Context) error {
	orgName := m.cfg.Org

	influxOrg, err := m.Client.OrganizationsAPI().FindOrganizationByName(ctx, orgName)
	if err != nil {
		m.Logger.Info().Str("org", orgName).Msg("Organization not found, creating")
		influxOrg, err = m.Client.OrganizationsAPI().CreateOrganizationWithName(ctx, orgName)
		if err != nil {
			m.Logger.Error().Err(err).Str("org", orgName).Msg("Error creating organization")
			return err
		}
	}

	_, err = m.Client.BucketsAPI().FindBucketByName(ctx, m.cfg.Bucket)
	if err != nil {
		m.Logger.Info().Str("bucket", m.cfg.Bucket).Msg("Bucket not found, creating")

		rule := domain.RetentionRuleTypeExpire
		_, err = m.Client.BucketsAPI().CreateBucketWithName(ctx, influxOrg, m.cfg.Bucket, domain.RetentionRule{
			Type:         &rule,
			EverySeconds: retentionSeconds,
		})
		if err != nil {
			m.Logger.Error().Err(err).Str("bucket", m.cfg.Bucket).Msg("Error creating bucket")
			return err
		}
	}

	return nil
}

func (m *Manager) createWriter() {
	m.Writer = m.Client.WriteAPI(m.cfg.Org, m.cfg.Bucket)

	errorsCh := m.Writer.Errors()
	go func() {
		for writeErr := range errorsCh {
			m.Logger.Error().Err(writeErr).Str("bucket", m.cfg.Bucket).
				Msg("Error sending data to InfluxDB")
		}
	}()
}

// WritePoint writes a point to InfluxDB or the backup file.
func (m *Manager) WritePoint(point *influxdb2_write.Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.IsValid {
		m.Writer.WritePoint(point)
		return nil
	}

	if m.BackupWriter == nil {
		return fmt.Errorf("influxDB client not initialized and backup writer not available")
	}

	lineProtocol := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
	if !strings.HasSuffix(lineProtocol, "\n") {
		lineProtocol += "\n"
	}
	if _, err := m.BackupWriter.Write([]byte(lineProtocol)); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

// WriteMap writes one point per loaded difficulty of info.
func (m *Manager) WriteMap(info *core.MapInfo, runID string, ts time.Time) error {
	var errs []error
	for _, p := range DifficultyPoints(info, runID, ts) {
		errs = append(errs, m.WritePoint(p))
	}
	return errors.Join(errs...)
}

// WriteReplay writes the summary point of a replay.
func (m *Manager) WriteReplay(replay *core.Replay, runID string, ts time.Time) error {
	return m.WritePoint(ReplayPoint(replay, runID, ts))
}

// Close flushes pending points and releases the client and backup file.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Writer != nil {
		m.Writer.Flush()
	}
	if m.Client != nil {
		m.Client.Close()
	}
	m.IsValid = false

	var errs []error
	if m.BackupWriter != nil {
		errs = append(errs, m.BackupWriter.Close())
		m.BackupWriter = nil
	}
	if m.backupFile != nil {
		errs = append(errs, m.backupFile.Close())
		m.backupFile = nil
	}
	return errors.Join(errs...)
}

// DifficultyPoints builds one difficulty_stats point per difficulty.
func DifficultyPoints(info *core.MapInfo, runID string, ts time.Time) []*influxdb2_write.Point {
	points := make([]*influxdb2_write.Point, 0, len(info.Maps))
	for _, d := range info.Maps {
		point := influxdb2_write.NewPointWithMeasurement(MeasurementDifficulty).
			AddField("color_notes", len(d.Map.ColorNotes)).
			AddField("bomb_notes", len(d.Map.BombNotes)).
			AddField("obstacles", len(d.Map.Obstacles)).
			AddField("chains", len(d.Map.Chains)).
			AddField("length", d.Map.Length()).
			AddField("nps", d.Map.NotesPerSecond()).
			AddField("njs", d.NJS).
			AddField("bpm", info.Audio.BPM).
			SetTime(ts)
		addTags(point,
			"hash", info.Hash,
			"characteristic", string(d.Characteristic),
			"difficulty", d.Difficulty.String(),
			"version", d.Version,
			"run", runID,
		)
		points = append(points, point)
	}
	return points
}

// ReplayPoint builds the replay_stats point of a replay.
func ReplayPoint(replay *core.Replay, runID string, ts time.Time) *influxdb2_write.Point {
	info := replay.Info
	point := influxdb2_write.NewPointWithMeasurement(MeasurementReplay).
		AddField("score", info.Score).
		AddField("frames", len(replay.Frames)).
		AddField("duration", replay.Duration()).
		AddField("fail_time", info.FailTime).
		AddField("modifiers", len(info.Modifiers)).
		SetTime(ts)
	addTags(point,
		"song_hash", info.SongHash,
		"difficulty", info.Difficulty,
		"mode", info.Mode,
		"player", info.PlayerID,
		"run", runID,
	)
	return point
}

// addTags adds key/value pairs, skipping empty values which line protocol
// cannot represent.
func addTags(point *influxdb2_write.Point, kv ...string) {
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] != "" {
			point.AddTag(kv[i], kv[i+1])
		}
	}
}
