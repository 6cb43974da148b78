package normalize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/sabers-go/sabers/internal/decode"
	"github.com/sabers-go/sabers/internal/schema"
	"github.com/sabers-go/sabers/internal/schema/field"
	"github.com/sabers-go/sabers/internal/timeline"
	"github.com/sabers-go/sabers/pkg/core"
)

const instrumentationName = "github.com/sabers-go/sabers/internal/normalize"

// Version describes the dialect a document was parsed as.
type Version struct {
	Dialect schema.Dialect
	Marker  string
}

func (v Version) String() string {
	return fmt.Sprintf("%s (%s)", v.Marker, v.Dialect)
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithDispatcher replaces the default schema dispatcher.
func WithDispatcher(d *schema.Dispatcher) Option {
	return func(p *Pipeline) {
		p.dispatcher = d
	}
}

// Pipeline parses raw difficulty documents into Beatmaps. It holds no
// per-document state and may be shared between goroutines.
type Pipeline struct {
	logger     *slog.Logger
	dispatcher *schema.Dispatcher

	parsed   metric.Int64Counter
	failed   metric.Int64Counter
	duration metric.Float64Histogram
}

// New creates a Pipeline. Uses the global OTel meter for metrics (no-op if
// not configured).
func New(logger *slog.Logger, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		logger:     logger,
		dispatcher: schema.New(),
	}
	for _, opt := range opts {
		opt(p)
	}

	m := otel.Meter(instrumentationName)

	var err error
	p.parsed, err = m.Int64Counter(
		"beatmap.documents.parsed",
		metric.WithDescription("Total difficulty documents normalized"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating parsed counter: %w", err)
	}

	p.failed, err = m.Int64Counter(
		"beatmap.documents.failed",
		metric.WithDescription("Total difficulty documents rejected"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating failed counter: %w", err)
	}

	p.duration, err = m.Float64Histogram(
		"beatmap.parse.duration",
		metric.WithDescription("Time spent decoding and normalizing a document"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}

	return p, nil
}

// Dispatcher returns the schema dispatcher used by the pipeline.
func (p *Pipeline) Dispatcher() *schema.Dispatcher {
	return p.dispatcher
}

// Parse decodes data, detects its dialect, and normalizes it with bpm as the
// declared starting tempo.
func (p *Pipeline) Parse(data []byte, bpm float64) (core.Beatmap, Version, error) {
	start := time.Now()
	ctx := context.Background()

	doc, err := p.dispatcher.Parse(data)
	if err != nil {
		p.fail(ctx, err)
		return core.Beatmap{}, Version{}, err
	}
	version := Version{Dialect: doc.Dialect(), Marker: doc.Version()}

	bm, err := Normalize(doc, bpm)
	if err != nil {
		p.fail(ctx, err)
		return core.Beatmap{}, version, err
	}

	elapsed := time.Since(start)
	dialect := attribute.String("dialect", version.Dialect.String())
	p.parsed.Add(ctx, 1, metric.WithAttributes(dialect))
	p.duration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(dialect))

	p.logger.Debug("normalized beatmap",
		"version", version.Marker,
		"dialect", version.Dialect.String(),
		"colorNotes", len(bm.ColorNotes),
		"bombNotes", len(bm.BombNotes),
		"obstacles", len(bm.Obstacles),
		"chains", len(bm.Chains),
		"elapsed", elapsed,
	)

	return bm, version, nil
}

func (p *Pipeline) fail(ctx context.Context, err error) {
	p.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", Reason(err))))
}

// Reason classifies a parse error for metrics and logs.
func Reason(err error) string {
	var (
		unsupported *schema.UnsupportedVersionError
		structural  *field.Error
		domain      *decode.DomainError
	)
	switch {
	case errors.As(err, &unsupported):
		return "unsupported_version"
	case errors.As(err, &structural):
		return "structure"
	case errors.Is(err, timeline.ErrUnordered), errors.Is(err, timeline.ErrInvalidTempo):
		return "timeline"
	case errors.As(err, &domain):
		return "domain"
	default:
		return "decode"
	}
}
