// =============================================================================
// Subscription Flow Audit - Engine
// =============================================================================
//
// Orchestrates one audit run, from source resolution to written outputs.
//
// RUN PIPELINE:
//   1. Resolve sources (explicit list, or discovery in input_dir)
//   2. Load every source into one batch of line items (parallel parse,
//      sequential reduce)
//   3. Group line items into orders
//   4. Classify orders and resolve their subscription type
//   5. Build the flow graph and the per-order audit records
//   6. Check the graph invariants
//   7. Log diagnostics and record metrics
//   8. Write the configured outputs
//   9. Archive the sources (only when every output was written)
//
// Steps 3-6 run sequentially on the reduced batch, so the result is a pure
// function of the ordered sources.
//
// =============================================================================

package engine

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/ginjaninja78/subscription-flow-audit/internal/config"
	"github.com/ginjaninja78/subscription-flow-audit/internal/diagnostics"
	"github.com/ginjaninja78/subscription-flow-audit/internal/flowgraph"
	"github.com/ginjaninja78/subscription-flow-audit/internal/ingest"
	"github.com/ginjaninja78/subscription-flow-audit/internal/metrics"
	"github.com/ginjaninja78/subscription-flow-audit/internal/orders"
	"github.com/ginjaninja78/subscription-flow-audit/internal/report"
	"github.com/ginjaninja78/subscription-flow-audit/internal/types"
	"github.com/ginjaninja78/subscription-flow-audit/internal/xmlwriter"
	"github.com/ginjaninja78/subscription-flow-audit/pkg/utils"
)

// =============================================================================
// RESULT STRUCTURE
// =============================================================================

// Result is the outcome of one run.
type Result struct {
	// RunID identifies the run in output names and reports.
	RunID string

	StartedAt time.Time
	Duration  time.Duration

	// Sources are the loaded exports, in run order.
	Sources []ingest.LoadedSource

	Stats report.Stats

	// Observed are the subscription types assigned in the run, first-seen.
	Observed []types.SubscriptionType

	Graph       types.Graph
	Audits      []flowgraph.OrderAudit
	Diagnostics []diagnostics.Diagnostic
}

// ReportInput returns the view of r rendered by the reports.
func (r *Result) ReportInput() report.Input {
	return report.Input{
		RunID:       r.RunID,
		GeneratedAt: r.StartedAt,
		Stats:       r.Stats,
		Observed:    r.Observed,
		Graph:       r.Graph,
		Audits:      r.Audits,
		Diagnostics: r.Diagnostics,
	}
}

// =============================================================================
// ENGINE STRUCTURE
// =============================================================================

// Options configures an Engine.
type Options struct {
	Logger *zap.Logger

	// Metrics receives the run counters. Nil means a private registry.
	Metrics *metrics.Registry

	// Progress receives the load progress bar when the configuration
	// enables it.
	Progress io.Writer
}

// Engine runs audits for one configuration.
type Engine struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Registry
	files   *utils.FileManager
	loader  *ingest.Loader
	now     func() time.Time
}

// New creates an Engine. cfg must already be validated.
func New(cfg *config.Config, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	reg := opts.Metrics
	if reg == nil {
		reg = metrics.NewRegistry()
	}

	var progress io.Writer
	if cfg.Progress {
		progress = opts.Progress
	}

	files := utils.NewFileManager(cfg.InputDir, cfg.OutputDir, cfg.InputArchiveDir)
	files.UseTimestampSubdirs = cfg.ArchiveByDate

	return &Engine{
		cfg:     cfg,
		logger:  logger,
		metrics: reg,
		files:   files,
		loader: ingest.NewLoader(ingest.Options{
			CSV:         cfg.CSVSettings,
			Sheet:       cfg.XLSXSheet,
			Concurrency: cfg.MaxConcurrency,
			Progress:    progress,
			Logger:      logger,
		}),
		now: time.Now,
	}
}

// Metrics returns the registry the engine records into.
func (e *Engine) Metrics() *metrics.Registry {
	return e.metrics
}

// =============================================================================
// SOURCE RESOLUTION
// =============================================================================

// ResolveSources returns the sources of a run.
//
// RESOLUTION RULES:
//   - An explicit sources list is used in the listed order. Relative files
//     are resolved against input_dir. A source without a date is dated by
//     the file's modification time.
//   - Otherwise input_dir is scanned (sorted by name) and every export is
//     dated by its modification time.
//
// RETURNS:
//   - The sources, never empty on success.
//   - config.ErrNoSources when nothing resolves; a wrapped error when a
//     listed file is missing or the input directory cannot be read.
func ResolveSources(cfg *config.Config) ([]ingest.Source, error) {
	if len(cfg.Sources) > 0 {
		sources := make([]ingest.Source, 0, len(cfg.Sources))
		for _, s := range cfg.Sources {
			path := s.File
			if !filepath.IsAbs(path) {
				path = filepath.Join(cfg.InputDir, path)
			}

			date, err := s.ParsedDate()
			if err != nil {
				return nil, err
			}
			if date.IsZero() {
				info, err := os.Stat(path)
				if err != nil {
					return nil, fmt.Errorf("source %s: %w", s.File, err)
				}
				date = info.ModTime()
			}
			sources = append(sources, ingest.Source{Path: path, Date: date})
		}
		return sources, nil
	}

	files, err := utils.NewFileManager(cfg.InputDir, "", "").DiscoverInputs()
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", config.ErrNoSources, cfg.InputDir)
	}

	sources := make([]ingest.Source, len(files))
	for i, f := range files {
		sources[i] = ingest.Source{Path: f.Path, Date: f.ModTime}
	}
	return sources, nil
}

// SourceCheck is the outcome of checking one source.
type SourceCheck struct {
	Path string
	Rows int
	Err  error
}

// Check parses every source and verifies its required columns. It never
// stops at the first failure; callers inspect each SourceCheck.Err.
func (e *Engine) Check(sources []ingest.Source) []SourceCheck {
	checks := make([]SourceCheck, len(sources))
	for i, src := range sources {
		rows, err := e.loader.Inspect(src)
		checks[i] = SourceCheck{Path: src.Path, Rows: rows, Err: err}
	}
	return checks
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// Run executes steps 2-7 of the pipeline over sources.
//
// Data problems never fail a run; they are returned as diagnostics. Run
// fails only when a source cannot be loaded, ctx is cancelled, or the built
// graph breaks an invariant.
func (e *Engine) Run(ctx context.Context, sources []ingest.Source) (*Result, error) {
	if len(sources) == 0 {
		return nil, config.ErrNoSources
	}

	started := e.now()
	runID := utils.NewRunID()
	logger := e.logger.With(zap.String("run_id", runID))
	logger.Info("run started", zap.Int("sources", len(sources)))

	batch, err := e.loader.Load(ctx, sources)
	if err != nil {
		return nil, fmt.Errorf("failed to load sources: %w", err)
	}

	grouped, dropped := orders.Group(batch.Items)
	classified := orders.ClassifyAll(grouped)
	built := flowgraph.Build(classified.Orders)

	if err := flowgraph.Validate(built.Graph); err != nil {
		return nil, fmt.Errorf("flow graph invariant violated: %w", err)
	}

	var diags diagnostics.Collector
	diags.Merge(batch.Diagnostics)
	diags.Merge(classified.Diagnostics)
	diags.Merge(built.Diagnostics)

	res := &Result{
		RunID:     runID,
		StartedAt: started,
		Sources:   batch.Sources,
		Stats: report.Stats{
			Sources:          len(batch.Sources),
			RowsRead:         batch.Rows(),
			RowsDropped:      dropped,
			OrdersGrouped:    len(grouped),
			NotSubscription:  classified.NotSubscription,
			OrdersSkipped:    classified.Skipped,
			OrdersClassified: len(classified.Orders),
		},
		Observed:    classified.Observed.Types(),
		Graph:       built.Graph,
		Audits:      built.Audits,
		Diagnostics: diags.All(),
	}
	res.Duration = e.now().Sub(started)

	logDiagnostics(logger, res.Diagnostics)
	e.record(res)

	logger.Info("run finished",
		zap.Int("rows", res.Stats.RowsRead),
		zap.Int("orders", res.Stats.OrdersGrouped),
		zap.Int("classified", res.Stats.OrdersClassified),
		zap.Int("nodes", len(res.Graph.Nodes)),
		zap.Int("edges", len(res.Graph.Edges)),
		zap.Int("diagnostics", diags.Len()),
		zap.Int("warnings", diags.CountBySeverity(diagnostics.SeverityWarning)),
		zap.Duration("duration", res.Duration),
	)
	return res, nil
}

// logDiagnostics logs warnings at Warn and everything else at Debug.
func logDiagnostics(logger *zap.Logger, diags []diagnostics.Diagnostic) {
	for _, d := range diags {
		fields := []zap.Field{
			zap.String("code", string(d.Code)),
			zap.String("source", d.Source),
		}
		if d.OrderID != "" {
			fields = append(fields, zap.String("order", d.OrderID))
		}
		if d.Row > 0 {
			fields = append(fields, zap.Int("row", d.Row))
		}

		if d.Severity == diagnostics.SeverityWarning {
			logger.Warn(d.Message, fields...)
		} else {
			logger.Debug(d.Message, fields...)
		}
	}
}

func (e *Engine) record(res *Result) {
	m := e.metrics
	m.RowsRead.Add(float64(res.Stats.RowsRead))
	m.RowsDropped.Add(float64(res.Stats.RowsDropped))
	m.OrdersGrouped.Add(float64(res.Stats.OrdersGrouped))
	m.OrdersClassified.Add(float64(res.Stats.OrdersClassified))
	m.OrdersSkipped.Add(float64(res.Stats.OrdersSkipped))

	for _, a := range res.Audits {
		if a.Status != flowgraph.StatusComplete {
			m.OrdersIncomplete.WithLabelValues(string(a.Status)).Inc()
		}
	}
	for _, d := range res.Diagnostics {
		m.Diagnostics.WithLabelValues(string(d.Code), string(d.Severity)).Inc()
	}

	m.Nodes.Set(float64(len(res.Graph.Nodes)))
	m.Edges.Set(float64(len(res.Graph.Edges)))
	m.RunDurationSec.Set(res.Duration.Seconds())
	m.LastRunTimestamp.Set(float64(res.StartedAt.Unix()))
}

// =============================================================================
// OUTPUTS
// =============================================================================

// extensions maps output formats to file extensions.
var extensions = map[string]string{
	config.FormatJSON:     ".json",
	config.FormatCBOR:     ".cbor",
	config.FormatGraphML:  ".graphml",
	config.FormatXLSX:     ".xlsx",
	config.FormatMarkdown: ".md",
	config.FormatHTML:     ".html",
}

// WriteOutputs writes every configured output format of res, in configured
// order, then the metrics textfile when one is configured.
//
// RETURNS:
//   - The written paths.
//   - An error on the first output that cannot be written.
func (e *Engine) WriteOutputs(res *Result) ([]string, error) {
	if err := e.files.EnsureDirectories(); err != nil {
		return nil, err
	}

	base := utils.OutputBaseName(e.cfg.OutputNameFormat, res.RunID, res.StartedAt)
	in := res.ReportInput()

	var written []string
	for _, format := range e.cfg.OutputFormats {
		path := e.files.OutputPath(base, extensions[format])

		var err error
		if format == config.FormatXLSX {
			err = report.WriteWorkbook(path, in)
		} else {
			var data []byte
			data, err = render(format, in)
			if err == nil {
				err = os.WriteFile(path, data, 0o644)
			}
		}
		if err != nil {
			return written, fmt.Errorf("failed to write %s output: %w", format, err)
		}

		e.logger.Info("output written", zap.String("format", format), zap.String("path", path))
		written = append(written, path)
	}

	if e.cfg.MetricsTextfile != "" {
		if err := e.metrics.WriteTextfile(e.cfg.MetricsTextfile); err != nil {
			return written, err
		}
		written = append(written, e.cfg.MetricsTextfile)
	}

	return written, nil
}

func render(format string, in report.Input) ([]byte, error) {
	switch format {
	case config.FormatJSON:
		return flowgraph.EncodeJSON(flowgraph.ToSankey(in.Graph))
	case config.FormatCBOR:
		return flowgraph.EncodeCBOR(flowgraph.ToSankey(in.Graph))
	case config.FormatGraphML:
		return xmlwriter.Generate(in.Graph)
	case config.FormatMarkdown:
		return report.Markdown(in), nil
	case config.FormatHTML:
		return report.HTML(in)
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

// =============================================================================
// ARCHIVAL
// =============================================================================

// Archive moves the sources of res into the archive directory when the
// configuration enables it. A file listed twice is archived once.
func (e *Engine) Archive(res *Result) ([]string, error) {
	if !e.cfg.ArchiveInputs {
		return nil, nil
	}

	seen := make(map[string]bool, len(res.Sources))
	var archived []string
	for _, s := range res.Sources {
		if seen[s.Source.Path] {
			continue
		}
		seen[s.Source.Path] = true

		dst, err := e.files.ArchiveInputFile(s.Source.Path)
		if err != nil {
			return archived, fmt.Errorf("failed to archive %s: %w", s.Source.Path, err)
		}
		e.logger.Debug("source archived", zap.String("source", s.Source.Path), zap.String("archive", dst))
		archived = append(archived, dst)
	}
	return archived, nil
}
