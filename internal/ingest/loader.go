// =============================================================================
// Subscription Flow Audit - Source Loader
// =============================================================================
//
// Loads every export of a run into one ordered batch of line items.
//
// LOADING PROCESS:
//   1. Parse sources in parallel (bounded by Options.Concurrency). Each
//      worker hashes the file, parses it, checks the required columns and
//      maps rows to line items. Workers only write their own result slot.
//   2. Reduce sequentially in source order: concatenate items, merge
//      diagnostics, flag duplicate sources by digest.
//
// Classification and graph building happen after Load returns, so the
// parallel phase can never change first-match tie-breaks downstream.
//
// =============================================================================

package ingest

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/zeebo/blake3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ginjaninja78/subscription-flow-audit/internal/config"
	"github.com/ginjaninja78/subscription-flow-audit/internal/csvparser"
	"github.com/ginjaninja78/subscription-flow-audit/internal/diagnostics"
	"github.com/ginjaninja78/subscription-flow-audit/internal/types"
	"github.com/ginjaninja78/subscription-flow-audit/internal/xlsxparser"
)

// Source is one export and the date it covers.
type Source struct {
	Path string
	Date time.Time
}

// Options configures a Loader.
type Options struct {
	CSV   config.CSVSettings
	Sheet string

	// Concurrency bounds parallel parsing. Values below 1 mean 1.
	Concurrency int

	// Progress receives a progress bar when non-nil.
	Progress io.Writer

	Logger *zap.Logger
}

// Loader loads sources into a Batch.
type Loader struct {
	opts   Options
	logger *zap.Logger
}

// NewLoader returns a loader. A nil logger is replaced by a no-op logger.
func NewLoader(opts Options) *Loader {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Loader{opts: opts, logger: logger}
}

// LoadedSource describes one loaded export.
type LoadedSource struct {
	Source
	Rows int

	// Digest is the hex BLAKE3-256 digest of the file as stored.
	Digest string
}

// Batch is the reduced result of a load.
type Batch struct {
	// Items are all line items, sources in input order, rows in file order.
	Items []types.LineItem

	Sources     []LoadedSource
	Diagnostics []diagnostics.Diagnostic
}

// Rows returns the number of rows read across all sources.
func (b *Batch) Rows() int {
	n := 0
	for _, s := range b.Sources {
		n += s.Rows
	}
	return n
}

type loaded struct {
	source LoadedSource
	items  []types.LineItem
	diags  []diagnostics.Diagnostic
}

// Load parses every source and returns the combined batch. The first
// source that cannot be read or lacks a required column fails the load.
func (l *Loader) Load(ctx context.Context, sources []Source) (*Batch, error) {
	results := make([]loaded, len(sources))

	var bar *progressbar.ProgressBar
	if l.opts.Progress != nil {
		bar = progressbar.NewOptions(len(sources),
			progressbar.OptionSetWriter(l.opts.Progress),
			progressbar.OptionSetDescription("loading exports"),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.opts.Concurrency)

	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := l.loadOne(i, src)
			if err != nil {
				return err
			}
			results[i] = res
			if bar != nil {
				_ = bar.Add(1)
			}
			return nil
		})
	}

	err := g.Wait()
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		return nil, err
	}

	return reduce(results), nil
}

// loadOne hashes, parses and maps a single source.
func (l *Loader) loadOne(index int, src Source) (loaded, error) {
	digest, err := Digest(src.Path)
	if err != nil {
		return loaded{}, err
	}

	data, err := l.parse(src.Path)
	if err != nil {
		return loaded{}, err
	}
	if err := data.RequireColumns(RequiredColumns...); err != nil {
		return loaded{}, err
	}

	var diags diagnostics.Collector
	items := MapRows(data, src.Date, index, &diags)

	l.logger.Debug("source loaded",
		zap.String("source", src.Path),
		zap.Int("rows", data.RowCount()),
		zap.String("digest", digest[:16]),
	)

	return loaded{
		source: LoadedSource{Source: src, Rows: data.RowCount(), Digest: digest},
		items:  items,
		diags:  diags.All(),
	}, nil
}

// Inspect parses src and checks its required columns without mapping rows.
// It returns the number of data rows.
func (l *Loader) Inspect(src Source) (int, error) {
	data, err := l.parse(src.Path)
	if err != nil {
		return 0, err
	}
	if err := data.RequireColumns(RequiredColumns...); err != nil {
		return 0, err
	}
	return data.RowCount(), nil
}

func (l *Loader) parse(path string) (*csvparser.Data, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return xlsxparser.Parse(path, l.opts.Sheet)
	}
	return csvparser.Parse(path, l.opts.CSV)
}

// reduce combines per-source results in source order.
func reduce(results []loaded) *Batch {
	batch := &Batch{Sources: make([]LoadedSource, 0, len(results))}
	var diags diagnostics.Collector
	firstByDigest := make(map[string]string)

	for _, res := range results {
		batch.Sources = append(batch.Sources, res.source)
		batch.Items = append(batch.Items, res.items...)
		diags.Merge(res.diags)

		if prev, dup := firstByDigest[res.source.Digest]; dup {
			diags.Info(diagnostics.DuplicateSource, res.source.Path, 0,
				"content identical to %s; rows are counted twice", prev)
			continue
		}
		firstByDigest[res.source.Digest] = res.source.Path
	}

	batch.Diagnostics = diags.All()
	return batch
}

// Digest returns the hex BLAKE3-256 digest of the file at path.
func Digest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("%s: failed to hash: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
