package engine

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ginjaninja78/subscription-flow-audit/internal/config"
	"github.com/ginjaninja78/subscription-flow-audit/internal/csvparser"
	"github.com/ginjaninja78/subscription-flow-audit/internal/diagnostics"
	"github.com/ginjaninja78/subscription-flow-audit/internal/flowgraph"
	"github.com/ginjaninja78/subscription-flow-audit/internal/ingest"
	"github.com/ginjaninja78/subscription-flow-audit/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const export = "Name,Lineitem name,Lineitem quantity,Lineitem price,Total,Discount Code\n" +
	"#1001,Custom Relief Bra Set Subscription Box - S,1,0.00,0.00,WELCOME10\n" +
	"#1001,Dreamscape Relief Bra - S,1,68.00,68.00,\n" +
	"#1001,Nude Thong - M,2,14.00,28.00,\n" +
	"#1001,Black Bralette - M,1,40.00,40.00,\n" +
	"#1002,Custom Sheer Bra Set Subscription Box - S,1,0.00,0.00,\n" +
	"#1002,Nude Relief Bra - S,one,68.00,68.00,\n" +
	"#1003,Nude Thong - S,1,28.00,28.00,\n" +
	"#1004-EXC,Dreamscape Relief Bra - S,1,0.00,0.00,\n"

type fixture struct {
	cfg    *config.Config
	source string
	logs   *observer.ObservedLogs
	engine *Engine
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	root := t.TempDir()

	cfg := config.Default()
	cfg.InputDir = filepath.Join(root, "input")
	cfg.OutputDir = filepath.Join(root, "output")
	cfg.InputArchiveDir = filepath.Join(root, "archive")
	cfg.OutputNameFormat = "{run}"
	cfg.OutputFormats = []string{"json", "CBOR", "graphml", "xlsx", "markdown", "html"}
	cfg.MetricsTextfile = filepath.Join(root, "flowaudit.prom")
	cfg.ArchiveInputs = true
	require.NoError(t, cfg.Validate())

	require.NoError(t, os.MkdirAll(cfg.InputDir, 0o755))
	source := filepath.Join(cfg.InputDir, "orders.csv")
	require.NoError(t, os.WriteFile(source, []byte(export), 0o644))

	core, logs := observer.New(zapcore.DebugLevel)
	return fixture{
		cfg:    cfg,
		source: source,
		logs:   logs,
		engine: New(cfg, Options{Logger: zap.New(core)}),
	}
}

func (f fixture) run(t *testing.T) *Result {
	t.Helper()
	sources, err := ResolveSources(f.cfg)
	require.NoError(t, err)
	res, err := f.engine.Run(context.Background(), sources)
	require.NoError(t, err)
	return res
}

func TestRun(t *testing.T) {
	f := newFixture(t)
	res := f.run(t)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 8, res.Stats.RowsRead)
	assert.Equal(t, 1, res.Stats.RowsDropped)
	assert.Equal(t, 3, res.Stats.OrdersGrouped)
	assert.Equal(t, 1, res.Stats.NotSubscription)
	assert.Equal(t, 0, res.Stats.OrdersSkipped)
	assert.Equal(t, 2, res.Stats.OrdersClassified)
	assert.Equal(t, []types.SubscriptionType{types.ReliefBraSet, types.SheerBraSet}, res.Observed)

	var labels []string
	for _, n := range res.Graph.Nodes {
		labels = append(labels, n.Label)
	}
	assert.Equal(t, []string{"ReliefBraSet", "Dreamscape Relief Bra", "Nude Thong", "Black Bralette", "SheerBraSet"}, labels)
	require.Len(t, res.Graph.Edges, 3)
	assert.Equal(t, 2, res.Graph.Edges[1].Weight)

	require.Len(t, res.Audits, 2)
	assert.Equal(t, flowgraph.StatusComplete, res.Audits[0].Status)
	assert.Equal(t, "136", res.Audits[0].TotalSpent.String())
	assert.Equal(t, flowgraph.StatusMissingBra, res.Audits[1].Status)
}

func TestRun_LogsDiagnostics(t *testing.T) {
	f := newFixture(t)
	f.run(t)

	missing := f.logs.FilterField(zap.String("code", string(diagnostics.MissingPrimaryBra))).All()
	require.Len(t, missing, 1)
	assert.Equal(t, zapcore.WarnLevel, missing[0].Level)
	ctx := missing[0].ContextMap()
	assert.Equal(t, "#1002", ctx["order"])
	assert.Contains(t, ctx, "run_id")

	malformed := f.logs.FilterField(zap.String("code", string(diagnostics.MalformedNumber))).All()
	require.Len(t, malformed, 1)
	assert.Equal(t, zapcore.DebugLevel, malformed[0].Level)
	assert.EqualValues(t, 7, malformed[0].ContextMap()["row"])

	finished := f.logs.FilterMessage("run finished").All()
	require.Len(t, finished, 1)
	assert.EqualValues(t, 2, finished[0].ContextMap()["diagnostics"])
	assert.EqualValues(t, 1, finished[0].ContextMap()["warnings"])
}

func TestRun_Metrics(t *testing.T) {
	f := newFixture(t)
	f.run(t)

	m := f.engine.Metrics()
	assert.Equal(t, 8.0, testutil.ToFloat64(m.RowsRead))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RowsDropped))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.OrdersClassified))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OrdersIncomplete.WithLabelValues(string(flowgraph.StatusMissingBra))))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.Nodes))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Edges))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Diagnostics.WithLabelValues(string(diagnostics.MissingPrimaryBra), string(diagnostics.SeverityWarning))))
}

func TestWriteOutputsAndArchive(t *testing.T) {
	f := newFixture(t)
	res := f.run(t)

	written, err := f.engine.WriteOutputs(res)
	require.NoError(t, err)

	var names []string
	for _, p := range written {
		assert.FileExists(t, p)
		names = append(names, filepath.Base(p))
	}
	assert.Equal(t, []string{
		"flow.json", "flow.cbor", "flow.graphml", "flow.xlsx", "flow.md", "flow.html", "flowaudit.prom",
	}, names)

	raw, err := os.ReadFile(written[0])
	require.NoError(t, err)
	var doc flowgraph.Sankey
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, flowgraph.ToSankey(res.Graph), doc)

	archived, err := f.engine.Archive(res)
	require.NoError(t, err)
	require.Len(t, archived, 1)
	assert.Equal(t, filepath.Join(f.cfg.InputArchiveDir, "orders.csv"), archived[0])
	assert.NoFileExists(t, f.source)
}

func TestArchive_ByDate(t *testing.T) {
	f := newFixture(t)
	f.cfg.ArchiveByDate = true
	eng := New(f.cfg, Options{})

	sources, err := ResolveSources(f.cfg)
	require.NoError(t, err)
	res, err := eng.Run(context.Background(), sources)
	require.NoError(t, err)

	archived, err := eng.Archive(res)
	require.NoError(t, err)
	require.Len(t, archived, 1)

	rel, err := filepath.Rel(f.cfg.InputArchiveDir, archived[0])
	require.NoError(t, err)
	assert.Regexp(t, `^\d{4}/\d{2}/\d{2}/orders\.csv$`, filepath.ToSlash(rel))
	assert.NoFileExists(t, f.source)
}

func TestArchive_Disabled(t *testing.T) {
	f := newFixture(t)
	f.cfg.ArchiveInputs = false
	res := f.run(t)

	archived, err := f.engine.Archive(res)
	require.NoError(t, err)
	assert.Empty(t, archived)
	assert.FileExists(t, f.source)
}

func TestResolveSources(t *testing.T) {
	t.Run("explicit list", func(t *testing.T) {
		f := newFixture(t)
		f.cfg.Sources = []config.Source{{File: "orders.csv", Date: "2024-01-31"}, {File: f.source}}

		sources, err := ResolveSources(f.cfg)
		require.NoError(t, err)
		require.Len(t, sources, 2)
		assert.Equal(t, f.source, sources[0].Path)
		assert.Equal(t, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), sources[0].Date)
		assert.False(t, sources[1].Date.IsZero())
	})

	t.Run("missing listed file", func(t *testing.T) {
		f := newFixture(t)
		f.cfg.Sources = []config.Source{{File: "gone.csv"}}
		_, err := ResolveSources(f.cfg)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("empty input directory", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, os.Remove(f.source))
		_, err := ResolveSources(f.cfg)
		assert.ErrorIs(t, err, config.ErrNoSources)
	})
}

func TestRun_Errors(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.Run(context.Background(), nil)
	assert.ErrorIs(t, err, config.ErrNoSources)

	short := filepath.Join(f.cfg.InputDir, "short.csv")
	require.NoError(t, os.WriteFile(short, []byte("Name,Lineitem name\n#1,Thong - S\n"), 0o644))
	_, err = f.engine.Run(context.Background(), []ingest.Source{{Path: short}})
	assert.True(t, errors.Is(err, csvparser.ErrMissingColumn), "got %v", err)
}

func TestCheck(t *testing.T) {
	f := newFixture(t)
	short := filepath.Join(f.cfg.InputDir, "short.csv")
	require.NoError(t, os.WriteFile(short, []byte("Name,Total\n#1,0\n"), 0o644))

	checks := f.engine.Check([]ingest.Source{{Path: f.source}, {Path: short}})
	require.Len(t, checks, 2)
	assert.NoError(t, checks[0].Err)
	assert.Equal(t, 8, checks[0].Rows)
	assert.ErrorIs(t, checks[1].Err, csvparser.ErrMissingColumn)
}
