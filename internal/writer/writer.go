// Package writer emits the round output files of spec 6 ("Outputs
// (files)"): results_summary.csv always, results_metrics.csv and the
// gzipped per-block/per-score dumps gated by DATA_MODE, historical_blocks.csv
// once per run, and a content-hashed config_snapshot.json.
package writer

import (
	"compress/gzip"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/zeebo/blake3"

	"github.com/bawdyanarchist/minesim/internal/config"
	"github.com/bawdyanarchist/minesim/internal/metrics"
	"github.com/bawdyanarchist/minesim/internal/simtypes"
)

// Writer owns every output file for one simulator invocation (one sweep or
// single run). Close must be called to flush buffered writers (spec 7:
// "on graceful shutdown, flush all open output streams before exit").
type Writer struct {
	dir      string
	dataMode string

	summary       *csvSink
	summaryHeader []string

	perPool *csvSink

	blocks *gzSink
	scores *gzSink

	historicalWritten bool
}

type csvSink struct {
	f *os.File
	w *csv.Writer
}

func newCSVSink(path string) (*csvSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("writer: creating %s: %w", path, err)
	}
	return &csvSink{f: f, w: csv.NewWriter(f)}, nil
}

func (s *csvSink) close() error {
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return err
	}
	return s.f.Close()
}

type gzSink struct {
	f *os.File
	gz *gzip.Writer
	w *csv.Writer
}

func newGZSink(path string) (*gzSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("writer: creating %s: %w", path, err)
	}
	gz := gzip.NewWriter(f)
	return &gzSink{f: f, gz: gz, w: csv.NewWriter(gz)}, nil
}

func (s *gzSink) close() error {
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return err
	}
	if err := s.gz.Close(); err != nil {
		return err
	}
	return s.f.Close()
}

// New creates a Writer rooted at dir. dataMode selects which optional files
// are opened: "simple" opens only results_summary.csv, "metrics" adds
// results_metrics.csv, "full" adds the gzipped block/score dumps too.
func New(dir, dataMode string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("writer: creating output dir %s: %w", dir, err)
	}

	summary, err := newCSVSink(filepath.Join(dir, "results_summary.csv"))
	if err != nil {
		return nil, err
	}

	w := &Writer{dir: dir, dataMode: dataMode, summary: summary}

	if dataMode == "metrics" || dataMode == "full" {
		perPool, err := newCSVSink(filepath.Join(dir, "results_metrics.csv"))
		if err != nil {
			return nil, err
		}
		w.perPool = perPool
	}

	if dataMode == "full" {
		blocks, err := newGZSink(filepath.Join(dir, "results_blocks.csv.gz"))
		if err != nil {
			return nil, err
		}
		w.blocks = blocks
		scores, err := newGZSink(filepath.Join(dir, "results_scores.csv.gz"))
		if err != nil {
			return nil, err
		}
		w.scores = scores
	}

	return w, nil
}

// WriteSummaryRow appends one round's summary metrics, plus any sweep
// parameter columns, writing the header on the first call (spec 6: "one row
// per round, columns: round, <metric>, <metric>_Std ..., then optional
// sweep-parameter columns").
func (w *Writer) WriteSummaryRow(round string, s metrics.RoundSummary, sweepParams map[string]interface{}) error {
	paramKeys := make([]string, 0, len(sweepParams))
	for k := range sweepParams {
		paramKeys = append(paramKeys, k)
	}
	sort.Strings(paramKeys)

	if w.summaryHeader == nil {
		header := []string{"round",
			"orphanRate", "orphanRate_Std",
			"reorgMax", "reorgMax_Std",
			"reorgP99", "reorgP99_Std",
			"reorgRate", "reorgRate_Std",
			"selfShares", "selfShares_Std",
			"gamma", "gamma_Std",
		}
		header = append(header, paramKeys...)
		if err := w.summary.w.Write(header); err != nil {
			return err
		}
		w.summaryHeader = paramKeys
	}

	row := []string{round,
		formatFloat(s.OrphanRate.Mean), formatFloat(s.OrphanRate.Stdev),
		formatFloat(s.ReorgMax.Mean), formatFloat(s.ReorgMax.Stdev),
		formatFloat(s.ReorgP99.Mean), formatFloat(s.ReorgP99.Stdev),
		formatFloat(s.ReorgRate.Mean), formatFloat(s.ReorgRate.Stdev),
		formatFloat(s.SelfShares.Mean), formatFloat(s.SelfShares.Stdev),
		formatFloat(s.Gamma.Mean), formatFloat(s.Gamma.Stdev),
	}
	for _, k := range w.summaryHeader {
		row = append(row, fmt.Sprintf("%v", sweepParams[k]))
	}
	if err := w.summary.w.Write(row); err != nil {
		return err
	}
	w.summary.w.Flush()
	return w.summary.w.Error()
}

// WriteMetricsRows appends one row per pool for this round (DATA_MODE >= metrics).
func (w *Writer) WriteMetricsRows(round string, per map[string]metrics.PoolMetrics) error {
	if w.perPool == nil {
		return nil
	}
	ids := make([]string, 0, len(per))
	for id := range per {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		m := per[id]
		row := []string{
			round, m.PoolID,
			formatFloat(m.OrphanRate),
			strconv.Itoa(m.ReorgMax),
			formatFloat(m.ReorgP99),
			formatFloat(m.ReorgRate),
			formatFloat(m.SelfShares),
			formatFloat(m.Gamma),
			formatBig(m.DifficultyAtHead),
		}
		if err := w.perPool.w.Write(row); err != nil {
			return err
		}
	}
	w.perPool.w.Flush()
	return w.perPool.w.Error()
}

// WriteBlocks appends every simulated block for this round (DATA_MODE = full).
func (w *Writer) WriteBlocks(round string, blocks map[simtypes.BlockID]*simtypes.Block) error {
	if w.blocks == nil {
		return nil
	}
	ids := make([]simtypes.BlockID, 0, len(blocks))
	for id := range blocks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return blocks[ids[i]].Height < blocks[ids[j]].Height })
	for _, id := range ids {
		b := blocks[id]
		row := []string{
			round, string(b.ID), strconv.FormatInt(int64(b.Height), 10), b.PoolID, string(b.PrevID),
			formatTimestamp(b.Timestamp), formatBig(b.Difficulty), formatBig(b.CumDifficulty),
			strconv.Itoa(int(b.Broadcast)),
		}
		if err := w.blocks.w.Write(row); err != nil {
			return err
		}
	}
	w.blocks.w.Flush()
	return w.blocks.w.Error()
}

// WriteScores appends every per-pool score for this round (DATA_MODE = full).
func (w *Writer) WriteScores(round string, pools map[string]*simtypes.Pool) error {
	if w.scores == nil {
		return nil
	}
	poolIDs := make([]string, 0, len(pools))
	for id := range pools {
		poolIDs = append(poolIDs, id)
	}
	sort.Strings(poolIDs)

	for _, pid := range poolIDs {
		pool := pools[pid]
		for _, id := range pool.Scores.InOrder() {
			s := pool.Scores.Get(id)
			chaintip := ""
			if s.Chaintip != nil {
				chaintip = string(*s.Chaintip)
			}
			row := []string{
				round, pid, string(s.BlockID),
				formatBig(s.DiffScore), formatBig(s.CumDiffScore),
				strconv.FormatBool(s.IsHeadPath), chaintip,
			}
			if err := w.scores.w.Write(row); err != nil {
				return err
			}
		}
	}
	w.scores.w.Flush()
	return w.scores.w.Error()
}

// WriteHistoricalBlocksOnce echoes the bootstrap blocks (spec 6:
// "historical_blocks.csv: the bootstrap blocks echoed once per run").
func (w *Writer) WriteHistoricalBlocksOnce(blocks []*simtypes.Block) error {
	if w.historicalWritten {
		return nil
	}
	w.historicalWritten = true

	sink, err := newCSVSink(filepath.Join(w.dir, "historical_blocks.csv"))
	if err != nil {
		return err
	}
	defer sink.close()

	if err := sink.w.Write([]string{"height", "blockId", "timestamp", "difficulty", "cumulativeDifficulty"}); err != nil {
		return err
	}
	for _, b := range blocks {
		row := []string{
			strconv.FormatInt(int64(b.Height), 10), string(b.ID),
			formatTimestamp(b.Timestamp), formatBig(b.Difficulty), formatBig(b.CumDifficulty),
		}
		if err := sink.w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// WriteConfigSnapshot writes the fully resolved effective config as JSON,
// content-hashed with blake3 so two sweep runs can cheaply confirm they
// used byte-identical resolved config (spec 9 "Round-trip / idempotence").
func (w *Writer) WriteConfigSnapshot(cfg *config.Config) error {
	body, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("writer: marshaling config snapshot: %w", err)
	}
	h := blake3.New()
	_, _ = h.Write(body)
	sum := h.Sum(nil)

	snapshot := struct {
		ContentHash string          `json:"contentHash"`
		Config      json.RawMessage `json:"config"`
	}{
		ContentHash: fmt.Sprintf("%x", sum),
		Config:      body,
	}
	out, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("writer: marshaling config snapshot envelope: %w", err)
	}
	return os.WriteFile(filepath.Join(w.dir, "config_snapshot.json"), out, 0644)
}

// Close flushes and closes every open output file.
func (w *Writer) Close() error {
	sinks := []interface{ close() error }{w.summary}
	if w.perPool != nil {
		sinks = append(sinks, w.perPool)
	}
	if w.blocks != nil {
		sinks = append(sinks, w.blocks)
	}
	if w.scores != nil {
		sinks = append(sinks, w.scores)
	}
	for _, s := range sinks {
		if err := s.close(); err != nil {
			return err
		}
	}
	return nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatBig(v *big.Int) string {
	if v == nil {
		return ""
	}
	return v.String()
}

func formatTimestamp(ts *int64) string {
	if ts == nil {
		return ""
	}
	return strconv.FormatInt(*ts, 10)
}
