// Package pipeline runs the normalize, extract, sites and subset stages
// over one input VCF, or over many inputs on a bounded worker pool.
package pipeline

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/JaydenBeckwith/DNAtools/internal/duckdb"
	"github.com/JaydenBeckwith/DNAtools/internal/extract"
	"github.com/JaydenBeckwith/DNAtools/internal/normalize"
	"github.com/JaydenBeckwith/DNAtools/internal/output"
	"github.com/JaydenBeckwith/DNAtools/internal/sites"
	"github.com/JaydenBeckwith/DNAtools/internal/subset"
)

// Normalizer produces a compressed, indexed VCF.
type Normalizer interface {
	Normalize(path string) (*normalize.Result, error)
}

// Extractor writes the filtered-row table.
type Extractor interface {
	Extract(in, out string) (*extract.Stats, error)
}

// SitesBuilder writes the sites VCF from a filtered-row table.
type SitesBuilder interface {
	Build(tsvPath, sitesPath string) (int, error)
}

// Subsetter writes the records of a VCF at the positions of a sites VCF.
type Subsetter interface {
	Subset(vcfPath, sitesPath, out string) (*subset.Stats, error)
}

// ScoreStore persists retained rows.
type ScoreStore interface {
	WriteRows(source string, rows []duckdb.ScoreRow) error
	RecordRun(fp duckdb.FileFingerprint, retained int) error
}

// Config holds the tunables of a run.
type Config struct {
	Threshold float64
	Policy    extract.MalformedPolicy
	Workers   int    // BGZF compression goroutines per file
	SitesName string // sites file name, default sites.DefaultFileName
	Store     ScoreStore
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		Threshold: extract.DefaultThreshold,
		Policy:    extract.PolicyFail,
		Workers:   1,
		SitesName: sites.DefaultFileName,
	}
}

// Result describes a completed run.
type Result struct {
	Input     string
	Paths     Paths
	Stage     Stage
	Normalize *normalize.Result
	Extract   *extract.Stats
	Sites     int
	Subset    *subset.Stats
}

// Runner executes the stages in order, stopping at the first failure.
type Runner struct {
	cfg    Config
	logger *zap.Logger

	Normalizer Normalizer
	Extractor  Extractor
	Sites      SitesBuilder
	Subsetter  Subsetter
}

// NewRunner creates a Runner whose stages are built from cfg.
func NewRunner(cfg Config) *Runner {
	n := normalize.New()
	n.SetWorkers(cfg.Workers)

	e := extract.New()
	e.SetThreshold(cfg.Threshold)
	e.SetPolicy(cfg.Policy)

	return &Runner{
		cfg:        cfg,
		logger:     zap.NewNop(),
		Normalizer: n,
		Extractor:  e,
		Sites:      sites.NewBuilder(),
		Subsetter:  subset.New(),
	}
}

// SetLogger sets the logger on the runner and on the default stages.
func (r *Runner) SetLogger(l *zap.Logger) {
	r.logger = l
	if n, ok := r.Normalizer.(*normalize.Normalizer); ok {
		n.SetLogger(l)
	}
	if e, ok := r.Extractor.(*extract.Extractor); ok {
		e.SetLogger(l)
	}
	if b, ok := r.Sites.(*sites.Builder); ok {
		b.SetLogger(l)
	}
	if s, ok := r.Subsetter.(*subset.Subsetter); ok {
		s.SetLogger(l)
	}
}

// Run takes input from Raw to Subset. The sites file is named by
// Config.SitesName.
func (r *Runner) Run(ctx context.Context, input string) (*Result, error) {
	return r.run(ctx, input, func(normalized string) Paths {
		return Derive(normalized, r.cfg.SitesName)
	})
}

func (r *Runner) run(ctx context.Context, input string, derive func(string) Paths) (*Result, error) {
	res := &Result{Input: input, Stage: Raw}
	fail := func(err error) (*Result, error) {
		return res, &StageError{Stage: res.Stage.Next(), Input: input, Err: err}
	}

	if _, err := os.Stat(input); err != nil {
		return fail(fmt.Errorf("input: %w", err))
	}

	// Raw -> Normalized
	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	nres, err := r.Normalizer.Normalize(input)
	if err != nil {
		return fail(err)
	}
	if err := output.Require("normalize", nres.Path); err != nil {
		return fail(err)
	}
	if !normalize.HasIndex(nres.Path) {
		return fail(output.Require("index", normalize.IndexPath(nres.Path)))
	}
	res.Normalize = nres
	res.Paths = derive(nres.Path)
	res.Stage = Normalized
	r.logger.Info("normalized",
		zap.String("vcf", nres.Path),
		zap.Bool("compressed", nres.Compressed),
		zap.Bool("indexed", nres.Indexed))

	// Normalized -> Filtered
	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	estats, err := r.Extractor.Extract(res.Paths.Normalized, res.Paths.Table)
	if err != nil {
		return fail(err)
	}
	if err := output.Require("extract", res.Paths.Table); err != nil {
		return fail(err)
	}
	res.Extract = estats
	res.Stage = Filtered
	r.logger.Info("filtered",
		zap.String("table", res.Paths.Table),
		zap.Int("records", estats.Records),
		zap.Int("retained", estats.Retained),
		zap.Int("unannotated", estats.Unannotated),
		zap.Int("malformed", estats.Malformed))

	if r.cfg.Store != nil {
		if err := r.persist(input, res.Paths.Table); err != nil {
			return fail(err)
		}
	}

	// Filtered -> SitesBuilt
	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	n, err := r.Sites.Build(res.Paths.Table, res.Paths.Sites)
	if err != nil {
		return fail(err)
	}
	if err := output.Require("sites", res.Paths.Sites); err != nil {
		return fail(err)
	}
	res.Sites = n
	res.Stage = SitesBuilt
	r.logger.Info("sites built", zap.String("sites", res.Paths.Sites), zap.Int("count", n))

	// SitesBuilt -> Subset
	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	sstats, err := r.Subsetter.Subset(res.Paths.Normalized, res.Paths.Sites, res.Paths.Subset)
	if err != nil {
		return fail(err)
	}
	if err := output.Require("subset", res.Paths.Subset); err != nil {
		return fail(err)
	}
	res.Subset = sstats
	res.Stage = Subset
	r.logger.Info("subset written",
		zap.String("vcf", res.Paths.Subset),
		zap.Int("positions", sstats.Positions),
		zap.Int("records", sstats.Records))

	return res, nil
}

// persist writes the filtered table's rows to the configured store under
// the input path.
func (r *Runner) persist(input, table string) error {
	f, err := os.Open(table)
	if err != nil {
		return fmt.Errorf("open filtered table: %w", err)
	}
	defer f.Close()

	filtered, err := output.ReadFilteredRows(f)
	if err != nil {
		return err
	}
	rows := make([]duckdb.ScoreRow, 0, len(filtered))
	for _, fr := range filtered {
		row, err := duckdb.FromFiltered(input, fr)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}
	if err := r.cfg.Store.WriteRows(input, rows); err != nil {
		return fmt.Errorf("store scores: %w", err)
	}

	fp, err := duckdb.StatFile(input)
	if err != nil {
		return err
	}
	if err := r.cfg.Store.RecordRun(fp, len(rows)); err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	r.logger.Info("scores stored", zap.String("source", input), zap.Int("rows", len(rows)))
	return nil
}
