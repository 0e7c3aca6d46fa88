package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/JaydenBeckwith/DNAtools/internal/duckdb"
	"github.com/JaydenBeckwith/DNAtools/internal/extract"
	"github.com/JaydenBeckwith/DNAtools/internal/pipeline"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Filter one VCF and subset it to the retained positions",
		Long: `Compress and index the input if needed, extract SpliceAI delta scores,
keep variants whose maximum score exceeds the threshold, write the sites file
and the subset VCF next to the input.`,
		Example: `  splicefilter run --input sample.spliceai.vcf.gz
  splicefilter run --input sample.vcf --threshold 0.8 --on-malformed skip
  splicefilter run --input sample.vcf.gz --db scores.duckdb`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			input, _ := cmd.Flags().GetString("input")
			if input == "" {
				return &usageError{errors.New("--input is required")}
			}
			return runPipeline(cmd.Context(), input)
		},
	}

	cmd.Flags().StringP("input", "i", "", "Input VCF (.vcf or .vcf.gz)")
	addPipelineFlags(cmd)
	cmd.Flags().String("sites-name", "exact_sites.vcf", "Sites file name, written next to the input")

	return cmd
}

func addPipelineFlags(cmd *cobra.Command) {
	cmd.Flags().Float64("threshold", extract.DefaultThreshold, "Keep variants whose max delta score exceeds this value")
	cmd.Flags().String("on-malformed", extract.PolicyFail.String(), "Malformed SpliceAI annotations: fail or skip")
	cmd.Flags().Int("bgzf-workers", 1, "BGZF compression goroutines per file")
	cmd.Flags().String("db", "", "Store retained scores in this DuckDB file")
}

// pipelineConfig builds a pipeline configuration from viper settings.
// The returned closer releases the score store, if one was opened.
func pipelineConfig() (pipeline.Config, func(), error) {
	cfg := pipeline.DefaultConfig()
	cfg.Threshold = viper.GetFloat64("threshold")
	cfg.Workers = viper.GetInt("bgzf-workers")
	if name := viper.GetString("sites-name"); name != "" {
		cfg.SitesName = name
	}

	policy, err := extract.ParsePolicy(viper.GetString("on-malformed"))
	if err != nil {
		return cfg, nil, &usageError{err}
	}
	cfg.Policy = policy

	closer := func() {}
	if path := viper.GetString("db"); path != "" {
		store, err := duckdb.Open(path)
		if err != nil {
			return cfg, nil, err
		}
		cfg.Store = store
		closer = func() { store.Close() }
	}
	return cfg, closer, nil
}

func newRunner() (*pipeline.Runner, *zap.Logger, func(), error) {
	cfg, closer, err := pipelineConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	logger, err := newLogger()
	if err != nil {
		closer()
		return nil, nil, nil, fmt.Errorf("create logger: %w", err)
	}

	r := pipeline.NewRunner(cfg)
	r.SetLogger(logger)
	logger.Info("configuration",
		zap.String("threshold", extract.FormatThreshold(cfg.Threshold)),
		zap.Stringer("on_malformed", cfg.Policy),
		zap.Int("bgzf_workers", cfg.Workers))

	return r, logger, func() {
		logger.Sync()
		closer()
	}, nil
}

func runPipeline(ctx context.Context, input string) error {
	r, _, done, err := newRunner()
	if err != nil {
		return err
	}
	defer done()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	res, err := r.Run(ctx, input)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Retained %d of %d variants (%d unannotated)\n",
		res.Extract.Retained, res.Extract.Records, res.Extract.Unannotated)
	fmt.Fprintf(os.Stderr, "Filtered VCF: %s\n", res.Paths.Subset)
	return nil
}
