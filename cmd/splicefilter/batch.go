package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/multierr"

	"github.com/JaydenBeckwith/DNAtools/internal/pipeline"
)

func newBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Run the pipeline over every matching VCF in a directory",
		Long: `Run independent pipelines for each file in --dir ending in --suffix, using
a bounded pool of workers. Each input gets its own <base>.exact_sites.vcf.
Failures of individual files are reported together at the end.`,
		Example: `  splicefilter batch --dir spliceai/
  splicefilter batch --dir spliceai/ --suffix .vcf.gz --workers 8 --db scores.duckdb`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			dir, _ := cmd.Flags().GetString("dir")
			if dir == "" {
				return &usageError{errors.New("--dir is required")}
			}

			inputs, err := pipeline.FindInputs(dir, viper.GetString("suffix"))
			if err != nil {
				return err
			}
			if len(inputs) == 0 {
				fmt.Fprintf(os.Stderr, "No files ending in %s found in %s\n", viper.GetString("suffix"), dir)
				return nil
			}

			r, _, done, err := newRunner()
			if err != nil {
				return err
			}
			defer done()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			results, err := r.RunBatch(ctx, inputs, viper.GetInt("workers"))
			for _, res := range results {
				if res != nil {
					fmt.Fprintf(os.Stderr, "Finished %s -> %s\n", res.Input, res.Paths.Subset)
				}
			}
			if err != nil {
				errs := multierr.Errors(err)
				for _, e := range errs {
					fmt.Fprintf(os.Stderr, "Failed: %v\n", e)
				}
				return fmt.Errorf("%d of %d inputs failed: %w", len(errs), len(inputs), errs[0])
			}
			return nil
		},
	}

	cmd.Flags().StringP("dir", "d", "", "Directory of input VCFs")
	cmd.Flags().String("suffix", pipeline.DefaultSuffix, "Process files ending in this suffix")
	cmd.Flags().IntP("workers", "w", 4, "Number of files processed in parallel")
	addPipelineFlags(cmd)

	return cmd
}
