package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/JaydenBeckwith/DNAtools/internal/duckdb"
	"github.com/JaydenBeckwith/DNAtools/internal/output"
)

func newQueryCmd() *cobra.Command {
	var (
		dbPath   string
		minScore float64
		symbol   string
		chrom    string
		pos      int64
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query scores stored by run --db",
		Example: `  splicefilter query --db scores.duckdb --min-score 0.8
  splicefilter query --db scores.duckdb --symbol KRAS
  splicefilter query --db scores.duckdb --chrom chr12 --pos 25245350`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath == "" {
				return &usageError{errors.New("--db is required")}
			}
			if !output.Exists(dbPath) {
				return fmt.Errorf("database %s: %w", dbPath, os.ErrNotExist)
			}

			store, err := duckdb.Open(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			var rows []duckdb.ScoreRow
			switch {
			case chrom != "" || pos != 0:
				if chrom == "" || pos <= 0 {
					return &usageError{errors.New("--chrom and --pos must be given together")}
				}
				rows, err = store.LookupSite(chrom, pos)
			case symbol != "":
				rows, err = store.SearchBySymbol(symbol)
			default:
				rows, err = store.SearchAbove(minScore)
			}
			if err != nil {
				return err
			}
			return writeScoreRows(cmd.OutOrStdout(), rows)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "DuckDB file written by run --db")
	cmd.Flags().Float64Var(&minScore, "min-score", 0, "List rows whose max delta score exceeds this value")
	cmd.Flags().StringVar(&symbol, "symbol", "", "List rows for a gene symbol")
	cmd.Flags().StringVar(&chrom, "chrom", "", "Chromosome of a single site")
	cmd.Flags().Int64Var(&pos, "pos", 0, "Position of a single site")

	return cmd
}

// writeScoreRows prints rows as a tab-separated table.
func writeScoreRows(w io.Writer, rows []duckdb.ScoreRow) error {
	fmt.Fprintln(w, "#SOURCE\tCHROM\tPOS\tREF\tALT\tSYMBOL\tDS_AG\tDS_AL\tDS_DG\tDS_DL\tMAX_DS")
	for _, r := range rows {
		if _, err := fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Source, r.Chrom, r.Pos, r.Ref, r.Alt, r.Symbol,
			score(r.DSAG), score(r.DSAL), score(r.DSDG), score(r.DSDL), score(r.MaxDS)); err != nil {
			return err
		}
	}
	return nil
}

func score(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
