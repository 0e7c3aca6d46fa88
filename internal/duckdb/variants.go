package duckdb

import (
	"context"
	"database/sql/driver"
	"fmt"
	"strconv"

	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/JaydenBeckwith/DNAtools/internal/output"
	"github.com/JaydenBeckwith/DNAtools/internal/splice"
)

// ScoreRow is one retained variant as stored in splice_scores.
type ScoreRow struct {
	Source string
	Chrom  string
	Pos    int64
	Ref    string
	Alt    string
	Symbol string
	DSAG   float64
	DSAL   float64
	DSDG   float64
	DSDL   float64
	MaxDS  float64
}

// rowKey is the composite key for deduplicating rows before writing.
type rowKey struct {
	chrom, ref, alt string
	pos             int64
}

// WriteRows batch-inserts rows for source using the Appender API. Earlier
// rows of the same source are replaced. Duplicate (chrom, pos, ref, alt)
// entries keep their first occurrence.
func (s *Store) WriteRows(source string, rows []ScoreRow) error {
	if err := s.ClearSource(source); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	seen := make(map[rowKey]bool, len(rows))
	deduped := make([]ScoreRow, 0, len(rows))
	for _, r := range rows {
		k := rowKey{r.Chrom, r.Ref, r.Alt, r.Pos}
		if !seen[k] {
			seen[k] = true
			deduped = append(deduped, r)
		}
	}

	conn, err := s.db.Conn(context.Background())
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", "splice_scores")
		return err
	}); err != nil {
		return fmt.Errorf("create appender: %w", err)
	}
	defer appender.Close()

	for _, r := range deduped {
		if err := appender.AppendRow(
			source, r.Chrom, r.Pos, r.Ref, r.Alt, r.Symbol,
			r.DSAG, r.DSAL, r.DSDG, r.DSDL, r.MaxDS,
		); err != nil {
			return fmt.Errorf("append score row: %w", err)
		}
	}

	return appender.Flush()
}

// ClearSource removes every stored row and the run record of source.
func (s *Store) ClearSource(source string) error {
	if _, err := s.db.Exec("DELETE FROM splice_scores WHERE source=?", source); err != nil {
		return fmt.Errorf("clear scores: %w", err)
	}
	if _, err := s.db.Exec("DELETE FROM runs WHERE source=?", source); err != nil {
		return fmt.Errorf("clear run: %w", err)
	}
	return nil
}

const selectRows = `SELECT
	source, chrom, pos, ref, alt, symbol,
	ds_ag, ds_al, ds_dg, ds_dl, max_ds
	FROM splice_scores`

// LookupSite returns all stored rows at a position, from any source.
func (s *Store) LookupSite(chrom string, pos int64) ([]ScoreRow, error) {
	rows, err := s.db.Query(selectRows+` WHERE chrom=? AND pos=? ORDER BY source, ref, alt`, chrom, pos)
	if err != nil {
		return nil, fmt.Errorf("query site: %w", err)
	}
	defer rows.Close()

	return scanScoreRows(rows)
}

// SearchAbove returns rows whose maximum delta score exceeds min, highest first.
func (s *Store) SearchAbove(min float64) ([]ScoreRow, error) {
	rows, err := s.db.Query(selectRows+` WHERE max_ds > ? ORDER BY max_ds DESC, chrom, pos`, min)
	if err != nil {
		return nil, fmt.Errorf("query by score: %w", err)
	}
	defer rows.Close()

	return scanScoreRows(rows)
}

// SearchBySymbol returns rows annotated with a gene symbol.
func (s *Store) SearchBySymbol(symbol string) ([]ScoreRow, error) {
	rows, err := s.db.Query(selectRows+` WHERE symbol=? ORDER BY chrom, pos`, symbol)
	if err != nil {
		return nil, fmt.Errorf("query by symbol: %w", err)
	}
	defer rows.Close()

	return scanScoreRows(rows)
}

// scanScoreRows scans rows into ScoreRow slices.
func scanScoreRows(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]ScoreRow, error) {
	var results []ScoreRow
	for rows.Next() {
		var r ScoreRow
		if err := rows.Scan(
			&r.Source, &r.Chrom, &r.Pos, &r.Ref, &r.Alt, &r.Symbol,
			&r.DSAG, &r.DSAL, &r.DSDG, &r.DSDL, &r.MaxDS,
		); err != nil {
			return nil, fmt.Errorf("scan score row: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate score rows: %w", err)
	}
	return results, nil
}

// FromFiltered converts a filtered-table row into a ScoreRow. The gene
// symbol comes from the row's SpliceAI field.
func FromFiltered(source string, fr output.FilteredRow) (ScoreRow, error) {
	r := ScoreRow{Source: source, Chrom: fr.Chrom, Pos: fr.Pos, Ref: fr.Ref, Alt: fr.Alt}
	if ann, err := splice.Parse(fr.SpliceAI); err == nil {
		r.Symbol = ann.Symbol
	}
	for _, f := range []struct {
		dst *float64
		raw string
	}{
		{&r.DSAG, fr.DSAG}, {&r.DSAL, fr.DSAL}, {&r.DSDG, fr.DSDG}, {&r.DSDL, fr.DSDL}, {&r.MaxDS, fr.MaxDS},
	} {
		v, err := strconv.ParseFloat(f.raw, 64)
		if err != nil {
			return ScoreRow{}, fmt.Errorf("%s:%d: score %q: %w", fr.Chrom, fr.Pos, f.raw, err)
		}
		*f.dst = v
	}
	return r, nil
}
