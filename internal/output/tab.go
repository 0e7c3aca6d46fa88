package output

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/grailbio/base/tsv"
)

// FilteredColumns are the header names of the filtered-row table.
var FilteredColumns = []string{
	"#CHROM",
	"POS",
	"REF",
	"ALT",
	"CSQ",
	"SpliceAI",
	"DS_AG",
	"DS_AL",
	"DS_DG",
	"DS_DL",
	"MAX_DS",
}

// FilteredRow is one retained variant: the source fields, the four decoded
// delta scores and their maximum. Scores keep their source text.
type FilteredRow struct {
	Chrom    string
	Pos      int64
	Ref      string
	Alt      string
	CSQ      string
	SpliceAI string
	DSAG     string
	DSAL     string
	DSDG     string
	DSDL     string
	MaxDS    string
}

// MaxScore returns the numeric value of the MAX_DS column.
func (r *FilteredRow) MaxScore() (float64, error) {
	return strconv.ParseFloat(r.MaxDS, 64)
}

// TabWriter writes filtered rows in tab-delimited format.
type TabWriter struct {
	w *tsv.Writer
}

// NewTabWriter creates a new tab-delimited writer.
func NewTabWriter(w io.Writer) *TabWriter {
	return &TabWriter{w: tsv.NewWriter(w)}
}

// WriteHeader writes the commented header line.
func (tw *TabWriter) WriteHeader() error {
	for _, col := range FilteredColumns {
		tw.w.WriteString(col)
	}
	return tw.w.EndLine()
}

// Write writes a single filtered row.
func (tw *TabWriter) Write(r *FilteredRow) error {
	tw.w.WriteString(r.Chrom)
	tw.w.WriteString(strconv.FormatInt(r.Pos, 10))
	tw.w.WriteString(r.Ref)
	tw.w.WriteString(r.Alt)
	tw.w.WriteString(r.CSQ)
	tw.w.WriteString(r.SpliceAI)
	tw.w.WriteString(r.DSAG)
	tw.w.WriteString(r.DSAL)
	tw.w.WriteString(r.DSDG)
	tw.w.WriteString(r.DSDL)
	tw.w.WriteString(r.MaxDS)
	return tw.w.EndLine()
}

// Flush flushes any buffered data to the underlying writer.
func (tw *TabWriter) Flush() error {
	return tw.w.Flush()
}

// ReadFilteredRows reads every row of a filtered-row table. Blank lines and
// lines starting with '#' are skipped.
func ReadFilteredRows(r io.Reader) ([]FilteredRow, error) {
	reader := tsv.NewReader(bufio.NewReader(r))
	reader.Comment = '#'
	reader.LazyQuotes = true

	var rows []FilteredRow
	for {
		var row FilteredRow
		if err := reader.Read(&row); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("read filtered row %d: %w", len(rows)+1, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
