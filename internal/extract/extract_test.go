package extract

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaydenBeckwith/DNAtools/internal/output"
	"github.com/JaydenBeckwith/DNAtools/internal/splice"
	"github.com/JaydenBeckwith/DNAtools/internal/vcf"
)

const header = "##fileformat=VCFv4.2\n#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n"

func record(chrom string, pos int, info string) string {
	return strings.Join([]string{chrom, strconv.Itoa(pos), ".", "A", "G", ".", "PASS", info}, "\t") + "\n"
}

func spliceAI(s3, s4, s5, s6 string) string {
	return "SpliceAI=G|GENE|" + s3 + "|" + s4 + "|" + s5 + "|" + s6 + "|1|2|3|4"
}

func run(t *testing.T, e *Extractor, body string) ([]output.FilteredRow, *Stats, error) {
	t.Helper()
	parser, err := vcf.NewParserFromReader(strings.NewReader(header + body))
	require.NoError(t, err)

	var buf bytes.Buffer
	stats, err := e.ExtractFrom(parser, &buf)
	if err != nil {
		return nil, stats, err
	}
	rows, rerr := output.ReadFilteredRows(&buf)
	require.NoError(t, rerr)
	return rows, stats, nil
}

func TestExtract_Threshold(t *testing.T) {
	tests := []struct {
		name   string
		scores [4]string
		keep   bool
	}{
		{"above", [4]string{"0.9", "0", "0", "0"}, true},
		{"exactly threshold", [4]string{"0.5", "0.5", "0.5", "0.5"}, false},
		{"below", [4]string{"0.4", "0.1", "0.2", "0.3"}, false},
		{"just above", [4]string{"0", "0", "0", "0.51"}, true},
		{"chained tie", [4]string{"0.1", "0.6", "0.3", "0.6"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := record("chr1", 100, spliceAI(tt.scores[0], tt.scores[1], tt.scores[2], tt.scores[3]))
			rows, stats, err := run(t, New(), body)
			require.NoError(t, err)
			assert.Equal(t, 1, stats.Records)
			if tt.keep {
				require.Len(t, rows, 1)
				assert.Equal(t, 1, stats.Retained)
			} else {
				assert.Empty(t, rows)
				assert.Equal(t, 0, stats.Retained)
			}
		})
	}
}

func TestExtract_ChainedMax(t *testing.T) {
	rows, _, err := run(t, New(), record("chr1", 100, spliceAI("0.1", "0.6", "0.3", "0.6")))
	require.NoError(t, err)
	require.Len(t, rows, 1)

	r := rows[0]
	assert.Equal(t, "0.1", r.DSAG)
	assert.Equal(t, "0.6", r.DSAL)
	assert.Equal(t, "0.3", r.DSDG)
	assert.Equal(t, "0.6", r.DSDL)
	assert.Equal(t, "0.6", r.MaxDS)
}

func TestExtract_RowContentsAndOrder(t *testing.T) {
	body := record("chr1", 100, "CSQ=G|splice_region_variant;"+spliceAI("0.9", "0", "0", "0")) +
		record("chr1", 200, spliceAI("0.4", "0", "0", "0")) +
		record("chr2", 50, spliceAI("0", "0.51", "0", "0"))

	rows, stats, err := run(t, New(), body)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "chr1", rows[0].Chrom)
	assert.Equal(t, int64(100), rows[0].Pos)
	assert.Equal(t, "A", rows[0].Ref)
	assert.Equal(t, "G", rows[0].Alt)
	assert.Equal(t, "G|splice_region_variant", rows[0].CSQ)
	assert.Equal(t, "G|GENE|0.9|0|0|0|1|2|3|4", rows[0].SpliceAI)
	assert.Equal(t, "0.9", rows[0].MaxDS)

	assert.Equal(t, "chr2", rows[1].Chrom)
	assert.Equal(t, int64(50), rows[1].Pos)
	assert.Equal(t, ".", rows[1].CSQ, "missing CSQ is written as '.'")
	assert.Equal(t, "0.51", rows[1].MaxDS)

	assert.Equal(t, &Stats{Records: 3, Retained: 2}, stats)
}

func TestExtract_CustomThreshold(t *testing.T) {
	e := New()
	e.SetThreshold(0.2)
	assert.Equal(t, 0.2, e.Threshold())

	rows, _, err := run(t, e, record("chr1", 200, spliceAI("0.4", "0", "0", "0")))
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestExtract_Unannotated(t *testing.T) {
	body := record("chr1", 100, ".") + record("chr1", 150, "DP=3")
	rows, stats, err := run(t, New(), body)
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Equal(t, 2, stats.Unannotated)
}

func TestExtract_MalformedFail(t *testing.T) {
	body := record("chr1", 100, "SpliceAI=G|GENE|0.9|0.1")
	_, _, err := run(t, New(), body)
	require.Error(t, err)

	var merr *splice.MalformedAnnotationError
	require.ErrorAs(t, err, &merr)
	assert.Contains(t, err.Error(), "line 3")
	assert.Contains(t, err.Error(), "chr1:100")
}

func TestExtract_MalformedSkip(t *testing.T) {
	e := New()
	e.SetPolicy(PolicySkip)

	body := record("chr1", 100, "SpliceAI=G|GENE|abc|0|0|0") +
		record("chr1", 200, spliceAI("0.7", "0", "0", "0"))
	rows, stats, err := run(t, e, body)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(200), rows[0].Pos)
	assert.Equal(t, 1, stats.Malformed)
}

func TestExtract_File(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.vcf")
	require.NoError(t, os.WriteFile(in, []byte(header+record("chr1", 100, spliceAI("0.9", "0", "0", "0"))), 0o644))
	out := filepath.Join(dir, "in.high.tsv")

	stats, err := New().Extract(in, out)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Retained)
	assert.FileExists(t, out)
}

func TestExtract_MissingInput(t *testing.T) {
	dir := t.TempDir()
	_, err := New().Extract(filepath.Join(dir, "absent.vcf.gz"), filepath.Join(dir, "out.tsv"))
	assert.Error(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "out.tsv"))
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("skip")
	require.NoError(t, err)
	assert.Equal(t, PolicySkip, p)
	assert.Equal(t, "skip", p.String())

	p, err = ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyFail, p)
	assert.Equal(t, "fail", p.String())

	_, err = ParsePolicy("coerce")
	assert.Error(t, err)
}

func TestFormatThreshold(t *testing.T) {
	assert.Equal(t, "0.5", FormatThreshold(DefaultThreshold))
}
