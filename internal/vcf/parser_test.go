package vcf

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testVCF = `##fileformat=VCFv4.2
##INFO=<ID=SpliceAI,Number=.,Type=String,Description="SpliceAIv1.3 variant annotation">
#CHROM	POS	ID	REF	ALT	QUAL	FILTER	INFO
chr1	100	.	A	G	50	PASS	CSQ=G|intron_variant;SpliceAI=G|GENE1|0.10|0.90|0.00|0.00|1|2|3|4
chr1	200	rs1	C	T,G	.	PASS	SpliceAI=T|GENE1|0.40|0.00|0.00|0.00|1|2|3|4

chr2	50	.	G	A	.	PASS	.	GT	0/1
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParser_Records(t *testing.T) {
	parser, err := NewParser(writeFile(t, "in.vcf", testVCF))
	require.NoError(t, err)
	defer parser.Close()

	v, err := parser.Next()
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "chr1", v.Chrom)
	assert.Equal(t, int64(100), v.Pos)
	assert.Equal(t, "A", v.Ref)
	assert.Equal(t, "G", v.Alt)
	assert.Equal(t, "50", v.Qual)
	assert.Equal(t, "G|intron_variant", v.InfoValue("CSQ"))
	assert.Equal(t, "G|GENE1|0.10|0.90|0.00|0.00|1|2|3|4", v.InfoValue("SpliceAI"))

	v, err = parser.Next()
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "rs1", v.ID)
	assert.Equal(t, "T,G", v.Alt, "multi-allelic ALT stays comma-joined")
	assert.Equal(t, ".", v.InfoValue("CSQ"))

	// Blank line is skipped
	v, err = parser.Next()
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "chr2", v.Chrom)
	assert.Equal(t, "GT\t0/1", v.SampleColumns)
	assert.Equal(t, ".", v.RawInfo)

	v, err = parser.Next()
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestParser_Header(t *testing.T) {
	parser, err := NewParser(writeFile(t, "in.vcf", testVCF))
	require.NoError(t, err)
	defer parser.Close()

	header := parser.Header()
	require.Len(t, header, 3)
	assert.Equal(t, "##fileformat=VCFv4.2", header[0])
	assert.True(t, strings.HasPrefix(header[2], "#CHROM"))
}

func TestParser_Gzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.vcf.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	_, err = gz.Write([]byte(testVCF))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	parser, err := NewParser(path)
	require.NoError(t, err)
	defer parser.Close()

	count := 0
	for {
		v, err := parser.Next()
		require.NoError(t, err)
		if v == nil {
			break
		}
		count++
	}
	assert.Equal(t, 3, count)
}

func TestParser_FromReaderNoTrailingNewline(t *testing.T) {
	in := "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\nchr3\t7\t.\tT\tC\t.\t.\t."
	parser, err := NewParserFromReader(strings.NewReader(in))
	require.NoError(t, err)

	v, err := parser.Next()
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, int64(7), v.Pos)

	v, err = parser.Next()
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestParser_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		msg     string
	}{
		{"missing header", "chr1\t1\t.\tA\tG\t.\t.\t.\n", "expected #CHROM header line"},
		{"empty file", "", "no #CHROM header line found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewParserFromReader(strings.NewReader(tt.content))
			require.Error(t, err)
			var perr *ParseError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.msg, perr.Message)
		})
	}
}

func TestParser_BadRecord(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"too few columns", "chr1\t100\t.\tA\tG"},
		{"bad position", "chr1\tabc\t.\tA\tG\t.\t.\t."},
		{"zero position", "chr1\t0\t.\tA\tG\t.\t.\t."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n" + tt.line + "\n"
			parser, err := NewParserFromReader(strings.NewReader(in))
			require.NoError(t, err)

			_, err = parser.Next()
			var perr *ParseError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, 2, perr.Line)
		})
	}
}

func TestParsePosition(t *testing.T) {
	chrom, pos, err := ParsePosition("chr2\t50\t.\tG\tA\t.\tPASS\t.\n")
	require.NoError(t, err)
	assert.Equal(t, "chr2", chrom)
	assert.Equal(t, int64(50), pos)

	_, _, err = ParsePosition("chr2")
	assert.Error(t, err)

	_, _, err = ParsePosition("chr2\tx\t.")
	assert.Error(t, err)
}

func TestParseError(t *testing.T) {
	err := &ParseError{
		Line:    42,
		Message: "expected 8 columns, found 7",
	}

	expected := "vcf parse error at line 42: expected 8 columns, found 7"
	if err.Error() != expected {
		t.Errorf("Error message mismatch: got %q, want %q", err.Error(), expected)
	}
}
