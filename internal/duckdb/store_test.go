package duckdb

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaydenBeckwith/DNAtools/internal/output"
)

func openInMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRows() []ScoreRow {
	return []ScoreRow{
		{Chrom: "chr1", Pos: 100, Ref: "A", Alt: "G", Symbol: "GENE1", DSAG: 0.9, MaxDS: 0.9},
		{Chrom: "chr1", Pos: 100, Ref: "A", Alt: "C", Symbol: "GENE1", DSDL: 0.6, MaxDS: 0.6},
		{Chrom: "chr2", Pos: 50, Ref: "G", Alt: "A", Symbol: "GENE2", DSAL: 0.51, MaxDS: 0.51},
	}
}

func TestOpenClose(t *testing.T) {
	s := openInMemory(t)
	assert.NotNil(t, s.DB())
	assert.Equal(t, "", s.Path())
}

func TestOpenCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "scores.duckdb")
	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	assert.DirExists(t, filepath.Dir(path))
}

func TestWriteAndLookupSite(t *testing.T) {
	s := openInMemory(t)
	require.NoError(t, s.WriteRows("a.vcf.gz", sampleRows()))

	got, err := s.LookupSite("chr1", 100)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "C", got[0].Alt)
	assert.Equal(t, "G", got[1].Alt)
	assert.Equal(t, "a.vcf.gz", got[0].Source)
	assert.InDelta(t, 0.9, got[1].DSAG, 1e-9)

	got, err = s.LookupSite("chr1", 101)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestWriteRowsDeduplicates(t *testing.T) {
	s := openInMemory(t)
	rows := append(sampleRows(), sampleRows()[0])
	require.NoError(t, s.WriteRows("a", rows))

	got, err := s.LookupSite("chr1", 100)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestWriteRowsReplacesSource(t *testing.T) {
	s := openInMemory(t)
	require.NoError(t, s.WriteRows("a", sampleRows()))
	require.NoError(t, s.WriteRows("a", sampleRows()[2:]))
	require.NoError(t, s.WriteRows("b", sampleRows()[:1]))

	got, err := s.LookupSite("chr1", 100)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].Source)
}

func TestSearchAbove(t *testing.T) {
	s := openInMemory(t)
	require.NoError(t, s.WriteRows("a", sampleRows()))

	got, err := s.SearchAbove(0.55)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.InDelta(t, 0.9, got[0].MaxDS, 1e-9)
	assert.InDelta(t, 0.6, got[1].MaxDS, 1e-9)

	// Strictly greater.
	got, err = s.SearchAbove(0.9)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSearchBySymbol(t *testing.T) {
	s := openInMemory(t)
	require.NoError(t, s.WriteRows("a", sampleRows()))

	got, err := s.SearchBySymbol("GENE2")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(50), got[0].Pos)

	got, err = s.SearchBySymbol("NOPE")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestClearSource(t *testing.T) {
	s := openInMemory(t)
	require.NoError(t, s.WriteRows("a", sampleRows()))
	require.NoError(t, s.RecordRun(FileFingerprint{Path: "a", Size: 1, ModTime: time.Now()}, 3))

	require.NoError(t, s.ClearSource("a"))

	got, err := s.SearchAbove(0)
	require.NoError(t, err)
	assert.Empty(t, got)
	run, err := s.LookupRun("a")
	require.NoError(t, err)
	assert.Nil(t, run)
}

func TestRecordRun(t *testing.T) {
	s := openInMemory(t)
	now := time.Now().Truncate(time.Second)
	fp := FileFingerprint{Path: "in.vcf.gz", Size: 1000, ModTime: now}

	current, err := s.IsCurrent(fp)
	require.NoError(t, err)
	assert.False(t, current)

	require.NoError(t, s.RecordRun(fp, 7))
	require.NoError(t, s.RecordRun(fp, 8))

	run, err := s.LookupRun("in.vcf.gz")
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, int64(8), run.Retained)
	assert.Equal(t, int64(1000), run.Size)

	current, err = s.IsCurrent(fp)
	require.NoError(t, err)
	assert.True(t, current)

	current, err = s.IsCurrent(FileFingerprint{Path: "in.vcf.gz", Size: 1001, ModTime: now})
	require.NoError(t, err)
	assert.False(t, current)
}

func TestStatFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.vcf")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0o644))

	fp, err := StatFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, fp.Path)
	assert.Equal(t, int64(3), fp.Size)

	_, err = StatFile(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestFromFiltered(t *testing.T) {
	fr := output.FilteredRow{
		Chrom: "chr1", Pos: 100, Ref: "A", Alt: "G", CSQ: ".",
		SpliceAI: "G|GENE1|0.10|0.60|0.30|0.60|1|2|3|4",
		DSAG:     "0.10", DSAL: "0.60", DSDG: "0.30", DSDL: "0.60", MaxDS: "0.60",
	}

	r, err := FromFiltered("src", fr)
	require.NoError(t, err)
	assert.Equal(t, "GENE1", r.Symbol)
	assert.Equal(t, "src", r.Source)
	assert.InDelta(t, 0.6, r.MaxDS, 1e-9)
	assert.InDelta(t, 0.3, r.DSDG, 1e-9)

	fr.DSAG = "x"
	_, err = FromFiltered("src", fr)
	assert.Error(t, err)
}
