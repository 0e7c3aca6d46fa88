package pipeline

import (
	"errors"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaydenBeckwith/DNAtools/internal/output"
)

func TestStage_String(t *testing.T) {
	assert.Equal(t, "raw", Raw.String())
	assert.Equal(t, "normalized", Normalized.String())
	assert.Equal(t, "filtered", Filtered.String())
	assert.Equal(t, "sites-built", SitesBuilt.String())
	assert.Equal(t, "subset", Subset.String())
	assert.Equal(t, "Stage(9)", Stage(9).String())
}

func TestStage_Next(t *testing.T) {
	var seen []Stage
	for s := Raw; ; s = s.Next() {
		seen = append(seen, s)
		if s == Subset {
			break
		}
	}
	assert.Equal(t, []Stage{Raw, Normalized, Filtered, SitesBuilt, Subset}, seen)
	assert.Equal(t, Subset, Subset.Next())
}

func TestStageError(t *testing.T) {
	missing := &output.MissingOutputError{Stage: "extract", Path: "/x/s.high.tsv"}
	err := error(&StageError{Stage: Filtered, Input: "/x/s.vcf", Err: missing})

	assert.Contains(t, err.Error(), "filtered")
	assert.Contains(t, err.Error(), "/x/s.high.tsv")

	var moe *output.MissingOutputError
	require.True(t, errors.As(err, &moe))
	assert.Equal(t, "/x/s.high.tsv", moe.Path)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}
