package pipeline

import (
	"path/filepath"
	"strings"

	"github.com/JaydenBeckwith/DNAtools/internal/sites"
)

const (
	vcfGzSuffix   = ".vcf.gz"
	tableSuffix   = ".high.tsv"
	subsetSuffix  = ".subset_high.vcf"
	perInputSites = "." + sites.DefaultFileName
)

// Paths names every artifact of one pipeline run. All of them live in the
// directory of the normalized VCF.
type Paths struct {
	Normalized string // BGZF-compressed, indexed source
	Table      string // filtered-row table
	Sites      string // sites VCF
	Subset     string // final subset VCF
}

// Base returns path with its ".vcf.gz" suffix removed. Other compressed
// names lose only ".gz".
func Base(path string) string {
	if strings.HasSuffix(path, vcfGzSuffix) {
		return strings.TrimSuffix(path, vcfGzSuffix)
	}
	return strings.TrimSuffix(path, ".gz")
}

// Derive names the artifacts for a normalized VCF. The sites file is
// sitesName inside the VCF's directory; an empty sitesName gives
// sites.DefaultFileName.
func Derive(normalized, sitesName string) Paths {
	if sitesName == "" {
		sitesName = sites.DefaultFileName
	}
	base := Base(normalized)
	return Paths{
		Normalized: normalized,
		Table:      base + tableSuffix,
		Sites:      filepath.Join(filepath.Dir(normalized), sitesName),
		Subset:     base + subsetSuffix,
	}
}

// DerivePerInput is Derive with a sites file named after the input,
// "<base>.exact_sites.vcf", so runs sharing a directory never share one.
func DerivePerInput(normalized string) Paths {
	p := Derive(normalized, "")
	p.Sites = Base(normalized) + perInputSites
	return p
}
